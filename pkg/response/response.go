package response

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/aldor007/easel/pkg/helpers"
	"github.com/pquerna/cachecontrol/cacheobject"
	"github.com/vmihailenco/msgpack"
)

const (
	// HeaderContentType name of Content-Type header
	HeaderContentType = "content-type"
	// HeaderCache marks responses served from render cache
	HeaderCache = "x-easel-cache"
)

// Response is buffered render result or error
type Response struct {
	StatusCode int         // status code of response
	Headers    http.Header // headers for response
	errorValue error       // error value
	body       []byte      // response body
}

// NewBuf create response object from []byte
func NewBuf(statusCode int, body []byte) *Response {
	return &Response{StatusCode: statusCode, Headers: make(http.Header), body: body}
}

// NewString create response object from string
func NewString(statusCode int, body string) *Response {
	res := NewBuf(statusCode, []byte(body))
	res.Headers.Set(HeaderContentType, "text/plain")
	return res
}

// NewNoContent create response object without content
func NewNoContent(statusCode int) *Response {
	return NewBuf(statusCode, nil)
}

// NewError create response object from error
func NewError(statusCode int, err error) *Response {
	res := NewBuf(statusCode, nil)
	res.errorValue = err
	res.Headers.Set(HeaderContentType, "application/json")

	msg := http.StatusText(statusCode)
	if msg == "" {
		msg = "error"
	}
	res.body, _ = json.Marshal(map[string]string{"message": msg})
	return res
}

// SetContentType update content type header of response
func (r *Response) SetContentType(contentType string) *Response {
	r.Headers.Set(HeaderContentType, contentType)
	return r
}

// Set update response headers
func (r *Response) Set(headerName string, headerValue string) {
	r.Headers.Set(headerName, headerValue)
}

// Body returns response content
func (r *Response) Body() []byte {
	return r.body
}

// ContentLength returns length of body
func (r *Response) ContentLength() int64 {
	return int64(len(r.body))
}

// HasError check if response contains error
func (r *Response) HasError() bool {
	return r.errorValue != nil
}

// Error returns error instance
func (r *Response) Error() error {
	return r.errorValue
}

// Send write response to client
func (r *Response) Send(w http.ResponseWriter) error {
	for headerName, headerValue := range r.Headers {
		w.Header().Set(headerName, headerValue[0])
	}

	if len(r.body) == 0 {
		w.WriteHeader(r.StatusCode)
		return nil
	}

	w.Header().Set("content-length", strconv.FormatInt(r.ContentLength(), 10))
	w.WriteHeader(r.StatusCode)
	_, err := w.Write(r.body)
	return err
}

// SendContent use http.ServeContent to return response to client
// It can handle range and condition requests
func (r *Response) SendContent(req *http.Request, w http.ResponseWriter) error {
	if r.StatusCode != http.StatusOK || !helpers.IsRangeOrCondition(req) {
		return r.Send(w)
	}

	if helpers.MatchesETag(req, r.Headers.Get("ETag")) {
		for _, h := range []string{"ETag", "Cache-Control", "Last-Modified"} {
			if v := r.Headers.Get(h); v != "" {
				w.Header().Set(h, v)
			}
		}
		w.WriteHeader(http.StatusNotModified)
		return nil
	}

	for headerName, headerValue := range r.Headers {
		w.Header().Set(headerName, headerValue[0])
	}

	lastMod, err := time.Parse(http.TimeFormat, r.Headers.Get("Last-Modified"))
	if err != nil {
		lastMod = time.Now()
	}

	http.ServeContent(w, req, "", lastMod, bytes.NewReader(r.body))
	return nil
}

// IsCacheable reports if response is successful and has positive ttl
func (r *Response) IsCacheable() bool {
	return r.StatusCode > 199 && r.StatusCode < 299 && r.GetTTL() > 0
}

// IsFromCache reports if response was served from render cache
func (r *Response) IsFromCache() bool {
	return r.Headers.Get(HeaderCache) != ""
}

// SetCacheHit marks response as served from cache
func (r *Response) SetCacheHit() {
	r.Headers.Set(HeaderCache, "hit")
}

// GetTTL returns time in seconds for which response can be stored in shared cache.
// s-maxage wins over max-age, no-store and private give 0
func (r *Response) GetTTL() int {
	dir, err := cacheobject.ParseResponseCacheControl(r.Headers.Get("Cache-Control"))
	if err != nil {
		return 0
	}

	if dir.NoStore || dir.PrivatePresent {
		return 0
	}

	if dir.SMaxAge > 0 {
		return int(dir.SMaxAge)
	}

	if dir.MaxAge > 0 {
		return int(dir.MaxAge)
	}

	return 0
}

func (r *Response) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeMulti(r.StatusCode, r.Headers, r.body)
}

func (r *Response) DecodeMsgpack(dec *msgpack.Decoder) error {
	return dec.DecodeMulti(&r.StatusCode, &r.Headers, &r.body)
}

// Copy create complete response copy with headers and body
func (r *Response) Copy() *Response {
	if r == nil {
		return nil
	}

	c := Response{StatusCode: r.StatusCode, errorValue: r.errorValue}
	c.Headers = r.Headers.Clone()
	if c.Headers == nil {
		c.Headers = make(http.Header)
	}
	if r.body != nil {
		c.body = make([]byte, len(r.body))
		copy(c.body, r.body)
	}
	return &c
}

// IsImage check if response is image
func (r *Response) IsImage() bool {
	return bytes.HasPrefix([]byte(r.Headers.Get(HeaderContentType)), []byte("image/"))
}
