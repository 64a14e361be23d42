package helpers

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// MaxObjectSize limits size of fetched overlays
const MaxObjectSize = 32 << 20

// ErrObjectTooLarge is returned when fetched object exceeds MaxObjectSize
var ErrObjectTooLarge = errors.New("object too large")

var client = &http.Client{
	Transport: &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	},
}

// HTTPClient returns client used for fetching remote objects
func HTTPClient() *http.Client {
	return client
}

// FetchObject download data from given URI, URI without http(s) scheme is read from local disk
func FetchObject(ctx context.Context, uri string) ([]byte, error) {
	if IsURL(uri) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
		if err != nil {
			return nil, err
		}

		response, err := client.Do(req)
		if err != nil {
			return nil, err
		}

		defer response.Body.Close()
		if response.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetch %s: unexpected status %d", uri, response.StatusCode)
		}

		return readLimited(response.Body)
	}

	f, err := os.Open(uri)
	if err != nil {
		return nil, err
	}

	defer f.Close()
	return readLimited(f)
}

func readLimited(r io.Reader) ([]byte, error) {
	buf, err := io.ReadAll(io.LimitReader(r, MaxObjectSize+1))
	if err != nil {
		return nil, err
	}

	if len(buf) > MaxObjectSize {
		return nil, ErrObjectTooLarge
	}

	return buf, nil
}

// IsURL checks if uri has http or https scheme
func IsURL(uri string) bool {
	return strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://")
}

// IsRangeOrCondition check if request is range or condition
func IsRangeOrCondition(req *http.Request) bool {
	if req.Header.Get("Range") != "" || req.Header.Get("If-Range") != "" {
		return true
	}

	if req.Header.Get("If-Match") != "" || req.Header.Get("If-None-Match") != "" {
		return true
	}

	if req.Header.Get("If-Unmodified-Since") != "" || req.Header.Get("If-Modified-Since") != "" {
		return true
	}

	return false
}

// MatchesETag checks if If-None-Match header of request lists etag
func MatchesETag(req *http.Request, etag string) bool {
	inm := req.Header.Get("If-None-Match")
	if inm == "" || etag == "" {
		return false
	}

	if strings.TrimSpace(inm) == "*" {
		return true
	}

	want := strings.TrimPrefix(etag, "W/")
	for _, tag := range strings.Split(inm, ",") {
		if strings.TrimPrefix(strings.TrimSpace(tag), "W/") == want {
			return true
		}
	}

	return false
}
