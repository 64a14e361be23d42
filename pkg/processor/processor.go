// Package processor renders source images through presets and serves results with caching,
// request collapsing and throttling
package processor

import (
	"context"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aldor007/easel/pkg/cache"
	"github.com/aldor007/easel/pkg/canvas"
	"github.com/aldor007/easel/pkg/config"
	"github.com/aldor007/easel/pkg/lock"
	"github.com/aldor007/easel/pkg/monitoring"
	"github.com/aldor007/easel/pkg/recipe"
	"github.com/aldor007/easel/pkg/response"
	"github.com/aldor007/easel/pkg/throttler"
	"github.com/pkg/errors"
	"github.com/spaolacci/murmur3"
	"go.uber.org/zap"
)

const (
	HeaderWidth  = "x-easel-width"
	HeaderHeight = "x-easel-height"
)

var (
	ErrTimeout       = errors.New("timeout")
	ErrContextCancel = errors.New("context canceled")
	ErrThrottled     = errors.New("throttled")
	ErrUnknownPreset = errors.New("unknown preset")
)

// ActivityTracker is notified when render starts and ends
type ActivityTracker interface {
	BeginProcessing()
	EndProcessing()
}

// RenderProcessor handle render requests
type RenderProcessor struct {
	backend        canvas.Backend
	recipes        map[string]*recipe.Recipe
	sourceRoot     string
	cache          cache.ResponseCache // cache for rendered images
	collapse       lock.Lock           // interface used for request collapsing
	throttler      throttler.Throttler // interface used for limiting concurrent renders
	processTimeout time.Duration       // request processing timeout
	defaultTTL     int                 // ttl used when preset has no cache-control
	tracker        ActivityTracker
}

// NewRenderProcessor create instance of render processor
func NewRenderProcessor(serverConfig config.Server, b canvas.Backend, recipes map[string]*recipe.Recipe,
	c cache.ResponseCache, l lock.Lock, t throttler.Throttler) *RenderProcessor {
	return &RenderProcessor{
		backend:        b,
		recipes:        recipes,
		sourceRoot:     serverConfig.SourceRoot,
		cache:          c,
		collapse:       l,
		throttler:      t,
		processTimeout: time.Duration(serverConfig.RequestTimeout) * time.Second,
		defaultTTL:     serverConfig.Cache.TTL,
	}
}

// SetActivityTracker registers tracker notified about each render
func (r *RenderProcessor) SetActivityTracker(t ActivityTracker) {
	r.tracker = t
}

// Process renders source key with preset and returns response
func (r *RenderProcessor) Process(ctx context.Context, key string, presetName string) *response.Response {
	if ctx.Err() != nil {
		return r.replyWithContextError(ctx, key)
	}

	if r.processTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.processTimeout)
		defer cancel()
	}

	resChan := make(chan *response.Response, 1)
	go func() {
		resChan <- r.process(ctx, key, presetName)
	}()

	select {
	case res := <-resChan:
		return res
	case <-ctx.Done():
		return r.replyWithContextError(ctx, key)
	}
}

func (r *RenderProcessor) replyWithContextError(ctx context.Context, key string) *response.Response {
	if ctx.Err() == context.DeadlineExceeded {
		monitoring.Log().Warn("Process timeout", zap.String("key", key), zap.String("error", "timeout"))
		return response.NewError(http.StatusGatewayTimeout, ErrTimeout)
	}

	monitoring.Log().Warn("Process canceled", zap.String("key", key), zap.String("error", "Context.canceled"))
	return response.NewError(499, ErrContextCancel)
}

// RenderKey returns cache key of source rendered with recipe
func RenderKey(sourceKey string, rec *recipe.Recipe) string {
	return strconv.FormatUint(murmur3.Sum64([]byte(sourceKey)), 16) + "-" + rec.HashStr()
}

func (r *RenderProcessor) process(ctx context.Context, key string, presetName string) *response.Response {
	rec, ok := r.recipes[presetName]
	if !ok {
		return response.NewError(http.StatusNotFound, errors.Wrapf(ErrUnknownPreset, "%q", presetName))
	}

	sourceKey := path.Clean("/" + key)
	renderKey := RenderKey(sourceKey, rec)
	if res, err := r.cache.Get(ctx, renderKey); err == nil {
		return res
	}

	return r.collapseRender(ctx, sourceKey, renderKey, rec)
}

func (r *RenderProcessor) collapseRender(ctx context.Context, sourceKey, renderKey string, rec *recipe.Recipe) *response.Response {
	lockResult, locked := r.collapse.Lock(ctx, renderKey)
	if locked {
		monitoring.Log().Debug("Lock acquired", zap.String("renderKey", renderKey))
		res := r.render(ctx, sourceKey, renderKey, rec)
		r.collapse.NotifyAndRelease(ctx, renderKey, res)
		return res
	}

	res, err := lockResult.Wait(ctx)
	switch {
	case err == nil:
		return res
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return r.replyWithContextError(ctx, sourceKey)
	case errors.Is(err, lock.ErrLeaderGone):
		monitoring.Log().Debug("Lock released without response", zap.String("renderKey", renderKey))
		if cached, err := r.cache.Get(ctx, renderKey); err == nil {
			return cached
		}
	default:
		monitoring.Log().Warn("Lock error, rendering without collapsing", zap.String("renderKey", renderKey), zap.Error(err))
	}

	return r.render(ctx, sourceKey, renderKey, rec)
}

func (r *RenderProcessor) sourcePath(sourceKey string) string {
	return filepath.Join(r.sourceRoot, filepath.FromSlash(sourceKey))
}

func (r *RenderProcessor) render(ctx context.Context, sourceKey, renderKey string, rec *recipe.Recipe) *response.Response {
	if !r.throttler.Take(ctx) {
		monitoring.Log().Warn("Processor/render", zap.String("renderKey", renderKey), zap.String("error", "throttled"))
		return response.NewError(http.StatusServiceUnavailable, ErrThrottled)
	}
	defer r.throttler.Release()

	if r.tracker != nil {
		r.tracker.BeginProcessing()
		defer r.tracker.EndProcessing()
	}

	t := monitoring.Report().Timer("render_time;preset:" + rec.Name)
	defer t.Done()

	srcPath := r.sourcePath(sourceKey)
	info, err := os.Stat(srcPath)
	if err != nil || info.IsDir() {
		return response.NewError(http.StatusNotFound, errors.Wrapf(canvas.ErrNotFound, "source %s", sourceKey))
	}

	out, err := Render(ctx, r.backend, srcPath, rec)
	if err != nil {
		sc := statusCode(err)
		monitoring.Log().Warn("Processor/render failed", zap.String("renderKey", renderKey), zap.String("source", sourceKey),
			zap.Int("sc", sc), zap.Error(err))
		return response.NewError(sc, err)
	}

	res := response.NewBuf(http.StatusOK, out.Body)
	res.SetContentType(out.Format.ContentType())
	res.Set("ETag", "W/\""+strconv.FormatUint(murmur3.Sum64(out.Body), 16)+"\"")
	res.Set(HeaderWidth, strconv.Itoa(out.Width))
	res.Set(HeaderHeight, strconv.Itoa(out.Height))
	res.Set("Last-Modified", info.ModTime().UTC().Format(http.TimeFormat))
	if cc := r.cacheControl(rec); cc != "" {
		res.Set("Cache-Control", cc)
	}

	if res.IsCacheable() {
		if err := r.cache.Set(ctx, renderKey, res); err != nil {
			monitoring.Log().Warn("Processor/render unable to cache", zap.String("renderKey", renderKey), zap.Error(err))
		}
	}

	return res
}

func (r *RenderProcessor) cacheControl(rec *recipe.Recipe) string {
	if rec.CacheControl != "" {
		return rec.CacheControl
	}

	if r.defaultTTL > 0 {
		return "max-age=" + strconv.Itoa(r.defaultTTL) + ", public"
	}

	return ""
}

// Rendered is encoded result of recipe
type Rendered struct {
	Body   []byte
	Format canvas.Format
	Width  int
	Height int
}

// Render loads image from srcPath, applies recipe and encodes result
func Render(ctx context.Context, b canvas.Backend, srcPath string, rec *recipe.Recipe) (Rendered, error) {
	src, err := canvas.Load(b, srcPath)
	if err != nil {
		return Rendered{}, err
	}
	defer src.Destroy()

	srcFormat, _ := canvas.FormatFromPath(srcPath)
	out, err := rec.Apply(ctx, src)
	if err != nil {
		return Rendered{}, err
	}
	defer out.Destroy()

	format := rec.Format(srcFormat)
	buf, err := out.Export(format)
	if err != nil {
		return Rendered{}, err
	}

	monitoring.Log().Debug("Render done", zap.String("preset", rec.Name), zap.String("format", format.String()),
		zap.Int("width", out.Width()), zap.Int("height", out.Height()))
	return Rendered{Body: buf, Format: format, Width: out.Width(), Height: out.Height()}, nil
}

// RenderFile renders srcPath with recipe and writes result to dstPath. Format of result is taken from
// dstPath extension when it has one
func RenderFile(ctx context.Context, b canvas.Backend, srcPath, dstPath string, rec *recipe.Recipe) error {
	src, err := canvas.Load(b, srcPath)
	if err != nil {
		return err
	}
	defer src.Destroy()

	format, err := canvas.FormatFromPath(dstPath)
	if err != nil {
		srcFormat, _ := canvas.FormatFromPath(srcPath)
		format = rec.Format(srcFormat)
	}

	out, err := rec.Apply(ctx, src)
	if err != nil {
		return err
	}
	defer out.Destroy()

	return out.Save(dstPath, format)
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, canvas.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, canvas.ErrDecode), errors.Is(err, canvas.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusInternalServerError
	}
}
