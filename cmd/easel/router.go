package main

import (
	"context"
	"net/http"
	"strconv"

	"github.com/aldor007/easel/pkg/monitoring"
	"github.com/aldor007/easel/pkg/processor"
	"github.com/aldor007/easel/pkg/response"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type renderer interface {
	Process(ctx context.Context, key string, presetName string) *response.Response
}

func renderHandler(rp renderer) http.HandlerFunc {
	return func(resWriter http.ResponseWriter, req *http.Request) {
		preset := chi.URLParam(req, "preset")
		key := chi.URLParam(req, "*")

		res := rp.Process(req.Context(), key, preset)
		monitoring.Report().Inc("response_status;status:" + strconv.Itoa(res.StatusCode))
		if res.HasError() {
			monitoring.Log().Warn("easel process error", zap.String("preset", preset), zap.String("key", key),
				zap.Int("sc", res.StatusCode), zap.Error(res.Error()))
		}

		if err := res.SendContent(req, resWriter); err != nil {
			monitoring.Log().Warn("easel unable to send response", zap.String("key", key), zap.Error(err))
		}
	}
}

func newRouter(rp renderer, accessLog bool) http.Handler {
	router := chi.NewRouter()
	if accessLog {
		router.Use(httplog.RequestLogger(httplog.NewLogger("easel", httplog.Options{JSON: true, Concise: true})))
	}

	router.Get("/healthz", func(resWriter http.ResponseWriter, _ *http.Request) {
		response.NewString(http.StatusOK, "ok").Send(resWriter)
	})

	h := renderHandler(rp)
	router.Get("/{preset}/*", h)
	router.Head("/{preset}/*", h)
	router.NotFound(func(resWriter http.ResponseWriter, _ *http.Request) {
		response.NewError(http.StatusNotFound, processor.ErrUnknownPreset).Send(resWriter)
	})
	router.MethodNotAllowed(func(resWriter http.ResponseWriter, _ *http.Request) {
		response.NewError(http.StatusMethodNotAllowed, errMethodNotAllowed).Send(resWriter)
	})

	return router
}

func newInternalRouter() http.Handler {
	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(resWriter http.ResponseWriter, _ *http.Request) {
		response.NewString(http.StatusOK, "ok").Send(resWriter)
	})

	return router
}
