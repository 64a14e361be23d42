package main

import (
	"github.com/aldor007/easel/pkg/monitoring"
	"github.com/prometheus/client_golang/prometheus"
)

var histogramBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

func registerMetrics(p *monitoring.PrometheusReporter) error {
	errs := []error{
		p.RegisterCounterVec("cache_ratio", prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "easel_cache_ratio",
			Help: "easel render cache ratio",
		}, []string{"status"})),
		p.RegisterCounterVec("response_status", prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "easel_response_status",
			Help: "easel response status",
		}, []string{"status"})),
		p.RegisterCounter("collapsed_count", prometheus.NewCounter(prometheus.CounterOpts{
			Name: "easel_request_collapsed_count",
			Help: "easel count of collapsed requests",
		})),
		p.RegisterCounter("throttled_count", prometheus.NewCounter(prometheus.CounterOpts{
			Name: "easel_request_throttled_count",
			Help: "easel count of throttled requests",
		})),
		p.RegisterCounter("vips_cleanup_count", prometheus.NewCounter(prometheus.CounterOpts{
			Name: "easel_vips_cleanup_count",
			Help: "easel count of libvips cache drops",
		})),
		p.RegisterHistogramVec("render_time", prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "easel_render_time",
			Help:    "easel render time in ms",
			Buckets: histogramBuckets,
		}, []string{"preset"})),
		p.RegisterHistogramVec("canvas_op_time", prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "easel_canvas_op_time",
			Help:    "easel canvas operation time in ms",
			Buckets: histogramBuckets,
		}, []string{"op"})),
	}

	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	return nil
}
