package monitoring

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// PrometheusReporter is Reporter backed by prometheus default registry
type PrometheusReporter struct {
	lock          sync.RWMutex
	countersVec   map[string]*prometheus.CounterVec
	counters      map[string]prometheus.Counter
	gaugesVec     map[string]*prometheus.GaugeVec
	gauges        map[string]prometheus.Gauge
	histograms    map[string]prometheus.Histogram
	histogramsVec map[string]*prometheus.HistogramVec
}

// NewPrometheusReporter creates reporter without any metric
func NewPrometheusReporter() *PrometheusReporter {
	p := PrometheusReporter{}
	p.countersVec = make(map[string]*prometheus.CounterVec)
	p.counters = make(map[string]prometheus.Counter)
	p.gaugesVec = make(map[string]*prometheus.GaugeVec)
	p.gauges = make(map[string]prometheus.Gauge)
	p.histograms = make(map[string]prometheus.Histogram)
	p.histogramsVec = make(map[string]*prometheus.HistogramVec)
	return &p
}

func unregistered(kind, name string) {
	Log().Warn("PrometheusReporter metric not registered", zap.String("kind", kind), zap.String("name", name))
}

// Inc increments counter, metric - status_codes;sc:200
func (p *PrometheusReporter) Inc(metric string) {
	p.Counter(metric, 1)
}

// Counter adds val to counter
func (p *PrometheusReporter) Counter(metric string, val float64) {
	name, labels := parseMetric(metric)
	p.lock.RLock()
	defer p.lock.RUnlock()

	if labels == nil {
		if c, ok := p.counters[name]; ok {
			c.Add(val)
			return
		}
	} else if c, ok := p.countersVec[name]; ok {
		if m, err := c.GetMetricWith(labels); err == nil {
			m.Add(val)
			return
		}
	}

	unregistered("counter", name)
}

// Gauge adds val to gauge
func (p *PrometheusReporter) Gauge(metric string, val float64) {
	name, labels := parseMetric(metric)
	p.lock.RLock()
	defer p.lock.RUnlock()

	if labels == nil {
		if g, ok := p.gauges[name]; ok {
			g.Add(val)
			return
		}
	} else if g, ok := p.gaugesVec[name]; ok {
		if m, err := g.GetMetricWith(labels); err == nil {
			m.Add(val)
			return
		}
	}

	unregistered("gauge", name)
}

// Histogram observes val
func (p *PrometheusReporter) Histogram(metric string, val float64) {
	name, labels := parseMetric(metric)
	p.lock.RLock()
	defer p.lock.RUnlock()

	if labels == nil {
		if h, ok := p.histograms[name]; ok {
			h.Observe(val)
			return
		}
	} else if h, ok := p.histogramsVec[name]; ok {
		if m, err := h.GetMetricWith(labels); err == nil {
			m.Observe(val)
			return
		}
	}

	unregistered("histogram", name)
}

// Timer starts timer reported to histogram
func (p *PrometheusReporter) Timer(metric string) Timer {
	return NewTimer(p, metric)
}

// RegisterCounter registers counter under internal name
func (p *PrometheusReporter) RegisterCounter(name string, c prometheus.Counter) error {
	if err := prometheus.Register(c); err != nil {
		return err
	}

	p.lock.Lock()
	p.counters[name] = c
	p.lock.Unlock()
	return nil
}

// RegisterCounterVec registers counter with labels under internal name
func (p *PrometheusReporter) RegisterCounterVec(name string, c *prometheus.CounterVec) error {
	if err := prometheus.Register(c); err != nil {
		return err
	}

	p.lock.Lock()
	p.countersVec[name] = c
	p.lock.Unlock()
	return nil
}

// RegisterGauge registers gauge under internal name
func (p *PrometheusReporter) RegisterGauge(name string, g prometheus.Gauge) error {
	if err := prometheus.Register(g); err != nil {
		return err
	}

	p.lock.Lock()
	p.gauges[name] = g
	p.lock.Unlock()
	return nil
}

// RegisterGaugeVec registers gauge with labels under internal name
func (p *PrometheusReporter) RegisterGaugeVec(name string, g *prometheus.GaugeVec) error {
	if err := prometheus.Register(g); err != nil {
		return err
	}

	p.lock.Lock()
	p.gaugesVec[name] = g
	p.lock.Unlock()
	return nil
}

// RegisterHistogram registers histogram under internal name
func (p *PrometheusReporter) RegisterHistogram(name string, h prometheus.Histogram) error {
	if err := prometheus.Register(h); err != nil {
		return err
	}

	p.lock.Lock()
	p.histograms[name] = h
	p.lock.Unlock()
	return nil
}

// RegisterHistogramVec registers histogram with labels under internal name
func (p *PrometheusReporter) RegisterHistogramVec(name string, h *prometheus.HistogramVec) error {
	if err := prometheus.Register(h); err != nil {
		return err
	}

	p.lock.Lock()
	p.histogramsVec[name] = h
	p.lock.Unlock()
	return nil
}

// parseMetric splits "name;l1:v1:l2:v2" into name and labels. labels is nil when metric has none
func parseMetric(metric string) (string, prometheus.Labels) {
	parts := strings.SplitN(metric, ";", 2)
	if len(parts) == 1 {
		return parts[0], nil
	}

	return parts[0], getLabels(parts[1])
}

func getLabels(label string) prometheus.Labels {
	parts := strings.Split(label, ":")
	labels := make(prometheus.Labels, len(parts)/2)
	for i := 0; i+1 < len(parts); i += 2 {
		labels[parts[i]] = parts[i+1]
	}

	return labels
}
