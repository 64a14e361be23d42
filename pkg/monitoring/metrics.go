package monitoring

import "time"

// Reporter collects service metrics.
// Metric name may carry labels in format name;label1:value1:label2:value2
type Reporter interface {
	Counter(label string, val float64)
	Inc(label string)
	Histogram(label string, val float64)
	Gauge(label string, val float64)
	Timer(label string) Timer
}

// Timer measures duration of operation and reports it in milliseconds as histogram
type Timer struct {
	start    time.Time
	label    string
	reporter Reporter
}

// NewTimer starts timer for reporter
func NewTimer(r Reporter, label string) Timer {
	return Timer{start: time.Now(), label: label, reporter: r}
}

// Done reports elapsed time
func (t Timer) Done() {
	if t.reporter == nil {
		return
	}

	t.reporter.Histogram(t.label, float64(time.Since(t.start))/float64(time.Millisecond))
}

// NopReporter do nothing
type NopReporter struct {
}

// Counter do nothing
func (n NopReporter) Counter(_ string, _ float64) {
}

// Inc do nothing
func (n NopReporter) Inc(_ string) {
}

// Histogram do nothing
func (n NopReporter) Histogram(_ string, _ float64) {
}

// Gauge do nothing
func (n NopReporter) Gauge(_ string, _ float64) {
}

// Timer returns timer which reports nothing
func (n NopReporter) Timer(_ string) Timer {
	return Timer{}
}

var reporter Reporter = &NopReporter{}

// Report returns registered reporter
func Report() Reporter {
	return reporter
}

// RegisterReporter sets reporter used by service
// RegisterReporter is NOT THREAD SAFE
func RegisterReporter(r Reporter) {
	reporter = r
}
