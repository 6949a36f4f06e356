package api

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// apiMetrics tracks API usage on a registry owned by the client so that
// several clients (and tests) never collide on the default registerer.
type apiMetrics struct {
	registry  *prometheus.Registry
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	pages     prometheus.Counter
	throttled prometheus.Counter
}

func newAPIMetrics() *apiMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &apiMetrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smsctl",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "API requests by endpoint and outcome.",
		}, []string{"endpoint", "code"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "smsctl",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "API request latency including client-side retries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		pages: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "smsctl",
			Subsystem: "directory",
			Name:      "pages_fetched_total",
			Help:      "Directory pages decoded successfully.",
		}),
		throttled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "smsctl",
			Subsystem: "api",
			Name:      "throttled_total",
			Help:      "Responses with status 429.",
		}),
	}
}

func (m *apiMetrics) observe(endpoint string, code int, seconds float64) {
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	m.requests.WithLabelValues(endpoint, label).Inc()
	m.duration.WithLabelValues(endpoint).Observe(seconds)
}

// Registry exposes the client's metrics registry.
func (c *Client) Registry() *prometheus.Registry {
	return c.metrics.registry
}

// WriteMetrics prints counter values as "name{labels} value" lines, sorted.
// Histograms are summarised by sample count and sum.
func (c *Client) WriteMetrics(w io.Writer) error {
	families, err := c.metrics.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := ""
			for i, lp := range m.GetLabel() {
				if i > 0 {
					labels += ","
				}
				labels += fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue())
			}
			if labels != "" {
				labels = "{" + labels + "}"
			}
			switch {
			case m.GetCounter() != nil:
				lines = append(lines, fmt.Sprintf("%s%s %g", mf.GetName(), labels, m.GetCounter().GetValue()))
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				lines = append(lines,
					fmt.Sprintf("%s_count%s %d", mf.GetName(), labels, h.GetSampleCount()),
					fmt.Sprintf("%s_sum%s %g", mf.GetName(), labels, h.GetSampleSum()))
			}
		}
	}
	sort.Strings(lines)
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
