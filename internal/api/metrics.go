// ABOUTME: Request and entry counters exposed in the Prometheus text format.
// ABOUTME: Builds client_model metric families and renders them with expfmt.
package api

import (
	"io"
	"sort"
	"strconv"
	"sync"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"
)

var metricsContentType = string(expfmt.NewFormat(expfmt.TypeTextPlain))

type requestKey struct {
	method string
	route  string
	code   int
}

type routeStats struct {
	count uint64
	sum   float64
}

// Metrics counts HTTP requests and entry outcomes.
type Metrics struct {
	mu        sync.Mutex
	requests  map[requestKey]uint64
	latency   map[string]*routeStats
	creates   uint64
	rejection map[string]uint64
}

// NewMetrics returns zeroed counters.
func NewMetrics() *Metrics {
	return &Metrics{
		requests:  make(map[requestKey]uint64),
		latency:   make(map[string]*routeStats),
		rejection: make(map[string]uint64),
	}
}

func (m *Metrics) observe(method, route string, code int, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests[requestKey{method: method, route: route, code: code}]++
	s, ok := m.latency[route]
	if !ok {
		s = &routeStats{}
		m.latency[route] = s
	}
	s.count++
	s.sum += d.Seconds()
}

func (m *Metrics) created() {
	m.mu.Lock()
	m.creates++
	m.mu.Unlock()
}

func (m *Metrics) rejected(reason string) {
	m.mu.Lock()
	m.rejection[reason]++
	m.mu.Unlock()
}

// Created returns how many entries were stored through the API.
func (m *Metrics) Created() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creates
}

// Families snapshots the counters. entries is the stored entry count; a
// negative value omits the gauge.
func (m *Metrics) Families(entries int) []*dto.MetricFamily {
	m.mu.Lock()
	defer m.mu.Unlock()

	requests := &dto.MetricFamily{
		Name: proto.String("biomarkers_http_requests_total"),
		Help: proto.String("HTTP requests by method, route and status code."),
		Type: dto.MetricType_COUNTER.Enum(),
	}
	keys := make([]requestKey, 0, len(m.requests))
	for k := range m.requests {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.route != b.route {
			return a.route < b.route
		}
		if a.method != b.method {
			return a.method < b.method
		}
		return a.code < b.code
	})
	for _, k := range keys {
		requests.Metric = append(requests.Metric, &dto.Metric{
			Label: []*dto.LabelPair{
				label("code", strconv.Itoa(k.code)),
				label("method", k.method),
				label("route", k.route),
			},
			Counter: &dto.Counter{Value: proto.Float64(float64(m.requests[k]))},
		})
	}

	latency := &dto.MetricFamily{
		Name: proto.String("biomarkers_http_request_duration_seconds"),
		Help: proto.String("Time spent serving HTTP requests by route."),
		Type: dto.MetricType_SUMMARY.Enum(),
	}
	routes := make([]string, 0, len(m.latency))
	for r := range m.latency {
		routes = append(routes, r)
	}
	sort.Strings(routes)
	for _, r := range routes {
		s := m.latency[r]
		latency.Metric = append(latency.Metric, &dto.Metric{
			Label: []*dto.LabelPair{label("route", r)},
			Summary: &dto.Summary{
				SampleCount: proto.Uint64(s.count),
				SampleSum:   proto.Float64(s.sum),
			},
		})
	}

	created := &dto.MetricFamily{
		Name:   proto.String("biomarkers_entries_created_total"),
		Help:   proto.String("Entries stored through the API."),
		Type:   dto.MetricType_COUNTER.Enum(),
		Metric: []*dto.Metric{{Counter: &dto.Counter{Value: proto.Float64(float64(m.creates))}}},
	}

	rejected := &dto.MetricFamily{
		Name: proto.String("biomarkers_entries_rejected_total"),
		Help: proto.String("Entry submissions rejected, by reason."),
		Type: dto.MetricType_COUNTER.Enum(),
	}
	for _, reason := range []string{"duplicate", "invalid"} {
		rejected.Metric = append(rejected.Metric, &dto.Metric{
			Label:   []*dto.LabelPair{label("reason", reason)},
			Counter: &dto.Counter{Value: proto.Float64(float64(m.rejection[reason]))},
		})
	}

	families := []*dto.MetricFamily{created, rejected}
	if entries >= 0 {
		families = append(families, &dto.MetricFamily{
			Name:   proto.String("biomarkers_entries"),
			Help:   proto.String("Entries currently stored."),
			Type:   dto.MetricType_GAUGE.Enum(),
			Metric: []*dto.Metric{{Gauge: &dto.Gauge{Value: proto.Float64(float64(entries))}}},
		})
	}
	if len(requests.Metric) > 0 {
		families = append(families, latency, requests)
	}
	return families
}

// Write renders every family in the text exposition format.
func (m *Metrics) Write(w io.Writer, entries int) error {
	for _, mf := range m.Families(entries) {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

func label(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: proto.String(name), Value: proto.String(value)}
}
