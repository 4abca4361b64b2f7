package metrics

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

var defaultDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

const namespace = "slidebuddy"

type histogram struct {
	buckets []float64
	counts  []uint64
	count   uint64
	sum     float64
}

func newHistogram(buckets []float64) *histogram {
	cloned := append([]float64(nil), buckets...)
	return &histogram{
		buckets: cloned,
		counts:  make([]uint64, len(cloned)),
	}
}

func (h *histogram) Observe(value float64) {
	h.count++
	h.sum += value
	for i, upper := range h.buckets {
		if value <= upper {
			h.counts[i]++
		}
	}
}

// series is one label combination of a family. values follow the
// family's labelNames.
type series struct {
	values  []string
	counter float64
	hist    *histogram
}

// family is one labelled series set, keyed by the quoted label values so a
// value containing a separator cannot collide with another combination.
type family struct {
	name       string
	help       string
	labelNames []string
	histogram  bool

	series map[string]*series
}

func newCounter(name, help string, labelNames ...string) *family {
	return &family{name: name, help: help, labelNames: labelNames, series: make(map[string]*series)}
}

func newHistogramFamily(name, help string, labelNames ...string) *family {
	return &family{name: name, help: help, labelNames: labelNames, histogram: true, series: make(map[string]*series)}
}

func seriesKey(labelValues []string) string {
	quoted := make([]string, len(labelValues))
	for i, value := range labelValues {
		quoted[i] = strconv.Quote(value)
	}
	return strings.Join(quoted, ",")
}

func (f *family) lookup(labelValues []string) *series {
	key := seriesKey(labelValues)
	s, ok := f.series[key]
	if !ok {
		s = &series{values: append([]string(nil), labelValues...)}
		if f.histogram {
			s.hist = newHistogram(defaultDurationBuckets)
		}
		f.series[key] = s
	}
	return s
}

func (f *family) add(value float64, labelValues ...string) {
	f.lookup(labelValues).counter += value
}

func (f *family) observe(value float64, labelValues ...string) {
	f.lookup(labelValues).hist.Observe(value)
}

func (f *family) labels(s *series) map[string]string {
	labels := make(map[string]string, len(f.labelNames))
	for i, name := range f.labelNames {
		if i < len(s.values) {
			labels[name] = s.values[i]
		}
	}
	return labels
}

func (f *family) render(builder *strings.Builder) {
	kind := "counter"
	if f.histogram {
		kind = "histogram"
	}
	builder.WriteString(fmt.Sprintf("# HELP %s %s\n", f.name, f.help))
	builder.WriteString(fmt.Sprintf("# TYPE %s %s\n", f.name, kind))

	for _, key := range sortedKeys(f.series) {
		s := f.series[key]
		if f.histogram {
			writeHistogram(builder, f.name, f.labels(s), s.hist)
			continue
		}
		builder.WriteString(fmt.Sprintf("%s{%s} %g\n", f.name, f.orderedLabels(s), s.counter))
	}
}

// orderedLabels keeps declaration order, which reads better for counters.
func (f *family) orderedLabels(s *series) string {
	parts := make([]string, 0, len(f.labelNames))
	for i, name := range f.labelNames {
		value := ""
		if i < len(s.values) {
			value = s.values[i]
		}
		parts = append(parts, fmt.Sprintf("%s=%q", name, value))
	}
	return strings.Join(parts, ",")
}

type registry struct {
	mu sync.Mutex

	providerRequests *family
	providerLatency  *family
	documentRequests *family
	documentLatency  *family
	operations       *family
	operationLatency *family
	elementsMutated  *family
}

func newRegistry() *registry {
	return &registry{
		providerRequests: newCounter(namespace+"_provider_requests_total", "Total completion provider requests.",
			"provider", "operation", "status", "error_category"),
		providerLatency: newHistogramFamily(namespace+"_provider_request_duration_seconds", "Completion provider request duration in seconds.",
			"provider", "operation", "status", "error_category"),
		documentRequests: newCounter(namespace+"_document_requests_total", "Total document adapter requests.",
			"document", "operation", "status", "error_code"),
		documentLatency: newHistogramFamily(namespace+"_document_request_duration_seconds", "Document adapter request duration in seconds.",
			"document", "operation", "status", "error_code"),
		operations: newCounter(namespace+"_operations_total", "Total dispatched operations.",
			"operation", "status"),
		operationLatency: newHistogramFamily(namespace+"_operation_duration_seconds", "Bulk operation duration in seconds.",
			"operation", "status"),
		elementsMutated: newCounter(namespace+"_elements_mutated_total", "Total elements changed by an operation.",
			"operation"),
	}
}

var globalRegistry = newRegistry()

func RecordProviderCall(provider string, operation string, status string, errorCategory string, duration time.Duration) {
	r := globalRegistry
	r.mu.Lock()
	defer r.mu.Unlock()

	r.providerRequests.add(1, provider, operation, status, errorCategory)
	r.providerLatency.observe(duration.Seconds(), provider, operation, status, errorCategory)
}

func RecordDocumentCall(document string, operation string, status string, errorCode string, duration time.Duration) {
	r := globalRegistry
	r.mu.Lock()
	defer r.mu.Unlock()

	r.documentRequests.add(1, document, operation, status, errorCode)
	r.documentLatency.observe(duration.Seconds(), document, operation, status, errorCode)
}

// RecordOperation counts one dispatched operation. mutated is only added for
// operations that changed elements.
func RecordOperation(operation string, status string, mutated int, duration time.Duration) {
	r := globalRegistry
	r.mu.Lock()
	defer r.mu.Unlock()

	r.operations.add(1, operation, status)
	if duration > 0 {
		r.operationLatency.observe(duration.Seconds(), operation, status)
	}
	if mutated > 0 {
		r.elementsMutated.add(float64(mutated), operation)
	}
}

func PrometheusText() string {
	r := globalRegistry
	r.mu.Lock()
	defer r.mu.Unlock()

	var builder strings.Builder
	for _, f := range []*family{
		r.providerRequests,
		r.providerLatency,
		r.documentRequests,
		r.documentLatency,
		r.operations,
		r.operationLatency,
		r.elementsMutated,
	} {
		f.render(&builder)
	}
	return builder.String()
}

func ResetForTests() {
	globalRegistry = newRegistry()
}

func writeHistogram(builder *strings.Builder, metricName string, labels map[string]string, h *histogram) {
	for i, bucket := range h.buckets {
		builder.WriteString(fmt.Sprintf(
			"%s_bucket{%s,le=%q} %d\n",
			metricName,
			formatLabels(labels),
			formatFloat(bucket),
			h.counts[i],
		))
	}
	builder.WriteString(fmt.Sprintf(
		"%s_bucket{%s,le=\"+Inf\"} %d\n",
		metricName,
		formatLabels(labels),
		h.count,
	))
	builder.WriteString(fmt.Sprintf("%s_sum{%s} %g\n", metricName, formatLabels(labels), h.sum))
	builder.WriteString(fmt.Sprintf("%s_count{%s} %d\n", metricName, formatLabels(labels), h.count))
}

func formatLabels(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for key := range labels {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", key, labels[key]))
	}
	return strings.Join(parts, ",")
}

func formatFloat(value float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.6f", value), "0"), ".")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
