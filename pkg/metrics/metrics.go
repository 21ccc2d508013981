package metrics

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// ErrLabelCountMismatch is returned when the number of label values doesn't match the defined labels.
var ErrLabelCountMismatch = errors.New("label count mismatch")

// ErrNegativeCounterValue is returned when attempting to add a negative value to a counter.
var ErrNegativeCounterValue = errors.New("counter cannot be decreased")

// ErrDuplicateMetric is returned when registering a metric with a name that is already registered.
var ErrDuplicateMetric = errors.New("duplicate metric name")

// atomicFloat64 stores float64 bits in a uint64 for lock-free updates.
type atomicFloat64 struct {
	bits atomic.Uint64
}

func (a *atomicFloat64) Load() float64 {
	return math.Float64frombits(a.bits.Load())
}

func (a *atomicFloat64) Store(val float64) {
	a.bits.Store(math.Float64bits(val))
}

func (a *atomicFloat64) Add(delta float64) {
	for {
		old := a.bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if a.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

// MetricType represents the type of a metric.
type MetricType string

const (
	MetricTypeCounter   MetricType = "counter"
	MetricTypeGauge     MetricType = "gauge"
	MetricTypeHistogram MetricType = "histogram"
)

// Metric is the interface implemented by all metric types.
type Metric interface {
	Name() string
	Help() string
	Type() MetricType
	// Collect returns all samples for exposition.
	Collect() []Sample
}

// Sample represents a single metric sample with labels.
type Sample struct {
	Name   string
	Labels map[string]string
	Value  float64
}

// family holds the labeled series of one metric. T is the per-series state.
type family[T any] struct {
	name       string
	help       string
	labelNames []string
	newSeries  func() *T

	mu     sync.RWMutex
	series map[string]*labeled[T]
}

type labeled[T any] struct {
	labels map[string]string
	state  *T
}

func (f *family[T]) init(name, help string, labelNames []string, newSeries func() *T) {
	f.name = name
	f.help = help
	f.labelNames = labelNames
	f.newSeries = newSeries
	f.series = make(map[string]*labeled[T])
}

// get returns the series for the label values, creating it on first use.
func (f *family[T]) get(kind string, values []string) (*labeled[T], error) {
	if len(values) != len(f.labelNames) {
		return nil, fmt.Errorf("%w: %s %s expected %d labels, got %d", ErrLabelCountMismatch, kind, f.name, len(f.labelNames), len(values))
	}

	key := strings.Join(values, "\xff")
	f.mu.RLock()
	s, ok := f.series[key]
	f.mu.RUnlock()
	if ok {
		return s, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok = f.series[key]; ok {
		return s, nil
	}
	labels := make(map[string]string, len(values))
	for i, name := range f.labelNames {
		labels[name] = values[i]
	}
	s = &labeled[T]{labels: labels, state: f.newSeries()}
	f.series[key] = s
	return s, nil
}

func (f *family[T]) each(fn func(labels map[string]string, state *T)) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, s := range f.series {
		fn(s.labels, s.state)
	}
}

// Counter is a monotonically increasing metric.
type Counter struct {
	family[atomicFloat64]
}

func newCounter(name, help string, labelNames []string) *Counter {
	c := &Counter{}
	c.init(name, help, labelNames, func() *atomicFloat64 { return &atomicFloat64{} })
	return c
}

func (c *Counter) Name() string     { return c.name }
func (c *Counter) Help() string     { return c.help }
func (c *Counter) Type() MetricType { return MetricTypeCounter }

// WithLabels returns the series for the given label values.
func (c *Counter) WithLabels(values ...string) (*CounterVec, error) {
	s, err := c.get("counter", values)
	if err != nil {
		return nil, err
	}
	return &CounterVec{v: s.state}, nil
}

// Inc increments an unlabeled counter by 1.
func (c *Counter) Inc() error {
	vec, err := c.WithLabels()
	if err != nil {
		return err
	}
	return vec.Inc()
}

// Collect returns all metric samples.
func (c *Counter) Collect() []Sample {
	var samples []Sample
	c.each(func(labels map[string]string, v *atomicFloat64) {
		samples = append(samples, Sample{Name: c.name, Labels: labels, Value: v.Load()})
	})
	return samples
}

// CounterVec is one labeled counter series.
type CounterVec struct {
	v *atomicFloat64
}

// Inc increments the counter by 1.
func (v *CounterVec) Inc() error {
	return v.Add(1)
}

// Add adds delta to the counter. Returns an error if delta is negative.
func (v *CounterVec) Add(delta float64) error {
	if delta < 0 {
		return ErrNegativeCounterValue
	}
	v.v.Add(delta)
	return nil
}

// Value returns the current value.
func (v *CounterVec) Value() float64 {
	return v.v.Load()
}

// Gauge is a metric that can go up and down.
type Gauge struct {
	family[atomicFloat64]
}

func newGauge(name, help string, labelNames []string) *Gauge {
	g := &Gauge{}
	g.init(name, help, labelNames, func() *atomicFloat64 { return &atomicFloat64{} })
	return g
}

func (g *Gauge) Name() string     { return g.name }
func (g *Gauge) Help() string     { return g.help }
func (g *Gauge) Type() MetricType { return MetricTypeGauge }

// WithLabels returns the series for the given label values.
func (g *Gauge) WithLabels(values ...string) (*GaugeVec, error) {
	s, err := g.get("gauge", values)
	if err != nil {
		return nil, err
	}
	return &GaugeVec{v: s.state}, nil
}

// Collect returns all metric samples.
func (g *Gauge) Collect() []Sample {
	var samples []Sample
	g.each(func(labels map[string]string, v *atomicFloat64) {
		samples = append(samples, Sample{Name: g.name, Labels: labels, Value: v.Load()})
	})
	return samples
}

// GaugeVec is one labeled gauge series.
type GaugeVec struct {
	v *atomicFloat64
}

func (v *GaugeVec) Set(value float64) { v.v.Store(value) }
func (v *GaugeVec) Inc() { v.v.Add(1) }
func (v *GaugeVec) Dec() { v.v.Add(-1) }
func (v *GaugeVec) Add(delta float64) { v.v.Add(delta) }
func (v *GaugeVec) Value() float64 { return v.v.Load() }

// Histogram tracks the distribution of observed values.
type Histogram struct {
	family[histogramSeries]
	buckets []float64
}

type histogramSeries struct {
	counts []atomic.Uint64
	sum    atomicFloat64
	count  atomic.Uint64
}

func newHistogram(name, help string, buckets []float64, labelNames []string) *Histogram {
	sorted := append([]float64(nil), buckets...)
	sort.Float64s(sorted)
	if len(sorted) == 0 || !math.IsInf(sorted[len(sorted)-1], 1) {
		sorted = append(sorted, math.Inf(1))
	}
	h := &Histogram{buckets: sorted}
	h.init(name, help, labelNames, func() *histogramSeries {
		return &histogramSeries{counts: make([]atomic.Uint64, len(sorted))}
	})
	return h
}

func (h *Histogram) Name() string     { return h.name }
func (h *Histogram) Help() string     { return h.help }
func (h *Histogram) Type() MetricType { return MetricTypeHistogram }

// WithLabels returns the series for the given label values.
func (h *Histogram) WithLabels(values ...string) (*HistogramVec, error) {
	s, err := h.get("histogram", values)
	if err != nil {
		return nil, err
	}
	return &HistogramVec{s: s.state, buckets: h.buckets}, nil
}

// Observe records a value on an unlabeled histogram.
func (h *Histogram) Observe(value float64) error {
	vec, err := h.WithLabels()
	if err != nil {
		return err
	}
	vec.Observe(value)
	return nil
}

// Collect returns cumulative bucket, sum and count samples.
func (h *Histogram) Collect() []Sample {
	var samples []Sample
	h.each(func(labels map[string]string, s *histogramSeries) {
		var cumulative uint64
		for i, bound := range h.buckets {
			cumulative += s.counts[i].Load()
			bl := make(map[string]string, len(labels)+1)
			for k, v := range labels {
				bl[k] = v
			}
			bl["le"] = formatFloat(bound)
			samples = append(samples, Sample{Name: h.name + "_bucket", Labels: bl, Value: float64(cumulative)})
		}
		samples = append(samples,
			Sample{Name: h.name + "_sum", Labels: labels, Value: s.sum.Load()},
			Sample{Name: h.name + "_count", Labels: labels, Value: float64(s.count.Load())},
		)
	})
	return samples
}

// HistogramVec is one labeled histogram series.
type HistogramVec struct {
	s       *histogramSeries
	buckets []float64
}

// Observe records a value.
func (v *HistogramVec) Observe(value float64) {
	idx := len(v.buckets) - 1
	if !math.IsNaN(value) {
		idx = sort.SearchFloat64s(v.buckets, value)
	}
	v.s.counts[idx].Add(1)
	v.s.sum.Add(value)
	v.s.count.Add(1)
}

// Count returns the number of observations.
func (v *HistogramVec) Count() uint64 {
	return v.s.count.Load()
}

// Registry holds metrics and writes them in Prometheus text format.
type Registry struct {
	mu      sync.RWMutex
	metrics map[string]Metric
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{metrics: make(map[string]Metric)}
}

// Register adds a metric. Returns ErrDuplicateMetric if the name is taken.
func (r *Registry) Register(m Metric) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.metrics[m.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateMetric, m.Name())
	}
	r.metrics[m.Name()] = m
	return nil
}

// NewCounter creates and registers a counter. Panics on duplicate names.
func (r *Registry) NewCounter(name, help string, labelNames ...string) *Counter {
	c := newCounter(name, help, labelNames)
	if err := r.Register(c); err != nil {
		panic(err)
	}
	return c
}

// NewGauge creates and registers a gauge. Panics on duplicate names.
func (r *Registry) NewGauge(name, help string, labelNames ...string) *Gauge {
	g := newGauge(name, help, labelNames)
	if err := r.Register(g); err != nil {
		panic(err)
	}
	return g
}

// NewHistogram creates and registers a histogram. Panics on duplicate names.
func (r *Registry) NewHistogram(name, help string, buckets []float64, labelNames ...string) *Histogram {
	h := newHistogram(name, help, buckets, labelNames)
	if err := r.Register(h); err != nil {
		panic(err)
	}
	return h
}

// Get returns a registered metric by name.
func (r *Registry) Get(name string) Metric {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.metrics[name]
}

// WriteText writes every metric in Prometheus text exposition format,
// sorted by metric name and then by label set.
func (r *Registry) WriteText(w io.Writer) error {
	r.mu.RLock()
	names := make([]string, 0, len(r.metrics))
	for name := range r.metrics {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		m := r.Get(name)
		samples := m.Collect()
		if len(samples) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "# HELP %s %s\n", m.Name(), escapeHelp(m.Help()))
		fmt.Fprintf(&sb, "# TYPE %s %s\n", m.Name(), m.Type())

		lines := make([]string, 0, len(samples))
		for _, s := range samples {
			lines = append(lines, s.Name+formatLabels(s.Labels)+" "+formatFloat(s.Value))
		}
		sort.Strings(lines)
		for _, l := range lines {
			sb.WriteString(l)
			sb.WriteByte('\n')
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + `="` + escapeLabel(labels[k]) + `"`
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func formatFloat(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	case math.IsNaN(v):
		return "NaN"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

var (
	helpEscaper  = strings.NewReplacer(`\`, `\\`, "\n", `\n`)
	labelEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`, `"`, `\"`)
)

func escapeHelp(s string) string  { return helpEscaper.Replace(s) }
func escapeLabel(s string) string { return labelEscaper.Replace(s) }
