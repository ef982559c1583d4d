package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mcq_bot"

// Metrics держит собственный реестр, глобальный prometheus.DefaultRegistry не трогаем.
// Все методы безопасны на nil-получателе.
type Metrics struct {
	Registry *prometheus.Registry

	segments    *prometheus.CounterVec
	parsed      prometheus.Counter
	rejected    *prometheus.CounterVec
	polls       *prometheus.CounterVec
	generations *prometheus.CounterVec
	genLatency  *prometheus.HistogramVec
	batches     *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		segments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_total",
			Help:      "Candidate segments found in generated text.",
		}, []string{"result"}),
		parsed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_parsed_total",
			Help:      "Segments that produced a valid MCQ record.",
		}),
		rejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_rejected_total",
			Help:      "Segments rejected by the parser, by first violated rule.",
		}, []string{"rule"}),
		polls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Quiz polls sent to Telegram, by status.",
		}, []string{"status"}),
		generations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Generation calls, by engine and status.",
		}, []string{"engine", "status"}),
		genLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Wall time of a generation including retries.",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 80, 160, 320},
		}, []string{"engine"}),
		batches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Finished batches, by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

func (m *Metrics) Segments(kept, dropped int) {
	if m == nil {
		return
	}
	m.segments.WithLabelValues("kept").Add(float64(kept))
	m.segments.WithLabelValues("dropped").Add(float64(dropped))
}

func (m *Metrics) Parsed(n int) {
	if m == nil {
		return
	}
	m.parsed.Add(float64(n))
}

func (m *Metrics) Rejected(rule string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(rule).Inc()
}

func (m *Metrics) Poll(ok bool) {
	if m == nil {
		return
	}
	status := "delivered"
	if !ok {
		status = "failed"
	}
	m.polls.WithLabelValues(status).Inc()
}

func (m *Metrics) Generation(engine, status string, took time.Duration) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(engine, status).Inc()
	m.genLatency.WithLabelValues(engine).Observe(took.Seconds())
}

func (m *Metrics) Batch(outcome string) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(outcome).Inc()
}
