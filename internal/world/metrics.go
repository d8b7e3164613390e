package world

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics содержит Prometheus-метрики мира. Нулевой указатель допустим:
// все методы ничего не делают, если метрики не созданы.
type Metrics struct {
	resident   prometheus.Gauge
	generated  prometheus.Counter
	evicted    prometheus.Counter
	discarded  prometheus.Counter
	genSeconds prometheus.Histogram
	edits      *prometheus.CounterVec
}

// NewMetrics создаёт метрики и регистрирует их в reg.
// При reg == nil метрики создаются, но нигде не регистрируются (удобно в тестах).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		resident: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "blockworld",
			Name:      "chunks_resident",
			Help:      "Количество загруженных чанков.",
		}),
		generated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blockworld",
			Name:      "chunks_generated_total",
			Help:      "Общее число сгенерированных чанков.",
		}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blockworld",
			Name:      "chunks_evicted_total",
			Help:      "Общее число выгруженных чанков.",
		}),
		discarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blockworld",
			Name:      "chunks_discarded_total",
			Help:      "Чанки, сгенерированные фоном, но устаревшие к моменту применения.",
		}),
		genSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "blockworld",
			Name:      "chunk_generation_seconds",
			Help:      "Длительность генерации одного чанка.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
		edits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blockworld",
			Name:      "block_edits_total",
			Help:      "Попытки изменения блоков по операции и результату.",
		}, []string{"op", "result"}),
	}

	if reg != nil {
		reg.MustRegister(m.resident, m.generated, m.evicted, m.discarded, m.genSeconds, m.edits)
	}
	return m
}

func (m *Metrics) setResident(n int) {
	if m == nil {
		return
	}
	m.resident.Set(float64(n))
}

func (m *Metrics) chunkGenerated(d time.Duration) {
	if m == nil {
		return
	}
	m.generated.Inc()
	m.genSeconds.Observe(d.Seconds())
}

func (m *Metrics) chunksEvicted(n int) {
	if m == nil || n == 0 {
		return
	}
	m.evicted.Add(float64(n))
}

func (m *Metrics) chunkDiscarded() {
	if m == nil {
		return
	}
	m.discarded.Inc()
}

func (m *Metrics) blockEdit(op string, ok bool) {
	if m == nil {
		return
	}
	result := "rejected"
	if ok {
		result = "applied"
	}
	m.edits.WithLabelValues(op, result).Inc()
}
