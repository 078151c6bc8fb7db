// Метрики погашения. Регистрируются в переданном registry
package credits

import (
	model "github.com/glkeru/credits/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type RedemptionMetrics struct {
	issued    prometheus.Counter
	committed prometheus.Counter
	debited   prometheus.Counter
	rejected  *prometheus.CounterVec
	retries   prometheus.Counter
	refunds   prometheus.Counter
}

func NewRedemptionMetrics(reg prometheus.Registerer) *RedemptionMetrics {
	f := promauto.With(reg)
	return &RedemptionMetrics{
		issued: f.NewCounter(prometheus.CounterOpts{
			Name: "credits_tokens_issued_total",
			Help: "Кол-во выданных токенов",
		}),
		committed: f.NewCounter(prometheus.CounterOpts{
			Name: "credits_redemptions_committed_total",
			Help: "Кол-во успешных погашений",
		}),
		debited: f.NewCounter(prometheus.CounterOpts{
			Name: "credits_debited_total",
			Help: "Кол-во списанных кредитов",
		}),
		rejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "credits_redemptions_rejected_total",
			Help: "Кол-во отказов в погашении",
		}, []string{"reason"}),
		retries: f.NewCounter(prometheus.CounterOpts{
			Name: "credits_commit_retries_total",
			Help: "Кол-во повторов commit списания",
		}),
		refunds: f.NewCounter(prometheus.CounterOpts{
			Name: "credits_refunds_total",
			Help: "Кол-во сторно",
		}),
	}
}

func (m *RedemptionMetrics) TokenIssued() {
	m.issued.Inc()
}

func (m *RedemptionMetrics) RedemptionCommitted(credits int64) {
	m.committed.Inc()
	m.debited.Add(float64(credits))
}

func (m *RedemptionMetrics) RedemptionRejected(reason model.Reason) {
	m.rejected.WithLabelValues(string(reason)).Inc()
}

func (m *RedemptionMetrics) CommitRetried() {
	m.retries.Inc()
}

func (m *RedemptionMetrics) Refunded() {
	m.refunds.Inc()
}
