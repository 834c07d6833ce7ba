package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

const businessSubsystem = "fplcoach"

var messagesSent = &Metric{
	ID:          "msgSent",
	Name:        "messages_sent_total",
	Description: "Assistant replies committed against a user's quota, by plan.",
	Type:        TypeCounterVec,
	Args:        []string{"plan"},
}

var quotaRejected = &Metric{
	ID:          "quotaRejected",
	Name:        "quota_rejected_total",
	Description: "Send attempts refused because the monthly quota was used up.",
	Type:        TypeCounter,
}

var claimsSubmitted = &Metric{
	ID:          "claimsSubmitted",
	Name:        "claims_submitted_total",
	Description: "Reward claims accepted as pending, by action type.",
	Type:        TypeCounterVec,
	Args:        []string{"action_type"},
}

var claimsDecided = &Metric{
	ID:          "claimsDecided",
	Name:        "claims_decided_total",
	Description: "Reward claims decided by an admin, by action type and decision.",
	Type:        TypeCounterVec,
	Args:        []string{"action_type", "decision"},
}

var billingEvents = &Metric{
	ID:          "billingEvents",
	Name:        "billing_events_total",
	Description: "Billing webhook events by type and result.",
	Type:        TypeCounterVec,
	Args:        []string{"type", "result"},
}

var assistantDur = &Metric{
	ID:          "assistantDur",
	Name:        "assistant_dur_ms",
	Description: "Assistant completion latency in milliseconds, by result.",
	Type:        TypeHistogramVec,
	Args:        []string{"result"},
	Buckets:     AssistantBuckets,
}

// Business groups the domain counters. A nil *Business is valid and records
// nothing, so services can be built without a registry in tests.
type Business struct {
	messagesSent    *prometheus.CounterVec
	quotaRejected   prometheus.Counter
	claimsSubmitted *prometheus.CounterVec
	claimsDecided   *prometheus.CounterVec
	billingEvents   *prometheus.CounterVec
	assistantDur    *prometheus.HistogramVec
}

// NewBusiness registers the domain collectors with reg.
func NewBusiness(reg prometheus.Registerer) (*Business, error) {
	b := &Business{}
	targets := []struct {
		def *Metric
		set func(prometheus.Collector)
	}{
		{messagesSent, func(c prometheus.Collector) { b.messagesSent = c.(*prometheus.CounterVec) }},
		{quotaRejected, func(c prometheus.Collector) { b.quotaRejected = c.(prometheus.Counter) }},
		{claimsSubmitted, func(c prometheus.Collector) { b.claimsSubmitted = c.(*prometheus.CounterVec) }},
		{claimsDecided, func(c prometheus.Collector) { b.claimsDecided = c.(*prometheus.CounterVec) }},
		{billingEvents, func(c prometheus.Collector) { b.billingEvents = c.(*prometheus.CounterVec) }},
		{assistantDur, func(c prometheus.Collector) { b.assistantDur = c.(*prometheus.HistogramVec) }},
	}
	for _, t := range targets {
		c, err := register(reg, NewMetric(t.def, businessSubsystem))
		if err != nil {
			return nil, err
		}
		t.set(c)
	}
	return b, nil
}

func (b *Business) MessageSent(plan string) {
	if b == nil {
		return
	}
	b.messagesSent.WithLabelValues(plan).Inc()
}

func (b *Business) QuotaRejected() {
	if b == nil {
		return
	}
	b.quotaRejected.Inc()
}

func (b *Business) ClaimSubmitted(actionType string) {
	if b == nil {
		return
	}
	b.claimsSubmitted.WithLabelValues(actionType).Inc()
}

func (b *Business) ClaimDecided(actionType, decision string) {
	if b == nil {
		return
	}
	b.claimsDecided.WithLabelValues(actionType, decision).Inc()
}

func (b *Business) BillingEvent(eventType, result string) {
	if b == nil {
		return
	}
	b.billingEvents.WithLabelValues(eventType, result).Inc()
}

func (b *Business) AssistantLatency(result string, ms float64) {
	if b == nil {
		return
	}
	b.assistantDur.WithLabelValues(result).Observe(ms)
}

func newDefaultBusiness() (*Business, error) {
	return NewBusiness(prometheus.DefaultRegisterer)
}

var Module = fx.Options(
	fx.Provide(newDefaultBusiness),
)
