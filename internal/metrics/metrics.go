package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PaymentsCaptured = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "careerroute_payments_captured_total",
		Help: "Payments moved to captured, by provider.",
	}, []string{"provider"})

	PaymentCallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "careerroute_payment_callbacks_total",
		Help: "Provider callbacks received, by provider and outcome.",
	}, []string{"provider", "outcome"})

	MeetingProvisionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "careerroute_meeting_provision_failures_total",
		Help: "Confirmed sessions whose meeting could not be provisioned.",
	})

	SessionsCancelled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "careerroute_sessions_cancelled_total",
		Help: "Cancelled sessions, by the role that cancelled.",
	}, []string{"role"})

	RefundFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "careerroute_refund_failures_total",
		Help: "Refunds the provider rejected after a local cancellation.",
	})

	TranscriptAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "careerroute_transcript_attempts_total",
		Help: "Transcript retrieval attempts, by outcome.",
	}, []string{"outcome"})

	TranscriptSweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "careerroute_transcript_sweep_duration_seconds",
		Help:    "Wall time of one transcript sweep iteration.",
		Buckets: prometheus.DefBuckets,
	})

	BalanceReleases = promauto.NewCounter(prometheus.CounterOpts{
		Name: "careerroute_balance_releases_total",
		Help: "Matured payments released into mentor available balance.",
	})
)
