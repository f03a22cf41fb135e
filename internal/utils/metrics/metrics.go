package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TokensIssuedTotal counts issued tokens by type.
	TokensIssuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "token_service_tokens_issued_total",
		Help: "The total number of tokens issued, by token type",
	}, []string{"type"})

	// TokenVerificationsTotal counts verification outcomes.
	TokenVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "token_service_verifications_total",
		Help: "The total number of token verifications, by result",
	}, []string{"result"})

	// TokenRefreshTotal counts refresh outcomes.
	TokenRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "token_service_refresh_total",
		Help: "The total number of refresh attempts, by result",
	}, []string{"result"})

	// ReplaysDetectedTotal counts confirmed replay detections.
	ReplaysDetectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "token_service_replays_detected_total",
		Help: "The total number of refresh token replays detected",
	})

	// FamiliesRevokedTotal counts family-wide revocation cascades.
	FamiliesRevokedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "token_service_families_revoked_total",
		Help: "The total number of token families revoked",
	})

	// StoreOperationDuration tracks persisted-token store latency.
	StoreOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "token_service_store_operation_duration_seconds",
		Help:    "Duration of persisted-token store operations in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
)
