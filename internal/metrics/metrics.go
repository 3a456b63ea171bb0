// Package metrics exposes Prometheus counters for authentication and
// ordering.  Collectors register on the default registry and are served
// at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginsTotal counts login and registration attempts by outcome.
	LoginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pizza",
		Subsystem: "auth",
		Name:      "logins_total",
		Help:      "Session issue attempts by kind (register, login) and result.",
	}, []string{"kind", "result"})

	LogoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pizza",
		Subsystem: "auth",
		Name:      "logouts_total",
		Help:      "Sessions revoked by logout.",
	})

	// TokensRejectedTotal counts presented bearer tokens that did not
	// produce an identity.
	TokensRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pizza",
		Subsystem: "auth",
		Name:      "tokens_rejected_total",
		Help:      "Bearer tokens rejected by reason (invalid, revoked, error).",
	}, []string{"reason"})

	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pizza",
		Subsystem: "order",
		Name:      "created_total",
		Help:      "Orders persisted.",
	})
)
