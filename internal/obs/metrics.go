package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// AuthMetrics counts the outcomes of the session flows.
type AuthMetrics struct {
	Logins        *prometheus.CounterVec
	Lockouts      prometheus.Counter
	Registrations prometheus.Counter
	Refreshes     *prometheus.CounterVec
}

func NewAuthMetrics(reg prometheus.Registerer) *AuthMetrics {
	factory := promauto.With(reg)
	return &AuthMetrics{
		Logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatehouse",
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"result"}),
		Lockouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gatehouse",
			Name:      "lockouts_total",
			Help:      "Identifiers locked out after repeated failures.",
		}),
		Registrations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gatehouse",
			Name:      "registrations_total",
			Help:      "Accounts registered.",
		}),
		Refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatehouse",
			Name:      "token_refreshes_total",
			Help:      "Access-token refreshes by outcome.",
		}, []string{"result"}),
	}
}
