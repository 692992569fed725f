// Package metrics defines and registers all custom Prometheus metrics for
// the identity service. It is the single source of truth for metric names,
// labels, and help strings.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "identity"

// TokensIssuedTotal counts successfully issued tokens.
// Label:
//   - grant_type: "client_credentials", "password", or "authorization_code"
var TokensIssuedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tokens_issued_total",
		Help:      "Total number of tokens issued, by grant type.",
	},
	[]string{"grant_type"},
)

// TokenRejectionsTotal counts rejected token-endpoint transactions.
// Label:
//   - reason: OAuth error code (e.g. "invalid_client", "invalid_grant")
var TokenRejectionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_rejections_total",
		Help:      "Total number of rejected token requests, by OAuth error code.",
	},
	[]string{"reason"},
)

// EventsPublishedTotal counts UserUpdated events handed to the broker.
var EventsPublishedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Total number of UserUpdated events successfully published.",
	},
)

// EventPublishFailuresTotal counts publications that failed after the retry
// policy ran its course.
// Label:
//   - class: "permanent" or "exhausted"
var EventPublishFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "event_publish_failures_total",
		Help:      "Total number of failed event publications, by failure class.",
	},
	[]string{"class"},
)

// AuthFailuresTotal counts credential verification failures seen at the
// protocol boundary. No label distinguishes unknown-user from bad-password.
var AuthFailuresTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_failures_total",
		Help:      "Total number of failed end-user authentication attempts.",
	},
)
