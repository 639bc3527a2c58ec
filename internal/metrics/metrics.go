package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var AutoModViolations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_automod_violations_total",
	Help: "Messages removed by automod, by matched rule",
}, []string{"rule"})

var ModerationActions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_moderation_actions_total",
	Help: "Audit entries emitted, by action kind",
}, []string{"action"})

var Tickets = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_tickets_total",
	Help: "Ticket lifecycle transitions, by event",
}, []string{"event"})

var Giveaways = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_giveaways_total",
	Help: "Giveaway lifecycle events, by event",
}, []string{"event"})

func Handler() http.Handler {
	return promhttp.Handler()
}
