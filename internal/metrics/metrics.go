// Package metrics exposes the Prometheus counters and gauges for the
// decision engine, reconciler, and listener set.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Decision drop reasons, used as the "reason" label on DecisionDrops.
const (
	DropNotRelayed   = "not_relayed"
	DropWrongOp      = "wrong_op"
	DropWrongMessage = "wrong_message_type"
	DropStaging      = "staging_in_flight"
	DropNoProfile    = "no_profile"
	DropStopping     = "stopping"
)

// DecisionReplies counts replies synthesized by the decision engine, by
// message type ("OFFER" or "ACK").
var DecisionReplies = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "dhcpsprout_decision_replies_total",
	Help: "Total number of DHCP replies synthesized, by message type.",
}, []string{"message_type"})

// DecisionDrops counts packets the decision engine drops without replying,
// by reason.
var DecisionDrops = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "dhcpsprout_decision_drops_total",
	Help: "Total number of packets dropped by the decision engine, by reason.",
}, []string{"reason"})

// TaskQueueDrops counts reconciler tasks dropped because the task queue was
// full.
var TaskQueueDrops = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "dhcpsprout_task_queue_drops_total",
	Help: "Total number of reconciler tasks dropped because the queue was full.",
}, []string{"task"})

// StoreErrors counts store round-trips that failed, by task kind.
var StoreErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "dhcpsprout_store_errors_total",
	Help: "Total number of store errors encountered by the reconciler, by task.",
}, []string{"task"})

// IndexSize reports the current number of entries in each index map
// ("active" or "staging").
var IndexSize = prometheus.NewGaugeVec(prometheus.GaugeOpts{
	Name: "dhcpsprout_index_size",
	Help: "Current number of entries in the in-memory index, by map.",
}, []string{"map"})

// Register registers all package metrics with registry. It panics if called
// twice with the same registry, matching promauto/MustRegister semantics
// elsewhere in this stack.
func Register(registry *prometheus.Registry) {
	registry.MustRegister(DecisionReplies, DecisionDrops, TaskQueueDrops, StoreErrors, IndexSize)
}
