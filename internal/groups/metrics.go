package groups

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	created    *prometheus.CounterVec
	updated    *prometheus.CounterVec
	dispatched *prometheus.CounterVec
}

// newMetrics builds the engine counters and registers them on reg when non-nil.
// Engines sharing a registerer share the counters registered first.
func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signal_groups_created_total",
			Help: "Groups created, by kind (secure or mms).",
		}, []string{"kind"}),
		updated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signal_groups_updated_total",
			Help: "Group updates persisted, by kind (secure or mms).",
		}, []string{"kind"}),
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signal_group_dispatch_total",
			Help: "Group control messages handed to the dispatcher, by result.",
		}, []string{"result"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []**prometheus.CounterVec{&m.created, &m.updated, &m.dispatched} {
		registered, err := registerCounter(reg, *c)
		if err != nil {
			return nil, err
		}
		*c = registered
	}
	return m, nil
}

func registerCounter(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
			return existing, nil
		}
	}
	return nil, fmt.Errorf("groups: register metrics: %w", err)
}

func kindLabel(mms bool) string {
	if mms {
		return "mms"
	}
	return "secure"
}
