package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestDecisionReplies(t *testing.T) {
	DecisionReplies.Reset()

	DecisionReplies.WithLabelValues("OFFER").Inc()
	DecisionReplies.WithLabelValues("OFFER").Inc()
	DecisionReplies.WithLabelValues("ACK").Inc()

	if v := testutil.ToFloat64(DecisionReplies.WithLabelValues("OFFER")); v != 2 {
		t.Errorf("expected 2 OFFER replies, got %f", v)
	}
	if v := testutil.ToFloat64(DecisionReplies.WithLabelValues("ACK")); v != 1 {
		t.Errorf("expected 1 ACK reply, got %f", v)
	}
}

func TestRegister(t *testing.T) {
	registry := prometheus.NewRegistry()

	Register(registry)

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic when registering metrics twice")
		}
	}()
	Register(registry)
}
