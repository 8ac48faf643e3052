package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestOracleMetricsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOracleMetrics(reg)

	m.IncCycle("sepolia", "completed")
	m.IncCycle("sepolia", "completed")
	m.AddRequests("sepolia", "api_call", "pending", 3)
	m.IncSubmission("sepolia", "withdrawal", "sent")
	m.IncRpcCall("sepolia", "eth_blockNumber", "ok")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.numCycles.WithLabelValues("sepolia", "completed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.numRequests.WithLabelValues("sepolia", "api_call", "pending")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.numSubmission.WithLabelValues("sepolia", "withdrawal", "sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.numRpcCalls.WithLabelValues("sepolia", "eth_blockNumber", "ok")))
}

func TestEnsure(t *testing.T) {
	assert.Equal(t, Noop{}, Ensure(nil))

	m := NewOracleMetrics(prometheus.NewRegistry())
	assert.Same(t, m, Ensure(m))
}
