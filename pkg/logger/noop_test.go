package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureLogger(t *testing.T) {
	l := EnsureLogger(nil)
	require.NotNil(t, l)
	assert.NotPanics(t, func() {
		l.With("chain_id", "1").Info("cycle started", "cycle_id", "x")
	})

	real, err := New(false)
	require.NoError(t, err)
	assert.Equal(t, real, EnsureLogger(real))
}
