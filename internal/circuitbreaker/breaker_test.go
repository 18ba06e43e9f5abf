package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	cfg := DefaultConfig("test")
	cfg.ReadyToTrip = func(c Counts) bool { return c.ConsecutiveFailures >= 2 }
	cb := New(cfg)

	failing := func() (interface{}, error) { return nil, errors.New("boom") }

	_, err := cb.Execute(failing)
	require.Error(t, err)
	require.Equal(t, StateClosed, cb.State())

	_, err = cb.Execute(failing)
	require.Error(t, err)
	require.Equal(t, StateOpen, cb.State())

	_, err = cb.Execute(func() (interface{}, error) { return "ok", nil })
	require.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreakerRecoversThroughHalfOpen(t *testing.T) {
	cfg := DefaultConfig("test")
	cfg.Timeout = 10 * time.Millisecond
	cfg.MaxRequests = 1 // one half-open success is enough to close
	cfg.ReadyToTrip = func(c Counts) bool { return c.ConsecutiveFailures >= 1 }
	cb := New(cfg)

	_, err := cb.Execute(func() (interface{}, error) { return nil, errors.New("boom") })
	require.Error(t, err)
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)

	result, err := cb.Execute(func() (interface{}, error) { return "recovered", nil })
	require.NoError(t, err)
	require.Equal(t, "recovered", result)
	require.Equal(t, StateClosed, cb.State())
}

func TestManagerGetOrCreateReusesBreaker(t *testing.T) {
	m := NewManager(nil)
	a := m.GetOrCreate("rpc", DefaultConfig("rpc"))
	b := m.GetOrCreate("rpc", DefaultConfig("rpc"))
	require.Same(t, a, b)
	require.Contains(t, m.List(), "rpc")
}

func TestNewCollaboratorBreakersNamesEveryCollaborator(t *testing.T) {
	breakers := NewCollaboratorBreakers()
	require.NotNil(t, breakers.RPC)
	require.NotNil(t, breakers.Simulation)
	require.NotNil(t, breakers.Snapshot)
	require.NotNil(t, breakers.Audit)

	status, stats := breakers.HealthStatus()
	require.Equal(t, "HEALTHY", status)
	require.Contains(t, stats, "rpc")
	require.Contains(t, stats, "simulation")
	require.Contains(t, stats, "snapshot")
	require.Contains(t, stats, "audit")
}

func TestExecuteWithFallbackUsesFallbackOnOpenCircuit(t *testing.T) {
	cfg := DefaultConfig("test")
	cfg.ReadyToTrip = func(c Counts) bool { return c.ConsecutiveFailures >= 1 }
	cb := New(cfg)

	_, _ = cb.Execute(func() (interface{}, error) { return nil, errors.New("boom") })
	require.Equal(t, StateOpen, cb.State())

	result, err := ExecuteWithFallback[string](cb, func() (string, error) {
		return "primary", nil
	}, func(err error) (string, error) {
		return "fallback", nil
	})
	require.NoError(t, err)
	require.Equal(t, "fallback", result)
}
