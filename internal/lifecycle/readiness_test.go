package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadiness_StartsNotReady(t *testing.T) {
	r := NewReadiness()
	require.Equal(t, StateStarting, r.State())
	require.False(t, r.IsReady())
}

func TestReadiness_MarkReady(t *testing.T) {
	r := NewReadiness()
	r.MarkReady()
	require.Equal(t, StateReady, r.State())
	require.True(t, r.IsReady())
}

func TestReadiness_MarkReadyTwiceIsNoop(t *testing.T) {
	r := NewReadiness()
	r.MarkReady()
	r.MarkReady()
	require.Equal(t, StateReady, r.State())
}

func TestReadiness_BeginDrainingIsIdempotent(t *testing.T) {
	r := NewReadiness()
	r.MarkReady()
	r.BeginDraining()
	require.Equal(t, StateDraining, r.State())
	require.False(t, r.IsReady())

	r.BeginDraining()
	require.Equal(t, StateDraining, r.State())
}

func TestReadiness_NeverReadyAgainAfterDraining(t *testing.T) {
	r := NewReadiness()
	r.MarkReady()
	r.BeginDraining()
	r.MarkReady()
	require.Equal(t, StateDraining, r.State())
	require.False(t, r.IsReady())
}

func TestReadiness_CanDrainBeforeReady(t *testing.T) {
	// Signal during startup: the service must still refuse traffic and
	// never become ready afterwards.
	r := NewReadiness()
	r.BeginDraining()
	r.MarkReady()
	require.Equal(t, StateDraining, r.State())
}

func TestState_String(t *testing.T) {
	require.Equal(t, "starting", StateStarting.String())
	require.Equal(t, "ready", StateReady.String())
	require.Equal(t, "draining", StateDraining.String())
}
