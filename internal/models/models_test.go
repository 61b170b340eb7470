package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	require.True(t, CanTransition(StatusQueued, StatusInWork))
	require.True(t, CanTransition(StatusQueued, StatusRemoved))
	require.True(t, CanTransition(StatusInWork, StatusHeld))
	require.True(t, CanTransition(StatusInWork, StatusDropped))
	require.True(t, CanTransition(StatusInWork, StatusRemoved))

	require.False(t, CanTransition(StatusQueued, StatusHeld))
	require.False(t, CanTransition(StatusHeld, StatusInWork))
	require.False(t, CanTransition(StatusDropped, StatusQueued))
	require.False(t, CanTransition(StatusRemoved, StatusInWork))
}

func TestTerminalStates(t *testing.T) {
	require.False(t, StatusQueued.Terminal())
	require.False(t, StatusInWork.Terminal())
	require.True(t, StatusHeld.Terminal())
	require.True(t, StatusDropped.Terminal())
	require.True(t, StatusRemoved.Terminal())
}

func TestOutcomeStatus(t *testing.T) {
	require.Equal(t, StatusHeld, OutcomeHeld.Status())
	require.Equal(t, StatusDropped, OutcomeDropped.Status())
}
