package transfer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusPending, StatusApproved},
		{StatusPending, StatusCancelled},
		{StatusPending, StatusRejected},
		{StatusPending, StatusFailed},
		{StatusApproved, StatusInTransit},
		{StatusApproved, StatusCancelled},
		{StatusApproved, StatusRejected},
		{StatusApproved, StatusFailed},
		{StatusInTransit, StatusCompleted},
		{StatusInTransit, StatusFailed},
	}
	for _, edge := range allowed {
		require.True(t, CanTransition(edge.from, edge.to), "%s -> %s", edge.from, edge.to)
	}

	denied := []struct{ from, to Status }{
		{StatusPending, StatusInTransit},
		{StatusPending, StatusCompleted},
		{StatusApproved, StatusCompleted},
		{StatusInTransit, StatusCancelled},
		{StatusInTransit, StatusRejected},
		{StatusCompleted, StatusFailed},
		{StatusCancelled, StatusApproved},
		{StatusRejected, StatusPending},
		{StatusFailed, StatusPending},
	}
	for _, edge := range denied {
		require.False(t, CanTransition(edge.from, edge.to), "%s -> %s", edge.from, edge.to)
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusCancelled, StatusRejected, StatusFailed} {
		require.True(t, s.Terminal(), string(s))
	}
	for _, s := range []Status{StatusPending, StatusApproved, StatusInTransit} {
		require.False(t, s.Terminal(), string(s))
	}
}
