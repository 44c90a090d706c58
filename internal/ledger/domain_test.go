package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSlotLowStock(t *testing.T) {
	cases := []struct {
		name string
		qty  int64
		rl   int64
		want bool
	}{
		{"above reorder", 50, 10, false},
		{"at reorder", 10, 10, true},
		{"below reorder", 3, 10, true},
		{"zero reorder zero qty", 0, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			slot := Slot{QuantityOnHand: tc.qty, ReorderLevel: tc.rl}
			require.Equal(t, tc.want, slot.LowStock())
		})
	}
}

func TestSlotOverMax(t *testing.T) {
	require.False(t, Slot{QuantityOnHand: 100, MaxLevel: 0}.OverMax())
	require.False(t, Slot{QuantityOnHand: 100, MaxLevel: 100}.OverMax())
	require.True(t, Slot{QuantityOnHand: 101, MaxLevel: 100}.OverMax())
}

func TestLifecycleActive(t *testing.T) {
	require.True(t, Lifecycle{}.Active())
	now := time.Now().UTC()
	require.False(t, Lifecycle{DeletedAt: &now, DeletedBy: 1}.Active())
}
