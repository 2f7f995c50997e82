package order

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ismaiel54/fix-trading-engine/internal/fix"
)

func newTestOrder(qty int64) *Order {
	return New("EXE-1", "T1", "AAPL", fix.SideBuy, fix.OrdTypeLimit,
		decimal.NewFromInt(qty), decimal.RequireFromString("150.50"))
}

func TestOrder_Lifecycle(t *testing.T) {
	o := newTestOrder(100)
	assert.Equal(t, StatusPending, o.Status())

	require.True(t, o.Ack())
	assert.Equal(t, StatusNew, o.Status())
	assert.False(t, o.Ack(), "second ack refused")

	require.True(t, o.ApplyPartialFill(decimal.NewFromInt(50)))
	snap := o.Snapshot()
	assert.Equal(t, StatusPartiallyFilled, snap.Status)
	assert.True(t, snap.CumQty.Equal(decimal.NewFromInt(50)))

	require.True(t, o.ApplyFullFill())
	snap = o.Snapshot()
	assert.Equal(t, StatusFilled, snap.Status)
	assert.True(t, snap.CumQty.Equal(snap.Qty), "Filled implies CumQty equals OrderQty")
}

func TestOrder_FillNeverExceedsQty(t *testing.T) {
	o := newTestOrder(10)
	o.Ack()

	require.True(t, o.ApplyPartialFill(decimal.NewFromInt(8)))
	require.True(t, o.ApplyPartialFill(decimal.NewFromInt(8)))

	snap := o.Snapshot()
	assert.True(t, snap.CumQty.Equal(decimal.NewFromInt(10)), "cum qty clamped to order qty")
	assert.Equal(t, StatusFilled, snap.Status)
}

func TestOrder_CancelIsAbsorbing(t *testing.T) {
	o := newTestOrder(100)
	o.Ack()

	require.True(t, o.Cancel())
	assert.Equal(t, StatusCanceled, o.Status())

	assert.False(t, o.ApplyPartialFill(decimal.NewFromInt(10)), "no fill after cancel")
	assert.False(t, o.ApplyFullFill(), "no full fill after cancel")
	assert.False(t, o.Cancel(), "cancel of canceled order refused")
	assert.Equal(t, StatusCanceled, o.Status())
	assert.True(t, o.Snapshot().CumQty.IsZero())
}

func TestOrder_CancelAfterFillRefused(t *testing.T) {
	o := newTestOrder(100)
	o.Ack()
	require.True(t, o.ApplyFullFill())

	assert.False(t, o.Cancel())
	assert.Equal(t, StatusFilled, o.Status())
}

func TestOrder_CancelSignalsFillSimulator(t *testing.T) {
	o := newTestOrder(100)
	o.Ack()

	ctx, cancel := context.WithCancel(context.Background())
	o.SetFillCancel(cancel)

	require.True(t, o.Cancel())
	assert.Error(t, ctx.Err(), "fill simulator context canceled")
}

func TestOrder_Replace(t *testing.T) {
	o := newTestOrder(10)
	o.Ack()
	require.True(t, o.ApplyPartialFill(decimal.NewFromInt(5)))

	require.True(t, o.Replace("T1R", decimal.NewFromInt(20), decimal.RequireFromString("690")))
	snap := o.Snapshot()
	assert.Equal(t, "T1R", snap.ClOrdID)
	assert.Equal(t, StatusNew, snap.Status)
	assert.True(t, snap.Qty.Equal(decimal.NewFromInt(20)))
	assert.True(t, snap.Price.Equal(decimal.RequireFromString("690")))
	assert.True(t, snap.CumQty.Equal(decimal.NewFromInt(5)), "cumulative fill retained across replace")
}

func TestOrder_ReplaceRefused(t *testing.T) {
	filled := newTestOrder(10)
	filled.Ack()
	filled.ApplyFullFill()
	assert.False(t, filled.Replace("R1", decimal.NewFromInt(20), decimal.NewFromInt(1)))

	canceled := newTestOrder(10)
	canceled.Ack()
	canceled.Cancel()
	assert.False(t, canceled.Replace("R2", decimal.NewFromInt(20), decimal.NewFromInt(1)))

	partial := newTestOrder(10)
	partial.Ack()
	partial.ApplyPartialFill(decimal.NewFromInt(5))
	assert.False(t, partial.Replace("R3", decimal.NewFromInt(5), decimal.NewFromInt(1)),
		"new qty must exceed the cumulative fill")
}

func TestOrder_ConcurrentFillAndCancel(t *testing.T) {
	// Many racing fills and one cancel must never break the
	// invariants, whatever the interleaving.
	o := newTestOrder(100)
	o.Ack()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.ApplyPartialFill(decimal.NewFromInt(30))
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		o.Cancel()
	}()
	wg.Wait()

	snap := o.Snapshot()
	assert.True(t, snap.CumQty.LessThanOrEqual(snap.Qty))
	if snap.Status == StatusFilled {
		assert.True(t, snap.CumQty.Equal(snap.Qty))
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	o := newTestOrder(100)
	r.Put("T1", o)

	got, ok := r.Get("T1")
	require.True(t, ok)
	assert.Same(t, o, got)

	require.True(t, r.Rekey("T1", "T2"))
	_, ok = r.Get("T1")
	assert.False(t, ok)
	got, ok = r.Get("T2")
	require.True(t, ok)
	assert.Same(t, o, got)

	assert.False(t, r.Rekey("missing", "X"))
	assert.Equal(t, 1, r.Len())
	assert.Len(t, r.All(), 1)
}
