package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ismaiel54/fix-trading-engine/internal/fix"
	"github.com/ismaiel54/fix-trading-engine/internal/order"
	"github.com/ismaiel54/fix-trading-engine/internal/session"
)

var two = decimal.NewFromInt(2)

// spawnFillSimulator launches one asynchronous fill simulator for the
// order and registers its cancel function against the order, so a
// cancel or replace can signal the task directly instead of waiting
// for the next poll.
func (s *Server) spawnFillSimulator(sess *session.Session, o *order.Order) {
	base := s.baseCtx
	if base == nil {
		base = context.Background()
	}
	ctx, cancel := context.WithCancel(base)
	o.SetFillCancel(cancel)
	go s.runFillSimulator(ctx, sess, o)
}

// runFillSimulator drives one order through the simulated lifecycle:
// wait, partial fill of half the quantity, wait, full fill. The order
// status is re-checked after every wait so a cancellation that lands
// first always wins; a canceled order is never advanced.
func (s *Server) runFillSimulator(ctx context.Context, sess *session.Session, o *order.Order) {
	snap := o.Snapshot()

	if !s.wait(ctx, s.timing.FirstFillDelay(snap.OrdType)) {
		return
	}

	half := snap.Qty.Sub(snap.CumQty).Div(two).Floor()
	if half.IsPositive() {
		if !o.ApplyPartialFill(half) {
			return
		}
		s.logger.Info("order partially filled",
			zap.String("cl_ord_id", o.ClOrdID()),
			zap.String("last_qty", half.String()),
		)
		s.sendExecReport(sess, o.Snapshot(), fix.ExecTypePartialFill, half, "")
		s.metrics.Fill()
	}

	if !s.wait(ctx, s.timing.SecondFillDelay()) {
		return
	}

	before := o.Snapshot()
	if !o.ApplyFullFill() {
		return
	}
	filled := o.Snapshot()
	lastQty := filled.Qty.Sub(before.CumQty)

	s.logger.Info("order filled",
		zap.String("cl_ord_id", filled.ClOrdID),
		zap.String("cum_qty", filled.CumQty.String()),
	)
	s.sendExecReport(sess, filled, fix.ExecTypeFill, lastQty, "")
	s.metrics.Fill()
}

// wait sleeps for d unless the simulator is signaled first
func (s *Server) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
