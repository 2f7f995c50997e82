package engine

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ismaiel54/fix-trading-engine/internal/config"
	"github.com/ismaiel54/fix-trading-engine/internal/fix"
	"github.com/ismaiel54/fix-trading-engine/internal/observability"
	"github.com/ismaiel54/fix-trading-engine/internal/order"
	"github.com/ismaiel54/fix-trading-engine/internal/session"
)

// ExecReportHandler observes execution reports applied to the
// client's order mirror
type ExecReportHandler func(snap order.Snapshot, msg *fix.Message)

// CancelRejectHandler observes Order Cancel Reject replies
type CancelRejectHandler func(msg *fix.Message)

// Client is the FIX initiator. It connects once, runs one session,
// and mirrors its outstanding orders from inbound execution reports.
type Client struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *observability.Metrics
	orders  *order.Registry

	sess   *session.Session
	runErr chan error

	mu             sync.RWMutex
	onExecReport   ExecReportHandler
	onCancelReject CancelRejectHandler
}

// NewClient creates a client. metrics may be nil.
func NewClient(cfg *config.Config, metrics *observability.Metrics, logger *zap.Logger) *Client {
	return &Client{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		orders:  order.NewRegistry(),
		runErr:  make(chan error, 1),
	}
}

// Connect dials the server, starts the session reader and sends the
// Logon. Use WaitForLogon to block until the handshake completes.
func (c *Client) Connect(ctx context.Context) error {
	addr := c.cfg.FIXDialAddr()
	c.logger.Info("connecting", zap.String("addr", addr))

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	c.sess = session.New(conn, session.Config{
		Role:              session.RoleInitiator,
		BeginString:       c.cfg.BeginString,
		SenderCompID:      c.cfg.SenderCompID,
		TargetCompID:      c.cfg.TargetCompID,
		HeartbeatInterval: c.cfg.HeartbeatInterval,
	}, c.logger, c.metrics, c.handleAppMessage)

	go func() {
		c.runErr <- c.sess.Run(ctx)
	}()

	if err := c.sess.SendLogon(); err != nil {
		c.sess.Close()
		return fmt.Errorf("failed to send logon: %w", err)
	}
	return nil
}

// WaitForLogon blocks until the counterpart's Logon completes the
// handshake
func (c *Client) WaitForLogon(timeout time.Duration) error {
	return c.sess.WaitForLogon(timeout)
}

// Session exposes the underlying session
func (c *Client) Session() *session.Session {
	return c.sess
}

// OnExecutionReport registers a handler called after each execution
// report is applied to the local mirror
func (c *Client) OnExecutionReport(fn ExecReportHandler) {
	c.mu.Lock()
	c.onExecReport = fn
	c.mu.Unlock()
}

// OnCancelReject registers a handler for Order Cancel Reject replies
func (c *Client) OnCancelReject(fn CancelRejectHandler) {
	c.mu.Lock()
	c.onCancelReject = fn
	c.mu.Unlock()
}

// SendNewOrderSingle submits an order and registers it locally in
// Pending state before the send
func (c *Client) SendNewOrderSingle(clOrdID, symbol string, side fix.Side, ordType fix.OrdType, qty, price decimal.Decimal) error {
	if c.sess.State() != session.StateLoggedOn {
		return fmt.Errorf("cannot send order: not logged on")
	}

	msg := fix.NewMessage(fix.MsgTypeNewOrderSingle)
	msg.Set(fix.TagClOrdID, clOrdID)
	msg.Set(fix.TagSymbol, symbol)
	msg.Set(fix.TagSide, string(side))
	msg.SetDecimal(fix.TagOrderQty, qty)
	msg.Set(fix.TagOrdType, string(ordType))
	if ordType == fix.OrdTypeLimit {
		msg.SetDecimal(fix.TagPrice, price)
	}
	msg.Set(fix.TagTimeInForce, string(fix.TimeInForceDay))
	msg.Set(fix.TagTransactTime, time.Now().UTC().Format(fix.TimestampFormat))

	c.orders.Put(clOrdID, order.New("", clOrdID, symbol, side, ordType, qty, price))

	if err := c.sess.Send(msg); err != nil {
		return fmt.Errorf("failed to send new order %s: %w", clOrdID, err)
	}
	c.logger.Info("order sent", zap.String("cl_ord_id", clOrdID), zap.String("symbol", symbol))
	return nil
}

// SendOrderCancelRequest asks the server to cancel an outstanding
// order
func (c *Client) SendOrderCancelRequest(origClOrdID string) error {
	o, ok := c.orders.Get(origClOrdID)
	if !ok {
		return fmt.Errorf("order not found: %s", origClOrdID)
	}
	snap := o.Snapshot()

	msg := fix.NewMessage(fix.MsgTypeOrderCancelRequest)
	msg.Set(fix.TagOrigClOrdID, origClOrdID)
	msg.Set(fix.TagClOrdID, "CXL-"+uuid.NewString())
	msg.Set(fix.TagSymbol, snap.Symbol)
	msg.Set(fix.TagSide, string(snap.Side))
	msg.Set(fix.TagTransactTime, time.Now().UTC().Format(fix.TimestampFormat))

	if err := c.sess.Send(msg); err != nil {
		return fmt.Errorf("failed to send cancel for %s: %w", origClOrdID, err)
	}
	c.logger.Info("cancel request sent", zap.String("orig_cl_ord_id", origClOrdID))
	return nil
}

// SendOrderCancelReplaceRequest asks the server to amend quantity
// and price under a new client order id
func (c *Client) SendOrderCancelReplaceRequest(origClOrdID, newClOrdID string, qty, price decimal.Decimal) error {
	o, ok := c.orders.Get(origClOrdID)
	if !ok {
		return fmt.Errorf("order not found: %s", origClOrdID)
	}
	snap := o.Snapshot()

	msg := fix.NewMessage(fix.MsgTypeOrderCancelReplace)
	msg.Set(fix.TagOrigClOrdID, origClOrdID)
	msg.Set(fix.TagClOrdID, newClOrdID)
	msg.Set(fix.TagSymbol, snap.Symbol)
	msg.Set(fix.TagSide, string(snap.Side))
	msg.SetDecimal(fix.TagOrderQty, qty)
	msg.Set(fix.TagOrdType, string(snap.OrdType))
	msg.SetDecimal(fix.TagPrice, price)
	msg.Set(fix.TagTransactTime, time.Now().UTC().Format(fix.TimestampFormat))

	if err := c.sess.Send(msg); err != nil {
		return fmt.Errorf("failed to send replace for %s: %w", origClOrdID, err)
	}
	c.logger.Info("replace request sent",
		zap.String("orig_cl_ord_id", origClOrdID),
		zap.String("cl_ord_id", newClOrdID),
	)
	return nil
}

// SendOrderStatusRequest asks for a snapshot execution report
func (c *Client) SendOrderStatusRequest(clOrdID string) error {
	o, ok := c.orders.Get(clOrdID)
	if !ok {
		return fmt.Errorf("order not found: %s", clOrdID)
	}
	snap := o.Snapshot()

	msg := fix.NewMessage(fix.MsgTypeOrderStatusRequest)
	msg.Set(fix.TagClOrdID, clOrdID)
	msg.Set(fix.TagSymbol, snap.Symbol)
	msg.Set(fix.TagSide, string(snap.Side))

	if err := c.sess.Send(msg); err != nil {
		return fmt.Errorf("failed to send status request for %s: %w", clOrdID, err)
	}
	return nil
}

// Order returns a snapshot of a locally tracked order
func (c *Client) Order(clOrdID string) (order.Snapshot, bool) {
	o, ok := c.orders.Get(clOrdID)
	if !ok {
		return order.Snapshot{}, false
	}
	return o.Snapshot(), true
}

// Orders returns snapshots of every locally tracked order
func (c *Client) Orders() []order.Snapshot {
	all := c.orders.All()
	out := make([]order.Snapshot, 0, len(all))
	for _, o := range all {
		out = append(out, o.Snapshot())
	}
	return out
}

// Logout sends a Logout and closes the session once the reader
// winds down
func (c *Client) Logout() error {
	if err := c.sess.Logout(); err != nil {
		c.sess.Close()
		return err
	}

	select {
	case <-c.runErr:
	case <-time.After(2 * time.Second):
	}
	c.sess.Close()
	c.logger.Info("disconnected")
	return nil
}

// handleAppMessage processes execution reports and cancel rejects on
// the session's reader goroutine, so the mirror registry only ever
// has this one writer.
func (c *Client) handleAppMessage(_ *session.Session, msg *fix.Message) {
	switch msg.Type() {
	case fix.MsgTypeExecutionReport:
		c.handleExecutionReport(msg)
	case fix.MsgTypeOrderCancelReject:
		c.logger.Info("cancel rejected by server",
			zap.String("orig_cl_ord_id", msg.Get(fix.TagOrigClOrdID)),
			zap.String("text", msg.Get(fix.TagText)),
		)
		c.mu.RLock()
		fn := c.onCancelReject
		c.mu.RUnlock()
		if fn != nil {
			fn(msg)
		}
	default:
		c.logger.Debug("ignoring message", zap.String("msg_type", msg.Type()))
	}
}

// handleExecutionReport applies a report to the local mirror. A
// Replaced report re-keys the mirror under the new client order id.
// Reports that match no local order are ignored, not errors.
func (c *Client) handleExecutionReport(msg *fix.Message) {
	clOrdID := msg.Get(fix.TagClOrdID)

	o, ok := c.orders.Get(clOrdID)
	if !ok && msg.Has(fix.TagOrigClOrdID) {
		orig := msg.Get(fix.TagOrigClOrdID)
		if prev, found := c.orders.Get(orig); found {
			c.orders.Rekey(orig, clOrdID)
			o, ok = prev, true
		}
	}
	if !ok {
		c.logger.Debug("execution report for unknown order ignored", zap.String("cl_ord_id", clOrdID))
		return
	}

	execType := fix.ExecType(msg.Get(fix.TagExecType))
	status := order.StatusFromOrdStatus(fix.OrdStatus(msg.Get(fix.TagOrdStatus)))

	if execType == fix.ExecTypeReplaced {
		qty := o.Snapshot().Qty
		price := o.Snapshot().Price
		if msg.Has(fix.TagOrderQty) {
			if v, err := msg.GetDecimal(fix.TagOrderQty); err == nil {
				qty = v
			}
		}
		if msg.Has(fix.TagPrice) {
			if v, err := msg.GetDecimal(fix.TagPrice); err == nil {
				price = v
			}
		}
		o.UpdateTerms(clOrdID, qty, price)
	}

	cum := o.Snapshot().CumQty
	if msg.Has(fix.TagCumQty) {
		if v, err := msg.GetDecimal(fix.TagCumQty); err == nil {
			cum = v
		}
	} else if msg.Has(fix.TagLastQty) {
		if v, err := msg.GetDecimal(fix.TagLastQty); err == nil {
			cum = cum.Add(v)
		}
	}
	o.UpdateFromReport(status, cum)

	snap := o.Snapshot()
	c.logger.Info("execution report",
		zap.String("cl_ord_id", snap.ClOrdID),
		zap.String("exec_type", string(execType)),
		zap.String("status", snap.Status.String()),
		zap.String("cum_qty", snap.CumQty.String()),
	)

	c.mu.RLock()
	fn := c.onExecReport
	c.mu.RUnlock()
	if fn != nil {
		fn(snap, msg)
	}
}
