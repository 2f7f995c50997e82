package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ismaiel54/fix-trading-engine/internal/config"
	"github.com/ismaiel54/fix-trading-engine/internal/dropcopy"
	"github.com/ismaiel54/fix-trading-engine/internal/fix"
	"github.com/ismaiel54/fix-trading-engine/internal/observability"
	"github.com/ismaiel54/fix-trading-engine/internal/order"
	"github.com/ismaiel54/fix-trading-engine/internal/session"
	"github.com/ismaiel54/fix-trading-engine/internal/sim"
)

// Server is the FIX acceptor. It listens for connections, runs one
// session per client and owns the single authoritative order
// registry shared by every session handler and fill simulator.
type Server struct {
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *observability.Metrics
	timing   *sim.Timing
	dropCopy *dropcopy.Publisher
	orders   *order.Registry

	listener net.Listener
	baseCtx  context.Context
}

// NewServer creates a server. metrics and dropCopy may be nil.
func NewServer(cfg *config.Config, timing *sim.Timing, dropCopy *dropcopy.Publisher, metrics *observability.Metrics, logger *zap.Logger) *Server {
	return &Server{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		timing:   timing,
		dropCopy: dropCopy,
		orders:   order.NewRegistry(),
	}
}

// Listen binds the FIX listener
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.cfg.FIXAddr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.FIXAddr(), err)
	}
	s.listener = listener
	s.logger.Info("FIX server listening", zap.String("addr", listener.Addr().String()))
	return nil
}

// Addr returns the bound listener address
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until ctx is canceled. Each accepted
// connection gets its own session and reader goroutine.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	s.baseCtx = ctx

	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn("accept failed", zap.Error(err))
			continue
		}

		s.logger.Info("client connected", zap.String("remote", conn.RemoteAddr().String()))
		go s.serveConn(ctx, conn)
	}
}

// Orders exposes the authoritative registry (used by tests and the
// status endpoint consumers)
func (s *Server) Orders() *order.Registry {
	return s.orders
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	s.metrics.SessionOpened()
	defer s.metrics.SessionClosed()

	sess := session.New(conn, session.Config{
		Role:              session.RoleAcceptor,
		BeginString:       s.cfg.BeginString,
		SenderCompID:      s.cfg.SenderCompID,
		TargetCompID:      s.cfg.TargetCompID,
		HeartbeatInterval: s.cfg.HeartbeatInterval,
	}, s.logger, s.metrics, s.handleAppMessage)

	if err := sess.Run(ctx); err != nil {
		s.logger.Error("session ended with error", zap.Error(err))
		return
	}
	s.logger.Info("session closed", zap.String("remote", conn.RemoteAddr().String()))
}

// handleAppMessage dispatches application messages by type. It runs
// on the session's reader goroutine.
func (s *Server) handleAppMessage(sess *session.Session, msg *fix.Message) {
	switch msg.Type() {
	case fix.MsgTypeNewOrderSingle:
		s.handleNewOrder(sess, msg)
	case fix.MsgTypeOrderCancelRequest:
		s.handleCancelRequest(sess, msg)
	case fix.MsgTypeOrderCancelReplace:
		s.handleReplaceRequest(sess, msg)
	case fix.MsgTypeOrderStatusRequest:
		s.handleStatusRequest(sess, msg)
	default:
		s.logger.Warn("unhandled message type", zap.String("msg_type", msg.Type()))
	}
}

// handleNewOrder acknowledges the order and launches its fill
// simulator.
func (s *Server) handleNewOrder(sess *session.Session, msg *fix.Message) {
	clOrdID := msg.Get(fix.TagClOrdID)
	symbol := msg.Get(fix.TagSymbol)
	side := fix.Side(msg.Get(fix.TagSide))
	ordType := fix.OrdType(msg.Get(fix.TagOrdType))
	if ordType == "" {
		ordType = fix.OrdTypeLimit
	}

	qty, err := msg.GetDecimal(fix.TagOrderQty)
	if err != nil {
		s.logger.Error("new order with unusable quantity dropped",
			zap.String("cl_ord_id", clOrdID),
			zap.Error(err),
		)
		return
	}

	price := decimal.Zero
	if msg.Has(fix.TagPrice) {
		price, err = msg.GetDecimal(fix.TagPrice)
		if err != nil {
			s.logger.Error("new order with unusable price dropped",
				zap.String("cl_ord_id", clOrdID),
				zap.Error(err),
			)
			return
		}
	}

	o := order.New(uuid.NewString(), clOrdID, symbol, side, ordType, qty, price)
	if _, exists := s.orders.Get(clOrdID); exists {
		s.logger.Warn("duplicate ClOrdID overwrites existing order", zap.String("cl_ord_id", clOrdID))
	}
	s.orders.Put(clOrdID, o)
	o.Ack()

	s.logger.Info("order accepted",
		zap.String("cl_ord_id", clOrdID),
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.String("qty", qty.String()),
		zap.String("price", price.String()),
	)

	s.sendExecReport(sess, o.Snapshot(), fix.ExecTypeNew, decimal.Zero, "")
	s.metrics.OrderAccepted()

	s.spawnFillSimulator(sess, o)
}

// handleCancelRequest cancels the referenced order or replies with a
// Cancel Reject naming the reason.
func (s *Server) handleCancelRequest(sess *session.Session, msg *fix.Message) {
	origClOrdID := msg.Get(fix.TagOrigClOrdID)
	clOrdID := msg.Get(fix.TagClOrdID)

	o, ok := s.orders.Get(origClOrdID)
	if !ok {
		s.sendCancelReject(sess, clOrdID, origClOrdID, nil, fmt.Sprintf("unknown order %s", origClOrdID))
		return
	}

	if !o.Cancel() {
		snap := o.Snapshot()
		s.sendCancelReject(sess, clOrdID, origClOrdID, &snap,
			fmt.Sprintf("order %s cannot be canceled in status %s", origClOrdID, snap.Status))
		return
	}

	s.logger.Info("order canceled", zap.String("cl_ord_id", origClOrdID))
	s.sendExecReport(sess, o.Snapshot(), fix.ExecTypeCanceled, decimal.Zero, origClOrdID)
	s.metrics.Cancel()
}

// handleReplaceRequest overwrites quantity/price under the new
// client order id, keeps the cumulative fill, and restarts the fill
// simulator for the remaining quantity.
func (s *Server) handleReplaceRequest(sess *session.Session, msg *fix.Message) {
	origClOrdID := msg.Get(fix.TagOrigClOrdID)
	newClOrdID := msg.Get(fix.TagClOrdID)

	o, ok := s.orders.Get(origClOrdID)
	if !ok {
		s.sendCancelReject(sess, newClOrdID, origClOrdID, nil, fmt.Sprintf("unknown order %s", origClOrdID))
		return
	}

	snap := o.Snapshot()
	qty := snap.Qty
	price := snap.Price
	var err error
	if msg.Has(fix.TagOrderQty) {
		if qty, err = msg.GetDecimal(fix.TagOrderQty); err != nil {
			s.logger.Error("replace with unusable quantity dropped", zap.Error(err))
			return
		}
	}
	if msg.Has(fix.TagPrice) {
		if price, err = msg.GetDecimal(fix.TagPrice); err != nil {
			s.logger.Error("replace with unusable price dropped", zap.Error(err))
			return
		}
	}

	if !o.Replace(newClOrdID, qty, price) {
		snap = o.Snapshot()
		s.sendCancelReject(sess, newClOrdID, origClOrdID, &snap,
			fmt.Sprintf("order %s cannot be replaced in status %s", origClOrdID, snap.Status))
		return
	}
	s.orders.Rekey(origClOrdID, newClOrdID)

	s.logger.Info("order replaced",
		zap.String("orig_cl_ord_id", origClOrdID),
		zap.String("cl_ord_id", newClOrdID),
		zap.String("qty", qty.String()),
		zap.String("price", price.String()),
	)
	s.sendExecReport(sess, o.Snapshot(), fix.ExecTypeReplaced, decimal.Zero, origClOrdID)

	s.spawnFillSimulator(sess, o)
}

// handleStatusRequest replies with a snapshot execution report
// without mutating the order.
func (s *Server) handleStatusRequest(sess *session.Session, msg *fix.Message) {
	clOrdID := msg.Get(fix.TagClOrdID)
	o, ok := s.orders.Get(clOrdID)
	if !ok {
		s.logger.Warn("status request for unknown order ignored", zap.String("cl_ord_id", clOrdID))
		return
	}
	s.sendExecReport(sess, o.Snapshot(), fix.ExecTypeOrderStatus, decimal.Zero, "")
}

// sendExecReport emits an Execution Report for the order's current
// state and mirrors it onto the drop-copy feed. origClOrdID is set on
// reports answering a cancel or replace, so the counterparty can chase
// the chain from the id it last knew.
func (s *Server) sendExecReport(sess *session.Session, snap order.Snapshot, execType fix.ExecType, lastQty decimal.Decimal, origClOrdID string) {
	execID := uuid.NewString()

	report := fix.NewMessage(fix.MsgTypeExecutionReport)
	report.Set(fix.TagOrderID, snap.OrderID)
	report.Set(fix.TagClOrdID, snap.ClOrdID)
	if origClOrdID != "" {
		report.Set(fix.TagOrigClOrdID, origClOrdID)
	}
	report.Set(fix.TagExecID, execID)
	report.Set(fix.TagExecType, string(execType))
	report.Set(fix.TagOrdStatus, string(snap.Status.OrdStatus()))
	report.Set(fix.TagSymbol, snap.Symbol)
	report.Set(fix.TagSide, string(snap.Side))
	report.SetDecimal(fix.TagOrderQty, snap.Qty)
	report.Set(fix.TagOrdType, string(snap.OrdType))
	report.SetDecimal(fix.TagPrice, snap.Price)
	report.SetDecimal(fix.TagCumQty, snap.CumQty)

	leaves := snap.Qty.Sub(snap.CumQty)
	if snap.Status == order.StatusCanceled || snap.Status == order.StatusRejected {
		leaves = decimal.Zero
	}
	report.SetDecimal(fix.TagLeavesQty, leaves)

	if lastQty.IsPositive() {
		report.SetDecimal(fix.TagLastQty, lastQty)
		report.SetDecimal(fix.TagLastPx, snap.Price)
	}
	report.Set(fix.TagTransactTime, time.Now().UTC().Format(fix.TimestampFormat))

	if err := sess.Send(report); err != nil {
		s.logger.Error("failed to send execution report",
			zap.String("cl_ord_id", snap.ClOrdID),
			zap.String("exec_type", string(execType)),
			zap.Error(err),
		)
		return
	}

	if err := s.dropCopy.Publish(s.dropCopyCtx(), dropcopy.ExecEvent{
		ExecID:       execID,
		OrderID:      snap.OrderID,
		ClOrdID:      snap.ClOrdID,
		Symbol:       snap.Symbol,
		Side:         string(snap.Side),
		ExecType:     string(execType),
		OrdStatus:    string(snap.Status.OrdStatus()),
		OrderQty:     snap.Qty.String(),
		CumQty:       snap.CumQty.String(),
		Price:        snap.Price.String(),
		TsUnixMillis: time.Now().UnixMilli(),
	}); err != nil {
		s.logger.Warn("drop-copy publish failed", zap.Error(err))
	}
}

// sendCancelReject answers a cancel or replace that cannot be
// honored. Business rejections are protocol replies, not errors.
func (s *Server) sendCancelReject(sess *session.Session, clOrdID, origClOrdID string, snap *order.Snapshot, reason string) {
	reject := fix.NewMessage(fix.MsgTypeOrderCancelReject)
	if snap != nil {
		reject.Set(fix.TagOrderID, snap.OrderID)
		reject.Set(fix.TagOrdStatus, string(snap.Status.OrdStatus()))
	} else {
		reject.Set(fix.TagOrderID, "NONE")
	}
	reject.Set(fix.TagClOrdID, clOrdID)
	reject.Set(fix.TagOrigClOrdID, origClOrdID)
	reject.Set(fix.TagText, reason)

	s.logger.Info("cancel rejected",
		zap.String("orig_cl_ord_id", origClOrdID),
		zap.String("reason", reason),
	)
	if err := sess.Send(reject); err != nil {
		s.logger.Error("failed to send cancel reject", zap.Error(err))
	}
	s.metrics.CancelReject()
}

func (s *Server) dropCopyCtx() context.Context {
	if s.baseCtx != nil {
		return s.baseCtx
	}
	return context.Background()
}
