package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ismaiel54/fix-trading-engine/internal/fix"
	"github.com/ismaiel54/fix-trading-engine/internal/observability"
)

// State is the session's liveness state
type State int32

const (
	StateDisconnected State = iota
	StateConnected
	StateLoggedOn
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnected:
		return "CONNECTED"
	case StateLoggedOn:
		return "LOGGED_ON"
	default:
		return "UNKNOWN"
	}
}

// Role distinguishes the accepting and initiating side of a session
type Role int

const (
	RoleAcceptor Role = iota
	RoleInitiator
)

func (r Role) String() string {
	if r == RoleAcceptor {
		return "acceptor"
	}
	return "initiator"
}

// Config holds per-session settings
type Config struct {
	Role        Role
	BeginString string

	// Identity. The acceptor may leave these empty and adopt them
	// from the first message the counterparty sends.
	SenderCompID string
	TargetCompID string

	HeartbeatInterval time.Duration
}

// AppHandler receives application-level messages (orders, execution
// reports, cancel rejects). It runs on the session's reader goroutine,
// so inbound messages are handled strictly in order.
type AppHandler func(s *Session, msg *fix.Message)

// Session is the per-connection FIX protocol state machine. It owns
// the sequence counters, logon/logout handling, heartbeat emission
// and test-request responses. All writes to the transport go through
// Send, which assigns the outgoing sequence number and writes the
// frame under one lock so concurrent senders can neither reuse a
// number nor interleave bytes.
type Session struct {
	cfg     Config
	conn    net.Conn
	framer  *fix.Framer
	logger  *zap.Logger
	metrics *observability.Metrics
	onApp   AppHandler

	writeMu    sync.Mutex
	outSeq     int
	sender     string
	target     string
	sentLogout bool

	inSeq atomic.Int64
	state atomic.Int32

	loggedOn  chan struct{}
	logonOnce sync.Once

	hbOnce   sync.Once
	stopOnce sync.Once
	stop     chan struct{}
}

// New wraps an established connection in a session in Connected state
func New(conn net.Conn, cfg Config, logger *zap.Logger, metrics *observability.Metrics, onApp AppHandler) *Session {
	s := &Session{
		cfg:      cfg,
		conn:     conn,
		framer:   fix.NewFramer(conn),
		logger:   logger.With(zap.String("role", cfg.Role.String()), zap.String("remote", conn.RemoteAddr().String())),
		metrics:  metrics,
		onApp:    onApp,
		outSeq:   1,
		sender:   cfg.SenderCompID,
		target:   cfg.TargetCompID,
		loggedOn: make(chan struct{}),
		stop:     make(chan struct{}),
	}
	s.state.Store(int32(StateConnected))
	return s
}

// State returns the current liveness state
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// Send stamps the message with the comp ids and the next outgoing
// sequence number, encodes it and writes the frame. The sequence
// number is consumed whether or not the write succeeds, so numbers
// are never reused.
func (s *Session) Send(msg *fix.Message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.sender != "" {
		msg.Set(fix.TagSenderCompID, s.sender)
	}
	if s.target != "" {
		msg.Set(fix.TagTargetCompID, s.target)
	}

	seq := s.outSeq
	s.outSeq++

	raw := msg.Encode(s.cfg.BeginString, seq, time.Now())
	if _, err := s.conn.Write(raw); err != nil {
		return fmt.Errorf("failed to write message seq %d: %w", seq, err)
	}

	s.metrics.MsgSent(msg.Type())
	s.logger.Debug("sent message",
		zap.String("msg_type", msg.Type()),
		zap.Int("seq", seq),
		zap.String("raw", fix.Readable(raw)),
	)
	return nil
}

// SendLogon sends the initiator's Logon, the entry action of the
// logon handshake.
func (s *Session) SendLogon() error {
	logon := fix.NewMessage(fix.MsgTypeLogon)
	logon.Set(fix.TagEncryptMethod, fix.EncryptMethodNone)
	logon.SetInt(fix.TagHeartBtInt, int(s.cfg.HeartbeatInterval.Seconds()))
	return s.Send(logon)
}

// SendHeartbeat sends a Heartbeat, echoing testReqID when non-empty
func (s *Session) SendHeartbeat(testReqID string) error {
	hb := fix.NewMessage(fix.MsgTypeHeartbeat)
	if testReqID != "" {
		hb.Set(fix.TagTestReqID, testReqID)
	}
	return s.Send(hb)
}

// SendTestRequest asks the counterparty to prove liveness
func (s *Session) SendTestRequest(testReqID string) error {
	tr := fix.NewMessage(fix.MsgTypeTestRequest)
	tr.Set(fix.TagTestReqID, testReqID)
	return s.Send(tr)
}

// Logout sends a Logout and marks the session logged off locally.
// The counterparty's reply is not waited for.
func (s *Session) Logout() error {
	s.writeMu.Lock()
	if s.sentLogout {
		s.writeMu.Unlock()
		return nil
	}
	s.sentLogout = true
	s.writeMu.Unlock()

	err := s.Send(fix.NewMessage(fix.MsgTypeLogout))
	s.setState(StateDisconnected)
	return err
}

// WaitForLogon blocks until the logon handshake completes
func (s *Session) WaitForLogon(timeout time.Duration) error {
	select {
	case <-s.loggedOn:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("logon not completed within %s", timeout)
	}
}

// Run reads frames until the transport fails, the context is
// canceled, or the session logs out. It is the session's single
// reader; inbound message order is preserved.
func (s *Session) Run(ctx context.Context) error {
	defer s.shutdown()

	go func() {
		select {
		case <-ctx.Done():
			s.conn.Close()
		case <-s.stop:
		}
	}()

	for {
		raw, err := s.framer.ReadMessage()
		if err != nil {
			if errors.Is(err, io.EOF) || s.State() == StateDisconnected || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("session read failed: %w", err)
		}
		s.handle(fix.Decode(raw))
		if s.State() == StateDisconnected {
			return nil
		}
	}
}

// Close tears the session down from outside the reader goroutine
func (s *Session) Close() {
	s.shutdown()
}

func (s *Session) shutdown() {
	s.stopOnce.Do(func() {
		s.setState(StateDisconnected)
		close(s.stop)
		s.conn.Close()
	})
}

// handle processes one inbound message. Every message counts against
// the incoming sequence, parsable or not; there is no gap detection
// or resend protocol, a mismatch only warns.
func (s *Session) handle(msg *fix.Message) {
	expected := s.inSeq.Add(1)
	msgType := msg.Type()
	s.metrics.MsgReceived(msgType)

	if got, err := msg.GetInt(fix.TagMsgSeqNum); err == nil && int64(got) != expected {
		s.logger.Warn("inbound sequence mismatch",
			zap.Int64("expected", expected),
			zap.Int("received", got),
		)
	}

	if msgType == "" {
		s.logger.Warn("message without MsgType dropped")
		return
	}

	s.learnCompIDs(msg)

	switch msgType {
	case fix.MsgTypeLogon:
		s.handleLogon()
	case fix.MsgTypeHeartbeat:
		s.logger.Debug("heartbeat received")
	case fix.MsgTypeTestRequest:
		if err := s.SendHeartbeat(msg.Get(fix.TagTestReqID)); err != nil {
			s.logger.Error("failed to answer test request", zap.Error(err))
		}
	case fix.MsgTypeLogout:
		s.handleLogout()
	default:
		if s.onApp != nil {
			s.onApp(s, msg)
		}
	}
}

// learnCompIDs adopts the counterparty ids from the first message
// when none were configured. Their SenderCompID is our target and
// their TargetCompID is our own id.
func (s *Session) learnCompIDs(msg *fix.Message) {
	s.writeMu.Lock()
	if s.sender == "" && msg.Has(fix.TagTargetCompID) {
		s.sender = msg.Get(fix.TagTargetCompID)
	}
	if s.target == "" && msg.Has(fix.TagSenderCompID) {
		s.target = msg.Get(fix.TagSenderCompID)
	}
	s.writeMu.Unlock()
}

func (s *Session) handleLogon() {
	s.setState(StateLoggedOn)

	if s.cfg.Role == RoleAcceptor {
		reply := fix.NewMessage(fix.MsgTypeLogon)
		reply.Set(fix.TagEncryptMethod, fix.EncryptMethodNone)
		reply.SetInt(fix.TagHeartBtInt, int(s.cfg.HeartbeatInterval.Seconds()))
		if err := s.Send(reply); err != nil {
			s.logger.Error("failed to send logon reply", zap.Error(err))
		}
	}

	s.logonOnce.Do(func() { close(s.loggedOn) })
	s.startHeartbeat()
	s.logger.Info("session logged on",
		zap.String("sender_comp_id", s.SenderCompID()),
		zap.String("target_comp_id", s.TargetCompID()),
	)
}

func (s *Session) handleLogout() {
	s.writeMu.Lock()
	initiated := s.sentLogout
	s.writeMu.Unlock()

	// The receiving side replies with its own Logout; the side that
	// initiated only marks itself logged off.
	if !initiated {
		if err := s.Send(fix.NewMessage(fix.MsgTypeLogout)); err != nil {
			s.logger.Error("failed to send logout reply", zap.Error(err))
		}
	}
	s.setState(StateDisconnected)
	s.logger.Info("session logged out")
}

// startHeartbeat emits a Heartbeat every interval while logged on.
// The timer goroutine shares the outbound path with the reader's
// responses through Send's writer lock.
func (s *Session) startHeartbeat() {
	s.hbOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(s.cfg.HeartbeatInterval)
			defer ticker.Stop()
			for {
				select {
				case <-s.stop:
					return
				case <-ticker.C:
					if s.State() != StateLoggedOn {
						continue
					}
					if err := s.SendHeartbeat(""); err != nil {
						s.logger.Warn("heartbeat send failed", zap.Error(err))
						return
					}
				}
			}
		}()
	})
}

// OutgoingSeq returns the last assigned outgoing sequence number
func (s *Session) OutgoingSeq() int {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.outSeq - 1
}

// IncomingSeq returns the number of messages received
func (s *Session) IncomingSeq() int64 {
	return s.inSeq.Load()
}

// SenderCompID returns our session id
func (s *Session) SenderCompID() string {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.sender
}

// TargetCompID returns the counterparty's session id
func (s *Session) TargetCompID() string {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.target
}
