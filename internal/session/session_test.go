package session

import (
	"context"
	"net"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ismaiel54/fix-trading-engine/internal/fix"
)

func acceptorConfig() Config {
	return Config{
		Role:              RoleAcceptor,
		BeginString:       "FIX.4.4",
		SenderCompID:      "SERVER_EXCHANGE",
		TargetCompID:      "CLIENT_TRADER",
		HeartbeatInterval: 30 * time.Second,
	}
}

func initiatorConfig() Config {
	return Config{
		Role:              RoleInitiator,
		BeginString:       "FIX.4.4",
		SenderCompID:      "CLIENT_TRADER",
		TargetCompID:      "SERVER_EXCHANGE",
		HeartbeatInterval: 30 * time.Second,
	}
}

// startPair wires an acceptor and an initiator over an in-memory pipe
// and runs both reader loops.
func startPair(t *testing.T, acceptorApp, initiatorApp AppHandler) (*Session, *Session) {
	t.Helper()
	serverConn, clientConn := net.Pipe()

	acc := New(serverConn, acceptorConfig(), zap.NewNop(), nil, acceptorApp)
	ini := New(clientConn, initiatorConfig(), zap.NewNop(), nil, initiatorApp)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go acc.Run(ctx)
	go ini.Run(ctx)
	t.Cleanup(acc.Close)
	t.Cleanup(ini.Close)
	return acc, ini
}

func TestLogonHandshake(t *testing.T) {
	acc, ini := startPair(t, nil, nil)

	require.NoError(t, ini.SendLogon())
	require.NoError(t, ini.WaitForLogon(2*time.Second))
	require.NoError(t, acc.WaitForLogon(2*time.Second))

	assert.Equal(t, StateLoggedOn, acc.State())
	assert.Equal(t, StateLoggedOn, ini.State())
	assert.Equal(t, 1, acc.OutgoingSeq(), "acceptor sent its logon reply")
	assert.Equal(t, int64(1), acc.IncomingSeq())
}

func TestTestRequestEchoesID(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	acc := New(serverConn, acceptorConfig(), zap.NewNop(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go acc.Run(ctx)
	defer acc.Close()

	framer := fix.NewFramer(clientConn)
	seq := 0
	send := func(m *fix.Message) {
		seq++
		m.Set(fix.TagSenderCompID, "CLIENT_TRADER")
		m.Set(fix.TagTargetCompID, "SERVER_EXCHANGE")
		_, err := clientConn.Write(m.Encode("FIX.4.4", seq, time.Now()))
		require.NoError(t, err)
	}

	logon := fix.NewMessage(fix.MsgTypeLogon)
	logon.Set(fix.TagEncryptMethod, fix.EncryptMethodNone)
	logon.SetInt(fix.TagHeartBtInt, 30)
	send(logon)

	raw, err := framer.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, fix.MsgTypeLogon, fix.Decode(raw).Type())

	tr := fix.NewMessage(fix.MsgTypeTestRequest)
	tr.Set(fix.TagTestReqID, "PING-7")
	send(tr)

	raw, err = framer.ReadMessage()
	require.NoError(t, err)
	hb := fix.Decode(raw)
	assert.Equal(t, fix.MsgTypeHeartbeat, hb.Type())
	assert.Equal(t, "PING-7", hb.Get(fix.TagTestReqID))
}

func TestSendTestRequestRoundTrip(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	sess := New(serverConn, initiatorConfig(), zap.NewNop(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sess.Run(ctx)
	defer sess.Close()

	framer := fix.NewFramer(clientConn)
	go func() {
		sess.SendTestRequest("LIVE-1")
	}()

	raw, err := framer.ReadMessage()
	require.NoError(t, err)
	tr := fix.Decode(raw)
	require.Equal(t, fix.MsgTypeTestRequest, tr.Type())
	assert.Equal(t, "LIVE-1", tr.Get(fix.TagTestReqID))

	// Answering heartbeat closes the round trip.
	hb := fix.NewMessage(fix.MsgTypeHeartbeat)
	hb.Set(fix.TagTestReqID, "LIVE-1")
	hb.Set(fix.TagSenderCompID, "SERVER_EXCHANGE")
	hb.Set(fix.TagTargetCompID, "CLIENT_TRADER")
	_, err = clientConn.Write(hb.Encode("FIX.4.4", 1, time.Now()))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return sess.IncomingSeq() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLogoutExchange(t *testing.T) {
	acc, ini := startPair(t, nil, nil)
	require.NoError(t, ini.SendLogon())
	require.NoError(t, ini.WaitForLogon(2*time.Second))

	require.NoError(t, ini.Logout())

	require.Eventually(t, func() bool {
		return acc.State() == StateDisconnected
	}, 2*time.Second, 10*time.Millisecond, "acceptor replies and logs off")
	assert.Equal(t, StateDisconnected, ini.State())
	assert.NoError(t, ini.Logout(), "second logout is a no-op")
}

func TestOutgoingSeqMonotonicUnderConcurrency(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	sess := New(serverConn, acceptorConfig(), zap.NewNop(), nil, nil)
	defer sess.Close()

	const n = 50
	framer := fix.NewFramer(clientConn)
	seqs := make(chan int, n)
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for i := 0; i < n; i++ {
			raw, err := framer.ReadMessage()
			if err != nil {
				return
			}
			got, err := fix.Decode(raw).GetInt(fix.TagMsgSeqNum)
			if err != nil {
				return
			}
			seqs <- got
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, sess.SendHeartbeat(""))
		}()
	}
	wg.Wait()

	select {
	case <-readDone:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out reading frames")
	}

	close(seqs)
	var got []int
	for s := range seqs {
		got = append(got, s)
	}
	sort.Ints(got)
	require.Len(t, got, n)
	for i, s := range got {
		assert.Equal(t, i+1, s, "sequence numbers are exactly 1..n, no gaps or reuse")
	}
	assert.Equal(t, n, sess.OutgoingSeq())
}

func TestIncomingSeqCountsUnparsableFrames(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	sess := New(serverConn, acceptorConfig(), zap.NewNop(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sess.Run(ctx)
	defer sess.Close()

	// A frame with no MsgType still consumes an incoming sequence
	// number. Built by hand since Encode always stamps tag 35.
	junk := "8=FIX.4.4\x019=7\x0158=bad\x0110=000\x01"
	_, err := clientConn.Write([]byte(junk))
	require.NoError(t, err)

	hb := fix.NewMessage(fix.MsgTypeHeartbeat)
	hb.Set(fix.TagSenderCompID, "CLIENT_TRADER")
	hb.Set(fix.TagTargetCompID, "SERVER_EXCHANGE")
	_, err = clientConn.Write(hb.Encode("FIX.4.4", 2, time.Now()))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return sess.IncomingSeq() == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAcceptorLearnsCompIDs(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	cfg := acceptorConfig()
	cfg.SenderCompID = ""
	cfg.TargetCompID = ""
	sess := New(serverConn, cfg, zap.NewNop(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sess.Run(ctx)
	defer sess.Close()

	framer := fix.NewFramer(clientConn)
	logon := fix.NewMessage(fix.MsgTypeLogon)
	logon.Set(fix.TagEncryptMethod, fix.EncryptMethodNone)
	logon.SetInt(fix.TagHeartBtInt, 30)
	logon.Set(fix.TagSenderCompID, "TRADER_9")
	logon.Set(fix.TagTargetCompID, "VENUE_1")
	_, err := clientConn.Write(logon.Encode("FIX.4.4", 1, time.Now()))
	require.NoError(t, err)

	raw, err := framer.ReadMessage()
	require.NoError(t, err)
	reply := fix.Decode(raw)
	assert.Equal(t, fix.MsgTypeLogon, reply.Type())
	assert.Equal(t, "VENUE_1", reply.Get(fix.TagSenderCompID))
	assert.Equal(t, "TRADER_9", reply.Get(fix.TagTargetCompID))
	assert.Equal(t, "VENUE_1", sess.SenderCompID())
	assert.Equal(t, "TRADER_9", sess.TargetCompID())
}

func TestHeartbeatEmission(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	cfg := acceptorConfig()
	cfg.HeartbeatInterval = 30 * time.Millisecond
	sess := New(serverConn, cfg, zap.NewNop(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sess.Run(ctx)
	defer sess.Close()

	framer := fix.NewFramer(clientConn)
	logon := fix.NewMessage(fix.MsgTypeLogon)
	logon.Set(fix.TagEncryptMethod, fix.EncryptMethodNone)
	logon.SetInt(fix.TagHeartBtInt, 30)
	logon.Set(fix.TagSenderCompID, "CLIENT_TRADER")
	logon.Set(fix.TagTargetCompID, "SERVER_EXCHANGE")
	_, err := clientConn.Write(logon.Encode("FIX.4.4", 1, time.Now()))
	require.NoError(t, err)

	// Logon reply, then at least two unsolicited heartbeats.
	raw, err := framer.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, fix.MsgTypeLogon, fix.Decode(raw).Type())

	for i := 0; i < 2; i++ {
		clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
		raw, err = framer.ReadMessage()
		require.NoError(t, err)
		hb := fix.Decode(raw)
		assert.Equal(t, fix.MsgTypeHeartbeat, hb.Type())
		assert.Empty(t, hb.Get(fix.TagTestReqID))
	}
}

func TestAppHandlerReceivesApplicationMessages(t *testing.T) {
	received := make(chan *fix.Message, 1)
	acc, ini := startPair(t, func(_ *Session, msg *fix.Message) {
		received <- msg
	}, nil)
	_ = acc

	require.NoError(t, ini.SendLogon())
	require.NoError(t, ini.WaitForLogon(2*time.Second))

	nos := fix.NewMessage(fix.MsgTypeNewOrderSingle)
	nos.Set(fix.TagClOrdID, "T1")
	nos.Set(fix.TagSymbol, "AAPL")
	require.NoError(t, ini.Send(nos))

	select {
	case msg := <-received:
		assert.Equal(t, fix.MsgTypeNewOrderSingle, msg.Type())
		assert.Equal(t, "T1", msg.Get(fix.TagClOrdID))
		assert.Equal(t, "CLIENT_TRADER", msg.Get(fix.TagSenderCompID))
	case <-time.After(2 * time.Second):
		t.Fatal("application message not delivered")
	}
}
