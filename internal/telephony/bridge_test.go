package telephony

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/soyeahso/switchboard/internal/config"
	"github.com/soyeahso/switchboard/internal/domain"
	"github.com/soyeahso/switchboard/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSwitch is an in-process control plane speaking the switchctl grammar.
type fakeSwitch struct {
	ln        net.Listener
	authToken string

	rejectAuth    bool
	rejectCommand bool
	silent        bool // accept connections but never reply

	mu       sync.Mutex
	commands []string
	statuses map[string]string // addr -> wire status token for QRY

	conns atomic.Int32
}

func newFakeSwitch(t *testing.T) *fakeSwitch {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	fs := &fakeSwitch{
		ln:        ln,
		authToken: "hunter2",
		statuses:  make(map[string]string),
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			fs.conns.Add(1)
			go fs.handle(conn)
		}
	}()
	return fs
}

func (fs *fakeSwitch) handle(conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReader(conn)

	if fs.silent {
		// Hold the connection open without replying.
		_, _ = reader.ReadString('\n')
		time.Sleep(10 * time.Second)
		return
	}

	auth, err := reader.ReadString('\n')
	if err != nil {
		return
	}
	if fs.rejectAuth || strings.TrimSpace(auth) != "AUTH "+fs.authToken {
		conn.Write([]byte("ERR AUTH bad token\n"))
		return
	}
	conn.Write([]byte("OK AUTH\n"))

	cmd, err := reader.ReadString('\n')
	if err != nil {
		return
	}
	cmd = strings.TrimSpace(cmd)

	fs.mu.Lock()
	fs.commands = append(fs.commands, cmd)
	fs.mu.Unlock()

	fields := strings.Fields(cmd)
	if fs.rejectCommand || len(fields) < 2 {
		conn.Write([]byte("ERR " + fields[0] + " no such extension\n"))
		return
	}

	switch fields[0] {
	case "SET":
		conn.Write([]byte("OK SET\n"))
	case "QRY":
		fs.mu.Lock()
		status, ok := fs.statuses[fields[1]]
		fs.mu.Unlock()
		if !ok {
			status = "OFFLINE"
		}
		conn.Write([]byte("OK QRY " + status + "\n"))
	default:
		conn.Write([]byte("ERR " + fields[0] + " unknown verb\n"))
	}
}

func (fs *fakeSwitch) lastCommand() string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if len(fs.commands) == 0 {
		return ""
	}
	return fs.commands[len(fs.commands)-1]
}

// recordingAlerter captures configuration-fault alerts.
type recordingAlerter struct {
	mu     sync.Mutex
	alerts []string
}

func (a *recordingAlerter) Alert(op string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, op)
}

func (a *recordingAlerter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.alerts)
}

func bridgeConfig(t *testing.T, fs *fakeSwitch) config.TelephonyConfig {
	t.Helper()
	host, portStr, err := net.SplitHostPort(fs.ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	return config.TelephonyConfig{
		Host:           host,
		Port:           port,
		AuthToken:      "hunter2",
		DialTimeoutMs:  500,
		ReplyTimeoutMs: 200,
		Retry: config.RetryConfig{
			MaxAttempts: 3,
			InitialMs:   1,
			Multiplier:  2,
			MaxMs:       5,
		},
	}
}

func testBridge(t *testing.T, fs *fakeSwitch, opts ...BridgeOption) *Bridge {
	t.Helper()
	log := logging.New(nil, "silent", "json")
	return NewBridge(bridgeConfig(t, fs), log, opts...)
}

var testAddr = domain.RoutingAddress{Extension: "1001", Host: "pbx1"}

func TestSetStatus_Success(t *testing.T) {
	fs := newFakeSwitch(t)
	b := testBridge(t, fs)

	err := b.SetStatus(context.Background(), testAddr, domain.StatusAvailable)
	require.NoError(t, err)
	assert.Equal(t, "SET 1001@pbx1 AVAILABLE", fs.lastCommand())
	assert.Equal(t, int32(1), fs.conns.Load(), "success must take a single connection")
}

func TestSetStatus_AuthRejected_NoRetry(t *testing.T) {
	fs := newFakeSwitch(t)
	fs.rejectAuth = true
	alerter := &recordingAlerter{}
	b := testBridge(t, fs, WithAlerter(alerter))

	err := b.SetStatus(context.Background(), testAddr, domain.StatusAvailable)

	var rejected *AuthRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, int32(1), fs.conns.Load(), "auth rejection must not be retried")
	assert.Equal(t, 1, alerter.count())
}

func TestSetStatus_CommandRejected_NoRetry(t *testing.T) {
	fs := newFakeSwitch(t)
	fs.rejectCommand = true
	alerter := &recordingAlerter{}
	b := testBridge(t, fs, WithAlerter(alerter))

	err := b.SetStatus(context.Background(), testAddr, domain.StatusBusy)

	var rejected *CommandRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Contains(t, rejected.Reason, "no such extension")
	assert.Equal(t, int32(1), fs.conns.Load())
	assert.Equal(t, 1, alerter.count())
}

func TestSetStatus_Unreachable_ExhaustsRetries(t *testing.T) {
	fs := newFakeSwitch(t)
	var attempts atomic.Int32
	failDial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		attempts.Add(1)
		return nil, errors.New("connection refused")
	}
	b := testBridge(t, fs, WithDialer(failDial))

	err := b.SetStatus(context.Background(), testAddr, domain.StatusAvailable)
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.Equal(t, int32(3), attempts.Load(), "must retry up to the attempt ceiling")
}

func TestSetStatus_RetryThenSuccess(t *testing.T) {
	fs := newFakeSwitch(t)
	var attempts atomic.Int32
	flaky := func(ctx context.Context, network, addr string) (net.Conn, error) {
		if attempts.Add(1) <= 2 {
			return nil, errors.New("connection refused")
		}
		var d net.Dialer
		return d.DialContext(ctx, network, addr)
	}
	b := testBridge(t, fs, WithDialer(flaky))

	err := b.SetStatus(context.Background(), testAddr, domain.StatusOffline)
	require.NoError(t, err)
	assert.Equal(t, int32(3), attempts.Load())
	assert.Equal(t, "SET 1001@pbx1 OFFLINE", fs.lastCommand())
}

func TestSetStatus_Timeout(t *testing.T) {
	fs := newFakeSwitch(t)
	fs.silent = true
	cfg := bridgeConfig(t, fs)
	cfg.Retry.MaxAttempts = 1
	log := logging.New(nil, "silent", "json")
	b := NewBridge(cfg, log)

	start := time.Now()
	err := b.SetStatus(context.Background(), testAddr, domain.StatusAvailable)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 2*time.Second, "deadline must tear the exchange down")
}

func TestSetStatus_ContextCancelAbandonsExchange(t *testing.T) {
	fs := newFakeSwitch(t)
	fs.silent = true
	cfg := bridgeConfig(t, fs)
	cfg.ReplyTimeoutMs = 60_000 // only cancellation can end the exchange
	cfg.Retry.MaxAttempts = 1
	log := logging.New(nil, "silent", "json")
	b := NewBridge(cfg, log)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := b.SetStatus(ctx, testAddr, domain.StatusAvailable)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 2*time.Second, "cancellation must not wait out the reply deadline")
}

func TestQueryStatus(t *testing.T) {
	fs := newFakeSwitch(t)
	fs.statuses["1001@pbx1"] = "BUSY"
	b := testBridge(t, fs)

	status, err := b.QueryStatus(context.Background(), testAddr)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusBusy, status)
}

func TestQueryStatus_UnknownAddressReportsOffline(t *testing.T) {
	fs := newFakeSwitch(t)
	b := testBridge(t, fs)

	status, err := b.QueryStatus(context.Background(), domain.RoutingAddress{Extension: "9999", Host: "pbx1"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOffline, status)
}

func TestQueryStatus_SingleShot(t *testing.T) {
	fs := newFakeSwitch(t)
	var attempts atomic.Int32
	failDial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		attempts.Add(1)
		return nil, errors.New("connection refused")
	}
	b := testBridge(t, fs, WithDialer(failDial))

	_, err := b.QueryStatus(context.Background(), testAddr)
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.Equal(t, int32(1), attempts.Load(), "probes are not retried")
}

// --- Codec tests ---

func TestLineCodec_Commands(t *testing.T) {
	c := LineCodec{}
	assert.Equal(t, "AUTH tok", c.Auth("tok"))
	assert.Equal(t, "SET 1001@pbx1 ONBREAK", c.SetStatus(testAddr, domain.StatusOnBreak))
	assert.Equal(t, "QRY 1001@pbx1", c.QueryStatus(testAddr))
}

func TestLineCodec_ParseReply(t *testing.T) {
	c := LineCodec{}
	tests := []struct {
		line    string
		want    Reply
		wantErr bool
	}{
		{"OK AUTH", Reply{OK: true}, false},
		{"OK SET", Reply{OK: true}, false},
		{"OK QRY AVAILABLE", Reply{OK: true, Status: domain.StatusAvailable}, false},
		{"OK QRY ONBREAK", Reply{OK: true, Status: domain.StatusOnBreak}, false},
		{"OK QRY GARBAGE", Reply{OK: true, Status: domain.StatusUnknown}, false},
		{"ERR SET no such extension", Reply{OK: false, Reason: "no such extension"}, false},
		{"ERR AUTH", Reply{OK: false, Reason: "unspecified"}, false},
		{"BOGUS LINE HERE", Reply{}, true},
		{"", Reply{}, true},
	}
	for _, tt := range tests {
		got, err := c.ParseReply(tt.line)
		if tt.wantErr {
			assert.Error(t, err, "line %q", tt.line)
			continue
		}
		require.NoError(t, err, "line %q", tt.line)
		assert.Equal(t, tt.want, got, "line %q", tt.line)
	}
}

// --- Backoff tests ---

func TestBackoff_Growth(t *testing.T) {
	cfg := backoffConfig{Initial: 100 * time.Millisecond, Multiplier: 2}
	assert.Equal(t, 100*time.Millisecond, cfg.nextDelay(0, 0.5))
	assert.Equal(t, 200*time.Millisecond, cfg.nextDelay(1, 0.5))
	assert.Equal(t, 400*time.Millisecond, cfg.nextDelay(2, 0.5))
}

func TestBackoff_Cap(t *testing.T) {
	cfg := backoffConfig{Initial: 100 * time.Millisecond, Multiplier: 2, Max: 250 * time.Millisecond}
	assert.Equal(t, 250*time.Millisecond, cfg.nextDelay(5, 0.5))
}

func TestBackoff_Jitter(t *testing.T) {
	cfg := backoffConfig{Initial: 100 * time.Millisecond, Multiplier: 2, Jitter: 0.5}
	low := cfg.nextDelay(0, 0)
	high := cfg.nextDelay(0, 0.9999)
	assert.Less(t, low, high)
	assert.GreaterOrEqual(t, low, 50*time.Millisecond)
	assert.LessOrEqual(t, high, 150*time.Millisecond)
}
