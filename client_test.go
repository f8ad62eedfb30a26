package bridgesdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startFakeClient(t *testing.T, opts ...Option) Client {
	t.Helper()

	client := NewClient()
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Start(context.Background(), fakeBridgeOptions(opts...)...))

	return client
}

func waitForResponse(t *testing.T, ch <-chan *Response) *Response {
	t.Helper()

	select {
	case resp := <-ch:
		return resp
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for response")

		return nil
	}
}

// TestNewClient_Creation tests client creation.
func TestNewClient_Creation(t *testing.T) {
	client := NewClient()
	require.NotNil(t, client)
	require.Empty(t, client.SessionID())
	require.Nil(t, client.Done())
	require.NoError(t, client.Err())

	require.NoError(t, client.Close())
}

// TestClient_SendNotConnected tests Send before Start.
func TestClient_SendNotConnected(t *testing.T) {
	client := NewClient()
	defer client.Close()

	_, err := client.Send(context.Background(), "i2c_read", nil)
	require.ErrorIs(t, err, ErrClientNotConnected)
}

// TestClient_SendAfterClose tests Send on a closed client.
func TestClient_SendAfterClose(t *testing.T) {
	client := NewClient()
	require.NoError(t, client.Close())

	_, err := client.Send(context.Background(), "i2c_read", nil)
	require.ErrorIs(t, err, ErrClientClosed)

	err = client.Start(context.Background(), fakeBridgeOptions()...)
	require.ErrorIs(t, err, ErrClientClosed)
}

// TestClient_CloseMultipleTimes tests that Close is idempotent.
func TestClient_CloseMultipleTimes(t *testing.T) {
	client := startFakeClient(t)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
}

// TestClient_StartWithBridgeNotFound tests the launch fault for a missing executable.
func TestClient_StartWithBridgeNotFound(t *testing.T) {
	client := NewClient()
	defer client.Close()

	err := client.Start(context.Background(), WithBridgePath("/nonexistent/bridge"))
	require.Error(t, err)

	notFound, ok := errors.AsType[*BridgeNotFoundError](err)
	require.True(t, ok, "expected BridgeNotFoundError, got %T", err)
	require.Contains(t, notFound.SearchedPaths, "/nonexistent/bridge")
}

// TestClient_DoubleStart tests that a started client refuses a second Start.
func TestClient_DoubleStart(t *testing.T) {
	client := startFakeClient(t)

	err := client.Start(context.Background(), fakeBridgeOptions()...)
	require.ErrorIs(t, err, ErrClientAlreadyConnected)
}

// TestClient_SingleResponse sends a command answered by one final response.
func TestClient_SingleResponse(t *testing.T) {
	client := startFakeClient(t)
	require.Len(t, client.SessionID(), 26)

	responses, err := client.Send(context.Background(), "i2c_set_parameters", map[string]any{"frequency": 400000})
	require.NoError(t, err)
	require.Len(t, responses, 1)

	final := FinalResponse(responses)
	require.Equal(t, "1", final.TransactionID)
	require.Equal(t, StatusSuccess, final.Status)
	require.Equal(t, "i2c_set_parameters", final.Type)
	require.False(t, final.IsPromise)
	require.Equal(t, map[string]any{"frequency": float64(400000)}, final.Data)
}

// TestClient_PromiseThenFinal collects every response of a promised command.
func TestClient_PromiseThenFinal(t *testing.T) {
	client := startFakeClient(t)

	responses, err := client.Send(context.Background(), "i3c_broadcast_enec",
		map[string]any{"events": []any{"ibi"}})
	require.NoError(t, err)
	require.Len(t, responses, 2)

	require.True(t, responses[0].IsPromise)
	require.False(t, responses[1].IsPromise)
	require.Equal(t, responses[0].TransactionID, responses[1].TransactionID)
	require.Equal(t, map[string]any{"events": []any{"ibi"}}, responses[1].Data)
}

// TestClient_NotificationInterleaved checks that a notification arriving in
// the middle of a transaction goes to observers and not to the caller.
func TestClient_NotificationInterleaved(t *testing.T) {
	client := NewClient()
	defer client.Close()

	notifications := make(chan *Response, 8)

	unsubscribe := client.OnNotification(func(resp *Response) {
		notifications <- resp
	})
	defer unsubscribe()

	require.NoError(t, client.Start(context.Background(), fakeBridgeOptions()...))

	ready := waitForResponse(t, notifications)
	require.Equal(t, "bridge_ready", ready.Type)
	require.Equal(t, map[string]any{"adapter": "BinhoSupernova"}, ready.Data)

	responses, err := client.Send(context.Background(), "i3c_ibi_watch", nil)
	require.NoError(t, err)
	require.Len(t, responses, 2)

	for _, resp := range responses {
		require.False(t, resp.IsNotification())
	}

	ibi := waitForResponse(t, notifications)
	require.Equal(t, NotificationTransactionID, ibi.TransactionID)
	require.Equal(t, "i3c_ibi_notification", ibi.Type)
}

// TestClient_AdapterAliasResolved checks the adapter argument given to the bridge.
func TestClient_AdapterAliasResolved(t *testing.T) {
	client := NewClient()
	defer client.Close()

	notifications := make(chan *Response, 8)
	client.OnNotification(func(resp *Response) { notifications <- resp })

	require.NoError(t, client.Start(context.Background(), fakeBridgeOptions(WithAdapter("pulsar"))...))

	ready := waitForResponse(t, notifications)
	require.Equal(t, map[string]any{"adapter": "BinhoPulsar"}, ready.Data)
}

// TestClient_OnResponseSeesEveryLine checks the raw response observer.
func TestClient_OnResponseSeesEveryLine(t *testing.T) {
	client := NewClient()
	defer client.Close()

	var (
		mu   sync.Mutex
		seen []string
	)

	client.OnResponse(func(resp *Response) {
		mu.Lock()
		defer mu.Unlock()

		seen = append(seen, resp.TransactionID)
	})

	require.NoError(t, client.Start(context.Background(), fakeBridgeOptions()...))

	_, err := client.Send(context.Background(), "i3c_broadcast_enec", nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(seen) == 3
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	require.Equal(t, []string{"0", "1", "1"}, seen)
}

// TestClient_ErrorStatusIsNotAnError checks that a bridge-reported failure
// is a normal result.
func TestClient_ErrorStatusIsNotAnError(t *testing.T) {
	client := startFakeClient(t)

	responses, err := client.Send(context.Background(), "i2c_fail", nil)
	require.NoError(t, err)
	require.True(t, FinalResponse(responses).IsError())
	require.Equal(t, map[string]any{"message": "NACK"}, FinalResponse(responses).DataMap())
}

// TestClient_BridgeExitsMidTransaction checks that a worker exit fails the
// outstanding command and ends the session.
func TestClient_BridgeExitsMidTransaction(t *testing.T) {
	client := startFakeClient(t)

	slow := make(chan error, 1)

	go func() {
		_, err := client.Send(context.Background(), "i2c_read", map[string]any{"delay_ms": 5000})
		slow <- err
	}()

	// Give the slow command time to be written before the crash.
	time.Sleep(100 * time.Millisecond)

	_, err := client.Send(context.Background(), "crash", nil)
	require.ErrorIs(t, err, ErrSessionClosed)

	select {
	case err := <-slow:
		require.ErrorIs(t, err, ErrSessionClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("outstanding command was not failed")
	}

	select {
	case <-client.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not end")
	}

	require.ErrorIs(t, client.Err(), ErrSessionClosed)

	procErr, ok := errors.AsType[*ProcessError](client.Err())
	require.True(t, ok, "expected ProcessError in %v", client.Err())
	require.Equal(t, 5, procErr.ExitCode)
	require.Contains(t, procErr.Stderr, "adapter disconnected")

	_, err = client.Send(context.Background(), "i2c_read", nil)
	require.ErrorIs(t, err, ErrSessionClosed)
}

// TestClient_ConcurrentSends checks that out-of-order completions reach the
// right callers.
func TestClient_ConcurrentSends(t *testing.T) {
	client := startFakeClient(t)

	const senders = 16

	var wg sync.WaitGroup

	for i := range senders {
		wg.Go(func() {
			// Earlier senders wait longer, so completions arrive in reverse.
			delay := (senders - i) * 10

			responses, err := client.Send(context.Background(), "gpio_read",
				map[string]any{"pin": i, "delay_ms": delay})
			if !assert.NoError(t, err) {
				return
			}

			if assert.Len(t, responses, 1) {
				assert.Equal(t, float64(i), responses[0].DataMap()["pin"], "sender %d got another sender's response", i)
			}
		})
	}

	wg.Wait()
}

// TestClient_RequestTimeout checks the per-command timeout.
func TestClient_RequestTimeout(t *testing.T) {
	client := startFakeClient(t, WithRequestTimeout(50*time.Millisecond))

	_, err := client.Send(context.Background(), "i2c_read", map[string]any{"delay_ms": 1000})
	require.ErrorIs(t, err, ErrRequestTimeout)

	// The session survives and late responses are dropped.
	responses, err := client.Send(context.Background(), "i2c_read", nil)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	require.Equal(t, "2", responses[0].TransactionID)
}

// TestClient_OversizedResponseKeepsSession checks that a response line over
// the buffer limit is discarded without ending the session.
func TestClient_OversizedResponseKeepsSession(t *testing.T) {
	client := startFakeClient(t,
		WithMaxBufferSize(4096),
		WithRequestTimeout(300*time.Millisecond),
	)

	_, err := client.Send(context.Background(), "i2c_read", map[string]any{"blob": strings.Repeat("a", 8000)})
	require.ErrorIs(t, err, ErrRequestTimeout)

	responses, err := client.Send(context.Background(), "i2c_read", map[string]any{"blob": "a"})
	require.NoError(t, err)
	require.Len(t, responses, 1)
	require.Equal(t, map[string]any{"blob": "a"}, responses[0].Data)
	require.NoError(t, client.Err())
}

// TestClient_ContextCancellation checks that a cancelled context ends the wait.
func TestClient_ContextCancellation(t *testing.T) {
	client := startFakeClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Send(ctx, "i2c_read", map[string]any{"delay_ms": 1000})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestClient_CloseEndsSession checks the graceful close path.
func TestClient_CloseEndsSession(t *testing.T) {
	client := startFakeClient(t)

	_, err := client.Send(context.Background(), "i2c_read", nil)
	require.NoError(t, err)

	done := client.Done()

	start := time.Now()
	require.NoError(t, client.Close())
	require.Less(t, time.Since(start), 2*time.Second, "the bridge should exit on request")

	select {
	case <-done:
	default:
		t.Fatal("Done should be closed after Close")
	}

	require.ErrorIs(t, client.Err(), ErrSessionClosed)

	_, err = client.Send(context.Background(), "i2c_read", nil)
	require.ErrorIs(t, err, ErrClientClosed)
}

// TestClient_ConcurrentCloseNoPanic tests that concurrent Close calls do not panic.
func TestClient_ConcurrentCloseNoPanic(t *testing.T) {
	client := startFakeClient(t)

	var wg sync.WaitGroup

	for range 10 {
		wg.Go(func() {
			assert.NotPanics(t, func() { _ = client.Close() })
		})
	}

	wg.Wait()
}

// TestClient_WithTransport checks that an injected transport replaces the
// bridge process.
func TestClient_WithTransport(t *testing.T) {
	transport := newLoopbackTransport()

	client := NewClient()
	defer client.Close()

	require.NoError(t, client.Start(context.Background(),
		WithTransport(transport),
		WithSkipExitCommand(true),
		WithExitTimeout(100*time.Millisecond),
	))

	responses, err := client.Send(context.Background(), "spi_transfer", map[string]any{"data": "0xAA"})
	require.NoError(t, err)
	require.Len(t, responses, 1)
	require.Equal(t, "spi_transfer", responses[0].Type)
	require.Equal(t, []string{"spi_transfer"}, transport.commands())
}

// loopbackTransport answers every command with one success response.
type loopbackTransport struct {
	mu    sync.Mutex
	lines chan []byte
	errs  chan error
	seen  []string
	ended bool
}

var _ Transport = (*loopbackTransport)(nil)

func newLoopbackTransport() *loopbackTransport {
	return &loopbackTransport{
		lines: make(chan []byte, 16),
		errs:  make(chan error),
	}
}

func (l *loopbackTransport) Start(context.Context) error { return nil }

func (l *loopbackTransport) ReadLines(context.Context) (<-chan []byte, <-chan error) {
	return l.lines, l.errs
}

func (l *loopbackTransport) WriteLine(_ context.Context, data []byte) error {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ended {
		return ErrStdinClosed
	}

	l.seen = append(l.seen, cmd.Command)
	l.lines <- fmt.Appendf(nil, `{"transaction_id":%q,"status":"success","type":%q,"is_promise":false,"data":null}`,
		cmd.TransactionID, cmd.Command)

	return nil
}

func (l *loopbackTransport) EndInput() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.ended {
		l.ended = true
		close(l.lines)
		close(l.errs)
	}

	return nil
}

func (l *loopbackTransport) Close() error { return l.EndInput() }

func (l *loopbackTransport) IsReady() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return !l.ended
}

func (l *loopbackTransport) commands() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]string(nil), l.seen...)
}
