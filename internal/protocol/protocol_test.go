package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	sdkerrors "github.com/wagiedev/bridge-sdk-go/internal/errors"
	"github.com/wagiedev/bridge-sdk-go/internal/event"
	"github.com/wagiedev/bridge-sdk-go/internal/message"
)

// mockTransport implements Transport for testing.
type mockTransport struct {
	mu       sync.Mutex
	commands []*message.Command
	writeErr error
	onWrite  func(cmd *message.Command)

	lines     chan []byte
	errs      chan error
	closeOnce sync.Once
}

func newMockTransport() *mockTransport {
	return &mockTransport{
		commands: make([]*message.Command, 0, 10),
		lines:    make(chan []byte, 64),
		errs:     make(chan error, 1),
	}
}

func (m *mockTransport) ReadLines(_ context.Context) (<-chan []byte, <-chan error) {
	return m.lines, m.errs
}

func (m *mockTransport) WriteLine(_ context.Context, data []byte) error {
	m.mu.Lock()

	if m.writeErr != nil {
		m.mu.Unlock()

		return m.writeErr
	}

	var cmd message.Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		m.mu.Unlock()

		return err
	}

	m.commands = append(m.commands, &cmd)
	onWrite := m.onWrite

	m.mu.Unlock()

	if onWrite != nil {
		onWrite(&cmd)
	}

	return nil
}

func (m *mockTransport) setOnWrite(fn func(cmd *message.Command)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.onWrite = fn
}

func (m *mockTransport) getCommands() []*message.Command {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]*message.Command, len(m.commands))
	copy(result, m.commands)

	return result
}

func (m *mockTransport) emit(line string) {
	m.lines <- []byte(line)
}

// hangup simulates the worker closing its output.
func (m *mockTransport) hangup() {
	m.closeOnce.Do(func() {
		close(m.lines)
	})
}

func responseLine(id, typ string, isPromise bool) string {
	return fmt.Sprintf(
		`{"transaction_id":%q,"status":"success","type":%q,"is_promise":%t,"data":{}}`,
		id, typ, isPromise,
	)
}

func newStartedController(t *testing.T, transport *mockTransport) (*Controller, *event.Bus) {
	t.Helper()

	bus := event.NewBus(slog.Default(), 0)
	controller := NewController(slog.Default(), transport, bus)

	require.NoError(t, controller.Start(context.Background()))

	t.Cleanup(func() {
		controller.Stop()
		bus.Close()
	})

	return controller, bus
}

func TestController_Send_SingleFinalResponse(t *testing.T) {
	transport := newMockTransport()
	transport.setOnWrite(func(cmd *message.Command) {
		transport.emit(responseLine(cmd.TransactionID, cmd.Command, false))
	})

	controller, _ := newStartedController(t, transport)

	responses, err := controller.Send(context.Background(), "open",
		map[string]any{"address": "SupernovaSimulatedPort"}, 0)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	require.Equal(t, "1", responses[0].TransactionID)
	require.Equal(t, "open", responses[0].Type)
	require.Equal(t, 0, controller.Pending())

	commands := transport.getCommands()
	require.Len(t, commands, 1)
	require.Equal(t, "SupernovaSimulatedPort", commands[0].Params["address"])
}

func TestController_Send_PromiseThenFinal(t *testing.T) {
	transport := newMockTransport()
	transport.setOnWrite(func(cmd *message.Command) {
		transport.emit(responseLine(cmd.TransactionID, "promise", true))
		transport.emit(responseLine(cmd.TransactionID, "final", false))
	})

	controller, _ := newStartedController(t, transport)

	responses, err := controller.Send(context.Background(), "i3c_init_bus", nil, 0)
	require.NoError(t, err)
	require.Len(t, responses, 2)
	require.True(t, responses[0].IsPromise)
	require.Equal(t, "promise", responses[0].Type)
	require.False(t, responses[1].IsPromise)
	require.Equal(t, "final", responses[1].Type)
}

func TestController_NotificationsBypassTransactions(t *testing.T) {
	transport := newMockTransport()
	transport.setOnWrite(func(cmd *message.Command) {
		transport.emit(responseLine("0", "i3c_ibi_notification", false))
		transport.emit(responseLine(cmd.TransactionID, "ack", false))
	})

	controller, bus := newStartedController(t, transport)

	var (
		mu            sync.Mutex
		notifications []*message.Response
		observed      []*message.Response
	)

	bus.Subscribe(event.KindNotification, func(resp *message.Response) {
		mu.Lock()
		defer mu.Unlock()

		notifications = append(notifications, resp)
	})
	bus.Subscribe(event.KindResponse, func(resp *message.Response) {
		mu.Lock()
		defer mu.Unlock()

		observed = append(observed, resp)
	})

	responses, err := controller.Send(context.Background(), "i3c_target_reset", nil, 0)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	require.Equal(t, "ack", responses[0].Type)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(notifications) == 1 && len(observed) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	require.Equal(t, "0", notifications[0].TransactionID)
	require.Equal(t, "0", observed[0].TransactionID)
	require.Equal(t, responses[0], observed[1])
}

func TestController_WorkerHangup(t *testing.T) {
	transport := newMockTransport()
	transport.setOnWrite(func(*message.Command) {
		transport.hangup()
	})

	controller, _ := newStartedController(t, transport)

	responses, err := controller.Send(context.Background(), "open", nil, 0)
	require.ErrorIs(t, err, sdkerrors.ErrSessionClosed)
	require.Nil(t, responses)
	require.Equal(t, 0, controller.Pending())

	select {
	case <-controller.Done():
	case <-time.After(time.Second):
		t.Fatal("controller should stop once the worker closes its output")
	}

	require.Equal(t, StateStopped, controller.State())

	// Later sends fail fast without writing.
	_, err = controller.Send(context.Background(), "open", nil, 0)
	require.ErrorIs(t, err, sdkerrors.ErrSessionClosed)
	require.Len(t, transport.getCommands(), 1)
}

func TestController_TransportErrorEndsSession(t *testing.T) {
	boom := errors.New("read failure")

	transport := newMockTransport()
	transport.setOnWrite(func(*message.Command) {
		transport.errs <- boom
		transport.hangup()
	})

	controller, _ := newStartedController(t, transport)

	_, err := controller.Send(context.Background(), "open", nil, 0)
	require.ErrorIs(t, err, sdkerrors.ErrSessionClosed)
	require.ErrorIs(t, err, boom)

	<-controller.Done()
	require.ErrorIs(t, controller.FatalError(), boom)
}

func TestController_ConcurrentSendsGetOwnResponses(t *testing.T) {
	// Run with: go test -race -run TestController_ConcurrentSendsGetOwnResponses
	transport := newMockTransport()
	transport.setOnWrite(func(cmd *message.Command) {
		go func() {
			n := cmd.Params["n"]
			transport.emit(fmt.Sprintf(
				`{"transaction_id":%q,"status":"success","type":"read","is_promise":true,"data":{"n":%v}}`,
				cmd.TransactionID, n))
			transport.emit(fmt.Sprintf(
				`{"transaction_id":%q,"status":"success","type":"read","is_promise":false,"data":{"n":%v}}`,
				cmd.TransactionID, n))
		}()
	})

	controller, _ := newStartedController(t, transport)

	const numSends = 50

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[string]int, numSends)
	)

	for i := range numSends {
		wg.Go(func() {
			responses, err := controller.Send(context.Background(), "i2c_read",
				map[string]any{"n": i}, 5*time.Second)
			if !assertNoError(t, err) {
				return
			}

			if len(responses) != 2 {
				t.Errorf("send %d: got %d responses, want 2", i, len(responses))

				return
			}

			for j, resp := range responses {
				if got := resp.DataMap()["n"]; got != float64(i) {
					t.Errorf("send %d: response %d carries n=%v", i, j, got)
				}
			}

			if !responses[0].IsPromise || responses[1].IsPromise {
				t.Errorf("send %d: final response is not last", i)
			}

			mu.Lock()
			ids[responses[0].TransactionID] = i
			mu.Unlock()
		})
	}

	wg.Wait()

	require.Len(t, ids, numSends)
	require.NotContains(t, ids, "0")
	require.Equal(t, 0, controller.Pending())
}

func assertNoError(t *testing.T, err error) bool {
	t.Helper()

	if err != nil {
		t.Errorf("unexpected error: %v", err)

		return false
	}

	return true
}

func TestController_TransactionIDsStrictlyIncrease(t *testing.T) {
	transport := newMockTransport()
	transport.setOnWrite(func(cmd *message.Command) {
		transport.emit(responseLine(cmd.TransactionID, "ack", false))
	})

	controller, _ := newStartedController(t, transport)

	for range 20 {
		_, err := controller.Send(context.Background(), "get_usb_string", nil, 0)
		require.NoError(t, err)
	}

	commands := transport.getCommands()
	require.Len(t, commands, 20)

	for i, cmd := range commands {
		require.Equal(t, fmt.Sprint(i+1), cmd.TransactionID)
	}
}

func TestController_MalformedLinesDoNotStopRouter(t *testing.T) {
	transport := newMockTransport()
	transport.setOnWrite(func(cmd *message.Command) {
		transport.emit(`{"transaction_id":`)
		transport.emit(`not json at all`)
		transport.emit(`{"status":"success"}`)
		transport.emit(`{"transaction_id":1}`)
		transport.emit(responseLine(cmd.TransactionID, "ack", false))
	})

	controller, _ := newStartedController(t, transport)

	for range 3 {
		responses, err := controller.Send(context.Background(), "open", nil, 0)
		require.NoError(t, err)
		require.Len(t, responses, 1)
	}

	require.Equal(t, StateRunning, controller.State())
}

func TestController_OrphanResponsesAreDropped(t *testing.T) {
	transport := newMockTransport()
	controller, _ := newStartedController(t, transport)

	// Response for a transaction nobody sent.
	transport.emit(responseLine("99", "stray", false))

	// First send times out and is abandoned.
	_, err := controller.Send(context.Background(), "open", nil, 20*time.Millisecond)
	require.ErrorIs(t, err, sdkerrors.ErrRequestTimeout)
	require.Equal(t, 0, controller.Pending())

	// Its late response is an orphan.
	transport.emit(responseLine("1", "late", false))

	transport.setOnWrite(func(cmd *message.Command) {
		transport.emit(responseLine(cmd.TransactionID, "ack", false))
	})

	responses, err := controller.Send(context.Background(), "open", nil, time.Second)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	require.Equal(t, "2", responses[0].TransactionID)
	require.Equal(t, "ack", responses[0].Type)
	require.Equal(t, StateRunning, controller.State())
}

func TestController_DuplicateFinalIsIgnored(t *testing.T) {
	transport := newMockTransport()
	transport.setOnWrite(func(cmd *message.Command) {
		transport.emit(responseLine(cmd.TransactionID, "first", false))
		transport.emit(responseLine(cmd.TransactionID, "second", false))
	})

	controller, _ := newStartedController(t, transport)

	responses, err := controller.Send(context.Background(), "open", nil, 0)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	require.Equal(t, "first", responses[0].Type)
}

func TestController_Send_ContextCancelled(t *testing.T) {
	transport := newMockTransport()
	controller, _ := newStartedController(t, transport)

	ctx, cancel := context.WithCancel(context.Background())

	transport.setOnWrite(func(*message.Command) {
		cancel()
	})

	_, err := controller.Send(ctx, "open", nil, 0)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 0, controller.Pending())
	require.Equal(t, StateRunning, controller.State())
}

func TestController_Send_WriteFailure(t *testing.T) {
	transport := newMockTransport()
	transport.writeErr = sdkerrors.ErrStdinClosed

	controller, _ := newStartedController(t, transport)

	_, err := controller.Send(context.Background(), "open", nil, 0)

	closedErr, ok := errors.AsType[*sdkerrors.TransportClosedError](err)
	require.True(t, ok, "expected TransportClosedError, got %T", err)
	require.ErrorIs(t, closedErr, sdkerrors.ErrStdinClosed)
	require.ErrorIs(t, err, sdkerrors.ErrSessionClosed)
	require.Equal(t, 0, controller.Pending())
}

func TestController_Send_EmptyCommand(t *testing.T) {
	transport := newMockTransport()
	controller, _ := newStartedController(t, transport)

	_, err := controller.Send(context.Background(), "", nil, 0)
	require.Error(t, err)
	require.Empty(t, transport.getCommands())
}

func TestController_Send_BeforeStart(t *testing.T) {
	controller := NewController(slog.Default(), newMockTransport(), nil)

	_, err := controller.Send(context.Background(), "open", nil, 0)
	require.ErrorIs(t, err, sdkerrors.ErrTransportNotConnected)
	require.Equal(t, StateIdle, controller.State())
}

func TestController_Stop_FailsOutstandingSends(t *testing.T) {
	transport := newMockTransport()
	written := make(chan struct{})

	transport.setOnWrite(func(*message.Command) {
		close(written)
	})

	controller, _ := newStartedController(t, transport)

	result := make(chan error, 1)

	go func() {
		_, err := controller.Send(context.Background(), "i3c_read", nil, 0)
		result <- err
	}()

	<-written
	controller.Stop()

	select {
	case err := <-result:
		require.ErrorIs(t, err, sdkerrors.ErrSessionClosed)
	case <-time.After(time.Second):
		t.Fatal("outstanding send should fail when the controller stops")
	}

	require.Equal(t, 0, controller.Pending())
}

func TestController_Start_Twice(t *testing.T) {
	transport := newMockTransport()
	controller, _ := newStartedController(t, transport)

	require.Error(t, controller.Start(context.Background()))

	controller.Stop()
	require.Error(t, controller.Start(context.Background()))
}

func TestController_SetFatalError_ConcurrentWithStop(t *testing.T) {
	// This test verifies no panic occurs when SetFatalError and Stop race.
	// Run with: go test -race -count=100
	for range 100 {
		transport := newMockTransport()
		controller := NewController(slog.Default(), transport, nil)

		err := controller.Start(context.Background())
		require.NoError(t, err)

		var wg sync.WaitGroup

		wg.Go(func() {
			controller.SetFatalError(errors.New("transport error"))
		})
		wg.Go(func() {
			controller.Stop()
		})

		wg.Wait()

		select {
		case <-controller.Done():
		default:
			t.Fatal("done channel should be closed")
		}
	}
}

func TestController_SetFatalError_MultipleCalls(t *testing.T) {
	transport := newMockTransport()
	controller := NewController(slog.Default(), transport, nil)

	err := controller.Start(context.Background())
	require.NoError(t, err)

	defer controller.Stop()

	// First error should be stored
	controller.SetFatalError(errors.New("first error"))
	require.EqualError(t, controller.FatalError(), "first error")

	// Second call should not panic, and first error is preserved
	controller.SetFatalError(errors.New("second error"))
	require.EqualError(t, controller.FatalError(), "first error")
}

func TestController_Stop_MultipleCalls(t *testing.T) {
	transport := newMockTransport()
	controller := NewController(slog.Default(), transport, nil)

	err := controller.Start(context.Background())
	require.NoError(t, err)

	controller.Stop()
	controller.Stop()
	controller.Stop()

	select {
	case <-controller.Done():
	default:
		t.Fatal("done channel should be closed")
	}

	require.ErrorIs(t, controller.FatalError(), sdkerrors.ErrSessionClosed)
}

func TestController_Send_ResponseRacesTimeout(t *testing.T) {
	// A response racing the timeout yields either the full transaction or a
	// timeout, never a partial sequence.
	// Run with: go test -race -count=100 -run TestController_Send_ResponseRacesTimeout
	var emitters sync.WaitGroup

	transport := newMockTransport()
	transport.setOnWrite(func(cmd *message.Command) {
		emitters.Go(func() {
			time.Sleep(500 * time.Microsecond)
			transport.emit(responseLine(cmd.TransactionID, "promise", true))
			transport.emit(responseLine(cmd.TransactionID, "final", false))
		})
	})

	controller, _ := newStartedController(t, transport)

	var wg sync.WaitGroup

	for range 50 {
		wg.Go(func() {
			responses, err := controller.Send(context.Background(), "i3c_read", nil, time.Millisecond)
			if err != nil {
				if !errors.Is(err, sdkerrors.ErrRequestTimeout) {
					t.Errorf("unexpected error: %v", err)
				}

				return
			}

			if len(responses) != 2 || responses[1].IsPromise {
				t.Errorf("partial transaction returned: %d responses", len(responses))
			}
		})
	}

	wg.Wait()
	emitters.Wait()

	require.Equal(t, 0, controller.Pending())
	require.Equal(t, StateRunning, controller.State())
}

func TestState_String(t *testing.T) {
	require.Equal(t, "idle", StateIdle.String())
	require.Equal(t, "running", StateRunning.String())
	require.Equal(t, "stopped", StateStopped.String())
	require.Equal(t, "unknown", State(42).String())
}
