package protocol

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wagiedev/bridge-sdk-go/internal/errors"
	"github.com/wagiedev/bridge-sdk-go/internal/event"
	"github.com/wagiedev/bridge-sdk-go/internal/message"
)

// exitStatusGrace bounds how long the router waits, after the worker closes
// its output, for the transport to report the process exit status.
const exitStatusGrace = 250 * time.Millisecond

// maxLoggedLine caps how much of a malformed line is logged.
const maxLoggedLine = 256

// Transport defines the minimal interface needed for protocol operations.
//
// This interface is satisfied by the BridgeTransport but allows for testing
// with mock transports.
type Transport interface {
	ReadLines(ctx context.Context) (<-chan []byte, <-chan error)
	WriteLine(ctx context.Context, data []byte) error
}

// State is the lifecycle state of the response router.
type State int32

const (
	// StateIdle means Start has not been called.
	StateIdle State = iota
	// StateRunning means the router is consuming the worker's output.
	StateRunning
	// StateStopped is terminal: the stream ended, failed, or Stop was called.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Controller correlates commands with the responses the bridge sends back.
//
// The Controller handles:
//   - Allocating monotonic transaction IDs and writing command lines
//   - Reading response lines and routing them to the waiting Send call
//   - Publishing every response, and every notification, on the event bus
//   - Failing all outstanding and future sends once the session ends
//
// The Controller must be started with Start() before use and manages its own
// goroutine for reading and routing responses.
type Controller struct {
	log       *slog.Logger
	transport Transport
	bus       *event.Bus
	registry  *Registry

	lastID atomic.Uint64
	state  atomic.Int32

	// Fatal error handling - stores error and broadcasts via done channel
	errMu    sync.RWMutex
	fatalErr error

	// Lifecycle management
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewController creates a new protocol controller.
//
// The bus may be nil, in which case responses are only correlated. The
// transport must be connected before calling Start().
func NewController(log *slog.Logger, transport Transport, bus *event.Bus) *Controller {
	return &Controller{
		log:       log.With("component", "protocol"),
		transport: transport,
		bus:       bus,
		registry:  NewRegistry(),
		done:      make(chan struct{}),
	}
}

// closeDone safely closes the done channel exactly once.
func (c *Controller) closeDone() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// SetFatalError stores a fatal error and broadcasts to all waiters by closing done.
func (c *Controller) SetFatalError(err error) {
	c.errMu.Lock()

	if c.fatalErr == nil {
		c.fatalErr = err
	}

	c.errMu.Unlock()

	c.state.Store(int32(StateStopped))
	c.closeDone()
}

// FatalError returns the fatal error if one occurred.
func (c *Controller) FatalError() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()

	return c.fatalErr
}

// Done returns a channel that is closed when the controller stops.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// State returns the router's lifecycle state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Pending returns the number of transactions awaiting their final response.
func (c *Controller) Pending() int {
	return c.registry.Len()
}

// Start begins reading lines from the transport and routing responses.
//
// The router goroutine stops when the worker closes its output, the
// transport fails, the context is cancelled, or Stop is called. A stopped
// controller cannot be restarted.
func (c *Controller) Start(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return fmt.Errorf("start protocol controller: already %s", c.State())
	}

	c.log.Debug("Starting protocol controller")

	lines, errs := c.transport.ReadLines(ctx)

	c.wg.Add(1)

	go c.readLoop(ctx, lines, errs)

	c.log.Info("Protocol controller started")

	return nil
}

// Stop shuts down the router and waits for it to exit.
//
// Outstanding sends fail with ErrSessionClosed. It's safe to call Stop
// multiple times.
func (c *Controller) Stop() {
	c.log.Debug("Stopping protocol controller")

	c.SetFatalError(errors.ErrSessionClosed)
	c.wg.Wait()

	if ids := c.registry.IDs(); len(ids) > 0 {
		c.log.Debug("Protocol controller stopped with pending transactions", "transaction_ids", ids)
	}

	c.log.Info("Protocol controller stopped")
}

// Send writes one command and waits for its final response.
//
// It returns every response of the transaction, in arrival order, ending
// with the final one. The wait ends early when the timeout (if positive)
// elapses, ctx is done, or the session ends; the transaction is then
// abandoned and responses that arrive later are dropped.
//
// Returns:
//   - *errors.TransportClosedError if the command could not be written
//   - errors.ErrRequestTimeout if the timeout elapsed
//   - ctx.Err() if the context ended first
//   - an error matching errors.ErrSessionClosed if the session ended
func (c *Controller) Send(
	ctx context.Context,
	command string,
	params map[string]any,
	timeout time.Duration,
) ([]*message.Response, error) {
	if command == "" {
		return nil, stderrors.New("send: empty command name")
	}

	switch c.State() {
	case StateIdle:
		return nil, fmt.Errorf("send %q: %w", command, errors.ErrTransportNotConnected)
	case StateStopped:
		return nil, c.sessionError()
	}

	cmd := &message.Command{
		TransactionID: c.nextID(),
		Command:       command,
		Params:        params,
	}
	id := cmd.TransactionID

	pending, err := c.registry.Register(cmd)
	if err != nil {
		c.log.Error("Failed to register transaction", "transaction_id", id, "error", err)

		return nil, err
	}

	data, err := message.Encode(cmd)
	if err != nil {
		c.registry.Abandon(id)

		return nil, err
	}

	c.log.Debug("Sending command", "transaction_id", id, "command", command)

	if err := c.transport.WriteLine(ctx, data); err != nil {
		c.registry.Abandon(id)

		if ctxErr := ctx.Err(); ctxErr != nil {
			c.log.Debug("Command write cancelled", "transaction_id", id)

			return nil, ctxErr
		}

		c.log.Error("Failed to write command", "transaction_id", id, "error", err)

		return nil, &errors.TransportClosedError{Err: err}
	}

	var expired <-chan time.Time

	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()

		expired = timer.C
	}

	select {
	case <-pending.Done():
		responses, err := c.registry.Remove(id)
		if err != nil {
			return nil, err
		}

		c.log.Debug("Command completed", "transaction_id", id, "responses", len(responses))

		return responses, nil

	case <-c.done:
		err := c.sessionError()
		c.log.Debug("Session ended during command", "transaction_id", id, "error", err)

		return c.settle(id, err)

	case <-expired:
		c.log.Warn("Command timed out", "transaction_id", id, "command", command, "timeout", timeout)

		return c.settle(id, fmt.Errorf("%w after %s", errors.ErrRequestTimeout, timeout))

	case <-ctx.Done():
		c.log.Debug("Command cancelled", "transaction_id", id)

		return c.settle(id, ctx.Err())
	}
}

// settle resolves a wait that ended without the completion signal. A
// transaction that completed in the meantime still yields its responses;
// otherwise it is abandoned and cause is returned.
func (c *Controller) settle(id string, cause error) ([]*message.Response, error) {
	if responses, err := c.registry.Remove(id); err == nil {
		return responses, nil
	}

	c.registry.Abandon(id)

	return nil, cause
}

// sessionError returns the error outstanding sends fail with once the
// session has ended.
func (c *Controller) sessionError() error {
	if err := c.FatalError(); err != nil {
		return err
	}

	return errors.ErrSessionClosed
}

// nextID allocates the next transaction ID. IDs start at 1, so the reserved
// notification ID is never allocated.
func (c *Controller) nextID() string {
	return strconv.FormatUint(c.lastID.Add(1), 10)
}

// readLoop consumes response lines until the stream ends or the controller
// stops.
func (c *Controller) readLoop(
	ctx context.Context,
	lines <-chan []byte,
	errs <-chan error,
) {
	defer c.wg.Done()
	defer c.log.Debug("Protocol read loop stopped")

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				c.log.Debug("Line channel closed")
				c.stopWith(c.streamError(errs))

				return
			}

			c.handleLine(line)

		case <-c.done:
			c.log.Debug("Protocol controller stop signal received")

			return

		case <-ctx.Done():
			c.log.Debug("Context cancelled in protocol read loop")
			c.stopWith(ctx.Err())

			return
		}
	}
}

// streamError collects the transport's reason for ending the stream, if it
// reports one shortly after closing the line channel.
func (c *Controller) streamError(errs <-chan error) error {
	if errs == nil {
		return nil
	}

	timer := time.NewTimer(exitStatusGrace)
	defer timer.Stop()

	for {
		select {
		case err, ok := <-errs:
			if !ok {
				return nil
			}

			if err != nil {
				return err
			}

		case <-timer.C:
			return nil

		case <-c.done:
			return nil
		}
	}
}

// stopWith records why the session ended and wakes every waiter. The
// recorded error always matches errors.ErrSessionClosed.
func (c *Controller) stopWith(cause error) {
	err := errors.ErrSessionClosed

	switch {
	case cause == nil:
	case stderrors.Is(cause, errors.ErrSessionClosed):
		err = cause
	default:
		err = fmt.Errorf("%w: %w", errors.ErrSessionClosed, cause)
	}

	if cause != nil {
		c.log.Warn("Bridge session ended", "error", cause, "pending", c.registry.IDs())
	} else {
		c.log.Info("Bridge session ended", "pending", c.registry.IDs())
	}

	c.SetFatalError(err)
}

// handleLine decodes one line and routes it.
func (c *Controller) handleLine(line []byte) {
	resp, err := message.Decode(line)
	if err != nil {
		c.log.Warn("Dropping malformed line", "error", err, "line", truncate(line))

		return
	}

	c.publish(event.KindResponse, resp)

	if resp.IsNotification() {
		c.log.Debug("Received notification", "type", resp.Type)
		c.publish(event.KindNotification, resp)

		return
	}

	id := resp.TransactionID

	if !c.registry.Append(id, resp) {
		c.log.Debug("Dropping orphan response", "transaction_id", id, "type", resp.Type)

		return
	}

	c.log.Debug("Received response",
		"transaction_id", id,
		"type", resp.Type,
		"status", resp.Status,
		"is_promise", resp.IsPromise,
	)

	if !resp.IsPromise {
		c.registry.Complete(id)
	}
}

func (c *Controller) publish(kind event.Kind, resp *message.Response) {
	if c.bus != nil {
		c.bus.Publish(kind, resp)
	}
}

func truncate(line []byte) string {
	if len(line) <= maxLoggedLine {
		return string(line)
	}

	return string(line[:maxLoggedLine]) + "..."
}
