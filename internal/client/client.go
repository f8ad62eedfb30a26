package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/bridge-sdk-go/internal/config"
	"github.com/wagiedev/bridge-sdk-go/internal/errors"
	"github.com/wagiedev/bridge-sdk-go/internal/event"
	"github.com/wagiedev/bridge-sdk-go/internal/message"
	"github.com/wagiedev/bridge-sdk-go/internal/protocol"
	"github.com/wagiedev/bridge-sdk-go/internal/subprocess"
)

// exitCommand asks the bridge to release the adapter before stdin closes.
const exitCommand = "exit"

// Client implements the bridge session client.
type Client struct {
	log        *slog.Logger
	transport  config.Transport
	controller *protocol.Controller
	bus        *event.Bus
	options    *config.Options
	sessionID  string

	// Subscriptions made before Start, attached once the bus exists
	early []*subscription

	// Errgroup for goroutine management
	eg *errgroup.Group

	// Lifecycle management
	mu        sync.Mutex
	done      chan struct{}
	connected bool
	closed    bool        // Tracks if Close() has been called
	closing   atomic.Bool // Set while Close() tears the session down
	closeOnce sync.Once   // Ensures Close() only runs once
}

// subscription is an observer registered through OnNotification or
// OnResponse. Before Start it only records the handler.
type subscription struct {
	kind    event.Kind
	handler event.Handler

	mu      sync.Mutex
	cancel  func()
	removed bool
}

// New creates a new client.
//
// The client is not connected after creation. Call Start() with options to connect.
func New() *Client {
	return &Client{
		done: make(chan struct{}),
	}
}

// isConnected returns true if the client is connected.
// This method is safe to call from any goroutine.
func (c *Client) isConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connected
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

// connectionError returns the error reported by calls made while not connected.
func (c *Client) connectionError() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.ErrClientClosed
	}

	return errors.ErrClientNotConnected
}

// Start launches the bridge and begins routing its responses.
//
// The context bounds startup only: cancelling it after Start returns does
// not end the session. Use Close for that.
//
// Returns BridgeNotFoundError if the bridge executable cannot be located,
// or ConnectionError if the process fails to start.
func (c *Client) Start(ctx context.Context, options *config.Options) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.ErrClientClosed
	}

	if c.connected {
		return errors.ErrClientAlreadyConnected
	}

	// Default to empty options if nil
	if options == nil {
		options = &config.Options{}
	}

	// Extract logger from options, defaulting to a no-op logger
	log := options.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c.sessionID = ulid.Make().String()
	c.log = log.With("component", "client", "session_id", c.sessionID)
	c.options = options

	// Create or use injected transport
	var transport config.Transport

	if options.Transport != nil {
		transport = options.Transport

		c.log.Debug("Using injected custom transport")
	} else {
		transport = subprocess.NewBridgeTransport(c.log, options)
	}

	c.log.Info("Starting transport")

	if err := transport.Start(ctx); err != nil {
		return fmt.Errorf("start transport: %w", err)
	}

	c.transport = transport
	c.bus = event.NewBus(c.log, options.EventBufferSize)

	// The bus exists before the router starts, so early subscribers see the
	// first line the bridge writes.
	c.attachEarlySubscriptions()

	// Create errgroup with background context for goroutine management.
	// The caller's ctx may carry a startup deadline; the session must outlive
	// it and is ended explicitly by Close via c.done.
	var egCtx context.Context

	c.eg, egCtx = errgroup.WithContext(context.Background())

	c.controller = protocol.NewController(c.log, transport, c.bus)
	if err := c.controller.Start(egCtx); err != nil {
		_ = transport.Close()
		c.bus.Close()

		return fmt.Errorf("start protocol controller: %w", err)
	}

	c.eg.Go(func() error {
		return c.watchSession(egCtx)
	})

	c.connected = true
	c.log.Info("Client started successfully")

	return nil
}

// watchSession logs a session that ends without Close being called.
func (c *Client) watchSession(ctx context.Context) error {
	defer c.log.Debug("Session watcher stopped")

	select {
	case <-c.controller.Done():
		if c.closing.Load() {
			return nil
		}

		c.log.Error("Bridge session ended unexpectedly",
			"error", c.controller.FatalError(),
			"pending", c.controller.Pending(),
		)

		return nil

	case <-c.done:
		return nil

	case <-ctx.Done():
		return nil
	}
}

// Send writes one command to the bridge and waits for its final response.
//
// It returns every response of the transaction in arrival order, ending with
// the final one. Notifications are never part of the result. Params may be
// nil. Any number of goroutines may call Send concurrently.
func (c *Client) Send(
	ctx context.Context,
	command string,
	params map[string]any,
) ([]*message.Response, error) {
	if !c.isConnected() {
		return nil, c.connectionError()
	}

	responses, err := c.controller.Send(ctx, command, params, c.options.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("send %q: %w", command, err)
	}

	return responses, nil
}

// OnNotification registers handler for notifications, the responses with
// transaction ID "0". Handlers run on their own goroutine in arrival order.
//
// It may be called before Start. The returned function removes the handler.
func (c *Client) OnNotification(handler func(*message.Response)) func() {
	return c.subscribe(event.KindNotification, handler)
}

// OnResponse registers handler for every decoded response, notifications
// included, before it is correlated to a command.
//
// It may be called before Start. The returned function removes the handler.
func (c *Client) OnResponse(handler func(*message.Response)) func() {
	return c.subscribe(event.KindResponse, handler)
}

func (c *Client) subscribe(kind event.Kind, handler func(*message.Response)) func() {
	if handler == nil || c.isClosed() {
		return func() {}
	}

	sub := &subscription{kind: kind, handler: handler}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bus != nil {
		sub.attach(c.bus)
	} else {
		c.early = append(c.early, sub)
	}

	return sub.remove
}

// attachEarlySubscriptions moves subscriptions made before Start onto the bus.
// Caller must hold c.mu.
func (c *Client) attachEarlySubscriptions() {
	for _, sub := range c.early {
		sub.attach(c.bus)
	}

	if len(c.early) > 0 {
		c.log.Debug("Attached early subscriptions", "count", len(c.early))
	}

	c.early = nil
}

func (s *subscription) attach(bus *event.Bus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.removed {
		return
	}

	s.cancel = bus.Subscribe(s.kind, s.handler)
}

func (s *subscription) remove() {
	s.mu.Lock()
	cancel := s.cancel
	s.removed = true
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// SessionID returns the identifier of the current session, or "" before Start.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.sessionID
}

// Done returns a channel that is closed when the session ends, either
// because the bridge stopped or Close was called. Before Start it returns nil.
func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.controller == nil {
		return nil
	}

	return c.controller.Done()
}

// Err returns why the session ended, or nil while it is running.
func (c *Client) Err() error {
	c.mu.Lock()
	controller := c.controller
	c.mu.Unlock()

	if controller == nil {
		return nil
	}

	return controller.FatalError()
}

// DroppedEvents returns how many OnNotification and OnResponse deliveries
// were skipped because a handler fell more than EventBufferSize events
// behind. It is zero before Start.
func (c *Client) DroppedEvents() uint64 {
	c.mu.Lock()
	bus := c.bus
	c.mu.Unlock()

	if bus == nil {
		return 0
	}

	return bus.Dropped()
}

// Close terminates the session and cleans up resources.
//
// Close first asks the bridge to exit, closes its input and gives it
// ExitTimeout to close its output. Commands still waiting then fail with
// ErrSessionClosed and the process is killed.
//
// After Close(), the client cannot be reused - create a new client with New().
// This method is safe to call multiple times.
func (c *Client) Close() error {
	var closeErr error

	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		wasConnected := c.connected
		c.connected = false
		c.mu.Unlock()

		if !wasConnected {
			return
		}

		c.closing.Store(true)
		c.log.Info("Closing client")

		exitTimeout := c.options.ExitTimeoutOrDefault()

		c.requestExit(exitTimeout)

		if err := c.transport.EndInput(); err != nil {
			c.log.Debug("Failed to close bridge input", "error", err)
		}

		c.awaitSessionEnd(exitTimeout)

		// Signal shutdown
		close(c.done)

		c.controller.Stop()

		// Close transport and capture error
		closeErr = c.transport.Close()

		// Wait for errgroup goroutines to complete
		if err := c.eg.Wait(); err != nil && closeErr == nil {
			closeErr = err
		}

		c.bus.Close()

		c.log.Info("Client closed")
	})

	return closeErr
}

// requestExit sends the exit command through the normal send path. The
// outcome is only logged; teardown continues either way.
func (c *Client) requestExit(timeout time.Duration) {
	if c.options.SkipExitCommand {
		return
	}

	select {
	case <-c.controller.Done():
		return
	default:
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if _, err := c.controller.Send(ctx, exitCommand, nil, timeout); err != nil {
		c.log.Debug("Exit command did not complete", "error", err)
	}
}

// awaitSessionEnd waits for the router to observe the end of the bridge output.
func (c *Client) awaitSessionEnd(timeout time.Duration) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-c.controller.Done():
		c.log.Debug("Bridge closed its output")
	case <-timer.C:
		c.log.Warn("Bridge did not close its output in time", "timeout", timeout)
	}
}
