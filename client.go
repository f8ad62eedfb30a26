package bridgesdk

import "context"

// Client provides a session with one bridge process.
//
// Commands are correlated to their responses by transaction ID, so Send may
// be called from many goroutines at once. Notifications, which belong to no
// command, are delivered to OnNotification handlers.
//
// Lifecycle: Clients are single-use. After Close(), create a new client with NewClient().
//
// Example usage:
//
//	client := bridgesdk.NewClient()
//	defer client.Close()
//
//	err := client.Start(ctx,
//	    bridgesdk.WithLogger(slog.Default()),
//	    bridgesdk.WithAdapter("BinhoSupernova"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	responses, err := client.Send(ctx, "i3c_init_bus", map[string]any{"busVoltageInV": "3.3"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	final := bridgesdk.FinalResponse(responses)
type Client interface {
	// Start launches the bridge and begins routing its responses.
	// Must be called before Send.
	// Returns BridgeNotFoundError if the bridge is not found, ConnectionError on failure.
	Start(ctx context.Context, opts ...Option) error

	// Send writes one command and waits for its final response.
	// It returns every response of the command in arrival order, ending with
	// the final one. Params may be nil.
	// Fails with ErrRequestTimeout, ctx.Err(), or an error matching
	// ErrSessionClosed; a failed Send never returns partial responses.
	Send(ctx context.Context, command string, params map[string]any) ([]*Response, error)

	// OnNotification registers a handler for notifications. Handlers run on
	// their own goroutine in arrival order and may be registered before Start.
	// The returned function removes the handler.
	OnNotification(handler func(*Response)) (unsubscribe func())

	// OnResponse registers a handler for every response line, notifications
	// included, before it is matched to a command.
	// The returned function removes the handler.
	OnResponse(handler func(*Response)) (unsubscribe func())

	// DroppedEvents returns how many handler deliveries were skipped because
	// a handler fell more than EventBufferSize events behind.
	DroppedEvents() uint64

	// SessionID returns the identifier of the session, or "" before Start.
	SessionID() string

	// Done returns a channel closed when the session ends. Nil before Start.
	Done() <-chan struct{}

	// Err returns why the session ended, or nil while it is running.
	Err() error

	// Close asks the bridge to exit, then terminates it and cleans up resources.
	// After Close(), the client cannot be reused. Safe to call multiple times.
	Close() error
}

// NewClient creates a new bridge client.
//
// Call Start() with options to begin a session:
//
//	client := NewClient()
//	err := client.Start(ctx,
//	    WithLogger(slog.Default()),
//	    WithAdapter("BinhoSupernova"),
//	)
func NewClient() Client {
	return newClientImpl()
}
