package bridgesdk

import (
	"context"

	"github.com/wagiedev/bridge-sdk-go/internal/client"
)

// clientWrapper wraps the internal client to adapt it to the public interface.
type clientWrapper struct {
	impl *client.Client
}

// Compile-time check that *clientWrapper implements the Client interface.
var _ Client = (*clientWrapper)(nil)

// newClientImpl creates the internal client implementation.
func newClientImpl() Client {
	return &clientWrapper{impl: client.New()}
}

// Start launches the bridge and begins routing its responses.
func (c *clientWrapper) Start(ctx context.Context, opts ...Option) error {
	return c.impl.Start(ctx, applyOptions(opts))
}

// Send writes one command and waits for its final response.
func (c *clientWrapper) Send(ctx context.Context, command string, params map[string]any) ([]*Response, error) {
	return c.impl.Send(ctx, command, params)
}

// OnNotification registers a handler for notifications.
func (c *clientWrapper) OnNotification(handler func(*Response)) func() {
	return c.impl.OnNotification(handler)
}

// OnResponse registers a handler for every response line.
func (c *clientWrapper) OnResponse(handler func(*Response)) func() {
	return c.impl.OnResponse(handler)
}

// DroppedEvents returns how many handler deliveries were skipped.
func (c *clientWrapper) DroppedEvents() uint64 {
	return c.impl.DroppedEvents()
}

// SessionID returns the identifier of the session.
func (c *clientWrapper) SessionID() string {
	return c.impl.SessionID()
}

// Done returns a channel closed when the session ends.
func (c *clientWrapper) Done() <-chan struct{} {
	return c.impl.Done()
}

// Err returns why the session ended.
func (c *clientWrapper) Err() error {
	return c.impl.Err()
}

// Close terminates the session and cleans up resources.
func (c *clientWrapper) Close() error {
	return c.impl.Close()
}
