// Package protocol correlates bridge commands with their responses.
//
// The protocol package provides a Controller that owns one bridge session:
// it writes command lines, reads response lines, and routes each response to
// the Send call waiting on its transaction ID.
//
// The Controller handles:
//   - Allocating monotonic decimal transaction IDs, starting at "1"
//   - Collecting promise responses until the final one arrives
//   - Publishing notifications (transaction ID "0") without touching
//     any transaction
//   - Dropping malformed lines and orphan responses without stopping
//   - Per-request timeout and context cancellation
//
// Example usage:
//
//	transport := subprocess.NewBridgeTransport(log, options)
//	transport.Start(ctx)
//
//	bus := event.NewBus(log, 0)
//	controller := protocol.NewController(log, transport, bus)
//	controller.Start(ctx)
//
//	// Send a command and wait for its final response
//	responses, err := controller.Send(ctx, "open", params, 5*time.Second)
package protocol
