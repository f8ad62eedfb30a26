// Package client implements the Client for bridge sessions.
//
// A Client owns one bridge process for its whole life. It starts the
// transport, runs the protocol controller that correlates responses to
// commands, and fans responses and notifications out to observers.
// Any number of goroutines may send commands concurrently.
//
// Close asks the bridge to exit, closes its input and waits a bounded time
// for it to finish before the process is killed. Clients are single-use.
package client
