// Package subprocess provides subprocess-based transport for the bridge.
//
// This package implements the Transport interface by spawning the bridge
// executable as a child process and exchanging newline-delimited lines over
// its stdin and stdout. It handles process lifecycle management, line
// buffering, stderr capture, and error handling.
package subprocess
