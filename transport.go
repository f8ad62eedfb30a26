package bridgesdk

import "github.com/wagiedev/bridge-sdk-go/internal/config"

// Transport defines the interface for bridge communication.
// Implement this to provide custom transports for testing, mocking,
// or alternative communication methods (e.g., a bridge on a remote host).
//
// The default implementation spawns the bridge as a subprocess.
// Custom transports can be injected via WithTransport.
type Transport = config.Transport
