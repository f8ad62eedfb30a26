// Package cli provides discovery of the bridge executable and construction
// of its command line and environment.
//
// # Bridge Discovery
//
// The Discoverer interface locates the bridge executable:
//
//	discoverer := cli.NewDiscoverer(&cli.Config{
//	    BridgePath: "",           // Optional explicit path
//	    Logger:     slog.Default(),
//	})
//	bridgePath, err := discoverer.Discover(ctx)
//
// Discovery searches in the following order:
//  1. Explicit path in Config.BridgePath (if provided)
//  2. The BRIDGE_SDK_PATH environment variable
//  3. System PATH
//  4. Common installation directories (/usr/local/bin, /usr/bin, ~/.local/bin)
//
// # Command Building
//
// The bridge takes exactly one argument, the adapter profile:
//
//	args := cli.BuildArgs(options, log)
//	env := cli.BuildEnvironment(options)
package cli
