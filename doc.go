// Package bridgesdk provides a Go SDK for driving a hardware bridge process.
//
// The bridge is a worker executable that owns a host adapter (such as a Binho
// Supernova) and exchanges one JSON object per line with its parent over
// stdin and stdout. This SDK launches the bridge, writes commands with
// unique transaction IDs and matches every response line back to the
// command that produced it, including multi-part promise responses and
// unsolicited notifications such as I3C in-band interrupts.
//
// # Basic Usage
//
// For a single command, use the Exec function:
//
//	ctx := context.Background()
//	responses, err := bridgesdk.Exec(ctx, "i3c_init_bus",
//	    map[string]any{"busVoltageInV": "3.3"},
//	    bridgesdk.WithAdapter("BinhoSupernova"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	final := bridgesdk.FinalResponse(responses)
//	fmt.Println(final.Status, final.Data)
//
// # Sessions
//
// For many commands, use NewClient or the WithClient helper. Send may be
// called from any number of goroutines at once:
//
//	err := bridgesdk.WithClient(ctx, func(c bridgesdk.Client) error {
//	    unsubscribe := c.OnNotification(func(n *bridgesdk.Response) {
//	        fmt.Println("notification:", n.Type, n.Data)
//	    })
//	    defer unsubscribe()
//
//	    responses, err := c.Send(ctx, "i3c_get_target_device_table", nil)
//	    if err != nil {
//	        return err
//	    }
//	    // process responses...
//	    return nil
//	},
//	    bridgesdk.WithLogger(slog.Default()),
//	    bridgesdk.WithRequestTimeout(5*time.Second),
//	)
//
// # Logging
//
// For detailed operation tracking, use WithLogger:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
//	responses, err := bridgesdk.Exec(ctx, "i2c_read", params,
//	    bridgesdk.WithLogger(logger),
//	)
//
// # Error Handling
//
// The SDK provides typed errors for different failure scenarios:
//
//	responses, err := bridgesdk.Exec(ctx, "i2c_read", params)
//	if err != nil {
//	    if nf, ok := errors.AsType[*bridgesdk.BridgeNotFoundError](err); ok {
//	        log.Fatalf("bridge not installed, searched: %v", nf.SearchedPaths)
//	    }
//	    if errors.Is(err, bridgesdk.ErrSessionClosed) {
//	        log.Fatal("bridge exited")
//	    }
//	    log.Fatal(err)
//	}
//
// # Requirements
//
// The bridge executable must be installed and available in your system PATH,
// in BRIDGE_SDK_PATH, or set explicitly with the WithBridgePath option.
package bridgesdk
