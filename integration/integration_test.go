//go:build integration

package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	bridgesdk "github.com/wagiedev/bridge-sdk-go"
)

// simulatedPort opens the bridge's simulated Supernova, so these tests need
// the bridge executable but no hardware.
const simulatedPort = "SupernovaSimulatedPort"

// skipIfBridgeNotInstalled skips the test if the error indicates the bridge is not found.
func skipIfBridgeNotInstalled(t *testing.T, err error) {
	t.Helper()

	if _, ok := errors.AsType[*bridgesdk.BridgeNotFoundError](err); ok {
		t.Skip("bridge executable not installed")
	}
}

// startBridge starts a client on the simulated device.
func startBridge(ctx context.Context, t *testing.T, opts ...bridgesdk.Option) bridgesdk.Client {
	t.Helper()

	client := bridgesdk.NewClient()
	t.Cleanup(func() { _ = client.Close() })

	if err := client.Start(ctx, opts...); err != nil {
		skipIfBridgeNotInstalled(t, err)
		t.Fatalf("Start failed: %v", err)
	}

	responses, err := client.Send(ctx, "open", map[string]any{"address": simulatedPort})
	require.NoError(t, err)
	require.False(t, bridgesdk.FinalResponse(responses).IsError(), "open failed: %v", bridgesdk.FinalResponse(responses).Data)

	return client
}
