package bridgesdk

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	internalmcp "github.com/wagiedev/bridge-sdk-go/internal/mcp"
)

// MCP tool names exposed by NewMCPServer.
const (
	// MCPToolSend sends one command and returns its responses.
	MCPToolSend = internalmcp.ToolSend
	// MCPToolNotifications returns and clears buffered notifications.
	MCPToolNotifications = internalmcp.ToolNotifications
	// MCPToolAdapters lists the adapter profile catalog.
	MCPToolAdapters = internalmcp.ToolAdapters
)

// NewMCPServer returns an MCP server exposing client as tools.
//
// The client must be started before the server handles calls. Notifications
// are buffered from the moment NewMCPServer returns. Only WithLogger is
// read from opts.
//
// Example usage:
//
//	client := bridgesdk.NewClient()
//	defer client.Close()
//
//	if err := client.Start(ctx, bridgesdk.WithAdapter("BinhoSupernova")); err != nil {
//	    log.Fatal(err)
//	}
//
//	server := bridgesdk.NewMCPServer(client, "bridge", bridgesdk.Version)
//	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
//	    log.Fatal(err)
//	}
func NewMCPServer(client Client, name, version string, opts ...Option) *mcp.Server {
	options := applyOptions(opts)

	return internalmcp.NewServer(options.Logger, client, name, version)
}
