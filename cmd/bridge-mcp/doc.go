// bridge-mcp serves a bridge session to MCP clients over stdio.
//
// It starts one bridge process for the configured host adapter and exposes
// it as three tools: bridge_send runs a command and returns its responses,
// bridge_notifications drains the notifications received since the previous
// call, and bridge_adapters lists the known adapter profiles.
//
// Standard output carries the MCP protocol; logs go to standard error.
package main
