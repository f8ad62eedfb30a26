// Package mcp exposes a bridge session as Model Context Protocol tools.
//
// The tools are registered on an official MCP SDK server, so any MCP host
// can drive a bridge: bridge_send forwards one command and returns its
// responses, bridge_notifications hands out the notifications buffered
// since the previous call and bridge_adapters lists the known profiles.
package mcp
