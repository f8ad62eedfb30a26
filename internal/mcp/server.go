package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagiedev/bridge-sdk-go/internal/adapters"
	"github.com/wagiedev/bridge-sdk-go/internal/message"
)

// Tool names exposed by the server.
const (
	ToolSend          = "bridge_send"
	ToolNotifications = "bridge_notifications"
	ToolAdapters      = "bridge_adapters"
)

// DefaultNotificationLimit is the number of notifications kept between two
// bridge_notifications calls.
const DefaultNotificationLimit = 256

// Sender is the part of a bridge client the tools use.
type Sender interface {
	Send(ctx context.Context, command string, params map[string]any) ([]*message.Response, error)
	OnNotification(handler func(*message.Response)) func()
}

var minCommandLength = 1

var sendSchema = &jsonschema.Schema{
	Type:     "object",
	Required: []string{"command"},
	Properties: map[string]*jsonschema.Schema{
		"command": {
			Type:        "string",
			MinLength:   &minCommandLength,
			Description: "Bridge command name, e.g. i3c_init_bus",
		},
		"params": {
			Type:        "object",
			Description: "Command parameters, passed to the bridge verbatim",
		},
	},
}

var emptySchema = &jsonschema.Schema{Type: "object"}

var resolveSendSchema = sync.OnceValues(func() (*jsonschema.Resolved, error) {
	return sendSchema.Resolve(nil)
})

// Tools exposes a bridge session as MCP tools.
//
// Notifications are buffered from the moment Tools is created. When more
// than the limit arrive between two reads, the oldest are discarded and
// counted.
type Tools struct {
	log    *slog.Logger
	sender Sender
	limit  int

	mu            sync.Mutex
	notifications []*message.Response
	dropped       int

	unsubscribe func()
}

// NewTools creates Tools for sender and starts buffering its notifications.
// A limit of zero or less uses DefaultNotificationLimit.
func NewTools(log *slog.Logger, sender Sender, limit int) *Tools {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if limit <= 0 {
		limit = DefaultNotificationLimit
	}

	t := &Tools{
		log:    log.With("component", "bridge_tools"),
		sender: sender,
		limit:  limit,
	}

	t.unsubscribe = sender.OnNotification(t.record)

	return t
}

// NewServer returns an MCP server named name exposing the bridge tools for sender.
func NewServer(log *slog.Logger, sender Sender, name, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil)

	NewTools(log, sender, DefaultNotificationLimit).Register(server)

	return server
}

// Register adds the bridge tools to server.
func (t *Tools) Register(server *mcp.Server) {
	server.AddTool(
		NewTool(ToolSend, "Send one command to the bridge and return every response of its transaction", sendSchema),
		t.handleSend,
	)

	notifications := NewTool(ToolNotifications,
		"Return and clear the notifications received since the previous call", emptySchema)
	notifications.Annotations = &mcp.ToolAnnotations{ReadOnlyHint: true}

	server.AddTool(notifications, t.handleNotifications)

	adapterList := NewTool(ToolAdapters, "List the known host adapter profiles", emptySchema)
	adapterList.Annotations = &mcp.ToolAnnotations{ReadOnlyHint: true, IdempotentHint: true}

	server.AddTool(adapterList, t.handleAdapters)
}

// Close stops buffering notifications.
func (t *Tools) Close() {
	if t.unsubscribe != nil {
		t.unsubscribe()
	}
}

func (t *Tools) record(resp *message.Response) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.notifications) >= t.limit {
		t.notifications = append(t.notifications[:0], t.notifications[1:]...)
		t.dropped++
	}

	t.notifications = append(t.notifications, resp)
}

// drain returns and clears the buffered notifications and the drop count.
func (t *Tools) drain() ([]*message.Response, int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := t.notifications
	dropped := t.dropped

	t.notifications = nil
	t.dropped = 0

	return out, dropped
}

func (t *Tools) handleSend(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := ParseArguments(req)
	if err != nil {
		return ErrorResult(err.Error()), nil
	}

	schema, err := resolveSendSchema()
	if err != nil {
		return nil, fmt.Errorf("resolve %s schema: %w", ToolSend, err)
	}

	if err := schema.Validate(args); err != nil {
		return ErrorResult("invalid arguments: " + err.Error()), nil
	}

	command, _ := args["command"].(string)
	params, _ := args["params"].(map[string]any)

	t.log.Debug("Forwarding tool call", "command", command)

	responses, err := t.sender.Send(ctx, command, params)
	if err != nil {
		t.log.Warn("Bridge command failed", "command", command, "error", err)

		return ErrorResult(err.Error()), nil
	}

	result, err := jsonResult(map[string]any{"responses": responses})
	if err != nil {
		return nil, err
	}

	if final := message.Final(responses); final != nil && final.IsError() {
		result.IsError = true
	}

	return result, nil
}

func (t *Tools) handleNotifications(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notifications, dropped := t.drain()
	if notifications == nil {
		notifications = []*message.Response{}
	}

	return jsonResult(map[string]any{
		"notifications": notifications,
		"dropped":       dropped,
	})
}

func (t *Tools) handleAdapters(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	all := adapters.All()
	out := make([]map[string]any, 0, len(all))

	for _, a := range all {
		entry := map[string]any{
			"id":      a.ID,
			"name":    a.Name,
			"aliases": a.Aliases,
			"buses":   a.BusStrings(),
		}

		if a.SimulatedAddress != "" {
			entry["simulated_address"] = a.SimulatedAddress
		}

		out = append(out, entry)
	}

	return jsonResult(map[string]any{"adapters": out})
}

// jsonResult encodes v as the text content of a result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}

	return TextResult(string(data)), nil
}

// TextResult creates a CallToolResult with text content.
func TextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// ErrorResult creates a CallToolResult indicating an error.
func ErrorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
		IsError: true,
	}
}

// NewTool creates an mcp.Tool with the given parameters.
func NewTool(name, description string, inputSchema *jsonschema.Schema) *mcp.Tool {
	return &mcp.Tool{
		Name:        name,
		Description: description,
		InputSchema: inputSchema,
	}
}

// ParseArguments unmarshals CallToolRequest arguments into a map.
func ParseArguments(req *mcp.CallToolRequest) (map[string]any, error) {
	if req == nil || req.Params == nil {
		return make(map[string]any), nil
	}

	if len(req.Params.Arguments) == 0 {
		return make(map[string]any), nil
	}

	var args map[string]any
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
	}

	return args, nil
}
