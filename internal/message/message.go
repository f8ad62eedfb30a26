// Package message defines the bridge wire envelopes and their line codec.
//
// Every line exchanged with the bridge is a single JSON object. Outbound lines
// carry a Command; inbound lines carry a Response. The codec never interprets
// command params or response data: both are opaque structured values.
package message

import (
	"encoding/json"
	"fmt"
)

// NotificationTransactionID is the reserved transaction ID of unsolicited
// messages. It is never allocated to a command.
const NotificationTransactionID = "0"

// Status values reported by the bridge.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Command is an outbound request.
//
// Wire format:
//
//	{
//	  "transaction_id": "3",
//	  "command": "i3c_init_bus",
//	  "params": {"busVoltageInV": "3.3"}
//	}
type Command struct {
	TransactionID string         `json:"transaction_id"` //nolint:tagliatelle // bridge uses snake_case
	Command       string         `json:"command"`
	Params        map[string]any `json:"params"`
}

// Response is an inbound envelope.
//
// Wire format:
//
//	{
//	  "transaction_id": "3",
//	  "status": "success",
//	  "type": "i3c_init_bus",
//	  "is_promise": false,
//	  "data": {...}
//	}
//
// A response with IsPromise set is followed by more responses for the same
// transaction; the first response without it is the final one.
type Response struct {
	TransactionID string `json:"transaction_id"` //nolint:tagliatelle // bridge uses snake_case
	Status        string `json:"status"`
	Type          string `json:"type"`
	IsPromise     bool   `json:"is_promise"` //nolint:tagliatelle // bridge uses snake_case

	// Data is the decoded payload: nil, bool, float64, string, []any or
	// map[string]any.
	Data any `json:"data"`
}

// IsNotification reports whether the response is unsolicited.
func (r *Response) IsNotification() bool {
	return r.TransactionID == NotificationTransactionID
}

// IsError reports whether the bridge flagged the response as failed.
func (r *Response) IsError() bool {
	return r.Status == StatusError
}

// DataMap returns Data as an object, or nil if it is not one.
func (r *Response) DataMap() map[string]any {
	if m, ok := r.Data.(map[string]any); ok {
		return m
	}

	return nil
}

// DecodeData re-decodes Data into v.
func (r *Response) DecodeData(v any) error {
	raw, err := json.Marshal(r.Data)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}

	return nil
}

// Final returns the last response of a completed transaction, or nil.
func Final(responses []*Response) *Response {
	if len(responses) == 0 {
		return nil
	}

	return responses[len(responses)-1]
}
