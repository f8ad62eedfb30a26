package message

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/wagiedev/bridge-sdk-go/internal/errors"
)

// responseSchema describes a well-formed inbound envelope. Only the envelope
// is checked; data is opaque.
var responseSchema = &jsonschema.Schema{
	Type:     "object",
	Required: []string{"transaction_id"},
	Properties: map[string]*jsonschema.Schema{
		"transaction_id": {Type: "string", Pattern: `^[0-9]+$`},
		"status":         {Types: []string{"string", "null"}},
		"type":           {Types: []string{"string", "null"}},
		"is_promise":     {Types: []string{"boolean", "null"}},
	},
}

var resolveResponseSchema = sync.OnceValues(func() (*jsonschema.Resolved, error) {
	return responseSchema.Resolve(nil)
})

// Encode serializes a command as a single JSON line without the trailing
// newline. A nil params map is encoded as an empty object.
func Encode(cmd *Command) ([]byte, error) {
	if cmd == nil || cmd.Command == "" {
		return nil, stderrors.New("encode command: empty command name")
	}

	out := *cmd
	if out.Params == nil {
		out.Params = map[string]any{}
	}

	data, err := json.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("encode command %q: %w", cmd.Command, err)
	}

	return data, nil
}

// Decode parses one line into a Response.
//
// Any line that is not a JSON object matching the envelope schema yields a
// *errors.DecodeError carrying the raw line.
func Decode(line []byte) (*Response, error) {
	trimmed := bytes.TrimSpace(line)

	var raw map[string]any
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, &errors.DecodeError{RawData: string(line), Err: err}
	}

	if raw == nil {
		return nil, &errors.DecodeError{
			RawData: string(line),
			Err:     stderrors.New("envelope is not a JSON object"),
		}
	}

	schema, err := resolveResponseSchema()
	if err != nil {
		return nil, &errors.DecodeError{
			RawData: string(line),
			Err:     fmt.Errorf("resolve envelope schema: %w", err),
		}
	}

	if err := schema.Validate(raw); err != nil {
		return nil, &errors.DecodeError{RawData: string(line), Err: err}
	}

	var resp Response
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return nil, &errors.DecodeError{RawData: string(line), Err: err}
	}

	return &resp, nil
}
