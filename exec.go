package bridgesdk

import (
	"context"
	"fmt"
)

// Exec runs a single command against a fresh bridge session.
//
// Exec is a one-shot helper: it starts a client with opts, sends command,
// and closes the session, asking the bridge to exit first. It returns every
// response of the command, ending with the final one.
//
// For more than one command, or to observe notifications, use NewClient or
// WithClient so the bridge and its adapter stay initialized between commands.
//
// Example usage:
//
//	responses, err := bridgesdk.Exec(ctx, "i2c_set_parameters",
//	    map[string]any{"frequency": 400000},
//	    bridgesdk.WithAdapter("BinhoSupernova"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println(bridgesdk.FinalResponse(responses).Status)
func Exec(
	ctx context.Context,
	command string,
	params map[string]any,
	opts ...Option,
) ([]*Response, error) {
	var responses []*Response

	err := WithClient(ctx, func(c Client) error {
		var err error

		responses, err = c.Send(ctx, command, params)

		return err
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("exec: %w", err)
	}

	return responses, nil
}
