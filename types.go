package bridgesdk

import (
	"github.com/wagiedev/bridge-sdk-go/internal/config"
	"github.com/wagiedev/bridge-sdk-go/internal/message"
)

// Re-export types from internal packages

// ===== Options and Configuration =====

// BridgeOptions configures the behavior of the bridge client.
type BridgeOptions = config.Options

// ConfigFile is the YAML form of BridgeOptions. See LoadConfigFile.
type ConfigFile = config.File

// ===== Envelopes =====

// Command is an outbound bridge command line.
type Command = message.Command

// Response is an inbound bridge response line.
//
// Responses with IsPromise set are followed by more responses for the same
// transaction. Responses whose TransactionID is NotificationTransactionID
// are notifications and belong to no command.
type Response = message.Response

// NotificationTransactionID is the transaction ID carried by notifications.
const NotificationTransactionID = message.NotificationTransactionID

// Response status values reported by the bridge.
const (
	// StatusSuccess marks a successful response.
	StatusSuccess = message.StatusSuccess
	// StatusError marks a failed response.
	StatusError = message.StatusError
)

// FinalResponse returns the last response of a completed command, or nil
// if responses is empty.
func FinalResponse(responses []*Response) *Response {
	return message.Final(responses)
}
