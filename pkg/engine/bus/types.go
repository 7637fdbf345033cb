// Package bus implements a synchronous, typed publish/subscribe message bus
// used to route tool confirmation requests (and other cross-cutting runtime
// events) between the scheduler and whatever is acting as the human-in-the-
// loop approver for a session.
package bus

// Type identifies a category of message flowing through the bus.
type Type string

const (
	ToolConfirmationRequest  Type = "tool-confirmation-request"
	ToolConfirmationResponse Type = "tool-confirmation-response"
	UpdatePolicy             Type = "update-policy"
	ToolCallsUpdate          Type = "tool-calls-update"
	AskUserRequest           Type = "ask-user-request"
	AskUserResponse          Type = "ask-user-response"
)

// Message is the envelope carried across the bus. Payload is a loosely typed
// bag since subscribers on either side agree on shape per Type out of band.
type Message struct {
	Type    Type
	Payload map[string]any
}

// Handler reacts to a Message published on a subscribed Type.
type Handler func(Message)

// Matcher filters candidate response messages during a Request/response
// round trip, typically by correlation id.
type Matcher func(Message) bool
