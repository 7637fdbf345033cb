package bus

import (
	"fmt"
	"reflect"
	"sync"

	"AgentEngine/pkg/engine/policy"
	"AgentEngine/pkg/engine/tools"
)

func funcPtr(h Handler) uintptr {
	return reflect.ValueOf(h).Pointer()
}

// Bus is a synchronous message bus. Publish dispatches to subscribers
// in-process and returns once every handler has run; Request layers a
// correlated request/response round trip on top of Publish/Subscribe.
//
// When a PolicyEngine is configured, ToolConfirmationRequest messages are
// intercepted before reaching subscribers: an ALLOW or DENY policy decision
// resolves the confirmation immediately and UI subscribers never see it. Only
// an ASK_USER decision is forwarded to registered handlers, mirroring the
// confirmation gateway described for the scheduler's approval path.
type Bus struct {
	mu          sync.Mutex
	subscribers map[Type][]Handler
	policy      *policy.Engine
}

// New creates a Bus. policyEngine may be nil, in which case confirmation
// requests always resolve to cancel (see publishConfirmationRequest).
func New(policyEngine *policy.Engine) *Bus {
	return &Bus{
		subscribers: make(map[Type][]Handler),
		policy:      policyEngine,
	}
}

// Subscribe registers a handler for a message type.
func (b *Bus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[t] = append(b.subscribers[t], h)
}

// Unsubscribe removes a previously registered handler for a message type.
// Handlers are compared by pointer identity of the underlying function value,
// so callers must pass the exact same Handler value they subscribed with.
func (b *Bus) Unsubscribe(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	handlers := b.subscribers[t]
	filtered := make([]Handler, 0, len(handlers))
	for _, registered := range handlers {
		if funcPtr(registered) != funcPtr(h) {
			filtered = append(filtered, registered)
		}
	}
	b.subscribers[t] = filtered
}

// Publish dispatches payload to every subscriber of t. ToolConfirmationRequest
// messages are routed through the policy-aware confirmation gateway instead
// of going straight to subscribers.
func (b *Bus) Publish(t Type, payload map[string]any) {
	if t == ToolConfirmationRequest {
		b.publishConfirmationRequest(payload)
		return
	}
	b.dispatch(Message{Type: t, Payload: payload})
}

func (b *Bus) dispatch(msg Message) {
	b.mu.Lock()
	handlers := append([]Handler(nil), b.subscribers[msg.Type]...)
	b.mu.Unlock()
	for _, h := range handlers {
		h(msg)
	}
}

// Request publishes requestType/payload, waits synchronously for the first
// responseType message accepted by matcher, and returns it. Because Publish
// is synchronous and handlers run inline, the response is available by the
// time Publish returns, so this never actually blocks a goroutine — it just
// captures whichever matching response arrived during the publish call.
func (b *Bus) Request(requestType Type, payload map[string]any, responseType Type, matcher Matcher) (Message, error) {
	var response *Message
	handler := func(msg Message) {
		if response != nil {
			return
		}
		if matcher == nil || matcher(msg) {
			m := msg
			response = &m
		}
	}

	b.Subscribe(responseType, handler)
	defer b.Unsubscribe(responseType, handler)

	b.Publish(requestType, payload)

	if response == nil {
		return Message{}, fmt.Errorf("request timed out waiting for %s in synchronous bus flow", responseType)
	}
	return *response, nil
}

func (b *Bus) publishConfirmationRequest(payload map[string]any) {
	correlationID, _ := payload["correlation_id"].(string)

	if b.policy == nil {
		b.dispatch(Message{Type: ToolConfirmationResponse, Payload: map[string]any{
			"correlation_id":             correlationID,
			"confirmed":                  false,
			"outcome":                    string(tools.Cancel),
			"requires_user_confirmation": false,
			"error":                      "Policy engine is not configured.",
		}})
		return
	}

	toolCall, ok := payload["tool_call"].(map[string]any)
	if !ok {
		b.dispatch(Message{Type: ToolConfirmationResponse, Payload: map[string]any{
			"correlation_id":             correlationID,
			"confirmed":                  false,
			"outcome":                    string(tools.Cancel),
			"requires_user_confirmation": false,
		}})
		return
	}

	name, _ := toolCall["name"].(string)
	args, _ := toolCall["args"].(map[string]any)
	serverName, _ := payload["server_name"].(string)

	result := b.policy.Check(policy.CheckInput{Name: name, Args: args, ServerName: serverName})

	switch result.Decision {
	case policy.Allow:
		b.dispatch(Message{Type: ToolConfirmationResponse, Payload: map[string]any{
			"correlation_id":             correlationID,
			"confirmed":                  true,
			"outcome":                    string(tools.ProceedOnce),
			"requires_user_confirmation": false,
		}})
		return
	case policy.Deny:
		b.dispatch(Message{Type: ToolConfirmationResponse, Payload: map[string]any{
			"correlation_id":             correlationID,
			"confirmed":                  false,
			"outcome":                    string(tools.Cancel),
			"requires_user_confirmation": false,
		}})
		return
	}

	// ASK_USER: forward to whatever approver is subscribed.
	b.mu.Lock()
	handlers := append([]Handler(nil), b.subscribers[ToolConfirmationRequest]...)
	b.mu.Unlock()

	if len(handlers) == 0 {
		b.dispatch(Message{Type: ToolConfirmationResponse, Payload: map[string]any{
			"correlation_id":             correlationID,
			"confirmed":                  false,
			"outcome":                    string(tools.Cancel),
			"requires_user_confirmation": true,
			"error":                      "No confirmation handler is registered.",
		}})
		return
	}

	msg := Message{Type: ToolConfirmationRequest, Payload: payload}
	for _, h := range handlers {
		h(msg)
	}
}
