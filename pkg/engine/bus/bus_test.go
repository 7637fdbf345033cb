package bus

import (
	"testing"

	"AgentEngine/pkg/engine/policy"
	"AgentEngine/pkg/engine/tools"
)

func strPtr(s string) *string { return &s }

func TestPublish_DispatchesToSubscribers(t *testing.T) {
	b := New(nil)
	var got Message
	b.Subscribe(UpdatePolicy, func(msg Message) { got = msg })

	b.Publish(UpdatePolicy, map[string]any{"x": 1})
	if got.Type != UpdatePolicy || got.Payload["x"] != 1 {
		t.Fatalf("expected subscriber to receive published message, got %+v", got)
	}
}

func TestRequest_ReturnsMatchingResponse(t *testing.T) {
	b := New(nil)
	b.Subscribe(AskUserRequest, func(msg Message) {
		id, _ := msg.Payload["correlation_id"].(string)
		b.Publish(AskUserResponse, map[string]any{"correlation_id": id, "answer": "yes"})
	})

	resp, err := b.Request(AskUserRequest, map[string]any{"correlation_id": "abc"}, AskUserResponse, func(msg Message) bool {
		id, _ := msg.Payload["correlation_id"].(string)
		return id == "abc"
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Payload["answer"] != "yes" {
		t.Fatalf("expected matched response payload, got %+v", resp.Payload)
	}
}

func TestRequest_ErrorsWhenNoResponseArrives(t *testing.T) {
	b := New(nil)
	_, err := b.Request(AskUserRequest, map[string]any{}, AskUserResponse, nil)
	if err == nil {
		t.Fatalf("expected an error when nothing publishes a matching response")
	}
}

func TestConfirmationRequest_NilPolicyCancels(t *testing.T) {
	b := New(nil)
	var got Message
	b.Subscribe(ToolConfirmationResponse, func(msg Message) { got = msg })

	b.Publish(ToolConfirmationRequest, map[string]any{
		"correlation_id": "1",
		"tool_call":      map[string]any{"name": "echo", "args": map[string]any{}},
	})

	if got.Payload["confirmed"] != false || got.Payload["outcome"] != string(tools.Cancel) {
		t.Fatalf("expected a nil policy engine to cancel immediately, got %+v", got.Payload)
	}
}

func TestConfirmationRequest_MalformedToolCallCancels(t *testing.T) {
	p := policy.NewEngine()
	b := New(p)
	var got Message
	b.Subscribe(ToolConfirmationResponse, func(msg Message) { got = msg })

	b.Publish(ToolConfirmationRequest, map[string]any{"correlation_id": "1"})

	if got.Payload["confirmed"] != false {
		t.Fatalf("expected malformed tool_call to cancel, got %+v", got.Payload)
	}
}

func TestConfirmationRequest_PolicyAllowResolvesWithoutSubscribers(t *testing.T) {
	p := policy.NewEngine()
	p.AddRule(policy.Rule{ToolName: strPtr("echo"), Decision: policy.Allow, Priority: 1})
	b := New(p)

	var got Message
	b.Subscribe(ToolConfirmationResponse, func(msg Message) { got = msg })

	b.Publish(ToolConfirmationRequest, map[string]any{
		"correlation_id": "1",
		"tool_call":      map[string]any{"name": "echo", "args": map[string]any{}},
	})

	if got.Payload["confirmed"] != true {
		t.Fatalf("expected policy Allow to resolve confirmed=true without forwarding, got %+v", got.Payload)
	}
}

func TestConfirmationRequest_PolicyDenyResolvesToCancel(t *testing.T) {
	p := policy.NewEngine()
	p.AddRule(policy.Rule{ToolName: strPtr("echo"), Decision: policy.Deny, Priority: 1})
	b := New(p)

	var got Message
	b.Subscribe(ToolConfirmationResponse, func(msg Message) { got = msg })

	b.Publish(ToolConfirmationRequest, map[string]any{
		"correlation_id": "1",
		"tool_call":      map[string]any{"name": "echo", "args": map[string]any{}},
	})

	if got.Payload["confirmed"] != false {
		t.Fatalf("expected policy Deny to resolve confirmed=false, got %+v", got.Payload)
	}
}

func TestConfirmationRequest_AskUserForwardsToHandler(t *testing.T) {
	p := policy.NewEngine() // no rules => default AskUser
	b := New(p)

	forwarded := false
	b.Subscribe(ToolConfirmationRequest, func(msg Message) {
		forwarded = true
		correlationID, _ := msg.Payload["correlation_id"].(string)
		b.Publish(ToolConfirmationResponse, map[string]any{"correlation_id": correlationID, "confirmed": true})
	})

	b.Publish(ToolConfirmationRequest, map[string]any{
		"correlation_id": "1",
		"tool_call":      map[string]any{"name": "echo", "args": map[string]any{}},
	})

	if !forwarded {
		t.Fatalf("expected ask_user decision to forward to the registered handler")
	}
}

func TestConfirmationRequest_AskUserCancelsWhenNoHandlerRegistered(t *testing.T) {
	p := policy.NewEngine()
	b := New(p)

	var got Message
	b.Subscribe(ToolConfirmationResponse, func(msg Message) { got = msg })

	b.Publish(ToolConfirmationRequest, map[string]any{
		"correlation_id": "1",
		"tool_call":      map[string]any{"name": "echo", "args": map[string]any{}},
	})

	if got.Payload["confirmed"] != false || got.Payload["error"] == nil {
		t.Fatalf("expected cancel with an explanatory error when no handler is registered, got %+v", got.Payload)
	}
}

func TestUnsubscribe_RemovesHandler(t *testing.T) {
	b := New(nil)
	calls := 0
	h := func(msg Message) { calls++ }

	b.Subscribe(UpdatePolicy, h)
	b.Publish(UpdatePolicy, nil)
	b.Unsubscribe(UpdatePolicy, h)
	b.Publish(UpdatePolicy, nil)

	if calls != 1 {
		t.Fatalf("expected handler to fire exactly once before unsubscribe, got %d", calls)
	}
}
