// Package scheduler drives the lookup -> validate -> policy -> confirm ->
// execute pipeline for a batch of tool call requests.
package scheduler

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"AgentEngine/pkg/engine/bus"
	"AgentEngine/pkg/engine/metrics"
	"AgentEngine/pkg/engine/policy"
	"AgentEngine/pkg/engine/tools"
)

// Config is the slice of runtime configuration the scheduler needs: the
// policy engine to consult, the tool registry to dispatch against, the
// message bus to route confirmation requests over, and whether the session
// is interactive (an ASK_USER decision is unresolvable otherwise). It also
// satisfies tools.ExecConfig so a Config can be handed straight to
// Tool.Execute.
type Config interface {
	tools.ExecConfig
	PolicyEngine() *policy.Engine
	ToolRegistry() *tools.Registry
	MessageBus() *bus.Bus
	Interactive() bool
}

// MetricsSource is satisfied by a Config that also exposes Prometheus
// collectors. It is checked with a type assertion rather than folded into
// Config so configs built for tests don't need to carry metrics plumbing.
type MetricsSource interface {
	Metrics() *metrics.Collectors
}

// Scheduler runs one FIFO pass of tool call requests through the pipeline.
// A Scheduler is cheap to construct; sub-agent recursion builds a fresh one
// per invocation with a restricted tool registry (see NewWithRegistry).
type Scheduler struct {
	config   Config
	q        *queue
	registry *tools.Registry
}

// New creates a Scheduler using the registry from config.
func New(config Config) *Scheduler {
	return &Scheduler{config: config, q: newQueue(), registry: config.ToolRegistry()}
}

// NewWithRegistry creates a Scheduler that dispatches against registry
// instead of config's own tool registry. Used by the sub-agent tool to scope
// a recursive run to an agent's allowed tool subset.
func NewWithRegistry(config Config, registry *tools.Registry) *Scheduler {
	return &Scheduler{config: config, q: newQueue(), registry: registry}
}

// Schedule enqueues requests, drains the queue synchronously, and returns the
// terminal CompletedCall for every request once all have settled.
func (s *Scheduler) Schedule(requests []RequestInfo) []CompletedCall {
	s.q.enqueue(requests)
	for {
		req, ok := s.q.dequeue()
		if !ok {
			break
		}
		s.q.complete(s.processSingleRequest(req))
	}
	return s.q.drain()
}

func (s *Scheduler) processSingleRequest(request RequestInfo) CompletedCall {
	start := time.Now()
	call := s.runPipeline(request)

	if m, ok := s.config.(MetricsSource); ok {
		if collectors := m.Metrics(); collectors != nil {
			collectors.ObserveSchedulerLatency(request.Name, time.Since(start).Seconds())
			collectors.RecordToolCall(string(call.Status))
		}
	}
	return call
}

func (s *Scheduler) runPipeline(request RequestInfo) CompletedCall {
	var confirmationOutcome tools.ConfirmationOutcome
	var hasConfirmation bool

	tool, found := s.registry.Get(request.Name)
	if !found {
		return errorCall(StatusError, request, nil, fmt.Sprintf("Tool %q not found.", request.Name), ErrToolNotRegistered)
	}

	if validationErr := tool.ValidateParams(request.Args); validationErr != "" {
		return errorCall(StatusError, request, nil, validationErr, ErrInvalidToolParams)
	}

	policyResult := s.config.PolicyEngine().Check(policy.CheckInput{Name: request.Name, Args: request.Args})
	if m, ok := s.config.(MetricsSource); ok {
		if collectors := m.Metrics(); collectors != nil {
			collectors.RecordDecision(string(policyResult.Decision))
		}
	}
	if policyResult.Decision == policy.Deny {
		denyMessage := "Tool execution denied by policy."
		if policyResult.Rule != nil && policyResult.Rule.DenyMessage != "" {
			denyMessage = policyResult.Rule.DenyMessage
		}
		return errorCall(StatusError, request, nil, denyMessage, ErrPolicyViolation)
	}

	if policyResult.Decision == policy.AskUser && !s.config.Interactive() {
		msg := fmt.Sprintf("Tool execution for %q requires user confirmation, which is unavailable in non-interactive mode.", request.Name)
		return errorCall(StatusError, request, nil, msg, ErrPolicyViolation)
	}

	if policyResult.Decision == policy.AskUser {
		outcome := s.resolveConfirmation(request)
		confirmationOutcome = outcome
		hasConfirmation = true
		s.updatePolicyAfterConfirmation(request, outcome)

		if outcome == tools.Cancel {
			return CompletedCall{
				Status:  StatusCancelled,
				Request: request,
				Response: ResponseInfo{
					CallID:        request.CallID,
					ResultDisplay: "Cancelled",
					Error:         "User denied execution.",
					ErrorType:     ErrCancelled,
					Data:          map[string]any{"outcome": string(outcome)},
				},
			}
		}
	}

	result, panicMsg := s.executeTool(tool, request)
	if panicMsg != "" {
		return errorCall(StatusError, request, nil, panicMsg, ErrUnhandledException)
	}
	if result.Error != "" {
		return CompletedCall{
			Status:  StatusError,
			Request: request,
			Response: ResponseInfo{
				CallID:        request.CallID,
				ResultDisplay: result.ReturnDisplay,
				Error:         result.Error,
				ErrorType:     ErrExecutionFailed,
			},
		}
	}

	var data map[string]any
	if hasConfirmation {
		data = map[string]any{"confirmation_outcome": string(confirmationOutcome)}
	}
	return CompletedCall{
		Status:  StatusSuccess,
		Request: request,
		Response: ResponseInfo{
			CallID:        request.CallID,
			ResultDisplay: result.ReturnDisplay,
			Data:          data,
		},
	}
}

// executeTool runs tool.Execute and recovers any panic so one misbehaving
// tool cannot abort the rest of the batch; a recovered panic is reported as
// an unhandled_exception error on this call alone.
func (s *Scheduler) executeTool(tool tools.Tool, request RequestInfo) (result tools.Result, panicMsg string) {
	defer func() {
		if r := recover(); r != nil {
			panicMsg = fmt.Sprintf("%v", r)
		}
	}()
	result = tool.Execute(s.config, request.Args)
	return
}

func (s *Scheduler) resolveConfirmation(request RequestInfo) tools.ConfirmationOutcome {
	correlationID := uuid.NewString()
	response, err := s.config.MessageBus().Request(
		bus.ToolConfirmationRequest,
		map[string]any{
			"correlation_id": correlationID,
			"tool_call": map[string]any{
				"name": request.Name,
				"args": request.Args,
			},
		},
		bus.ToolConfirmationResponse,
		func(msg bus.Message) bool {
			id, _ := msg.Payload["correlation_id"].(string)
			return id == correlationID
		},
	)
	if err != nil {
		return tools.Cancel
	}

	if raw, ok := response.Payload["outcome"].(string); ok {
		switch tools.ConfirmationOutcome(raw) {
		case tools.ProceedOnce, tools.ProceedAlways, tools.Cancel:
			return tools.ConfirmationOutcome(raw)
		}
	}

	if confirmed, _ := response.Payload["confirmed"].(bool); confirmed {
		return tools.ProceedOnce
	}
	return tools.Cancel
}

func (s *Scheduler) updatePolicyAfterConfirmation(request RequestInfo, outcome tools.ConfirmationOutcome) {
	if outcome != tools.ProceedAlways {
		return
	}
	name := request.Name
	s.config.PolicyEngine().AddRule(policy.Rule{
		ToolName: &name,
		Decision: policy.Allow,
		Priority: policy.PriorityConfirmed,
		Source:   policy.DynamicConfirmedSource,
	})
}

func errorCall(status Status, request RequestInfo, display any, errMsg, errType string) CompletedCall {
	return CompletedCall{
		Status:  status,
		Request: request,
		Response: ResponseInfo{
			CallID:        request.CallID,
			ResultDisplay: display,
			Error:         errMsg,
			ErrorType:     errType,
		},
	}
}
