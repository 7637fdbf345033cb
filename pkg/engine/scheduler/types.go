// Package scheduler drives the lookup -> validate -> policy -> confirm ->
// execute pipeline for batches of tool-call requests.
package scheduler

import "github.com/google/uuid"

// Status is the lifecycle state of a single scheduled call. Only the
// terminal values (StatusSuccess, StatusError, StatusCancelled) are ever
// handed back to a caller of Schedule.
type Status string

const (
	StatusValidating      Status = "validating"
	StatusScheduled       Status = "scheduled"
	StatusAwaitingApproval Status = "awaiting_approval"
	StatusExecuting       Status = "executing"
	StatusSuccess         Status = "success"
	StatusError           Status = "error"
	StatusCancelled       Status = "cancelled"
)

// RequestInfo describes one tool call a caller wants executed.
type RequestInfo struct {
	Name            string
	Args            map[string]any
	CallID          string
	SchedulerID     string
	ParentCallID    string
	PromptID        string
	IsClientInitiated bool
}

// NewRequestInfo fills in a fresh CallID and the defaults the reference
// implementation uses (scheduler_id="root", prompt_id="default").
func NewRequestInfo(name string, args map[string]any) RequestInfo {
	return RequestInfo{
		Name:        name,
		Args:        args,
		CallID:      uuid.NewString(),
		SchedulerID: "root",
		PromptID:    "default",
	}
}

// ResponseInfo is what a pipeline step produced for a request.
type ResponseInfo struct {
	CallID        string
	ResultDisplay any // string, a structured value, or nil
	Error         string
	ErrorType     string
	Data          map[string]any
}

// Error-type strings, per spec.md §7.
const (
	ErrToolNotRegistered = "tool_not_registered"
	ErrInvalidToolParams = "invalid_tool_params"
	ErrPolicyViolation   = "policy_violation"
	ErrCancelled         = "cancelled"
	ErrExecutionFailed   = "execution_failed"
	ErrUnhandledException = "unhandled_exception"
)

// CompletedCall is the final record for one request: its terminal status,
// the original request, and the response produced.
type CompletedCall struct {
	Status   Status
	Request  RequestInfo
	Response ResponseInfo
}
