package assistant

import (
	"context"

	"assistant-relay/internal/conversation"
)

type RunStatus string

const (
	RunQueued         RunStatus = "queued"
	RunInProgress     RunStatus = "in_progress"
	RunRequiresAction RunStatus = "requires_action"
	RunCompleted      RunStatus = "completed"
	RunFailed         RunStatus = "failed"
	RunCancelling     RunStatus = "cancelling"
	RunCancelled      RunStatus = "cancelled"
	RunExpired        RunStatus = "expired"
	RunIncomplete     RunStatus = "incomplete"
)

// Settled reports whether polling can stop: the run either finished or is
// waiting for tool outputs.
func (s RunStatus) Settled() bool {
	switch s {
	case RunCompleted, RunFailed, RunRequiresAction, RunCancelled, RunExpired, RunIncomplete:
		return true
	}
	return false
}

// ToolCall is a function invocation the assistant asks the caller to perform.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON object
}

type ToolOutput struct {
	ToolCallID string
	Output     string
}

type Run struct {
	ID        string
	ThreadID  string
	Status    RunStatus
	ToolCalls []ToolCall
	LastError string
}

// Gateway is the capability the run driver needs from an assistant provider.
// Implementations must return ListMessages in ascending chronological order.
type Gateway interface {
	CreateThread(ctx context.Context) (string, error)
	PostMessage(ctx context.Context, threadID, text string) (string, error)
	StartRun(ctx context.Context, threadID, assistantID string) (Run, error)
	GetRun(ctx context.Context, threadID, runID string) (Run, error)
	SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) (Run, error)
	ListMessages(ctx context.Context, threadID string) (conversation.Conversation, error)
}
