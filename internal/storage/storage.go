package storage

import "time"

// Event is one finished send: the user's message, what the assistant answered
// and which tools it asked for along the way.
// Events are appended in the order tasks finish.
type Event struct {
	Timestamp         time.Time `json:"timestamp"`
	SessionID         string    `json:"session_id"`
	TaskID            string    `json:"task_id"`
	RunID             string    `json:"run_id,omitempty"`
	UserMessage       string    `json:"user_message"`
	AssistantResponse string    `json:"assistant_response,omitempty"`
	ToolCalls         []string  `json:"tool_calls,omitempty"`
	Status            string    `json:"status"`
	Error             string    `json:"error,omitempty"`
}

// Recorder abstracts persistence of interaction events.
// LoadInteractions should return events in chronological order.
// Implementations must be safe for concurrent use.
type Recorder interface {
	AppendInteraction(event Event) error
	LoadInteractions() ([]Event, error)
}
