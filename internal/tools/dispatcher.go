package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"assistant-relay/internal/assistant"
	"assistant-relay/internal/search"
)

// DefaultSearchTool is the function name the assistant is usually configured
// with for web search.
const DefaultSearchTool = "tavily_search"

var ErrUnknownTool = errors.New("unknown tool")

// UnknownPolicy decides what happens to a tool call nobody handles.
type UnknownPolicy string

const (
	// UnknownDrop omits the output and lets the run continue.
	UnknownDrop UnknownPolicy = "drop"
	// UnknownFail aborts the run.
	UnknownFail UnknownPolicy = "fail"
)

func ParseUnknownPolicy(s string) (UnknownPolicy, error) {
	switch UnknownPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", UnknownDrop:
		return UnknownDrop, nil
	case UnknownFail:
		return UnknownFail, nil
	default:
		return "", fmt.Errorf("unknown tool policy %q (want drop or fail)", s)
	}
}

// Handler executes one tool call and returns its output text.
type Handler func(ctx context.Context, arguments string) (string, error)

type Dispatcher struct {
	handlers map[string]Handler
	unknown  UnknownPolicy
}

func NewDispatcher(policy UnknownPolicy) *Dispatcher {
	if policy == "" {
		policy = UnknownDrop
	}
	return &Dispatcher{handlers: make(map[string]Handler), unknown: policy}
}

func (d *Dispatcher) Register(name string, h Handler) {
	d.handlers[name] = h
}

func (d *Dispatcher) Names() []string {
	out := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		out = append(out, name)
	}
	return out
}

// Dispatch runs the handler for call. ok is false when the call produced no
// output and should be left out of the submission.
func (d *Dispatcher) Dispatch(ctx context.Context, call assistant.ToolCall) (assistant.ToolOutput, bool, error) {
	h, found := d.handlers[call.Name]
	if !found {
		if d.unknown == UnknownFail {
			return assistant.ToolOutput{}, false, fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
		}
		log.Printf("⚠️ Dropping output for unknown tool %q (call %s)", call.Name, call.ID)
		return assistant.ToolOutput{}, false, nil
	}
	out, err := h(ctx, call.Arguments)
	if err != nil {
		return assistant.ToolOutput{}, false, fmt.Errorf("tool %s failed: %w", call.Name, err)
	}
	if out == "" {
		return assistant.ToolOutput{}, false, nil
	}
	return assistant.ToolOutput{ToolCallID: call.ID, Output: out}, true, nil
}

type searchArgs struct {
	Query string `json:"query"`
}

// SearchHandler wraps a search provider with the fixed depth and token
// budget the assistant expects.
func SearchHandler(p search.Provider) Handler {
	return func(ctx context.Context, arguments string) (string, error) {
		var args searchArgs
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
		if strings.TrimSpace(args.Query) == "" {
			return "", fmt.Errorf("invalid arguments: query is required")
		}
		log.Printf("🔍 Web search: %q", args.Query)
		return p.Search(ctx, search.Request{
			Query:     args.Query,
			Depth:     search.DepthAdvanced,
			MaxTokens: search.DefaultMaxTokens,
		})
	}
}
