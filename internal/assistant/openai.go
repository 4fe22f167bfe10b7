package assistant

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"assistant-relay/internal/conversation"
)

// pageSize is the maximum page the threads API hands out.
const pageSize = 100

type OpenAIGateway struct {
	client *openai.Client
}

type headerTransport struct {
	rt      http.RoundTripper
	headers http.Header
}

func (t headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone request to avoid mutating the original
	cl := req.Clone(req.Context())
	for k, vs := range t.headers {
		for _, v := range vs {
			cl.Header.Add(k, v)
		}
	}
	return t.rt.RoundTrip(cl)
}

// NewOpenAI builds a gateway over the Assistants API. Extra headers are sent
// with every request, which lets the gateway sit behind an API proxy.
func NewOpenAI(apiKey, baseURL string, headers http.Header) *OpenAIGateway {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if len(headers) > 0 {
		config.HTTPClient = &http.Client{Transport: headerTransport{rt: http.DefaultTransport, headers: headers}}
	}
	return &OpenAIGateway{client: openai.NewClientWithConfig(config)}
}

func (g *OpenAIGateway) CreateThread(ctx context.Context) (string, error) {
	th, err := g.client.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", fmt.Errorf("failed to create thread: %w", err)
	}
	return th.ID, nil
}

func (g *OpenAIGateway) PostMessage(ctx context.Context, threadID, text string) (string, error) {
	msg, err := g.client.CreateMessage(ctx, threadID, openai.MessageRequest{
		Role:    openai.ChatMessageRoleUser,
		Content: text,
	})
	if err != nil {
		return "", fmt.Errorf("failed to post message: %w", err)
	}
	return msg.ID, nil
}

func (g *OpenAIGateway) StartRun(ctx context.Context, threadID, assistantID string) (Run, error) {
	run, err := g.client.CreateRun(ctx, threadID, openai.RunRequest{AssistantID: assistantID})
	if err != nil {
		return Run{}, fmt.Errorf("failed to start run: %w", err)
	}
	return fromOpenAIRun(run), nil
}

func (g *OpenAIGateway) GetRun(ctx context.Context, threadID, runID string) (Run, error) {
	run, err := g.client.RetrieveRun(ctx, threadID, runID)
	if err != nil {
		return Run{}, fmt.Errorf("failed to retrieve run %s: %w", runID, err)
	}
	return fromOpenAIRun(run), nil
}

func (g *OpenAIGateway) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) (Run, error) {
	req := openai.SubmitToolOutputsRequest{ToolOutputs: make([]openai.ToolOutput, 0, len(outputs))}
	for _, o := range outputs {
		req.ToolOutputs = append(req.ToolOutputs, openai.ToolOutput{ToolCallID: o.ToolCallID, Output: o.Output})
	}
	run, err := g.client.SubmitToolOutputs(ctx, threadID, runID, req)
	if err != nil {
		return Run{}, fmt.Errorf("failed to submit tool outputs for run %s: %w", runID, err)
	}
	return fromOpenAIRun(run), nil
}

// ListMessages pages through the whole thread oldest first.
func (g *OpenAIGateway) ListMessages(ctx context.Context, threadID string) (conversation.Conversation, error) {
	limit := pageSize
	order := "asc"
	var after *string
	var out conversation.Conversation
	for {
		page, err := g.client.ListMessage(ctx, threadID, &limit, &order, after, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to list messages: %w", err)
		}
		for _, m := range page.Messages {
			out = append(out, conversation.Message{Role: m.Role, Text: messageText(m)})
		}
		if !page.HasMore || page.LastID == nil {
			return out, nil
		}
		after = page.LastID
	}
}

// messageText joins the text parts of a message; image parts are skipped.
func messageText(m openai.Message) string {
	var parts []string
	for _, c := range m.Content {
		if c.Text != nil {
			parts = append(parts, c.Text.Value)
		}
	}
	return strings.Join(parts, "\n")
}

func fromOpenAIRun(r openai.Run) Run {
	out := Run{
		ID:       r.ID,
		ThreadID: r.ThreadID,
		Status:   RunStatus(r.Status),
	}
	if r.LastError != nil {
		out.LastError = fmt.Sprintf("%s: %s", r.LastError.Code, r.LastError.Message)
	}
	if r.RequiredAction != nil && r.RequiredAction.SubmitToolOutputs != nil {
		for _, tc := range r.RequiredAction.SubmitToolOutputs.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
	}
	return out
}
