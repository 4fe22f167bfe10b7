package assistant

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestGateway(t *testing.T, mux *http.ServeMux) *OpenAIGateway {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	h := http.Header{}
	h.Set("X-Relay", "test")
	return NewOpenAI("test-key", srv.URL+"/v1", h)
}

func TestOpenAIGateway_GetRunMapsToolCalls(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/threads/th_1/runs/run_1", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Relay") != "test" {
			t.Errorf("extra header not forwarded")
		}
		_, _ = io.WriteString(w, `{
			"id": "run_1",
			"thread_id": "th_1",
			"status": "requires_action",
			"required_action": {
				"type": "submit_tool_outputs",
				"submit_tool_outputs": {"tool_calls": [
					{"id": "call_1", "type": "function", "function": {"name": "tavily_search", "arguments": "{\"query\":\"X\"}"}}
				]}
			}
		}`)
	})
	g := newTestGateway(t, mux)

	run, err := g.GetRun(context.Background(), "th_1", "run_1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if run.Status != RunRequiresAction || len(run.ToolCalls) != 1 {
		t.Fatalf("unexpected run: %+v", run)
	}
	tc := run.ToolCalls[0]
	if tc.ID != "call_1" || tc.Name != "tavily_search" || tc.Arguments != `{"query":"X"}` {
		t.Fatalf("unexpected tool call: %+v", tc)
	}
}

func TestOpenAIGateway_SubmitToolOutputsPayload(t *testing.T) {
	mux := http.NewServeMux()
	var got struct {
		ToolOutputs []struct {
			ToolCallID string `json:"tool_call_id"`
			Output     string `json:"output"`
		} `json:"tool_outputs"`
	}
	mux.HandleFunc("/v1/threads/th_1/runs/run_1/submit_tool_outputs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_, _ = io.WriteString(w, `{"id":"run_1","thread_id":"th_1","status":"queued"}`)
	})
	g := newTestGateway(t, mux)

	run, err := g.SubmitToolOutputs(context.Background(), "th_1", "run_1", []ToolOutput{{ToolCallID: "call_1", Output: "R"}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if run.Status != RunQueued {
		t.Fatalf("unexpected status: %s", run.Status)
	}
	if len(got.ToolOutputs) != 1 || got.ToolOutputs[0].ToolCallID != "call_1" || got.ToolOutputs[0].Output != "R" {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestOpenAIGateway_ListMessagesPagesAscending(t *testing.T) {
	mux := http.NewServeMux()
	calls := 0
	mux.HandleFunc("/v1/threads/th_1/messages", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("order") != "asc" {
			t.Errorf("expected ascending order, got %q", r.URL.Query().Get("order"))
		}
		if r.URL.Query().Get("after") == "" {
			_, _ = io.WriteString(w, `{"object":"list","data":[
				{"id":"m1","role":"user","content":[{"type":"text","text":{"value":"Hello","annotations":[]}}]}
			],"first_id":"m1","last_id":"m1","has_more":true}`)
			return
		}
		_, _ = io.WriteString(w, `{"object":"list","data":[
			{"id":"m2","role":"assistant","content":[{"type":"text","text":{"value":"Hi there","annotations":[]}}]}
		],"first_id":"m2","last_id":"m2","has_more":false}`)
	})
	g := newTestGateway(t, mux)

	conv, err := g.ListMessages(context.Background(), "th_1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 page requests, got %d", calls)
	}
	if len(conv) != 2 || conv[0].Role != "user" || conv[0].Text != "Hello" || conv[1].Text != "Hi there" {
		t.Fatalf("unexpected conversation: %+v", conv)
	}
}

func TestOpenAIGateway_TransportErrorIsWrapped(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/threads", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":{"message":"boom","type":"server_error"}}`)
	})
	g := newTestGateway(t, mux)

	_, err := g.CreateThread(context.Background())
	if err == nil || !strings.Contains(err.Error(), "failed to create thread") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestRunStatusSettled(t *testing.T) {
	for _, s := range []RunStatus{RunQueued, RunInProgress, RunCancelling} {
		if s.Settled() {
			t.Fatalf("%s must keep polling", s)
		}
	}
	for _, s := range []RunStatus{RunCompleted, RunFailed, RunRequiresAction, RunExpired} {
		if !s.Settled() {
			t.Fatalf("%s must stop polling", s)
		}
	}
}
