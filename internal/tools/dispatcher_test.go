package tools

import (
	"context"
	"errors"
	"testing"

	"assistant-relay/internal/assistant"
	"assistant-relay/internal/search"
)

type fakeProvider struct {
	out  string
	err  error
	reqs []search.Request
}

func (f *fakeProvider) Search(ctx context.Context, req search.Request) (string, error) {
	f.reqs = append(f.reqs, req)
	return f.out, f.err
}

func TestDispatch_WebSearch(t *testing.T) {
	p := &fakeProvider{out: "R"}
	d := NewDispatcher(UnknownDrop)
	d.Register(DefaultSearchTool, SearchHandler(p))

	out, ok, err := d.Dispatch(context.Background(), assistant.ToolCall{ID: "call_1", Name: DefaultSearchTool, Arguments: `{"query":"X"}`})
	if err != nil || !ok {
		t.Fatalf("dispatch: ok=%v err=%v", ok, err)
	}
	if out.ToolCallID != "call_1" || out.Output != "R" {
		t.Fatalf("unexpected output: %+v", out)
	}
	if len(p.reqs) != 1 {
		t.Fatalf("expected one search, got %d", len(p.reqs))
	}
	req := p.reqs[0]
	if req.Query != "X" || req.Depth != search.DepthAdvanced || req.MaxTokens != 8000 {
		t.Fatalf("unexpected search request: %+v", req)
	}
}

func TestDispatch_UnknownToolPolicy(t *testing.T) {
	call := assistant.ToolCall{ID: "c", Name: "weather", Arguments: `{}`}

	_, ok, err := NewDispatcher(UnknownDrop).Dispatch(context.Background(), call)
	if ok || err != nil {
		t.Fatalf("drop policy: ok=%v err=%v", ok, err)
	}

	_, ok, err = NewDispatcher(UnknownFail).Dispatch(context.Background(), call)
	if ok || !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("fail policy: ok=%v err=%v", ok, err)
	}
}

func TestDispatch_BadArguments(t *testing.T) {
	p := &fakeProvider{out: "R"}
	d := NewDispatcher(UnknownDrop)
	d.Register(DefaultSearchTool, SearchHandler(p))

	for _, args := range []string{`not json`, `{}`, `{"query":"  "}`} {
		if _, _, err := d.Dispatch(context.Background(), assistant.ToolCall{ID: "c", Name: DefaultSearchTool, Arguments: args}); err == nil {
			t.Fatalf("expected error for args %q", args)
		}
	}
	if len(p.reqs) != 0 {
		t.Fatalf("provider must not be called with bad arguments")
	}
}

func TestDispatch_ProviderErrorAndEmptyOutput(t *testing.T) {
	d := NewDispatcher(UnknownDrop)
	d.Register(DefaultSearchTool, SearchHandler(&fakeProvider{err: errors.New("down")}))
	if _, _, err := d.Dispatch(context.Background(), assistant.ToolCall{ID: "c", Name: DefaultSearchTool, Arguments: `{"query":"X"}`}); err == nil {
		t.Fatalf("expected provider error to propagate")
	}

	d.Register(DefaultSearchTool, SearchHandler(&fakeProvider{out: ""}))
	_, ok, err := d.Dispatch(context.Background(), assistant.ToolCall{ID: "c", Name: DefaultSearchTool, Arguments: `{"query":"X"}`})
	if ok || err != nil {
		t.Fatalf("empty output should be dropped: ok=%v err=%v", ok, err)
	}
}

func TestParseUnknownPolicy(t *testing.T) {
	if p, err := ParseUnknownPolicy(""); err != nil || p != UnknownDrop {
		t.Fatalf("default: %v %v", p, err)
	}
	if p, err := ParseUnknownPolicy("FAIL"); err != nil || p != UnknownFail {
		t.Fatalf("fail: %v %v", p, err)
	}
	if _, err := ParseUnknownPolicy("retry"); err == nil {
		t.Fatalf("expected error")
	}
}
