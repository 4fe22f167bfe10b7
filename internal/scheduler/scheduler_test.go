package scheduler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"assistant-relay/internal/storage"
)

type fakeEvicter struct {
	ttl time.Duration
	n   int
}

func (f *fakeEvicter) Evict(ttl time.Duration) int {
	f.ttl = ttl
	return f.n
}

type fakeRecorder struct {
	events []storage.Event
	err    error
}

func (f *fakeRecorder) AppendInteraction(ev storage.Event) error { return nil }
func (f *fakeRecorder) LoadInteractions() ([]storage.Event, error) {
	return f.events, f.err
}

func TestAddRejectsBadSpec(t *testing.T) {
	s := New()
	defer s.Stop()
	err := s.Add(Job{Name: "x", Spec: "not a cron", Fn: func(context.Context) error { return nil }})
	if err == nil {
		t.Fatalf("expected error for invalid spec")
	}
	if s.IsRunning() {
		t.Fatalf("no entries expected")
	}
}

func TestAddSkipsEmptySpecAndRejectsDuplicates(t *testing.T) {
	s := New()
	defer s.Stop()
	if err := s.Add(Job{Name: "off"}); err != nil {
		t.Fatalf("empty spec should be skipped: %v", err)
	}
	j := Job{Name: "j", Spec: "@every 1h", Fn: func(context.Context) error { return nil }}
	if err := s.Add(j); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Add(j); err == nil {
		t.Fatalf("duplicate job should fail")
	}
	if !s.IsRunning() {
		t.Fatalf("expected one entry")
	}
}

func TestJanitorJob(t *testing.T) {
	s := New()
	defer s.Stop()
	ev := &fakeEvicter{n: 3}
	if err := s.Add(JanitorJob("@every 1m", ev, time.Hour)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.RunNow("task-janitor"); err != nil {
		t.Fatalf("run: %v", err)
	}
	if ev.ttl != time.Hour {
		t.Fatalf("janitor used ttl %s", ev.ttl)
	}
}

func TestReportJob(t *testing.T) {
	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	rec := &fakeRecorder{events: []storage.Event{
		{Timestamp: yesterday, SessionID: "s1", UserMessage: "hi", Status: "completed", ToolCalls: []string{"tavily_search"}},
	}}
	var got string
	job := ReportJob("0 21 * * *", rec, func(ctx context.Context, text string) error {
		got = text
		return nil
	})
	if err := job.Fn(context.Background()); err != nil {
		t.Fatalf("report: %v", err)
	}
	if !strings.Contains(got, "tavily_search: 1") || !strings.Contains(got, "Messages: 1") {
		t.Fatalf("unexpected report: %s", got)
	}

	rec.err = errors.New("disk gone")
	if err := job.Fn(context.Background()); err == nil {
		t.Fatalf("expected load error")
	}
}

func TestRunNowUnknownJob(t *testing.T) {
	s := New()
	defer s.Stop()
	if err := s.RunNow("missing"); err == nil {
		t.Fatalf("expected error")
	}
}
