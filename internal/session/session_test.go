package session

import (
	"context"
	"errors"
	"testing"

	"assistant-relay/internal/conversation"
)

type fakeThreads struct {
	n   int
	err error
}

func (f *fakeThreads) CreateThread(ctx context.Context) (string, error) {
	f.n++
	if f.err != nil {
		return "", f.err
	}
	return "th_" + string(rune('0'+f.n)), nil
}

func TestCreateSeedsConversation(t *testing.T) {
	ft := &fakeThreads{}
	m := NewManager(ft, conversation.NewStore())

	s, conv, err := m.Create(context.Background())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if s.ID == "" || s.ThreadID != "th_1" {
		t.Fatalf("unexpected session: %+v", s)
	}
	if len(conv) != 2 {
		t.Fatalf("expected seeded conversation, got %+v", conv)
	}
	got, err := m.Conversation(s.ID)
	if err != nil || len(got) != 2 {
		t.Fatalf("conversation not stored: %+v %v", got, err)
	}
}

func TestCreateFailsWithoutThread(t *testing.T) {
	m := NewManager(&fakeThreads{err: errors.New("down")}, conversation.NewStore())
	if _, _, err := m.Create(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestAcquireRejectsOverlappingSends(t *testing.T) {
	m := NewManager(&fakeThreads{}, conversation.NewStore())
	s, _, _ := m.CreateWithID(context.Background(), "chat-1")

	release, err := m.Acquire(s.ID)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if !m.Busy(s.ID) {
		t.Fatalf("session should be busy")
	}
	if _, err := m.Acquire(s.ID); !errors.Is(err, ErrSendInFlight) {
		t.Fatalf("expected ErrSendInFlight, got %v", err)
	}

	release()
	release() // idempotent
	if m.Busy(s.ID) {
		t.Fatalf("release did not clear in-flight flag")
	}
	if _, err := m.Acquire(s.ID); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}

func TestUnknownSession(t *testing.T) {
	m := NewManager(&fakeThreads{}, conversation.NewStore())
	if _, err := m.Acquire("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := m.Reset("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResetKeepsThread(t *testing.T) {
	m := NewManager(&fakeThreads{}, conversation.NewStore())
	s, _, _ := m.Create(context.Background())
	m.Store().Replace(s.ID, conversation.Conversation{{Role: "user", Text: "x"}})

	conv, err := m.Reset(s.ID)
	if err != nil || len(conv) != 2 {
		t.Fatalf("reset: %+v %v", conv, err)
	}
	again, _ := m.Get(s.ID)
	if again.ThreadID != s.ThreadID {
		t.Fatalf("reset must keep the thread")
	}

	m.Delete(s.ID)
	if _, err := m.Get(s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete did not remove session")
	}
}

func TestReplaceConversationChecksThread(t *testing.T) {
	m := NewManager(&fakeThreads{}, conversation.NewStore())
	old, _, _ := m.CreateWithID(context.Background(), "chat-1")
	answer := conversation.Conversation{{Role: "user", Text: "q"}, {Role: "assistant", Text: "a"}}

	if err := m.ReplaceConversation("chat-1", old.ThreadID, answer); err != nil {
		t.Fatalf("replace on current thread: %v", err)
	}
	if conv, _ := m.Conversation("chat-1"); len(conv) != 2 || conv[1].Text != "a" {
		t.Fatalf("conversation not replaced: %+v", conv)
	}

	fresh, _, _ := m.CreateWithID(context.Background(), "chat-1")
	if fresh.ThreadID == old.ThreadID {
		t.Fatalf("expected a new thread")
	}
	if err := m.ReplaceConversation("chat-1", old.ThreadID, answer); !errors.Is(err, ErrStaleThread) {
		t.Fatalf("expected ErrStaleThread, got %v", err)
	}
	if conv, _ := m.Conversation("chat-1"); conv[1].Text == "a" {
		t.Fatalf("stale thread overwrote the new conversation: %+v", conv)
	}

	m.Delete("chat-1")
	if err := m.ReplaceConversation("chat-1", fresh.ThreadID, answer); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if conv := m.Store().Get("chat-1"); len(conv) != 0 {
		t.Fatalf("deleted session got a conversation back: %+v", conv)
	}
}

func TestStaleReleaseKeepsNewGuard(t *testing.T) {
	m := NewManager(&fakeThreads{}, conversation.NewStore())
	m.CreateWithID(context.Background(), "chat-1")
	staleRelease, err := m.Acquire("chat-1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	m.Delete("chat-1")
	m.CreateWithID(context.Background(), "chat-1")
	if _, err := m.Acquire("chat-1"); err != nil {
		t.Fatalf("acquire on recreated session: %v", err)
	}

	staleRelease()
	if !m.Busy("chat-1") {
		t.Fatalf("release from the deleted session cleared the new send")
	}
}
