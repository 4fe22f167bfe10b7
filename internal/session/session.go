package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"assistant-relay/internal/conversation"
)

var (
	ErrNotFound     = errors.New("session not found")
	ErrSendInFlight = errors.New("a message is already being processed for this session")
	ErrStaleThread  = errors.New("session is no longer bound to this thread")
)

// Session ties a local conversation to a remote assistant thread.
type Session struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ThreadCreator is the part of the assistant gateway sessions need.
type ThreadCreator interface {
	CreateThread(ctx context.Context) (string, error)
}

type Manager struct {
	threads ThreadCreator
	convs   *conversation.Store

	mu       sync.Mutex
	sessions map[string]*Session
	inFlight map[string]uint64
	nextSend uint64
}

func NewManager(threads ThreadCreator, convs *conversation.Store) *Manager {
	return &Manager{
		threads:  threads,
		convs:    convs,
		sessions: make(map[string]*Session),
		inFlight: make(map[string]uint64),
	}
}

// Create opens a new thread and seeds its conversation.
func (m *Manager) Create(ctx context.Context) (*Session, conversation.Conversation, error) {
	return m.CreateWithID(ctx, uuid.NewString())
}

// CreateWithID is Create with a caller-chosen session id, e.g. a chat id.
// An existing session with the same id is replaced.
func (m *Manager) CreateWithID(ctx context.Context, id string) (*Session, conversation.Conversation, error) {
	threadID, err := m.threads.CreateThread(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("create session: %w", err)
	}
	s := &Session{ID: id, ThreadID: threadID, CreatedAt: time.Now().UTC()}

	m.mu.Lock()
	m.sessions[id] = s
	conv := m.convs.Reset(id)
	m.mu.Unlock()

	log.Printf("🧵 Session %s bound to thread %s", id, threadID)
	return s, conv, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

// Reset re-seeds the conversation and keeps the thread.
func (m *Manager) Reset(id string) (conversation.Conversation, error) {
	if _, err := m.Get(id); err != nil {
		return nil, err
	}
	return m.convs.Reset(id), nil
}

func (m *Manager) Conversation(id string) (conversation.Conversation, error) {
	if _, err := m.Get(id); err != nil {
		return nil, err
	}
	return m.convs.Get(id), nil
}

func (m *Manager) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	delete(m.inFlight, id)
	m.convs.Delete(id)
}

// ReplaceConversation stores conv for the session only while it is still
// bound to threadID. A session that was deleted or re-created on another
// thread in the meantime is left untouched.
func (m *Manager) ReplaceConversation(id, threadID string, conv conversation.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if s.ThreadID != threadID {
		return fmt.Errorf("%w: %s is on %s, not %s", ErrStaleThread, id, s.ThreadID, threadID)
	}
	m.convs.Replace(id, conv)
	return nil
}

// Acquire marks a send as in flight for the session. Only one send per
// session may run at a time; the returned release must be called exactly once
// when the send reaches a terminal state.
func (m *Manager) Acquire(id string) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return nil, ErrNotFound
	}
	if _, busy := m.inFlight[id]; busy {
		return nil, ErrSendInFlight
	}
	m.nextSend++
	token := m.nextSend
	m.inFlight[id] = token
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			// A delete followed by a new send on the same id must keep its guard.
			if m.inFlight[id] == token {
				delete(m.inFlight, id)
			}
			m.mu.Unlock()
		})
	}, nil
}

func (m *Manager) Busy(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, busy := m.inFlight[id]
	return busy
}

// Store exposes the conversation store sessions write to.
func (m *Manager) Store() *conversation.Store {
	return m.convs
}
