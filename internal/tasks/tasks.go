package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"assistant-relay/internal/conversation"
	"assistant-relay/internal/runner"
	"assistant-relay/internal/session"
	"assistant-relay/internal/storage"
)

type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

var (
	ErrNotFound  = errors.New("task not found")
	ErrNotReady  = errors.New("task has not completed")
	ErrNoFailure = errors.New("task has not failed")
)

// Snapshot is a consistent copy of a task's state.
type Snapshot struct {
	ID           string                    `json:"id"`
	SessionID    string                    `json:"session_id"`
	Status       Status                    `json:"status"`
	Phase        runner.Phase              `json:"phase,omitempty"`
	Result       conversation.Conversation `json:"result,omitempty"`
	ErrorMessage string                    `json:"error_message,omitempty"`
	StartedAt    time.Time                 `json:"started_at"`
	FinishedAt   time.Time                 `json:"finished_at,omitempty"`
}

type Driver interface {
	Drive(ctx context.Context, threadID, text string, progress runner.ProgressCallback) (runner.Result, error)
}

type Sessions interface {
	Get(id string) (*session.Session, error)
	Acquire(id string) (func(), error)
	ReplaceConversation(id, threadID string, conv conversation.Conversation) error
}

// Orchestrator runs one driver per launched message in the background and
// lets callers poll the outcome by task id.
type Orchestrator struct {
	driver   Driver
	sessions Sessions
	recorder storage.Recorder

	mu    sync.RWMutex
	tasks map[string]*Snapshot
	wg    sync.WaitGroup
	now   func() time.Time
}

// New builds an orchestrator. recorder may be nil.
func New(driver Driver, sessions Sessions, recorder storage.Recorder) *Orchestrator {
	return &Orchestrator{
		driver:   driver,
		sessions: sessions,
		recorder: recorder,
		tasks:    make(map[string]*Snapshot),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Launch starts processing text for the session and returns immediately with
// the task id. A session with a send already in flight is rejected.
func (o *Orchestrator) Launch(sessionID, text string) (string, error) {
	sess, err := o.sessions.Get(sessionID)
	if err != nil {
		return "", err
	}
	if sess.ThreadID == "" {
		return "", runner.ErrNoThread
	}
	release, err := o.sessions.Acquire(sessionID)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	o.mu.Lock()
	o.tasks[id] = &Snapshot{
		ID:        id,
		SessionID: sessionID,
		Status:    StatusProcessing,
		StartedAt: o.now(),
	}
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run(id, sess, text, release)
	}()
	log.Printf("📨 Task %s launched for session %s", id, sessionID)
	return id, nil
}

// run drives the message and publishes the outcome. The session is released
// before the task turns terminal so a poller that sees the result can send
// again right away.
func (o *Orchestrator) run(id string, sess *session.Session, text string, release func()) {
	// The drive outlives the request that launched it, so it gets its own
	// context; the driver enforces the deadline.
	res, err := o.driver.Drive(context.Background(), sess.ThreadID, text, progress{o: o, id: id})
	if err != nil {
		log.Printf("❌ Task %s failed: %v", id, err)
		release()
		o.finish(id, StatusError, nil, err.Error())
		o.record(id, sess.ID, text, res, StatusError, err.Error())
		return
	}
	if err := o.sessions.ReplaceConversation(sess.ID, sess.ThreadID, res.Conversation); err != nil {
		log.Printf("⚠️ Task %s result not stored in session %s: %v", id, sess.ID, err)
	}
	release()
	o.finish(id, StatusCompleted, res.Conversation, "")
	o.record(id, sess.ID, text, res, StatusCompleted, "")
}

// finish moves a task to a terminal state. Terminal tasks never change again.
func (o *Orchestrator) finish(id string, status Status, result conversation.Conversation, errMsg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	t, ok := o.tasks[id]
	if !ok || t.Status.Terminal() {
		return
	}
	t.Status = status
	t.Result = result
	t.ErrorMessage = errMsg
	t.FinishedAt = o.now()
}

func (o *Orchestrator) setPhase(id string, phase runner.Phase) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if t, ok := o.tasks[id]; ok && !t.Status.Terminal() {
		t.Phase = phase
	}
}

func (o *Orchestrator) record(id, sessionID, text string, res runner.Result, status Status, errMsg string) {
	if o.recorder == nil {
		return
	}
	ev := storage.Event{
		Timestamp:   o.now(),
		SessionID:   sessionID,
		TaskID:      id,
		RunID:       res.RunID,
		UserMessage: text,
		ToolCalls:   res.ToolCalls,
		Status:      string(status),
		Error:       errMsg,
	}
	if m, ok := res.Conversation.Last(conversation.RoleAssistant); ok {
		ev.AssistantResponse = m.Text
	}
	if err := o.recorder.AppendInteraction(ev); err != nil {
		log.Printf("failed to record interaction for task %s: %v", id, err)
	}
}

func (o *Orchestrator) Snapshot(id string) (Snapshot, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	t, ok := o.tasks[id]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	cp := *t
	if t.Result != nil {
		cp.Result = make(conversation.Conversation, len(t.Result))
		copy(cp.Result, t.Result)
	}
	return cp, nil
}

func (o *Orchestrator) Status(id string) (Status, error) {
	s, err := o.Snapshot(id)
	if err != nil {
		return "", err
	}
	return s.Status, nil
}

// Result returns the conversation a completed task produced.
func (o *Orchestrator) Result(id string) (conversation.Conversation, error) {
	s, err := o.Snapshot(id)
	if err != nil {
		return nil, err
	}
	if s.Status != StatusCompleted {
		return nil, fmt.Errorf("%w: status %s", ErrNotReady, s.Status)
	}
	return s.Result, nil
}

// Error returns the captured message of a failed task.
func (o *Orchestrator) Error(id string) (string, error) {
	s, err := o.Snapshot(id)
	if err != nil {
		return "", err
	}
	if s.Status != StatusError {
		return "", fmt.Errorf("%w: status %s", ErrNoFailure, s.Status)
	}
	return s.ErrorMessage, nil
}

// Evict drops terminal tasks that finished more than ttl ago and returns how
// many were removed.
func (o *Orchestrator) Evict(ttl time.Duration) int {
	cutoff := o.now().Add(-ttl)
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for id, t := range o.tasks {
		if t.Status.Terminal() && t.FinishedAt.Before(cutoff) {
			delete(o.tasks, id)
			n++
		}
	}
	return n
}

func (o *Orchestrator) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.tasks)
}

// Wait blocks until every launched task has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

type progress struct {
	o  *Orchestrator
	id string
}

func (p progress) UpdateProgress(phase runner.Phase) {
	p.o.setPhase(p.id, phase)
}
