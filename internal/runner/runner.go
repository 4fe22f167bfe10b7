package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"assistant-relay/internal/assistant"
	"assistant-relay/internal/conversation"
)

const (
	DefaultPollInterval = 3 * time.Second
	DefaultTimeout      = 120 * time.Second
)

var (
	ErrNoThread  = errors.New("thread ID not found")
	ErrRunFailed = errors.New("run failed")
	ErrTimeout   = errors.New("run timed out")
)

// Phase is the position of a drive in the run state machine.
type Phase string

const (
	PhaseStarted        Phase = "started"
	PhasePolling        Phase = "polling"
	PhaseActionRequired Phase = "action_required"
	PhaseToolSubmitted  Phase = "tool_submitted"
	PhaseCompleted      Phase = "completed"
	PhaseFailed         Phase = "failed"
)

// ProgressCallback receives every phase transition of a drive.
type ProgressCallback interface {
	UpdateProgress(phase Phase)
}

type ToolDispatcher interface {
	Dispatch(ctx context.Context, call assistant.ToolCall) (assistant.ToolOutput, bool, error)
}

type Config struct {
	AssistantID  string
	PollInterval time.Duration
	Timeout      time.Duration
}

// Result is what a drive produced. A failed drive still reports the run id
// and the tool calls made before the failure; Conversation is only set on
// success.
type Result struct {
	RunID        string
	Conversation conversation.Conversation
	ToolCalls    []string
}

// Driver posts a user message, runs the assistant over the thread and keeps
// polling until the run settles, fulfilling tool calls along the way.
type Driver struct {
	gw    assistant.Gateway
	tools ToolDispatcher
	cfg   Config
}

func New(gw assistant.Gateway, tools ToolDispatcher, cfg Config) *Driver {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Driver{gw: gw, tools: tools, cfg: cfg}
}

// Drive runs one user turn to completion. The whole call, including tool
// execution, is bounded by the configured timeout. progress may be nil.
func (d *Driver) Drive(ctx context.Context, threadID, text string, progress ProgressCallback) (Result, error) {
	if threadID == "" {
		return Result{}, ErrNoThread
	}
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	report := func(p Phase) {
		if progress != nil {
			progress.UpdateProgress(p)
		}
	}

	res, err := d.drive(ctx, threadID, text, report)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
			err = fmt.Errorf("%w after %s: %v", ErrTimeout, d.cfg.Timeout, err)
		}
		report(PhaseFailed)
		return res, err
	}
	report(PhaseCompleted)
	return res, nil
}

func (d *Driver) drive(ctx context.Context, threadID, text string, report func(Phase)) (Result, error) {
	var res Result
	report(PhaseStarted)
	if _, err := d.gw.PostMessage(ctx, threadID, text); err != nil {
		return res, err
	}
	run, err := d.gw.StartRun(ctx, threadID, d.cfg.AssistantID)
	if err != nil {
		return res, err
	}
	res.RunID = run.ID
	log.Printf("🚀 Run %s started on thread %s", run.ID, threadID)

	for {
		report(PhasePolling)
		run, err = d.wait(ctx, threadID, res.RunID)
		if err != nil {
			return res, err
		}

		switch run.Status {
		case assistant.RunCompleted:
			conv, err := d.gw.ListMessages(ctx, threadID)
			if err != nil {
				return res, err
			}
			log.Printf("✅ Run %s completed with %d messages", run.ID, len(conv))
			res.Conversation = conv
			return res, nil

		case assistant.RunRequiresAction:
			report(PhaseActionRequired)
			outputs := make([]assistant.ToolOutput, 0, len(run.ToolCalls))
			for _, call := range run.ToolCalls {
				res.ToolCalls = append(res.ToolCalls, call.Name)
				out, ok, err := d.tools.Dispatch(ctx, call)
				if err != nil {
					return res, err
				}
				if ok {
					outputs = append(outputs, out)
				}
			}
			if len(outputs) == 0 {
				log.Printf("⚠️ Submitting empty tool outputs for run %s", run.ID)
			}
			run, err = d.gw.SubmitToolOutputs(ctx, threadID, run.ID, outputs)
			if err != nil {
				return res, err
			}
			report(PhaseToolSubmitted)

		default:
			msg := string(run.Status)
			if run.LastError != "" {
				msg += ": " + run.LastError
			}
			return res, fmt.Errorf("%w: run %s %s", ErrRunFailed, run.ID, msg)
		}
	}
}

// wait sleeps one interval at a time and re-reads the run until it settles.
func (d *Driver) wait(ctx context.Context, threadID, runID string) (assistant.Run, error) {
	timer := time.NewTimer(d.cfg.PollInterval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return assistant.Run{}, fmt.Errorf("%w after %s: run %s still pending", ErrTimeout, d.cfg.Timeout, runID)
			}
			return assistant.Run{}, ctx.Err()
		case <-timer.C:
		}
		run, err := d.gw.GetRun(ctx, threadID, runID)
		if err != nil {
			return assistant.Run{}, err
		}
		if run.Status.Settled() {
			return run, nil
		}
		timer.Reset(d.cfg.PollInterval)
	}
}
