package telegram

import (
	"context"
	"log"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"assistant-relay/internal/conversation"
	"assistant-relay/internal/runner"
	"assistant-relay/internal/tasks"
)

var phaseText = map[runner.Phase]string{
	runner.PhaseStarted:        "⏳ Sending your message…",
	runner.PhasePolling:        "🤔 The assistant is thinking…",
	runner.PhaseActionRequired: "🔎 Searching the web…",
	runner.PhaseToolSubmitted:  "📨 Search results handed to the assistant…",
}

// ProgressTracker keeps one status message per task up to date.
type ProgressTracker struct {
	bot       *Bot
	chatID    int64
	messageID int

	mu    sync.Mutex
	phase runner.Phase
}

func newProgressTracker(b *Bot, chatID int64, messageID int) *ProgressTracker {
	return &ProgressTracker{bot: b, chatID: chatID, messageID: messageID, phase: runner.PhaseStarted}
}

// UpdateProgress edits the status message when the phase changes.
func (pt *ProgressTracker) UpdateProgress(phase runner.Phase) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	if phase == "" || phase == pt.phase {
		return
	}
	pt.phase = phase
	text, ok := phaseText[phase]
	if !ok {
		return
	}
	pt.edit(text)
}

// Finish replaces the status message with the final text.
func (pt *ProgressTracker) Finish(text string) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	parts := splitMessage(text, maxMessageLen)
	if pt.messageID == 0 {
		pt.bot.sendMessage(pt.chatID, text)
		return
	}
	pt.edit(parts[0])
	for _, p := range parts[1:] {
		pt.bot.sendMessage(pt.chatID, p)
	}
}

func (pt *ProgressTracker) edit(text string) {
	if pt.messageID == 0 {
		return
	}
	edit := tgbotapi.NewEditMessageText(pt.chatID, pt.messageID, text)
	if _, err := pt.bot.s.Send(edit); err != nil {
		log.Printf("⚠️ Failed to update progress message: %v", err)
	}
}

// watchTask polls the task handle on a ticker until it is terminal and then
// posts the outcome to the chat.
func (b *Bot) watchTask(ctx context.Context, taskID string, pt *ProgressTracker) {
	ticker := time.NewTicker(b.pollEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		snap, err := b.tasks.Snapshot(taskID)
		if err != nil {
			log.Printf("failed to read task %s: %v", taskID, err)
			pt.Finish("Sorry, the answer was lost.")
			return
		}
		switch snap.Status {
		case tasks.StatusCompleted:
			answer, ok := snap.Result.Last(conversation.RoleAssistant)
			if !ok || answer.Text == "" {
				pt.Finish("The assistant returned an empty answer.")
				return
			}
			pt.Finish(answer.Text)
			return
		case tasks.StatusError:
			pt.Finish("❌ " + snap.ErrorMessage)
			return
		default:
			pt.UpdateProgress(snap.Phase)
		}
	}
}
