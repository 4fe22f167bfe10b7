package telegram

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"assistant-relay/internal/auth"
	"assistant-relay/internal/conversation"
	"assistant-relay/internal/export"
	"assistant-relay/internal/session"
	"assistant-relay/internal/tasks"
)

const (
	resetCmd      = "reset_ctx"
	approvePrefix = "approve:"
	denyPrefix    = "deny:"

	defaultPollEvery = time.Second
	maxMessageLen    = 4096
)

type Sessions interface {
	Get(id string) (*session.Session, error)
	CreateWithID(ctx context.Context, id string) (*session.Session, conversation.Conversation, error)
	Reset(id string) (conversation.Conversation, error)
	Conversation(id string) (conversation.Conversation, error)
}

type Tasks interface {
	Launch(sessionID, text string) (string, error)
	Snapshot(id string) (tasks.Snapshot, error)
}

type Exporter interface {
	Export(ctx context.Context, sessionID string, conv conversation.Conversation) (export.Document, error)
}

// Bot relays chat messages to the assistant. Every chat is one session whose
// id is the chat id.
type Bot struct {
	api      *tgbotapi.BotAPI
	s        sender
	authSvc  *auth.Service
	sessions Sessions
	tasks    Tasks
	exporter Exporter

	pollEvery time.Duration
	wg        sync.WaitGroup
}

// New connects to Telegram. exporter may be nil.
func New(botToken string, authSvc *auth.Service, sessions Sessions, tasks Tasks, exporter Exporter) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	log.Printf("🤖 Authorized on account @%s", api.Self.UserName)
	return &Bot{
		api:       api,
		s:         botAPISender{api: api},
		authSvc:   authSvc,
		sessions:  sessions,
		tasks:     tasks,
		exporter:  exporter,
		pollEvery: defaultPollEvery,
	}, nil
}

// Start consumes updates until ctx is cancelled, then waits for the task
// watchers it started.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.wg.Wait()
			return
		case update, ok := <-updates:
			if !ok {
				b.wg.Wait()
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	case update.Message != nil:
		b.handleIncomingMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

// SendToAdmin delivers text to the admin chat, e.g. the daily report.
func (b *Bot) SendToAdmin(ctx context.Context, text string) error {
	admin := b.authSvc.Admin()
	if admin == 0 {
		log.Printf("📊 No admin configured, report:\n%s", text)
		return nil
	}
	if _, err := b.s.Send(tgbotapi.NewMessage(admin, text)); err != nil {
		return fmt.Errorf("failed to send to admin: %w", err)
	}
	return nil
}

func (b *Bot) sendMessage(chatID int64, text string) {
	for _, part := range splitMessage(text, maxMessageLen) {
		if _, err := b.s.Send(tgbotapi.NewMessage(chatID, part)); err != nil {
			log.Printf("failed to send message: %v", err)
		}
	}
}

func (b *Bot) menuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Reset conversation", resetCmd),
		),
	)
}

func sessionID(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

// splitMessage cuts text into chunks Telegram accepts, preferring line breaks.
func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}
	var parts []string
	for len(runes) > limit {
		cut := limit
		for i := limit - 1; i > limit/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}
