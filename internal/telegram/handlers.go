package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"assistant-relay/internal/auth"
	"assistant-relay/internal/conversation"
	"assistant-relay/internal/session"
)

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	if !b.checkAccess(msg) {
		return
	}
	chatID := msg.Chat.ID
	switch msg.Command() {
	case "start":
		_, conv, err := b.sessions.CreateWithID(ctx, sessionID(chatID))
		if err != nil {
			log.Printf("failed to start session for chat %d: %v", chatID, err)
			b.sendMessage(chatID, "Could not open a conversation with the assistant, please try again later.")
			return
		}
		out := tgbotapi.NewMessage(chatID, "New conversation started.\n\n"+renderConversation(conv))
		out.ReplyMarkup = b.menuKeyboard()
		if _, err := b.s.Send(out); err != nil {
			log.Printf("failed to send message: %v", err)
		}
	case "reset":
		b.resetConversation(ctx, chatID)
	case "export":
		b.handleExport(ctx, chatID)
	default:
		b.handleAdminCommand(msg)
	}
}

func (b *Bot) handleAdminCommand(msg *tgbotapi.Message) {
	if !b.authSvc.IsAdmin(msg.From.ID) {
		b.sendMessage(msg.Chat.ID, "Unknown command. Use /start, /reset or /export.")
		return
	}
	switch msg.Command() {
	case "allowlist":
		b.sendMessage(msg.Chat.ID, "Allowlist:\n"+renderUsers(b.authSvc.List()))
	case "pending":
		b.sendMessage(msg.Chat.ID, "Pending requests:\n"+renderUsers(b.authSvc.Pending()))
	case "approve", "deny", "remove":
		args := strings.Fields(msg.CommandArguments())
		if len(args) != 1 {
			b.sendMessage(msg.Chat.ID, fmt.Sprintf("Usage: /%s <user_id>", msg.Command()))
			return
		}
		uid, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			b.sendMessage(msg.Chat.ID, "Invalid user_id")
			return
		}
		switch msg.Command() {
		case "approve":
			b.approveUser(uid)
		case "deny":
			b.denyUser(uid)
		case "remove":
			if err := b.authSvc.Remove(uid); err != nil {
				b.sendMessage(msg.Chat.ID, fmt.Sprintf("Failed to remove: %v", err))
				return
			}
			b.sendMessage(msg.Chat.ID, fmt.Sprintf("User %d removed from allowlist", uid))
		}
	default:
		b.sendMessage(msg.Chat.ID, "Unknown command.")
	}
}

// handleIncomingMessage launches a background task for the text and starts
// watching it.
func (b *Bot) handleIncomingMessage(ctx context.Context, msg *tgbotapi.Message) {
	if !b.checkAccess(msg) {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	chatID := msg.Chat.ID
	log.Printf("Incoming message from %d (@%s): %q", msg.From.ID, msg.From.UserName, text)

	sid, err := b.ensureSession(ctx, chatID)
	if err != nil {
		log.Printf("failed to open session for chat %d: %v", chatID, err)
		b.sendMessage(chatID, "Could not open a conversation with the assistant, please try again later.")
		return
	}

	taskID, err := b.tasks.Launch(sid, text)
	if err != nil {
		if errors.Is(err, session.ErrSendInFlight) {
			b.sendMessage(chatID, "Still working on your previous message, please wait for the answer.")
			return
		}
		log.Printf("failed to launch task for chat %d: %v", chatID, err)
		b.sendMessage(chatID, "Sorry, something went wrong.")
		return
	}

	status, err := b.s.Send(tgbotapi.NewMessage(chatID, "⏳ Sending your message…"))
	if err != nil {
		log.Printf("failed to send status message: %v", err)
	}
	tracker := newProgressTracker(b, chatID, status.MessageID)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.watchTask(ctx, taskID, tracker)
	}()
}

func (b *Bot) ensureSession(ctx context.Context, chatID int64) (string, error) {
	id := sessionID(chatID)
	if _, err := b.sessions.Get(id); err == nil {
		return id, nil
	} else if !errors.Is(err, session.ErrNotFound) {
		return "", err
	}
	if _, _, err := b.sessions.CreateWithID(ctx, id); err != nil {
		return "", err
	}
	return id, nil
}

func (b *Bot) resetConversation(ctx context.Context, chatID int64) {
	conv, err := b.sessions.Reset(sessionID(chatID))
	if errors.Is(err, session.ErrNotFound) {
		_, conv, err = b.sessions.CreateWithID(ctx, sessionID(chatID))
	}
	if err != nil {
		log.Printf("failed to reset chat %d: %v", chatID, err)
		b.sendMessage(chatID, "Could not reset the conversation.")
		return
	}
	b.sendMessage(chatID, "Conversation reset.\n\n"+renderConversation(conv))
}

func (b *Bot) handleExport(ctx context.Context, chatID int64) {
	if b.exporter == nil {
		b.sendMessage(chatID, "Export is not configured.")
		return
	}
	id := sessionID(chatID)
	conv, err := b.sessions.Conversation(id)
	if err != nil {
		b.sendMessage(chatID, "Nothing to export yet, send /start first.")
		return
	}
	doc, err := b.exporter.Export(ctx, id, conv)
	if err != nil {
		log.Printf("export failed for chat %d: %v", chatID, err)
		b.sendMessage(chatID, "Export failed, please try again later.")
		return
	}
	if doc.URL != "" {
		b.sendMessage(chatID, "📄 Conversation exported: "+doc.URL)
		return
	}
	file := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: doc.Name, Bytes: doc.Data})
	if _, err := b.s.Send(file); err != nil {
		log.Printf("failed to send document: %v", err)
	}
}

// checkAccess files an access request for unknown users and reports whether
// the message may be processed.
func (b *Bot) checkAccess(msg *tgbotapi.Message) bool {
	if msg.From == nil {
		return false
	}
	if b.authSvc.IsAllowed(msg.From.ID) {
		return true
	}
	log.Printf("Unauthorized access attempt by user ID: %d, username: @%s", msg.From.ID, msg.From.UserName)
	created, err := b.authSvc.RequestAccess(auth.User{
		ID:        msg.From.ID,
		Username:  msg.From.UserName,
		FirstName: msg.From.FirstName,
		LastName:  msg.From.LastName,
	})
	if err != nil {
		log.Printf("failed to persist access request: %v", err)
	}
	if !created {
		b.sendMessage(msg.Chat.ID, "Your access request is already with the administrator. You will be notified once it is approved.")
		return false
	}
	b.sendMessage(msg.Chat.ID, "Access request sent to the administrator. You will be notified once it is approved.")
	b.notifyAdminRequest(msg.From.ID, msg.From.UserName)
	return false
}

func (b *Bot) notifyAdminRequest(userID int64, username string) {
	admin := b.authSvc.Admin()
	if admin == 0 {
		return
	}
	text := fmt.Sprintf("User @%s with id %d wants to use the bot", username, userID)
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("approve", approvePrefix+strconv.FormatInt(userID, 10)),
			tgbotapi.NewInlineKeyboardButtonData("deny", denyPrefix+strconv.FormatInt(userID, 10)),
		),
	)
	msg := tgbotapi.NewMessage(admin, text)
	msg.ReplyMarkup = kb
	if _, err := b.s.Send(msg); err != nil {
		log.Printf("failed to notify admin: %v", err)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if _, err := b.s.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("failed to answer callback: %v", err)
	}
	switch {
	case cb.Data == resetCmd:
		if cb.Message != nil && b.authSvc.IsAllowed(cb.From.ID) {
			b.resetConversation(ctx, cb.Message.Chat.ID)
		}
	case strings.HasPrefix(cb.Data, approvePrefix), strings.HasPrefix(cb.Data, denyPrefix):
		if !b.authSvc.IsAdmin(cb.From.ID) {
			return
		}
		approve := strings.HasPrefix(cb.Data, approvePrefix)
		idStr := strings.TrimPrefix(strings.TrimPrefix(cb.Data, approvePrefix), denyPrefix)
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return
		}
		if approve {
			b.approveUser(id)
		} else {
			b.denyUser(id)
		}
	}
}

func (b *Bot) approveUser(id int64) {
	u, err := b.authSvc.Approve(id)
	if err != nil {
		b.sendMessage(b.authSvc.Admin(), fmt.Sprintf("Could not approve %d: %v", id, err))
		return
	}
	b.sendMessage(b.authSvc.Admin(), fmt.Sprintf("User %d (@%s) approved", u.ID, u.Username))
	b.sendMessage(id, "Access granted. Send /start to begin.")
}

func (b *Bot) denyUser(id int64) {
	if err := b.authSvc.Deny(id); err != nil {
		b.sendMessage(b.authSvc.Admin(), fmt.Sprintf("Could not deny %d: %v", id, err))
		return
	}
	b.sendMessage(b.authSvc.Admin(), fmt.Sprintf("Request from %d denied", id))
	b.sendMessage(id, "Your access request was denied.")
}

func renderConversation(conv conversation.Conversation) string {
	var bld strings.Builder
	for _, item := range conversation.Format(conv) {
		prefix := "🧑"
		if item.From == conversation.RoleAssistant {
			prefix = "🤖"
		}
		bld.WriteString(prefix + " " + item.Text + "\n")
	}
	return strings.TrimRight(bld.String(), "\n")
}

func renderUsers(users []auth.User) string {
	if len(users) == 0 {
		return "(empty)"
	}
	var bld strings.Builder
	for _, u := range users {
		bld.WriteString(fmt.Sprintf("- id=%d, @%s %s %s\n", u.ID, u.Username, u.FirstName, u.LastName))
	}
	return bld.String()
}
