// Package httpapi exposes sessions and background tasks over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"assistant-relay/internal/conversation"
	"assistant-relay/internal/export"
	"assistant-relay/internal/runner"
	"assistant-relay/internal/session"
	"assistant-relay/internal/tasks"
)

type Sessions interface {
	Create(ctx context.Context) (*session.Session, conversation.Conversation, error)
	Conversation(id string) (conversation.Conversation, error)
	Reset(id string) (conversation.Conversation, error)
	Delete(id string)
}

type Tasks interface {
	Launch(sessionID, text string) (string, error)
	Snapshot(id string) (tasks.Snapshot, error)
}

type Exporter interface {
	Export(ctx context.Context, sessionID string, conv conversation.Conversation) (export.Document, error)
}

// Handler handles HTTP requests.
type Handler struct {
	sessions Sessions
	tasks    Tasks
	exporter Exporter
}

// NewHandler creates a handler. exporter may be nil, which disables export.
func NewHandler(sessions Sessions, tasks Tasks, exporter Exporter) *Handler {
	return &Handler{sessions: sessions, tasks: tasks, exporter: exporter}
}

// NewServer builds the echo server with the standard middleware and routes.
func NewServer(h *Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	h.RegisterRoutes(e)
	return e
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/sessions", h.CreateSession)
	e.DELETE("/v1/sessions/:session_id", h.DeleteSession)
	e.GET("/v1/sessions/:session_id/conversation", h.GetConversation)
	e.POST("/v1/sessions/:session_id/reset", h.ResetConversation)
	e.POST("/v1/sessions/:session_id/messages", h.SendMessage)
	e.GET("/v1/sessions/:session_id/export", h.ExportConversation)

	e.GET("/v1/tasks/:task_id", h.GetTask)
	e.GET("/v1/tasks/:task_id/result", h.GetTaskResult)

	e.GET("/health", h.Health)
}

type createSessionResponse struct {
	SessionID    string                     `json:"session_id"`
	ThreadID     string                     `json:"thread_id"`
	Conversation []conversation.DisplayItem `json:"conversation"`
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

type sendMessageResponse struct {
	TaskID string `json:"task_id"`
}

type taskResponse struct {
	TaskID       string       `json:"task_id"`
	SessionID    string       `json:"session_id"`
	Status       tasks.Status `json:"status"`
	Phase        runner.Phase `json:"phase,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
}

func (h *Handler) CreateSession(c echo.Context) error {
	s, conv, err := h.sessions.Create(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusBadGateway, errorBody(err))
	}
	return c.JSON(http.StatusCreated, createSessionResponse{
		SessionID:    s.ID,
		ThreadID:     s.ThreadID,
		Conversation: conversation.Format(conv),
	})
}

func (h *Handler) DeleteSession(c echo.Context) error {
	h.sessions.Delete(c.Param("session_id"))
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetConversation(c echo.Context) error {
	conv, err := h.sessions.Conversation(c.Param("session_id"))
	if err != nil {
		return c.JSON(statusFor(err), errorBody(err))
	}
	return c.JSON(http.StatusOK, conversation.Format(conv))
}

func (h *Handler) ResetConversation(c echo.Context) error {
	conv, err := h.sessions.Reset(c.Param("session_id"))
	if err != nil {
		return c.JSON(statusFor(err), errorBody(err))
	}
	return c.JSON(http.StatusOK, conversation.Format(conv))
}

// SendMessage launches a background task and answers before the assistant does.
func (h *Handler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "text is required"})
	}
	id, err := h.tasks.Launch(c.Param("session_id"), text)
	if err != nil {
		return c.JSON(statusFor(err), errorBody(err))
	}
	return c.JSON(http.StatusAccepted, sendMessageResponse{TaskID: id})
}

func (h *Handler) GetTask(c echo.Context) error {
	snap, err := h.tasks.Snapshot(c.Param("task_id"))
	if err != nil {
		return c.JSON(statusFor(err), errorBody(err))
	}
	return c.JSON(http.StatusOK, taskResponse{
		TaskID:       snap.ID,
		SessionID:    snap.SessionID,
		Status:       snap.Status,
		Phase:        snap.Phase,
		ErrorMessage: snap.ErrorMessage,
	})
}

func (h *Handler) GetTaskResult(c echo.Context) error {
	snap, err := h.tasks.Snapshot(c.Param("task_id"))
	if err != nil {
		return c.JSON(statusFor(err), errorBody(err))
	}
	switch snap.Status {
	case tasks.StatusCompleted:
		return c.JSON(http.StatusOK, conversation.Format(snap.Result))
	case tasks.StatusError:
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{
			"status":        string(snap.Status),
			"error_message": snap.ErrorMessage,
		})
	default:
		return c.JSON(http.StatusConflict, map[string]string{
			"status": string(snap.Status),
			"error":  tasks.ErrNotReady.Error(),
		})
	}
}

func (h *Handler) ExportConversation(c echo.Context) error {
	if h.exporter == nil {
		return c.JSON(http.StatusNotImplemented, map[string]string{"error": "export is not configured"})
	}
	id := c.Param("session_id")
	conv, err := h.sessions.Conversation(id)
	if err != nil {
		return c.JSON(statusFor(err), errorBody(err))
	}
	doc, err := h.exporter.Export(c.Request().Context(), id, conv)
	if err != nil {
		return c.JSON(http.StatusBadGateway, errorBody(err))
	}
	if doc.URL != "" {
		return c.JSON(http.StatusOK, map[string]string{"url": doc.URL, "name": doc.Name})
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+doc.Name+`"`)
	return c.Blob(http.StatusOK, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", doc.Data)
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, tasks.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrSendInFlight):
		return http.StatusConflict
	case errors.Is(err, runner.ErrNoThread):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(err error) map[string]string {
	return map[string]string{"error": err.Error()}
}
