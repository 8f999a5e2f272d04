package v1

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	coachengine "github.com/exort/exort/plugin/ai/coach"
	"github.com/exort/exort/server/internal/observability"
	"github.com/exort/exort/server/service/coach"
	"github.com/exort/exort/store"
)

// maxMessageLength bounds user message content at the request boundary.
const maxMessageLength = 5000

// streamDoneSentinel terminates every NDJSON stream; consumers read until
// they see it on a line of its own.
const streamDoneSentinel = "[DONE]"

func (s *APIV1Service) registerCoachRoutes(group *echo.Group) {
	group.POST("/coach/sessions", s.createCoachSession)
	group.GET("/coach/sessions", s.listCoachSessions)
	group.DELETE("/coach/sessions/:id", s.deleteCoachSession)
	group.GET("/coach/sessions/:id/messages", s.getCoachMessages)
	group.POST("/coach/sessions/:id/messages", s.sendCoachMessage)
	group.POST("/coach/sessions/:id/messages/stream", s.sendCoachMessageStream)
}

type createSessionBody struct {
	Title  string  `json:"title"`
	GameID *string `json:"gameId"`
}

type sendMessageBody struct {
	Content string `json:"content"`
}

type sessionPayload struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	GameID      *string         `json:"gameId"`
	CreatedAt   string          `json:"createdAt"`
	LastMessage *messagePayload `json:"lastMessage,omitempty"`
}

type messagePayload struct {
	ID        string          `json:"id"`
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	ToolCalls json.RawMessage `json:"toolCalls,omitempty"`
	CreatedAt string          `json:"createdAt"`
}

type exchangePayload struct {
	UserMessage      *messagePayload `json:"userMessage"`
	AssistantMessage *messagePayload `json:"assistantMessage"`
}

func convertSession(session *store.ChatSession) *sessionPayload {
	return &sessionPayload{
		ID:        session.UID,
		Title:     session.Title,
		GameID:    session.GameUID,
		CreatedAt: time.Unix(session.CreatedTs, 0).UTC().Format(time.RFC3339),
	}
}

func convertMessage(message *store.ChatMessage) *messagePayload {
	payload := &messagePayload{
		ID:        message.UID,
		Role:      string(message.Role),
		Content:   message.Content,
		CreatedAt: time.Unix(message.CreatedTs, 0).UTC().Format(time.RFC3339),
	}
	if message.ToolCalls != "" {
		payload.ToolCalls = json.RawMessage(message.ToolCalls)
	}
	return payload
}

func (s *APIV1Service) createCoachSession(c echo.Context) error {
	if s.CoachService == nil {
		return coachDisabled(c)
	}

	body := &createSessionBody{}
	if err := c.Bind(body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Malformed request body"})
	}

	session, err := s.CoachService.CreateSession(c.Request().Context(), getUserID(c), &coach.CreateSessionRequest{
		Title:   body.Title,
		GameUID: body.GameID,
	})
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusCreated, convertSession(session))
}

func (s *APIV1Service) listCoachSessions(c echo.Context) error {
	if s.CoachService == nil {
		return coachDisabled(c)
	}

	previews, err := s.CoachService.ListSessions(c.Request().Context(), getUserID(c))
	if err != nil {
		return internalError(c, err)
	}

	payloads := make([]*sessionPayload, 0, len(previews))
	for _, preview := range previews {
		payload := convertSession(preview.Session)
		if preview.LastMessage != nil {
			payload.LastMessage = convertMessage(preview.LastMessage)
		}
		payloads = append(payloads, payload)
	}
	return c.JSON(http.StatusOK, payloads)
}

func (s *APIV1Service) deleteCoachSession(c echo.Context) error {
	if s.CoachService == nil {
		return coachDisabled(c)
	}

	err := s.CoachService.DeleteSession(c.Request().Context(), getUserID(c), c.Param("id"))
	if errors.Is(err, coach.ErrNotFound) {
		return sessionNotFound(c)
	}
	if err != nil {
		return internalError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *APIV1Service) getCoachMessages(c echo.Context) error {
	if s.CoachService == nil {
		return coachDisabled(c)
	}

	messages, err := s.CoachService.GetMessages(c.Request().Context(), getUserID(c), c.Param("id"))
	if errors.Is(err, coach.ErrNotFound) {
		return sessionNotFound(c)
	}
	if err != nil {
		return internalError(c, err)
	}

	payloads := make([]*messagePayload, 0, len(messages))
	for _, message := range messages {
		payloads = append(payloads, convertMessage(message))
	}
	return c.JSON(http.StatusOK, payloads)
}

func (s *APIV1Service) sendCoachMessage(c echo.Context) error {
	if s.CoachService == nil {
		return coachDisabled(c)
	}

	body, ok := bindMessageBody(c)
	if !ok {
		return nil
	}

	userID := getUserID(c)
	sessionUID := c.Param("id")
	logger := observability.NewRequestContext(slog.Default(), userID, sessionUID)
	logger.Info("coach message received",
		slog.Int(observability.LogFieldMessageLen, len(body.Content)))

	exchange, err := s.CoachService.SendMessage(c.Request().Context(), userID, sessionUID, body.Content)
	if errors.Is(err, coach.ErrNotFound) {
		return sessionNotFound(c)
	}
	if err != nil {
		logger.Error("coach message failed", err)
		return internalError(c, err)
	}

	logger.Info("coach message completed",
		slog.Int64(observability.LogFieldDuration, logger.DurationMs()))

	return c.JSON(http.StatusCreated, &exchangePayload{
		UserMessage:      convertMessage(exchange.UserMessage),
		AssistantMessage: convertMessage(exchange.AssistantMessage),
	})
}

func (s *APIV1Service) sendCoachMessageStream(c echo.Context) error {
	if s.CoachService == nil {
		return coachDisabled(c)
	}

	body, ok := bindMessageBody(c)
	if !ok {
		return nil
	}

	userID := getUserID(c)
	sessionUID := c.Param("id")
	logger := observability.NewRequestContext(slog.Default(), userID, sessionUID)
	logger.Info("coach stream started",
		slog.Int(observability.LogFieldMessageLen, len(body.Content)))

	response := c.Response()
	started := false
	sink := func(event coachengine.StreamEvent) error {
		if !started {
			response.Header().Set(echo.HeaderContentType, "application/x-ndjson")
			response.WriteHeader(http.StatusOK)
			started = true
		}
		line, err := json.Marshal(event)
		if err != nil {
			return errors.Wrap(err, "failed to encode stream event")
		}
		if _, err := response.Write(append(line, '\n')); err != nil {
			return err
		}
		response.Flush()
		return nil
	}

	err := s.CoachService.SendMessageStream(c.Request().Context(), userID, sessionUID, body.Content, sink)
	if errors.Is(err, coach.ErrNotFound) {
		return sessionNotFound(c)
	}
	if err != nil && !started {
		logger.Error("coach stream failed", err)
		return internalError(c, err)
	}
	if err != nil {
		// The stream is already committed; log and terminate it normally.
		logger.Error("coach stream failed", err)
	}

	if !started {
		response.Header().Set(echo.HeaderContentType, "application/x-ndjson")
		response.WriteHeader(http.StatusOK)
	}
	if _, err := response.Write([]byte(streamDoneSentinel + "\n")); err != nil {
		return err
	}
	response.Flush()

	logger.Info("coach stream completed",
		slog.Int64(observability.LogFieldDuration, logger.DurationMs()))
	return nil
}

// bindMessageBody validates the send-message payload. On failure it writes
// the 400 response itself and reports ok=false.
func bindMessageBody(c echo.Context) (*sendMessageBody, bool) {
	body := &sendMessageBody{}
	if err := c.Bind(body); err != nil {
		_ = c.JSON(http.StatusBadRequest, map[string]string{"error": "Malformed request body"})
		return nil, false
	}
	if body.Content == "" || len(body.Content) > maxMessageLength {
		_ = c.JSON(http.StatusBadRequest, map[string]string{"error": "Content must be between 1 and 5000 characters"})
		return nil, false
	}
	return body, true
}

func coachDisabled(c echo.Context) error {
	return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "AI coaching is not enabled"})
}

func sessionNotFound(c echo.Context) error {
	return c.JSON(http.StatusNotFound, map[string]string{"error": "Session not found"})
}

func internalError(c echo.Context, err error) error {
	slog.Error("coach api error", slog.Any("error", err))
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
}
