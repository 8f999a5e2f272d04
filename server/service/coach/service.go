// Package coach provides the conversation service around the coaching
// engine: session lifecycle, message persistence, and the bridge between
// HTTP requests and the orchestration loop.
package coach

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	"github.com/exort/exort/plugin/ai"
	coachengine "github.com/exort/exort/plugin/ai/coach"
	"github.com/exort/exort/store"
)

// apologyMessage is persisted as the assistant reply when the orchestration
// loop fails outright. The user's message is already persisted by then.
const apologyMessage = "Sorry, I ran into a problem generating a response. Please try again."

const (
	titlePrompt    = "Generate a short title (max 6 words) for a chess coaching conversation that starts with this message. Return ONLY the title, no quotes, no punctuation at the end."
	titleFallback  = "New conversation"
	titleMaxTokens = 30
	titleTimeout   = 30 * time.Second
)

type service struct {
	store      Store
	gateway    ai.Gateway
	engine     *coachengine.Engine
	titleModel string
}

// NewService creates the conversation service. titleModel may be empty to use
// the gateway's default chat model for title generation.
func NewService(st Store, gateway ai.Gateway, titleModel string) Service {
	return &service{
		store:      st,
		gateway:    gateway,
		engine:     coachengine.NewEngine(gateway, st),
		titleModel: titleModel,
	}
}

func (s *service) CreateSession(ctx context.Context, userID int32, create *CreateSessionRequest) (*store.ChatSession, error) {
	session, err := s.store.CreateChatSession(ctx, &store.ChatSession{
		UID:       shortuuid.New(),
		CreatorID: userID,
		GameUID:   create.GameUID,
		Title:     create.Title,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create session")
	}
	return session, nil
}

func (s *service) ListSessions(ctx context.Context, userID int32) ([]*SessionPreview, error) {
	sessions, err := s.store.ListChatSessions(ctx, &store.FindChatSession{CreatorID: &userID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list sessions")
	}

	previews := make([]*SessionPreview, 0, len(sessions))
	for _, session := range sessions {
		messages, err := s.store.ListChatMessages(ctx, &store.FindChatMessage{SessionID: &session.ID, Limit: 1})
		if err != nil {
			return nil, errors.Wrap(err, "failed to load session preview")
		}
		preview := &SessionPreview{Session: session}
		if len(messages) > 0 {
			preview.LastMessage = messages[0]
		}
		previews = append(previews, preview)
	}
	return previews, nil
}

func (s *service) DeleteSession(ctx context.Context, userID int32, sessionUID string) error {
	session, err := s.getOwnedSession(ctx, userID, sessionUID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteChatSession(ctx, &store.DeleteChatSession{ID: session.ID}); err != nil {
		return errors.Wrap(err, "failed to delete session")
	}
	return nil
}

func (s *service) GetMessages(ctx context.Context, userID int32, sessionUID string) ([]*store.ChatMessage, error) {
	session, err := s.getOwnedSession(ctx, userID, sessionUID)
	if err != nil {
		return nil, err
	}
	messages, err := s.store.ListChatMessages(ctx, &store.FindChatMessage{SessionID: &session.ID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list messages")
	}
	return messages, nil
}

func (s *service) SendMessage(ctx context.Context, userID int32, sessionUID string, content string) (*Exchange, error) {
	session, history, userMessage, octx, err := s.beginExchange(ctx, userID, sessionUID, content)
	if err != nil {
		return nil, err
	}

	result, err := s.engine.Run(ctx, userID, content, history, octx)
	if err != nil {
		slog.Error("coach loop failed",
			slog.String("session", session.UID),
			slog.Any("error", err))
		result = &coachengine.Result{Text: apologyMessage}
	}

	assistantMessage, err := s.persistAssistantMessage(ctx, session.ID, result)
	if err != nil {
		return nil, err
	}

	s.maybeGenerateTitle(session, history, content)

	return &Exchange{UserMessage: userMessage, AssistantMessage: assistantMessage}, nil
}

func (s *service) SendMessageStream(ctx context.Context, userID int32, sessionUID string, content string, sink coachengine.EventSink) error {
	session, history, _, octx, err := s.beginExchange(ctx, userID, sessionUID, content)
	if err != nil {
		return err
	}

	result, runErr := s.engine.RunStream(ctx, userID, content, history, octx, sink)
	if runErr != nil {
		slog.Error("coach stream failed",
			slog.String("session", session.UID),
			slog.Any("error", runErr))
		if result == nil {
			result = &coachengine.Result{}
		}
		if result.Text == "" {
			result.Text = apologyMessage
		}
		// Best effort: the sink may already be gone.
		_ = sink(coachengine.StreamEvent{Type: coachengine.EventTypeError, Message: apologyMessage})
	}

	if _, err := s.persistAssistantMessage(ctx, session.ID, result); err != nil {
		return err
	}

	s.maybeGenerateTitle(session, history, content)

	return nil
}

// beginExchange validates ownership, loads prior history, persists the user
// message, and assembles the orchestration context. The returned history
// excludes the just-created user message.
func (s *service) beginExchange(ctx context.Context, userID int32, sessionUID string, content string) (*store.ChatSession, []*store.ChatMessage, *store.ChatMessage, coachengine.Context, error) {
	octx := coachengine.Context{}

	session, err := s.getOwnedSession(ctx, userID, sessionUID)
	if err != nil {
		return nil, nil, nil, octx, err
	}

	history, err := s.store.ListChatMessages(ctx, &store.FindChatMessage{SessionID: &session.ID})
	if err != nil {
		return nil, nil, nil, octx, errors.Wrap(err, "failed to load history")
	}

	userMessage, err := s.store.CreateChatMessage(ctx, &store.ChatMessage{
		UID:       shortuuid.New(),
		SessionID: session.ID,
		Role:      store.ChatMessageRoleUser,
		Content:   content,
	})
	if err != nil {
		return nil, nil, nil, octx, errors.Wrap(err, "failed to persist user message")
	}

	octx.GameUID = session.GameUID
	user, err := s.store.GetUser(ctx, &store.FindUser{ID: &userID})
	if err != nil {
		return nil, nil, nil, octx, errors.Wrap(err, "failed to load user")
	}
	if user != nil {
		octx.LichessUsername = user.LichessUsername
	}

	return session, history, userMessage, octx, nil
}

func (s *service) persistAssistantMessage(ctx context.Context, sessionID int32, result *coachengine.Result) (*store.ChatMessage, error) {
	toolCalls := ""
	if len(result.ToolCalls) > 0 {
		encoded, err := json.Marshal(result.ToolCalls)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode tool calls")
		}
		toolCalls = string(encoded)
	}

	message, err := s.store.CreateChatMessage(ctx, &store.ChatMessage{
		UID:       shortuuid.New(),
		SessionID: sessionID,
		Role:      store.ChatMessageRoleAssistant,
		Content:   result.Text,
		ToolCalls: toolCalls,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to persist assistant message")
	}
	return message, nil
}

func (s *service) getOwnedSession(ctx context.Context, userID int32, sessionUID string) (*store.ChatSession, error) {
	session, err := s.store.GetChatSession(ctx, &store.FindChatSession{UID: &sessionUID, CreatorID: &userID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get session")
	}
	if session == nil {
		return nil, ErrNotFound
	}
	return session, nil
}

// maybeGenerateTitle kicks off lazy title generation on a session's first
// exchange. The task is detached: its outcome is never awaited and failures
// are swallowed. A coaching reply must not hinge on a nice-to-have title.
func (s *service) maybeGenerateTitle(session *store.ChatSession, history []*store.ChatMessage, firstMessage string) {
	if session.Title != "" || len(history) > 0 {
		return
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("title generation panicked", slog.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), titleTimeout)
		defer cancel()

		title := titleFallback
		result, err := s.gateway.Generate(ctx, &ai.GenerateRequest{
			SystemInstruction: titlePrompt,
			Turns:             []ai.Turn{{Role: ai.RoleUser, Text: firstMessage}},
			Model:             s.titleModel,
			MaxTokens:         titleMaxTokens,
		})
		if err != nil {
			slog.Warn("title generation failed",
				slog.String("session", session.UID),
				slog.Any("error", err))
		} else if trimmed := strings.TrimSpace(result.Text); trimmed != "" {
			title = trimmed
		}

		if _, err := s.store.UpdateChatSession(ctx, &store.UpdateChatSession{ID: session.ID, Title: &title}); err != nil {
			slog.Warn("failed to save generated title",
				slog.String("session", session.UID),
				slog.Any("error", err))
		}
	}()
}
