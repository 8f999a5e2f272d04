package coach

import (
	"context"
	"errors"

	coachengine "github.com/exort/exort/plugin/ai/coach"
	"github.com/exort/exort/store"
)

// ErrNotFound is returned when a session does not exist or does not belong
// to the caller. The two cases are deliberately indistinguishable.
var ErrNotFound = errors.New("session not found")

// Service is the conversation surface consumed by the HTTP layer.
type Service interface {
	// CreateSession starts a coaching conversation, optionally linked to a game.
	CreateSession(ctx context.Context, userID int32, create *CreateSessionRequest) (*store.ChatSession, error)

	// ListSessions returns the user's sessions newest-first, each with its
	// most recent message as a preview.
	ListSessions(ctx context.Context, userID int32) ([]*SessionPreview, error)

	// DeleteSession removes a session and its messages.
	DeleteSession(ctx context.Context, userID int32, sessionUID string) error

	// GetMessages returns a session's messages in conversation order.
	GetMessages(ctx context.Context, userID int32, sessionUID string) ([]*store.ChatMessage, error)

	// SendMessage persists the user message, runs the blocking orchestration
	// loop, and persists the assistant reply. The conversation is never left
	// without a reply: loop failures produce a fixed apology instead.
	SendMessage(ctx context.Context, userID int32, sessionUID string, content string) (*Exchange, error)

	// SendMessageStream behaves like SendMessage but forwards progress events
	// to sink as they happen. Exactly one assistant message is persisted
	// regardless of how the stream ends.
	SendMessageStream(ctx context.Context, userID int32, sessionUID string, content string, sink coachengine.EventSink) error
}

// CreateSessionRequest carries the optional create-time attributes.
type CreateSessionRequest struct {
	Title   string
	GameUID *string
}

// SessionPreview pairs a session with its latest message, used for listings.
type SessionPreview struct {
	Session     *store.ChatSession
	LastMessage *store.ChatMessage
}

// Exchange is the outcome of one send: the persisted user message and the
// persisted assistant reply.
type Exchange struct {
	UserMessage      *store.ChatMessage
	AssistantMessage *store.ChatMessage
}

// Store is the slice of store operations the coach service needs.
type Store interface {
	coachengine.GameStore

	GetUser(ctx context.Context, find *store.FindUser) (*store.User, error)

	CreateChatSession(ctx context.Context, create *store.ChatSession) (*store.ChatSession, error)
	ListChatSessions(ctx context.Context, find *store.FindChatSession) ([]*store.ChatSession, error)
	GetChatSession(ctx context.Context, find *store.FindChatSession) (*store.ChatSession, error)
	UpdateChatSession(ctx context.Context, update *store.UpdateChatSession) (*store.ChatSession, error)
	DeleteChatSession(ctx context.Context, delete *store.DeleteChatSession) error

	CreateChatMessage(ctx context.Context, create *store.ChatMessage) (*store.ChatMessage, error)
	ListChatMessages(ctx context.Context, find *store.FindChatMessage) ([]*store.ChatMessage, error)
}
