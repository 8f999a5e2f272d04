package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	Migrate(ctx context.Context) error

	// User model related methods.
	CreateUser(ctx context.Context, create *User) (*User, error)
	GetUser(ctx context.Context, find *FindUser) (*User, error)

	// Game model related methods. Games and their analysis are written by the
	// import/analysis pipeline; the coaching engine reads them.
	CreateGame(ctx context.Context, create *Game) (*Game, error)
	ListGames(ctx context.Context, find *FindGame) ([]*Game, error)
	GetGame(ctx context.Context, find *FindGame) (*Game, error)
	UpsertGameMetrics(ctx context.Context, upsert *GameMetrics) (*GameMetrics, error)
	CreateMoveEvaluation(ctx context.Context, create *MoveEvaluation) (*MoveEvaluation, error)
	ListMoveEvaluations(ctx context.Context, find *FindMoveEvaluation) ([]*MoveEvaluation, error)

	// ChatSession model related methods.
	CreateChatSession(ctx context.Context, create *ChatSession) (*ChatSession, error)
	ListChatSessions(ctx context.Context, find *FindChatSession) ([]*ChatSession, error)
	GetChatSession(ctx context.Context, find *FindChatSession) (*ChatSession, error)
	UpdateChatSession(ctx context.Context, update *UpdateChatSession) (*ChatSession, error)
	DeleteChatSession(ctx context.Context, delete *DeleteChatSession) error

	// ChatMessage model related methods.
	CreateChatMessage(ctx context.Context, create *ChatMessage) (*ChatMessage, error)
	ListChatMessages(ctx context.Context, find *FindChatMessage) ([]*ChatMessage, error)
	DeleteChatMessage(ctx context.Context, delete *DeleteChatMessage) error
}
