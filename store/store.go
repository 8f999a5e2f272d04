// Package store provides database access to all raw objects.
package store

import (
	"context"
	"database/sql"

	"github.com/exort/exort/internal/profile"
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		profile: profile,
		driver:  driver,
	}
}

func (s *Store) GetDB() *sql.DB {
	return s.driver.GetDB()
}

func (s *Store) Close() error {
	return s.driver.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) CreateUser(ctx context.Context, create *User) (*User, error) {
	return s.driver.CreateUser(ctx, create)
}

func (s *Store) GetUser(ctx context.Context, find *FindUser) (*User, error) {
	return s.driver.GetUser(ctx, find)
}

func (s *Store) CreateGame(ctx context.Context, create *Game) (*Game, error) {
	return s.driver.CreateGame(ctx, create)
}

func (s *Store) ListGames(ctx context.Context, find *FindGame) ([]*Game, error) {
	return s.driver.ListGames(ctx, find)
}

func (s *Store) GetGame(ctx context.Context, find *FindGame) (*Game, error) {
	return s.driver.GetGame(ctx, find)
}

func (s *Store) UpsertGameMetrics(ctx context.Context, upsert *GameMetrics) (*GameMetrics, error) {
	return s.driver.UpsertGameMetrics(ctx, upsert)
}

func (s *Store) CreateMoveEvaluation(ctx context.Context, create *MoveEvaluation) (*MoveEvaluation, error) {
	return s.driver.CreateMoveEvaluation(ctx, create)
}

func (s *Store) ListMoveEvaluations(ctx context.Context, find *FindMoveEvaluation) ([]*MoveEvaluation, error) {
	return s.driver.ListMoveEvaluations(ctx, find)
}

func (s *Store) CreateChatSession(ctx context.Context, create *ChatSession) (*ChatSession, error) {
	return s.driver.CreateChatSession(ctx, create)
}

func (s *Store) ListChatSessions(ctx context.Context, find *FindChatSession) ([]*ChatSession, error) {
	return s.driver.ListChatSessions(ctx, find)
}

func (s *Store) GetChatSession(ctx context.Context, find *FindChatSession) (*ChatSession, error) {
	return s.driver.GetChatSession(ctx, find)
}

func (s *Store) UpdateChatSession(ctx context.Context, update *UpdateChatSession) (*ChatSession, error) {
	return s.driver.UpdateChatSession(ctx, update)
}

func (s *Store) DeleteChatSession(ctx context.Context, delete *DeleteChatSession) error {
	return s.driver.DeleteChatSession(ctx, delete)
}

func (s *Store) CreateChatMessage(ctx context.Context, create *ChatMessage) (*ChatMessage, error) {
	return s.driver.CreateChatMessage(ctx, create)
}

func (s *Store) ListChatMessages(ctx context.Context, find *FindChatMessage) ([]*ChatMessage, error) {
	return s.driver.ListChatMessages(ctx, find)
}

func (s *Store) DeleteChatMessage(ctx context.Context, delete *DeleteChatMessage) error {
	return s.driver.DeleteChatMessage(ctx, delete)
}
