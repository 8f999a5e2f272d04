package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/exort/exort/internal/profile"
	"github.com/exort/exort/store"
	"github.com/exort/exort/store/db"
)

func ptr[T any](v T) *T { return &v }

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	p := &profile.Profile{
		Mode:   "dev",
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "exort_test.db"),
	}
	driver, err := db.NewDBDriver(p)
	require.NoError(t, err)

	st := store.New(driver, p)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestUserStore(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	user, err := st.CreateUser(ctx, &store.User{
		Username:        "alice",
		Nickname:        "Alice",
		LichessUsername: ptr("alice_li"),
	})
	require.NoError(t, err)
	require.NotZero(t, user.ID)
	require.NotZero(t, user.CreatedTs)

	found, err := st.GetUser(ctx, &store.FindUser{ID: &user.ID})
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, "alice", found.Username)
	require.NotNil(t, found.LichessUsername)
	require.Equal(t, "alice_li", *found.LichessUsername)

	missing, err := st.GetUser(ctx, &store.FindUser{ID: ptr(int32(999))})
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestGameStore(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	user, err := st.CreateUser(ctx, &store.User{Username: "alice"})
	require.NoError(t, err)

	g1, err := st.CreateGame(ctx, &store.Game{
		UID: "g1", CreatorID: user.ID, Opponent: "bob",
		Color: store.GameColorWhite, Result: store.GameResultWin,
		TimeControl: "blitz", OpeningName: ptr("Italian Game"), OpeningEco: ptr("C50"),
		PlayerRating: ptr(int32(1500)), OpponentRating: ptr(int32(1480)),
		PlayedTs: 1000,
	})
	require.NoError(t, err)

	_, err = st.CreateGame(ctx, &store.Game{
		UID: "g2", CreatorID: user.ID, Opponent: "carol",
		Color: store.GameColorBlack, Result: store.GameResultLoss,
		TimeControl: "rapid", PlayedTs: 2000,
	})
	require.NoError(t, err)

	_, err = st.UpsertGameMetrics(ctx, &store.GameMetrics{
		GameID: g1.ID, Accuracy: 85.5, CentipawnLoss: 32.1,
		BlunderCount: 1, MistakeCount: 2, InaccuracyCount: 3,
		PhaseErrors: &store.PhaseErrors{Opening: 0.5, Middlegame: 1.5, Endgame: 2.5},
	})
	require.NoError(t, err)

	games, err := st.ListGames(ctx, &store.FindGame{CreatorID: &user.ID})
	require.NoError(t, err)
	require.Len(t, games, 2)
	// Newest first.
	require.Equal(t, "g2", games[0].UID)
	require.Nil(t, games[0].Metrics)
	require.Equal(t, "g1", games[1].UID)
	require.NotNil(t, games[1].Metrics)
	require.Equal(t, 85.5, games[1].Metrics.Accuracy)
	require.NotNil(t, games[1].Metrics.PhaseErrors)
	require.Equal(t, 1.5, games[1].Metrics.PhaseErrors.Middlegame)

	// The upsert replaces existing metrics.
	_, err = st.UpsertGameMetrics(ctx, &store.GameMetrics{GameID: g1.ID, Accuracy: 90})
	require.NoError(t, err)
	game, err := st.GetGame(ctx, &store.FindGame{UID: ptr("g1")})
	require.NoError(t, err)
	require.Equal(t, 90.0, game.Metrics.Accuracy)
	require.Nil(t, game.Metrics.PhaseErrors)

	rated, err := st.ListGames(ctx, &store.FindGame{CreatorID: &user.ID, RatedOnly: true})
	require.NoError(t, err)
	require.Len(t, rated, 1)
	require.Equal(t, "g1", rated[0].UID)

	after := int64(1500)
	recent, err := st.ListGames(ctx, &store.FindGame{CreatorID: &user.ID, PlayedAfter: &after})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, "g2", recent[0].UID)

	limited, err := st.ListGames(ctx, &store.FindGame{CreatorID: &user.ID, Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	require.Equal(t, "g2", limited[0].UID)

	none, err := st.GetGame(ctx, &store.FindGame{UID: ptr("missing")})
	require.NoError(t, err)
	require.Nil(t, none)
}

func TestMoveEvaluationStore(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	user, err := st.CreateUser(ctx, &store.User{Username: "alice"})
	require.NoError(t, err)
	game, err := st.CreateGame(ctx, &store.Game{
		UID: "g1", CreatorID: user.ID, Opponent: "bob",
		Color: store.GameColorWhite, Result: store.GameResultLoss,
		TimeControl: "blitz", PlayedTs: 1000,
	})
	require.NoError(t, err)

	for _, evaluation := range []*store.MoveEvaluation{
		{GameID: game.ID, MoveNumber: 24, Color: store.GameColorWhite, Classification: store.MoveClassificationBlunder, PlayedMoveUCI: "d1h5", BestMoveUCI: "g1f3", EvalCp: -350},
		{GameID: game.ID, MoveNumber: 8, Color: store.GameColorWhite, Classification: store.MoveClassificationGood, PlayedMoveUCI: "e2e4", BestMoveUCI: "e2e4", EvalCp: 20},
		{GameID: game.ID, MoveNumber: 15, Color: store.GameColorWhite, Classification: store.MoveClassificationMistake, PlayedMoveUCI: "b1c3", BestMoveUCI: "f1c4", EvalCp: -90},
	} {
		_, err := st.CreateMoveEvaluation(ctx, evaluation)
		require.NoError(t, err)
	}

	key, err := st.ListMoveEvaluations(ctx, &store.FindMoveEvaluation{
		GameID:          &game.ID,
		Classifications: store.KeyMoveClassifications,
	})
	require.NoError(t, err)
	require.Len(t, key, 2)
	// Ordered by move number.
	require.Equal(t, int32(15), key[0].MoveNumber)
	require.Equal(t, int32(24), key[1].MoveNumber)

	all, err := st.ListMoveEvaluations(ctx, &store.FindMoveEvaluation{GameID: &game.ID})
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestChatStore(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	user, err := st.CreateUser(ctx, &store.User{Username: "alice"})
	require.NoError(t, err)

	session, err := st.CreateChatSession(ctx, &store.ChatSession{
		UID: "s1", CreatorID: user.ID, GameUID: ptr("g1"), Title: "",
	})
	require.NoError(t, err)
	require.NotZero(t, session.ID)
	require.NotZero(t, session.CreatedTs)

	found, err := st.GetChatSession(ctx, &store.FindChatSession{UID: ptr("s1"), CreatorID: &user.ID})
	require.NoError(t, err)
	require.NotNil(t, found)
	require.NotNil(t, found.GameUID)
	require.Equal(t, "g1", *found.GameUID)

	otherUser := int32(999)
	foreign, err := st.GetChatSession(ctx, &store.FindChatSession{UID: ptr("s1"), CreatorID: &otherUser})
	require.NoError(t, err)
	require.Nil(t, foreign)

	updated, err := st.UpdateChatSession(ctx, &store.UpdateChatSession{ID: session.ID, Title: ptr("Opening Review")})
	require.NoError(t, err)
	require.Equal(t, "Opening Review", updated.Title)

	for i, content := range []string{"q1", "a1", "q2"} {
		role := store.ChatMessageRoleUser
		if i == 1 {
			role = store.ChatMessageRoleAssistant
		}
		_, err := st.CreateChatMessage(ctx, &store.ChatMessage{
			UID: content, SessionID: session.ID, Role: role, Content: content,
		})
		require.NoError(t, err)
	}

	messages, err := st.ListChatMessages(ctx, &store.FindChatMessage{SessionID: &session.ID})
	require.NoError(t, err)
	require.Len(t, messages, 3)
	// Chronological without a limit.
	require.Equal(t, "q1", messages[0].Content)
	require.Equal(t, "q2", messages[2].Content)

	// A positive limit returns the newest rows, newest first.
	newest, err := st.ListChatMessages(ctx, &store.FindChatMessage{SessionID: &session.ID, Limit: 1})
	require.NoError(t, err)
	require.Len(t, newest, 1)
	require.Equal(t, "q2", newest[0].Content)

	require.NoError(t, st.DeleteChatSession(ctx, &store.DeleteChatSession{ID: session.ID}))
	require.Error(t, st.DeleteChatSession(ctx, &store.DeleteChatSession{ID: session.ID}))

	// The cascade removed the messages too.
	messages, err = st.ListChatMessages(ctx, &store.FindChatMessage{SessionID: &session.ID})
	require.NoError(t, err)
	require.Empty(t, messages)
}
