package coach

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/exort/exort/plugin/ai"
	"github.com/exort/exort/store"
)

// scriptedGateway replays a fixed sequence of model responses and records
// every request it receives.
type scriptedGateway struct {
	results  []*ai.GenerateResult
	rounds   [][]*ai.Chunk
	err      error
	requests []*ai.GenerateRequest
}

func (g *scriptedGateway) Generate(_ context.Context, request *ai.GenerateRequest) (*ai.GenerateResult, error) {
	g.requests = append(g.requests, request)
	if g.err != nil {
		return nil, g.err
	}
	if len(g.results) == 0 {
		panic("scriptedGateway: no scripted result left")
	}
	result := g.results[0]
	g.results = g.results[1:]
	return result, nil
}

func (g *scriptedGateway) GenerateStream(_ context.Context, request *ai.GenerateRequest) (<-chan *ai.Chunk, <-chan error) {
	g.requests = append(g.requests, request)
	chunks := make(chan *ai.Chunk)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		if g.err != nil {
			errs <- g.err
			return
		}
		if len(g.rounds) == 0 {
			panic("scriptedGateway: no scripted round left")
		}
		round := g.rounds[0]
		g.rounds = g.rounds[1:]
		for _, chunk := range round {
			chunks <- chunk
		}
		errs <- nil
	}()
	return chunks, errs
}

func toolRound(calls ...ai.ToolCallRequest) *ai.GenerateResult {
	return &ai.GenerateResult{ToolCalls: calls}
}

func textRound(text string) *ai.GenerateResult {
	return &ai.GenerateResult{Text: text}
}

func TestRunDirectAnswer(t *testing.T) {
	gateway := &scriptedGateway{results: []*ai.GenerateResult{textRound("Play more endgames.")}}
	engine := NewEngine(gateway, &fakeGameStore{})

	result, err := engine.Run(context.Background(), 1, "How do I improve?", nil, Context{})
	require.NoError(t, err)
	require.Equal(t, "Play more endgames.", result.Text)
	require.Empty(t, result.ToolCalls)

	require.Len(t, gateway.requests, 1)
	request := gateway.requests[0]
	require.Equal(t, BuildSystemPrompt(Context{}), request.SystemInstruction)
	require.Len(t, request.Tools, 6)
	require.Len(t, request.Turns, 1)
	require.Equal(t, ai.RoleUser, request.Turns[0].Role)
	require.Equal(t, "How do I improve?", request.Turns[0].Text)
}

func TestRunEmptyTextFallback(t *testing.T) {
	gateway := &scriptedGateway{results: []*ai.GenerateResult{textRound("")}}
	engine := NewEngine(gateway, &fakeGameStore{})

	result, err := engine.Run(context.Background(), 1, "hi", nil, Context{})
	require.NoError(t, err)
	require.Equal(t, "I wasn't able to generate a response. Please try again.", result.Text)
}

func TestRunToolRoundTrip(t *testing.T) {
	games := buildGames(t, []gameSpec{
		{uid: "g1", color: store.GameColorWhite, result: store.GameResultWin, daysAgo: 1, opening: "Italian Game"},
	})
	gateway := &scriptedGateway{results: []*ai.GenerateResult{
		toolRound(ai.ToolCallRequest{ID: "call_1", Name: "get_opening_stats", Arguments: nil}),
		textRound("Your Italian Game is solid."),
	}}
	engine := NewEngine(gateway, &fakeGameStore{games: games})

	result, err := engine.Run(context.Background(), 1, "How are my openings?", nil, Context{})
	require.NoError(t, err)
	require.Equal(t, "Your Italian Game is solid.", result.Text)
	require.Equal(t, []ToolCallLog{{Name: "get_opening_stats", Arguments: map[string]any{}}}, result.ToolCalls)

	// The second invocation replays the tool exchange.
	require.Len(t, gateway.requests, 2)
	turns := gateway.requests[1].Turns
	require.Len(t, turns, 3)
	require.Equal(t, ai.RoleModel, turns[1].Role)
	require.Len(t, turns[1].ToolCalls, 1)
	require.Equal(t, ai.RoleUser, turns[2].Role)
	require.Len(t, turns[2].ToolResponses, 1)
	response := turns[2].ToolResponses[0]
	require.Equal(t, "call_1", response.ID)
	require.Equal(t, "get_opening_stats", response.Name)
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(response.Content), &payload))
	require.Contains(t, payload, "data")
}

func TestRunCarriesHistory(t *testing.T) {
	gateway := &scriptedGateway{results: []*ai.GenerateResult{textRound("ok")}}
	engine := NewEngine(gateway, &fakeGameStore{})
	history := []*store.ChatMessage{
		{Role: store.ChatMessageRoleUser, Content: "first question"},
		{Role: store.ChatMessageRoleAssistant, Content: "first answer"},
	}

	_, err := engine.Run(context.Background(), 1, "follow-up", history, Context{})
	require.NoError(t, err)

	turns := gateway.requests[0].Turns
	require.Len(t, turns, 3)
	require.Equal(t, ai.RoleUser, turns[0].Role)
	require.Equal(t, "first question", turns[0].Text)
	require.Equal(t, ai.RoleModel, turns[1].Role)
	require.Equal(t, "first answer", turns[1].Text)
	require.Equal(t, "follow-up", turns[2].Text)
}

func TestRunRoundBudget(t *testing.T) {
	results := make([]*ai.GenerateResult, 0, maxRounds)
	for i := 0; i < maxRounds; i++ {
		results = append(results, toolRound(ai.ToolCallRequest{ID: "c", Name: "get_recent_games", Arguments: map[string]any{}}))
	}
	gateway := &scriptedGateway{results: results}
	engine := NewEngine(gateway, &fakeGameStore{})

	result, err := engine.Run(context.Background(), 1, "dig deep", nil, Context{})
	require.NoError(t, err)
	require.Equal(t, fallbackRoundLimit, result.Text)
	require.Len(t, result.ToolCalls, maxRounds)
	require.Len(t, gateway.requests, maxRounds)
}

func TestRunGatewayError(t *testing.T) {
	gateway := &scriptedGateway{err: errors.New("model unavailable")}
	engine := NewEngine(gateway, &fakeGameStore{})

	_, err := engine.Run(context.Background(), 1, "hi", nil, Context{})
	require.Error(t, err)
}
