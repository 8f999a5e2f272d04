package coach

import (
	"context"
	"fmt"
	"reflect"
)

type handlerFunc func(ctx context.Context, userID int32, args map[string]any) (any, error)

// Dispatcher routes tool-call requests to their handlers and normalizes the
// results for the model wire format.
type Dispatcher struct {
	handlers map[string]handlerFunc
}

func NewDispatcher(store GameStore) *Dispatcher {
	handlers := NewHandlers(store)
	return &Dispatcher{
		handlers: map[string]handlerFunc{
			"get_performance_summary": handlers.PerformanceSummary,
			"get_recent_games":        handlers.RecentGames,
			"get_game_analysis":       handlers.GameAnalysis,
			"get_opening_stats":       handlers.OpeningStats,
			"get_weakness_report":     handlers.WeaknessReport,
			"get_rating_history":      handlers.RatingHistory,
		},
	}
}

// Dispatch executes one tool call. An unknown tool name is not an error: it
// returns a structured error value that flows back to the model as the tool
// result, so the model can recover conversationally. When the context carries
// a linked game and the model omitted gameId on get_game_analysis, the linked
// id is merged into args before dispatch (args is mutated so the caller's
// tool-call log records the effective arguments).
func (d *Dispatcher) Dispatch(ctx context.Context, userID int32, octx Context, name string, args map[string]any) (any, error) {
	handler, ok := d.handlers[name]
	if !ok {
		return toolError{Error: fmt.Sprintf("Unknown tool: %s", name)}, nil
	}

	if name == "get_game_analysis" && octx.GameUID != nil {
		if _, ok := stringArg(args, "gameId"); !ok {
			args["gameId"] = *octx.GameUID
		}
	}

	result, err := handler(ctx, userID, args)
	if err != nil {
		return nil, err
	}

	// The wire format requires a keyed record, so list results are wrapped.
	if reflect.ValueOf(result).Kind() == reflect.Slice {
		return map[string]any{"data": result}, nil
	}
	return result, nil
}
