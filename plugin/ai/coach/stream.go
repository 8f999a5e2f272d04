package coach

import (
	"context"
	"log/slog"
	"strings"

	"github.com/exort/exort/plugin/ai"
	"github.com/exort/exort/store"
)

const fallbackRoundLimitStream = "I gathered a lot of data but hit my analysis limit. Please ask a follow-up for more details."

// StreamEvent is one progress event of a streaming run. Type selects which
// of the remaining fields are set.
type StreamEvent struct {
	Type    string `json:"type"`
	Name    string `json:"name,omitempty"`
	Label   string `json:"label,omitempty"`
	Content string `json:"content,omitempty"`
	Message string `json:"message,omitempty"`
}

const (
	EventTypeToolCall   = "tool_call"
	EventTypeToolResult = "tool_result"
	EventTypeText       = "text"
	EventTypeError      = "error"
)

// toolLabels maps tool names to the human-readable progress labels shown
// while a tool runs.
var toolLabels = map[string]string{
	"get_performance_summary": "Checking performance stats",
	"get_recent_games":        "Looking at recent games",
	"get_game_analysis":       "Analyzing game details",
	"get_opening_stats":       "Reviewing openings",
	"get_weakness_report":     "Identifying areas to improve",
	"get_rating_history":      "Checking rating trend",
}

func toolLabel(name string) string {
	if label, ok := toolLabels[name]; ok {
		return label
	}
	return name
}

// EventSink receives stream events as they are produced. A non-nil return
// aborts further emission (typically a disconnected consumer).
type EventSink func(StreamEvent) error

// RunStream executes the streaming loop. Text chunks are forwarded to the
// sink as they arrive; once any round produces text, that round is the last
// one. The returned Result mirrors what the blocking variant would have
// produced, so the caller persists the same shape either way. On a sink
// failure the accumulated Result is still returned alongside the error.
func (e *Engine) RunStream(ctx context.Context, userID int32, userMessage string, history []*store.ChatMessage, octx Context, sink EventSink) (*Result, error) {
	toolCalls := []ToolCallLog{}
	turns := append(buildHistory(history), ai.Turn{Role: ai.RoleUser, Text: userMessage})
	var text strings.Builder

	for round := 0; round < maxRounds; round++ {
		chunks, errs := e.gateway.GenerateStream(ctx, &ai.GenerateRequest{
			SystemInstruction: BuildSystemPrompt(octx),
			Turns:             turns,
			Tools:             Tools(),
		})

		// Collect the whole round before deciding: text terminates the loop,
		// tool calls start another round.
		var calls []ai.ToolCallRequest
		var sinkErr error
		for chunk := range chunks {
			if chunk.Text != "" {
				text.WriteString(chunk.Text)
				if sinkErr == nil {
					sinkErr = sink(StreamEvent{Type: EventTypeText, Content: chunk.Text})
				}
			}
			if len(chunk.ToolCalls) > 0 {
				calls = append(calls, chunk.ToolCalls...)
			}
		}
		if err := <-errs; err != nil {
			return &Result{Text: text.String(), ToolCalls: toolCalls}, err
		}
		if sinkErr != nil {
			return &Result{Text: text.String(), ToolCalls: toolCalls}, sinkErr
		}

		if text.Len() > 0 {
			return &Result{Text: text.String(), ToolCalls: toolCalls}, nil
		}

		if len(calls) > 0 {
			normalizeArguments(calls)
			turns = append(turns, ai.Turn{Role: ai.RoleModel, ToolCalls: calls})

			responses := make([]ai.ToolResponse, 0, len(calls))
			for _, call := range calls {
				slog.Debug("dispatching coach tool",
					slog.Int("round", round),
					slog.String("tool", call.Name))
				if err := sink(StreamEvent{Type: EventTypeToolCall, Name: call.Name, Label: toolLabel(call.Name)}); err != nil {
					return &Result{Text: text.String(), ToolCalls: toolCalls}, err
				}

				content, err := e.dispatchToWire(ctx, userID, octx, call)
				if err != nil {
					return &Result{Text: text.String(), ToolCalls: toolCalls}, err
				}
				toolCalls = append(toolCalls, ToolCallLog{Name: call.Name, Arguments: call.Arguments})
				responses = append(responses, ai.ToolResponse{ID: call.ID, Name: call.Name, Content: content})

				if err := sink(StreamEvent{Type: EventTypeToolResult, Name: call.Name}); err != nil {
					return &Result{Text: text.String(), ToolCalls: toolCalls}, err
				}
			}
			turns = append(turns, ai.Turn{Role: ai.RoleUser, ToolResponses: responses})
		}
	}

	result := &Result{Text: fallbackRoundLimitStream, ToolCalls: toolCalls}
	if err := sink(StreamEvent{Type: EventTypeText, Content: result.Text}); err != nil {
		return result, err
	}
	return result, nil
}
