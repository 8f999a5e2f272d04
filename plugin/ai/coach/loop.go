package coach

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/exort/exort/plugin/ai"
	"github.com/exort/exort/store"
)

// maxRounds bounds the model round-trips per message. Hitting it is a
// scripted terminal state, not an error.
const maxRounds = 5

const (
	fallbackNoResponse = "I wasn't able to generate a response. Please try again."
	fallbackRoundLimit = "I gathered a lot of data but hit my analysis limit. Here's what I can tell you based on what I found — please ask a follow-up for more details."
)

// ToolCallLog records one dispatched tool call with its effective arguments.
type ToolCallLog struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Result is the terminal state of one orchestration run.
type Result struct {
	Text      string
	ToolCalls []ToolCallLog
}

// Engine runs the coaching orchestration loop against a model gateway.
type Engine struct {
	gateway    ai.Gateway
	dispatcher *Dispatcher
}

func NewEngine(gateway ai.Gateway, store GameStore) *Engine {
	return &Engine{
		gateway:    gateway,
		dispatcher: NewDispatcher(store),
	}
}

// buildHistory converts stored messages to model turns. Only the text
// survives; tool exchanges are not replayed across messages.
func buildHistory(messages []*store.ChatMessage) []ai.Turn {
	turns := make([]ai.Turn, 0, len(messages))
	for _, message := range messages {
		role := ai.RoleUser
		if message.Role == store.ChatMessageRoleAssistant {
			role = ai.RoleModel
		}
		turns = append(turns, ai.Turn{Role: role, Text: message.Content})
	}
	return turns
}

// Run executes the blocking loop: invoke the model, dispatch any tool calls
// it requests, feed the results back, and repeat until the model answers in
// text or the round budget runs out.
func (e *Engine) Run(ctx context.Context, userID int32, userMessage string, history []*store.ChatMessage, octx Context) (*Result, error) {
	toolCalls := []ToolCallLog{}
	turns := append(buildHistory(history), ai.Turn{Role: ai.RoleUser, Text: userMessage})

	for round := 0; round < maxRounds; round++ {
		result, err := e.gateway.Generate(ctx, &ai.GenerateRequest{
			SystemInstruction: BuildSystemPrompt(octx),
			Turns:             turns,
			Tools:             Tools(),
		})
		if err != nil {
			return nil, err
		}

		if len(result.ToolCalls) > 0 {
			normalizeArguments(result.ToolCalls)
			turns = append(turns, ai.Turn{Role: ai.RoleModel, ToolCalls: result.ToolCalls})

			responses := make([]ai.ToolResponse, 0, len(result.ToolCalls))
			for _, call := range result.ToolCalls {
				slog.Debug("dispatching coach tool",
					slog.Int("round", round),
					slog.String("tool", call.Name))
				content, err := e.dispatchToWire(ctx, userID, octx, call)
				if err != nil {
					return nil, err
				}
				toolCalls = append(toolCalls, ToolCallLog{Name: call.Name, Arguments: call.Arguments})
				responses = append(responses, ai.ToolResponse{ID: call.ID, Name: call.Name, Content: content})
			}
			turns = append(turns, ai.Turn{Role: ai.RoleUser, ToolResponses: responses})
			continue
		}

		text := result.Text
		if text == "" {
			text = fallbackNoResponse
		}
		return &Result{Text: text, ToolCalls: toolCalls}, nil
	}

	return &Result{Text: fallbackRoundLimit, ToolCalls: toolCalls}, nil
}

// normalizeArguments gives every call a non-nil argument bag so injection and
// logging always operate on the same map.
func normalizeArguments(calls []ai.ToolCallRequest) {
	for i := range calls {
		if calls[i].Arguments == nil {
			calls[i].Arguments = map[string]any{}
		}
	}
}

// dispatchToWire executes one tool call and encodes its result for the model.
func (e *Engine) dispatchToWire(ctx context.Context, userID int32, octx Context, call ai.ToolCallRequest) (string, error) {
	result, err := e.dispatcher.Dispatch(ctx, userID, octx, call.Name, call.Arguments)
	if err != nil {
		return "", err
	}
	content, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to encode tool result: %w", err)
	}
	return string(content), nil
}
