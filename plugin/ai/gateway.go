package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Config holds the model gateway configuration.
type Config struct {
	BaseURL    string
	APIKey     string
	ChatModel  string
	TitleModel string
	MaxRetries int
	Timeout    time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "https://api.openai.com/v1",
		APIKey:     "",
		ChatModel:  "gpt-4o-mini",
		TitleModel: "gpt-4o-mini",
		MaxRetries: 3,
		Timeout:    30 * time.Second,
	}
}

// Gateway is the model invocation contract used by the orchestration loop.
type Gateway interface {
	// Generate performs a blocking invocation and returns the final result.
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error)

	// GenerateStream performs a streaming invocation. Text chunks are emitted
	// as they arrive; assembled tool calls arrive on the final chunk. Both
	// channels are closed when the stream ends.
	GenerateStream(ctx context.Context, req *GenerateRequest) (<-chan *Chunk, <-chan error)
}

type gateway struct {
	client *openai.Client
	config *Config
}

// NewGateway creates a gateway backed by an OpenAI-compatible endpoint.
func NewGateway(cfg *Config) (Gateway, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gpt-4o-mini"
	}
	if cfg.TitleModel == "" {
		cfg.TitleModel = cfg.ChatModel
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &gateway{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}, nil
}

func (g *gateway) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	completionReq, err := g.buildRequest(req)
	if err != nil {
		return nil, err
	}

	var result *GenerateResult
	err = g.doWithRetry(ctx, func() error {
		resp, err := g.client.CreateChatCompletion(ctx, completionReq)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("empty chat response")
		}

		message := resp.Choices[0].Message
		if len(message.ToolCalls) > 0 {
			calls, err := parseToolCalls(message.ToolCalls)
			if err != nil {
				return err
			}
			result = &GenerateResult{ToolCalls: calls}
			return nil
		}
		result = &GenerateResult{Text: message.Content}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to complete chat: %w", err)
	}

	return result, nil
}

func (g *gateway) GenerateStream(ctx context.Context, req *GenerateRequest) (<-chan *Chunk, <-chan error) {
	chunkChan := make(chan *Chunk)
	errChan := make(chan error, 1)

	completionReq, err := g.buildRequest(req)
	if err != nil {
		errChan <- err
		close(chunkChan)
		close(errChan)
		return chunkChan, errChan
	}
	completionReq.Stream = true

	go func() {
		defer close(chunkChan)
		defer close(errChan)

		var stream *openai.ChatCompletionStream
		// Retry covers stream establishment only; once chunks flow the
		// consumer is already observing them.
		if err := g.doWithRetry(ctx, func() error {
			var err error
			stream, err = g.client.CreateChatCompletionStream(ctx, completionReq)
			return err
		}); err != nil {
			errChan <- fmt.Errorf("failed to open chat stream: %w", err)
			return
		}
		defer stream.Close()

		// Tool calls arrive fragmented across deltas, keyed by index.
		var pending []*ToolCallRequest
		var pendingArgs []string

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				errChan <- fmt.Errorf("failed to receive chat chunk: %w", err)
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}

			delta := resp.Choices[0].Delta
			if delta.Content != "" {
				select {
				case chunkChan <- &Chunk{Text: delta.Content}:
				case <-ctx.Done():
					errChan <- ctx.Err()
					return
				}
			}
			for _, fragment := range delta.ToolCalls {
				index := 0
				if fragment.Index != nil {
					index = *fragment.Index
				}
				for len(pending) <= index {
					pending = append(pending, &ToolCallRequest{})
					pendingArgs = append(pendingArgs, "")
				}
				if fragment.ID != "" {
					pending[index].ID = fragment.ID
				}
				if fragment.Function.Name != "" {
					pending[index].Name = fragment.Function.Name
				}
				pendingArgs[index] += fragment.Function.Arguments
			}
		}

		if len(pending) > 0 {
			calls := make([]ToolCallRequest, 0, len(pending))
			for i, call := range pending {
				arguments := map[string]any{}
				if pendingArgs[i] != "" {
					if err := json.Unmarshal([]byte(pendingArgs[i]), &arguments); err != nil {
						errChan <- fmt.Errorf("failed to parse tool call arguments: %w", err)
						return
					}
				}
				call.Arguments = arguments
				calls = append(calls, *call)
			}
			select {
			case chunkChan <- &Chunk{ToolCalls: calls}:
			case <-ctx.Done():
				errChan <- ctx.Err()
			}
		}
	}()

	return chunkChan, errChan
}

func (g *gateway) buildRequest(req *GenerateRequest) (openai.ChatCompletionRequest, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Turns)+1)
	if req.SystemInstruction != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemInstruction,
		})
	}

	for _, turn := range req.Turns {
		switch {
		case turn.Role == RoleModel && len(turn.ToolCalls) > 0:
			toolCalls := make([]openai.ToolCall, 0, len(turn.ToolCalls))
			for _, call := range turn.ToolCalls {
				arguments, err := json.Marshal(call.Arguments)
				if err != nil {
					return openai.ChatCompletionRequest{}, fmt.Errorf("failed to marshal tool call arguments: %w", err)
				}
				toolCalls = append(toolCalls, openai.ToolCall{
					ID:   call.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      call.Name,
						Arguments: string(arguments),
					},
				})
			}
			messages = append(messages, openai.ChatCompletionMessage{
				Role:      openai.ChatMessageRoleAssistant,
				ToolCalls: toolCalls,
			})
		case turn.Role == RoleModel:
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: turn.Text,
			})
		case len(turn.ToolResponses) > 0:
			for _, response := range turn.ToolResponses {
				messages = append(messages, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					ToolCallID: response.ID,
					Name:       response.Name,
					Content:    response.Content,
				})
			}
		default:
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: turn.Text,
			})
		}
	}

	model := g.config.ChatModel
	if req.Model != "" {
		model = req.Model
	}

	completionReq := openai.ChatCompletionRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: req.MaxTokens,
	}
	for _, tool := range req.Tools {
		completionReq.Tools = append(completionReq.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}

	return completionReq, nil
}

func parseToolCalls(toolCalls []openai.ToolCall) ([]ToolCallRequest, error) {
	calls := make([]ToolCallRequest, 0, len(toolCalls))
	for _, call := range toolCalls {
		arguments := map[string]any{}
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &arguments); err != nil {
				return nil, fmt.Errorf("failed to parse tool call arguments: %w", err)
			}
		}
		calls = append(calls, ToolCallRequest{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: arguments,
		})
	}
	return calls, nil
}

// doWithRetry executes a function with exponential backoff retry.
func (g *gateway) doWithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < g.config.MaxRetries; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			if attempt < g.config.MaxRetries-1 {
				waitTime := time.Duration(math.Pow(2, float64(attempt))) * time.Second
				slog.Debug("model request failed, retrying",
					"attempt", attempt+1,
					"wait_time", waitTime,
					"error", err)
				select {
				case <-time.After(waitTime):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
	return lastErr
}
