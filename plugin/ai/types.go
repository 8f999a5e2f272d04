// Package ai provides the model gateway used by the coaching engine.
package ai

// Role tags who produced a conversation turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// ToolCallRequest is a single tool invocation requested by the model.
// ID is the provider-assigned call id; tool results must echo it back so the
// provider can correlate them.
type ToolCallRequest struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ToolResponse carries one tool execution result back to the model.
// Content is the JSON-encoded result object.
type ToolResponse struct {
	ID      string
	Name    string
	Content string
}

// Turn is one element of the conversation transcript sent to the model.
// A model turn carries either Text or ToolCalls; a user turn carries either
// Text or ToolResponses.
type Turn struct {
	Role          Role
	Text          string
	ToolCalls     []ToolCallRequest
	ToolResponses []ToolResponse
}

// ToolDescriptor declares one callable tool to the model. Parameters is a
// JSON-schema object.
type ToolDescriptor struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// GenerateRequest is a single model invocation.
type GenerateRequest struct {
	SystemInstruction string
	Turns             []Turn
	Tools             []ToolDescriptor
	// Model overrides the gateway's configured chat model when non-empty.
	Model string
	// MaxTokens caps the completion length; zero means the provider default.
	MaxTokens int
}

// GenerateResult is the outcome of a blocking invocation. When the model
// requests tools, ToolCalls is non-empty and Text is empty; otherwise Text
// holds the reply (possibly empty when the model produced nothing).
type GenerateResult struct {
	Text      string
	ToolCalls []ToolCallRequest
}

// Chunk is one element of a streaming invocation. Text chunks arrive as the
// model produces them; tool calls are assembled from their fragments and
// delivered on the final chunk only.
type Chunk struct {
	Text      string
	ToolCalls []ToolCallRequest
}
