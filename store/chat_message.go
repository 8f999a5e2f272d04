package store

// ChatMessageRole tags who authored a message.
type ChatMessageRole string

const (
	ChatMessageRoleUser      ChatMessageRole = "USER"
	ChatMessageRoleAssistant ChatMessageRole = "ASSISTANT"
)

// ChatMessage is one turn of a coaching conversation. Creation-time order is
// conversation order.
type ChatMessage struct {
	ID        int32
	UID       string
	SessionID int32
	Role      ChatMessageRole
	Content   string
	// ToolCalls is a JSON array of {name, arguments} records, present only on
	// assistant messages that used tools; empty string otherwise.
	ToolCalls string
	CreatedTs int64
}

type FindChatMessage struct {
	ID        *int32
	SessionID *int32
	// Limit, when positive, returns only the newest Limit rows (descending
	// creation order). Zero returns all rows in ascending creation order.
	Limit int
}

type DeleteChatMessage struct {
	ID        *int32
	SessionID *int32
}
