package store

// ChatSession is one coaching conversation, owned exclusively by its creator.
// GameUID optionally links the session to a specific game; the orchestration
// loop uses that link to default the per-game analysis tool's argument.
type ChatSession struct {
	ID        int32
	UID       string
	CreatorID int32
	GameUID   *string
	Title     string
	CreatedTs int64
}

type FindChatSession struct {
	ID        *int32
	UID       *string
	CreatorID *int32
}

type UpdateChatSession struct {
	ID    int32
	Title *string
}

type DeleteChatSession struct {
	ID int32
}
