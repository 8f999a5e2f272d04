package store

// User is a registered player. Authentication and profile management live
// outside this service; the coaching engine only needs the identity and the
// linked Lichess account.
type User struct {
	ID              int32
	Username        string
	Nickname        string
	LichessUsername *string
	CreatedTs       int64
}

type FindUser struct {
	ID       *int32
	Username *string
}
