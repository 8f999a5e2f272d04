package store

// GameColor is the side the user played.
type GameColor string

const (
	GameColorWhite GameColor = "white"
	GameColorBlack GameColor = "black"
)

// GameResult is the outcome from the user's perspective.
type GameResult string

const (
	GameResultWin  GameResult = "win"
	GameResultLoss GameResult = "loss"
	GameResultDraw GameResult = "draw"
)

// Game is an imported game. Games are written by the import pipeline (external
// to this service); the coaching tools only read them.
type Game struct {
	ID             int32
	UID            string // public id, referenced by chat sessions and tool arguments
	CreatorID      int32
	Opponent       string
	Color          GameColor
	Result         GameResult
	TimeControl    string
	OpeningName    *string
	OpeningEco     *string
	PlayerRating   *int32
	OpponentRating *int32
	PlayedTs       int64

	// Metrics is populated by the driver via LEFT JOIN; nil when the game has
	// not been analyzed yet.
	Metrics *GameMetrics
}

// PhaseErrors is the per-phase error breakdown of an analyzed game.
type PhaseErrors struct {
	Opening    float64 `json:"opening"`
	Middlegame float64 `json:"middlegame"`
	Endgame    float64 `json:"endgame"`
}

// GameMetrics holds the engine-analysis aggregates for one game.
type GameMetrics struct {
	GameID          int32
	Accuracy        float64
	CentipawnLoss   float64
	BlunderCount    int32
	MistakeCount    int32
	InaccuracyCount int32
	PhaseErrors     *PhaseErrors // stored as a JSON column
}

type FindGame struct {
	ID        *int32
	UID       *string
	CreatorID *int32
	// PlayedAfter filters to games with PlayedTs >= the given unix timestamp.
	PlayedAfter *int64
	TimeControl *string
	Result      *GameResult
	Color       *GameColor
	// RatedOnly keeps only games that carry a player rating.
	RatedOnly bool
	// Limit caps the number of rows; zero means no limit.
	Limit int
}

// MoveClassification labels a move evaluation.
type MoveClassification string

const (
	MoveClassificationBlunder    MoveClassification = "BLUNDER"
	MoveClassificationMistake    MoveClassification = "MISTAKE"
	MoveClassificationInaccuracy MoveClassification = "INACCURACY"
	MoveClassificationBrilliant  MoveClassification = "BRILLIANT"
	MoveClassificationGood       MoveClassification = "GOOD"
	MoveClassificationBook       MoveClassification = "BOOK"
)

// KeyMoveClassifications are the classifications worth surfacing to the coach.
var KeyMoveClassifications = []MoveClassification{
	MoveClassificationBlunder,
	MoveClassificationMistake,
	MoveClassificationInaccuracy,
	MoveClassificationBrilliant,
}

// MoveEvaluation is one analyzed move of a game.
type MoveEvaluation struct {
	ID             int32
	GameID         int32
	MoveNumber     int32
	Color          GameColor
	Classification MoveClassification
	PlayedMoveUCI  string
	BestMoveUCI    string
	EvalCp         int32
}

type FindMoveEvaluation struct {
	GameID          *int32
	Classifications []MoveClassification
}
