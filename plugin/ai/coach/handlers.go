package coach

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/exort/exort/store"
)

// GameStore is the read-only slice of the store the analytics handlers need.
type GameStore interface {
	ListGames(ctx context.Context, find *store.FindGame) ([]*store.Game, error)
	GetGame(ctx context.Context, find *store.FindGame) (*store.Game, error)
	ListMoveEvaluations(ctx context.Context, find *store.FindMoveEvaluation) ([]*store.MoveEvaluation, error)
}

// Handlers implements the analytics behind the tool catalog. Every handler
// scopes its queries to the requesting user before aggregating; that is a
// hard invariant of the store access, not a post-filter.
type Handlers struct {
	store GameStore
}

func NewHandlers(store GameStore) *Handlers {
	return &Handlers{store: store}
}

type toolError struct {
	Error string `json:"error"`
}

type emptyPeriodSummary struct {
	TotalGames int    `json:"totalGames"`
	Message    string `json:"message"`
}

type resultBreakdown struct {
	Wins    int `json:"wins"`
	Losses  int `json:"losses"`
	Draws   int `json:"draws"`
	WinRate int `json:"winRate"`
}

type colorBreakdown struct {
	Games       int      `json:"games"`
	WinRate     int      `json:"winRate"`
	AvgAccuracy *float64 `json:"avgAccuracy"`
}

type colorSplit struct {
	White colorBreakdown `json:"white"`
	Black colorBreakdown `json:"black"`
}

type openingSummary struct {
	Name        string   `json:"name"`
	Games       int      `json:"games"`
	WinRate     int      `json:"winRate"`
	AvgAccuracy *float64 `json:"avgAccuracy"`
}

type performanceSummary struct {
	TotalGames    int              `json:"totalGames"`
	AnalyzedGames int              `json:"analyzedGames"`
	Days          int              `json:"days"`
	AvgAccuracy   float64          `json:"avgAccuracy"`
	AvgBlunders   float64          `json:"avgBlunders"`
	AvgMistakes   float64          `json:"avgMistakes"`
	Results       resultBreakdown  `json:"results"`
	ByColor       colorSplit       `json:"byColor"`
	TopOpenings   []openingSummary `json:"topOpenings"`
}

// PerformanceSummary aggregates the user's games over a lookback window.
// Averages are computed over analyzed games only; result counts and win rate
// cover every matched game.
func (h *Handlers) PerformanceSummary(ctx context.Context, userID int32, args map[string]any) (any, error) {
	days, ok := intArg(args, "days")
	if !ok {
		days = 30
	}
	since := time.Now().Add(-time.Duration(days) * 24 * time.Hour).Unix()

	find := &store.FindGame{CreatorID: &userID, PlayedAfter: &since}
	if timeControl, ok := stringArg(args, "timeControl"); ok {
		find.TimeControl = &timeControl
	}
	games, err := h.store.ListGames(ctx, find)
	if err != nil {
		return nil, err
	}

	total := len(games)
	if total == 0 {
		return emptyPeriodSummary{TotalGames: 0, Message: "No games found for this period."}, nil
	}

	var analyzed []*store.Game
	for _, game := range games {
		if game.Metrics != nil {
			analyzed = append(analyzed, game)
		}
	}

	var avgAccuracy, avgBlunders, avgMistakes float64
	if len(analyzed) > 0 {
		var accSum, blunderSum, mistakeSum float64
		for _, game := range analyzed {
			accSum += game.Metrics.Accuracy
			blunderSum += float64(game.Metrics.BlunderCount)
			mistakeSum += float64(game.Metrics.MistakeCount)
		}
		avgAccuracy = round1(accSum / float64(len(analyzed)))
		avgBlunders = round1(blunderSum / float64(len(analyzed)))
		avgMistakes = round1(mistakeSum / float64(len(analyzed)))
	}

	var wins, losses, draws int
	for _, game := range games {
		switch game.Result {
		case store.GameResultWin:
			wins++
		case store.GameResultLoss:
			losses++
		default:
			draws++
		}
	}

	split := colorSplit{}
	for _, color := range []store.GameColor{store.GameColorWhite, store.GameColorBlack} {
		var colorGames, colorWins, accCount int
		var accSum float64
		for _, game := range games {
			if game.Color != color {
				continue
			}
			colorGames++
			if game.Result == store.GameResultWin {
				colorWins++
			}
			if game.Metrics != nil {
				accSum += game.Metrics.Accuracy
				accCount++
			}
		}
		breakdown := colorBreakdown{Games: colorGames}
		if colorGames > 0 {
			breakdown.WinRate = percent(colorWins, colorGames)
		}
		if accCount > 0 {
			avg := round1(accSum / float64(accCount))
			breakdown.AvgAccuracy = &avg
		}
		if color == store.GameColorWhite {
			split.White = breakdown
		} else {
			split.Black = breakdown
		}
	}

	openings := aggregateOpenings(games)
	sort.SliceStable(openings, func(i, j int) bool { return openings[i].games > openings[j].games })
	topOpenings := make([]openingSummary, 0, 5)
	for _, agg := range openings {
		if len(topOpenings) == 5 {
			break
		}
		summary := openingSummary{
			Name:    agg.name,
			Games:   agg.games,
			WinRate: percent(agg.wins, agg.games),
		}
		if agg.accCount > 0 {
			avg := round1(agg.accSum / float64(agg.accCount))
			summary.AvgAccuracy = &avg
		}
		topOpenings = append(topOpenings, summary)
	}

	return performanceSummary{
		TotalGames:    total,
		AnalyzedGames: len(analyzed),
		Days:          days,
		AvgAccuracy:   avgAccuracy,
		AvgBlunders:   avgBlunders,
		AvgMistakes:   avgMistakes,
		Results: resultBreakdown{
			Wins:    wins,
			Losses:  losses,
			Draws:   draws,
			WinRate: percent(wins, total),
		},
		ByColor:     split,
		TopOpenings: topOpenings,
	}, nil
}

type recentGame struct {
	ID             string   `json:"id"`
	Opponent       string   `json:"opponent"`
	Color          string   `json:"color"`
	Result         string   `json:"result"`
	TimeControl    string   `json:"timeControl"`
	PlayedAt       string   `json:"playedAt"`
	PlayerRating   *int32   `json:"playerRating"`
	OpponentRating *int32   `json:"opponentRating"`
	Opening        *string  `json:"opening"`
	Accuracy       *float64 `json:"accuracy"`
	Blunders       *int32   `json:"blunders"`
	Mistakes       *int32   `json:"mistakes"`
}

// RecentGames lists the newest games with their summary metrics. Metrics
// fields stay null for games the analysis pipeline has not reached yet.
func (h *Handlers) RecentGames(ctx context.Context, userID int32, args map[string]any) (any, error) {
	limit := limitArg(args, 10, 20)

	find := &store.FindGame{CreatorID: &userID, Limit: limit}
	if timeControl, ok := stringArg(args, "timeControl"); ok {
		find.TimeControl = &timeControl
	}
	if result, ok := stringArg(args, "result"); ok {
		gameResult := store.GameResult(result)
		find.Result = &gameResult
	}
	games, err := h.store.ListGames(ctx, find)
	if err != nil {
		return nil, err
	}

	list := make([]recentGame, 0, len(games))
	for _, game := range games {
		item := recentGame{
			ID:             game.UID,
			Opponent:       game.Opponent,
			Color:          string(game.Color),
			Result:         string(game.Result),
			TimeControl:    game.TimeControl,
			PlayedAt:       formatPlayedAt(game.PlayedTs),
			PlayerRating:   game.PlayerRating,
			OpponentRating: game.OpponentRating,
			Opening:        game.OpeningName,
		}
		if game.Metrics != nil {
			item.Accuracy = &game.Metrics.Accuracy
			item.Blunders = &game.Metrics.BlunderCount
			item.Mistakes = &game.Metrics.MistakeCount
		}
		list = append(list, item)
	}
	return list, nil
}

type gameMetricsDetail struct {
	Accuracy      float64            `json:"accuracy"`
	CentipawnLoss float64            `json:"centipawnLoss"`
	Blunders      int32              `json:"blunders"`
	Mistakes      int32              `json:"mistakes"`
	Inaccuracies  int32              `json:"inaccuracies"`
	PhaseErrors   *store.PhaseErrors `json:"phaseErrors"`
}

type keyMove struct {
	MoveNumber     int32  `json:"moveNumber"`
	Color          string `json:"color"`
	Classification string `json:"classification"`
	Played         string `json:"played"`
	Best           string `json:"best"`
	EvalCp         int32  `json:"evalCp"`
}

type gameAnalysis struct {
	ID             string             `json:"id"`
	Opponent       string             `json:"opponent"`
	Color          string             `json:"color"`
	Result         string             `json:"result"`
	TimeControl    string             `json:"timeControl"`
	PlayedAt       string             `json:"playedAt"`
	PlayerRating   *int32             `json:"playerRating"`
	OpponentRating *int32             `json:"opponentRating"`
	Opening        *string            `json:"opening"`
	OpeningEco     *string            `json:"openingEco"`
	Metrics        *gameMetricsDetail `json:"metrics"`
	KeyMoves       []keyMove          `json:"keyMoves"`
}

// GameAnalysis returns full metrics for one game plus its key moves only
// (blunders, mistakes, inaccuracies, brilliancies). Missing or foreign game
// ids come back as structured error values so the model can recover.
func (h *Handlers) GameAnalysis(ctx context.Context, userID int32, args map[string]any) (any, error) {
	gameID, ok := stringArg(args, "gameId")
	if !ok {
		return toolError{Error: "No game ID provided."}, nil
	}

	game, err := h.store.GetGame(ctx, &store.FindGame{UID: &gameID, CreatorID: &userID})
	if err != nil {
		return nil, err
	}
	if game == nil {
		return toolError{Error: "Game not found."}, nil
	}

	evaluations, err := h.store.ListMoveEvaluations(ctx, &store.FindMoveEvaluation{
		GameID:          &game.ID,
		Classifications: store.KeyMoveClassifications,
	})
	if err != nil {
		return nil, err
	}

	analysis := gameAnalysis{
		ID:             game.UID,
		Opponent:       game.Opponent,
		Color:          string(game.Color),
		Result:         string(game.Result),
		TimeControl:    game.TimeControl,
		PlayedAt:       formatPlayedAt(game.PlayedTs),
		PlayerRating:   game.PlayerRating,
		OpponentRating: game.OpponentRating,
		Opening:        game.OpeningName,
		OpeningEco:     game.OpeningEco,
		KeyMoves:       make([]keyMove, 0, len(evaluations)),
	}
	if game.Metrics != nil {
		analysis.Metrics = &gameMetricsDetail{
			Accuracy:      game.Metrics.Accuracy,
			CentipawnLoss: game.Metrics.CentipawnLoss,
			Blunders:      game.Metrics.BlunderCount,
			Mistakes:      game.Metrics.MistakeCount,
			Inaccuracies:  game.Metrics.InaccuracyCount,
			PhaseErrors:   game.Metrics.PhaseErrors,
		}
	}
	for _, evaluation := range evaluations {
		analysis.KeyMoves = append(analysis.KeyMoves, keyMove{
			MoveNumber:     evaluation.MoveNumber,
			Color:          string(evaluation.Color),
			Classification: string(evaluation.Classification),
			Played:         evaluation.PlayedMoveUCI,
			Best:           evaluation.BestMoveUCI,
			EvalCp:         evaluation.EvalCp,
		})
	}
	return analysis, nil
}

type openingStat struct {
	Name        string   `json:"name"`
	Games       int      `json:"games"`
	WinRate     int      `json:"winRate"`
	DrawRate    int      `json:"drawRate"`
	LossRate    int      `json:"lossRate"`
	AvgAccuracy *float64 `json:"avgAccuracy"`
}

// OpeningStats aggregates per-opening results, most played first.
func (h *Handlers) OpeningStats(ctx context.Context, userID int32, args map[string]any) (any, error) {
	limit := limitArg(args, 10, 10)

	find := &store.FindGame{CreatorID: &userID}
	if color, ok := stringArg(args, "color"); ok {
		gameColor := store.GameColor(color)
		find.Color = &gameColor
	}
	games, err := h.store.ListGames(ctx, find)
	if err != nil {
		return nil, err
	}

	openings := aggregateOpenings(games)
	sort.SliceStable(openings, func(i, j int) bool { return openings[i].games > openings[j].games })

	list := make([]openingStat, 0, limit)
	for _, agg := range openings {
		if len(list) == limit {
			break
		}
		stat := openingStat{
			Name:     agg.name,
			Games:    agg.games,
			WinRate:  percent(agg.wins, agg.games),
			DrawRate: percent(agg.draws, agg.games),
			LossRate: percent(agg.losses, agg.games),
		}
		if agg.accCount > 0 {
			avg := round1(agg.accSum / float64(agg.accCount))
			stat.AvgAccuracy = &avg
		}
		list = append(list, stat)
	}
	return list, nil
}

type worstGame struct {
	ID       string  `json:"id"`
	Opponent string  `json:"opponent"`
	Result   string  `json:"result"`
	Blunders int32   `json:"blunders"`
	Accuracy float64 `json:"accuracy"`
	Opening  *string `json:"opening"`
	PlayedAt string  `json:"playedAt"`
}

type phaseAverages struct {
	Opening    float64 `json:"opening"`
	Middlegame float64 `json:"middlegame"`
	Endgame    float64 `json:"endgame"`
}

type weakOpening struct {
	Name        string  `json:"name"`
	Games       int     `json:"games"`
	AvgAccuracy float64 `json:"avgAccuracy"`
}

type weaknessReport struct {
	Days          int            `json:"days"`
	WorstGames    []worstGame    `json:"worstGames"`
	PhaseAverages *phaseAverages `json:"phaseAverages"`
	WorstOpenings []weakOpening  `json:"worstOpenings"`
}

type emptyAnalyzedPeriod struct {
	Message string `json:"message"`
}

// WeaknessReport surfaces the worst blunder-heavy games, per-phase error
// averages, and the lowest-accuracy openings with at least 3 analyzed games.
func (h *Handlers) WeaknessReport(ctx context.Context, userID int32, args map[string]any) (any, error) {
	days, ok := intArg(args, "days")
	if !ok {
		days = 30
	}
	since := time.Now().Add(-time.Duration(days) * 24 * time.Hour).Unix()

	games, err := h.store.ListGames(ctx, &store.FindGame{CreatorID: &userID, PlayedAfter: &since})
	if err != nil {
		return nil, err
	}

	var analyzed []*store.Game
	for _, game := range games {
		if game.Metrics != nil {
			analyzed = append(analyzed, game)
		}
	}
	if len(analyzed) == 0 {
		return emptyAnalyzedPeriod{Message: "No analyzed games found for this period."}, nil
	}

	// Worst games by blunder count; ties keep recency order.
	sorted := make([]*store.Game, len(analyzed))
	copy(sorted, analyzed)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Metrics.BlunderCount > sorted[j].Metrics.BlunderCount
	})
	worstGames := make([]worstGame, 0, 5)
	for _, game := range sorted {
		if len(worstGames) == 5 {
			break
		}
		worstGames = append(worstGames, worstGame{
			ID:       game.UID,
			Opponent: game.Opponent,
			Result:   string(game.Result),
			Blunders: game.Metrics.BlunderCount,
			Accuracy: game.Metrics.Accuracy,
			Opening:  game.OpeningName,
			PlayedAt: formatPlayedAt(game.PlayedTs),
		})
	}

	var openingErr, middlegameErr, endgameErr float64
	var phaseCount int
	for _, game := range analyzed {
		if pe := game.Metrics.PhaseErrors; pe != nil {
			openingErr += pe.Opening
			middlegameErr += pe.Middlegame
			endgameErr += pe.Endgame
			phaseCount++
		}
	}
	var averages *phaseAverages
	if phaseCount > 0 {
		averages = &phaseAverages{
			Opening:    round1(openingErr / float64(phaseCount)),
			Middlegame: round1(middlegameErr / float64(phaseCount)),
			Endgame:    round1(endgameErr / float64(phaseCount)),
		}
	}

	// Worst openings by accuracy, at least 3 analyzed games each.
	openings := aggregateOpenings(analyzed)
	worstOpenings := make([]weakOpening, 0, 5)
	for _, agg := range openings {
		if agg.accCount < 3 {
			continue
		}
		worstOpenings = append(worstOpenings, weakOpening{
			Name:        agg.name,
			Games:       agg.accCount,
			AvgAccuracy: round1(agg.accSum / float64(agg.accCount)),
		})
	}
	sort.SliceStable(worstOpenings, func(i, j int) bool {
		return worstOpenings[i].AvgAccuracy < worstOpenings[j].AvgAccuracy
	})
	if len(worstOpenings) > 5 {
		worstOpenings = worstOpenings[:5]
	}

	return weaknessReport{
		Days:          days,
		WorstGames:    worstGames,
		PhaseAverages: averages,
		WorstOpenings: worstOpenings,
	}, nil
}

type ratingPoint struct {
	PlayedAt    string   `json:"playedAt"`
	Rating      *int32   `json:"rating"`
	Result      string   `json:"result"`
	Accuracy    *float64 `json:"accuracy"`
	Opponent    string   `json:"opponent"`
	TimeControl string   `json:"timeControl"`
}

// RatingHistory returns the newest rated games as an oldest-to-newest series.
func (h *Handlers) RatingHistory(ctx context.Context, userID int32, args map[string]any) (any, error) {
	limit := limitArg(args, 20, 50)

	find := &store.FindGame{CreatorID: &userID, RatedOnly: true, Limit: limit}
	if timeControl, ok := stringArg(args, "timeControl"); ok {
		find.TimeControl = &timeControl
	}
	games, err := h.store.ListGames(ctx, find)
	if err != nil {
		return nil, err
	}

	// The store returns newest first; the series reads oldest to newest.
	list := make([]ratingPoint, 0, len(games))
	for i := len(games) - 1; i >= 0; i-- {
		game := games[i]
		point := ratingPoint{
			PlayedAt:    formatPlayedAt(game.PlayedTs),
			Rating:      game.PlayerRating,
			Result:      string(game.Result),
			Opponent:    game.Opponent,
			TimeControl: game.TimeControl,
		}
		if game.Metrics != nil {
			point.Accuracy = &game.Metrics.Accuracy
		}
		list = append(list, point)
	}
	return list, nil
}

type openingAgg struct {
	name                       string
	games, wins, losses, draws int
	accSum                     float64
	accCount                   int
}

// aggregateOpenings groups games by opening name in first-seen order, so that
// later frequency sorts break ties by recency of first appearance.
func aggregateOpenings(games []*store.Game) []*openingAgg {
	index := map[string]*openingAgg{}
	var ordered []*openingAgg
	for _, game := range games {
		name := "Unknown"
		if game.OpeningName != nil {
			name = *game.OpeningName
		}
		agg, ok := index[name]
		if !ok {
			agg = &openingAgg{name: name}
			index[name] = agg
			ordered = append(ordered, agg)
		}
		agg.games++
		switch game.Result {
		case store.GameResultWin:
			agg.wins++
		case store.GameResultLoss:
			agg.losses++
		default:
			agg.draws++
		}
		if game.Metrics != nil {
			agg.accSum += game.Metrics.Accuracy
			agg.accCount++
		}
	}
	return ordered
}

// round1 rounds to one decimal, half away from zero.
func round1(x float64) float64 {
	return math.Round(x*10) / 10
}

// percent rounds a ratio to an integer percentage.
func percent(part, total int) int {
	return int(math.Round(float64(part) / float64(total) * 100))
}

func formatPlayedAt(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}

func intArg(args map[string]any, key string) (int, bool) {
	// Tool arguments arrive as decoded JSON, so numbers are float64.
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

// limitArg resolves a model-supplied limit against its default and cap.
// Non-positive values fall back to the default; FindGame.Limit = 0 means
// unbounded at the store layer, so they must never pass through.
func limitArg(args map[string]any, def, max int) int {
	limit, ok := intArg(args, "limit")
	if !ok || limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	return limit
}

func stringArg(args map[string]any, key string) (string, bool) {
	if v, ok := args[key].(string); ok && v != "" {
		return v, true
	}
	return "", false
}
