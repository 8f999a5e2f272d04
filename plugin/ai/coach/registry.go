// Package coach implements the chess coaching engine: the tool catalog, the
// analytics handlers behind it, the system prompt, and the orchestration loop
// that ties them to the model gateway.
package coach

import "github.com/exort/exort/plugin/ai"

// toolDescriptors is the closed set of tools exposed to the model. Every
// invocation sends the full catalog; tool selection is the model's call.
var toolDescriptors = []ai.ToolDescriptor{
	{
		Name: "get_performance_summary",
		Description: "Get aggregate performance statistics: average accuracy, blunder/mistake/inaccuracy counts, " +
			"result distribution, stats by time control and color, and top openings. Call this when the user asks " +
			"about their overall performance or wants a general overview.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"timeControl": map[string]any{
					"type":        "string",
					"description": `Filter by time control (e.g. "bullet", "blitz", "rapid", "classical"). Omit for all.`,
				},
				"days": map[string]any{
					"type":        "number",
					"description": "Number of days to look back. Defaults to 30.",
				},
			},
		},
	},
	{
		Name: "get_recent_games",
		Description: "Get a list of recent games with summary metrics (result, accuracy, blunders, opening, opponent, " +
			"rating). Call this when the user asks to see their recent games or game history.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"limit": map[string]any{
					"type":        "number",
					"description": "Number of games to return. Max 20, default 10.",
				},
				"timeControl": map[string]any{
					"type":        "string",
					"description": "Filter by time control.",
				},
				"result": map[string]any{
					"type":        "string",
					"description": `Filter by result: "win", "loss", "draw".`,
				},
			},
		},
	},
	{
		Name: "get_game_analysis",
		Description: "Get full analysis for a specific game: metrics plus key moves only (blunders, mistakes, " +
			"inaccuracies, brilliancies). Call this when the user asks to analyze a specific game or wants details " +
			"about critical moments.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"gameId": map[string]any{
					"type":        "string",
					"description": "The game ID to analyze. If not provided, uses the game linked to the current coaching session.",
				},
			},
		},
	},
	{
		Name: "get_opening_stats",
		Description: "Get opening statistics: win rate, draw rate, loss rate, and average accuracy per opening. " +
			"Call this when the user asks about their openings, what openings to play, or opening performance.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"color": map[string]any{
					"type":        "string",
					"description": `Filter by color: "white" or "black".`,
				},
				"limit": map[string]any{
					"type":        "number",
					"description": "Number of openings to return. Max 10, default 10.",
				},
			},
		},
	},
	{
		Name: "get_weakness_report",
		Description: "Identify weaknesses: worst games by blunder count, average errors by game phase " +
			"(opening/middlegame/endgame), and worst openings by accuracy. Call this when the user asks what to " +
			"improve, their weaknesses, or areas needing work.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"days": map[string]any{
					"type":        "number",
					"description": "Number of days to look back. Defaults to 30.",
				},
			},
		},
	},
	{
		Name: "get_rating_history",
		Description: "Get rating progression over time with accuracy and result per game. Call this when the user " +
			"asks about their rating trend, progress, or Elo history.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"timeControl": map[string]any{
					"type":        "string",
					"description": "Filter by time control.",
				},
				"limit": map[string]any{
					"type":        "number",
					"description": "Number of games to include. Default 20, max 50.",
				},
			},
		},
	},
}

// Tools returns the tool catalog sent with every model invocation.
func Tools() []ai.ToolDescriptor {
	return toolDescriptors
}
