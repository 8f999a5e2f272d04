package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/exort/exort/store"
)

func (d *DB) CreateGame(ctx context.Context, create *store.Game) (*store.Game, error) {
	fields := []string{
		"uid", "creator_id", "opponent", "color", "result", "time_control",
		"opening_name", "opening_eco", "player_rating", "opponent_rating", "played_ts",
	}
	args := []any{
		create.UID, create.CreatorID, create.Opponent, create.Color, create.Result, create.TimeControl,
		create.OpeningName, create.OpeningEco, create.PlayerRating, create.OpponentRating, create.PlayedTs,
	}

	stmt := `INSERT INTO game (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}

	return create, nil
}

func (d *DB) ListGames(ctx context.Context, find *store.FindGame) ([]*store.Game, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "game.id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.UID; v != nil {
		where, args = append(where, "game.uid = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.CreatorID; v != nil {
		where, args = append(where, "game.creator_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.PlayedAfter; v != nil {
		where, args = append(where, "game.played_ts >= "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.TimeControl; v != nil {
		where, args = append(where, "game.time_control = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Result; v != nil {
		where, args = append(where, "game.result = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Color; v != nil {
		where, args = append(where, "game.color = "+placeholder(len(args)+1)), append(args, *v)
	}
	if find.RatedOnly {
		where = append(where, "game.player_rating IS NOT NULL")
	}

	query := `
		SELECT
			game.id, game.uid, game.creator_id, game.opponent, game.color, game.result,
			game.time_control, game.opening_name, game.opening_eco,
			game.player_rating, game.opponent_rating, game.played_ts,
			game_metrics.accuracy, game_metrics.centipawn_loss,
			game_metrics.blunder_count, game_metrics.mistake_count,
			game_metrics.inaccuracy_count, game_metrics.phase_errors
		FROM game
		LEFT JOIN game_metrics ON game_metrics.game_id = game.id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY game.played_ts DESC, game.id DESC`
	if find.Limit > 0 {
		query = fmt.Sprintf("%s LIMIT %d", query, find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Game, 0)
	for rows.Next() {
		game := &store.Game{}
		var openingName, openingEco sql.NullString
		var playerRating, opponentRating sql.NullInt32
		var accuracy, centipawnLoss sql.NullFloat64
		var blunderCount, mistakeCount, inaccuracyCount sql.NullInt32
		var phaseErrors sql.NullString

		if err := rows.Scan(
			&game.ID,
			&game.UID,
			&game.CreatorID,
			&game.Opponent,
			&game.Color,
			&game.Result,
			&game.TimeControl,
			&openingName,
			&openingEco,
			&playerRating,
			&opponentRating,
			&game.PlayedTs,
			&accuracy,
			&centipawnLoss,
			&blunderCount,
			&mistakeCount,
			&inaccuracyCount,
			&phaseErrors,
		); err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}

		if openingName.Valid {
			game.OpeningName = &openingName.String
		}
		if openingEco.Valid {
			game.OpeningEco = &openingEco.String
		}
		if playerRating.Valid {
			game.PlayerRating = &playerRating.Int32
		}
		if opponentRating.Valid {
			game.OpponentRating = &opponentRating.Int32
		}

		// A row in game_metrics means the game has been analyzed.
		if accuracy.Valid {
			metrics := &store.GameMetrics{
				GameID:          game.ID,
				Accuracy:        accuracy.Float64,
				CentipawnLoss:   centipawnLoss.Float64,
				BlunderCount:    blunderCount.Int32,
				MistakeCount:    mistakeCount.Int32,
				InaccuracyCount: inaccuracyCount.Int32,
			}
			if phaseErrors.Valid && phaseErrors.String != "" {
				pe := &store.PhaseErrors{}
				if err := json.Unmarshal([]byte(phaseErrors.String), pe); err != nil {
					return nil, fmt.Errorf("failed to unmarshal phase errors: %w", err)
				}
				metrics.PhaseErrors = pe
			}
			game.Metrics = metrics
		}

		list = append(list, game)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate games: %w", err)
	}

	return list, nil
}

func (d *DB) GetGame(ctx context.Context, find *store.FindGame) (*store.Game, error) {
	list, err := d.ListGames(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (d *DB) UpsertGameMetrics(ctx context.Context, upsert *store.GameMetrics) (*store.GameMetrics, error) {
	var phaseErrors any
	if upsert.PhaseErrors != nil {
		buf, err := json.Marshal(upsert.PhaseErrors)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal phase errors: %w", err)
		}
		phaseErrors = string(buf)
	}

	stmt := `INSERT INTO game_metrics (
			game_id, accuracy, centipawn_loss, blunder_count, mistake_count, inaccuracy_count, phase_errors
		)
		VALUES (` + placeholders(7) + `)
		ON CONFLICT (game_id) DO UPDATE SET
			accuracy = EXCLUDED.accuracy,
			centipawn_loss = EXCLUDED.centipawn_loss,
			blunder_count = EXCLUDED.blunder_count,
			mistake_count = EXCLUDED.mistake_count,
			inaccuracy_count = EXCLUDED.inaccuracy_count,
			phase_errors = EXCLUDED.phase_errors`
	if _, err := d.db.ExecContext(ctx, stmt,
		upsert.GameID, upsert.Accuracy, upsert.CentipawnLoss,
		upsert.BlunderCount, upsert.MistakeCount, upsert.InaccuracyCount, phaseErrors,
	); err != nil {
		return nil, fmt.Errorf("failed to upsert game metrics: %w", err)
	}

	return upsert, nil
}

func (d *DB) CreateMoveEvaluation(ctx context.Context, create *store.MoveEvaluation) (*store.MoveEvaluation, error) {
	fields := []string{"game_id", "move_number", "color", "classification", "played_move_uci", "best_move_uci", "eval_cp"}
	args := []any{create.GameID, create.MoveNumber, create.Color, create.Classification, create.PlayedMoveUCI, create.BestMoveUCI, create.EvalCp}

	stmt := `INSERT INTO move_evaluation (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create move evaluation: %w", err)
	}

	return create, nil
}

func (d *DB) ListMoveEvaluations(ctx context.Context, find *store.FindMoveEvaluation) ([]*store.MoveEvaluation, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.GameID; v != nil {
		where, args = append(where, "game_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if len(find.Classifications) > 0 {
		holders := []string{}
		for _, classification := range find.Classifications {
			holders = append(holders, placeholder(len(args)+1))
			args = append(args, classification)
		}
		where = append(where, "classification IN ("+strings.Join(holders, ", ")+")")
	}

	query := `SELECT id, game_id, move_number, color, classification, played_move_uci, best_move_uci, eval_cp
		FROM move_evaluation
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY move_number ASC, id ASC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list move evaluations: %w", err)
	}
	defer rows.Close()

	list := make([]*store.MoveEvaluation, 0)
	for rows.Next() {
		evaluation := &store.MoveEvaluation{}
		if err := rows.Scan(
			&evaluation.ID,
			&evaluation.GameID,
			&evaluation.MoveNumber,
			&evaluation.Color,
			&evaluation.Classification,
			&evaluation.PlayedMoveUCI,
			&evaluation.BestMoveUCI,
			&evaluation.EvalCp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan move evaluation: %w", err)
		}
		list = append(list, evaluation)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate move evaluations: %w", err)
	}

	return list, nil
}
