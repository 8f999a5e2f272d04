package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/exort/exort/store"
)

func (d *DB) CreateUser(ctx context.Context, create *store.User) (*store.User, error) {
	fields := []string{"username", "nickname", "lichess_username"}
	args := []any{create.Username, create.Nickname, create.LichessUsername}

	stmt := `INSERT INTO "user" (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id, created_ts`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(
		&create.ID,
		&create.CreatedTs,
	); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return create, nil
}

func (d *DB) GetUser(ctx context.Context, find *store.FindUser) (*store.User, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Username; v != nil {
		where, args = append(where, "username = "+placeholder(len(args)+1)), append(args, *v)
	}

	query := `SELECT id, username, nickname, lichess_username, created_ts
		FROM "user" WHERE ` + strings.Join(where, " AND ") + ` LIMIT 1`

	user := &store.User{}
	var lichessUsername sql.NullString
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(
		&user.ID,
		&user.Username,
		&user.Nickname,
		&lichessUsername,
		&user.CreatedTs,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if lichessUsername.Valid {
		user.LichessUsername = &lichessUsername.String
	}

	return user, nil
}
