package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const insertPrompt = `-- name: InsertPrompt :one
INSERT INTO prompt_history (user_id, fingerprint, variant, source, prompt, from_cache)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, user_id, fingerprint, variant, source, prompt, from_cache, created_at
`

type InsertPromptParams struct {
	UserID      uuid.UUID   `json:"user_id"`
	Fingerprint string      `json:"fingerprint"`
	Variant     string      `json:"variant"`
	Source      pgtype.Text `json:"source"`
	Prompt      string      `json:"prompt"`
	FromCache   bool        `json:"from_cache"`
}

func (q *Queries) InsertPrompt(ctx context.Context, arg InsertPromptParams) (PromptHistory, error) {
	row := q.db.QueryRow(ctx, insertPrompt,
		arg.UserID,
		arg.Fingerprint,
		arg.Variant,
		arg.Source,
		arg.Prompt,
		arg.FromCache,
	)
	var i PromptHistory
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Fingerprint,
		&i.Variant,
		&i.Source,
		&i.Prompt,
		&i.FromCache,
		&i.CreatedAt,
	)
	return i, err
}

const listPromptsByUser = `-- name: ListPromptsByUser :many
SELECT id, user_id, fingerprint, variant, source, prompt, from_cache, created_at
FROM prompt_history
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2
`

type ListPromptsByUserParams struct {
	UserID uuid.UUID `json:"user_id"`
	Limit  int32     `json:"limit"`
}

func (q *Queries) ListPromptsByUser(ctx context.Context, arg ListPromptsByUserParams) ([]PromptHistory, error) {
	rows, err := q.db.Query(ctx, listPromptsByUser, arg.UserID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PromptHistory
	for rows.Next() {
		var i PromptHistory
		if err := rows.Scan(
			&i.ID,
			&i.UserID,
			&i.Fingerprint,
			&i.Variant,
			&i.Source,
			&i.Prompt,
			&i.FromCache,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
