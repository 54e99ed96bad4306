package db

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type User struct {
	ID        uuid.UUID          `json:"id"`
	Email     string             `json:"email"`
	Name      pgtype.Text        `json:"name"`
	CreatedAt pgtype.Timestamptz `json:"created_at"`
}

type PromptHistory struct {
	ID          uuid.UUID          `json:"id"`
	UserID      uuid.UUID          `json:"user_id"`
	Fingerprint string             `json:"fingerprint"`
	Variant     string             `json:"variant"`
	Source      pgtype.Text        `json:"source"`
	Prompt      string             `json:"prompt"`
	FromCache   bool               `json:"from_cache"`
	CreatedAt   pgtype.Timestamptz `json:"created_at"`
}
