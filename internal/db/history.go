package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/briangreenhill/img2prompt/internal/generator"
)

// History stores successful generations in prompt_history.
type History struct {
	Q *Queries
}

func (h History) Record(ctx context.Context, rec generator.Record) error {
	uid, err := uuid.Parse(rec.UserID)
	if err != nil {
		return fmt.Errorf("parse user id %q: %w", rec.UserID, err)
	}
	_, err = h.Q.InsertPrompt(ctx, InsertPromptParams{
		UserID:      uid,
		Fingerprint: rec.Fingerprint,
		Variant:     rec.Variant,
		Source:      pgtype.Text{String: rec.Source, Valid: rec.Source != ""},
		Prompt:      rec.Prompt,
		FromCache:   rec.FromCache,
	})
	if err != nil {
		return fmt.Errorf("insert prompt: %w", err)
	}
	return nil
}

var _ generator.History = History{}
