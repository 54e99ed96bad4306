package db

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/briangreenhill/img2prompt/internal/generator"
)

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping database test")
	}
	pool, err := pgxpool.New(context.Background(), dbURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, Migrate(context.Background(), pool))
	return pool
}

func TestHistoryRejectsBadUserID(t *testing.T) {
	h := History{Q: New(nil)}
	err := h.Record(context.Background(), generator.Record{UserID: "not-a-uuid", Prompt: "x"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse user id")
}

func TestUpsertUserByEmail(t *testing.T) {
	pool := testPool(t)
	q := New(pool)
	ctx := context.Background()
	email := "user-" + uuid.New().String() + "@example.com"

	first, err := q.UpsertUserByEmail(ctx, UpsertUserByEmailParams{Email: email})
	require.NoError(t, err)
	second, err := q.UpsertUserByEmail(ctx, UpsertUserByEmailParams{
		Email: email,
		Name:  pgtype.Text{String: "Ada", Valid: true},
	})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "Ada", second.Name.String)

	got, err := q.GetUserByEmail(ctx, email)
	require.NoError(t, err)
	require.Equal(t, first.ID, got.ID)
}

func TestHistoryRoundTrip(t *testing.T) {
	pool := testPool(t)
	q := New(pool)
	ctx := context.Background()

	user, err := q.UpsertUserByEmail(ctx, UpsertUserByEmailParams{Email: "hist-" + uuid.New().String() + "@example.com"})
	require.NoError(t, err)

	h := History{Q: q}
	require.NoError(t, h.Record(ctx, generator.Record{
		UserID: user.ID.String(), Fingerprint: "abc", Variant: "flux", Source: "cat.png", Prompt: "a cat",
	}))
	require.NoError(t, h.Record(ctx, generator.Record{
		UserID: user.ID.String(), Fingerprint: "abc", Variant: "flux", Prompt: "a cat", FromCache: true,
	}))

	items, err := q.ListPromptsByUser(ctx, ListPromptsByUserParams{UserID: user.ID, Limit: 10})
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, it := range items {
		require.Equal(t, "a cat", it.Prompt)
		require.Equal(t, user.ID, it.UserID)
	}
}
