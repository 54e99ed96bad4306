package main

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/briangreenhill/img2prompt/internal/coze"
	"github.com/briangreenhill/img2prompt/internal/generator"
	"github.com/briangreenhill/img2prompt/internal/jobs"
)

type stubGenerator struct {
	got generator.Request
	err error
}

func (s *stubGenerator) Generate(_ context.Context, req generator.Request) (*generator.Response, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	return &generator.Response{Result: "a prompt"}, nil
}

func task(t *testing.T) *asynq.Task {
	t.Helper()
	tk, err := jobs.NewGeneratePromptTask(jobs.GeneratePromptPayload{
		UserID: "u-1", ImageURL: "https://example.com/cat.png", Variant: "flux",
	})
	require.NoError(t, err)
	return tk
}

func TestProcessTaskSuccess(t *testing.T) {
	gen := &stubGenerator{}
	h := promptHandler{gen: gen, log: zerolog.Nop()}

	require.NoError(t, h.ProcessTask(context.Background(), task(t)))
	require.Equal(t, "https://example.com/cat.png", gen.got.ImageURL)
	require.Equal(t, "flux", gen.got.Variant)
	require.Equal(t, "u-1", gen.got.UserID)
	require.True(t, gen.got.UseCache)
}

func TestProcessTaskBadPayloadSkipsRetry(t *testing.T) {
	h := promptHandler{gen: &stubGenerator{}, log: zerolog.Nop()}
	err := h.ProcessTask(context.Background(), asynq.NewTask(jobs.TaskGeneratePrompt, []byte("nope")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestProcessTaskRetryPolicy(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		skipRetry bool
	}{
		{"input error", &generator.Error{Kind: generator.KindInput, Message: "no image", Err: generator.ErrNoImage}, true},
		{"coze overloaded", &generator.Error{Kind: generator.KindUpstream, Message: "workflow execution failed", Err: &coze.APIError{Op: "workflow", HTTPStatus: http.StatusTooManyRequests}}, false},
		{"coze rejected", &generator.Error{Kind: generator.KindUpstream, Message: "image upload failed", Err: &coze.APIError{Op: "upload", HTTPStatus: http.StatusOK, Code: 4000}}, true},
		{"network", &generator.Error{Kind: generator.KindUpstream, Message: "failed to fetch image", Err: errors.New("connection reset")}, false},
		{"unknown", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := promptHandler{gen: &stubGenerator{err: tt.err}, log: zerolog.Nop()}
			err := h.ProcessTask(context.Background(), task(t))
			require.Error(t, err)
			require.Equal(t, tt.skipRetry, errors.Is(err, asynq.SkipRetry))
		})
	}
}
