package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/img2prompt/internal/coze"
	"github.com/briangreenhill/img2prompt/internal/generator"
	"github.com/briangreenhill/img2prompt/internal/jobs"
)

type promptGenerator interface {
	Generate(ctx context.Context, req generator.Request) (*generator.Response, error)
}

type promptHandler struct {
	gen promptGenerator
	log zerolog.Logger
}

func (h promptHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	p, err := jobs.ParseGeneratePromptPayload(t)
	if err != nil {
		h.log.Error().Err(err).Msg("bad payload")
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	log := h.log.With().Str("user", p.UserID).Str("variant", p.Variant).Logger()
	log.Info().Str("image_url", p.ImageURL).Msg("generate start")
	start := time.Now()
	resp, err := h.gen.Generate(ctx, generator.Request{
		ImageURL: p.ImageURL,
		Variant:  p.Variant,
		UseCache: true,
		UserID:   p.UserID,
	})
	duration := time.Since(start)

	if err != nil {
		if !isRetryable(err) {
			log.Warn().Err(err).Dur("duration", duration).Msg("permanent error, dropping job")
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
		log.Warn().Err(err).Dur("duration", duration).Msg("retryable error")
		return err
	}
	log.Info().Bool("cached", resp.FromCache).Dur("duration", duration).Msg("generate done")
	return nil
}

// isRetryable reports whether a failed generation is worth another attempt.
// Input errors never are; upstream API errors only when Coze says it is
// overloaded or broken; transport failures always are.
func isRetryable(err error) bool {
	switch generator.KindOf(err) {
	case generator.KindInput:
		return false
	case generator.KindUpstream:
		var apiErr *coze.APIError
		if errors.As(err, &apiErr) {
			return apiErr.Temporary()
		}
		return true
	default:
		return true
	}
}
