// Package generator turns an image into a prompt, consulting the prompt cache
// before paying for an upstream workflow run.
//
// Flow per request: validate, sweep (at a bounded rate), fingerprint, look up,
// and on a miss upload + run the workflow once, storing non-empty results.
package generator

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/briangreenhill/img2prompt/cache"
	"github.com/briangreenhill/img2prompt/internal/coze"
)

// Upstream is the provider that produces prompts. *coze.Client implements it.
type Upstream interface {
	Upload(ctx context.Context, img coze.Image) (string, error)
	FetchImage(ctx context.Context, url string) (coze.Image, error)
	RunWorkflow(ctx context.Context, fileID, variant string) (string, error)
}

// Metrics receives per-request measurements. *metrics.Metrics implements it.
type Metrics interface {
	RecordGeneration(variant, outcome string)
	RecordUpstream(stage string, d time.Duration, err error)
	RecordCoalesced()
}

// History persists successful generations. Failures are logged and ignored.
type History interface {
	Record(ctx context.Context, rec Record) error
}

// Record is one successful generation as handed to History.
type Record struct {
	UserID      string
	Fingerprint string
	Variant     string
	Source      string
	Prompt      string
	FromCache   bool
}

// Request is one image-to-prompt call. Either Image or ImageURL must be set;
// Image wins when both are.
type Request struct {
	Image       []byte
	Filename    string
	ContentType string
	ImageURL    string
	Variant     string
	UseCache    bool
	UserID      string
}

// Response is what a successful generation returns. Result may be empty when
// the workflow produced no output; such results are never cached.
type Response struct {
	Result      string
	FromCache   bool
	Fingerprint string
	CacheStats  cache.Stats
}

const (
	outcomeHit      = "hit"
	outcomeMiss     = "miss"
	outcomeEmpty    = "empty"
	outcomeInput    = "input_error"
	outcomeUpstream = "upstream_error"
)

type Service struct {
	store    cache.Cache
	hasher   *cache.Hasher
	upstream Upstream

	log     zerolog.Logger
	metrics Metrics
	history History

	sweepEvery int64
	requests   atomic.Int64

	coalesce bool
	flights  singleflight.Group
}

type Option func(*Service)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithHistory(h History) Option {
	return func(s *Service) { s.history = h }
}

// WithSweepEvery sweeps expired entries once per n requests instead of on
// every request. Values below 1 are treated as 1.
func WithSweepEvery(n int) Option {
	return func(s *Service) {
		if n < 1 {
			n = 1
		}
		s.sweepEvery = int64(n)
	}
}

// WithCoalescing makes concurrent misses on the same (fingerprint, variant)
// share a single upstream call.
func WithCoalescing(enabled bool) Option {
	return func(s *Service) { s.coalesce = enabled }
}

func New(store cache.Cache, hasher *cache.Hasher, upstream Upstream, opts ...Option) *Service {
	s := &Service{
		store:      store,
		hasher:     hasher,
		upstream:   upstream,
		log:        zerolog.Nop(),
		metrics:    nopMetrics{},
		sweepEvery: 1,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Stats exposes the underlying store statistics.
func (s *Service) Stats() cache.Stats {
	return s.store.Stats()
}

// Generate runs one request through the cache and, on a miss, the upstream.
func (s *Service) Generate(ctx context.Context, req Request) (*Response, error) {
	variant := strings.TrimSpace(req.Variant)
	imageURL := strings.TrimSpace(req.ImageURL)
	if len(req.Image) == 0 && imageURL == "" {
		s.metrics.RecordGeneration(variant, outcomeInput)
		return nil, inputError(ErrNoImage)
	}
	if variant == "" {
		s.metrics.RecordGeneration(variant, outcomeInput)
		return nil, inputError(ErrNoVariant)
	}

	s.maybeSweep()

	var fp, source string
	if len(req.Image) > 0 {
		fp = s.hasher.HashBytes(req.Image)
		source = req.Filename
	} else {
		fp = s.hasher.HashURL(imageURL)
		source = imageURL
	}
	cacheable := req.UseCache && !cache.IsFallback(fp)
	log := s.log.With().Str("fingerprint", fp).Str("variant", variant).Logger()

	if cacheable {
		if result, ok := s.store.Get(fp, variant); ok {
			log.Info().Msg("prompt served from cache")
			s.metrics.RecordGeneration(variant, outcomeHit)
			resp := &Response{Result: result, FromCache: true, Fingerprint: fp, CacheStats: s.store.Stats()}
			s.record(ctx, req.UserID, source, variant, resp)
			return resp, nil
		}
	}

	call := func(ctx context.Context) (string, error) {
		return s.generate(ctx, req, imageURL, fp, variant, cacheable)
	}

	var (
		result string
		err    error
	)
	if s.coalesce && cacheable {
		key := cache.KeyFor(fp, variant).String()
		// The shared call must not die with whichever caller started it.
		shared := context.WithoutCancel(ctx)
		v, ferr, sharedResult := s.flights.Do(key, func() (any, error) {
			return call(shared)
		})
		if sharedResult {
			s.metrics.RecordCoalesced()
		}
		result, _ = v.(string)
		err = ferr
	} else {
		result, err = call(ctx)
	}
	if err != nil {
		log.Error().Err(err).Msg("prompt generation failed")
		s.metrics.RecordGeneration(variant, outcomeUpstream)
		return nil, err
	}

	if result == "" {
		log.Warn().Msg("workflow returned an empty prompt, not caching")
		s.metrics.RecordGeneration(variant, outcomeEmpty)
	} else {
		s.metrics.RecordGeneration(variant, outcomeMiss)
	}

	resp := &Response{Result: result, FromCache: false, Fingerprint: fp, CacheStats: s.store.Stats()}
	if result != "" {
		s.record(ctx, req.UserID, source, variant, resp)
	}
	return resp, nil
}

// generate performs the upload + workflow pair exactly once and stores a
// non-empty result.
func (s *Service) generate(ctx context.Context, req Request, imageURL, fp, variant string, cacheable bool) (string, error) {
	img := coze.Image{Name: req.Filename, ContentType: req.ContentType, Data: req.Image}
	if len(req.Image) == 0 {
		start := time.Now()
		fetched, err := s.upstream.FetchImage(ctx, imageURL)
		s.metrics.RecordUpstream("fetch", time.Since(start), err)
		if err != nil {
			return "", upstreamError("failed to fetch image", err)
		}
		img = fetched
	}

	start := time.Now()
	fileID, err := s.upstream.Upload(ctx, img)
	s.metrics.RecordUpstream("upload", time.Since(start), err)
	if err != nil {
		return "", upstreamError("image upload failed", err)
	}

	start = time.Now()
	result, err := s.upstream.RunWorkflow(ctx, fileID, variant)
	s.metrics.RecordUpstream("workflow", time.Since(start), err)
	if err != nil {
		return "", upstreamError("workflow execution failed", err)
	}

	if cacheable && result != "" {
		s.store.Set(fp, variant, result)
	}
	return result, nil
}

func (s *Service) maybeSweep() {
	n := s.requests.Add(1)
	if (n-1)%s.sweepEvery != 0 {
		return
	}
	s.store.Sweep()
}

func (s *Service) record(ctx context.Context, userID, source, variant string, resp *Response) {
	if s.history == nil || userID == "" {
		return
	}
	err := s.history.Record(ctx, Record{
		UserID:      userID,
		Fingerprint: resp.Fingerprint,
		Variant:     variant,
		Source:      source,
		Prompt:      resp.Result,
		FromCache:   resp.FromCache,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("user", userID).Msg("failed to record prompt history")
	}
}

type nopMetrics struct{}

func (nopMetrics) RecordGeneration(string, string)             {}
func (nopMetrics) RecordUpstream(string, time.Duration, error) {}
func (nopMetrics) RecordCoalesced()                            {}
