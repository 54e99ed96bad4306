package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// FallbackPrefix marks fingerprints produced when hashing failed. Such a
// fingerprint is unique per call and can never produce a cache hit.
const FallbackPrefix = "fallback_"

// DigestFunc computes a fingerprint over everything read from r.
type DigestFunc func(r io.Reader) (string, error)

// SHA256Hex is the default DigestFunc: lowercase hex SHA-256, 64 characters.
func SHA256Hex(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Hasher derives stable fingerprints for image content or image URLs.
// Hashing never fails from the caller's point of view: if the digest cannot
// be computed the Hasher logs, notifies its observer and returns a unique
// fallback token instead.
type Hasher struct {
	digest    DigestFunc
	now       func() time.Time
	log       zerolog.Logger
	observer  Observer
	fallbacks atomic.Int64
}

// HasherOption configures a Hasher.
type HasherOption func(*Hasher)

// WithDigest replaces the digest primitive.
func WithDigest(fn DigestFunc) HasherOption {
	return func(h *Hasher) {
		if fn != nil {
			h.digest = fn
		}
	}
}

// WithHashLogger sets the logger used to report degraded hashing.
func WithHashLogger(l zerolog.Logger) HasherOption {
	return func(h *Hasher) { h.log = l }
}

// WithHashObserver attaches an observer notified on every fallback.
func WithHashObserver(o Observer) HasherOption {
	return func(h *Hasher) {
		if o != nil {
			h.observer = o
		}
	}
}

// NewHasher creates a SHA-256 hasher.
func NewHasher(opts ...HasherOption) *Hasher {
	h := &Hasher{
		digest:   SHA256Hex,
		now:      time.Now,
		log:      zerolog.Nop(),
		observer: nopObserver{},
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// HashBytes fingerprints raw image content.
func (h *Hasher) HashBytes(content []byte) string {
	return h.HashReader(bytes.NewReader(content))
}

// HashURL fingerprints an image reference by its UTF-8 URL string, not by the
// bytes behind it. Two URLs serving the same picture get different keys.
func (h *Hasher) HashURL(ref string) string {
	return h.HashReader(strings.NewReader(ref))
}

// HashReader fingerprints everything readable from r.
func (h *Hasher) HashReader(r io.Reader) string {
	sum, err := h.digest(r)
	if err == nil && sum == "" {
		err = fmt.Errorf("cache: digest returned empty fingerprint")
	}
	if err != nil {
		return h.fallback(err)
	}
	return sum
}

// Fallbacks reports how many fingerprints were degraded to fallback tokens.
func (h *Hasher) Fallbacks() int64 {
	return h.fallbacks.Load()
}

func (h *Hasher) fallback(err error) string {
	h.fallbacks.Add(1)
	h.observer.HashFallback(err)
	token := fmt.Sprintf("%s%d_%s", FallbackPrefix, h.now().UnixMilli(), randomSuffix())
	h.log.Warn().Err(err).Str("fingerprint", token).Msg("image hashing failed, caching disabled for this request")
	return token
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// IsFallback reports whether fingerprint came from a failed hash.
func IsFallback(fingerprint string) bool {
	return strings.HasPrefix(fingerprint, FallbackPrefix)
}
