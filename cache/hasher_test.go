package cache

import (
	"bytes"
	"errors"
	"io"
	"regexp"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var hexDigest = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestHashBytesDeterministic(t *testing.T) {
	h := NewHasher()
	content := []byte("\x89PNG\r\n\x1a\n fake image body")

	first := h.HashBytes(content)
	for i := 0; i < 5; i++ {
		require.Equal(t, first, h.HashBytes(content))
	}
	require.Regexp(t, hexDigest, first)
	require.Zero(t, h.Fallbacks())
}

func TestHashBytesKnownVector(t *testing.T) {
	// sha256("abc")
	require.Equal(t,
		"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		NewHasher().HashBytes([]byte("abc")))
}

func TestHashBytesSingleByteChange(t *testing.T) {
	h := NewHasher()
	a := []byte("image-bytes-0")
	b := bytes.Clone(a)
	b[len(b)-1] = '1'

	require.NotEqual(t, h.HashBytes(a), h.HashBytes(b))
}

func TestHashURLUsesString(t *testing.T) {
	h := NewHasher()

	u1 := h.HashURL("https://example.com/cat.png")
	u2 := h.HashURL("https://example.com/cat.png")
	u3 := h.HashURL("https://cdn.example.com/cat.png")

	require.Equal(t, u1, u2)
	require.NotEqual(t, u1, u3, "different URLs are distinct entries even for identical pictures")
	require.Equal(t, h.HashBytes([]byte("https://example.com/cat.png")), u1)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestHashReaderFallbackOnReadError(t *testing.T) {
	obs := &countingObserver{}
	var logs bytes.Buffer
	h := NewHasher(WithHashObserver(obs), WithHashLogger(zerolog.New(&logs)))

	fp := h.HashReader(failingReader{})

	require.NotEmpty(t, fp)
	require.True(t, IsFallback(fp))
	require.Equal(t, int64(1), h.Fallbacks())
	require.Equal(t, 1, obs.fallbacks)
	require.Contains(t, logs.String(), "disk on fire")
}

func TestHashFallbackWhenPrimitiveUnavailable(t *testing.T) {
	unavailable := func(io.Reader) (string, error) {
		return "", errors.New("digest unavailable")
	}
	h := NewHasher(WithDigest(unavailable))

	a := h.HashBytes([]byte("same"))
	b := h.HashBytes([]byte("same"))

	require.NotEmpty(t, a)
	require.NotEmpty(t, b)
	require.True(t, IsFallback(a))
	require.NotEqual(t, a, b, "fallback tokens must be unique even within the same millisecond")
	require.Equal(t, int64(2), h.Fallbacks())
}

func TestHashFallbackOnEmptyDigest(t *testing.T) {
	h := NewHasher(WithDigest(func(io.Reader) (string, error) { return "", nil }))

	require.True(t, IsFallback(h.HashURL("https://example.com/a.png")))
}

func TestFallbackNeverHitsStore(t *testing.T) {
	h := NewHasher(WithDigest(func(io.Reader) (string, error) {
		return "", errors.New("unavailable")
	}))
	s := NewMemoryStore()

	fp := h.HashBytes([]byte("img"))
	s.Set(fp, "general", "prompt")

	_, ok := s.Get(h.HashBytes([]byte("img")), "general")
	require.False(t, ok)
}
