// Package auth signs and verifies passwordless sign-in links.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultLinkTTL is how long a sign-in link stays valid.
const DefaultLinkTTL = 30 * time.Minute

type MagicLink struct {
	Secret  []byte
	BaseURL string
	// Now is used for expiry checks; nil means time.Now.
	Now func() time.Time
}

var (
	ErrBadToken   = errors.New("bad token")
	ErrBadSig     = errors.New("invalid signature")
	ErrExpired    = errors.New("expired")
	ErrBadPayload = errors.New("bad payload")
)

func (m MagicLink) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m MagicLink) mac(msg []byte) []byte {
	mac := hmac.New(sha256.New, m.Secret)
	mac.Write(msg)
	return mac.Sum(nil)
}

// Sign returns payload.signature, both URL-safe base64 without padding.
func (m MagicLink) Sign(email string, exp time.Time) string {
	msg := []byte(strings.ToLower(strings.TrimSpace(email)) + "|" + strconv.FormatInt(exp.Unix(), 10))
	return base64.RawURLEncoding.EncodeToString(msg) + "." + base64.RawURLEncoding.EncodeToString(m.mac(msg))
}

// Verify returns the email a token was issued for.
func (m MagicLink) Verify(token string) (string, error) {
	payload, sig, ok := strings.Cut(token, ".")
	if !ok || payload == "" || sig == "" {
		return "", ErrBadToken
	}

	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", ErrBadToken
	}
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", ErrBadToken
	}
	if !hmac.Equal(got, m.mac(raw)) {
		return "", ErrBadSig
	}

	email, ts, ok := strings.Cut(string(raw), "|")
	if !ok {
		return "", ErrBadPayload
	}
	exp, err := strconv.ParseInt(ts, 10, 64)
	if err != nil || email == "" {
		return "", ErrBadPayload
	}
	if m.now().After(time.Unix(exp, 0)) {
		return "", ErrExpired
	}
	return email, nil
}

// URL builds the /auth/callback link for email.
func (m MagicLink) URL(email string, ttl time.Duration) (string, error) {
	u, err := url.Parse(m.BaseURL)
	if err != nil {
		return "", err
	}
	u.Path = "/auth/callback"
	q := u.Query()
	q.Set("token", m.Sign(email, m.now().Add(ttl)))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
