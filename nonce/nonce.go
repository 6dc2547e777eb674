// Package nonce issues action-scoped anti-forgery tokens.
//
// A token is an HMAC over (tick, action, binding) where tick advances every
// half lifetime. A token verifies during the tick it was issued in and the
// following one, so its usable life is between half and one full lifetime.
package nonce

import (
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"time"
)

// Actions the gate issues tokens for.
const (
	ActionLoginRedirect = "login-redirect"
	ActionLoginSubmit   = "login-submit"
	ActionLogout        = "logout"
)

const (
	DefaultLifetime = 24 * time.Hour
	tokenBytes      = 10
)

// Signer computes a MAC over the concatenated parts.
type Signer interface {
	MAC(parts ...[]byte) ([]byte, error)
}

// Issuer creates and verifies tokens.
type Issuer struct {
	key      Signer
	lifetime time.Duration
	now      func() time.Time
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithLifetime sets the token lifetime.
func WithLifetime(d time.Duration) Option {
	return func(i *Issuer) {
		if d > 0 {
			i.lifetime = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		i.now = now
	}
}

// New returns an Issuer signing with key.
func New(key Signer, opts ...Option) *Issuer {
	i := &Issuer{
		key:      key,
		lifetime: DefaultLifetime,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Issuer) tick() int64 {
	half := int64(i.lifetime / 2 / time.Second)
	if half < 1 {
		half = 1
	}
	now := i.now().Unix()
	return (now + half - 1) / half
}

func (i *Issuer) token(tick int64, action, binding string) (string, error) {
	mac, err := i.key.MAC(
		[]byte(strconv.FormatInt(tick, 10)), []byte{0},
		[]byte(action), []byte{0},
		[]byte(binding),
	)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(mac[:tokenBytes]), nil
}

// Create returns a token for action. binding ties the token to a visitor
// identity (the operator name, or "" for anonymous visitors). An empty
// string is returned if the key is unusable; it never verifies.
func (i *Issuer) Create(action, binding string) string {
	t, err := i.token(i.tick(), action, binding)
	if err != nil {
		return ""
	}
	return t
}

// Verify reports whether token was issued for action and binding within
// the validity window.
func (i *Issuer) Verify(action, binding, token string) bool {
	if len(token) != hex.EncodedLen(tokenBytes) {
		return false
	}
	tick := i.tick()
	for _, candidate := range []int64{tick, tick - 1} {
		expected, err := i.token(candidate, action, binding)
		if err != nil {
			return false
		}
		if subtle.ConstantTimeCompare([]byte(expected), []byte(token)) == 1 {
			return true
		}
	}
	return false
}
