package session

import (
	"crypto/hmac"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	bindLabel = []byte("termgate:bind\x00")
	signLabel = []byte("termgate:sign\x00")
)

type signedClaim struct {
	TermID     int64  `json:"t"`
	Credential string `json:"c"`
	Expires    int64  `json:"e"`
}

// SignedCodec issues "<payload>.<mac>" values. The payload carries an HMAC
// of the hash rather than the hash itself, plus an expiry.
type SignedCodec struct {
	key      Signer
	lifetime time.Duration
	now      func() time.Time
}

var _ Codec = (*SignedCodec)(nil)

// SignedOption configures a SignedCodec.
type SignedOption func(*SignedCodec)

// WithSignedClock overrides the time source.
func WithSignedClock(now func() time.Time) SignedOption {
	return func(c *SignedCodec) {
		c.now = now
	}
}

// NewSignedCodec returns a codec signing with key.
func NewSignedCodec(key Signer, opts ...SignedOption) *SignedCodec {
	c := &SignedCodec{key: key, lifetime: Lifetime, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *SignedCodec) Bind(hash string) string {
	if hash == "" {
		return ""
	}
	mac, err := c.key.MAC(bindLabel, []byte(hash))
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(mac)
}

func (c *SignedCodec) Encode(termID int64, hash string) (string, error) {
	data, err := json.Marshal(signedClaim{
		TermID:     termID,
		Credential: c.Bind(hash),
		Expires:    c.now().Add(c.lifetime).Unix(),
	})
	if err != nil {
		return "", err
	}
	payload := base64.RawURLEncoding.EncodeToString(data)
	mac, err := c.key.MAC(signLabel, []byte(payload))
	if err != nil {
		return "", err
	}
	return payload + "." + base64.RawURLEncoding.EncodeToString(mac), nil
}

func (c *SignedCodec) Decode(value string) (Token, bool) {
	if value == "" || len(value) > maxValueLen || !utf8.ValidString(value) {
		return Token{}, false
	}
	payload, sig, ok := strings.Cut(value, ".")
	if !ok {
		return Token{}, false
	}
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return Token{}, false
	}
	want, err := c.key.MAC(signLabel, []byte(payload))
	if err != nil || !hmac.Equal(got, want) {
		return Token{}, false
	}
	data, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return Token{}, false
	}
	var claim signedClaim
	if err := json.Unmarshal(data, &claim); err != nil {
		return Token{}, false
	}
	if claim.TermID <= 0 || claim.Credential == "" || c.now().Unix() >= claim.Expires {
		return Token{}, false
	}
	return Token{TermID: claim.TermID, Credential: claim.Credential}, true
}
