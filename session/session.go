// Package session encodes and decodes the cookie that proves a visitor
// entered a term's password.
//
// The default codec stores {"term_id": N, "password": "<hash>"} where the
// hash is the term's stored password hash at issue time. Validity is
// re-derived on every request by comparing against the current hash, so
// changing a term's password is the only way to revoke its sessions. The
// signed codec keeps the same revocation model but never ships the hash to
// the client.
package session

import (
	"errors"
	"fmt"
	"time"
)

// Lifetime is how long an issued cookie lives (12 thirty-day months).
const Lifetime = 12 * 30 * 24 * time.Hour

// maxValueLen bounds the cookie value accepted by Decode.
const maxValueLen = 4096

// Codec modes.
const (
	ModePlain  = "plain"
	ModeSigned = "signed"
)

// ErrUnknownMode is returned by NewCodec for an unsupported mode.
var ErrUnknownMode = errors.New("unknown session mode")

// Token is a decoded session claim. Credential is compared against
// Codec.Bind of the term's current hash.
type Token struct {
	TermID     int64
	Credential string
}

// Codec converts between tokens and cookie values.
type Codec interface {
	// Encode returns a URL-safe cookie value for termID holding the
	// credential bound to hash.
	Encode(termID int64, hash string) (string, error)
	// Decode parses a cookie value. Any malformed input yields false.
	Decode(value string) (Token, bool)
	// Bind maps a stored hash to the credential a valid token carries.
	Bind(hash string) string
}

// Signer computes a MAC over the concatenated parts.
type Signer interface {
	MAC(parts ...[]byte) ([]byte, error)
}

// NewCodec returns the codec for mode. key is required for ModeSigned.
func NewCodec(mode string, key Signer) (Codec, error) {
	switch mode {
	case "", ModePlain:
		return PlainCodec{}, nil
	case ModeSigned:
		if key == nil {
			return nil, fmt.Errorf("%s session mode requires a signing key", ModeSigned)
		}
		return NewSignedCodec(key), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}
