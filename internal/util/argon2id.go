package util

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ErrInvalidArgon2idHash is returned when an encoded hash cannot be parsed.
var ErrInvalidArgon2idHash = errors.New("invalid argon2id hash")

const argon2idSaltLen = 16

type Argon2idParams struct {
	Time        uint32 `json:"time" mapstructure:"time"`
	MemoryKiB   uint32 `json:"memory" mapstructure:"memory"`
	Parallelism uint8  `json:"parallelism" mapstructure:"parallelism"`
	KeyLen      uint32 `json:"key_len" mapstructure:"key_len"`
}

func DefaultArgon2idParams() Argon2idParams {
	return Argon2idParams{
		Time:        3,
		MemoryKiB:   64 * 1024,
		Parallelism: 2,
		KeyLen:      32,
	}
}

// ValidateArgon2idParams rejects parameter sets too weak to be useful.
func ValidateArgon2idParams(params Argon2idParams) error {
	switch {
	case params.Time < 1:
		return fmt.Errorf("argon2id time must be at least 1")
	case params.MemoryKiB < 8*1024:
		return fmt.Errorf("argon2id memory must be at least 8192 KiB")
	case params.Parallelism < 1:
		return fmt.Errorf("argon2id parallelism must be at least 1")
	case params.KeyLen < 16:
		return fmt.Errorf("argon2id key length must be at least 16 bytes")
	}
	return nil
}

func DeriveArgon2idKey(passphrase string, salt []byte, params Argon2idParams) ([]byte, error) {
	if err := ValidateArgon2idParams(params); err != nil {
		return nil, err
	}
	key := argon2.IDKey([]byte(passphrase), salt, params.Time, params.MemoryKiB, params.Parallelism, params.KeyLen)
	return key, nil
}

// HashArgon2id derives a key from passphrase with a fresh random salt and
// returns it in the $argon2id$v=19$m=..,t=..,p=..$salt$key form.
func HashArgon2id(passphrase string, params Argon2idParams) (string, error) {
	salt, err := RandomBytes(argon2idSaltLen)
	if err != nil {
		return "", err
	}
	key, err := DeriveArgon2idKey(passphrase, salt, params)
	if err != nil {
		return "", err
	}
	defer WipeBytes(key)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		params.MemoryKiB,
		params.Time,
		params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyArgon2id reports whether passphrase matches the encoded hash.
// The comparison of derived keys is constant-time.
func VerifyArgon2id(passphrase, encoded string) (bool, error) {
	params, salt, expected, err := DecodeArgon2id(encoded)
	if err != nil {
		return false, err
	}
	key := argon2.IDKey([]byte(passphrase), salt, params.Time, params.MemoryKiB, params.Parallelism, params.KeyLen)
	defer WipeBytes(key)
	return subtle.ConstantTimeCompare(key, expected) == 1, nil
}

// DecodeArgon2id splits an encoded hash into its parameters, salt and key.
func DecodeArgon2id(encoded string) (Argon2idParams, []byte, []byte, error) {
	var params Argon2idParams
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return params, nil, nil, ErrInvalidArgon2idHash
	}
	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return params, nil, nil, ErrInvalidArgon2idHash
	}
	for _, kv := range strings.Split(parts[3], ",") {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return params, nil, nil, ErrInvalidArgon2idHash
		}
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return params, nil, nil, ErrInvalidArgon2idHash
		}
		switch name {
		case "m":
			params.MemoryKiB = uint32(n)
		case "t":
			params.Time = uint32(n)
		case "p":
			if n > 255 {
				return params, nil, nil, ErrInvalidArgon2idHash
			}
			params.Parallelism = uint8(n)
		default:
			return params, nil, nil, ErrInvalidArgon2idHash
		}
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return params, nil, nil, ErrInvalidArgon2idHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return params, nil, nil, ErrInvalidArgon2idHash
	}
	params.KeyLen = uint32(len(key))
	if err := ValidateArgon2idParams(params); err != nil {
		return params, nil, nil, ErrInvalidArgon2idHash
	}
	return params, salt, key, nil
}
