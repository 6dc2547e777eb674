// Package credential stores one password hash per access-control term.
//
// Hashes are argon2id in the PHC string form. Plaintext passwords are
// normalised, hashed and discarded; they are never persisted or logged.
package credential

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/runthings/termgate/internal/util"
	"github.com/runthings/termgate/storage"
)

const (
	namespace  = "credentials"
	recordType = "TERM_HASH"
)

// ErrEmptyPassword is returned by SetHash for an empty plaintext.
var ErrEmptyPassword = errors.New("password is empty")

type hashRecord struct {
	Hash      string    `json:"hash"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store maps term ids to password hashes.
type Store struct {
	repo   storage.Repository
	params util.Argon2idParams
}

// Option configures a Store.
type Option func(*Store)

// WithArgon2idParams overrides the hashing cost used for new hashes.
// Existing hashes keep the parameters they were created with.
func WithArgon2idParams(params util.Argon2idParams) Option {
	return func(s *Store) {
		s.params = params
	}
}

// New returns a Store backed by repo.
func New(repo storage.Repository, opts ...Option) *Store {
	s := &Store{
		repo:   repo,
		params: util.DefaultArgon2idParams(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hash returns the stored hash for termID, or "" when no password is set.
func (s *Store) Hash(termID int64) (string, error) {
	var rec hashRecord
	err := storage.GetJSON(s.repo, namespace, recordType, strconv.FormatInt(termID, 10), &rec)
	if storage.IsNotFound(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("loading hash for term %d: %w", termID, err)
	}
	return rec.Hash, nil
}

// SetHash hashes plaintext and stores it for termID. It is a no-op when
// plaintext already verifies against the stored hash, so re-saving the same
// password does not rotate the hash and does not sign visitors out.
func (s *Store) SetHash(termID int64, plaintext string) error {
	if plaintext == "" {
		return ErrEmptyPassword
	}
	if ok, err := s.Verify(termID, plaintext); err == nil && ok {
		return nil
	}
	hash, err := util.HashArgon2id(util.Normalize(plaintext), s.params)
	if err != nil {
		return fmt.Errorf("hashing password for term %d: %w", termID, err)
	}
	rec := hashRecord{Hash: hash, UpdatedAt: time.Now().UTC()}
	if err := storage.PutJSON(s.repo, namespace, recordType, strconv.FormatInt(termID, 10), rec); err != nil {
		return fmt.Errorf("storing hash for term %d: %w", termID, err)
	}
	return nil
}

// Verify reports whether plaintext matches the stored hash for termID.
// A term without a hash never verifies.
func (s *Store) Verify(termID int64, plaintext string) (bool, error) {
	hash, err := s.Hash(termID)
	if err != nil {
		return false, err
	}
	return VerifyHash(hash, plaintext)
}

// VerifyHash checks plaintext against an encoded hash. An empty hash or
// empty plaintext is always a mismatch.
func VerifyHash(hash, plaintext string) (bool, error) {
	if hash == "" || plaintext == "" {
		return false, nil
	}
	ok, err := util.VerifyArgon2id(util.Normalize(plaintext), hash)
	if err != nil {
		return false, fmt.Errorf("verifying password: %w", err)
	}
	return ok, nil
}

// Clear removes the password for termID. Content tagged with the term is
// unreachable until a new password is set.
func (s *Store) Clear(termID int64) error {
	err := s.repo.Delete(namespace, recordType, strconv.FormatInt(termID, 10))
	if err != nil && !storage.IsNotFound(err) {
		return fmt.Errorf("clearing hash for term %d: %w", termID, err)
	}
	return nil
}
