package storage

import (
	"encoding/json"
	"fmt"

	"github.com/runthings/termgate/internal/util"
)

const (
	SchemeAES256GCM = "aes256gcm"
	SchemePlainJSON = "plain-json"
)

// Envelope is a stored record. Sealed envelopes carry AES-256-GCM
// ciphertext; plain-json envelopes carry the JSON document in Ciphertext.
type Envelope struct {
	Ver        int    `json:"ver"`
	Scheme     string `json:"scheme"`
	Nonce      []byte `json:"nonce,omitempty"`
	Ciphertext []byte `json:"ciphertext"`
}

// SealRecord encrypts plaintext into an Envelope using the given record key and AAD.
func SealRecord(recordKey, plaintext, aad []byte) (*Envelope, error) {
	cipher, err := util.EncryptAESWithAAD(plaintext, recordKey, aad)
	if err != nil {
		return nil, err
	}

	// util.EncryptAESWithAAD returns nonce || ciphertext.
	return &Envelope{
		Ver:        1,
		Scheme:     SchemeAES256GCM,
		Nonce:      cipher[:12],
		Ciphertext: cipher[12:],
	}, nil
}

// OpenRecord decrypts an Envelope using the given record key and AAD.
func OpenRecord(recordKey []byte, envelope *Envelope, aad []byte) ([]byte, error) {
	if envelope.Ver != 1 {
		return nil, fmt.Errorf("unsupported envelope version: %d", envelope.Ver)
	}
	if envelope.Scheme != SchemeAES256GCM {
		return nil, fmt.Errorf("unsupported envelope scheme: %s", envelope.Scheme)
	}

	// Reconstruct nonce || ciphertext without mutating envelope fields.
	fullCipher := make([]byte, len(envelope.Nonce)+len(envelope.Ciphertext))
	copy(fullCipher, envelope.Nonce)
	copy(fullCipher[len(envelope.Nonce):], envelope.Ciphertext)

	return util.DecryptAESWithAAD(fullCipher, recordKey, aad)
}

// PutJSON stores v as a plain-json envelope.
func PutJSON(repo Repository, namespace, recordType, recordID string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s/%s: %w", recordType, recordID, err)
	}
	return repo.Put(namespace, recordType, recordID, &Envelope{
		Ver:        1,
		Scheme:     SchemePlainJSON,
		Ciphertext: data,
	})
}

// GetJSON loads a plain-json envelope into v.
func GetJSON(repo Repository, namespace, recordType, recordID string, v any) error {
	env, err := repo.Get(namespace, recordType, recordID)
	if err != nil {
		return err
	}
	if env.Scheme != SchemePlainJSON {
		return fmt.Errorf("%s/%s: unexpected envelope scheme %q", recordType, recordID, env.Scheme)
	}
	if err := json.Unmarshal(env.Ciphertext, v); err != nil {
		return fmt.Errorf("decoding %s/%s: %w", recordType, recordID, err)
	}
	return nil
}
