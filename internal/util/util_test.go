package util

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAES(t *testing.T) {
	key, err := NewAESKey()
	require.NoError(t, err)
	plainText := []byte("hello world")
	aad := []byte("context")

	t.Run("EncryptDecryptWithAAD", func(t *testing.T) {
		cipherText, err := EncryptAESWithAAD(plainText, key, aad)
		if err != nil {
			t.Fatalf("EncryptAESWithAAD failed: %v", err)
		}

		decrypted, err := DecryptAESWithAAD(cipherText, key, aad)
		if err != nil {
			t.Fatalf("DecryptAESWithAAD failed: %v", err)
		}

		if !bytes.Equal(plainText, decrypted) {
			t.Errorf("expected %s, got %s", plainText, decrypted)
		}
	})

	t.Run("TamperAAD", func(t *testing.T) {
		cipherText, _ := EncryptAESWithAAD(plainText, key, aad)
		_, err := DecryptAESWithAAD(cipherText, key, []byte("wrong context"))
		if err == nil {
			t.Error("expected error with wrong AAD, got nil")
		}
	})

	t.Run("TamperCipherText", func(t *testing.T) {
		cipherText, _ := EncryptAESWithAAD(plainText, key, aad)
		cipherText[len(cipherText)-1] ^= 0xFF
		_, err := DecryptAESWithAAD(cipherText, key, aad)
		if err == nil {
			t.Error("expected error with tampered ciphertext, got nil")
		}
	})

	t.Run("RejectBadKeySize", func(t *testing.T) {
		_, err := EncryptAESWithAAD(plainText, []byte("too short"), aad)
		if err == nil {
			t.Error("expected error with wrong key size, got nil")
		}
	})

	t.Run("ShortCipherText", func(t *testing.T) {
		_, err := DecryptAESWithAAD([]byte("short"), key, aad)
		assert.Error(t, err)
	})
}

// fastParams keeps the test suite quick while staying within the validated floor.
func fastParams() Argon2idParams {
	return Argon2idParams{Time: 1, MemoryKiB: 8 * 1024, Parallelism: 1, KeyLen: 32}
}

func TestArgon2id(t *testing.T) {
	encoded, err := HashArgon2id("harvest25", fastParams())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=8192,t=1,p=1$"))

	ok, err := VerifyArgon2id("harvest25", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyArgon2id("wrong", encoded)
	require.NoError(t, err)
	assert.False(t, ok)

	again, err := HashArgon2id("harvest25", fastParams())
	require.NoError(t, err)
	assert.NotEqual(t, encoded, again, "salt must differ between hashes")
}

func TestVerifyArgon2idRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"plain",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=16$m=8192,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=8192,t=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=8192,t=1,p=999$c2FsdA$a2V5",
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$a2V5",
		"$argon2id$v=19$m=8192,t=1,p=1$c2FsdA$a2V5",
	}
	for _, c := range cases {
		ok, err := VerifyArgon2id("anything", c)
		assert.False(t, ok, c)
		assert.ErrorIs(t, err, ErrInvalidArgon2idHash, c)
	}
}

func TestValidateArgon2idParams(t *testing.T) {
	assert.NoError(t, ValidateArgon2idParams(DefaultArgon2idParams()))
	assert.Error(t, ValidateArgon2idParams(Argon2idParams{Time: 0, MemoryKiB: 65536, Parallelism: 1, KeyLen: 32}))
	assert.Error(t, ValidateArgon2idParams(Argon2idParams{Time: 1, MemoryKiB: 1024, Parallelism: 1, KeyLen: 32}))
	assert.Error(t, ValidateArgon2idParams(Argon2idParams{Time: 1, MemoryKiB: 65536, Parallelism: 0, KeyLen: 32}))
	assert.Error(t, ValidateArgon2idParams(Argon2idParams{Time: 1, MemoryKiB: 65536, Parallelism: 1, KeyLen: 8}))
}

func TestNormalize(t *testing.T) {
	composed := "caf\u00e9"
	decomposed := "cafe\u0301"
	assert.NotEqual(t, composed, decomposed)
	assert.Equal(t, Normalize(composed), Normalize(decomposed))
}

func TestWipeBytes(t *testing.T) {
	src := []byte{1, 2, 3}
	WipeBytes(src)
	assert.Equal(t, []byte{0, 0, 0}, src)
}

func TestRandomBytes(t *testing.T) {
	a, err := RandomBytes(16)
	require.NoError(t, err)
	b, err := RandomBytes(16)
	require.NoError(t, err)
	assert.Len(t, a, 16)
	assert.NotEqual(t, a, b)
}

func TestHex(t *testing.T) {
	b, err := HexDecode(HexEncode([]byte("gate")))
	require.NoError(t, err)
	assert.Equal(t, []byte("gate"), b)
}
