package keyring

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runthings/termgate/storage/memory"
)

func wrapping(b byte) []byte {
	return bytes.Repeat([]byte{b}, 32)
}

func TestLoadOrCreateIsStable(t *testing.T) {
	repo := memory.NewRepository()

	k1, err := LoadOrCreate(repo, "nonce", wrapping(1))
	require.NoError(t, err)
	mac1, err := k1.MAC([]byte("login-submit"))
	require.NoError(t, err)

	k2, err := LoadOrCreate(repo, "nonce", wrapping(1))
	require.NoError(t, err)
	mac2, err := k2.MAC([]byte("login-submit"))
	require.NoError(t, err)

	assert.Equal(t, mac1, mac2)
	assert.Equal(t, "nonce", k2.Name())
}

func TestKeysAreIndependentByName(t *testing.T) {
	repo := memory.NewRepository()
	a, err := LoadOrCreate(repo, "nonce", wrapping(1))
	require.NoError(t, err)
	b, err := LoadOrCreate(repo, "session", wrapping(1))
	require.NoError(t, err)

	macA, err := a.MAC([]byte("x"))
	require.NoError(t, err)
	macB, err := b.MAC([]byte("x"))
	require.NoError(t, err)
	assert.NotEqual(t, macA, macB)
}

func TestChangedWrappingKeyRegenerates(t *testing.T) {
	repo := memory.NewRepository()
	k1, err := LoadOrCreate(repo, "nonce", wrapping(1))
	require.NoError(t, err)
	mac1, err := k1.MAC([]byte("x"))
	require.NoError(t, err)

	k2, err := LoadOrCreate(repo, "nonce", wrapping(2))
	require.NoError(t, err)
	mac2, err := k2.MAC([]byte("x"))
	require.NoError(t, err)
	assert.NotEqual(t, mac1, mac2)

	k3, err := LoadOrCreate(repo, "nonce", wrapping(2))
	require.NoError(t, err)
	mac3, err := k3.MAC([]byte("x"))
	require.NoError(t, err)
	assert.Equal(t, mac2, mac3)
}

func TestWrappingKeyLength(t *testing.T) {
	_, err := LoadOrCreate(memory.NewRepository(), "nonce", []byte("short"))
	assert.Error(t, err)
}

func TestEphemeral(t *testing.T) {
	a := Ephemeral("nonce")
	b := Ephemeral("nonce")
	macA, err := a.MAC([]byte("x"))
	require.NoError(t, err)
	macB, err := b.MAC([]byte("x"))
	require.NoError(t, err)
	assert.Len(t, macA, 32)
	assert.NotEqual(t, macA, macB)
}
