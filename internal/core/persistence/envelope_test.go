package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope_SealOpenRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	env, err := NewEnvelope(key)
	require.NoError(t, err)

	sealed, err := env.Seal([]byte("snapshot bytes"))
	require.NoError(t, err)
	assert.NotEqual(t, []byte("snapshot bytes"), sealed)

	opened, err := env.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, []byte("snapshot bytes"), opened)
}

func TestEnvelope_RejectsWrongKeyLength(t *testing.T) {
	_, err := NewEnvelope(make([]byte, 16))
	require.Error(t, err)
}

func TestEnvelope_OpenRejectsTamperedCiphertext(t *testing.T) {
	key := make([]byte, 32)
	env, err := NewEnvelope(key)
	require.NoError(t, err)

	sealed, err := env.Seal([]byte("payload"))
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xFF

	_, err = env.Open(sealed)
	assert.Error(t, err)
}
