package cryptox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSecretBoxRoundTrip(t *testing.T) {
	box, err := NewSecretBox([]byte(strings.Repeat("k", 32)))
	require.NoError(t, err)

	sealed, err := box.Seal("rdp-credential")
	require.NoError(t, err)
	require.NotContains(t, sealed, "rdp-credential")

	opened, err := box.Open(sealed)
	require.NoError(t, err)
	require.Equal(t, "rdp-credential", opened)
}

func TestSecretBoxRejectsShortKey(t *testing.T) {
	_, err := NewSecretBox([]byte("short"))
	require.Error(t, err)
}

func TestSecretBoxWrongKeyFails(t *testing.T) {
	box1, err := NewSecretBox([]byte(strings.Repeat("a", 32)))
	require.NoError(t, err)
	box2, err := NewSecretBox([]byte(strings.Repeat("b", 32)))
	require.NoError(t, err)

	sealed, err := box1.Seal("payload")
	require.NoError(t, err)

	_, err = box2.Open(sealed)
	require.Error(t, err)
}

func TestSecretBoxTamperedCiphertextFails(t *testing.T) {
	box, err := NewSecretBox([]byte(strings.Repeat("k", 32)))
	require.NoError(t, err)

	sealed, err := box.Seal("payload")
	require.NoError(t, err)

	tampered := []byte(sealed)
	if tampered[len(tampered)-1] == 'f' {
		tampered[len(tampered)-1] = '0'
	} else {
		tampered[len(tampered)-1] = 'f'
	}

	_, err = box.Open(string(tampered))
	require.Error(t, err)
}
