package cryptox

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewTokenID(t *testing.T) {
	t.Parallel()

	a, err := NewTokenID()
	require.NoError(t, err)
	b, err := NewTokenID()
	require.NoError(t, err)

	require.NotEqual(t, a, b)

	raw, err := base64.RawURLEncoding.DecodeString(a)
	require.NoError(t, err)
	require.Len(t, raw, TokenIDSize)
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	fp := Fingerprint("some-access-token")
	require.Equal(t, fp, Fingerprint("some-access-token"))
	require.NotEqual(t, fp, Fingerprint("some-other-token"))

	// SHA-256 digest is 32 bytes -> 43 base64url chars without padding.
	require.Len(t, fp, 43)
}
