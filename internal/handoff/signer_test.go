package handoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type samplePayload struct {
	Email    string `json:"email"`
	IsMoodle bool   `json:"isMoodle"`
	Name     string `json:"name,omitempty"`
}

func TestSignAndParseRoundTrip(t *testing.T) {
	signer := NewSigner("secret")

	token, err := signer.Sign(samplePayload{Email: "ana@example.com", IsMoodle: true}, time.Hour)
	require.NoError(t, err)

	claims, err := signer.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "ana@example.com", claims["email"])
	require.Equal(t, true, claims["isMoodle"])
	require.NotContains(t, claims, "name")

	exp, err := claims.GetExpirationTime()
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Hour), exp.Time, 5*time.Second)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	signer := NewSigner("secret")
	signer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := signer.Sign(map[string]any{"isMoodle": true}, time.Hour)
	require.NoError(t, err)

	signer.now = time.Now
	_, err = signer.Parse(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsForeignSecret(t *testing.T) {
	token, err := NewSigner("secret").Sign(map[string]any{"isMoodle": true}, time.Hour)
	require.NoError(t, err)

	_, err = NewSigner("other").Parse(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestSignRejectsNonObjectPayload(t *testing.T) {
	_, err := NewSigner("secret").Sign([]string{"a"}, time.Hour)
	require.Error(t, err)
}
