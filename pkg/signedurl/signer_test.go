package signedurl

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignerGenerateAndParse(t *testing.T) {
	signer := NewSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("cert-1", "CERT-ABC123")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.False(t, expiresAt.IsZero())

	claims, err := signer.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "cert-1", claims.CertificateID)
	require.Equal(t, "CERT-ABC123", claims.Code)
	require.True(t, expiresAt.Equal(claims.ExpiresAt))
}

func TestSignerExpired(t *testing.T) {
	now := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	signer := NewSigner("secret", time.Minute)
	signer.now = func() time.Time { return now }
	token, _, err := signer.Generate("cert-1", "CERT-ABC123")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	claims, err := signer.Parse(token)
	require.ErrorIs(t, err, ErrExpiredToken)
	require.Equal(t, "cert-1", claims.CertificateID)
}

func TestSignerRejectsTampering(t *testing.T) {
	signer := NewSigner("secret", time.Hour)
	token, _, err := signer.Generate("cert-1", "CERT-ABC123")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	parts[1] = "9999999999"
	_, err = signer.Parse(strings.Join(parts, "."))
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewSigner("other", time.Hour).Parse(token)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = signer.Parse("garbage")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestSignerRequiresSecret(t *testing.T) {
	_, _, err := NewSigner("", time.Hour).Generate("cert-1", "CERT-1")
	require.Error(t, err)
}
