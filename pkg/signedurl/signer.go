// Package signedurl issues short-lived HMAC tokens for certificate downloads.
package signedurl

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidToken reports a malformed or tampered token.
	ErrInvalidToken = errors.New("invalid download token")
	// ErrExpiredToken reports a token whose expiry has passed.
	ErrExpiredToken = errors.New("download token expired")
)

// Claims are the values carried inside a download token.
type Claims struct {
	CertificateID string
	Code          string
	ExpiresAt     time.Time
}

// Signer creates and validates signed download tokens.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner constructs a signer with the provided secret and TTL.
func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL returns how long generated tokens stay valid.
func (s *Signer) TTL() time.Duration { return s.ttl }

// Generate returns a token bound to the certificate id and its code.
func (s *Signer) Generate(certificateID, code string) (string, time.Time, error) {
	if certificateID == "" || code == "" {
		return "", time.Time{}, fmt.Errorf("certificateID and code required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).UTC().Truncate(time.Second)
	encodedID := base64.RawURLEncoding.EncodeToString([]byte(certificateID))
	encodedCode := base64.RawURLEncoding.EncodeToString([]byte(code))
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	signature := s.sign(encodedID, ts, encodedCode)
	return strings.Join([]string{encodedID, ts, encodedCode, signature}, "."), expiresAt, nil
}

// Parse validates a token and returns the embedded claims.
func (s *Signer) Parse(token string) (Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return Claims{}, ErrInvalidToken
	}
	encodedID, ts, encodedCode, signature := parts[0], parts[1], parts[2], parts[3]

	expected := s.sign(encodedID, ts, encodedCode)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return Claims{}, ErrInvalidToken
	}
	rawID, err := base64.RawURLEncoding.DecodeString(encodedID)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	rawCode, err := base64.RawURLEncoding.DecodeString(encodedCode)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	claims := Claims{CertificateID: string(rawID), Code: string(rawCode), ExpiresAt: time.Unix(expUnix, 0).UTC()}
	if s.now().After(claims.ExpiresAt) {
		return claims, ErrExpiredToken
	}
	return claims, nil
}

func (s *Signer) sign(encodedID, ts, encodedCode string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(encodedID + "|" + ts + "|" + encodedCode))
	return hex.EncodeToString(mac.Sum(nil))
}
