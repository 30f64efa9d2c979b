package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService(t *testing.T) *JWTService {
	t.Helper()
	s, err := NewJWTService("0123456789abcdef-test-secret", 2, 30)
	require.NoError(t, err)
	return s
}

func TestNewJWTService_ShortSecret(t *testing.T) {
	_, err := NewJWTService("short", 1, 1)
	assert.Error(t, err)
}

func TestExamToken_RoundTrip(t *testing.T) {
	s := newTestJWTService(t)

	token, err := s.GenerateExamToken(ExamClaims{CredentialID: 9, UserID: 4, ExamID: 12, TestType: "reliability"}, nil)
	require.NoError(t, err)

	claims, err := s.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(9), claims.CredentialID)
	assert.Equal(t, uint(12), claims.ExamID)
	assert.Equal(t, UsageExamSession, claims.Usage)

	userID, sessionID := claims.Identity()
	assert.Equal(t, "4", userID)
	assert.Empty(t, sessionID)
}

func TestExamToken_CappedByAccessExpiry(t *testing.T) {
	s := newTestJWTService(t)
	expiresAt := time.Now().Add(10 * time.Minute)

	token, err := s.GenerateExamToken(ExamClaims{ExamID: 1}, &expiresAt)
	require.NoError(t, err)

	claims, err := s.ParseToken(token)
	require.NoError(t, err)
	assert.WithinDuration(t, expiresAt, claims.ExpiresAt.Time, time.Second)

	past := time.Now().Add(-time.Minute)
	_, err = s.GenerateExamToken(ExamClaims{ExamID: 1}, &past)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestParseToken_Expired(t *testing.T) {
	s := newTestJWTService(t)
	issued := time.Now().Add(-3 * time.Hour)
	s.now = func() time.Time { return issued }

	token, err := s.GenerateExamToken(ExamClaims{ExamID: 1}, nil)
	require.NoError(t, err)

	s.now = time.Now
	_, err = s.ParseToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestParseToken_UsageIsEnforced(t *testing.T) {
	s := newTestJWTService(t)

	ticket, err := s.GenerateWSTicket(&ExamClaims{ExamID: 3, SessionID: "0b8a5d8e-6c0b-4b43-9d1c-6f5f2f9c8a11"})
	require.NoError(t, err)

	_, err = s.ParseToken(ticket)
	assert.ErrorIs(t, err, ErrTokenUsage)

	claims, err := s.ParseWSTicket(ticket)
	require.NoError(t, err)
	require.NotNil(t, claims.SessionUUID())
	assert.Equal(t, "0b8a5d8e-6c0b-4b43-9d1c-6f5f2f9c8a11", claims.SessionUUID().String())
}

func TestParseToken_WrongSecret(t *testing.T) {
	s := newTestJWTService(t)
	other, err := NewJWTService("another-secret-of-enough-length", 2, 30)
	require.NoError(t, err)

	token, err := other.GenerateExamToken(ExamClaims{ExamID: 1}, nil)
	require.NoError(t, err)

	_, err = s.ParseToken(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
	_, err = s.ParseToken("not-a-token")
	assert.ErrorIs(t, err, ErrTokenMalformed)
}
