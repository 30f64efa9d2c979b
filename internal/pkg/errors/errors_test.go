package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf_TaggedAndWrapped(t *testing.T) {
	base := E(KindExpired, "CredentialService.ValidateCredentials", "credential expired", nil)
	wrapped := fmt.Errorf("login: %w", base)

	assert.Equal(t, KindExpired, KindOf(base))
	assert.Equal(t, KindExpired, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindExpired))
	assert.False(t, IsRetryable(wrapped))
}

func TestKindOf_LegacySentinels(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{fmt.Errorf("x: %w", ErrNotFound), KindNotFound},
		{ErrValidation, KindValidation},
		{ErrExpiredToken, KindExpired},
		{ErrUnauthorized, KindInvalidCredentials},
		{ErrForbidden, KindRestricted},
		{ErrConflict, KindAlreadyCompleted},
		{errors.New("boom"), KindInternal},
		{nil, KindInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.err), "err=%v", tt.err)
	}
}

func TestError_UnwrapKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := E(KindNetwork, "CredentialRepo.FindFirst", "", cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsRetryable(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestDescribe_Categories(t *testing.T) {
	tests := []struct {
		kind     Kind
		category string
	}{
		{KindNetwork, CategoryConnection},
		{KindExpired, CategoryExpired},
		{KindInvalidCredentials, CategoryInvalidCredentials},
		{KindNotFound, CategoryNotFound},
		{KindAlreadyCompleted, CategoryRestricted},
		{KindRestricted, CategoryRestricted},
		{KindInternal, CategoryGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			d := Describe(E(tt.kind, "op", "", nil))
			assert.Equal(t, tt.category, d.Category)
			assert.NotEmpty(t, d.Suggestion)
		})
	}

	assert.Equal(t, CategoryGeneric, Describe(errors.New("unrecognized")).Category)
}
