package redis

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"

	apperrors "github.com/yourusername/exam-portal-api/internal/pkg/errors"
)

func TestClassify(t *testing.T) {
	opErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}

	assert.NoError(t, classify("Get", nil))
	assert.ErrorIs(t, classify("Get", redis.Nil), apperrors.ErrNotFound)
	assert.True(t, apperrors.IsRetryable(classify("Get", opErr)))
	assert.True(t, apperrors.IsRetryable(classify("Set", context.DeadlineExceeded)))
	assert.True(t, apperrors.IsRetryable(classify("Set", redis.ErrClosed)))

	plain := errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")
	assert.Same(t, plain, classify("Get", plain))
}

func TestNewCacheRepo_NilClient(t *testing.T) {
	repo, err := NewCacheRepo(nil)

	assert.Nil(t, repo)
	assert.Error(t, err)
}
