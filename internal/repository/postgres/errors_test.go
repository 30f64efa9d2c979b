package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	apperrors "github.com/yourusername/exam-portal-api/internal/pkg/errors"
)

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind apperrors.Kind
		wantSame bool
	}{
		{"record not found", gorm.ErrRecordNotFound, apperrors.KindNotFound, false},
		{"bad conn", driver.ErrBadConn, apperrors.KindNetwork, false},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), apperrors.KindNetwork, false},
		{"pgx connection exception", &pgconn.PgError{Code: "08006"}, apperrors.KindNetwork, false},
		{"pq connection exception", &pq.Error{Code: "08001"}, apperrors.KindNetwork, false},
		{"constraint", &pgconn.PgError{Code: "23505"}, apperrors.KindInternal, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify("Repo.Op", tt.err)

			assert.Equal(t, tt.wantKind, apperrors.KindOf(got))
			if tt.wantSame {
				assert.Equal(t, tt.err, got)
			}
		})
	}

	assert.NoError(t, classify("Repo.Op", nil))
}

func TestAllowedPrevious(t *testing.T) {
	assert.Equal(t, []string{"pending"}, allowedPrevious("started"))
	assert.Equal(t, []string{"pending", "started"}, allowedPrevious("completed"))
	assert.Nil(t, allowedPrevious("pending"))
}
