package examaccess

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/yourusername/exam-portal-api/internal/domain/entity"
)

func TestAccessExpired_AllDeadlineCombinations(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	deadlines := map[string]*time.Time{
		"absent": nil,
		"past":   &past,
		"future": &future,
	}

	for examName, examClose := range deadlines {
		for credName, credExpiry := range deadlines {
			t.Run("exam_"+examName+"/credential_"+credName, func(t *testing.T) {
				exam := &entity.Exam{FechaCierre: examClose}
				cred := &entity.Credential{ExpiresAt: credExpiry}

				want := ExamExpired(exam, now) || CredentialExpired(cred, now)
				assert.Equal(t, want, AccessExpired(exam, cred, now))
				assert.Equal(t, examName == "past" || credName == "past", AccessExpired(exam, cred, now))
			})
		}
	}
}

func TestAccessExpired_NilArguments(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)

	assert.False(t, AccessExpired(nil, nil, now))
	assert.True(t, AccessExpired(nil, &entity.Credential{ExpiresAt: &past}, now))
	assert.True(t, AccessExpired(&entity.Exam{FechaCierre: &past}, nil, now))
}

func TestExamExpired_BoundaryIsExclusive(t *testing.T) {
	closeAt := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	exam := &entity.Exam{FechaCierre: &closeAt}

	assert.False(t, ExamExpired(exam, closeAt))
	assert.True(t, ExamExpired(exam, closeAt.Add(time.Nanosecond)))
}

func TestEffectiveExpiration(t *testing.T) {
	early := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(48 * time.Hour)

	tests := []struct {
		name       string
		examClose  *time.Time
		credExpiry *time.Time
		want       *time.Time
	}{
		{"both absent", nil, nil, nil},
		{"only exam", &late, nil, &late},
		{"only credential", nil, &early, &early},
		{"credential earlier", &late, &early, &early},
		{"exam earlier", &early, &late, &early},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EffectiveExpiration(&entity.Exam{FechaCierre: tt.examClose}, &entity.Credential{ExpiresAt: tt.credExpiry})
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			if assert.NotNil(t, got) {
				assert.True(t, tt.want.Equal(*got))
			}
		})
	}
}

func TestEffectiveExpiration_ReturnsCopy(t *testing.T) {
	deadline := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	exam := &entity.Exam{FechaCierre: &deadline}

	got := EffectiveExpiration(exam, nil)
	*got = got.Add(time.Hour)

	assert.True(t, exam.FechaCierre.Equal(deadline))
}

func TestExamOpen(t *testing.T) {
	now := time.Now()
	later := now.Add(time.Hour)
	earlier := now.Add(-time.Hour)

	assert.True(t, ExamOpen(&entity.Exam{Estado: entity.ExamStatusActive}, now))
	assert.True(t, ExamOpen(&entity.Exam{Estado: entity.ExamStatusActive, FechaApertura: &earlier}, now))
	assert.False(t, ExamOpen(&entity.Exam{Estado: entity.ExamStatusActive, FechaApertura: &later}, now))
	assert.False(t, ExamOpen(&entity.Exam{Estado: entity.ExamStatusDraft}, now))
	assert.False(t, ExamOpen(nil, now))
}
