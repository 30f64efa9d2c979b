package examaccess

import (
	"time"

	"github.com/yourusername/exam-portal-api/internal/domain/entity"
)

// ExamExpired is true when the exam has a close date and now is past it.
func ExamExpired(exam *entity.Exam, now time.Time) bool {
	return exam != nil && exam.FechaCierre != nil && now.After(*exam.FechaCierre)
}

// CredentialExpired is true when the credential has an expiry and now is past it.
func CredentialExpired(cred *entity.Credential, now time.Time) bool {
	return cred != nil && cred.ExpiresAt != nil && now.After(*cred.ExpiresAt)
}

// AccessExpired revokes access when either deadline has passed. Credentials and
// exams have independent lifetimes, so each one can close access on its own.
func AccessExpired(exam *entity.Exam, cred *entity.Credential, now time.Time) bool {
	return ExamExpired(exam, now) || CredentialExpired(cred, now)
}

// EffectiveExpiration returns the earlier of the two deadlines, the only one set,
// or nil when neither is set.
func EffectiveExpiration(exam *entity.Exam, cred *entity.Credential) *time.Time {
	var examClose, credExpiry *time.Time
	if exam != nil {
		examClose = exam.FechaCierre
	}
	if cred != nil {
		credExpiry = cred.ExpiresAt
	}

	switch {
	case examClose == nil && credExpiry == nil:
		return nil
	case examClose == nil:
		t := *credExpiry
		return &t
	case credExpiry == nil:
		t := *examClose
		return &t
	case credExpiry.Before(*examClose):
		t := *credExpiry
		return &t
	default:
		t := *examClose
		return &t
	}
}

// ExamOpen reports whether the exam is active and its opening date has arrived.
func ExamOpen(exam *entity.Exam, now time.Time) bool {
	if exam == nil || !exam.IsActive() {
		return false
	}
	return exam.FechaApertura == nil || !now.Before(*exam.FechaApertura)
}
