package examaccess

import (
	"strings"

	"github.com/yourusername/exam-portal-api/internal/domain/entity"
	"github.com/yourusername/exam-portal-api/internal/domain/repository"
)

// CredentialQuery is the input to credential resolution.
type CredentialQuery struct {
	Identifier string // username or e-mail typed by the student
	ExamID     *uint  // exam or psychometric test id from the access link
	TestType   string
}

// IsEmail reports whether the identifier looks like an e-mail address.
func (q CredentialQuery) IsEmail() bool {
	return strings.Contains(q.Identifier, "@")
}

// CredentialTier is one step of the priority-ordered credential search.
// Historical rows have inconsistent shapes, so resolution falls back from
// strict to loose matching.
type CredentialTier struct {
	Name string
	// Applies is false when the tier must be skipped for this query.
	Applies func(q CredentialQuery) bool
	// Criteria builds the store query for the tier.
	Criteria func(q CredentialQuery) repository.CredentialCriteria
}

func always(CredentialQuery) bool { return true }

// withTargetFilter narrows criteria to the test the query points at. Turnover
// credentials never carry an exam id, so they are not filtered.
func withTargetFilter(c repository.CredentialCriteria, q CredentialQuery) repository.CredentialCriteria {
	if q.ExamID == nil {
		return c
	}
	switch q.TestType {
	case entity.TestTypeReliability:
		c.ExamID = q.ExamID
	case entity.TestTypePsychometric:
		c.PsychometricTestID = q.ExamID
	}
	return c
}

// DefaultCredentialTiers is the resolution order, first match wins:
//  1. exact username, unused, same test type, filtered by exam
//  2. e-mail identifiers only: user_email with the same filters
//  3. username or e-mail, unused, same test type, any exam, newest first
//  4. username or e-mail, unused, any test type, newest first
//
// Tier 4 can return a credential of another test type.
var DefaultCredentialTiers = []CredentialTier{
	{
		Name:    "username_exact",
		Applies: always,
		Criteria: func(q CredentialQuery) repository.CredentialCriteria {
			return withTargetFilter(repository.CredentialCriteria{
				Username:   q.Identifier,
				TestType:   q.TestType,
				UnusedOnly: true,
			}, q)
		},
	},
	{
		Name:    "email_exact",
		Applies: CredentialQuery.IsEmail,
		Criteria: func(q CredentialQuery) repository.CredentialCriteria {
			return withTargetFilter(repository.CredentialCriteria{
				Email:      q.Identifier,
				TestType:   q.TestType,
				UnusedOnly: true,
			}, q)
		},
	},
	{
		Name:    "identifier_any_exam",
		Applies: always,
		Criteria: func(q CredentialQuery) repository.CredentialCriteria {
			return repository.CredentialCriteria{
				UsernameOrEmail: q.Identifier,
				TestType:        q.TestType,
				UnusedOnly:      true,
				MostRecentFirst: true,
			}
		},
	},
	{
		Name:    "identifier_any_type",
		Applies: always,
		Criteria: func(q CredentialQuery) repository.CredentialCriteria {
			return repository.CredentialCriteria{
				UsernameOrEmail: q.Identifier,
				UnusedOnly:      true,
				MostRecentFirst: true,
			}
		},
	},
}
