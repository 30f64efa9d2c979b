package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/exam-portal-api/internal/domain/entity"
)

const demoSeed = `
exams:
  - key: rel
    title: Reliability A
    duracion_minutos: 45
    closes_at: 2030-01-01T00:00:00Z
    questions:
      - text: Q1
        options: [si, no]
    credentials:
      - username: ana
        email: ana@example.com
        password: secret
psychometric_tests:
  - key: psy
    title: Psychometric B
    duracion_minutos: 20
profiles:
  - email: ana@example.com
    assignments: [rel, psy]
`

func TestParseSeed(t *testing.T) {
	seed, err := ParseSeed([]byte(demoSeed))

	require.NoError(t, err)
	require.Len(t, seed.Exams, 1)
	assert.Equal(t, entity.TestTypeReliability, seed.Exams[0].TestType)
	assert.NotNil(t, seed.Exams[0].ClosesAt)
	assert.Equal(t, entity.TestTypePsychometric, seed.PsychometricTests[0].TestType)
	assert.Equal(t, "secret", seed.Exams[0].Credentials[0].Password)

	questions := toQuestions(seed.Exams[0].Questions)
	assert.Equal(t, 1, questions[0].Position)
	assert.Len(t, questions[0].Options, 2)
}

func TestParseSeed_UnknownAssignment(t *testing.T) {
	_, err := ParseSeed([]byte("profiles:\n  - email: a@b.c\n    assignments: [missing]\n"))
	assert.Error(t, err)
}

func TestParseSeed_ExamCannotBePsychometric(t *testing.T) {
	_, err := ParseSeed([]byte("exams:\n  - key: x\n    title: X\n    test_type: psychometric\n"))
	assert.Error(t, err)
}
