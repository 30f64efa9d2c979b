package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/exam-portal-api/internal/domain/entity"
	"github.com/yourusername/exam-portal-api/internal/domain/repository"
	apperrors "github.com/yourusername/exam-portal-api/internal/pkg/errors"
	"github.com/yourusername/exam-portal-api/internal/service/examaccess"
	"github.com/yourusername/exam-portal-api/pkg/auth"
)

// ============================================================================
// Моки репозиториев
// ============================================================================

type MockCredentialRepo struct {
	mock.Mock
}

func (m *MockCredentialRepo) FindFirst(ctx context.Context, criteria repository.CredentialCriteria) (*entity.Credential, error) {
	args := m.Called(ctx, criteria)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Credential), args.Error(1)
}

func (m *MockCredentialRepo) GetByID(ctx context.Context, id uint) (*entity.Credential, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Credential), args.Error(1)
}

func (m *MockCredentialRepo) MarkUsed(ctx context.Context, id uint, usedAt time.Time) error {
	args := m.Called(ctx, id, usedAt)
	return args.Error(0)
}

func (m *MockCredentialRepo) Create(ctx context.Context, credential *entity.Credential) error {
	args := m.Called(ctx, credential)
	return args.Error(0)
}

type MockExamRepo struct {
	mock.Mock
}

func (m *MockExamRepo) GetByID(ctx context.Context, id uint) (*entity.Exam, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Exam), args.Error(1)
}

func (m *MockExamRepo) GetWithQuestions(ctx context.Context, id uint) (*entity.Exam, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Exam), args.Error(1)
}

func (m *MockExamRepo) GetPsychometricTest(ctx context.Context, id uint) (*entity.PsychometricTest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.PsychometricTest), args.Error(1)
}

func (m *MockExamRepo) GetPsychometricTestWithQuestions(ctx context.Context, id uint) (*entity.PsychometricTest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.PsychometricTest), args.Error(1)
}

func (m *MockExamRepo) Create(ctx context.Context, exam *entity.Exam) error {
	return m.Called(ctx, exam).Error(0)
}

func (m *MockExamRepo) CreatePsychometricTest(ctx context.Context, test *entity.PsychometricTest) error {
	return m.Called(ctx, test).Error(0)
}

type MockAssignmentRepo struct {
	mock.Mock
}

func (m *MockAssignmentRepo) GetByID(ctx context.Context, id uint) (*entity.Assignment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Assignment), args.Error(1)
}

func (m *MockAssignmentRepo) GetByUserAndTarget(ctx context.Context, userID uint, testType string, targetID uint) (*entity.Assignment, error) {
	args := m.Called(ctx, userID, testType, targetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Assignment), args.Error(1)
}

func (m *MockAssignmentRepo) GetLatestOpenByType(ctx context.Context, userID uint, testType string) (*entity.Assignment, error) {
	args := m.Called(ctx, userID, testType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Assignment), args.Error(1)
}

func (m *MockAssignmentRepo) UpdateStatus(ctx context.Context, id uint, status string, at time.Time) error {
	return m.Called(ctx, id, status, at).Error(0)
}

func (m *MockAssignmentRepo) Create(ctx context.Context, assignment *entity.Assignment) error {
	return m.Called(ctx, assignment).Error(0)
}

type MockSessionRepo struct {
	mock.Mock
}

func (m *MockSessionRepo) GetWithTest(ctx context.Context, id uuid.UUID) (*entity.ExamSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.ExamSession), args.Error(1)
}

func (m *MockSessionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return m.Called(ctx, id, status).Error(0)
}

func (m *MockSessionRepo) Create(ctx context.Context, session *entity.ExamSession) error {
	return m.Called(ctx, session).Error(0)
}

type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) Create(ctx context.Context, user *entity.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepo) GetByID(ctx context.Context, id uint) (*entity.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

type MockAttemptRepo struct {
	mock.Mock
}

func (m *MockAttemptRepo) Complete(ctx context.Context, completion *repository.AttemptCompletion) error {
	return m.Called(ctx, completion).Error(0)
}

func (m *MockAttemptRepo) GetByID(ctx context.Context, id uint) (*entity.Attempt, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Attempt), args.Error(1)
}

func (m *MockAttemptRepo) GetBySubmissionKey(ctx context.Context, key string) (*entity.Attempt, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Attempt), args.Error(1)
}

func (m *MockAttemptRepo) List(ctx context.Context, filters repository.AttemptFilters) ([]entity.Attempt, error) {
	args := m.Called(ctx, filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Attempt), args.Error(1)
}

func (m *MockAttemptRepo) UpdateReport(ctx context.Context, id uint, report string) error {
	return m.Called(ctx, id, report).Error(0)
}

// ============================================================================
// Фейки
// ============================================================================

// memoryCache хранит значения в памяти; TTL не учитывается
type memoryCache struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
	sets   int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (c *memoryCache) Set(key string, value interface{}, expiration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch v := value.(type) {
	case string:
		c.values[key] = v
	case []byte:
		c.values[key] = string(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		c.values[key] = string(data)
	}
	c.ttls[key] = expiration
	c.sets++
	return nil
}

func (c *memoryCache) Get(key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	if !ok {
		return "", apperrors.ErrNotFound
	}
	return v, nil
}

func (c *memoryCache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
	delete(c.ttls, key)
	return nil
}

func (c *memoryCache) SetJSON(key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Set(key, string(data), expiration)
}

func (c *memoryCache) GetJSON(key string, dest interface{}) error {
	v, err := c.Get(key)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(v), dest)
}

func (c *memoryCache) SetNX(key string, value interface{}, expiration time.Duration) (bool, error) {
	c.mu.Lock()
	_, exists := c.values[key]
	c.mu.Unlock()
	if exists {
		return false, nil
	}
	return true, c.Set(key, value, expiration)
}

func (c *memoryCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.values[key]
	return ok
}

// recordingNotifier запоминает отправленные события
type recordingNotifier struct {
	mu     sync.Mutex
	events []notifiedEvent
}

type notifiedEvent struct {
	Room string
	Type string
}

func (n *recordingNotifier) SendEventToRoom(room string, eventType string, data interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notifiedEvent{Room: room, Type: eventType})
	return nil
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Type)
	}
	return out
}

// fakeTokens выдает предсказуемые токены
type fakeTokens struct {
	issued    []auth.ExamClaims
	expiresAt []*time.Time
}

func (f *fakeTokens) GenerateExamToken(claims auth.ExamClaims, expiresAt *time.Time) (string, error) {
	f.issued = append(f.issued, claims)
	f.expiresAt = append(f.expiresAt, expiresAt)
	return "token-" + claims.TestType, nil
}

func testConfig() *examaccess.Config {
	cfg := examaccess.DefaultConfig()
	cfg.RetryBaseDelay = time.Millisecond
	return cfg
}

func hashedCredential(t *testing.T, cred *entity.Credential, password string) *entity.Credential {
	t.Helper()
	cred.Password = password
	require.NoError(t, cred.HashPassword())
	return cred
}
