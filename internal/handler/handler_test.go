package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/yourusername/exam-portal-api/internal/domain/entity"
	"github.com/yourusername/exam-portal-api/internal/domain/repository"
	"github.com/yourusername/exam-portal-api/internal/middleware"
	"github.com/yourusername/exam-portal-api/internal/service"
	"github.com/yourusername/exam-portal-api/internal/service/examaccess"
	"github.com/yourusername/exam-portal-api/internal/websocket"
	"github.com/yourusername/exam-portal-api/pkg/auth"
)

// fakeAttemptRepo отдает фиксированный список попыток
type fakeAttemptRepo struct {
	attempts []entity.Attempt
	filters  repository.AttemptFilters
}

func (f *fakeAttemptRepo) Complete(ctx context.Context, completion *repository.AttemptCompletion) error {
	return nil
}

func (f *fakeAttemptRepo) GetByID(ctx context.Context, id uint) (*entity.Attempt, error) {
	return &f.attempts[0], nil
}

func (f *fakeAttemptRepo) GetBySubmissionKey(ctx context.Context, key string) (*entity.Attempt, error) {
	return &f.attempts[0], nil
}

func (f *fakeAttemptRepo) List(ctx context.Context, filters repository.AttemptFilters) ([]entity.Attempt, error) {
	f.filters = filters
	return f.attempts, nil
}

func (f *fakeAttemptRepo) UpdateReport(ctx context.Context, id uint, report string) error {
	return nil
}

func newAdminRouter(repo *fakeAttemptRepo, logger *examaccess.AccessLogger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	hub := websocket.NewHub()
	h := NewAdminHandler(service.NewExportService(repo), service.NewReportService(repo, nil, nil), logger, websocket.NewManager(hub))

	r := gin.New()
	admin := r.Group("/api/admin")
	admin.GET("/attempts/export", h.ExportAttempts)
	admin.GET("/access-log", h.AccessLog)
	admin.POST("/attempts/:id/report", middleware.ExtractUintParam("id", "attemptID"), h.GenerateReport)
	return r
}

func TestExportAttempts_CSV(t *testing.T) {
	examID := uint(3)
	repo := &fakeAttemptRepo{attempts: []entity.Attempt{{
		ID:          1,
		ExamID:      &examID,
		TestType:    entity.TestTypeReliability,
		Answers:     datatypes.JSONMap{"2": "=HYPERLINK(\"x\")", "10": "ok"},
		Score:       2,
		CompletedAt: time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC),
	}}}
	r := newAdminRouter(repo, examaccess.NewAccessLogger(5))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admin/attempts/export?exam_id=3", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Equal(t, &examID, repo.filters.ExamID)

	body := strings.TrimPrefix(w.Body.String(), "\xEF\xBB\xBF")
	lines := strings.Split(strings.TrimSpace(body), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], "q_2,q_10"))
	assert.Contains(t, lines[1], `'=HYPERLINK`)
}

func TestExportAttempts_XLSX(t *testing.T) {
	repo := &fakeAttemptRepo{attempts: []entity.Attempt{{ID: 1, TestType: entity.TestTypeTurnover}}}
	r := newAdminRouter(repo, examaccess.NewAccessLogger(5))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admin/attempts/export?format=xlsx", nil))

	require.Equal(t, http.StatusOK, w.Code)
	// xlsx: zip архив
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))
}

func TestExportAttempts_UnknownFormat(t *testing.T) {
	r := newAdminRouter(&fakeAttemptRepo{}, examaccess.NewAccessLogger(5))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admin/attempts/export?format=pdf", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAccessLog(t *testing.T) {
	logger := examaccess.NewAccessLogger(2)
	logger.Info("first", nil)
	logger.Info("second", nil)
	logger.Warn("third", map[string]string{"k": "v"})
	r := newAdminRouter(&fakeAttemptRepo{}, logger)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admin/access-log", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Capacity int                        `json:"capacity"`
		Entries  []examaccess.AccessLogEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Capacity)
	require.Len(t, body.Entries, 2)
	assert.Equal(t, "second", body.Entries[0].Event)
	assert.Equal(t, "third", body.Entries[1].Event)
}

func TestGenerateReport_DisabledWithoutGenerator(t *testing.T) {
	r := newAdminRouter(&fakeAttemptRepo{attempts: []entity.Attempt{{ID: 1}}}, examaccess.NewAccessLogger(5))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/admin/attempts/1/report", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExamHandler_RequiresClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewExamHandler(&service.ExamService{}, nil)
	r := gin.New()
	r.POST("/api/exams/:id/start", middleware.ExtractUintParam("id", "examID"), h.Start)
	r.POST("/api/exams/:id/submit", middleware.ExtractUintParam("id", "examID"), h.Submit)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/exams/3/start", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/exams/3/submit", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAccessHandler_LoginRejectsMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewAccessHandler(nil, nil, nil)
	r := gin.New()
	r.POST("/api/access/login", h.Login)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/access/login", strings.NewReader(`{"identifier":"ana"}`)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"error_type":"validation"`)
}

func newResolveRouter(claims *auth.ExamClaims) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewAccessHandler(nil, nil, nil)
	r := gin.New()
	r.POST("/api/access/resolve", func(c *gin.Context) {
		if claims != nil {
			c.Set(middleware.ClaimsKey, claims)
		}
		c.Next()
	}, h.Resolve)
	return r
}

func TestAccessHandler_ResolveIgnoresUserIDFromBody(t *testing.T) {
	r := newResolveRouter(nil)

	w := httptest.NewRecorder()
	body := strings.NewReader(`{"user_id":7,"test_type":"reliability"}`)
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/access/resolve", body))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"error_type":"invalid_credentials"`)
	assert.NotContains(t, w.Body.String(), `"token"`)
}

func TestAccessHandler_ResolveRequiresUserInToken(t *testing.T) {
	// токен сессии без пользователя портала
	r := newResolveRouter(&auth.ExamClaims{SessionID: "9b0c", TestType: entity.TestTypeReliability})

	w := httptest.NewRecorder()
	body := strings.NewReader(`{"test_type":"reliability","exam_id":3}`)
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/access/resolve", body))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
