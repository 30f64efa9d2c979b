package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/exam-portal-api/internal/handler/dto"
	"github.com/yourusername/exam-portal-api/internal/middleware"
	apperrors "github.com/yourusername/exam-portal-api/internal/pkg/errors"
	"github.com/yourusername/exam-portal-api/internal/service"
	"github.com/yourusername/exam-portal-api/internal/service/examaccess"
	"github.com/yourusername/exam-portal-api/pkg/auth"
)

// AccessHandler выдает экзаменационные токены
type AccessHandler struct {
	credentials *service.CredentialService
	access      *service.AccessService
	tokens      service.TokenIssuer
}

// NewAccessHandler создает новый обработчик входа
func NewAccessHandler(credentials *service.CredentialService, access *service.AccessService, tokens service.TokenIssuer) *AccessHandler {
	return &AccessHandler{credentials: credentials, access: access, tokens: tokens}
}

// Login обрабатывает вход по учетным данным экзамена
func (h *AccessHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.credentials.Login(c.Request.Context(), service.LoginInput{
		Identifier: req.Identifier,
		Password:   req.Password,
		ExamID:     req.ExamID,
		TestType:   req.TestType,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.AccessResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		TestType:  result.Credential.TestType,
		Exam:      dto.NewExamResponse(result.Exam),
		UserID:    result.UserID,
	})
}

// Resolve обрабатывает вход по ссылке сессии или назначению портала.
// Назначение ищется только для пользователя из предъявленного токена.
func (h *AccessHandler) Resolve(c *gin.Context) {
	var req dto.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	input := service.ResolveInput{
		SessionID: req.SessionID,
		ExamID:    req.ExamID,
		TestType:  req.TestType,
	}
	if req.SessionID == nil {
		claims := middleware.ExamClaims(c)
		if claims == nil || claims.UserID == 0 {
			respondError(c, apperrors.E(apperrors.KindInvalidCredentials, "AccessHandler.Resolve",
				"portal access requires an authenticated user", nil))
			return
		}
		userID := claims.UserID
		input.UserID = &userID
	}

	grant, err := h.access.ResolveAccess(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}

	claims := auth.ExamClaims{ExamID: grant.Exam.ID, TestType: grant.TestType}
	if grant.UserID != nil {
		claims.UserID = *grant.UserID
	}
	if grant.SessionID != nil {
		claims.SessionID = grant.SessionID.String()
	}
	expiresAt := examaccess.EffectiveExpiration(grant.Exam, nil)
	token, err := h.tokens.GenerateExamToken(claims, expiresAt)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.AccessResponse{
		Token:                   token,
		ExpiresAt:               expiresAt,
		TestType:                grant.TestType,
		Exam:                    dto.NewExamResponse(grant.Exam),
		SessionID:               grant.SessionID,
		AssignmentID:            grant.AssignmentID,
		UserID:                  grant.UserID,
		AlreadyCompletedWarning: grant.AlreadyCompletedWarning,
	})
}

// ServerTime возвращает текущее время сервера для синхронизации часов клиента
func (h *AccessHandler) ServerTime(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"now": time.Now().UTC()})
}
