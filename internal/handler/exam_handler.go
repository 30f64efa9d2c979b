package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/exam-portal-api/internal/domain/entity"
	"github.com/yourusername/exam-portal-api/internal/handler/dto"
	"github.com/yourusername/exam-portal-api/internal/middleware"
	"github.com/yourusername/exam-portal-api/internal/service"
	"github.com/yourusername/exam-portal-api/pkg/auth"
)

// WSTicketIssuer выпускает короткоживущие тикеты для WebSocket
type WSTicketIssuer interface {
	GenerateWSTicket(claims *auth.ExamClaims) (string, error)
}

// ExamHandler обрабатывает запросы запущенного экзамена
type ExamHandler struct {
	exams   *service.ExamService
	tickets WSTicketIssuer
}

// NewExamHandler создает новый обработчик экзаменов
func NewExamHandler(exams *service.ExamService, tickets WSTicketIssuer) *ExamHandler {
	return &ExamHandler{exams: exams, tickets: tickets}
}

// Start запускает или возобновляет экзамен
func (h *ExamHandler) Start(c *gin.Context) {
	examID := middleware.UintParam(c, "examID")

	result, err := h.exams.Start(c.Request.Context(), middleware.ExamClaims(c), examID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewStartResponse(result))
}

// Timer возвращает оставшиеся секунды
func (h *ExamHandler) Timer(c *gin.Context) {
	examID := middleware.UintParam(c, "examID")

	remaining, err := h.exams.Remaining(c.Request.Context(), middleware.ExamClaims(c), examID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"remaining_seconds": remaining})
}

// SaveProgress сохраняет снимок прогресса
func (h *ExamHandler) SaveProgress(c *gin.Context) {
	examID := middleware.UintParam(c, "examID")

	var snapshot entity.ProgressSnapshot
	if err := c.ShouldBindJSON(&snapshot); err != nil {
		badRequest(c, err)
		return
	}

	written, err := h.exams.SaveProgress(c.Request.Context(), middleware.ExamClaims(c), examID, &snapshot)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": written, "last_updated": snapshot.LastUpdated})
}

// GetProgress возвращает снимок, который можно восстановить
func (h *ExamHandler) GetProgress(c *gin.Context) {
	examID := middleware.UintParam(c, "examID")

	snapshot, err := h.exams.RecoverProgress(c.Request.Context(), middleware.ExamClaims(c), examID)
	if err != nil {
		respondError(c, err)
		return
	}
	if snapshot == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// DiscardProgress удаляет снимок по выбору студента
func (h *ExamHandler) DiscardProgress(c *gin.Context) {
	examID := middleware.UintParam(c, "examID")

	if err := h.exams.DiscardProgress(c.Request.Context(), middleware.ExamClaims(c), examID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Submit отправляет ответы
func (h *ExamHandler) Submit(c *gin.Context) {
	examID := middleware.UintParam(c, "examID")

	var req dto.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	attempt, err := h.exams.Submit(c.Request.Context(), middleware.ExamClaims(c), examID, req.Answers, req.Questions)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewAttemptResponse(attempt))
}

// WSTicket выдает тикет для подключения к комнате таймера
func (h *ExamHandler) WSTicket(c *gin.Context) {
	examID := middleware.UintParam(c, "examID")
	claims := middleware.ExamClaims(c)

	if _, err := h.exams.RoomFor(claims, examID); err != nil {
		respondError(c, err)
		return
	}
	ticketClaims := *claims
	ticketClaims.ExamID = examID
	ticket, err := h.tickets.GenerateWSTicket(&ticketClaims)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket": ticket})
}
