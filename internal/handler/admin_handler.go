package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/exam-portal-api/internal/domain/entity"
	"github.com/yourusername/exam-portal-api/internal/domain/repository"
	"github.com/yourusername/exam-portal-api/internal/middleware"
	"github.com/yourusername/exam-portal-api/internal/service"
	"github.com/yourusername/exam-portal-api/internal/service/examaccess"
	"github.com/yourusername/exam-portal-api/internal/websocket"
)

// AdminHandler обслуживает админские маршруты
type AdminHandler struct {
	exports   *service.ExportService
	reports   *service.ReportService
	logger    *examaccess.AccessLogger
	wsManager *websocket.Manager
}

// NewAdminHandler создает новый админский обработчик
func NewAdminHandler(
	exports *service.ExportService,
	reports *service.ReportService,
	logger *examaccess.AccessLogger,
	wsManager *websocket.Manager,
) *AdminHandler {
	return &AdminHandler{exports: exports, reports: reports, logger: logger, wsManager: wsManager}
}

func optionalUintQuery(c *gin.Context, name string) (*uint, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid %s", name)
	}
	id := uint(v)
	return &id, nil
}

// ExportAttempts выгружает попытки в CSV или XLSX
func (h *AdminHandler) ExportAttempts(c *gin.Context) {
	filters := repository.AttemptFilters{TestType: c.Query("test_type")}

	examID, err := optionalUintQuery(c, "exam_id")
	if err != nil {
		badRequest(c, err)
		return
	}
	if filters.TestType == entity.TestTypePsychometric {
		filters.PsychometricTestID = examID
	} else {
		filters.ExamID = examID
	}

	format := c.DefaultQuery("format", service.ExportFormatCSV)

	// буферизуем, чтобы ошибка выгрузки не оставила частичный файл
	var buf bytes.Buffer
	if err := h.exports.Export(c.Request.Context(), filters, format, &buf); err != nil {
		respondError(c, err)
		return
	}

	filename := fmt.Sprintf("attempts_%s", time.Now().UTC().Format("20060102_150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.%s\"", filename, format))
	c.Data(http.StatusOK, service.ContentType(format), buf.Bytes())
}

// AccessLog возвращает журнал доступа (от старых записей к новым)
func (h *AdminHandler) AccessLog(c *gin.Context) {
	entries := h.logger.Entries()
	c.JSON(http.StatusOK, gin.H{
		"capacity": h.logger.Capacity(),
		"entries":  entries,
	})
}

// GenerateReport строит отчет по попытке
func (h *AdminHandler) GenerateReport(c *gin.Context) {
	attemptID := middleware.UintParam(c, "attemptID")

	report, err := h.reports.Generate(c.Request.Context(), attemptID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempt_id": attemptID, "report": report})
}

// WSMetrics возвращает метрики WebSocket
func (h *AdminHandler) WSMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.wsManager.GetMetrics())
}
