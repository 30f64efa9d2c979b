package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"sort"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/yourusername/exam-portal-api/internal/domain/entity"
	"github.com/yourusername/exam-portal-api/internal/domain/repository"
	apperrors "github.com/yourusername/exam-portal-api/internal/pkg/errors"
)

// Форматы выгрузки
const (
	ExportFormatCSV  = "csv"
	ExportFormatXLSX = "xlsx"
)

// ExportService выгружает попытки в CSV или Excel
type ExportService struct {
	attemptRepo repository.AttemptRepository
}

// NewExportService создает сервис выгрузки
func NewExportService(attemptRepo repository.AttemptRepository) *ExportService {
	return &ExportService{attemptRepo: attemptRepo}
}

// ContentType возвращает MIME тип формата
func ContentType(format string) string {
	if format == ExportFormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// sanitizeForExcel экранирует данные для защиты от formula injection в Excel/CSV
func sanitizeForExcel(s string) string {
	if len(s) == 0 {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}

func optionalUint(v *uint) string {
	if v == nil {
		return ""
	}
	return strconv.FormatUint(uint64(*v), 10)
}

// answerColumns collects every answered question id, numerically ordered.
func answerColumns(attempts []entity.Attempt) []string {
	seen := map[string]bool{}
	var keys []string
	for _, a := range attempts {
		for key := range a.Answers {
			if !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return keys[i] < keys[j]
	})
	return keys
}

func exportHeader(columns []string) []string {
	header := []string{"attempt_id", "test_type", "exam_id", "psychometric_test_id", "user_id", "session_id",
		"credential_id", "score", "adjusted_score", "answers", "timed_out", "completed_at"}
	for _, key := range columns {
		header = append(header, "q_"+key)
	}
	return header
}

func exportRow(a *entity.Attempt, columns []string) []string {
	session := ""
	if a.SessionID != nil {
		session = a.SessionID.String()
	}
	row := []string{
		strconv.FormatUint(uint64(a.ID), 10),
		a.TestType,
		optionalUint(a.ExamID),
		optionalUint(a.PsychometricTestID),
		optionalUint(a.UserID),
		session,
		optionalUint(a.CredentialID),
		strconv.Itoa(a.Score),
		strconv.FormatFloat(a.AdjustedScore, 'f', 2, 64),
		strconv.Itoa(a.AnswerCount()),
		strconv.FormatBool(a.TimedOut),
		a.CompletedAt.UTC().Format(time.RFC3339),
	}
	for _, key := range columns {
		row = append(row, sanitizeForExcel(a.AnswerFor(key)))
	}
	return row
}

// Export writes the attempts matching filters to w.
func (s *ExportService) Export(ctx context.Context, filters repository.AttemptFilters, format string, w io.Writer) error {
	if format != ExportFormatCSV && format != ExportFormatXLSX {
		return apperrors.E(apperrors.KindValidation, "ExportService.Export", fmt.Sprintf("unsupported format %q", format), nil)
	}

	attempts, err := s.attemptRepo.List(ctx, filters)
	if err != nil {
		return err
	}
	columns := answerColumns(attempts)

	if format == ExportFormatXLSX {
		return writeXLSX(attempts, columns, w)
	}
	return writeCSV(attempts, columns, w)
}

func writeCSV(attempts []entity.Attempt, columns []string, w io.Writer) error {
	// BOM для корректного отображения UTF-8 в Excel
	if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return err
	}
	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeader(columns)); err != nil {
		return err
	}
	for i := range attempts {
		if err := writer.Write(exportRow(&attempts[i], columns)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeXLSX(attempts []entity.Attempt, columns []string, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Attempts"
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create stream writer: %w", err)
	}

	toCells := func(values []string) []interface{} {
		cells := make([]interface{}, len(values))
		for i, v := range values {
			cells[i] = v
		}
		return cells
	}

	if err := sw.SetRow("A1", toCells(exportHeader(columns))); err != nil {
		return err
	}
	for i := range attempts {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := sw.SetRow(cell, toCells(exportRow(&attempts[i], columns))); err != nil {
			log.Printf("[ExportService] Ошибка записи строки %d: %v", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return err
	}
	_, err = f.WriteTo(w)
	return err
}
