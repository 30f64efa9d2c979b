package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/yourusername/exam-portal-api/internal/domain/entity"
	"github.com/yourusername/exam-portal-api/internal/domain/repository"
	apperrors "github.com/yourusername/exam-portal-api/internal/pkg/errors"
)

// ReportGenerator генерирует текст оценочного отчета по попытке
type ReportGenerator interface {
	GenerateReport(ctx context.Context, prompt string) (string, error)
}

// GeminiReportGenerator uses a Gemini model to draft reports.
type GeminiReportGenerator struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiReportGenerator returns nil without an API key.
func NewGeminiReportGenerator(ctx context.Context, apiKey, modelName string) (*GeminiReportGenerator, error) {
	if apiKey == "" {
		log.Printf("[ReportService] GEMINI_API_KEY не задан, отчеты отключены")
		return nil, nil
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiReportGenerator{client: client, model: client.GenerativeModel(modelName)}, nil
}

func (g *GeminiReportGenerator) GenerateReport(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

// Close закрывает клиент Gemini
func (g *GeminiReportGenerator) Close() error {
	return g.client.Close()
}

// ReportService строит отчет по ответам попытки и сохраняет его
type ReportService struct {
	attemptRepo repository.AttemptRepository
	examRepo    repository.ExamRepository
	generator   ReportGenerator
}

// NewReportService создает сервис отчетов. generator может быть nil.
func NewReportService(attemptRepo repository.AttemptRepository, examRepo repository.ExamRepository, generator ReportGenerator) *ReportService {
	return &ReportService{attemptRepo: attemptRepo, examRepo: examRepo, generator: generator}
}

func (s *ReportService) Name() string { return "evaluation_report" }

// Enabled reports whether a generator is configured.
func (s *ReportService) Enabled() bool {
	return s != nil && s.generator != nil
}

func (s *ReportService) questionsFor(ctx context.Context, attempt *entity.Attempt) ([]entity.Question, string, error) {
	if attempt.PsychometricTestID != nil {
		test, err := s.examRepo.GetPsychometricTestWithQuestions(ctx, *attempt.PsychometricTestID)
		if err != nil {
			return nil, "", err
		}
		return test.Questions, test.Name, nil
	}
	if attempt.ExamID != nil {
		exam, err := s.examRepo.GetWithQuestions(ctx, *attempt.ExamID)
		if err != nil {
			return nil, "", err
		}
		return exam.Questions, exam.Title, nil
	}
	return nil, "", nil
}

// BuildPrompt formats the answers as question/answer pairs in question order.
func BuildPrompt(title, testType string, questions []entity.Question, attempt *entity.Attempt) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are reviewing a %s assessment", testType)
	if title != "" {
		fmt.Fprintf(&sb, " titled %q", title)
	}
	sb.WriteString(". Summarise the candidate's answers in a short neutral evaluation report.\n\n")

	written := make(map[string]bool, len(questions))
	for i, q := range questions {
		key := strconv.FormatUint(uint64(q.ID), 10)
		written[key] = true
		fmt.Fprintf(&sb, "%d. %s\nAnswer: %s\n", i+1, q.Text, attempt.AnswerFor(key))
	}

	// ответы на вопросы, которых больше нет в экзамене
	var extra []string
	for key := range attempt.Answers {
		if !written[key] {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	for _, key := range extra {
		fmt.Fprintf(&sb, "Question %s\nAnswer: %s\n", key, attempt.AnswerFor(key))
	}
	return sb.String()
}

// Generate builds and stores the report for an attempt.
func (s *ReportService) Generate(ctx context.Context, attemptID uint) (string, error) {
	if !s.Enabled() {
		return "", apperrors.E(apperrors.KindValidation, "ReportService.Generate", "report generation is not configured", nil)
	}
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return "", err
	}
	return s.generate(ctx, attempt)
}

func (s *ReportService) generate(ctx context.Context, attempt *entity.Attempt) (string, error) {
	questions, title, err := s.questionsFor(ctx, attempt)
	if err != nil {
		return "", err
	}
	report, err := s.generator.GenerateReport(ctx, BuildPrompt(title, attempt.TestType, questions, attempt))
	if err != nil {
		return "", err
	}
	if err := s.attemptRepo.UpdateReport(ctx, attempt.ID, report); err != nil {
		return "", err
	}
	attempt.Report = report
	return report, nil
}

// OnAttemptCompleted генерирует отчет в фоне после сдачи
func (s *ReportService) OnAttemptCompleted(ctx context.Context, attempt *entity.Attempt, _ string) error {
	if !s.Enabled() {
		return nil
	}
	_, err := s.generate(ctx, attempt)
	return err
}
