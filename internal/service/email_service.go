package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"

	"github.com/yourusername/exam-portal-api/internal/domain/entity"
)

// EmailService отправляет письма о завершении экзамена
type EmailService interface {
	SendCompletionNotice(ctx context.Context, toEmail string, attempt *entity.Attempt) error
}

// NoopEmailService используется, когда ключ Resend не задан
type NoopEmailService struct{}

func (s *NoopEmailService) SendCompletionNotice(ctx context.Context, toEmail string, attempt *entity.Attempt) error {
	log.Printf("[EmailService] noop completion notice to=%s attempt=%d", toEmail, attempt.ID)
	return nil
}

// ResendEmailService sends emails via Resend REST API.
type ResendEmailService struct {
	from   string
	client *resend.Client
}

func NewResendEmailService(apiKey, from string) (*ResendEmailService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if from == "" {
		return nil, fmt.Errorf("email from is required")
	}
	return &ResendEmailService{
		from:   from,
		client: resend.NewClient(apiKey),
	}, nil
}

func completionSubject(attempt *entity.Attempt) string {
	if attempt.TimedOut {
		return "Your exam was submitted automatically"
	}
	return "Your exam has been received"
}

func (s *ResendEmailService) SendCompletionNotice(ctx context.Context, toEmail string, attempt *entity.Attempt) error {
	if toEmail == "" || attempt == nil {
		return fmt.Errorf("toEmail and attempt are required")
	}

	completed := attempt.CompletedAt.UTC().Format("2006-01-02 15:04 MST")
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{toEmail},
		Subject: completionSubject(attempt),
		Text:    fmt.Sprintf("We received your %s exam on %s. Answers recorded: %d.", attempt.TestType, completed, attempt.AnswerCount()),
		Html: fmt.Sprintf("<p>We received your <strong>%s</strong> exam on %s.</p><p>Answers recorded: %d.</p>",
			attempt.TestType, completed, attempt.AnswerCount()),
	}

	// одна попытка = одно письмо, даже если хук перезапущен
	options := &resend.SendEmailOptions{IdempotencyKey: "attempt-" + strconv.FormatUint(uint64(attempt.ID), 10)}

	var lastErr error
	for try := 0; try < 3; try++ {
		_, err := s.client.Emails.SendWithOptions(ctx, params, options)
		if err == nil {
			return nil
		}
		lastErr = err

		if wait, ok := resendRetryDelay(err, try); ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				continue
			}
		}

		return fmt.Errorf("resend send failed: %w", err)
	}

	return fmt.Errorf("resend send failed after retries: %w", lastErr)
}

func resendRetryDelay(err error, try int) (time.Duration, bool) {
	var rateLimitErr *resend.RateLimitError
	if errors.As(err, &rateLimitErr) {
		if seconds, convErr := strconv.Atoi(strings.TrimSpace(rateLimitErr.RetryAfter)); convErr == nil && seconds > 0 {
			if seconds > 30 {
				seconds = 30
			}
			return time.Duration(seconds) * time.Second, true
		}
		return time.Duration(try+1) * time.Second, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return time.Duration(try+1) * 500 * time.Millisecond, true
	}

	return 0, false
}

// CompletionNotifier: хук отправки письма после сдачи экзамена
type CompletionNotifier struct {
	email EmailService
}

// NewCompletionNotifier создает хук уведомлений
func NewCompletionNotifier(email EmailService) *CompletionNotifier {
	return &CompletionNotifier{email: email}
}

func (n *CompletionNotifier) Name() string { return "completion_email" }

// OnAttemptCompleted пропускает попытки без адреса почты
func (n *CompletionNotifier) OnAttemptCompleted(ctx context.Context, attempt *entity.Attempt, email string) error {
	if strings.TrimSpace(email) == "" {
		return nil
	}
	return n.email.SendCompletionNotice(ctx, email, attempt)
}
