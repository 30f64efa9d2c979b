package errors

import (
	"errors"
	"fmt"
)

// Общие ошибки приложения
var (
	// ErrNotFound используется, когда запись или ресурс не найдены.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthorized используется для ошибок авторизации (неверный токен, нет прав).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden используется, когда у пользователя недостаточно прав для действия.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation используется для ошибок валидации входных данных.
	ErrValidation = errors.New("validation failed")

	// ErrExpiredToken используется, когда токен сессии экзамена истек.
	ErrExpiredToken = errors.New("token is expired")

	// ErrConflict используется для конфликтов состояния (например, повторное использование учетных данных).
	ErrConflict = errors.New("resource state conflict")
)

// Kind is a stable classification attached where an error is raised. Retry and
// display logic switch on it instead of inspecting message text.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindExpired
	KindAlreadyCompleted
	KindIncompleteSubmission
	KindNetwork
	KindValidation
	KindInvalidCredentials
	KindRestricted
)

var kindNames = map[Kind]string{
	KindInternal:             "internal",
	KindNotFound:             "not_found",
	KindExpired:              "expired",
	KindAlreadyCompleted:     "already_completed",
	KindIncompleteSubmission: "incomplete_submission",
	KindNetwork:              "network",
	KindValidation:           "validation",
	KindInvalidCredentials:   "invalid_credentials",
	KindRestricted:           "restricted",
}

// String returns the snake_case name used as error_type in API responses.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "internal"
}

// Error is an application error tagged with a Kind.
type Error struct {
	Kind Kind
	Op   string // operation, e.g. "CredentialService.ValidateCredentials"
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E builds a tagged error.
func E(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

// KindOf returns the Kind of the outermost tagged error in the chain. Untagged
// errors are classified through the legacy sentinels, falling back to KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrExpiredToken):
		return KindExpired
	case errors.Is(err, ErrUnauthorized):
		return KindInvalidCredentials
	case errors.Is(err, ErrForbidden):
		return KindRestricted
	case errors.Is(err, ErrConflict):
		return KindAlreadyCompleted
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsRetryable reports whether err is a transient network-class failure.
func IsRetryable(err error) bool {
	return Is(err, KindNetwork)
}
