package auth

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// Назначение токена
const (
	UsageExamSession = "exam_session"
	UsageWSTicket    = "websocket_auth"
)

// Ошибки разбора токена
var (
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenExpired   = errors.New("token is expired")
	ErrTokenInvalid   = errors.New("token validation failed")
	ErrTokenUsage     = errors.New("token has wrong usage")
)

// ExamClaims содержит данные доступа студента к одному экзамену
type ExamClaims struct {
	CredentialID uint   `json:"credential_id,omitempty"`
	UserID       uint   `json:"user_id,omitempty"`
	SessionID    string `json:"session_id,omitempty"`
	ExamID       uint   `json:"exam_id"`
	TestType     string `json:"test_type"`
	Email        string `json:"email,omitempty"`
	Usage        string `json:"usage"`
	jwt.RegisteredClaims
}

// Identity returns the progress identity of the token holder: user id, else
// session id, else empty.
func (c *ExamClaims) Identity() (userID, sessionID string) {
	if c.UserID != 0 {
		userID = fmt.Sprintf("%d", c.UserID)
	}
	return userID, c.SessionID
}

// SessionUUID parses the session id claim.
func (c *ExamClaims) SessionUUID() *uuid.UUID {
	if c.SessionID == "" {
		return nil
	}
	id, err := uuid.Parse(c.SessionID)
	if err != nil {
		return nil
	}
	return &id
}

// JWTService выпускает и проверяет токены экзаменационных сессий (HS256)
type JWTService struct {
	secret         []byte
	issuer         string
	expiration     time.Duration
	wsTicketExpiry time.Duration
	now            func() time.Time
}

// NewJWTService создает новый сервис JWT и возвращает ошибку при проблемах
func NewJWTService(secret string, expirationHrs int, wsTicketExpirySec int) (*JWTService, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("jwt secret must be at least 16 characters")
	}
	if expirationHrs <= 0 {
		expirationHrs = 4
	}
	wsExpiry := time.Duration(wsTicketExpirySec) * time.Second
	if wsExpiry <= 0 {
		wsExpiry = 60 * time.Second
	}
	return &JWTService{
		secret:         []byte(secret),
		issuer:         "exam-portal-api",
		expiration:     time.Duration(expirationHrs) * time.Hour,
		wsTicketExpiry: wsExpiry,
		now:            time.Now,
	}, nil
}

func (s *JWTService) sign(claims ExamClaims, ttl time.Duration) (string, error) {
	now := s.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    s.issuer,
		ID:        uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		log.Printf("[JWT] Ошибка генерации токена для экзамена #%d: %v", claims.ExamID, err)
		return "", err
	}
	return tokenString, nil
}

// GenerateExamToken выпускает токен доступа к экзамену. expiresAt ограничивает
// срок действия токена сроком действия доступа.
func (s *JWTService) GenerateExamToken(claims ExamClaims, expiresAt *time.Time) (string, error) {
	claims.Usage = UsageExamSession
	ttl := s.expiration
	if expiresAt != nil {
		if until := expiresAt.Sub(s.now()); until < ttl {
			ttl = until
		}
	}
	if ttl <= 0 {
		return "", ErrTokenExpired
	}
	return s.sign(claims, ttl)
}

// GenerateWSTicket выпускает короткоживущий тикет для подключения к WebSocket
func (s *JWTService) GenerateWSTicket(claims *ExamClaims) (string, error) {
	ticket := *claims
	ticket.Usage = UsageWSTicket
	return s.sign(ticket, s.wsTicketExpiry)
}

func (s *JWTService) parse(tokenString, usage string) (*ExamClaims, error) {
	claims := &ExamClaims{}
	// срок действия проверяется ниже по часам сервиса
	parser := jwt.Parser{SkipClaimsValidation: true}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) {
			if ve.Errors&jwt.ValidationErrorMalformed != 0 {
				return nil, ErrTokenMalformed
			}
		}
		log.Printf("[JWT] Ошибка при разборе токена: %v", err)
		return nil, ErrTokenInvalid
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	if !claims.VerifyExpiresAt(s.now(), true) {
		log.Printf("[JWT] Токен истек для экзамена #%d", claims.ExamID)
		return nil, ErrTokenExpired
	}
	if claims.Usage != usage {
		return nil, ErrTokenUsage
	}
	return claims, nil
}

// ParseToken проверяет токен экзаменационной сессии
func (s *JWTService) ParseToken(tokenString string) (*ExamClaims, error) {
	return s.parse(tokenString, UsageExamSession)
}

// ParseWSTicket проверяет тикет WebSocket
func (s *JWTService) ParseWSTicket(tokenString string) (*ExamClaims, error) {
	return s.parse(tokenString, UsageWSTicket)
}
