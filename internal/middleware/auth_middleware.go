package middleware

import (
	"crypto/subtle"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/exam-portal-api/pkg/auth"
)

// ClaimsKey: ключ claims экзаменационного токена в контексте Gin
const ClaimsKey = "exam_claims"

// TokenParser проверяет экзаменационные токены
type TokenParser interface {
	ParseToken(tokenString string) (*auth.ExamClaims, error)
}

// AuthMiddleware обеспечивает аутентификацию экзаменационных маршрутов
type AuthMiddleware struct {
	tokens   TokenParser
	adminKey string
}

// NewAuthMiddleware создает новый middleware. Пустой adminKey закрывает админские маршруты.
func NewAuthMiddleware(tokens TokenParser, adminKey string) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, adminKey: adminKey}
}

func bearerToken(c *gin.Context) (string, string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", "token_missing"
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", "token_format"
	}
	return parts[1], ""
}

// RequireExamToken проверяет Bearer токен экзаменационной сессии
func (m *AuthMiddleware) RequireExamToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, problem := bearerToken(c)
		if problem != "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":      "Authorization header format must be Bearer {token}",
				"error_type": problem,
			})
			return
		}
		if m.setClaims(c, token) {
			c.Next()
		}
	}
}

// OptionalExamToken пропускает запрос без заголовка Authorization,
// но отклоняет присланный неверный токен
func (m *AuthMiddleware) OptionalExamToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, problem := bearerToken(c)
		switch problem {
		case "":
			if m.setClaims(c, token) {
				c.Next()
			}
		case "token_missing":
			c.Next()
		default:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":      "Authorization header format must be Bearer {token}",
				"error_type": problem,
			})
		}
	}
}

func (m *AuthMiddleware) setClaims(c *gin.Context, token string) bool {
	claims, err := m.tokens.ParseToken(token)
	if err != nil {
		errorType := "token_invalid"
		if errors.Is(err, auth.ErrTokenExpired) {
			errorType = "token_expired"
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":      "Invalid or expired token",
			"error_type": errorType,
		})
		return false
	}
	c.Set(ClaimsKey, claims)
	return true
}

// ExamClaims возвращает claims, установленные RequireExamToken или OptionalExamToken
func ExamClaims(c *gin.Context) *auth.ExamClaims {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.ExamClaims)
	return claims
}

// AdminOnly проверяет заголовок X-Admin-Key
func (m *AuthMiddleware) AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("X-Admin-Key")
		if m.adminKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(m.adminKey)) != 1 {
			log.Printf("[AuthMiddleware] Отклонен админский запрос %s от %s", c.FullPath(), c.ClientIP())
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin rights required", "error_type": "forbidden"})
			return
		}
		c.Next()
	}
}
