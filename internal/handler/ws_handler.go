package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"

	"github.com/yourusername/exam-portal-api/internal/service"
	"github.com/yourusername/exam-portal-api/internal/websocket"
	"github.com/yourusername/exam-portal-api/pkg/auth"
)

// TicketParser проверяет тикеты WebSocket
type TicketParser interface {
	ParseWSTicket(tokenString string) (*auth.ExamClaims, error)
}

// TimerReader возвращает оставшееся время по ключу запуска
type TimerReader interface {
	Remaining(key string) (int, bool)
}

// WSHandler обрабатывает WebSocket соединения таймера экзамена
type WSHandler struct {
	wsHub     *websocket.Hub
	wsManager *websocket.Manager
	exams     *service.ExamService
	timers    TimerReader
	tickets   TicketParser
	upgrader  gorillaws.Upgrader
}

// NewWSHandler создает новый обработчик WebSocket
func NewWSHandler(
	wsHub *websocket.Hub,
	wsManager *websocket.Manager,
	exams *service.ExamService,
	timers TimerReader,
	tickets TicketParser,
	allowedOrigins []string,
) *WSHandler {
	handler := &WSHandler{
		wsHub:     wsHub,
		wsManager: wsManager,
		exams:     exams,
		timers:    timers,
		tickets:   tickets,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:    1024,
			WriteBufferSize:   1024,
			CheckOrigin:       originChecker(allowedOrigins),
			EnableCompression: true,
		},
	}

	// обработчики регистрируются один раз при создании
	handler.registerMessageHandlers()

	return handler
}

// originChecker разрешает пустой Origin (не браузер) и origin из списка CORS
func originChecker(allowedOrigins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, allowed := range allowedOrigins {
			if origin == allowed || allowed == "*" {
				return true
			}
		}
		log.Printf("WebSocket: rejected unauthorized origin: %s", origin)
		return false
	}
}

// timerSync: текущее состояние таймера комнаты
func (h *WSHandler) timerSync(room string) map[string]interface{} {
	remaining, running := h.timers.Remaining(room)
	return map[string]interface{}{
		"remaining": remaining,
		"running":   running,
		"server_ts": time.Now().UnixMilli(),
	}
}

// HandleConnection подключает вкладку экзамена к комнате его таймера
func (h *WSHandler) HandleConnection(c *gin.Context) {
	// НЕ логируем тикет
	ticket := c.Query("ticket")
	if ticket == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing authentication ticket parameter", "error_type": "token_missing"})
		return
	}

	claims, err := h.tickets.ParseWSTicket(ticket)
	if err != nil {
		errorType := "token_invalid"
		if errors.Is(err, auth.ErrTokenExpired) {
			errorType = websocket.TOKEN_EXPIRED
		}
		log.Printf("WebSocket: Invalid or expired ticket - %v", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired ticket", "error_type": errorType})
		return
	}

	room, err := h.exams.RoomFor(claims, claims.ExamID)
	if err != nil {
		respondError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade уже записал ответ
		log.Printf("WebSocket: Error upgrading connection: %v", err)
		return
	}

	client := websocket.NewClient(h.wsHub, conn, room)
	client.StartPumps(h.wsManager.HandleMessage)

	if err := h.wsManager.SendEventToClient(client, websocket.EXAM_TIMER_SYNC, h.timerSync(room)); err != nil {
		log.Printf("[WSHandler] Не удалось отправить начальную синхронизацию в %s: %v", room, err)
	}
}

// registerMessageHandlers регистрирует обработчики входящих сообщений
func (h *WSHandler) registerMessageHandlers() {
	h.wsManager.RegisterHandler(websocket.CLIENT_TIMER_REQUEST, func(data json.RawMessage, client *websocket.Client) error {
		if err := h.wsManager.SendEventToClient(client, websocket.EXAM_TIMER_SYNC, h.timerSync(client.Room)); err != nil {
			log.Printf("[WSHandler] WARNING: Ошибка при отправке синхронизации в %s: %v", client.Room, err)
		}
		// соединение не закрываем
		return nil
	})
}
