package websocket

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

type roomMessage struct {
	room    string // пустая строка означает всех клиентов
	payload []byte
}

// Hub группирует подключения по комнатам. Комната: это один запущенный
// экзамен конкретного студента; несколько вкладок попадают в одну комнату.
type Hub struct {
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan roomMessage
	done       chan struct{}
	closeOnce  sync.Once

	clientCount  int64
	messagesSent int64
	dropped      int64
	startedAt    time.Time
}

// NewHub создает хаб; Run должен быть запущен в отдельной горутине
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan roomMessage, 256),
		done:       make(chan struct{}),
		startedAt:  time.Now(),
	}
}

// Run обрабатывает регистрацию клиентов и рассылку сообщений
func (h *Hub) Run() {
	log.Printf("[WebSocketHub] Запущен")
	for {
		select {
		case <-h.done:
			for _, clients := range h.rooms {
				for client := range clients {
					client.CloseSend()
				}
			}
			h.rooms = make(map[string]map[*Client]bool)
			atomic.StoreInt64(&h.clientCount, 0)
			log.Printf("[WebSocketHub] Остановлен")
			return

		case client := <-h.register:
			clients, ok := h.rooms[client.Room]
			if !ok {
				clients = make(map[*Client]bool)
				h.rooms[client.Room] = clients
			}
			clients[client] = true
			atomic.AddInt64(&h.clientCount, 1)
			select {
			case client.registrationComplete <- struct{}{}:
			default:
			}
			log.Printf("[WebSocketHub] Клиент %s подключен к комнате %s", client.ConnectionID, client.Room)

		case client := <-h.unregister:
			h.remove(client)

		case msg := <-h.broadcast:
			if msg.room == "" {
				for _, clients := range h.rooms {
					h.deliver(clients, msg.payload)
				}
				continue
			}
			if clients, ok := h.rooms[msg.room]; ok {
				h.deliver(clients, msg.payload)
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	clients, ok := h.rooms[client.Room]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.rooms, client.Room)
	}
	client.CloseSend()
	atomic.AddInt64(&h.clientCount, -1)
	log.Printf("[WebSocketHub] Клиент %s отключен от комнаты %s", client.ConnectionID, client.Room)
}

func (h *Hub) deliver(clients map[*Client]bool, payload []byte) {
	for client := range clients {
		select {
		case client.send <- payload:
			atomic.AddInt64(&h.messagesSent, 1)
		default:
			atomic.AddInt64(&h.dropped, 1)
			if client.incrementBufferWarningCount() >= maxBufferWarnings {
				log.Printf("[WebSocketHub] Буфер клиента %s переполнен, отключаем", client.ConnectionID)
				h.remove(client)
			}
		}
	}
}

func (h *Hub) enqueue(room string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal websocket message: %w", err)
	}
	select {
	case <-h.done:
		return fmt.Errorf("websocket hub is closed")
	case h.broadcast <- roomMessage{room: room, payload: payload}:
		return nil
	default:
		atomic.AddInt64(&h.dropped, 1)
		return fmt.Errorf("websocket broadcast queue is full")
	}
}

// SendJSONToRoom отправляет структуру JSON всем клиентам комнаты
func (h *Hub) SendJSONToRoom(room string, v interface{}) error {
	if room == "" {
		return fmt.Errorf("room is required")
	}
	return h.enqueue(room, v)
}

// BroadcastJSON отправляет структуру JSON всем клиентам
func (h *Hub) BroadcastJSON(v interface{}) error {
	return h.enqueue("", v)
}

// RegisterClient регистрирует клиента в хабе
func (h *Hub) RegisterClient(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.CloseSend()
	}
}

// UnregisterClient удаляет клиента из хаба
func (h *Hub) UnregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	return int(atomic.LoadInt64(&h.clientCount))
}

// GetMetrics возвращает метрики хаба
func (h *Hub) GetMetrics() map[string]interface{} {
	return map[string]interface{}{
		"client_count":     h.ClientCount(),
		"messages_sent":    atomic.LoadInt64(&h.messagesSent),
		"messages_dropped": atomic.LoadInt64(&h.dropped),
		"uptime_seconds":   int(time.Since(h.startedAt).Seconds()),
	}
}

// Close останавливает хаб и закрывает каналы клиентов
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}
