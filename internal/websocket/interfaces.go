package websocket

// MetricsProvider определяет метод для получения метрик хаба.
type MetricsProvider interface {
	GetMetrics() map[string]interface{}
	ClientCount() int
}

// HubInterface объединяет возможности хаба, нужные Manager.
type HubInterface interface {
	MetricsProvider

	// SendJSONToRoom отправляет структуру JSON всем клиентам комнаты экзамена
	SendJSONToRoom(room string, v interface{}) error

	// BroadcastJSON отправляет структуру JSON всем клиентам
	BroadcastJSON(v interface{}) error
}
