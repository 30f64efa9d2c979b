package websocket

// Типы сообщений таймера экзамена
const (
	// EXAM_TIMER_SYNC передает текущее оставшееся время при подключении
	EXAM_TIMER_SYNC = "EXAM_TIMER_SYNC"

	// EXAM_TIMER_TICK сообщает об очередном шаге обратного отсчета
	EXAM_TIMER_TICK = "EXAM_TIMER_TICK"

	// EXAM_TIME_UP сообщает об истечении времени экзамена
	EXAM_TIME_UP = "EXAM_TIME_UP"

	// EXAM_SUBMITTED сообщает о сохранении результата
	EXAM_SUBMITTED = "EXAM_SUBMITTED"
)

// Типы сообщений, связанные с авторизацией
const (
	// TOKEN_EXPIRED уведомляет об истечении срока действия токена
	TOKEN_EXPIRED = "TOKEN_EXPIRED"
)

// Входящие сообщения клиента
const (
	// CLIENT_TIMER_REQUEST запрашивает актуальное оставшееся время
	CLIENT_TIMER_REQUEST = "timer:request"
)
