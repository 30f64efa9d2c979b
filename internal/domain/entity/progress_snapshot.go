package entity

import (
	"fmt"
	"time"
)

// ProgressSnapshot: сохраненный прогресс незавершенного экзамена.
// Формат JSON совпадает с тем, что exam UI хранило локально.
type ProgressSnapshot struct {
	ExamID               uint              `json:"examId"`
	SessionID            string            `json:"sessionId,omitempty"`
	UserID               string            `json:"userId,omitempty"`
	Questions            []uint            `json:"questions"`
	Answers              map[string]string `json:"answers"`
	CurrentQuestionIndex int               `json:"currentQuestionIndex"`
	LastUpdated          time.Time         `json:"lastUpdated"`
	ExamStarted          bool              `json:"examStarted"`
	ExamCompleted        bool              `json:"examCompleted"`
}

// ProgressKey builds the storage key exam_progress_{examId}_{identity}. The
// identity is the user id, else the session id, else "anonymous".
func ProgressKey(examID uint, userID, sessionID string) string {
	identity := "anonymous"
	switch {
	case userID != "":
		identity = userID
	case sessionID != "":
		identity = sessionID
	}
	return fmt.Sprintf("exam_progress_%d_%s", examID, identity)
}

// Key returns the storage key for the snapshot.
func (p *ProgressSnapshot) Key() string {
	return ProgressKey(p.ExamID, p.UserID, p.SessionID)
}
