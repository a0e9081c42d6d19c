package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventQuizStarted   EventType = "quiz.started"
	EventQuizCompleted EventType = "quiz.completed"
)

const (
	eventSource  = "edu-quiz"
	eventVersion = "1.0"
)

// QuizEvent 测验生命周期事件，作为消息体发布
type QuizEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Version   string    `json:"version"`

	AttemptID    uint     `json:"attempt_id"`
	StudentID    uint     `json:"student_id"`
	CourseID     uint     `json:"course_id"`
	Difficulty   string   `json:"difficulty"`
	Score        *float64 `json:"score,omitempty"`
	RoundedScore *int     `json:"rounded_score,omitempty"`
}

func newQuizEvent(t EventType, attemptID, studentID, courseID uint, difficulty string) *QuizEvent {
	return &QuizEvent{
		ID:         uuid.NewString(),
		Type:       t,
		Timestamp:  time.Now().UTC(),
		Source:     eventSource,
		Version:    eventVersion,
		AttemptID:  attemptID,
		StudentID:  studentID,
		CourseID:   courseID,
		Difficulty: difficulty,
	}
}

func NewQuizStartedEvent(attemptID, studentID, courseID uint, difficulty string) *QuizEvent {
	return newQuizEvent(EventQuizStarted, attemptID, studentID, courseID, difficulty)
}

func NewQuizCompletedEvent(attemptID, studentID, courseID uint, difficulty string, score float64, rounded int) *QuizEvent {
	e := newQuizEvent(EventQuizCompleted, attemptID, studentID, courseID, difficulty)
	e.Score = &score
	e.RoundedScore = &rounded
	return e
}
