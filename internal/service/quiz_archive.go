package service

import (
	"context"
	"edu_quiz_backend/internal/model"
	"edu_quiz_backend/internal/util"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// QuizArchiver 保存生成的测验原文，便于事后审查 AI 输出
type QuizArchiver interface {
	Archive(ctx context.Context, topic string, attempt *model.QuizAttempt) (string, error)
}

type archivedQuestion struct {
	Text         string   `json:"text"`
	Answers      []string `json:"answers"`
	CorrectIndex int      `json:"correct_index"`
}

type archivedQuiz struct {
	AttemptID  uint               `json:"attempt_id"`
	StudentID  uint               `json:"student_id"`
	CourseID   uint               `json:"course_id"`
	Topic      string             `json:"topic"`
	Difficulty model.Difficulty   `json:"difficulty"`
	CreatedAt  time.Time          `json:"created_at"`
	Questions  []archivedQuestion `json:"questions"`
}

// StorageQuizArchiver 以 JSON 写入对象存储 quizzes/<course>/<attempt>-<uuid>.json
type StorageQuizArchiver struct {
	Storage *StorageService
}

func NewStorageQuizArchiver(storage *StorageService) *StorageQuizArchiver {
	return &StorageQuizArchiver{Storage: storage}
}

func archiveKey(attempt *model.QuizAttempt) string {
	return fmt.Sprintf("quizzes/%d/%d-%s.json", attempt.CourseID, attempt.ID, uuid.NewString())
}

func (a *StorageQuizArchiver) Archive(ctx context.Context, topic string, attempt *model.QuizAttempt) (string, error) {
	doc := archivedQuiz{
		AttemptID:  attempt.ID,
		StudentID:  attempt.StudentID,
		CourseID:   attempt.CourseID,
		Topic:      topic,
		Difficulty: attempt.Difficulty,
		CreatedAt:  attempt.CreatedAt,
		Questions:  make([]archivedQuestion, 0, len(attempt.Questions)),
	}
	for _, q := range attempt.Questions {
		aq := archivedQuestion{Text: q.Text, CorrectIndex: -1}
		for i, ans := range q.Answers {
			aq.Answers = append(aq.Answers, ans.Text)
			if ans.IsCorrect {
				aq.CorrectIndex = i
			}
		}
		doc.Questions = append(doc.Questions, aq)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding quiz archive: %w", err)
	}

	url, err := a.Storage.PutBytes(ctx, archiveKey(attempt), data, util.MimeJSON)
	if err != nil {
		return "", fmt.Errorf("uploading quiz archive: %w", err)
	}
	return url, nil
}
