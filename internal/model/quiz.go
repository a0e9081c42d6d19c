package model

import (
	"time"

	"gorm.io/datatypes"
)

type Difficulty string

const (
	Basic        Difficulty = "Basic"
	Intermediate Difficulty = "Intermediate"
	Advanced     Difficulty = "Advanced"
)

const (
	QuestionsPerQuiz   = 10
	AnswersPerQuestion = 4
	// PassingScore 达到该分数后下一次测验升一级
	PassingScore = 75.0
)

var difficultyOrder = []Difficulty{Basic, Intermediate, Advanced}

func (d Difficulty) Valid() bool {
	return d.rank() >= 0
}

func (d Difficulty) rank() int {
	for i, v := range difficultyOrder {
		if v == d {
			return i
		}
	}
	return -1
}

// Next 返回高一级难度，Advanced 保持不变
func (d Difficulty) Next() Difficulty {
	r := d.rank()
	if r < 0 {
		return Basic
	}
	if r+1 >= len(difficultyOrder) {
		return difficultyOrder[len(difficultyOrder)-1]
	}
	return difficultyOrder[r+1]
}

// QuizAttempt 一次 AI 生成的测验。创建时未评分，提交后写入分数并标记完成，仅此一次状态变更
// swagger:model QuizAttempt
type QuizAttempt struct {
	BaseModel
	StudentID        uint           `gorm:"index;not null" json:"studentId"`
	CourseID         uint           `gorm:"index;not null" json:"courseId"`
	Course           *StudentCourse `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"course,omitempty"`
	Difficulty       Difficulty     `gorm:"size:20;not null;default:'Basic'" json:"difficulty"`
	Score            *float64       `json:"score"`
	IsCompleted      bool           `gorm:"default:false;index" json:"isCompleted"`
	CompletedAt      *time.Time     `json:"completedAt"`
	SubmittedAnswers datatypes.JSON `json:"submittedAnswers,omitempty"`
	Questions        []QuizQuestion `gorm:"foreignKey:QuizAttemptID;constraint:OnDelete:CASCADE" json:"questions,omitempty"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}

// swagger:model QuizQuestion
type QuizQuestion struct {
	BaseModel
	QuizAttemptID uint         `gorm:"index;not null" json:"quizAttemptId"`
	Text          string       `gorm:"size:1000;not null" json:"text"`
	Position      int          `gorm:"not null" json:"position"`
	Answers       []QuizAnswer `gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE" json:"answers,omitempty"`
}

func (QuizQuestion) TableName() string {
	return "quiz_questions"
}

// CorrectAnswerID 返回正确选项的ID，没有时返回0
func (q *QuizQuestion) CorrectAnswerID() uint {
	for _, a := range q.Answers {
		if a.IsCorrect {
			return a.ID
		}
	}
	return 0
}

// swagger:model QuizAnswer
type QuizAnswer struct {
	BaseModel
	QuestionID uint   `gorm:"index;not null" json:"questionId"`
	Text       string `gorm:"size:500;not null" json:"text"`
	IsCorrect  bool   `gorm:"default:false" json:"isCorrect"`
	Position   int    `gorm:"not null" json:"position"`
}

func (QuizAnswer) TableName() string {
	return "quiz_answers"
}
