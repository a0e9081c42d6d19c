package controller

import (
	"edu_quiz_backend/internal/model"
	"edu_quiz_backend/pkg/logger"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/datatypes"
)

func completedAttempt(answers datatypes.JSON) *model.QuizAttempt {
	score := 100.0
	a := &model.QuizAttempt{
		CourseID:         3,
		Difficulty:       model.Basic,
		IsCompleted:      true,
		Score:            &score,
		SubmittedAnswers: answers,
	}
	a.ID = 9
	q := model.QuizQuestion{Text: "q"}
	q.ID = 11
	for i, correct := range []bool{true, false} {
		ans := model.QuizAnswer{Text: "a", IsCorrect: correct}
		ans.ID = uint(21 + i)
		q.Answers = append(q.Answers, ans)
	}
	a.Questions = []model.QuizQuestion{q}
	return a
}

func TestNewAttemptViewSelectedAnswers(t *testing.T) {
	v := newAttemptView(completedAttempt(datatypes.JSON(`{"11":21}`)))

	require.Len(t, v.Questions, 1)
	require.NotNil(t, v.Questions[0].SelectedAnswerID)
	assert.EqualValues(t, 21, *v.Questions[0].SelectedAnswerID)
	require.NotNil(t, v.Questions[0].Answers[0].IsCorrect)
	assert.True(t, *v.Questions[0].Answers[0].IsCorrect)
	require.NotNil(t, v.RoundedScore)
	assert.Equal(t, 100, *v.RoundedScore)
}

func TestNewAttemptViewCorruptAnswersLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := logger.Log
	logger.Log = zap.New(core)
	t.Cleanup(func() { logger.Log = prev })

	v := newAttemptView(completedAttempt(datatypes.JSON(`{"11":`)))

	require.Len(t, v.Questions, 1)
	assert.Nil(t, v.Questions[0].SelectedAnswerID)
	require.NotNil(t, v.Questions[0].Answers[0].IsCorrect)

	entries := logs.FilterMessage("Failed to decode submitted answers").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.EqualValues(t, 9, entries[0].ContextMap()["attempt_id"])
}
