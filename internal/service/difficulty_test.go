package service

import (
	"edu_quiz_backend/internal/model"
	"testing"

	"github.com/stretchr/testify/assert"
)

func attemptWith(d model.Difficulty, score *float64) *model.QuizAttempt {
	return &model.QuizAttempt{Difficulty: d, Score: score}
}

func scorePtr(v float64) *float64 { return &v }

func TestNextDifficultyWithoutHistory(t *testing.T) {
	assert.Equal(t, model.Basic, NextDifficulty(nil))
}

func TestNextDifficulty(t *testing.T) {
	tests := []struct {
		name string
		last *model.QuizAttempt
		want model.Difficulty
	}{
		{"basic passed", attemptWith(model.Basic, scorePtr(80)), model.Intermediate},
		{"basic exactly threshold", attemptWith(model.Basic, scorePtr(75)), model.Intermediate},
		{"intermediate passed", attemptWith(model.Intermediate, scorePtr(100)), model.Advanced},
		{"advanced saturates", attemptWith(model.Advanced, scorePtr(90)), model.Advanced},
		{"basic failed", attemptWith(model.Basic, scorePtr(74.9)), model.Basic},
		{"intermediate failed", attemptWith(model.Intermediate, scorePtr(0)), model.Intermediate},
		{"advanced failed", attemptWith(model.Advanced, scorePtr(50)), model.Advanced},
		{"unscored stays", attemptWith(model.Intermediate, nil), model.Intermediate},
		{"unknown tier falls back to basic", attemptWith(model.Difficulty("Expert"), nil), model.Basic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextDifficulty(tt.last))
		})
	}
}

func TestNextDifficultyIsDeterministic(t *testing.T) {
	for _, d := range []model.Difficulty{model.Basic, model.Intermediate, model.Advanced} {
		for _, s := range []float64{0, 50, 74.99, 75, 99, 100} {
			last := attemptWith(d, scorePtr(s))
			first := NextDifficulty(last)
			assert.Equal(t, first, NextDifficulty(last))
			// 输入不被修改
			assert.Equal(t, d, last.Difficulty)
			assert.InDelta(t, s, *last.Score, 0)
		}
	}
}

func TestCalculateScore(t *testing.T) {
	assert.InDelta(t, 70.0, CalculateScore(7, 10), 0.0001)
	assert.InDelta(t, 50.0, CalculateScore(5, 10), 0.0001)
	assert.InDelta(t, 100.0, CalculateScore(10, 10), 0.0001)
	assert.Zero(t, CalculateScore(0, 0))
	assert.Zero(t, CalculateScore(3, 0))
}
