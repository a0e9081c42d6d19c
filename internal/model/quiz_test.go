package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDifficultyNext(t *testing.T) {
	assert.Equal(t, Intermediate, Basic.Next())
	assert.Equal(t, Advanced, Intermediate.Next())
	assert.Equal(t, Advanced, Advanced.Next())
	assert.Equal(t, Basic, Difficulty("Expert").Next())
}

func TestDifficultyValid(t *testing.T) {
	assert.True(t, Basic.Valid())
	assert.True(t, Advanced.Valid())
	assert.False(t, Difficulty("basic").Valid())
	assert.False(t, Difficulty("").Valid())
}

func TestCorrectAnswerID(t *testing.T) {
	q := QuizQuestion{Answers: []QuizAnswer{
		{BaseModel: BaseModel{ID: 11}},
		{BaseModel: BaseModel{ID: 12}, IsCorrect: true},
		{BaseModel: BaseModel{ID: 13}},
	}}
	assert.Equal(t, uint(12), q.CorrectAnswerID())

	assert.Zero(t, (&QuizQuestion{}).CorrectAnswerID())
}
