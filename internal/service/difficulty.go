package service

import "edu_quiz_backend/internal/model"

// NextDifficulty 根据同一课程上一次测验决定本次难度：
// 没有记录时为 Basic；上次已评分且不低于 75 分时升一级（最高 Advanced）；否则保持不变
func NextDifficulty(last *model.QuizAttempt) model.Difficulty {
	if last == nil {
		return model.Basic
	}

	current := last.Difficulty
	if !current.Valid() {
		current = model.Basic
	}

	if last.Score != nil && *last.Score >= model.PassingScore {
		return current.Next()
	}
	return current
}

// CalculateScore 百分制得分，题目数为 0 时返回 0
func CalculateScore(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(correct) / float64(total) * 100
}
