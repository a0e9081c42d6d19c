package controller

import (
	"edu_quiz_backend/internal/model"
	"edu_quiz_backend/internal/service"
	"edu_quiz_backend/internal/util"
	"edu_quiz_backend/pkg/logger"
	"encoding/json"
	"errors"
	"io"
	"math"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type QuizController struct {
	QuizService *service.QuizService
}

func NewQuizController(quizService *service.QuizService) *QuizController {
	return &QuizController{QuizService: quizService}
}

// SubmitQuizRequest answers 的 key 为题目ID，value 为所选选项ID
type SubmitQuizRequest struct {
	Answers map[uint]uint `json:"answers"`
}

type answerView struct {
	ID        uint   `json:"id"`
	Text      string `json:"text"`
	IsCorrect *bool  `json:"is_correct,omitempty"`
}

type questionView struct {
	ID               uint         `json:"id"`
	Text             string       `json:"text"`
	Answers          []answerView `json:"answers"`
	SelectedAnswerID *uint        `json:"selected_answer_id,omitempty"`
}

type attemptView struct {
	ID           uint             `json:"id"`
	CourseID     uint             `json:"course_id"`
	CourseName   string           `json:"course_name,omitempty"`
	Difficulty   model.Difficulty `json:"difficulty"`
	IsCompleted  bool             `json:"is_completed"`
	Score        *float64         `json:"score,omitempty"`
	RoundedScore *int             `json:"rounded_score,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
	Questions    []questionView   `json:"questions,omitempty"`
}

// newAttemptView 未提交前不返回正确答案
func newAttemptView(a *model.QuizAttempt) attemptView {
	v := attemptView{
		ID:          a.ID,
		CourseID:    a.CourseID,
		Difficulty:  a.Difficulty,
		IsCompleted: a.IsCompleted,
		Score:       a.Score,
		CreatedAt:   a.CreatedAt,
		CompletedAt: a.CompletedAt,
	}
	if a.Course != nil {
		v.CourseName = a.Course.CourseName
	}
	if a.Score != nil {
		rounded := int(math.Round(*a.Score))
		v.RoundedScore = &rounded
	}

	var selected map[uint]uint
	if a.IsCompleted && len(a.SubmittedAnswers) > 0 {
		if err := json.Unmarshal(a.SubmittedAnswers, &selected); err != nil {
			// 作答记录损坏时仍返回题目和正确答案，只是不带已选项
			logger.Log.Warn("Failed to decode submitted answers",
				zap.Uint("attempt_id", a.ID),
				zap.Error(err))
		}
	}

	for _, q := range a.Questions {
		qv := questionView{ID: q.ID, Text: q.Text, Answers: make([]answerView, 0, len(q.Answers))}
		for _, ans := range q.Answers {
			av := answerView{ID: ans.ID, Text: ans.Text}
			if a.IsCompleted {
				correct := ans.IsCorrect
				av.IsCorrect = &correct
			}
			qv.Answers = append(qv.Answers, av)
		}
		if id, ok := selected[q.ID]; ok {
			qv.SelectedAnswerID = &id
		}
		v.Questions = append(v.Questions, qv)
	}
	return v
}

// StartQuiz godoc
// @Summary 开始测验
// @Description 根据该课程上一次测验成绩选择难度，并由 AI 生成 10 道选择题
// @Tags 测验
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Success 201 {object} util.Response{data=object} "attempt_id 与 difficulty"
// @Failure 404 {object} util.Response "课程不存在"
// @Failure 409 {object} util.Response "该课程正在生成测验"
// @Failure 503 {object} util.Response "生成失败，请稍后重试"
// @Router /api/courses/{id}/quizzes [post]
func (c *QuizController) StartQuiz(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	courseID, ok := pathID(ctx)
	if !ok {
		return
	}

	attempt, err := c.QuizService.StartQuiz(ctx.Request.Context(), userID, courseID)
	switch {
	case errors.Is(err, util.ErrCourseNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrQuizStartInProgress):
		util.Conflict(ctx, err.Error())
	case errors.Is(err, util.ErrQuizUnavailable):
		util.ServiceUnavailable(ctx, "Quiz generation is unavailable right now, please try again later.")
	case err != nil:
		util.LogInternalError(ctx, err)
	default:
		util.Created(ctx, gin.H{"attempt_id": attempt.ID, "difficulty": attempt.Difficulty})
	}
}

// GetAttempt godoc
// @Summary 查看测验
// @Description 未提交时不包含正确答案
// @Tags 测验
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Success 200 {object} util.Response{data=object}
// @Failure 404 {object} util.Response
// @Router /api/quizzes/{id} [get]
func (c *QuizController) GetAttempt(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	attemptID, ok := pathID(ctx)
	if !ok {
		return
	}

	attempt, err := c.QuizService.GetAttempt(userID, attemptID)
	if errors.Is(err, util.ErrAttemptNotFound) {
		util.NotFound(ctx)
		return
	}
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, newAttemptView(attempt))
}

// SubmitQuiz godoc
// @Summary 提交测验
// @Description 未作答的题目计为错误，分数为正确题数占比的百分数
// @Tags 测验
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Param body body SubmitQuizRequest true "题目ID到选项ID的映射"
// @Success 200 {object} util.Response{data=object}
// @Failure 400 {object} util.Response
// @Failure 404 {object} util.Response
// @Failure 409 {object} util.Response "测验已提交"
// @Router /api/quizzes/{id}/submit [post]
func (c *QuizController) SubmitQuiz(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	attemptID, ok := pathID(ctx)
	if !ok {
		return
	}

	// 空请求体等同于未作答任何题目
	var req SubmitQuizRequest
	if err := ctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.QuizService.SubmitQuiz(ctx.Request.Context(), userID, attemptID, req.Answers)
	switch {
	case errors.Is(err, util.ErrAttemptNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrAttemptAlreadyCompleted):
		util.Conflict(ctx, err.Error())
	case err != nil:
		util.LogInternalError(ctx, err)
	default:
		util.Success(ctx, gin.H{
			"attempt_id":      result.AttemptID,
			"score":           result.Score,
			"rounded_score":   result.RoundedScore,
			"correct":         result.Correct,
			"total":           result.Total,
			"completed":       true,
			"next_difficulty": result.NextDifficulty,
		})
	}
}

// ListCourseAttempts godoc
// @Summary 课程测验历史
// @Tags 测验
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response{data=[]object}
// @Failure 404 {object} util.Response
// @Router /api/courses/{id}/quizzes [get]
func (c *QuizController) ListCourseAttempts(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	courseID, ok := pathID(ctx)
	if !ok {
		return
	}

	attempts, err := c.QuizService.ListCourseAttempts(userID, courseID)
	if errors.Is(err, util.ErrCourseNotFound) {
		util.NotFound(ctx)
		return
	}
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, attemptViews(attempts))
}

// ListPending godoc
// @Summary 未提交的测验
// @Tags 测验
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]object}
// @Router /api/quizzes/pending [get]
func (c *QuizController) ListPending(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	attempts, err := c.QuizService.ListPendingAttempts(userID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, attemptViews(attempts))
}

func attemptViews(attempts []model.QuizAttempt) []attemptView {
	views := make([]attemptView, 0, len(attempts))
	for i := range attempts {
		views = append(views, newAttemptView(&attempts[i]))
	}
	return views
}
