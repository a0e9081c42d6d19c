package service

import (
	"context"
	"edu_quiz_backend/internal/events"
	"edu_quiz_backend/internal/model"
	"edu_quiz_backend/internal/repository"
	"edu_quiz_backend/internal/util"
	"edu_quiz_backend/pkg/logger"
	"edu_quiz_backend/pkg/monitoring"
	"edu_quiz_backend/pkg/tracing"
	"encoding/json"
	"errors"
	"math"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// QuizService 负责开始和提交测验。Guard、Events、Archiver 可为 nil
type QuizService struct {
	QuizRepo   *repository.QuizRepository
	CourseRepo *repository.CourseRepository
	Provider   QuizContentProvider
	Guard      StartGuard
	Events     events.Publisher
	Archiver   QuizArchiver
}

func NewQuizService(quizRepo *repository.QuizRepository, courseRepo *repository.CourseRepository, provider QuizContentProvider) *QuizService {
	return &QuizService{QuizRepo: quizRepo, CourseRepo: courseRepo, Provider: provider}
}

// SubmitResult 提交后的评分结果
type SubmitResult struct {
	AttemptID      uint             `json:"attempt_id"`
	Score          float64          `json:"score"`
	RoundedScore   int              `json:"rounded_score"`
	Correct        int              `json:"correct"`
	Total          int              `json:"total"`
	NextDifficulty model.Difficulty `json:"next_difficulty"`
}

func (s *QuizService) ownedCourse(studentID, courseID uint) (*model.StudentCourse, error) {
	course, err := s.CourseRepo.FindByIDForStudent(courseID, studentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCourseNotFound
	}
	return course, err
}

// StartQuiz 按上次成绩选择难度并生成一份新测验。生成失败时不写入任何记录
func (s *QuizService) StartQuiz(ctx context.Context, studentID, courseID uint) (attempt *model.QuizAttempt, err error) {
	ctx, span := tracing.StartSpan(ctx, "QuizService.StartQuiz",
		attribute.Int64("student.id", int64(studentID)),
		attribute.Int64("course.id", int64(courseID)))
	defer func() { tracing.EndSpan(span, err) }()

	course, err := s.ownedCourse(studentID, courseID)
	if err != nil {
		return nil, err
	}

	if s.Guard != nil {
		release, gerr := s.Guard.Acquire(ctx, course.ID)
		switch {
		case errors.Is(gerr, util.ErrQuizStartInProgress):
			return nil, gerr
		case gerr != nil:
			// 锁不可用时照常生成
			logger.Log.Warn("Quiz start guard unavailable", zap.Uint("course_id", course.ID), zap.Error(gerr))
		default:
			defer release()
		}
	}

	latest, err := s.QuizRepo.LatestAttempt(course.ID)
	if err != nil {
		return nil, err
	}
	difficulty := NextDifficulty(latest)
	span.SetAttributes(attribute.String("quiz.difficulty", string(difficulty)))

	specs, ok := s.Provider.Generate(ctx, course.CourseName, difficulty)
	if !ok {
		return nil, util.ErrQuizUnavailable
	}

	attempt = buildQuizAttempt(studentID, course.ID, difficulty, specs)
	if err := s.QuizRepo.CreateAttempt(attempt); err != nil {
		return nil, err
	}

	monitoring.QuizAttemptsStarted.WithLabelValues(string(difficulty)).Inc()
	logger.Log.Info("Quiz attempt created",
		zap.Uint("attempt_id", attempt.ID),
		zap.Uint("student_id", studentID),
		zap.Uint("course_id", course.ID),
		zap.String("difficulty", string(difficulty)))

	s.archive(ctx, course.CourseName, attempt)
	s.publish(ctx, events.NewQuizStartedEvent(attempt.ID, studentID, course.ID, string(difficulty)))
	return attempt, nil
}

func buildQuizAttempt(studentID, courseID uint, difficulty model.Difficulty, specs []QuestionSpec) *model.QuizAttempt {
	attempt := &model.QuizAttempt{
		StudentID:  studentID,
		CourseID:   courseID,
		Difficulty: difficulty,
		Questions:  make([]model.QuizQuestion, 0, len(specs)),
	}
	for i, spec := range specs {
		q := model.QuizQuestion{Text: spec.Text, Position: i}
		for j, text := range spec.Answers {
			q.Answers = append(q.Answers, model.QuizAnswer{
				Text:      text,
				IsCorrect: j == spec.CorrectIndex,
				Position:  j,
			})
		}
		attempt.Questions = append(attempt.Questions, q)
	}
	return attempt
}

// GetAttempt 返回学生自己的测验及题目
func (s *QuizService) GetAttempt(studentID, attemptID uint) (*model.QuizAttempt, error) {
	attempt, err := s.QuizRepo.FindAttemptForStudent(attemptID, studentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrAttemptNotFound
	}
	if err != nil {
		return nil, err
	}
	return attempt, nil
}

// SubmitQuiz 评分并保存。answers 为 题目ID -> 选项ID，未作答的题目计为错误
func (s *QuizService) SubmitQuiz(ctx context.Context, studentID, attemptID uint, answers map[uint]uint) (result *SubmitResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "QuizService.SubmitQuiz",
		attribute.Int64("student.id", int64(studentID)),
		attribute.Int64("attempt.id", int64(attemptID)))
	defer func() { tracing.EndSpan(span, err) }()

	attempt, err := s.GetAttempt(studentID, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.IsCompleted {
		return nil, util.ErrAttemptAlreadyCompleted
	}

	correct := 0
	for i := range attempt.Questions {
		q := &attempt.Questions[i]
		chosen, answered := answers[q.ID]
		if answered && chosen != 0 && chosen == q.CorrectAnswerID() {
			correct++
		}
	}
	total := len(attempt.Questions)
	score := CalculateScore(correct, total)

	submitted, err := json.Marshal(answers)
	if err != nil {
		return nil, err
	}

	if err := s.QuizRepo.RecordSubmission(attempt.ID, score, datatypes.JSON(submitted)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAttemptNotFound
		}
		return nil, err
	}

	attempt.Score = &score
	attempt.IsCompleted = true

	result = &SubmitResult{
		AttemptID:      attempt.ID,
		Score:          score,
		RoundedScore:   int(math.Round(score)),
		Correct:        correct,
		Total:          total,
		NextDifficulty: NextDifficulty(attempt),
	}

	monitoring.QuizScores.WithLabelValues(string(attempt.Difficulty)).Observe(score)
	logger.Log.Info("Quiz attempt scored",
		zap.Uint("attempt_id", attempt.ID),
		zap.Uint("student_id", studentID),
		zap.Int("correct", correct),
		zap.Int("total", total),
		zap.Float64("score", score))

	s.publish(ctx, events.NewQuizCompletedEvent(attempt.ID, studentID, attempt.CourseID, string(attempt.Difficulty), score, result.RoundedScore))
	return result, nil
}

// ListCourseAttempts 课程的测验历史，新的在前
func (s *QuizService) ListCourseAttempts(studentID, courseID uint) ([]model.QuizAttempt, error) {
	course, err := s.ownedCourse(studentID, courseID)
	if err != nil {
		return nil, err
	}
	return s.QuizRepo.ListAttemptsByCourse(course.ID)
}

// ListPendingAttempts 已开始但尚未提交的测验
func (s *QuizService) ListPendingAttempts(studentID uint) ([]model.QuizAttempt, error) {
	return s.QuizRepo.ListPendingByStudent(studentID)
}

func (s *QuizService) archive(ctx context.Context, topic string, attempt *model.QuizAttempt) {
	if s.Archiver == nil {
		return
	}
	url, err := s.Archiver.Archive(ctx, topic, attempt)
	if err != nil {
		logger.Log.Warn("Failed to archive quiz", zap.Uint("attempt_id", attempt.ID), zap.Error(err))
		return
	}
	logger.Log.Debug("Quiz archived", zap.Uint("attempt_id", attempt.ID), zap.String("url", url))
}

func (s *QuizService) publish(ctx context.Context, event *events.QuizEvent) {
	if s.Events == nil {
		return
	}
	if err := s.Events.PublishQuizEvent(ctx, event); err != nil {
		logger.Log.Warn("Failed to publish quiz event",
			zap.String("event_type", string(event.Type)),
			zap.Uint("attempt_id", event.AttemptID),
			zap.Error(err))
	}
}
