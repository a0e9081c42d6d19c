package app

import (
	"bytes"
	"context"
	"edu_quiz_backend/internal/config"
	"edu_quiz_backend/internal/model"
	"edu_quiz_backend/internal/repository"
	"edu_quiz_backend/internal/service"
	"edu_quiz_backend/internal/testutil"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const adminPassword = "admin-secret-123"

type stubProvider struct {
	mu     sync.Mutex
	fail   bool
	topics []string
}

func (p *stubProvider) Generate(_ context.Context, topic string, difficulty model.Difficulty) ([]service.QuestionSpec, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	if p.fail {
		return nil, false
	}

	specs := make([]service.QuestionSpec, model.QuestionsPerQuiz)
	for i := range specs {
		specs[i] = service.QuestionSpec{
			Text:         fmt.Sprintf("%s question %d (%s)", topic, i+1, difficulty),
			Answers:      []string{"A", "B", "C", "D"},
			CorrectIndex: i % model.AnswersPerQuestion,
		}
	}
	return specs, true
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type harness struct {
	t        *testing.T
	app      *App
	db       *gorm.DB
	provider *stubProvider
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db := testutil.DB(t)
	provider := &stubProvider{}
	cfg := &config.Config{
		Server: config.ServerConfig{Port: "0", Mode: "test"},
		JWT:    config.JWTConfig{Secret: "test-secret", ExpireTime: time.Hour},
		Admin:  config.AdminConfig{Username: "admin", Email: "admin@example.com", Password: adminPassword},
		Events: config.EventsConfig{Driver: "gochannel", Topic: config.DefaultEventsTopic},
		CORS:   config.CORSConfig{AllowedOrigins: []string{"*"}},
	}

	application, err := New(cfg, Options{DB: db, Provider: provider})
	require.NoError(t, err)
	t.Cleanup(application.Close)

	return &harness{t: t, app: application, db: db, provider: provider}
}

func (h *harness) do(method, path, token string, body interface{}) (int, envelope) {
	h.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.app.Router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w.Code, env
}

func (h *harness) login(username, password string, role model.UserRole) string {
	h.t.Helper()

	code, env := h.do(http.MethodPost, "/api/login", "", jsonBody{"username": username, "password": password, "role": role})
	require.Equal(h.t, http.StatusOK, code, env.Message)

	var data struct {
		Token string `json:"token"`
	}
	require.NoError(h.t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(h.t, data.Token)
	return data.Token
}

type jsonBody map[string]interface{}

// enrol 注册学生并由管理员为其创建课程
func (h *harness) enrol(username, courseName string) (string, uint) {
	h.t.Helper()

	code, env := h.do(http.MethodPost, "/api/register", "", jsonBody{
		"username":         username,
		"fullname":         username + " Student",
		"email":            username + "@example.com",
		"password":         "password123",
		"confirm_password": "password123",
	})
	require.Equal(h.t, http.StatusCreated, code, env.Message)

	adminToken := h.login("admin", adminPassword, model.Admin)
	code, env = h.do(http.MethodPost, "/api/admin/courses", adminToken, jsonBody{
		"student_name":          username,
		"course_name":           courseName,
		"start_date":            "2025-01-15",
		"hours_spent":           12,
		"completion_percentage": 40,
		"status":                "Ongoing",
	})
	require.Equal(h.t, http.StatusCreated, code, env.Message)
	assert.Equal(h.t, "Course saved successfully!", env.Message)

	var course struct {
		ID uint `json:"id"`
	}
	require.NoError(h.t, json.Unmarshal(env.Data, &course))

	return h.login(username, "password123", model.Student), course.ID
}

func (h *harness) startQuiz(token string, courseID uint) (int, uint, model.Difficulty) {
	h.t.Helper()

	code, env := h.do(http.MethodPost, fmt.Sprintf("/api/courses/%d/quizzes", courseID), token, nil)
	if code != http.StatusCreated {
		return code, 0, ""
	}
	var data struct {
		AttemptID  uint             `json:"attempt_id"`
		Difficulty model.Difficulty `json:"difficulty"`
	}
	require.NoError(h.t, json.Unmarshal(env.Data, &data))
	return code, data.AttemptID, data.Difficulty
}

// answers 前 correct 题答对，其余答错
func (h *harness) answers(attemptID uint, correct int) map[string]uint {
	h.t.Helper()

	attempt, err := repository.NewQuizRepository(h.db).FindAttemptWithQuestions(attemptID)
	require.NoError(h.t, err)

	sheet := make(map[string]uint, len(attempt.Questions))
	for i, q := range attempt.Questions {
		right := q.CorrectAnswerID()
		choice := right
		if i >= correct {
			for _, a := range q.Answers {
				if a.ID != right {
					choice = a.ID
					break
				}
			}
		}
		sheet[fmt.Sprint(q.ID)] = choice
	}
	return sheet
}

func TestHealthAndSwagger(t *testing.T) {
	h := newHarness(t)

	code, env := h.do(http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"database":"up"`)

	req := httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil)
	w := httptest.NewRecorder()
	h.app.Router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/courses/{id}/quizzes")
}

func TestAdaptiveQuizFlow(t *testing.T) {
	h := newHarness(t)
	token, courseID := h.enrol("alice", "Data Structures")

	code, attemptID, difficulty := h.startQuiz(token, courseID)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, model.Basic, difficulty)
	assert.Equal(t, []string{"Data Structures"}, h.provider.topics)

	code, env := h.do(http.MethodGet, fmt.Sprintf("/api/quizzes/%d", attemptID), token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.NotContains(t, string(env.Data), "is_correct")

	code, env = h.do(http.MethodPost, fmt.Sprintf("/api/quizzes/%d/submit", attemptID), token, jsonBody{"answers": h.answers(attemptID, 8)})
	require.Equal(t, http.StatusOK, code, env.Message)

	var result struct {
		Score          float64          `json:"score"`
		RoundedScore   int              `json:"rounded_score"`
		Correct        int              `json:"correct"`
		Total          int              `json:"total"`
		Completed      bool             `json:"completed"`
		NextDifficulty model.Difficulty `json:"next_difficulty"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.InDelta(t, 80.0, result.Score, 1e-9)
	assert.Equal(t, 80, result.RoundedScore)
	assert.Equal(t, 8, result.Correct)
	assert.Equal(t, model.QuestionsPerQuiz, result.Total)
	assert.True(t, result.Completed)
	assert.Equal(t, model.Intermediate, result.NextDifficulty)

	code, _ = h.do(http.MethodPost, fmt.Sprintf("/api/quizzes/%d/submit", attemptID), token, jsonBody{"answers": jsonBody{}})
	assert.Equal(t, http.StatusConflict, code)

	code, env = h.do(http.MethodGet, fmt.Sprintf("/api/quizzes/%d", attemptID), token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), "is_correct")
	assert.Contains(t, string(env.Data), "selected_answer_id")

	code, _, difficulty = h.startQuiz(token, courseID)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, model.Intermediate, difficulty)

	code, env = h.do(http.MethodGet, "/api/quizzes/pending", token, nil)
	require.Equal(t, http.StatusOK, code)
	var pending []struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &pending))
	assert.Len(t, pending, 1)

	code, env = h.do(http.MethodGet, fmt.Sprintf("/api/courses/%d/quizzes", courseID), token, nil)
	require.Equal(t, http.StatusOK, code)
	var history []struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &history))
	assert.Len(t, history, 2)
}

func TestSubmitQuizEmptyBody(t *testing.T) {
	h := newHarness(t)
	token, courseID := h.enrol("dana", "Algorithms")

	code, attemptID, _ := h.startQuiz(token, courseID)
	require.Equal(t, http.StatusCreated, code)

	path := fmt.Sprintf("/api/quizzes/%d/submit", attemptID)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	h.app.Router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	code, env := h.do(http.MethodPost, path, token, nil)
	require.Equal(t, http.StatusOK, code, env.Message)

	var result struct {
		Score   float64 `json:"score"`
		Correct int     `json:"correct"`
		Total   int     `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Zero(t, result.Score)
	assert.Zero(t, result.Correct)
	assert.Equal(t, model.QuestionsPerQuiz, result.Total)
}

func TestDeletedCourseHidesQuizzes(t *testing.T) {
	h := newHarness(t)
	token, courseID := h.enrol("erin", "Graphics")

	code, attemptID, _ := h.startQuiz(token, courseID)
	require.Equal(t, http.StatusCreated, code)

	adminToken := h.login("admin", adminPassword, model.Admin)
	code, _ = h.do(http.MethodDelete, fmt.Sprintf("/api/admin/courses/%d", courseID), adminToken, nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = h.do(http.MethodGet, fmt.Sprintf("/api/quizzes/%d", attemptID), token, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = h.do(http.MethodPost, fmt.Sprintf("/api/quizzes/%d/submit", attemptID), token, jsonBody{"answers": jsonBody{}})
	assert.Equal(t, http.StatusNotFound, code)

	code, env := h.do(http.MethodGet, "/api/quizzes/pending", token, nil)
	require.Equal(t, http.StatusOK, code)
	var pending []struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &pending))
	assert.Empty(t, pending)
}

func TestStartQuizProviderFailure(t *testing.T) {
	h := newHarness(t)
	token, courseID := h.enrol("bob", "Operating Systems")
	h.provider.fail = true

	code, _, _ := h.startQuiz(token, courseID)
	assert.Equal(t, http.StatusServiceUnavailable, code)

	var count int64
	require.NoError(t, h.db.Model(&model.QuizAttempt{}).Where("course_id = ?", courseID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCourseAccessControl(t *testing.T) {
	h := newHarness(t)
	aliceToken, aliceCourse := h.enrol("alice", "Networks")
	bobToken, _ := h.enrol("bob", "Databases")

	code, _ := h.do(http.MethodGet, fmt.Sprintf("/api/courses/%d", aliceCourse), bobToken, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _, _ = h.startQuiz(bobToken, aliceCourse)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = h.do(http.MethodGet, "/api/admin/courses", aliceToken, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = h.do(http.MethodGet, "/api/dashboard", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env := h.do(http.MethodGet, "/api/dashboard", aliceToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), "Networks")
	assert.NotContains(t, string(env.Data), "Databases")
}

func TestLoginRoleMismatch(t *testing.T) {
	h := newHarness(t)
	h.enrol("carol", "Compilers")

	code, env := h.do(http.MethodPost, "/api/login", "", jsonBody{"username": "carol", "password": "password123", "role": model.Admin})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "You are not authorized to log in as admin.", env.Message)

	code, _ = h.do(http.MethodPost, "/api/login", "", jsonBody{"username": "carol", "password": "wrong-password", "role": model.Student})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestReloadConfigCallbacks(t *testing.T) {
	h := newHarness(t)

	var got string
	h.app.RegisterConfigCallback(func(cfg *config.Config) { got = cfg.AI.Model })
	h.app.ReloadConfig(&config.Config{AI: config.AIConfig{Model: "gemini-test"}})
	assert.Equal(t, "gemini-test", got)
}

func TestStartGuardTTL(t *testing.T) {
	assert.Equal(t, 2*time.Minute+10*time.Second, startGuardTTL(config.AIConfig{TimeoutSeconds: 60, MaxRetries: 1}))
	assert.Equal(t, config.DefaultAITimeout+10*time.Second, startGuardTTL(config.AIConfig{MaxRetries: -1}))
}
