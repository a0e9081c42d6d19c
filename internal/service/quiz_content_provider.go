package service

import (
	"context"
	"edu_quiz_backend/internal/config"
	"edu_quiz_backend/internal/model"
	"edu_quiz_backend/pkg/logger"
	"edu_quiz_backend/pkg/monitoring"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// QuestionSpec AI 返回的一道选择题，Answers 固定 4 个，CorrectIndex 指向正确选项
type QuestionSpec struct {
	Text         string   `json:"text" validate:"required,max=1000"`
	Answers      []string `json:"answers" validate:"len=4,dive,required,max=500"`
	CorrectIndex int      `json:"correct_index" validate:"min=0,max=3"`
}

type questionSet struct {
	Questions []QuestionSpec `validate:"len=10,dive"`
}

// QuizContentProvider 生成测验内容。失败时返回 false，由调用方决定如何提示用户
type QuizContentProvider interface {
	Generate(ctx context.Context, topic string, difficulty model.Difficulty) ([]QuestionSpec, bool)
}

const (
	outcomeSuccess        = "success"
	outcomeConfigError    = "config_error"
	outcomeTransportError = "transport_error"
	outcomeUpstreamError  = "upstream_error"
	outcomeInvalidPayload = "invalid_payload"

	maxLoggedBody = 2048
)

var errMissingAPIKey = errors.New("ai api key is not configured")

type upstreamError struct {
	Status int
	Body   string
}

func (e *upstreamError) Error() string {
	return fmt.Sprintf("AI API error (status %d): %s", e.Status, e.Body)
}

type payloadError struct {
	err error
}

func (e *payloadError) Error() string { return "invalid AI payload: " + e.err.Error() }
func (e *payloadError) Unwrap() error { return e.err }

func outcomeOf(err error) string {
	var up *upstreamError
	var pe *payloadError
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, errMissingAPIKey):
		return outcomeConfigError
	case errors.As(err, &up):
		return outcomeUpstreamError
	case errors.As(err, &pe):
		return outcomeInvalidPayload
	default:
		return outcomeTransportError
	}
}

// GeminiQuizProvider 通过 generateContent 接口生成测验
type GeminiQuizProvider struct {
	mu       sync.RWMutex
	cfg      config.AIConfig
	client   *resty.Client
	validate *validator.Validate
}

func NewGeminiQuizProvider(cfg config.AIConfig) *GeminiQuizProvider {
	p := &GeminiQuizProvider{validate: validator.New()}
	p.UpdateConfig(cfg)
	return p
}

func normalizeAIConfig(cfg config.AIConfig) config.AIConfig {
	if cfg.BaseURL == "" {
		cfg.BaseURL = config.DefaultAIBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = config.DefaultAIModel
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = config.DefaultAITemperature
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return cfg
}

func newRestyClient(cfg config.AIConfig) *resty.Client {
	client := resty.New().
		SetTransport(otelhttp.NewTransport(http.DefaultTransport)).
		SetLogger(logger.Log.Sugar()).
		SetTimeout(cfg.Timeout()).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(cfg.MaxRetries).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return !errors.Is(err, context.Canceled)
			}
			return r != nil && (r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError)
		})

	if cfg.RetryWaitMillis > 0 {
		wait := time.Duration(cfg.RetryWaitMillis) * time.Millisecond
		client.SetRetryWaitTime(wait).SetRetryMaxWaitTime(4 * wait)
	}
	return client
}

// UpdateConfig 替换配置并重建 HTTP 客户端，配置热更新时调用
func (p *GeminiQuizProvider) UpdateConfig(cfg config.AIConfig) {
	cfg = normalizeAIConfig(cfg)
	client := newRestyClient(cfg)

	p.mu.Lock()
	p.cfg = cfg
	p.client = client
	p.mu.Unlock()
}

func (p *GeminiQuizProvider) snapshot() (config.AIConfig, *resty.Client) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg, p.client
}

func (p *GeminiQuizProvider) Generate(ctx context.Context, topic string, difficulty model.Difficulty) ([]QuestionSpec, bool) {
	start := time.Now()
	questions, err := p.generate(ctx, topic, difficulty)
	monitoring.ObserveQuizGeneration(outcomeOf(err), time.Since(start))

	if err != nil {
		logger.Log.Error("Quiz generation failed",
			zap.String("topic", topic),
			zap.String("difficulty", string(difficulty)),
			zap.String("outcome", outcomeOf(err)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, false
	}

	logger.Log.Info("Quiz generated",
		zap.String("topic", topic),
		zap.String("difficulty", string(difficulty)),
		zap.Int("questions", len(questions)),
		zap.Duration("elapsed", time.Since(start)))
	return questions, true
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		Temperature float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (p *GeminiQuizProvider) generate(ctx context.Context, topic string, difficulty model.Difficulty) ([]QuestionSpec, error) {
	cfg, client := p.snapshot()
	if cfg.APIKey == "" {
		return nil, errMissingAPIKey
	}

	var body geminiRequest
	body.Contents = []geminiContent{{Parts: []geminiPart{{Text: BuildQuizPrompt(topic, difficulty)}}}}
	body.GenerationConfig.Temperature = cfg.Temperature

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", cfg.BaseURL, cfg.Model)
	resp, err := client.R().
		SetContext(ctx).
		SetQueryParam("key", cfg.APIKey).
		SetBody(body).
		Post(endpoint)
	if err != nil {
		return nil, fmt.Errorf("calling AI endpoint: %w", err)
	}

	if !resp.IsSuccess() {
		return nil, &upstreamError{Status: resp.StatusCode(), Body: truncate(resp.String(), maxLoggedBody)}
	}

	text, err := candidateText(resp.Body())
	if err != nil {
		return nil, &payloadError{err: fmt.Errorf("%w (body: %s)", err, truncate(resp.String(), maxLoggedBody))}
	}

	questions, err := ParseQuizPayload(ExtractJSONPayload(text), p.validate)
	if err != nil {
		return nil, &payloadError{err: err}
	}
	return questions, nil
}

func candidateText(body []byte) (string, error) {
	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("response has no candidate text")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

// ExtractJSONPayload 去掉模型偶尔包裹的 markdown 代码块（```json ... ```）
func ExtractJSONPayload(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	// 跳过语言标记
	if i := strings.IndexAny(s, "{["); i >= 0 {
		s = s[i:]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ParseQuizPayload 解析并校验 {"questions":[...]} 结构
func ParseQuizPayload(payload string, validate *validator.Validate) ([]QuestionSpec, error) {
	var raw struct {
		Questions []struct {
			Text               string   `json:"text"`
			Answers            []string `json:"answers"`
			CorrectAnswerIndex *int     `json:"correct_answer_index"`
		} `json:"questions"`
	}
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("decoding quiz JSON: %w", err)
	}
	if raw.Questions == nil {
		return nil, errors.New(`quiz JSON has no "questions" field`)
	}

	set := questionSet{Questions: make([]QuestionSpec, 0, len(raw.Questions))}
	for i, q := range raw.Questions {
		if q.CorrectAnswerIndex == nil {
			return nil, fmt.Errorf("question %d has no correct_answer_index", i+1)
		}
		answers := make([]string, len(q.Answers))
		for j, a := range q.Answers {
			answers[j] = strings.TrimSpace(a)
		}
		set.Questions = append(set.Questions, QuestionSpec{
			Text:         strings.TrimSpace(q.Text),
			Answers:      answers,
			CorrectIndex: *q.CorrectAnswerIndex,
		})
	}

	if validate == nil {
		validate = validator.New()
	}
	if err := validate.Struct(set); err != nil {
		return nil, fmt.Errorf("quiz content violates contract: %w", err)
	}
	return set.Questions, nil
}

// BuildQuizPrompt 生成请求提示词
func BuildQuizPrompt(topic string, difficulty model.Difficulty) string {
	return fmt.Sprintf(`You are a quiz generation expert. Write a %d-question multiple-choice quiz about "%s" at the %s difficulty level.

Respond with one minified JSON object that has a single key "questions".
"questions" must be an array of exactly %d objects, and every object must have:
- "text": the question as a string
- "answers": an array of exactly %d answer strings
- "correct_answer_index": the 0-based index (0-%d) of the single correct answer in "answers"

Output only the JSON object, with no explanations and no surrounding text.`,
		model.QuestionsPerQuiz, topic, difficulty,
		model.QuestionsPerQuiz, model.AnswersPerQuestion, model.AnswersPerQuestion-1)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}
