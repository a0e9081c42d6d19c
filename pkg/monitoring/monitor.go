package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	QuizGenerationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_generation_total",
			Help: "Quiz content generation calls by outcome",
		},
		[]string{"outcome"},
	)

	QuizGenerationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quiz_generation_duration_seconds",
			Help:    "Duration of quiz content generation calls",
			Buckets: []float64{1, 2, 5, 10, 20, 40, 60, 120},
		},
	)

	QuizAttemptsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_attempts_started_total",
			Help: "Quiz attempts created by difficulty",
		},
		[]string{"difficulty"},
	)

	QuizScores = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quiz_score_percent",
			Help:    "Submitted quiz scores by difficulty",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
		[]string{"difficulty"},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestCounter)
		prometheus.MustRegister(RequestDuration)
		prometheus.MustRegister(QuizGenerationCounter)
		prometheus.MustRegister(QuizGenerationDuration)
		prometheus.MustRegister(QuizAttemptsStarted)
		prometheus.MustRegister(QuizScores)
	})
}

// ObserveQuizGeneration 记录一次生成调用的结果和耗时
func ObserveQuizGeneration(outcome string, elapsed time.Duration) {
	QuizGenerationCounter.WithLabelValues(outcome).Inc()
	QuizGenerationDuration.Observe(elapsed.Seconds())
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
