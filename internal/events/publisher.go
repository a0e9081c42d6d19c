package events

import (
	"context"
	"edu_quiz_backend/internal/config"
	"edu_quiz_backend/pkg/logger"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"
)

const (
	DriverGoChannel = "gochannel"
	DriverKafka     = "kafka"
)

var ErrSubscribeUnsupported = errors.New("events driver does not support in-process subscriptions")

// Publisher 发布测验事件
type Publisher interface {
	PublishQuizEvent(ctx context.Context, event *QuizEvent) error
	Close() error
}

// WatermillPublisher 基于 watermill，后端为进程内 gochannel 或 kafka
type WatermillPublisher struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	topic      string
}

func NewPublisher(cfg *config.EventsConfig) (*WatermillPublisher, error) {
	wmLogger := NewZapLoggerAdapter(logger.Log.Named("watermill"))

	topic := cfg.Topic
	if topic == "" {
		topic = config.DefaultEventsTopic
	}

	switch cfg.Driver {
	case "", DriverGoChannel:
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, wmLogger)
		return &WatermillPublisher{publisher: ch, subscriber: ch, topic: topic}, nil
	case DriverKafka:
		pub, err := kafka.NewPublisher(kafka.PublisherConfig{
			Brokers:   cfg.Brokers,
			Marshaler: kafka.DefaultMarshaler{},
		}, wmLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka publisher: %w", err)
		}
		return &WatermillPublisher{publisher: pub, topic: topic}, nil
	default:
		return nil, fmt.Errorf("unsupported events driver %q", cfg.Driver)
	}
}

func (p *WatermillPublisher) Topic() string {
	return p.topic
}

func (p *WatermillPublisher) PublishQuizEvent(ctx context.Context, event *QuizEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal quiz event: %w", err)
	}

	msg := message.NewMessage(event.ID, payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("event_type", string(event.Type))
	msg.Metadata.Set("source", event.Source)
	msg.Metadata.Set("version", event.Version)
	msg.Metadata.Set("timestamp", event.Timestamp.Format(time.RFC3339))

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish quiz event: %w", err)
	}

	logger.Log.Debug("Published quiz event",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("topic", p.topic))
	return nil
}

// Subscribe 仅 gochannel 支持，kafka 由外部消费者订阅
func (p *WatermillPublisher) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	if p.subscriber == nil {
		return nil, ErrSubscribeUnsupported
	}
	return p.subscriber.Subscribe(ctx, p.topic)
}

func (p *WatermillPublisher) Close() error {
	return p.publisher.Close()
}

// Consume 逐条解码并处理消息，处理失败的消息 Nack。ctx 结束或通道关闭时返回
func Consume(ctx context.Context, messages <-chan *message.Message, handle func(context.Context, *QuizEvent) error) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}

			var event QuizEvent
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				logger.Log.Warn("Dropping undecodable quiz event",
					zap.String("message_uuid", msg.UUID),
					zap.Error(err))
				msg.Ack()
				continue
			}

			if err := handle(msg.Context(), &event); err != nil {
				logger.Log.Warn("Quiz event handler failed",
					zap.String("event_id", event.ID),
					zap.Error(err))
				msg.Nack()
				continue
			}
			msg.Ack()
		}
	}
}

// LogEvent 默认的进程内消费者，把事件写入日志
func LogEvent(_ context.Context, event *QuizEvent) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.Uint("attempt_id", event.AttemptID),
		zap.Uint("student_id", event.StudentID),
		zap.Uint("course_id", event.CourseID),
		zap.String("difficulty", event.Difficulty),
	}
	if event.RoundedScore != nil {
		fields = append(fields, zap.Int("rounded_score", *event.RoundedScore))
	}
	logger.Log.Info("Quiz event", fields...)
	return nil
}

var _ watermill.LoggerAdapter = (*ZapLoggerAdapter)(nil)
