// Package notify delivers review notifications.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garyjia/sales-reports/internal/application/port"
)

// Message is the payload published for one notification
type Message struct {
	Recipient port.Recipient `json:"recipient"`
	Content   string         `json:"content"`
	SentAt    time.Time      `json:"sent_at"`
}

// Channel names the pub/sub channel a recipient listens on
func Channel(prefix string, to port.Recipient) string {
	switch {
	case to.ActorID != 0:
		return fmt.Sprintf("%s:actor:%d", prefix, to.ActorID)
	case to.SubdistrictID != 0:
		return fmt.Sprintf("%s:subdistrict:%d", prefix, to.SubdistrictID)
	case to.CityID != 0:
		return fmt.Sprintf("%s:city:%d", prefix, to.CityID)
	default:
		return fmt.Sprintf("%s:%s", prefix, to.Role)
	}
}

func validate(to port.Recipient, content string) error {
	if content == "" {
		return fmt.Errorf("content cannot be empty")
	}
	if to.ActorID == 0 && to.SubdistrictID == 0 && to.CityID == 0 && to.Role == "" {
		return fmt.Errorf("recipient cannot be empty")
	}
	return nil
}

// LogSender implements port.MessageSender by writing notifications to the log
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a sender that only logs
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger.Named("notify")}
}

// SendMessage implements port.MessageSender
func (s *LogSender) SendMessage(ctx context.Context, to port.Recipient, content string) error {
	if err := validate(to, content); err != nil {
		return err
	}
	s.logger.Info("Notification",
		zap.String("channel", Channel("notifications", to)),
		zap.String("role", string(to.Role)),
		zap.String("content", content))
	return nil
}

// RedisSender implements port.MessageSender by publishing JSON messages on redis channels
type RedisSender struct {
	client redis.UniversalClient
	prefix string
	logger *zap.Logger
	now    func() time.Time
}

// NewRedisSender creates a publishing sender; prefix defaults to "notifications"
func NewRedisSender(client redis.UniversalClient, prefix string, logger *zap.Logger) *RedisSender {
	if prefix == "" {
		prefix = "notifications"
	}
	return &RedisSender{client: client, prefix: prefix, logger: logger, now: time.Now}
}

// SendMessage implements port.MessageSender
func (s *RedisSender) SendMessage(ctx context.Context, to port.Recipient, content string) error {
	if err := validate(to, content); err != nil {
		return err
	}

	payload, err := json.Marshal(Message{Recipient: to, Content: content, SentAt: s.now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	channel := Channel(s.prefix, to)
	receivers, err := s.client.Publish(ctx, channel, payload).Result()
	if err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	s.logger.Debug("Notification published",
		zap.String("channel", channel),
		zap.Int64("receivers", receivers))
	return nil
}

var (
	_ port.MessageSender = (*LogSender)(nil)
	_ port.MessageSender = (*RedisSender)(nil)
)
