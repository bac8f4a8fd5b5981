package biz

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/lazysoft/consultant/internal/model"
	"github.com/lazysoft/consultant/pkg/component/redis"
	"github.com/lazysoft/consultant/pkg/utils/httpclient"
	"github.com/lazysoft/consultant/pkg/utils/json"
)

// ClientInfo 访客联系方式。
type ClientInfo struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Company string `json:"company,omitempty"`
	IP      string `json:"ip,omitempty"`
}

// LeadRecord 投递给外部线索系统的记录。
type LeadRecord struct {
	RequestID               string            `json:"request_id"`
	SessionID               string            `json:"session_id"`
	ClientInfo              ClientInfo        `json:"client_info"`
	DetectedServiceCategory string            `json:"detected_service_category"`
	OriginalQuery           string            `json:"original_query"`
	Message                 string            `json:"message,omitempty"`
	Prices                  []model.PriceLine `json:"prices"`
	ChatExcerpt             string            `json:"chat_excerpt"`
	CreatedAt               time.Time         `json:"created_at"`
}

// LeadSink 线索投递目标。
type LeadSink interface {
	Name() string
	Emit(ctx context.Context, rec *LeadRecord) error
}

// RedisStreamSink 把线索追加到 redis stream。
type RedisStreamSink struct {
	client *redis.Client
	stream string
}

// NewRedisStreamSink creates a sink appending to stream.
func NewRedisStreamSink(client *redis.Client, stream string) *RedisStreamSink {
	return &RedisStreamSink{client: client, stream: stream}
}

func (s *RedisStreamSink) Name() string { return "redis_stream" }

// Emit runs XADD with the request id and the JSON payload.
func (s *RedisStreamSink) Emit(ctx context.Context, rec *LeadRecord) error {
	payload, err := json.MarshalString(rec)
	if err != nil {
		return err
	}
	return s.client.Client().XAdd(ctx, &goredis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"request_id": rec.RequestID,
			"session_id": rec.SessionID,
			"payload":    payload,
		},
	}).Err()
}

// WebhookSink 以 JSON POST 通知外部系统，5xx 时重试。
type WebhookSink struct {
	client *httpclient.Client
	url    string
}

// NewWebhookSink creates a webhook sink.
func NewWebhookSink(url string, timeout time.Duration, retries int) *WebhookSink {
	return &WebhookSink{client: httpclient.NewClient(timeout, retries), url: url}
}

func (s *WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Emit(ctx context.Context, rec *LeadRecord) error {
	headers := map[string]string{"X-Lead-Request-ID": rec.RequestID}
	if err := s.client.PostJSON(ctx, s.url, headers, rec, nil); err != nil {
		return fmt.Errorf("post lead to %s: %w", s.url, err)
	}
	return nil
}

// LogSink 只写日志。
type LogSink struct{}

func (LogSink) Name() string { return "log" }

func (LogSink) Emit(_ context.Context, rec *LeadRecord) error {
	logger.Infow("lead captured",
		"request_id", rec.RequestID,
		"session_id", rec.SessionID,
		"service_category", rec.DetectedServiceCategory,
		"prices", len(rec.Prices),
	)
	return nil
}
