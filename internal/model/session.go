package model

import (
	"database/sql/driver"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/lazysoft/consultant/pkg/utils/json"
)

// Intents.
const (
	IntentGreeting     = "greeting"
	IntentPricing      = "pricing"
	IntentServices     = "services"
	IntentPortfolio    = "portfolio"
	IntentConsultation = "consultation"
	IntentGeneral      = "general"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// SessionMetadata 会话元数据，三个定价标志位彼此独立。
type SessionMetadata struct {
	ClarificationAsked     bool   `json:"clarification_asked"`
	AwaitingPricingDetails bool   `json:"awaiting_pricing_details"`
	PricingCompleted       bool   `json:"pricing_completed"`
	UserAgent              string `json:"user_agent,omitempty"`
	// Extra 保留未知字段。
	Extra map[string]any `json:"extra,omitempty"`
}

// Scan implements sql.Scanner.
func (m *SessionMetadata) Scan(value any) error {
	b, err := scanBytes(value)
	if err != nil || len(b) == 0 {
		*m = SessionMetadata{}
		return err
	}
	return json.Unmarshal(b, m)
}

// Value implements driver.Valuer.
func (m SessionMetadata) Value() (driver.Value, error) {
	return json.MarshalString(m)
}

// GormDBDataType returns the column type per dialect.
func (SessionMetadata) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	return jsonDataType(db)
}

// Session 一次对话。
type Session struct {
	ID                      uint64          `json:"-" gorm:"primaryKey;autoIncrement"`
	SessionID               string          `json:"session_id" gorm:"size:64;not null;uniqueIndex:uk_session_id"`
	ClientIP                string          `json:"client_ip,omitempty" gorm:"size:64"`
	ClientEmail             string          `json:"client_email,omitempty" gorm:"size:255"`
	ClientName              string          `json:"client_name,omitempty" gorm:"size:100"`
	Language                string          `json:"language" gorm:"size:8"`
	Metadata                SessionMetadata `json:"metadata"`
	DetectedIntent          string          `json:"detected_intent" gorm:"size:20;not null"`
	DetectedServiceCategory string          `json:"detected_service_category,omitempty" gorm:"size:64"`
	TotalMessages           int             `json:"total_messages"`
	TotalCost               float64         `json:"total_cost"`
	LeadGenerated           bool            `json:"lead_generated"`
	QuoteRequested          bool            `json:"quote_requested"`
	ConsultationRequested   bool            `json:"consultation_requested"`
	// Satisfaction 1-5，nil 表示未评价。
	Satisfaction *int       `json:"satisfaction,omitempty"`
	Feedback     string     `json:"feedback,omitempty" gorm:"type:text"`
	StartedAt    time.Time  `json:"started_at" gorm:"autoCreateTime"`
	LastActivity time.Time  `json:"last_activity" gorm:"index:idx_session_activity"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`

	Messages []Message `json:"-" gorm:"foreignKey:SessionRef;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for Session.
func (Session) TableName() string {
	return "consultant_sessions"
}

// Closed reports whether the session has ended.
func (s *Session) Closed() bool {
	return s.EndedAt != nil
}

// Message 对话中的一条消息，会话内按 created_at 追加。
type Message struct {
	ID                  uint64      `json:"id" gorm:"primaryKey;autoIncrement"`
	SessionRef          uint64      `json:"-" gorm:"not null;index:idx_message_session_created,priority:1"`
	Role                string      `json:"role" gorm:"size:10;not null"`
	Content             string      `json:"content" gorm:"type:text;not null"`
	RAGSourcesUsed      StringSlice `json:"rag_sources_used,omitempty"`
	VectorSearchResults SearchHits  `json:"vector_search_results,omitempty"`
	AIModelUsed         string      `json:"ai_model_used,omitempty" gorm:"size:100"`
	ProcessingTime      float64     `json:"processing_time,omitempty"`
	Cost                float64     `json:"cost,omitempty"`
	CreatedAt           time.Time   `json:"created_at" gorm:"index:idx_message_session_created,priority:2"`
}

// TableName specifies the table name for Message.
func (Message) TableName() string {
	return "consultant_messages"
}

// SearchHit 序列化后的检索结果。
type SearchHit struct {
	EntityKind  string         `json:"entity_kind"`
	EntityID    string         `json:"entity_id"`
	Title       string         `json:"content_title"`
	Category    string         `json:"content_category"`
	ContentText string         `json:"content_text,omitempty"`
	Similarity  float64        `json:"similarity"`
	Metadata    map[string]any `json:"metadata,omitempty"`

	URL          string   `json:"url,omitempty"`
	Slug         string   `json:"slug,omitempty"`
	ServiceTitle string   `json:"service_title,omitempty"`
	PackageName  string   `json:"package_name,omitempty"`
	PriceFrom    *float64 `json:"price_from,omitempty"`
	PriceTo      *float64 `json:"price_to,omitempty"`
	Currency     string   `json:"currency,omitempty"`
}

// SearchHits 检索结果列表，以 JSON 存储。
type SearchHits []SearchHit

// Scan implements sql.Scanner.
func (h *SearchHits) Scan(value any) error {
	b, err := scanBytes(value)
	if err != nil || len(b) == 0 {
		*h = nil
		return err
	}
	return json.Unmarshal(b, h)
}

// Value implements driver.Valuer.
func (h SearchHits) Value() (driver.Value, error) {
	if h == nil {
		return "[]", nil
	}
	return json.MarshalString(h)
}

// GormDBDataType returns the column type per dialect.
func (SearchHits) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	return jsonDataType(db)
}
