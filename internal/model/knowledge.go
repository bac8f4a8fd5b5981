package model

import "time"

// Knowledge source types.
const (
	SourceService = "service"
	SourceProject = "project"
	SourceFAQ     = "faq"
	SourcePricing = "pricing"
	SourceManual  = "manual"
	SourceDialogs = "dialogs"
)

// KnowledgeEntry 人工维护或由学习循环生成的知识条目。
// source_type 为 service/project/faq/pricing 时仅作为重建对应类别索引的触发器。
type KnowledgeEntry struct {
	ID uint64 `json:"id" gorm:"primaryKey;autoIncrement"`
	// Key 知识目录中 YAML 文件的唯一标识，手工或学习生成的条目为空。
	Key                 *string       `json:"key,omitempty" gorm:"column:entry_key;size:128;uniqueIndex:uk_knowledge_key"`
	Title               string        `json:"title" gorm:"size:200;not null"`
	SourceType          string        `json:"source_type" gorm:"size:20;not null;index:idx_knowledge_source"`
	Content             LocalizedText `json:"content"`
	Tags                StringSlice   `json:"tags"`
	Priority            int           `json:"priority" gorm:"not null"` // 1 最高，10 最低
	AutoUpdate          bool          `json:"auto_update"`
	Active              bool          `json:"active" gorm:"index:idx_knowledge_source"`
	LastEmbeddingUpdate *time.Time    `json:"last_embedding_update,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// TableName specifies the table name for KnowledgeEntry.
func (KnowledgeEntry) TableName() string {
	return "consultant_knowledge"
}

// Learning pattern statuses.
const (
	PatternDetected      = "detected"
	PatternPendingReview = "pending_review"
	PatternApproved      = "approved"
	PatternIndexed       = "indexed"
	PatternRejected      = "rejected"
)

// Learning pattern response sources.
const (
	ResponsePositiveFeedback     = "positive_feedback"
	ResponseSuccessfulConversion = "successful_conversion"
	ResponseManualApproval       = "manual_approval"
	ResponseHighSimilarity       = "high_similarity"
)

// LearningPattern 从对话中提取的候选问答。
type LearningPattern struct {
	ID              uint64      `json:"id" gorm:"primaryKey;autoIncrement"`
	QueryPattern    string      `json:"query_pattern" gorm:"type:text;not null"`
	QueryVariations StringSlice `json:"query_variations"`
	BestResponse    string      `json:"best_response" gorm:"type:text;not null"`
	ResponseSource  string      `json:"response_source" gorm:"size:30"`
	Frequency       int         `json:"frequency" gorm:"not null"`
	// LeadSessions 出现该模式且产生线索的会话数。
	LeadSessions     int         `json:"lead_sessions"`
	SuccessRate      float64     `json:"success_rate"`
	Status           string      `json:"status" gorm:"size:20;not null;index:idx_pattern_status_updated,priority:1"`
	DetectedIntent   string      `json:"detected_intent" gorm:"size:20"`
	Language         string      `json:"language" gorm:"size:8"`
	Keywords         StringSlice `json:"keywords"`
	SessionIDs       StringSlice `json:"session_ids"`
	KnowledgeEntryID *uint64     `json:"knowledge_entry_id,omitempty"`
	ReviewedBy       string      `json:"reviewed_by,omitempty" gorm:"size:100"`
	ReviewedAt       *time.Time  `json:"reviewed_at,omitempty"`
	CreatedAt        time.Time   `json:"created_at" gorm:"index:idx_pattern_created"`
	UpdatedAt        time.Time   `json:"updated_at" gorm:"index:idx_pattern_status_updated,priority:2"`
}

// TableName specifies the table name for LearningPattern.
func (LearningPattern) TableName() string {
	return "consultant_learning_patterns"
}
