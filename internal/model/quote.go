package model

import (
	"database/sql/driver"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/lazysoft/consultant/pkg/utils/json"
)

// Quote request statuses.
const (
	QuoteNew       = "new"
	QuoteAnalyzed  = "analyzed"
	QuoteQuoted    = "quoted"
	QuoteConsulted = "consulted"
	QuoteConverted = "converted"
	QuoteClosed    = "closed"
)

// PriceLine 向用户展示的一条价格。
type PriceLine struct {
	Package   string   `json:"package"`
	Service   string   `json:"service"`
	Price     string   `json:"price"`
	PriceFrom *float64 `json:"price_from,omitempty"`
	PriceTo   *float64 `json:"price_to,omitempty"`
	Currency  string   `json:"currency,omitempty"`
}

// PriceLines 价格列表，以 JSON 存储。
type PriceLines []PriceLine

// Scan implements sql.Scanner.
func (p *PriceLines) Scan(value any) error {
	b, err := scanBytes(value)
	if err != nil || len(b) == 0 {
		*p = nil
		return err
	}
	return json.Unmarshal(b, p)
}

// Value implements driver.Valuer.
func (p PriceLines) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	return json.MarshalString(p)
}

// GormDBDataType returns the column type per dialect.
func (PriceLines) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	return jsonDataType(db)
}

// QuoteRequest 访客提交的报价请求。
type QuoteRequest struct {
	ID                      uint64     `json:"-" gorm:"primaryKey;autoIncrement"`
	RequestID               string     `json:"request_id" gorm:"size:32;not null;uniqueIndex:uk_quote_request_id"`
	SessionID               string     `json:"session_id" gorm:"size:64;not null;index:idx_quote_session"`
	ClientName              string     `json:"client_name" gorm:"size:100;not null"`
	ClientEmail             string     `json:"client_email" gorm:"size:255;not null"`
	ClientPhone             string     `json:"client_phone,omitempty" gorm:"size:32"`
	ClientCompany           string     `json:"client_company,omitempty" gorm:"size:200"`
	Message                 string     `json:"message" gorm:"type:text"`
	DetectedServiceCategory string     `json:"detected_service_category" gorm:"size:64"`
	OriginalQuery           string     `json:"original_query" gorm:"type:text"`
	Prices                  PriceLines `json:"prices"`
	ChatExcerpt             string     `json:"chat_excerpt" gorm:"type:text"`
	Status                  string     `json:"status" gorm:"size:20;not null;index:idx_quote_status"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
}

// TableName specifies the table name for QuoteRequest.
func (QuoteRequest) TableName() string {
	return "consultant_quote_requests"
}
