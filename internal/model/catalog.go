package model

import "time"

// ServiceCategory is a service offered by the company.
type ServiceCategory struct {
	ID               uint64        `json:"id" gorm:"primaryKey;autoIncrement"`
	Slug             string        `json:"slug" gorm:"size:100;not null;uniqueIndex:uk_service_slug"`
	Title            LocalizedText `json:"title"`
	ShortDescription LocalizedText `json:"short_description"`
	Description      LocalizedText `json:"description"`
	TargetAudience   LocalizedText `json:"target_audience"`
	ValueProposition LocalizedText `json:"value_proposition"`
	Active           bool          `json:"active" gorm:"index:idx_service_active"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// TableName specifies the table name for ServiceCategory.
func (ServiceCategory) TableName() string {
	return "catalog_services"
}

// Project is a portfolio case.
type Project struct {
	ID               uint64        `json:"id" gorm:"primaryKey;autoIncrement"`
	Slug             string        `json:"slug" gorm:"size:100;not null;uniqueIndex:uk_project_slug"`
	Title            LocalizedText `json:"title"`
	ShortDescription LocalizedText `json:"short_description"`
	ClientRequest    LocalizedText `json:"client_request"`
	Implementation   LocalizedText `json:"implementation"`
	Results          LocalizedText `json:"results"`
	Tags             StringSlice   `json:"tags"`
	Active           bool          `json:"active" gorm:"index:idx_project_active"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// TableName specifies the table name for Project.
func (Project) TableName() string {
	return "catalog_projects"
}

// FAQ is a frequently asked question.
type FAQ struct {
	ID        uint64        `json:"id" gorm:"primaryKey;autoIncrement"`
	Question  LocalizedText `json:"question"`
	Answer    LocalizedText `json:"answer"`
	Active    bool          `json:"active" gorm:"index:idx_faq_active"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// TableName specifies the table name for FAQ.
func (FAQ) TableName() string {
	return "catalog_faqs"
}

// PricingTier 价格档位，例如 Basic / Standard / Premium。
type PricingTier struct {
	ID          uint64        `json:"id" gorm:"primaryKey;autoIncrement"`
	Name        string        `json:"name" gorm:"size:50;not null;uniqueIndex:uk_tier_name"`
	DisplayName LocalizedText `json:"display_name"`
	Order       int           `json:"order" gorm:"column:sort_order"`
}

// TableName specifies the table name for PricingTier.
func (PricingTier) TableName() string {
	return "catalog_pricing_tiers"
}

// Label returns the localized display name, or the internal name.
func (t *PricingTier) Label(lang string) string {
	if s := t.DisplayName.Get(lang); s != "" {
		return s
	}
	return t.Name
}

// ServicePricing 一个服务在某个档位下的价格包。
type ServicePricing struct {
	ID                uint64        `json:"id" gorm:"primaryKey;autoIncrement"`
	ServiceID         uint64        `json:"service_id" gorm:"not null;index:idx_pricing_service"`
	TierID            uint64        `json:"tier_id" gorm:"not null"`
	PriceFrom         *float64      `json:"price_from,omitempty"`
	PriceTo           *float64      `json:"price_to,omitempty"`
	Currency          string        `json:"currency" gorm:"size:3;not null"`
	TimelineWeeksFrom *int          `json:"timeline_weeks_from,omitempty"`
	TimelineWeeksTo   *int          `json:"timeline_weeks_to,omitempty"`
	Features          LocalizedText `json:"features"` // 每行一个特性
	Active            bool          `json:"active"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`

	Service ServiceCategory `json:"service" gorm:"foreignKey:ServiceID"`
	Tier    PricingTier     `json:"tier" gorm:"foreignKey:TierID"`
}

// TableName specifies the table name for ServicePricing.
func (ServicePricing) TableName() string {
	return "catalog_service_pricing"
}

// CurrencyOrDefault returns the currency code, USD when unset.
func (p *ServicePricing) CurrencyOrDefault() string {
	if p.Currency == "" {
		return "USD"
	}
	return p.Currency
}

// AboutPage 单例页面。
type AboutPage struct {
	ID               uint64        `json:"id" gorm:"primaryKey;autoIncrement"`
	Title            LocalizedText `json:"title"`
	ShortDescription LocalizedText `json:"short_description"`
	Story            LocalizedText `json:"story"`
	Mission          LocalizedText `json:"mission"`
	Active           bool          `json:"active"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// TableName specifies the table name for AboutPage.
func (AboutPage) TableName() string {
	return "catalog_about"
}

// ContactPage 单例页面。
type ContactPage struct {
	ID           uint64        `json:"id" gorm:"primaryKey;autoIncrement"`
	Title        LocalizedText `json:"title"`
	Description  LocalizedText `json:"description"`
	Address      LocalizedText `json:"address"`
	Email        string        `json:"email" gorm:"size:255"`
	Phone        string        `json:"phone" gorm:"size:32"`
	WorkingHours LocalizedText `json:"working_hours"`
	Active       bool          `json:"active"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// TableName specifies the table name for ContactPage.
func (ContactPage) TableName() string {
	return "catalog_contact"
}
