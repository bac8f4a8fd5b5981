// Package model provides the persisted data models of the consultant service.
package model

// All returns the models managed by gorm auto-migration. IndexedChunk is
// migrated by the configured vector store.
func All() []any {
	return []any{
		&Session{},
		&Message{},
		&KnowledgeEntry{},
		&LearningPattern{},
		&QuoteRequest{},
		&ServiceCategory{},
		&Project{},
		&FAQ{},
		&PricingTier{},
		&ServicePricing{},
		&AboutPage{},
		&ContactPage{},
	}
}
