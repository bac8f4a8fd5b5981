package model

import (
	"strings"
	"time"
)

// Entity kinds accepted by the indexer.
const (
	KindService   = "service"
	KindProject   = "project"
	KindFAQ       = "faq"
	KindPricing   = "pricing"
	KindKnowledge = "knowledge"
	KindAbout     = "about"
	KindContact   = "contact"
)

// Chunk categories.
const (
	CategoryService = "service"
	CategoryProject = "project"
	CategoryFAQ     = "faq"
	CategoryPricing = "pricing"
	CategoryContact = "contact"
	CategoryAbout   = "about"
	CategoryManual  = "manual"
)

// Metadata keys written by the indexer and read by the retriever.
const (
	MetaServiceTitle = "service_title"
	MetaPackageName  = "package_name"
	MetaPriceFrom    = "price_from"
	MetaPriceTo      = "price_to"
	MetaCurrency     = "currency"
	MetaURL          = "url"
	MetaSlug         = "slug"
	MetaPriority     = "priority"
)

// IndexedChunk 一条 embedding 记录，(entity_kind, entity_id, language) 唯一。
type IndexedChunk struct {
	ID          uint64      `json:"id" gorm:"primaryKey;autoIncrement"`
	EntityKind  string      `json:"entity_kind" gorm:"size:32;not null;uniqueIndex:uk_chunk_entity,priority:1;index:idx_chunk_kind_id,priority:1"`
	EntityID    string      `json:"entity_id" gorm:"size:64;not null;uniqueIndex:uk_chunk_entity,priority:2;index:idx_chunk_kind_id,priority:2"`
	Language    string      `json:"language" gorm:"size:8;not null;uniqueIndex:uk_chunk_entity,priority:3;index:idx_chunk_category_lang,priority:2"`
	Category    string      `json:"category" gorm:"size:32;not null;index:idx_chunk_category_lang,priority:1"`
	Title       string      `json:"title" gorm:"size:500"`
	ContentText string      `json:"content_text" gorm:"type:text;not null"`
	Tags        StringSlice `json:"tags"`
	Metadata    JSONMap     `json:"metadata"`
	Vector      Vector      `json:"-" gorm:"not null"`
	ModelName   string      `json:"model_name" gorm:"size:100"`
	Version     string      `json:"version" gorm:"size:20"`
	Active      bool        `json:"active" gorm:"not null;index:idx_chunk_active_created,priority:1"`
	CreatedAt   time.Time   `json:"created_at" gorm:"index:idx_chunk_active_created,priority:2"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// TableName specifies the table name for IndexedChunk.
func (IndexedChunk) TableName() string {
	return "consultant_chunks"
}

// Key returns the unique identity of the chunk.
func (c *IndexedChunk) Key() ChunkKey {
	return ChunkKey{Kind: c.EntityKind, ID: c.EntityID, Language: c.Language}
}

// ChunkKey identifies one chunk.
type ChunkKey struct {
	Kind     string `json:"entity_kind"`
	ID       string `json:"entity_id"`
	Language string `json:"language"`
}

// String renders "kind:id:lang", the primary key used by the milvus backend.
func (k ChunkKey) String() string {
	return k.Kind + ":" + k.ID + ":" + k.Language
}

// ParseChunkKey is the inverse of ChunkKey.String.
func ParseChunkKey(s string) (ChunkKey, bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return ChunkKey{}, false
	}
	return ChunkKey{Kind: parts[0], ID: parts[1], Language: parts[2]}, true
}
