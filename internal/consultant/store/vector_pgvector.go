package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lazysoft/consultant/internal/model"
	"github.com/lazysoft/consultant/pkg/utils/errors"
)

// PGVectorStore 使用 PostgreSQL pgvector 扩展，在数据库内按 <=> 计算余弦距离。
type PGVectorStore struct {
	db        *gorm.DB
	dimension int
}

var _ VectorStore = (*PGVectorStore)(nil)

// NewPGVectorStore creates a pgvector backed store whose vector column has the
// given dimension.
func NewPGVectorStore(db *gorm.DB, dimension int) *PGVectorStore {
	return &PGVectorStore{db: db, dimension: dimension}
}

// Name returns the backend name.
func (s *PGVectorStore) Name() string {
	return "pgvector"
}

// Migrate creates the extension, the chunk table with a vector(D) column and
// its indices. AutoMigrate is not used because it would rewrite the column type.
func (s *PGVectorStore) Migrate(ctx context.Context) error {
	table := model.IndexedChunk{}.TableName()
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	entity_kind VARCHAR(32) NOT NULL,
	entity_id VARCHAR(64) NOT NULL,
	language VARCHAR(8) NOT NULL,
	category VARCHAR(32) NOT NULL,
	title VARCHAR(500),
	content_text TEXT NOT NULL,
	tags JSONB,
	metadata JSONB,
	vector vector(%d) NOT NULL,
	model_name VARCHAR(100),
	version VARCHAR(20),
	active BOOLEAN NOT NULL,
	created_at TIMESTAMPTZ,
	updated_at TIMESTAMPTZ,
	CONSTRAINT uk_chunk_entity UNIQUE (entity_kind, entity_id, language)
)`, table, s.dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_chunk_kind_id ON %s (entity_kind, entity_id)`, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_chunk_category_lang ON %s (category, language)`, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_chunk_active_created ON %s (active, created_at)`, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_chunk_vector ON %s USING hnsw (vector vector_cosine_ops)`, table),
	}
	db := s.db.WithContext(ctx)
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return errors.ErrDatabase.WithCause(err)
		}
	}
	return nil
}

// Dimension reads the declared dimension of the vector column; pgvector keeps
// it in the attribute type modifier.
func (s *PGVectorStore) Dimension(ctx context.Context) (int, error) {
	var dim int
	err := s.db.WithContext(ctx).Raw(
		`SELECT atttypmod FROM pg_attribute WHERE attrelid = ?::regclass AND attname = 'vector'`,
		model.IndexedChunk{}.TableName(),
	).Scan(&dim).Error
	if err != nil {
		return 0, errors.ErrDatabase.WithCause(err)
	}
	if dim < 0 {
		return 0, nil
	}
	return dim, nil
}

// Upsert relies on ON CONFLICT over the unique key; created_at is preserved.
func (s *PGVectorStore) Upsert(ctx context.Context, chunk *model.IndexedChunk) error {
	now := time.Now()
	chunk.ID = 0
	chunk.CreatedAt = now
	chunk.UpdatedAt = now
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "entity_kind"}, {Name: "entity_id"}, {Name: "language"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"category", "title", "content_text", "tags", "metadata", "vector",
			"model_name", "version", "active", "updated_at",
		}),
	}).Create(chunk).Error
	if err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

// Get returns the chunk for key.
func (s *PGVectorStore) Get(ctx context.Context, key model.ChunkKey) (*model.IndexedChunk, error) {
	var chunk model.IndexedChunk
	err := s.db.WithContext(ctx).
		Where("entity_kind = ? AND entity_id = ? AND language = ?", key.Kind, key.ID, key.Language).
		First(&chunk).Error
	if err != nil {
		return nil, dbError(err, errChunkNotFound)
	}
	return &chunk, nil
}

type pgScoredRow struct {
	model.IndexedChunk
	Distance float64
}

// Search ranks rows with the <=> cosine distance operator.
func (s *PGVectorStore) Search(ctx context.Context, q *SearchQuery) ([]ScoredChunk, error) {
	literal := model.Vector(q.Vector).String()
	db := s.db.WithContext(ctx).
		Table(model.IndexedChunk{}.TableName()).
		Select("*, vector <=> CAST(? AS vector) AS distance", literal).
		Where("active = ? AND language = ?", true, q.Language).
		Where("vector <=> CAST(? AS vector) < ?", literal, q.MaxDistance)
	if q.Category != "" {
		db = db.Where("category = ?", q.Category)
	}
	var rows []pgScoredRow
	err := db.Order(clause.Expr{SQL: "vector <=> CAST(? AS vector)", Vars: []any{literal}}).
		Limit(q.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	out := make([]ScoredChunk, len(rows))
	for i := range rows {
		chunk := rows[i].IndexedChunk
		out[i] = ScoredChunk{Chunk: &chunk, Distance: rows[i].Distance}
	}
	return out, nil
}

// Deactivate flags every language row of the entity as inactive.
func (s *PGVectorStore) Deactivate(ctx context.Context, kind, id string) (int64, error) {
	result := s.db.WithContext(ctx).Model(&model.IndexedChunk{}).
		Where("entity_kind = ? AND entity_id = ? AND active = ?", kind, id, true).
		Updates(map[string]any{"active": false, "updated_at": time.Now()})
	if result.Error != nil {
		return 0, errors.ErrDatabase.WithCause(result.Error)
	}
	return result.RowsAffected, nil
}

// Keys lists the chunk keys of a kind.
func (s *PGVectorStore) Keys(ctx context.Context, kind string) ([]model.ChunkKey, error) {
	var keys []model.ChunkKey
	err := s.db.WithContext(ctx).Model(&model.IndexedChunk{}).
		Select("entity_kind AS kind, entity_id AS id, language").
		Where("entity_kind = ?", kind).
		Order("id ASC").
		Scan(&keys).Error
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return keys, nil
}

// Delete removes the given chunks.
func (s *PGVectorStore) Delete(ctx context.Context, keys ...model.ChunkKey) (int64, error) {
	var total int64
	for _, k := range keys {
		result := s.db.WithContext(ctx).
			Where("entity_kind = ? AND entity_id = ? AND language = ?", k.Kind, k.ID, k.Language).
			Delete(&model.IndexedChunk{})
		if result.Error != nil {
			return total, errors.ErrDatabase.WithCause(result.Error)
		}
		total += result.RowsAffected
	}
	return total, nil
}

// Count returns the number of chunks.
func (s *PGVectorStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.IndexedChunk{}).Count(&n).Error; err != nil {
		return 0, errors.ErrDatabase.WithCause(err)
	}
	return n, nil
}

// CountByCategory returns the number of chunks per category.
func (s *PGVectorStore) CountByCategory(ctx context.Context) (map[string]int64, error) {
	return countByCategory(s.db.WithContext(ctx).Model(&model.IndexedChunk{}))
}
