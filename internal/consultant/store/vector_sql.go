package store

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/lazysoft/consultant/internal/model"
	"github.com/lazysoft/consultant/pkg/utils/errors"
)

var errChunkNotFound = errors.ErrNotFound.WithMessages("Indexed chunk not found", "Фрагмент індексу не знайдено")

// SQLVectorStore 将向量以文本形式存入任意 gorm 方言，在进程内计算余弦距离。
// 适用于 sqlite / mysql 以及小规模索引。
type SQLVectorStore struct {
	db *gorm.DB
}

var _ VectorStore = (*SQLVectorStore)(nil)

// NewSQLVectorStore creates a vector store on top of the relational database.
func NewSQLVectorStore(db *gorm.DB) *SQLVectorStore {
	return &SQLVectorStore{db: db}
}

// Name returns the backend name.
func (s *SQLVectorStore) Name() string {
	return "sql"
}

// Migrate creates the chunk table.
func (s *SQLVectorStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&model.IndexedChunk{}); err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

// Dimension returns the length of any stored active vector.
func (s *SQLVectorStore) Dimension(ctx context.Context) (int, error) {
	var chunks []model.IndexedChunk
	err := s.db.WithContext(ctx).
		Select("vector").
		Where("active = ?", true).
		Limit(1).
		Find(&chunks).Error
	if err != nil {
		return 0, errors.ErrDatabase.WithCause(err)
	}
	if len(chunks) == 0 {
		return 0, nil
	}
	return len(chunks[0].Vector), nil
}

// Upsert inserts or replaces the chunk identified by its key.
func (s *SQLVectorStore) Upsert(ctx context.Context, chunk *model.IndexedChunk) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.IndexedChunk
		err := tx.Select("id", "created_at").
			Where("entity_kind = ? AND entity_id = ? AND language = ?", chunk.EntityKind, chunk.EntityID, chunk.Language).
			Limit(1).
			Find(&existing).Error
		if err != nil {
			return err
		}
		now := time.Now()
		chunk.UpdatedAt = now
		if existing.ID == 0 {
			chunk.ID = 0
			chunk.CreatedAt = now
			return tx.Create(chunk).Error
		}
		chunk.ID = existing.ID
		chunk.CreatedAt = existing.CreatedAt
		return tx.Save(chunk).Error
	})
	if err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

// Get returns the chunk for key.
func (s *SQLVectorStore) Get(ctx context.Context, key model.ChunkKey) (*model.IndexedChunk, error) {
	var chunk model.IndexedChunk
	err := s.db.WithContext(ctx).
		Where("entity_kind = ? AND entity_id = ? AND language = ?", key.Kind, key.ID, key.Language).
		First(&chunk).Error
	if err != nil {
		return nil, dbError(err, errChunkNotFound)
	}
	return &chunk, nil
}

// Search loads the candidate rows of the language (and category) and ranks
// them by cosine distance.
func (s *SQLVectorStore) Search(ctx context.Context, q *SearchQuery) ([]ScoredChunk, error) {
	db := s.db.WithContext(ctx).Where("active = ? AND language = ?", true, q.Language)
	if q.Category != "" {
		db = db.Where("category = ?", q.Category)
	}
	var rows []*model.IndexedChunk
	if err := db.Find(&rows).Error; err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}

	scored := make([]ScoredChunk, 0, len(rows))
	for _, row := range rows {
		d := CosineDistance(q.Vector, row.Vector)
		if d < q.MaxDistance {
			scored = append(scored, ScoredChunk{Chunk: row, Distance: d})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Distance < scored[j].Distance
	})
	if q.Limit > 0 && len(scored) > q.Limit {
		scored = scored[:q.Limit]
	}
	return scored, nil
}

// Deactivate flags every language row of the entity as inactive.
func (s *SQLVectorStore) Deactivate(ctx context.Context, kind, id string) (int64, error) {
	result := s.db.WithContext(ctx).Model(&model.IndexedChunk{}).
		Where("entity_kind = ? AND entity_id = ? AND active = ?", kind, id, true).
		Updates(map[string]any{"active": false, "updated_at": time.Now()})
	if result.Error != nil {
		return 0, errors.ErrDatabase.WithCause(result.Error)
	}
	return result.RowsAffected, nil
}

// Keys lists the chunk keys of a kind.
func (s *SQLVectorStore) Keys(ctx context.Context, kind string) ([]model.ChunkKey, error) {
	var rows []model.IndexedChunk
	err := s.db.WithContext(ctx).
		Select("entity_kind", "entity_id", "language").
		Where("entity_kind = ?", kind).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	keys := make([]model.ChunkKey, len(rows))
	for i := range rows {
		keys[i] = rows[i].Key()
	}
	return keys, nil
}

// Delete removes the given chunks.
func (s *SQLVectorStore) Delete(ctx context.Context, keys ...model.ChunkKey) (int64, error) {
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
func (s *SQLVectorStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.IndexedChunk{}).Count(&n).Error; err != nil {
		return 0, errors.ErrDatabase.WithCause(err)
	}
	return n, nil
}

// CountByCategory returns the number of chunks per category.
func (s *SQLVectorStore) CountByCategory(ctx context.Context) (map[string]int64, error) {
	return countByCategory(s.db.WithContext(ctx).Model(&model.IndexedChunk{}))
}

func countByCategory(db *gorm.DB) (map[string]int64, error) {
	var rows []struct {
		Category string
		Total    int64
	}
	if err := db.Select("category, COUNT(*) AS total").Group("category").Scan(&rows).Error; err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Category] = r.Total
	}
	return out, nil
}
