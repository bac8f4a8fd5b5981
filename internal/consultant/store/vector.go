package store

import (
	"context"
	"math"

	"github.com/lazysoft/consultant/internal/model"
)

// SearchQuery 向量检索条件。
type SearchQuery struct {
	// Vector 查询向量，长度应等于索引维度。
	Vector []float32
	// Language 只返回该语言的分块。
	Language string
	// Category 为空时不过滤类别。
	Category string
	// MaxDistance 只返回余弦距离严格小于该值的分块。
	MaxDistance float64
	// Limit 最多返回条数。
	Limit int
}

// ScoredChunk 一条检索结果，按 Distance 升序排列。
type ScoredChunk struct {
	Chunk    *model.IndexedChunk
	Distance float64
}

// VectorStore 定义向量存储接口，(entity_kind, entity_id, language) 唯一。
type VectorStore interface {
	// Name 返回后端名称。
	Name() string

	// Migrate 创建表或集合。
	Migrate(ctx context.Context) error

	// Dimension 返回已存储向量的维度，为空时返回 0。
	Dimension(ctx context.Context) (int, error)

	// Upsert 按唯一键写入分块，保留 created_at 并刷新 updated_at。
	Upsert(ctx context.Context, chunk *model.IndexedChunk) error

	// Get 按唯一键读取分块。
	Get(ctx context.Context, key model.ChunkKey) (*model.IndexedChunk, error)

	// Search 在启用的分块中做余弦相似度检索。
	Search(ctx context.Context, q *SearchQuery) ([]ScoredChunk, error)

	// Deactivate 将实体在所有语言下的分块标记为未启用，返回影响行数。
	Deactivate(ctx context.Context, kind, id string) (int64, error)

	// Keys 返回某类实体的全部分块键。
	Keys(ctx context.Context, kind string) ([]model.ChunkKey, error)

	// Delete 按键物理删除分块。
	Delete(ctx context.Context, keys ...model.ChunkKey) (int64, error)

	// Count 返回分块总数。
	Count(ctx context.Context) (int64, error)

	// CountByCategory 返回各类别的分块数。
	CountByCategory(ctx context.Context) (map[string]int64, error)
}

// CosineDistance returns 1 - cos(a, b). Vectors of different length or zero
// norm are at distance 1.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
