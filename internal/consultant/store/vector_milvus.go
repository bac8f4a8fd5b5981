package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/milvus-io/milvus/client/v2/entity"

	"github.com/lazysoft/consultant/internal/model"
	"github.com/lazysoft/consultant/pkg/component/milvus"
	"github.com/lazysoft/consultant/pkg/utils/errors"
	"github.com/lazysoft/consultant/pkg/utils/json"
)

// Scalar fields of the milvus collection.
const (
	fieldKind      = "entity_kind"
	fieldEntityID  = "entity_id"
	fieldLanguage  = "language"
	fieldCategory  = "category"
	fieldTitle     = "title"
	fieldContent   = "content_text"
	fieldPayload   = "payload"
	fieldActive    = "active"
	fieldCreatedAt = "created_at"
	fieldUpdatedAt = "updated_at"
)

var milvusOutputFields = []string{
	fieldKind, fieldEntityID, fieldLanguage, fieldCategory, fieldTitle,
	fieldContent, fieldPayload, fieldActive, fieldCreatedAt, fieldUpdatedAt,
}

// milvusPayload 不参与过滤的字段以 JSON 存储。
type milvusPayload struct {
	Tags      model.StringSlice `json:"tags,omitempty"`
	Metadata  model.JSONMap     `json:"metadata,omitempty"`
	ModelName string            `json:"model_name,omitempty"`
	Version   string            `json:"version,omitempty"`
}

// MilvusVectorStore 基于 Milvus 的向量存储，主键为 "kind:id:lang"。
type MilvusVectorStore struct {
	client     *milvus.Client
	collection string
	dimension  int
}

var _ VectorStore = (*MilvusVectorStore)(nil)

// NewMilvusVectorStore creates a store on the client's configured collection.
func NewMilvusVectorStore(client *milvus.Client, dimension int) *MilvusVectorStore {
	return &MilvusVectorStore{client: client, collection: client.Collection(), dimension: dimension}
}

// Name returns the backend name.
func (s *MilvusVectorStore) Name() string {
	return "milvus"
}

// Migrate creates and loads the collection.
func (s *MilvusVectorStore) Migrate(ctx context.Context) error {
	return s.client.EnsureCollection(ctx, &milvus.CollectionSchema{
		Name:        s.collection,
		Description: "consultant indexed chunks",
		Dimension:   s.dimension,
		MetaFields: []milvus.MetaField{
			{Name: fieldKind, DataType: entity.FieldTypeVarChar, MaxLen: 32},
			{Name: fieldEntityID, DataType: entity.FieldTypeVarChar, MaxLen: 64},
			{Name: fieldLanguage, DataType: entity.FieldTypeVarChar, MaxLen: 8},
			{Name: fieldCategory, DataType: entity.FieldTypeVarChar, MaxLen: 32},
			{Name: fieldTitle, DataType: entity.FieldTypeVarChar, MaxLen: 500},
			{Name: fieldContent, DataType: entity.FieldTypeVarChar, MaxLen: 65535},
			{Name: fieldPayload, DataType: entity.FieldTypeVarChar, MaxLen: 65535},
			{Name: fieldActive, DataType: entity.FieldTypeBool},
			{Name: fieldCreatedAt, DataType: entity.FieldTypeInt64},
			{Name: fieldUpdatedAt, DataType: entity.FieldTypeInt64},
		},
	})
}

// Dimension returns the dimension declared by the collection schema.
func (s *MilvusVectorStore) Dimension(ctx context.Context) (int, error) {
	return s.client.Dimension(ctx, s.collection)
}

// Upsert writes the chunk, keeping created_at of an existing row.
func (s *MilvusVectorStore) Upsert(ctx context.Context, chunk *model.IndexedChunk) error {
	now := time.Now()
	chunk.CreatedAt = now
	if existing, err := s.Get(ctx, chunk.Key()); err == nil {
		chunk.CreatedAt = existing.CreatedAt
	} else if !errors.IsCode(err, errChunkNotFound.Code) {
		return err
	}
	chunk.UpdatedAt = now

	row, err := toMilvusRow(chunk)
	if err != nil {
		return err
	}
	return s.client.Upsert(ctx, s.collection, []milvus.Row{row})
}

// Get returns the chunk for key.
func (s *MilvusVectorStore) Get(ctx context.Context, key model.ChunkKey) (*model.IndexedChunk, error) {
	rows, err := s.client.Query(ctx, s.collection,
		fmt.Sprintf("%s == %s", milvus.FieldID, quote(key.String())),
		append([]string{milvus.FieldEmbedding}, milvusOutputFields...))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errChunkNotFound
	}
	return fromMilvusRow(rows[0].ID, rows[0].Embedding, rows[0].Strings, rows[0].Int64s, rows[0].Bools)
}

// Search runs a filtered ANN search; with the COSINE metric the score is the
// similarity, so distance = 1 - score.
func (s *MilvusVectorStore) Search(ctx context.Context, q *SearchQuery) ([]ScoredChunk, error) {
	filter := fmt.Sprintf("%s == true && %s == %s", fieldActive, fieldLanguage, quote(q.Language))
	if q.Category != "" {
		filter += fmt.Sprintf(" && %s == %s", fieldCategory, quote(q.Category))
	}
	results, err := s.client.Search(ctx, s.collection, q.Vector, q.Limit, filter, milvusOutputFields)
	if err != nil {
		return nil, err
	}

	out := make([]ScoredChunk, 0, len(results))
	for _, r := range results {
		d := 1 - float64(r.Score)
		if d >= q.MaxDistance {
			continue
		}
		strs, ints, bools := splitMetadata(r.Metadata)
		chunk, err := fromMilvusRow(r.ID, nil, strs, ints, bools)
		if err != nil {
			return nil, err
		}
		out = append(out, ScoredChunk{Chunk: chunk, Distance: d})
	}
	return out, nil
}

// Deactivate rewrites the entity's rows with active=false.
func (s *MilvusVectorStore) Deactivate(ctx context.Context, kind, id string) (int64, error) {
	filter := fmt.Sprintf("%s == %s && %s == %s && %s == true",
		fieldKind, quote(kind), fieldEntityID, quote(id), fieldActive)
	rows, err := s.client.Query(ctx, s.collection, filter, append([]string{milvus.FieldEmbedding}, milvusOutputFields...))
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	now := time.Now().UnixMilli()
	for i := range rows {
		rows[i].Bools[fieldActive] = false
		rows[i].Int64s[fieldUpdatedAt] = now
	}
	if err := s.client.Upsert(ctx, s.collection, rows); err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

// Keys lists the chunk keys of a kind.
func (s *MilvusVectorStore) Keys(ctx context.Context, kind string) ([]model.ChunkKey, error) {
	ids, err := s.client.QueryIDs(ctx, s.collection, fmt.Sprintf("%s == %s", fieldKind, quote(kind)))
	if err != nil {
		return nil, err
	}
	keys := make([]model.ChunkKey, 0, len(ids))
	for _, id := range ids {
		if k, ok := model.ParseChunkKey(id); ok {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Delete removes the given chunks.
func (s *MilvusVectorStore) Delete(ctx context.Context, keys ...model.ChunkKey) (int64, error) {
	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = k.String()
	}
	if err := s.client.DeleteByIDs(ctx, s.collection, ids); err != nil {
		return 0, err
	}
	return int64(len(ids)), nil
}

// Count returns the number of chunks.
func (s *MilvusVectorStore) Count(ctx context.Context) (int64, error) {
	return s.client.Count(ctx, s.collection)
}

// CountByCategory counts the chunks of every known category.
func (s *MilvusVectorStore) CountByCategory(ctx context.Context) (map[string]int64, error) {
	categories := []string{
		model.CategoryService, model.CategoryProject, model.CategoryFAQ, model.CategoryPricing,
		model.CategoryContact, model.CategoryAbout, model.CategoryManual,
	}
	out := make(map[string]int64, len(categories))
	for _, c := range categories {
		ids, err := s.client.QueryIDs(ctx, s.collection, fmt.Sprintf("%s == %s", fieldCategory, quote(c)))
		if err != nil {
			return nil, err
		}
		if len(ids) > 0 {
			out[c] = int64(len(ids))
		}
	}
	return out, nil
}

func toMilvusRow(c *model.IndexedChunk) (milvus.Row, error) {
	payload, err := json.MarshalString(milvusPayload{
		Tags:      c.Tags,
		Metadata:  c.Metadata,
		ModelName: c.ModelName,
		Version:   c.Version,
	})
	if err != nil {
		return milvus.Row{}, fmt.Errorf("encode chunk payload: %w", err)
	}
	return milvus.Row{
		ID:        c.Key().String(),
		Embedding: c.Vector,
		Strings: map[string]string{
			fieldKind:     c.EntityKind,
			fieldEntityID: c.EntityID,
			fieldLanguage: c.Language,
			fieldCategory: c.Category,
			fieldTitle:    c.Title,
			fieldContent:  c.ContentText,
			fieldPayload:  payload,
		},
		Int64s: map[string]int64{
			fieldCreatedAt: c.CreatedAt.UnixMilli(),
			fieldUpdatedAt: c.UpdatedAt.UnixMilli(),
		},
		Bools: map[string]bool{fieldActive: c.Active},
	}, nil
}

func fromMilvusRow(id string, vec []float32, strs map[string]string, ints map[string]int64, bools map[string]bool) (*model.IndexedChunk, error) {
	var p milvusPayload
	if raw := strs[fieldPayload]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("decode chunk payload %s: %w", id, err)
		}
	}
	return &model.IndexedChunk{
		EntityKind:  strs[fieldKind],
		EntityID:    strs[fieldEntityID],
		Language:    strs[fieldLanguage],
		Category:    strs[fieldCategory],
		Title:       strs[fieldTitle],
		ContentText: strs[fieldContent],
		Tags:        p.Tags,
		Metadata:    p.Metadata,
		Vector:      vec,
		ModelName:   p.ModelName,
		Version:     p.Version,
		Active:      bools[fieldActive],
		CreatedAt:   time.UnixMilli(ints[fieldCreatedAt]),
		UpdatedAt:   time.UnixMilli(ints[fieldUpdatedAt]),
	}, nil
}

func splitMetadata(md map[string]any) (map[string]string, map[string]int64, map[string]bool) {
	strs := map[string]string{}
	ints := map[string]int64{}
	bools := map[string]bool{}
	for k, v := range md {
		switch x := v.(type) {
		case string:
			strs[k] = x
		case int64:
			ints[k] = x
		case bool:
			bools[k] = x
		}
	}
	return strs, ints, bools
}

// quote renders a milvus expression string literal.
func quote(s string) string {
	return strconv.Quote(s)
}
