// Package milvus wraps the Milvus SDK client for collections keyed by a
// string primary key with a single float vector field.
package milvus

import (
	"context"
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	"github.com/lazysoft/consultant/pkg/component/storage"
	milvusopts "github.com/lazysoft/consultant/pkg/options/milvus"
)

// Field names shared by every collection created through this package.
const (
	FieldID        = "id"
	FieldEmbedding = "embedding"
)

var _ storage.Client = (*Client)(nil)

// Client wraps the Milvus SDK client.
type Client struct {
	client *milvusclient.Client
	opts   *milvusopts.Options
}

// New creates a new Milvus client.
func New(ctx context.Context, opts *milvusopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("milvus options is nil")
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  opts.Address,
		Username: opts.Username,
		Password: opts.Password,
		DBName:   opts.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	return &Client{client: c, opts: opts}, nil
}

// Name returns the storage type identifier.
func (c *Client) Name() string {
	return "milvus"
}

// Ping checks connectivity by checking the configured collection.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(c.opts.Collection))
	return err
}

// Close closes the Milvus client connection.
func (c *Client) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.Timeout)
	defer cancel()
	return c.client.Close(ctx)
}

// CollectionSchema defines the schema for a vector collection.
type CollectionSchema struct {
	Name        string
	Description string
	Dimension   int
	MetaFields  []MetaField
}

// MetaField defines a scalar field in the collection.
type MetaField struct {
	Name     string
	DataType entity.FieldType
	MaxLen   int // For VARCHAR type
}

// EnsureCollection creates the collection with an HNSW cosine index when it
// does not exist and loads it.
func (c *Client) EnsureCollection(ctx context.Context, schema *CollectionSchema) error {
	exists, err := c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(schema.Name))
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if !exists {
		collSchema := entity.NewSchema().
			WithName(schema.Name).
			WithDescription(schema.Description).
			WithAutoID(false)

		collSchema.WithField(
			entity.NewField().
				WithName(FieldID).
				WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(256).
				WithIsPrimaryKey(true),
		)
		collSchema.WithField(
			entity.NewField().
				WithName(FieldEmbedding).
				WithDataType(entity.FieldTypeFloatVector).
				WithDim(int64(schema.Dimension)),
		)
		for _, f := range schema.MetaFields {
			field := entity.NewField().WithName(f.Name).WithDataType(f.DataType)
			if f.DataType == entity.FieldTypeVarChar && f.MaxLen > 0 {
				field.WithMaxLength(int64(f.MaxLen))
			}
			collSchema.WithField(field)
		}

		if err := c.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(schema.Name, collSchema)); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}

		idx := index.NewHNSWIndex(entity.COSINE, 16, 200)
		createIdxTask, err := c.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(schema.Name, FieldEmbedding, idx))
		if err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
		if err := createIdxTask.Await(ctx); err != nil {
			return fmt.Errorf("failed to wait for index creation: %w", err)
		}
	}

	loadTask, err := c.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(schema.Name))
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for collection loading: %w", err)
	}
	return nil
}

// Row is one entity to upsert.
type Row struct {
	ID        string
	Embedding []float32
	Strings   map[string]string
	Int64s    map[string]int64
	Bools     map[string]bool
}

// Upsert writes rows keyed by their string id.
func (c *Client) Upsert(ctx context.Context, collectionName string, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	ids := make([]string, len(rows))
	vectors := make([][]float32, len(rows))
	strs := map[string][]string{}
	ints := map[string][]int64{}
	bools := map[string][]bool{}
	for i, r := range rows {
		ids[i] = r.ID
		vectors[i] = r.Embedding
		for k, v := range r.Strings {
			if strs[k] == nil {
				strs[k] = make([]string, len(rows))
			}
			strs[k][i] = v
		}
		for k, v := range r.Int64s {
			if ints[k] == nil {
				ints[k] = make([]int64, len(rows))
			}
			ints[k][i] = v
		}
		for k, v := range r.Bools {
			if bools[k] == nil {
				bools[k] = make([]bool, len(rows))
			}
			bools[k][i] = v
		}
	}

	columns := []column.Column{
		column.NewColumnVarChar(FieldID, ids),
		column.NewColumnFloatVector(FieldEmbedding, len(vectors[0]), vectors),
	}
	for k, v := range strs {
		columns = append(columns, column.NewColumnVarChar(k, v))
	}
	for k, v := range ints {
		columns = append(columns, column.NewColumnInt64(k, v))
	}
	for k, v := range bools {
		columns = append(columns, column.NewColumnBool(k, v))
	}

	if _, err := c.client.Upsert(ctx, milvusclient.NewColumnBasedInsertOption(collectionName, columns...)); err != nil {
		return fmt.Errorf("failed to upsert data: %w", err)
	}
	return nil
}

// SearchResult represents a single search result.
type SearchResult struct {
	ID       string
	Score    float32
	Metadata map[string]any
}

// Search performs a filtered vector similarity search. With the COSINE
// metric Score is the cosine similarity.
func (c *Client) Search(ctx context.Context, collectionName string, vector []float32, topK int, filter string, outputFields []string) ([]SearchResult, error) {
	opt := milvusclient.NewSearchOption(collectionName, topK, []entity.Vector{entity.FloatVector(vector)}).
		WithANNSField(FieldEmbedding).
		WithSearchParam("ef", strconv.Itoa(max(64, topK))).
		WithOutputFields(outputFields...)
	if filter != "" {
		opt = opt.WithFilter(filter)
	}

	results, err := c.client.Search(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	if len(results) == 0 {
		return []SearchResult{}, nil
	}

	rs := results[0]
	out := make([]SearchResult, 0, rs.ResultCount)
	for i := 0; i < rs.ResultCount; i++ {
		r := SearchResult{Score: rs.Scores[i], Metadata: make(map[string]any)}
		if idCol, ok := rs.IDs.(*column.ColumnVarChar); ok {
			r.ID = idCol.Data()[i]
		}
		for _, field := range rs.Fields {
			switch col := field.(type) {
			case *column.ColumnVarChar:
				r.Metadata[col.Name()] = col.Data()[i]
			case *column.ColumnInt64:
				r.Metadata[col.Name()] = col.Data()[i]
			case *column.ColumnBool:
				r.Metadata[col.Name()] = col.Data()[i]
			}
		}
		out = append(out, r)
	}
	return out, nil
}

// QueryIDs returns the primary keys matching filter.
func (c *Client) QueryIDs(ctx context.Context, collectionName, filter string) ([]string, error) {
	rs, err := c.client.Query(ctx, milvusclient.NewQueryOption(collectionName).
		WithFilter(filter).
		WithOutputFields(FieldID))
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	col := rs.GetColumn(FieldID)
	if col == nil {
		return nil, nil
	}
	varchar, ok := col.(*column.ColumnVarChar)
	if !ok {
		return nil, fmt.Errorf("unexpected id column type %T", col)
	}
	return varchar.Data(), nil
}

// Query returns the entities matching filter. Only the requested output
// fields are populated; FieldEmbedding may be requested to read vectors back.
func (c *Client) Query(ctx context.Context, collectionName, filter string, outputFields []string) ([]Row, error) {
	fields := append([]string{FieldID}, outputFields...)
	rs, err := c.client.Query(ctx, milvusclient.NewQueryOption(collectionName).
		WithFilter(filter).
		WithOutputFields(fields...))
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	idCol, ok := rs.GetColumn(FieldID).(*column.ColumnVarChar)
	if !ok || idCol == nil {
		return nil, nil
	}

	rows := make([]Row, idCol.Len())
	for i := range rows {
		rows[i] = Row{
			ID:      idCol.Data()[i],
			Strings: map[string]string{},
			Int64s:  map[string]int64{},
			Bools:   map[string]bool{},
		}
	}
	for _, name := range outputFields {
		switch col := rs.GetColumn(name).(type) {
		case *column.ColumnVarChar:
			for i := range rows {
				rows[i].Strings[name] = col.Data()[i]
			}
		case *column.ColumnInt64:
			for i := range rows {
				rows[i].Int64s[name] = col.Data()[i]
			}
		case *column.ColumnBool:
			for i := range rows {
				rows[i].Bools[name] = col.Data()[i]
			}
		case *column.ColumnFloatVector:
			for i := range rows {
				rows[i].Embedding = col.Data()[i]
			}
		}
	}
	return rows, nil
}

// Dimension returns the dimension of the vector field, or 0 when the
// collection does not exist yet.
func (c *Client) Dimension(ctx context.Context, collectionName string) (int, error) {
	exists, err := c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(collectionName))
	if err != nil {
		return 0, fmt.Errorf("failed to check collection existence: %w", err)
	}
	if !exists {
		return 0, nil
	}
	coll, err := c.client.DescribeCollection(ctx, milvusclient.NewDescribeCollectionOption(collectionName))
	if err != nil {
		return 0, fmt.Errorf("failed to describe collection: %w", err)
	}
	for _, f := range coll.Schema.Fields {
		if f.Name != FieldEmbedding {
			continue
		}
		dim, err := f.GetDim()
		if err != nil {
			return 0, fmt.Errorf("failed to read vector dimension: %w", err)
		}
		return int(dim), nil
	}
	return 0, fmt.Errorf("collection %s has no %s field", collectionName, FieldEmbedding)
}

// DeleteByIDs deletes entities by their primary keys.
func (c *Client) DeleteByIDs(ctx context.Context, collectionName string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := c.client.Delete(ctx, milvusclient.NewDeleteOption(collectionName).WithStringIDs(FieldID, ids)); err != nil {
		return fmt.Errorf("failed to delete by ids: %w", err)
	}
	return nil
}

// Count returns the number of entities in a collection.
func (c *Client) Count(ctx context.Context, collectionName string) (int64, error) {
	stats, err := c.client.GetCollectionStats(ctx, milvusclient.NewGetCollectionStatsOption(collectionName))
	if err != nil {
		return 0, fmt.Errorf("failed to get collection stats: %w", err)
	}
	if val, ok := stats["row_count"]; ok {
		return strconv.ParseInt(val, 10, 64)
	}
	return 0, nil
}

// Collection returns the configured collection name.
func (c *Client) Collection() string {
	return c.opts.Collection
}
