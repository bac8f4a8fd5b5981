package store

import (
	"context"
	stderrors "errors"
	"time"

	"gorm.io/gorm"

	"github.com/lazysoft/consultant/internal/model"
	"github.com/lazysoft/consultant/pkg/utils/errors"
)

// Factory 聚合所有存储接口。
type Factory interface {
	Sessions() SessionStore
	Knowledge() KnowledgeStore
	Patterns() PatternStore
	Quotes() QuoteStore
	Catalog() CatalogStore
	Vectors() VectorStore
	// Migrate 创建或更新全部表结构，包括向量存储。
	Migrate(ctx context.Context) error
}

// SessionStats 会话统计。
type SessionStats struct {
	Sessions int64 `json:"sessions"`
	Messages int64 `json:"messages"`
	Leads    int64 `json:"leads"`
	Quotes   int64 `json:"quotes"`
}

// SessionStore 定义会话与消息的存储接口。
type SessionStore interface {
	// Get 按 session_id 获取会话，不存在时返回 ErrSessionNotFound。
	Get(ctx context.Context, sessionID string) (*model.Session, error)
	// AppendTurn 在一个事务内创建（如需要）会话、追加消息，并只更新一轮对话负责的列。
	AppendTurn(ctx context.Context, s *model.Session, msgs ...*model.Message) error
	// History 返回最近 limit 条消息，按时间正序。
	History(ctx context.Context, sessionRef uint64, limit int) ([]*model.Message, error)
	// Messages 返回会话的全部消息，按时间正序。
	Messages(ctx context.Context, sessionID string) ([]*model.Message, error)
	// MarkQuoteRequested 标记报价和线索，记录客户信息；category 只填充空的服务类别。
	MarkQuoteRequested(ctx context.Context, sessionID, clientName, clientEmail, category string) error
	// Rate 记录满意度评分。
	Rate(ctx context.Context, sessionID string, rating int, feedback string) error
	// ListActiveSince 返回 since 之后有活动的会话，预加载消息。
	ListActiveSince(ctx context.Context, since time.Time) ([]*model.Session, error)
	// CloseIdle 关闭 before 之前不再活动的会话，返回关闭数量。
	CloseIdle(ctx context.Context, before time.Time) (int64, error)
	Stats(ctx context.Context) (*SessionStats, error)
}

// KnowledgeStore 定义知识条目的存储接口。
type KnowledgeStore interface {
	Get(ctx context.Context, id uint64) (*model.KnowledgeEntry, error)
	GetByKey(ctx context.Context, key string) (*model.KnowledgeEntry, error)
	Create(ctx context.Context, e *model.KnowledgeEntry) error
	Update(ctx context.Context, e *model.KnowledgeEntry) error
	Delete(ctx context.Context, id uint64) error
	// List 返回启用的条目，可按 source_type 过滤。
	List(ctx context.Context, sourceTypes ...string) ([]*model.KnowledgeEntry, error)
	// TouchEmbedding 更新 last_embedding_update。
	TouchEmbedding(ctx context.Context, id uint64, at time.Time) error
}

// PatternStore 定义学习模式的存储接口。
type PatternStore interface {
	Get(ctx context.Context, id uint64) (*model.LearningPattern, error)
	Create(ctx context.Context, p *model.LearningPattern) error
	Update(ctx context.Context, p *model.LearningPattern) error
	// List 按状态过滤，未指定状态时返回全部，按更新时间倒序。
	List(ctx context.Context, statuses ...string) ([]*model.LearningPattern, error)
	// DeleteRejectedBefore 删除 before 之前更新的 rejected 模式。
	DeleteRejectedBefore(ctx context.Context, before time.Time) (int64, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// QuoteStore 定义报价请求的存储接口。
type QuoteStore interface {
	Create(ctx context.Context, q *model.QuoteRequest) error
	Get(ctx context.Context, requestID string) (*model.QuoteRequest, error)
	UpdateStatus(ctx context.Context, requestID, status string) error
	Count(ctx context.Context) (int64, error)
}

// CatalogStore 只读访问可索引的目录实体。
type CatalogStore interface {
	Service(ctx context.Context, id uint64) (*model.ServiceCategory, error)
	Project(ctx context.Context, id uint64) (*model.Project, error)
	FAQ(ctx context.Context, id uint64) (*model.FAQ, error)
	// Pricing 返回价格包并预加载服务和档位。
	Pricing(ctx context.Context, id uint64) (*model.ServicePricing, error)
	About(ctx context.Context, id uint64) (*model.AboutPage, error)
	Contact(ctx context.Context, id uint64) (*model.ContactPage, error)
	// IDs 返回某类实体的全部 id（含未启用），用于批量索引和孤儿清理。
	IDs(ctx context.Context, kind string) ([]uint64, error)
}

type datastore struct {
	db      *gorm.DB
	vectors VectorStore
}

var _ Factory = (*datastore)(nil)

// NewStore 基于 gorm 创建存储工厂。
func NewStore(db *gorm.DB, vectors VectorStore) Factory {
	return &datastore{db: db, vectors: vectors}
}

func (ds *datastore) Sessions() SessionStore { return &sessionStore{db: ds.db} }
func (ds *datastore) Knowledge() KnowledgeStore { return &knowledgeStore{db: ds.db} }
func (ds *datastore) Patterns() PatternStore { return &patternStore{db: ds.db} }
func (ds *datastore) Quotes() QuoteStore { return &quoteStore{db: ds.db} }
func (ds *datastore) Catalog() CatalogStore { return &catalogStore{db: ds.db} }
func (ds *datastore) Vectors() VectorStore { return ds.vectors }

// Migrate runs gorm auto-migration for the relational models and lets the
// vector store create its own table or collection.
func (ds *datastore) Migrate(ctx context.Context) error {
	if err := ds.db.WithContext(ctx).AutoMigrate(model.All()...); err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return ds.vectors.Migrate(ctx)
}

// dbError maps gorm errors, using notFound for missing records.
func dbError(err error, notFound *errors.Errno) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return errors.ErrDatabase.WithCause(err)
}
