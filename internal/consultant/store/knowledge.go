package store

import (
	"context"
	stderrors "errors"
	"time"

	"gorm.io/gorm"

	"github.com/lazysoft/consultant/internal/model"
	"github.com/lazysoft/consultant/pkg/utils/errors"
)

var errKnowledgeNotFound = errors.ErrEntityNotFound.WithMessages(
	"Knowledge entry not found",
	"Запис бази знань не знайдено",
)

type knowledgeStore struct {
	db *gorm.DB
}

func (s *knowledgeStore) Get(ctx context.Context, id uint64) (*model.KnowledgeEntry, error) {
	var e model.KnowledgeEntry
	if err := s.db.WithContext(ctx).First(&e, id).Error; err != nil {
		return nil, dbError(err, errKnowledgeNotFound)
	}
	return &e, nil
}

func (s *knowledgeStore) GetByKey(ctx context.Context, key string) (*model.KnowledgeEntry, error) {
	var e model.KnowledgeEntry
	if err := s.db.WithContext(ctx).Where("entry_key = ?", key).First(&e).Error; err != nil {
		return nil, dbError(err, errKnowledgeNotFound)
	}
	return &e, nil
}

func (s *knowledgeStore) Create(ctx context.Context, e *model.KnowledgeEntry) error {
	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		if stderrors.Is(err, gorm.ErrDuplicatedKey) {
			return errors.ErrConflict.WithMessage("knowledge key already exists")
		}
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

func (s *knowledgeStore) Update(ctx context.Context, e *model.KnowledgeEntry) error {
	if err := s.db.WithContext(ctx).Save(e).Error; err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

func (s *knowledgeStore) Delete(ctx context.Context, id uint64) error {
	result := s.db.WithContext(ctx).Delete(&model.KnowledgeEntry{}, id)
	if result.Error != nil {
		return errors.ErrDatabase.WithCause(result.Error)
	}
	if result.RowsAffected == 0 {
		return errKnowledgeNotFound
	}
	return nil
}

func (s *knowledgeStore) List(ctx context.Context, sourceTypes ...string) ([]*model.KnowledgeEntry, error) {
	var entries []*model.KnowledgeEntry
	db := s.db.WithContext(ctx).Where("active = ?", true)
	if len(sourceTypes) > 0 {
		db = db.Where("source_type IN ?", sourceTypes)
	}
	if err := db.Order("priority ASC, id ASC").Find(&entries).Error; err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return entries, nil
}

func (s *knowledgeStore) TouchEmbedding(ctx context.Context, id uint64, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&model.KnowledgeEntry{}).
		Where("id = ?", id).
		UpdateColumn("last_embedding_update", at).Error
	if err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}
