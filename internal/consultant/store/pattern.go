package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/lazysoft/consultant/internal/model"
	"github.com/lazysoft/consultant/pkg/utils/errors"
)

type patternStore struct {
	db *gorm.DB
}

func (s *patternStore) Get(ctx context.Context, id uint64) (*model.LearningPattern, error) {
	var p model.LearningPattern
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, dbError(err, errors.ErrPatternNotFound)
	}
	return &p, nil
}

func (s *patternStore) Create(ctx context.Context, p *model.LearningPattern) error {
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

func (s *patternStore) Update(ctx context.Context, p *model.LearningPattern) error {
	if err := s.db.WithContext(ctx).Save(p).Error; err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

func (s *patternStore) List(ctx context.Context, statuses ...string) ([]*model.LearningPattern, error) {
	var patterns []*model.LearningPattern
	db := s.db.WithContext(ctx)
	if len(statuses) > 0 {
		db = db.Where("status IN ?", statuses)
	}
	if err := db.Order("updated_at DESC, id DESC").Find(&patterns).Error; err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return patterns, nil
}

func (s *patternStore) DeleteRejectedBefore(ctx context.Context, before time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", model.PatternRejected, before).
		Delete(&model.LearningPattern{})
	if result.Error != nil {
		return 0, errors.ErrDatabase.WithCause(result.Error)
	}
	return result.RowsAffected, nil
}

func (s *patternStore) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Total  int64
	}
	err := s.db.WithContext(ctx).Model(&model.LearningPattern{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.Total
	}
	return out, nil
}
