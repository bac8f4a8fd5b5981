package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/lazysoft/consultant/internal/model"
	"github.com/lazysoft/consultant/pkg/utils/errors"
)

var errQuoteNotFound = errors.ErrNotFound.WithMessages("Quote request not found", "Запит на прорахунок не знайдено")

type quoteStore struct {
	db *gorm.DB
}

func (s *quoteStore) Create(ctx context.Context, q *model.QuoteRequest) error {
	if err := s.db.WithContext(ctx).Create(q).Error; err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

func (s *quoteStore) Get(ctx context.Context, requestID string) (*model.QuoteRequest, error) {
	var q model.QuoteRequest
	if err := s.db.WithContext(ctx).Where("request_id = ?", requestID).First(&q).Error; err != nil {
		return nil, dbError(err, errQuoteNotFound)
	}
	return &q, nil
}

func (s *quoteStore) UpdateStatus(ctx context.Context, requestID, status string) error {
	result := s.db.WithContext(ctx).Model(&model.QuoteRequest{}).
		Where("request_id = ?", requestID).
		Update("status", status)
	if result.Error != nil {
		return errors.ErrDatabase.WithCause(result.Error)
	}
	if result.RowsAffected == 0 {
		return errQuoteNotFound
	}
	return nil
}

func (s *quoteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.QuoteRequest{}).Count(&n).Error; err != nil {
		return 0, errors.ErrDatabase.WithCause(err)
	}
	return n, nil
}
