package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/lazysoft/consultant/internal/model"
	"github.com/lazysoft/consultant/pkg/utils/errors"
)

type catalogStore struct {
	db *gorm.DB
}

func first[T any](ctx context.Context, db *gorm.DB, id uint64, preload ...string) (*T, error) {
	var v T
	q := db.WithContext(ctx)
	for _, p := range preload {
		q = q.Preload(p)
	}
	if err := q.First(&v, id).Error; err != nil {
		return nil, dbError(err, errors.ErrEntityNotFound)
	}
	return &v, nil
}

func (s *catalogStore) Service(ctx context.Context, id uint64) (*model.ServiceCategory, error) {
	return first[model.ServiceCategory](ctx, s.db, id)
}

func (s *catalogStore) Project(ctx context.Context, id uint64) (*model.Project, error) {
	return first[model.Project](ctx, s.db, id)
}

func (s *catalogStore) FAQ(ctx context.Context, id uint64) (*model.FAQ, error) {
	return first[model.FAQ](ctx, s.db, id)
}

func (s *catalogStore) Pricing(ctx context.Context, id uint64) (*model.ServicePricing, error) {
	return first[model.ServicePricing](ctx, s.db, id, "Service", "Tier")
}

func (s *catalogStore) About(ctx context.Context, id uint64) (*model.AboutPage, error) {
	return first[model.AboutPage](ctx, s.db, id)
}

func (s *catalogStore) Contact(ctx context.Context, id uint64) (*model.ContactPage, error) {
	return first[model.ContactPage](ctx, s.db, id)
}

func (s *catalogStore) IDs(ctx context.Context, kind string) ([]uint64, error) {
	var m any
	switch kind {
	case model.KindService:
		m = &model.ServiceCategory{}
	case model.KindProject:
		m = &model.Project{}
	case model.KindFAQ:
		m = &model.FAQ{}
	case model.KindPricing:
		m = &model.ServicePricing{}
	case model.KindKnowledge:
		m = &model.KnowledgeEntry{}
	case model.KindAbout:
		m = &model.AboutPage{}
	case model.KindContact:
		m = &model.ContactPage{}
	default:
		return nil, errors.ErrInvalidParam.WithMessage(fmt.Sprintf("unknown entity kind %q", kind))
	}

	var ids []uint64
	if err := s.db.WithContext(ctx).Model(m).Order("id ASC").Pluck("id", &ids).Error; err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return ids, nil
}
