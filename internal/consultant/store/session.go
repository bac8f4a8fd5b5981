package store

import (
	"context"
	"slices"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lazysoft/consultant/internal/model"
	"github.com/lazysoft/consultant/pkg/utils/errors"
)

type sessionStore struct {
	db *gorm.DB
}

func (s *sessionStore) Get(ctx context.Context, sessionID string) (*model.Session, error) {
	var sess model.Session
	if err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&sess).Error; err != nil {
		return nil, dbError(err, errors.ErrSessionNotFound)
	}
	return &sess, nil
}

// turnColumns 一轮对话负责写入的列。评分、报价和线索字段由各自的操作单独更新。
var turnColumns = []string{
	"language", "metadata", "detected_intent", "total_messages",
	"total_cost", "last_activity", "started_at", "ended_at",
}

// AppendTurn writes the session and the turn's messages atomically. A session
// with a zero ID is inserted first; an existing one only gets the columns a
// turn owns.
func (s *sessionStore) AppendTurn(ctx context.Context, sess *model.Session, msgs ...*model.Message) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := saveTurn(tx, sess); err != nil {
			return err
		}
		for _, m := range msgs {
			m.SessionRef = sess.ID
			if err := tx.Create(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

func saveTurn(tx *gorm.DB, sess *model.Session) error {
	if sess.ID == 0 {
		return tx.Omit(clause.Associations).Create(sess).Error
	}
	cols := slices.Clone(turnColumns)
	if sess.DetectedServiceCategory != "" {
		cols = append(cols, "detected_service_category")
	}
	if sess.ConsultationRequested {
		cols = append(cols, "consultation_requested")
	}
	return tx.Model(sess).Select(cols).Updates(sess).Error
}

func (s *sessionStore) MarkQuoteRequested(ctx context.Context, sessionID, clientName, clientEmail, category string) error {
	values := map[string]any{
		"quote_requested": true,
		"lead_generated":  true,
		"client_name":     clientName,
		"client_email":    clientEmail,
	}
	if category != "" {
		values["detected_service_category"] = gorm.Expr("COALESCE(NULLIF(detected_service_category, ''), ?)", category)
	}
	result := s.db.WithContext(ctx).Model(&model.Session{}).
		Where("session_id = ?", sessionID).
		Updates(values)
	if result.Error != nil {
		return errors.ErrDatabase.WithCause(result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.ErrSessionNotFound
	}
	return nil
}

func (s *sessionStore) History(ctx context.Context, sessionRef uint64, limit int) ([]*model.Message, error) {
	if sessionRef == 0 {
		return nil, nil
	}
	var msgs []*model.Message
	err := s.db.WithContext(ctx).
		Where("session_ref = ?", sessionRef).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	slices.Reverse(msgs)
	return msgs, nil
}

func (s *sessionStore) Messages(ctx context.Context, sessionID string) ([]*model.Message, error) {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	var msgs []*model.Message
	err = s.db.WithContext(ctx).
		Where("session_ref = ?", sess.ID).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return msgs, nil
}

func (s *sessionStore) Rate(ctx context.Context, sessionID string, rating int, feedback string) error {
	result := s.db.WithContext(ctx).Model(&model.Session{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]any{"satisfaction": rating, "feedback": feedback})
	if result.Error != nil {
		return errors.ErrDatabase.WithCause(result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.ErrSessionNotFound
	}
	return nil
}

func (s *sessionStore) ListActiveSince(ctx context.Context, since time.Time) ([]*model.Session, error) {
	var sessions []*model.Session
	err := s.db.WithContext(ctx).
		Where("last_activity >= ?", since).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Order("id ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return sessions, nil
}

func (s *sessionStore) CloseIdle(ctx context.Context, before time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Model(&model.Session{}).
		Where("ended_at IS NULL AND last_activity < ?", before).
		Update("ended_at", time.Now())
	if result.Error != nil {
		return 0, errors.ErrDatabase.WithCause(result.Error)
	}
	return result.RowsAffected, nil
}

func (s *sessionStore) Stats(ctx context.Context) (*SessionStats, error) {
	var st SessionStats
	db := s.db.WithContext(ctx)
	if err := db.Model(&model.Session{}).Count(&st.Sessions).Error; err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	if err := db.Model(&model.Message{}).Count(&st.Messages).Error; err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	if err := db.Model(&model.Session{}).Where("lead_generated = ?", true).Count(&st.Leads).Error; err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	if err := db.Model(&model.Session{}).Where("quote_requested = ?", true).Count(&st.Quotes).Error; err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return &st, nil
}
