package chat

import (
	"context"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateSession(ctx context.Context, s *Session) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *Repo) GetSessionBySessionID(ctx context.Context, sessionID string) (*Session, error) {
	var s Session
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSessions returns all sessions, newest first.
func (r *Repo) ListSessions(ctx context.Context) ([]Session, error) {
	var out []Session
	if err := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) UpdateSessionProviderModel(ctx context.Context, sessionID, provider, model string) error {
	return r.db.WithContext(ctx).Model(&Session{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]any{"provider": provider, "model": model}).Error
}

// DeleteSession removes the messages first, then the session row.
func (r *Repo) DeleteSession(ctx context.Context, sessionID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&Message{}).Error; err != nil {
			return err
		}
		return tx.Where("session_id = ?", sessionID).Delete(&Session{}).Error
	})
}

func (r *Repo) InsertMessage(ctx context.Context, m *Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// ListMessagesPageDesc returns one page of messages in DESC id order
// (newest -> oldest), skipping offset rows from the newest end. Callers
// reverse the page into chronological order.
func (r *Repo) ListMessagesPageDesc(ctx context.Context, sessionID string, limit, offset int) ([]Message, error) {
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// ListRecentMessagesDesc returns the most recent messages in DESC id order.
func (r *Repo) ListRecentMessagesDesc(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}
	return r.ListMessagesPageDesc(ctx, sessionID, limit, 0)
}

func (r *Repo) CountMessages(ctx context.Context, sessionID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Message{}).
		Where("session_id = ?", sessionID).
		Count(&n).Error
	return n, err
}
