// Package activity holds the audit trail and the token-usage ledger. Both
// are best-effort collaborators: write failures are logged, never propagated
// into the operation that produced them.
package activity

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jurisdesk/jurisdesk/internal/chat"
	"github.com/jurisdesk/jurisdesk/internal/store/rabbitmq"
)

type Entry struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	EntityType string    `gorm:"type:varchar(32);index;not null" json:"entity_type"`
	EntityID   uint64    `gorm:"index" json:"entity_id"`
	Action     string    `gorm:"type:varchar(32);not null" json:"action"`
	Name       string    `gorm:"type:varchar(255)" json:"name,omitempty"`
	Details    string    `gorm:"type:text" json:"details,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Entry) TableName() string { return "activity_log" }

type UsageEntry struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID      string    `gorm:"type:varchar(26);index;not null" json:"session_id"`
	MessageID      uint64    `gorm:"index" json:"message_id"`
	Provider       string    `gorm:"type:varchar(32);not null" json:"provider"`
	Model          string    `gorm:"type:varchar(64);not null" json:"model"`
	Profile        string    `gorm:"type:varchar(16)" json:"profile"`
	InputTokens    int       `json:"input_tokens"`
	OutputTokens   int       `json:"output_tokens"`
	ThinkingTokens int       `json:"thinking_tokens"`
	CachedTokens   int       `json:"cached_tokens"`
	CostUSD        float64   `json:"cost_usd"`
	CreatedAt      time.Time `json:"created_at"`
}

func (UsageEntry) TableName() string { return "usage_ledger" }

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Insert(ctx context.Context, e *Entry) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *Repo) InsertUsage(ctx context.Context, u *UsageEntry) error {
	return r.db.WithContext(ctx).Create(u).Error
}

// ListRecent returns the newest entries for the history panel.
func (r *Repo) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []Entry
	err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&out).Error
	return out, err
}

// Recorder implements chat.ActivityLogger by publishing events onto the
// worker queue. With no publisher configured it degrades to a direct,
// best-effort DB write so a missing broker never disables the audit trail.
type Recorder struct {
	pub  *rabbitmq.Publisher
	repo *Repo
	log  *zap.Logger
}

func NewRecorder(pub *rabbitmq.Publisher, repo *Repo, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{pub: pub, repo: repo, log: log}
}

func (r *Recorder) Log(ctx context.Context, entityType string, entityID uint64, action, name, details string) {
	if r.pub != nil {
		err := r.pub.PublishActivity(ctx, rabbitmq.ActivityPayload{
			EntityType: entityType,
			EntityID:   entityID,
			Action:     action,
			Name:       name,
			Details:    details,
		})
		if err == nil {
			return
		}
		r.log.Warn("activity publish failed, writing directly", zap.Error(err))
	}
	if r.repo == nil {
		return
	}
	err := r.repo.Insert(ctx, &Entry{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Name:       name,
		Details:    details,
	})
	if err != nil {
		r.log.Warn("activity write failed", zap.Error(err))
	}
}

// Ledger implements chat.UsageLedger with direct DB writes.
type Ledger struct {
	repo *Repo
}

func NewLedger(repo *Repo) *Ledger {
	return &Ledger{repo: repo}
}

func (l *Ledger) Record(ctx context.Context, rec chat.UsageRecord) error {
	return l.repo.InsertUsage(ctx, &UsageEntry{
		SessionID:      rec.SessionID,
		MessageID:      rec.MessageID,
		Provider:       rec.Provider,
		Model:          rec.Model,
		Profile:        rec.Profile,
		InputTokens:    rec.InputTokens,
		OutputTokens:   rec.OutputTokens,
		ThinkingTokens: rec.ThinkingTokens,
		CachedTokens:   rec.CachedTokens,
		CostUSD:        rec.CostUSD,
	})
}
