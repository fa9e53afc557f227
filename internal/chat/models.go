package chat

import "time"

// Session is a conversation bound to one provider/model pair. Provider and
// model may be re-bound later; everything else is immutable after creation.
type Session struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	SessionID string    `gorm:"type:varchar(26);uniqueIndex;not null" json:"session_id"`
	CaseID    *uint64   `gorm:"index" json:"case_id,omitempty"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	Provider  string    `gorm:"type:varchar(32);not null" json:"provider"`
	Model     string    `gorm:"type:varchar(64);not null" json:"model"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Session) TableName() string { return "chat_sessions" }

// Message rows are append-only; none of the fields are mutated after insert.
type Message struct {
	ID               uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID        string    `gorm:"type:varchar(26);not null;index" json:"session_id"`
	Role             string    `gorm:"type:varchar(16);not null" json:"role"`
	Content          string    `gorm:"type:text;not null" json:"content"`
	ThinkingContent  *string   `gorm:"type:text" json:"thinking_content,omitempty"`
	WebSearchResults *string   `gorm:"type:text" json:"web_search_results,omitempty"`
	CostUSD          *float64  `json:"cost_usd,omitempty"`
	IntentProfile    *string   `gorm:"type:varchar(16)" json:"intent_profile,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

func (Message) TableName() string { return "chat_messages" }
