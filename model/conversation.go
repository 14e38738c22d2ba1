package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SessionStatus represents the lifecycle state of a conversation session
type SessionStatus string

const (
	SessionStatusActive   SessionStatus = "active"
	SessionStatusArchived SessionStatus = "archived"
)

// MessageRole represents the role of the message sender
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// ConversationSession represents a chat session. ProfileID is optional: a
// session may start profile-less and have a profile attached later.
type ConversationSession struct {
	ID            uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	UserID        uuid.UUID     `gorm:"type:uuid;not null;index" json:"user_id"`
	ProfileID     *uuid.UUID    `gorm:"type:uuid;index" json:"profile_id,omitempty"`
	Title         string        `gorm:"not null" json:"title"`
	Status        SessionStatus `gorm:"type:varchar(20);default:'active'" json:"status"`
	LastMessageAt *time.Time    `gorm:"index" json:"last_message_at,omitempty"`

	// Relationships
	Profile         *Profile         `gorm:"foreignKey:ProfileID;constraint:OnDelete:SET NULL" json:"profile,omitempty"`
	Messages        []ConversationMessage `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"-"`
	Recommendations []Recommendation      `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"-"`
}

// BeforeCreate assigns a UUID primary key when one was not provided
func (s *ConversationSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// TableName specifies the table name for ConversationSession
func (ConversationSession) TableName() string {
	return "conversation_sessions"
}

// EffectiveActivityAt returns the timestamp used for recency grouping,
// falling back to creation time for sessions with no messages yet.
func (s *ConversationSession) EffectiveActivityAt() time.Time {
	if s.LastMessageAt != nil {
		return *s.LastMessageAt
	}
	return s.CreatedAt
}

// ConversationMessage represents a single message in a session. Messages are
// append-only; there is no update or delete path for individual messages.
type ConversationMessage struct {
	ID        uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time   `json:"created_at"`
	SessionID uuid.UUID   `gorm:"type:uuid;not null;index" json:"session_id"`
	Role      MessageRole `gorm:"type:varchar(20);not null" json:"role"`
	Content   string      `gorm:"type:text;not null" json:"content"`
	Metadata  JSONMap     `gorm:"type:jsonb;default:'{}'" json:"metadata,omitempty"`
}

// BeforeCreate assigns a UUID primary key when one was not provided
func (m *ConversationMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// TableName specifies the table name for ConversationMessage
func (ConversationMessage) TableName() string {
	return "conversation_messages"
}
