package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RetrievalTier identifies which constraint level produced the candidate set
type RetrievalTier string

const (
	TierFullConstraints RetrievalTier = "full_constraints"
	TierRelaxedBudget   RetrievalTier = "relaxed_budget"
	TierSemanticOnly    RetrievalTier = "semantic_only"
)

// Recommendation is a persisted generation result: the query that was run,
// the candidates it retrieved, the full AI response and the parsed
// machine-readable block. Written only after a generation fully completes.
type Recommendation struct {
	ID               uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	ProfileID        uuid.UUID         `gorm:"type:uuid;not null;index" json:"profile_id"`
	SessionID        uuid.UUID         `gorm:"type:uuid;not null;index" json:"session_id"`
	Query            string            `gorm:"type:text;not null" json:"query"`
	RetrievalTier    RetrievalTier     `gorm:"type:varchar(30)" json:"retrieval_tier"`
	RetrievedContext RetrievedPrograms `gorm:"type:jsonb" json:"retrieved_context,omitempty"`
	AIResponse       string            `gorm:"type:text;not null" json:"ai_response"`
	StructuredData   *StructuredData   `gorm:"type:jsonb" json:"structured_data,omitempty"`
	FeedbackRating   *int              `json:"feedback_rating,omitempty"`
	FeedbackComment  *string           `gorm:"type:text" json:"feedback_comment,omitempty"`
}

// BeforeCreate assigns a UUID primary key when one was not provided
func (r *Recommendation) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// TableName specifies the table name for Recommendation
func (Recommendation) TableName() string {
	return "recommendations"
}
