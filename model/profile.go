package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ProfileStatus represents the lifecycle state of a student profile
type ProfileStatus string

const (
	ProfileStatusDraft    ProfileStatus = "draft"
	ProfileStatusActive   ProfileStatus = "active"
	ProfileStatusArchived ProfileStatus = "archived"
)

// Profile represents a student profile owned by a user. Academic record and
// preferences are optional sections filled in independently.
type Profile struct {
	ID          uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	UserID      uuid.UUID     `gorm:"type:uuid;not null;index" json:"user_id"`
	ProfileName string        `gorm:"not null" json:"profile_name"`
	Status      ProfileStatus `gorm:"type:varchar(20);default:'draft'" json:"status"`

	// Relationships
	AcademicRecord  *AcademicRecord     `gorm:"foreignKey:ProfileID;constraint:OnDelete:CASCADE" json:"academic_record,omitempty"`
	Preferences     *StudentPreferences `gorm:"foreignKey:ProfileID;constraint:OnDelete:CASCADE" json:"preferences,omitempty"`
	Recommendations []Recommendation    `gorm:"foreignKey:ProfileID;constraint:OnDelete:CASCADE" json:"-"`
}

// BeforeCreate assigns a UUID primary key when one was not provided
func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// TableName specifies the table name for Profile
func (Profile) TableName() string {
	return "profiles"
}

// AcademicRecord holds the academic background of a profile. GPA is on the
// Moroccan 0-20 scale.
type AcademicRecord struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
	ProfileID          uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"profile_id"`
	CurrentStatus      string    `gorm:"type:varchar(50)" json:"current_status"` // high_school, undergrad, career_switcher
	CurrentInstitution string    `json:"current_institution,omitempty"`
	CurrentField       string    `json:"current_field,omitempty"`
	GPA                *float64  `json:"gpa,omitempty"`
	LanguagePreference string    `gorm:"type:varchar(30)" json:"language_preference,omitempty"`

	SubjectGrades []SubjectGrade `gorm:"foreignKey:AcademicRecordID;constraint:OnDelete:CASCADE" json:"subject_grades,omitempty"`
}

// BeforeCreate assigns a UUID primary key when one was not provided
func (a *AcademicRecord) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// TableName specifies the table name for AcademicRecord
func (AcademicRecord) TableName() string {
	return "academic_records"
}

// SubjectGrade is one graded subject within an academic record. Position
// preserves the order subjects were submitted in.
type SubjectGrade struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AcademicRecordID uuid.UUID `gorm:"type:uuid;not null;index" json:"academic_record_id"`
	SubjectName      string    `gorm:"not null" json:"subject_name"`
	Grade            float64   `json:"grade"`
	Weight           float64   `gorm:"default:1" json:"weight"`
	Position         int       `gorm:"default:0" json:"position"`
}

// BeforeCreate assigns a UUID primary key when one was not provided
func (s *SubjectGrade) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// TableName specifies the table name for SubjectGrade
func (SubjectGrade) TableName() string {
	return "subject_grades"
}

// StudentPreferences captures interests and constraints used to build
// retrieval queries and filters. Budget amounts are in MAD.
type StudentPreferences struct {
	ID                   uuid.UUID                    `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt            time.Time                    `json:"created_at"`
	UpdatedAt            time.Time                    `json:"updated_at"`
	ProfileID            uuid.UUID                    `gorm:"type:uuid;not null;uniqueIndex" json:"profile_id"`
	FavoriteSubjects     datatypes.JSONSlice[string]  `json:"favorite_subjects,omitempty"`
	DislikedSubjects     datatypes.JSONSlice[string]  `json:"disliked_subjects,omitempty"`
	SoftSkills           datatypes.JSONSlice[string]  `json:"soft_skills,omitempty"`
	Hobbies              datatypes.JSONSlice[string]  `json:"hobbies,omitempty"`
	GeographicPreference string                       `json:"geographic_preference,omitempty"`
	BudgetRangeMin       *float64                     `json:"budget_range_min,omitempty"`
	BudgetRangeMax       *float64                     `json:"budget_range_max,omitempty"`
	CareerGoals          string                       `gorm:"type:text" json:"career_goals,omitempty"`
}

// BeforeCreate assigns a UUID primary key when one was not provided
func (p *StudentPreferences) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// TableName specifies the table name for StudentPreferences
func (StudentPreferences) TableName() string {
	return "student_preferences"
}
