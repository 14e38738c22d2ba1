package services

import (
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/siralabs/sira-api/model"
)

// ProfileService manages student profiles and their academic record and
// preference sections
type ProfileService struct {
	db *gorm.DB
}

// NewProfileService creates a new profile service
func NewProfileService(db *gorm.DB) *ProfileService {
	return &ProfileService{db: db}
}

// CreateProfileInput carries profile creation fields
type CreateProfileInput struct {
	ProfileName string
}

// CreateProfile creates a new draft profile for the user
func (s *ProfileService) CreateProfile(userID uuid.UUID, input CreateProfileInput) (*model.Profile, error) {
	profile := &model.Profile{
		UserID:      userID,
		ProfileName: input.ProfileName,
		Status:      model.ProfileStatusDraft,
	}

	if err := s.db.Create(profile).Error; err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	log.Printf("[Profile] Created profile %s for user %s", profile.ID, userID)
	return profile, nil
}

// GetProfile returns a single profile with all sections loaded
func (s *ProfileService) GetProfile(userID, profileID uuid.UUID) (*model.Profile, error) {
	return findProfileForUser(s.db, profileID, userID)
}

// ListProfiles returns all of the user's profiles, newest first
func (s *ProfileService) ListProfiles(userID uuid.UUID) ([]model.Profile, error) {
	var profiles []model.Profile
	err := s.db.
		Preload("AcademicRecord").
		Preload("Preferences").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&profiles).Error
	return profiles, err
}

// UpdateProfileInput is a typed patch; nil fields are left untouched
type UpdateProfileInput struct {
	ProfileName *string
}

// UpdateProfile applies a partial update to top-level profile fields
func (s *ProfileService) UpdateProfile(userID, profileID uuid.UUID, input UpdateProfileInput) (*model.Profile, error) {
	profile, err := findProfileForUser(s.db, profileID, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.ProfileName != nil {
		updates["profile_name"] = *input.ProfileName
		profile.ProfileName = *input.ProfileName
	}

	if len(updates) == 0 {
		return profile, nil
	}

	if err := s.db.Model(&model.Profile{}).Where("id = ?", profileID).Updates(updates).Error; err != nil {
		return nil, err
	}

	return profile, nil
}

// SetStatus moves the profile to a new lifecycle state
func (s *ProfileService) SetStatus(userID, profileID uuid.UUID, status model.ProfileStatus) (*model.Profile, error) {
	profile, err := findProfileForUser(s.db, profileID, userID)
	if err != nil {
		return nil, err
	}

	if err := s.db.Model(&model.Profile{}).Where("id = ?", profileID).Update("status", status).Error; err != nil {
		return nil, err
	}

	profile.Status = status
	return profile, nil
}

// SubjectGradeInput is one graded subject in an academic record upsert
type SubjectGradeInput struct {
	SubjectName string  `json:"subject_name" validate:"required"`
	Grade       float64 `json:"grade" validate:"min=0,max=20"`
	Weight      float64 `json:"weight"`
}

// AcademicRecordInput carries a full academic record replacement
type AcademicRecordInput struct {
	CurrentStatus      string              `json:"current_status"`
	CurrentInstitution string              `json:"current_institution"`
	CurrentField       string              `json:"current_field"`
	GPA                *float64            `json:"gpa" validate:"omitempty,min=0,max=20"`
	LanguagePreference string              `json:"language_preference"`
	SubjectGrades      []SubjectGradeInput `json:"subject_grades" validate:"dive"`
}

// UpsertAcademicRecord creates or replaces the profile's academic record.
// Subject grades are replaced wholesale, preserving submission order.
func (s *ProfileService) UpsertAcademicRecord(userID, profileID uuid.UUID, input AcademicRecordInput) (*model.AcademicRecord, error) {
	if _, err := findProfileForUser(s.db, profileID, userID); err != nil {
		return nil, err
	}

	var record model.AcademicRecord
	err := s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("profile_id = ?", profileID).First(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			record = model.AcademicRecord{ProfileID: profileID}
			if err := tx.Create(&record).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		updates := map[string]interface{}{
			"current_status":      input.CurrentStatus,
			"current_institution": input.CurrentInstitution,
			"current_field":       input.CurrentField,
			"gpa":                 input.GPA,
			"language_preference": input.LanguagePreference,
		}
		if err := tx.Model(&record).Updates(updates).Error; err != nil {
			return err
		}
		record.CurrentStatus = input.CurrentStatus
		record.CurrentInstitution = input.CurrentInstitution
		record.CurrentField = input.CurrentField
		record.GPA = input.GPA
		record.LanguagePreference = input.LanguagePreference

		if err := tx.Where("academic_record_id = ?", record.ID).Delete(&model.SubjectGrade{}).Error; err != nil {
			return err
		}

		record.SubjectGrades = record.SubjectGrades[:0]
		for i, sg := range input.SubjectGrades {
			weight := sg.Weight
			if weight == 0 {
				weight = 1
			}
			grade := model.SubjectGrade{
				AcademicRecordID: record.ID,
				SubjectName:      sg.SubjectName,
				Grade:            sg.Grade,
				Weight:           weight,
				Position:         i,
			}
			if err := tx.Create(&grade).Error; err != nil {
				return err
			}
			record.SubjectGrades = append(record.SubjectGrades, grade)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert academic record: %w", err)
	}

	return &record, nil
}

// PreferencesInput carries a full preferences replacement
type PreferencesInput struct {
	FavoriteSubjects     []string `json:"favorite_subjects"`
	DislikedSubjects     []string `json:"disliked_subjects"`
	SoftSkills           []string `json:"soft_skills"`
	Hobbies              []string `json:"hobbies"`
	GeographicPreference string   `json:"geographic_preference"`
	BudgetRangeMin       *float64 `json:"budget_range_min" validate:"omitempty,min=0"`
	BudgetRangeMax       *float64 `json:"budget_range_max" validate:"omitempty,min=0"`
	CareerGoals          string   `json:"career_goals"`
}

// UpsertPreferences creates or replaces the profile's preference section
func (s *ProfileService) UpsertPreferences(userID, profileID uuid.UUID, input PreferencesInput) (*model.StudentPreferences, error) {
	if _, err := findProfileForUser(s.db, profileID, userID); err != nil {
		return nil, err
	}

	var prefs model.StudentPreferences
	err := s.db.Where("profile_id = ?", profileID).First(&prefs).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		prefs = model.StudentPreferences{ProfileID: profileID}
		if err := s.db.Create(&prefs).Error; err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	prefs.FavoriteSubjects = datatypes.NewJSONSlice(input.FavoriteSubjects)
	prefs.DislikedSubjects = datatypes.NewJSONSlice(input.DislikedSubjects)
	prefs.SoftSkills = datatypes.NewJSONSlice(input.SoftSkills)
	prefs.Hobbies = datatypes.NewJSONSlice(input.Hobbies)
	prefs.GeographicPreference = input.GeographicPreference
	prefs.BudgetRangeMin = input.BudgetRangeMin
	prefs.BudgetRangeMax = input.BudgetRangeMax
	prefs.CareerGoals = input.CareerGoals

	if err := s.db.Save(&prefs).Error; err != nil {
		return nil, fmt.Errorf("failed to upsert preferences: %w", err)
	}

	return &prefs, nil
}

// DeleteProfile removes a profile and everything hanging off it. Sessions
// that referenced the profile survive with their profile link cleared;
// recommendations are removed.
func (s *ProfileService) DeleteProfile(userID, profileID uuid.UUID) error {
	profile, err := findProfileForUser(s.db, profileID, userID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if profile.AcademicRecord != nil {
			if err := tx.Where("academic_record_id = ?", profile.AcademicRecord.ID).Delete(&model.SubjectGrade{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("profile_id = ?", profileID).Delete(&model.AcademicRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("profile_id = ?", profileID).Delete(&model.StudentPreferences{}).Error; err != nil {
			return err
		}
		if err := tx.Where("profile_id = ?", profileID).Delete(&model.Recommendation{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.ConversationSession{}).
			Where("profile_id = ?", profileID).
			Update("profile_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Delete(&model.Profile{}, "id = ?", profileID).Error; err != nil {
			return err
		}
		log.Printf("[Profile] Deleted profile %s", profileID)
		return nil
	})
}
