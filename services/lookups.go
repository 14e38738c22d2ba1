package services

import (
	"errors"

	"github.com/google/uuid"
	"github.com/siralabs/sira-api/model"
	"gorm.io/gorm"
)

// findProfileForUser loads a profile with its academic record, ordered
// subject grades and preferences, enforcing ownership.
func findProfileForUser(db *gorm.DB, profileID, userID uuid.UUID) (*model.Profile, error) {
	var profile model.Profile
	err := db.
		Preload("AcademicRecord.SubjectGrades", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("position ASC")
		}).
		Preload("AcademicRecord").
		Preload("Preferences").
		First(&profile, "id = ?", profileID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}

	if profile.UserID != userID {
		return nil, ErrNotOwned
	}

	return &profile, nil
}

// findSessionForUser loads a conversation session enforcing ownership
func findSessionForUser(db *gorm.DB, sessionID, userID uuid.UUID) (*model.ConversationSession, error) {
	var session model.ConversationSession
	err := db.First(&session, "id = ?", sessionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	if session.UserID != userID {
		return nil, ErrNotOwned
	}

	return &session, nil
}

// findRecommendationForUser loads a recommendation, resolving ownership
// through its profile.
func findRecommendationForUser(db *gorm.DB, recommendationID, userID uuid.UUID) (*model.Recommendation, error) {
	var rec model.Recommendation
	err := db.First(&rec, "id = ?", recommendationID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecommendationNotFound
		}
		return nil, err
	}

	var profile model.Profile
	if err := db.Select("user_id").First(&profile, "id = ?", rec.ProfileID).Error; err != nil {
		return nil, err
	}
	if profile.UserID != userID {
		return nil, ErrNotOwned
	}

	return &rec, nil
}
