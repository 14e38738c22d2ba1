package services

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/siralabs/sira-api/model"
	"github.com/siralabs/sira-api/services/mistral"
	"gorm.io/gorm"
)

// RecommendationService orchestrates the full generation pipeline: load
// profile, retrieve candidates, assemble prompts, call the AI model, extract
// structured data and persist the result. A recommendation row is written
// only when the whole pipeline completes; any failure leaves no trace.
type RecommendationService struct {
	db        *gorm.DB
	retrieval *RetrievalService
	prompts   *PromptService
	queries   *QueryService
	completer ChatCompleter
}

// NewRecommendationService creates a new recommendation orchestrator
func NewRecommendationService(db *gorm.DB, retrieval *RetrievalService, prompts *PromptService, queries *QueryService, completer ChatCompleter) *RecommendationService {
	return &RecommendationService{
		db:        db,
		retrieval: retrieval,
		prompts:   prompts,
		queries:   queries,
		completer: completer,
	}
}

// GenerateInput identifies the profile and session a generation runs against
type GenerateInput struct {
	ProfileID uuid.UUID
	SessionID uuid.UUID
	TopK      int
}

// preparedGeneration carries the pipeline state shared by the sync and
// streaming variants up to the completion call
type preparedGeneration struct {
	profile  *model.Profile
	query    string
	tier     model.RetrievalTier
	programs []model.RetrievedProgram
	messages []mistral.ChatMessage
}

// prepare runs the retrieval half of the pipeline
func (s *RecommendationService) prepare(ctx context.Context, userID uuid.UUID, input GenerateInput) (*preparedGeneration, error) {
	profile, err := findProfileForUser(s.db, input.ProfileID, userID)
	if err != nil {
		return nil, err
	}

	if _, err := findSessionForUser(s.db, input.SessionID, userID); err != nil {
		return nil, err
	}

	query := s.queries.ProfileToQuery(profile)
	log.Printf("[Recommendation] Generated query for profile %s: %s", profile.ID, query)

	programs, tier, err := s.retrieval.Retrieve(ctx, profile, input.TopK)
	if err != nil {
		return nil, err
	}
	log.Printf("[Recommendation] Retrieved %d programs using tier %s", len(programs), tier)

	messages := []mistral.ChatMessage{
		{Role: "system", Content: s.prompts.SystemPrompt()},
		{Role: "user", Content: s.prompts.CreateUserPrompt(profile, programs)},
	}

	return &preparedGeneration{
		profile:  profile,
		query:    query,
		tier:     tier,
		programs: programs,
		messages: messages,
	}, nil
}

// persist writes the completed generation. Candidate content is truncated in
// the stored snapshot.
func (s *RecommendationService) persist(prep *preparedGeneration, input GenerateInput, aiResponse string) (*model.Recommendation, error) {
	snapshot := make(model.RetrievedPrograms, 0, len(prep.programs))
	for _, p := range prep.programs {
		p.Content = TruncateContent(p.Content)
		snapshot = append(snapshot, p)
	}

	rec := &model.Recommendation{
		ProfileID:        input.ProfileID,
		SessionID:        input.SessionID,
		Query:            prep.query,
		RetrievalTier:    prep.tier,
		RetrievedContext: snapshot,
		AIResponse:       aiResponse,
		StructuredData:   ExtractStructuredData(aiResponse),
	}

	if err := s.db.Create(rec).Error; err != nil {
		return nil, fmt.Errorf("failed to save recommendation: %w", err)
	}

	log.Printf("[Recommendation] Saved recommendation %s for session %s", rec.ID, input.SessionID)
	return rec, nil
}

// Generate runs the full pipeline synchronously
func (s *RecommendationService) Generate(ctx context.Context, userID uuid.UUID, input GenerateInput) (*model.Recommendation, error) {
	prep, err := s.prepare(ctx, userID, input)
	if err != nil {
		return nil, err
	}

	aiResponse, err := s.completer.Complete(ctx, prep.messages)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}

	return s.persist(prep, input, aiResponse)
}

// GenerateStream runs the pipeline with a streamed completion. Chunks reach
// onChunk in arrival order. The recommendation is persisted only after the
// stream finishes naturally; a stream error, context cancellation or a
// callback error aborts without writing anything. Concurrent generations for
// the same profile and session are allowed and each persist their own row.
func (s *RecommendationService) GenerateStream(ctx context.Context, userID uuid.UUID, input GenerateInput, onChunk func(delta string) error) (*model.Recommendation, error) {
	prep, err := s.prepare(ctx, userID, input)
	if err != nil {
		return nil, err
	}

	var full []byte
	err = s.completer.StreamComplete(ctx, prep.messages, func(delta string) error {
		full = append(full, delta...)
		return onChunk(delta)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}

	return s.persist(prep, input, string(full))
}

// GetByID returns a single recommendation owned by the user
func (s *RecommendationService) GetByID(userID, recommendationID uuid.UUID) (*model.Recommendation, error) {
	return findRecommendationForUser(s.db, recommendationID, userID)
}

// ListByProfile returns a profile's recommendations, newest first
func (s *RecommendationService) ListByProfile(userID, profileID uuid.UUID, limit int) ([]model.Recommendation, error) {
	if _, err := findProfileForUser(s.db, profileID, userID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = 10
	}

	var recs []model.Recommendation
	err := s.db.
		Where("profile_id = ?", profileID).
		Order("created_at DESC").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}

// SubmitFeedback records a user rating and optional comment. Only the
// feedback fields are mutable after creation.
func (s *RecommendationService) SubmitFeedback(userID, recommendationID uuid.UUID, rating int, comment *string) (*model.Recommendation, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("rating must be between 1 and 5")
	}

	rec, err := findRecommendationForUser(s.db, recommendationID, userID)
	if err != nil {
		return nil, err
	}

	rec.FeedbackRating = &rating
	rec.FeedbackComment = comment

	err = s.db.Model(rec).Updates(map[string]interface{}{
		"feedback_rating":  rating,
		"feedback_comment": comment,
	}).Error
	if err != nil {
		return nil, err
	}

	return rec, nil
}
