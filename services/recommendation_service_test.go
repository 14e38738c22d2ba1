package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/siralabs/sira-api/model"
)

const testAIResponse = "Here are your matches.\n\n```json\n" +
	`{"match_scores": [91], "program_names": ["Software Engineering at ENSIAS"], "difficulty_levels": ["Hard"], "tuition_fees": [0]}` +
	"\n```\n"

func newRecommendationFixture(t *testing.T, searcher *fakeSearcher, completer *fakeCompleter) (*gorm.DB, *RecommendationService) {
	t.Helper()

	db := newTestDB(t)
	queries := NewQueryService()
	retrieval := NewRetrievalService(searcher, queries, nil)
	svc := NewRecommendationService(db, retrieval, NewPromptService(), queries, completer)
	return db, svc
}

func TestGeneratePersistsRecommendation(t *testing.T) {
	searcher := &fakeSearcher{results: [][]model.RetrievedProgram{somePrograms(2)}}
	completer := &fakeCompleter{response: testAIResponse}
	db, svc := newRecommendationFixture(t, searcher, completer)

	user := createTestUser(t, db, "student@example.com")
	profile := createTestProfile(t, db, user.ID, "Science Track")
	session := createTestSession(t, db, user.ID, &profile.ID)

	rec, err := svc.Generate(context.Background(), user.ID, GenerateInput{
		ProfileID: profile.ID,
		SessionID: session.ID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var stored model.Recommendation
	if err := db.First(&stored, "id = ?", rec.ID).Error; err != nil {
		t.Fatalf("recommendation not persisted: %v", err)
	}

	if stored.AIResponse != testAIResponse {
		t.Errorf("stored response mismatch")
	}
	if stored.RetrievalTier != model.TierFullConstraints {
		t.Errorf("tier = %s, want %s", stored.RetrievalTier, model.TierFullConstraints)
	}
	if stored.StructuredData == nil || len(stored.StructuredData.ProgramNames) != 1 {
		t.Errorf("structured data not extracted: %+v", stored.StructuredData)
	}
	if len(stored.RetrievedContext) != 2 {
		t.Errorf("retrieved context = %d programs, want 2", len(stored.RetrievedContext))
	}
	// Stored query is the base profile query, not the enhanced one
	if strings.Contains(stored.Query, "skills in") {
		t.Errorf("stored query must be the base query, got %q", stored.Query)
	}
}

func TestGenerateTruncatesStoredContext(t *testing.T) {
	long := strings.Repeat("x", 2000)
	programs := somePrograms(1)
	programs[0].Content = long

	searcher := &fakeSearcher{results: [][]model.RetrievedProgram{programs}}
	completer := &fakeCompleter{response: "No structured block here."}
	db, svc := newRecommendationFixture(t, searcher, completer)

	user := createTestUser(t, db, "student@example.com")
	profile := createTestProfile(t, db, user.ID, "Science Track")
	session := createTestSession(t, db, user.ID, &profile.ID)

	rec, err := svc.Generate(context.Background(), user.ID, GenerateInput{
		ProfileID: profile.ID,
		SessionID: session.ID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := len(rec.RetrievedContext[0].Content); got > 503 {
		t.Errorf("stored candidate content not truncated: %d chars", got)
	}
	if rec.StructuredData != nil {
		t.Errorf("missing json block must yield nil structured data, got %+v", rec.StructuredData)
	}
}

func TestGenerateRelaxedBudgetEndToEnd(t *testing.T) {
	// Nothing under the full constraint set, two candidates once the budget
	// cap is lifted
	searcher := &fakeSearcher{results: [][]model.RetrievedProgram{nil, somePrograms(2)}}
	completer := &fakeCompleter{response: testAIResponse}
	db, svc := newRecommendationFixture(t, searcher, completer)

	user := createTestUser(t, db, "student@example.com")
	profile := createTestProfile(t, db, user.ID, "Science Track")
	session := createTestSession(t, db, user.ID, &profile.ID)

	rec, err := svc.Generate(context.Background(), user.ID, GenerateInput{
		ProfileID: profile.ID,
		SessionID: session.ID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if searcher.calls != 2 {
		t.Errorf("expected 2 search attempts, got %d", searcher.calls)
	}

	var stored model.Recommendation
	if err := db.First(&stored, "id = ?", rec.ID).Error; err != nil {
		t.Fatalf("recommendation not persisted: %v", err)
	}
	if stored.RetrievalTier != model.TierRelaxedBudget {
		t.Errorf("tier = %s, want %s", stored.RetrievalTier, model.TierRelaxedBudget)
	}
	if len(stored.RetrievedContext) != 2 {
		t.Errorf("retrieved context = %d programs, want 2", len(stored.RetrievedContext))
	}
	if stored.StructuredData == nil || len(stored.StructuredData.ProgramNames) != 1 {
		t.Errorf("structured data not extracted: %+v", stored.StructuredData)
	}
}

func TestGenerateCompletionFailureLeavesNoRow(t *testing.T) {
	searcher := &fakeSearcher{results: [][]model.RetrievedProgram{somePrograms(1)}}
	completer := &fakeCompleter{err: errFakeCompletion}
	db, svc := newRecommendationFixture(t, searcher, completer)

	user := createTestUser(t, db, "student@example.com")
	profile := createTestProfile(t, db, user.ID, "Science Track")
	session := createTestSession(t, db, user.ID, &profile.ID)

	_, err := svc.Generate(context.Background(), user.ID, GenerateInput{
		ProfileID: profile.ID,
		SessionID: session.ID,
	})
	if !errors.Is(err, ErrCompletionFailed) {
		t.Fatalf("expected ErrCompletionFailed, got %v", err)
	}

	var count int64
	db.Model(&model.Recommendation{}).Count(&count)
	if count != 0 {
		t.Errorf("failed generation must not persist, found %d rows", count)
	}
}

func TestGenerateNoCandidates(t *testing.T) {
	searcher := &fakeSearcher{}
	completer := &fakeCompleter{response: testAIResponse}
	db, svc := newRecommendationFixture(t, searcher, completer)

	user := createTestUser(t, db, "student@example.com")
	profile := createTestProfile(t, db, user.ID, "Science Track")
	session := createTestSession(t, db, user.ID, &profile.ID)

	_, err := svc.Generate(context.Background(), user.ID, GenerateInput{
		ProfileID: profile.ID,
		SessionID: session.ID,
	})
	if !errors.Is(err, ErrNoCandidatesFound) {
		t.Errorf("expected ErrNoCandidatesFound, got %v", err)
	}
	if len(completer.transcripts) != 0 {
		t.Errorf("completion must not run without candidates")
	}
}

func TestGenerateOwnership(t *testing.T) {
	searcher := &fakeSearcher{results: [][]model.RetrievedProgram{somePrograms(1)}}
	completer := &fakeCompleter{response: testAIResponse}
	db, svc := newRecommendationFixture(t, searcher, completer)

	owner := createTestUser(t, db, "owner@example.com")
	intruder := createTestUser(t, db, "intruder@example.com")
	profile := createTestProfile(t, db, owner.ID, "Science Track")
	session := createTestSession(t, db, owner.ID, &profile.ID)

	_, err := svc.Generate(context.Background(), intruder.ID, GenerateInput{
		ProfileID: profile.ID,
		SessionID: session.ID,
	})
	if !errors.Is(err, ErrNotOwned) {
		t.Errorf("expected ErrNotOwned, got %v", err)
	}
}

func TestGenerateStreamPersistsAfterCompletion(t *testing.T) {
	searcher := &fakeSearcher{results: [][]model.RetrievedProgram{somePrograms(1)}}
	completer := &fakeCompleter{chunks: []string{"Hello ", "from ", "the model"}}
	db, svc := newRecommendationFixture(t, searcher, completer)

	user := createTestUser(t, db, "student@example.com")
	profile := createTestProfile(t, db, user.ID, "Science Track")
	session := createTestSession(t, db, user.ID, &profile.ID)

	var received []string
	rec, err := svc.GenerateStream(context.Background(), user.ID, GenerateInput{
		ProfileID: profile.ID,
		SessionID: session.ID,
	}, func(delta string) error {
		received = append(received, delta)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(received) != 3 {
		t.Errorf("got %d chunks, want 3", len(received))
	}
	if rec.AIResponse != "Hello from the model" {
		t.Errorf("accumulated response = %q", rec.AIResponse)
	}

	var count int64
	db.Model(&model.Recommendation{}).Count(&count)
	if count != 1 {
		t.Errorf("expected exactly one persisted row, got %d", count)
	}
}

func TestGenerateStreamFailureLeavesNoRow(t *testing.T) {
	searcher := &fakeSearcher{results: [][]model.RetrievedProgram{somePrograms(1)}}
	completer := &fakeCompleter{chunks: []string{"partial ", "output"}, err: errFakeCompletion, failAfter: 1}
	db, svc := newRecommendationFixture(t, searcher, completer)

	user := createTestUser(t, db, "student@example.com")
	profile := createTestProfile(t, db, user.ID, "Science Track")
	session := createTestSession(t, db, user.ID, &profile.ID)

	_, err := svc.GenerateStream(context.Background(), user.ID, GenerateInput{
		ProfileID: profile.ID,
		SessionID: session.ID,
	}, func(delta string) error { return nil })
	if !errors.Is(err, ErrCompletionFailed) {
		t.Fatalf("expected ErrCompletionFailed, got %v", err)
	}

	var count int64
	db.Model(&model.Recommendation{}).Count(&count)
	if count != 0 {
		t.Errorf("interrupted stream must not persist, found %d rows", count)
	}
}

func TestGenerateStreamCallbackAbort(t *testing.T) {
	searcher := &fakeSearcher{results: [][]model.RetrievedProgram{somePrograms(1)}}
	completer := &fakeCompleter{chunks: []string{"a", "b", "c"}}
	db, svc := newRecommendationFixture(t, searcher, completer)

	user := createTestUser(t, db, "student@example.com")
	profile := createTestProfile(t, db, user.ID, "Science Track")
	session := createTestSession(t, db, user.ID, &profile.ID)

	abort := errors.New("client went away")
	_, err := svc.GenerateStream(context.Background(), user.ID, GenerateInput{
		ProfileID: profile.ID,
		SessionID: session.ID,
	}, func(delta string) error { return abort })
	if err == nil {
		t.Fatal("expected error when the callback aborts")
	}

	var count int64
	db.Model(&model.Recommendation{}).Count(&count)
	if count != 0 {
		t.Errorf("aborted stream must not persist, found %d rows", count)
	}
}

func TestSubmitFeedback(t *testing.T) {
	searcher := &fakeSearcher{results: [][]model.RetrievedProgram{somePrograms(1)}}
	completer := &fakeCompleter{response: testAIResponse}
	db, svc := newRecommendationFixture(t, searcher, completer)

	user := createTestUser(t, db, "student@example.com")
	profile := createTestProfile(t, db, user.ID, "Science Track")
	session := createTestSession(t, db, user.ID, &profile.ID)

	rec, err := svc.Generate(context.Background(), user.ID, GenerateInput{
		ProfileID: profile.ID,
		SessionID: session.ID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	comment := "very helpful"
	updated, err := svc.SubmitFeedback(user.ID, rec.ID, 4, &comment)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.FeedbackRating == nil || *updated.FeedbackRating != 4 {
		t.Errorf("rating not stored: %+v", updated.FeedbackRating)
	}

	if _, err := svc.SubmitFeedback(user.ID, rec.ID, 6, nil); err == nil {
		t.Error("rating above 5 must be rejected")
	}
	if _, err := svc.SubmitFeedback(user.ID, rec.ID, 0, nil); err == nil {
		t.Error("rating below 1 must be rejected")
	}
}

func TestListByProfileNewestFirst(t *testing.T) {
	searcher := &fakeSearcher{results: [][]model.RetrievedProgram{
		somePrograms(1), somePrograms(1), somePrograms(1),
	}}
	completer := &fakeCompleter{response: testAIResponse}
	db, svc := newRecommendationFixture(t, searcher, completer)

	user := createTestUser(t, db, "student@example.com")
	profile := createTestProfile(t, db, user.ID, "Science Track")
	session := createTestSession(t, db, user.ID, &profile.ID)

	for i := 0; i < 3; i++ {
		if _, err := svc.Generate(context.Background(), user.ID, GenerateInput{
			ProfileID: profile.ID,
			SessionID: session.ID,
		}); err != nil {
			t.Fatalf("generation %d failed: %v", i, err)
		}
	}

	recs, err := svc.ListByProfile(user.ID, profile.ID, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 2 {
		t.Errorf("limit not applied, got %d rows", len(recs))
	}
}
