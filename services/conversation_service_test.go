package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/siralabs/sira-api/model"
)

func newConversationFixture(t *testing.T, searcher *fakeSearcher, completer *fakeCompleter) (*gorm.DB, *ConversationService) {
	t.Helper()

	db := newTestDB(t)
	queries := NewQueryService()
	retrieval := NewRetrievalService(searcher, queries, nil)
	recommendations := NewRecommendationService(db, retrieval, NewPromptService(), queries, completer)
	svc := NewConversationService(db, completer, recommendations)
	return db, svc
}

func TestCreateSessionDefaultTitle(t *testing.T) {
	db, svc := newConversationFixture(t, &fakeSearcher{}, &fakeCompleter{})
	user := createTestUser(t, db, "student@example.com")
	profile := createTestProfile(t, db, user.ID, "Engineering Path")

	session, err := svc.CreateSession(user.ID, CreateSessionInput{ProfileID: &profile.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(session.Title, "Engineering Path - ") {
		t.Errorf("default title should lead with the profile name, got %q", session.Title)
	}

	orphan, err := svc.CreateSession(user.ID, CreateSessionInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(orphan.Title, "General - ") {
		t.Errorf("profile-less default title should lead with General, got %q", orphan.Title)
	}
}

func TestCreateSessionForeignProfile(t *testing.T) {
	db, svc := newConversationFixture(t, &fakeSearcher{}, &fakeCompleter{})
	owner := createTestUser(t, db, "owner@example.com")
	intruder := createTestUser(t, db, "intruder@example.com")
	profile := createTestProfile(t, db, owner.ID, "Private")

	_, err := svc.CreateSession(intruder.ID, CreateSessionInput{ProfileID: &profile.ID})
	if !errors.Is(err, ErrNotOwned) {
		t.Errorf("expected ErrNotOwned, got %v", err)
	}
}

func TestGroupSessionsByPeriod(t *testing.T) {
	now := time.Date(2025, 3, 15, 14, 0, 0, 0, time.UTC)

	ts := func(t time.Time) *time.Time { return &t }
	items := []SessionListItem{
		{ID: uuid.New(), LastMessageAt: ts(time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC))},  // today
		{ID: uuid.New(), LastMessageAt: ts(time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC))}, // yesterday
		{ID: uuid.New(), LastMessageAt: ts(time.Date(2025, 3, 11, 23, 0, 0, 0, time.UTC))}, // last 7 days
		{ID: uuid.New(), LastMessageAt: ts(time.Date(2025, 2, 20, 8, 0, 0, 0, time.UTC))},  // last month
		{ID: uuid.New(), LastMessageAt: ts(time.Date(2024, 12, 1, 8, 0, 0, 0, time.UTC))},  // too old
		{ID: uuid.New(), CreatedAt: time.Date(2025, 3, 15, 1, 0, 0, 0, time.UTC)},          // today via created_at
	}

	groups := GroupSessionsByPeriod(items, now)

	wantPeriods := []string{"Today", "Yesterday", "Last 7 days", "Last month"}
	if len(groups) != len(wantPeriods) {
		t.Fatalf("got %d groups, want %d", len(groups), len(wantPeriods))
	}
	for i, period := range wantPeriods {
		if groups[i].Period != period {
			t.Errorf("group %d = %q, want %q", i, groups[i].Period, period)
		}
	}

	if len(groups[0].Sessions) != 2 {
		t.Errorf("Today = %d sessions, want 2", len(groups[0].Sessions))
	}
	if len(groups[1].Sessions) != 1 {
		t.Errorf("Yesterday = %d sessions, want 1", len(groups[1].Sessions))
	}
	if len(groups[2].Sessions) != 1 {
		t.Errorf("Last 7 days = %d sessions, want 1", len(groups[2].Sessions))
	}
	if len(groups[3].Sessions) != 1 {
		t.Errorf("Last month = %d sessions, want 1", len(groups[3].Sessions))
	}

	total := 0
	for _, g := range groups {
		total += len(g.Sessions)
	}
	if total != 5 {
		t.Errorf("sessions older than a month must be excluded, bucketed %d of 6", total)
	}
}

func TestSendMessageWithoutProfile(t *testing.T) {
	completer := &fakeCompleter{response: "Happy to help!"}
	db, svc := newConversationFixture(t, &fakeSearcher{}, completer)
	user := createTestUser(t, db, "student@example.com")
	session := createTestSession(t, db, user.ID, nil)

	pair, err := svc.SendMessage(context.Background(), user.ID, session.ID, "What programs fit me?")
	if err != nil {
		t.Fatalf("profile-less chat must work: %v", err)
	}

	if pair.UserMessage.Role != model.MessageRoleUser {
		t.Errorf("user message role = %s", pair.UserMessage.Role)
	}
	if pair.AssistantMessage.Content != "Happy to help!" {
		t.Errorf("assistant content = %q", pair.AssistantMessage.Content)
	}

	var reloaded model.ConversationSession
	if err := db.First(&reloaded, "id = ?", session.ID).Error; err != nil {
		t.Fatal(err)
	}
	if reloaded.LastMessageAt == nil {
		t.Error("last_message_at must be bumped after an exchange")
	}
}

func TestSendMessageHistoryWindow(t *testing.T) {
	completer := &fakeCompleter{response: "ok"}
	db, svc := newConversationFixture(t, &fakeSearcher{}, completer)
	user := createTestUser(t, db, "student@example.com")
	session := createTestSession(t, db, user.ID, nil)

	// Seed 15 prior messages with increasing timestamps
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 15; i++ {
		msg := &model.ConversationMessage{
			SessionID: session.ID,
			Role:      model.MessageRoleUser,
			Content:   "old message",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := db.Create(msg).Error; err != nil {
			t.Fatal(err)
		}
	}

	if _, err := svc.SendMessage(context.Background(), user.ID, session.ID, "newest question"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	transcript := completer.transcripts[0]
	// system prompt + 10 history messages + the new user message
	if len(transcript) != 12 {
		t.Fatalf("transcript length = %d, want 12", len(transcript))
	}
	if transcript[0].Role != "system" {
		t.Errorf("transcript must start with the system prompt")
	}
	if transcript[len(transcript)-1].Content != "newest question" {
		t.Errorf("transcript must end with the new message, got %q", transcript[len(transcript)-1].Content)
	}
}

func TestSendMessageCompletionFailure(t *testing.T) {
	completer := &fakeCompleter{err: errFakeCompletion}
	db, svc := newConversationFixture(t, &fakeSearcher{}, completer)
	user := createTestUser(t, db, "student@example.com")
	session := createTestSession(t, db, user.ID, nil)

	_, err := svc.SendMessage(context.Background(), user.ID, session.ID, "hello")
	if !errors.Is(err, ErrCompletionFailed) {
		t.Fatalf("expected ErrCompletionFailed, got %v", err)
	}

	var count int64
	db.Model(&model.ConversationMessage{}).
		Where("session_id = ? AND role = ?", session.ID, model.MessageRoleAssistant).
		Count(&count)
	if count != 0 {
		t.Errorf("no assistant message may be stored on failure, found %d", count)
	}
}

func TestSendMessageStreamPersistsAssistantMessage(t *testing.T) {
	completer := &fakeCompleter{chunks: []string{"one ", "two"}}
	db, svc := newConversationFixture(t, &fakeSearcher{}, completer)
	user := createTestUser(t, db, "student@example.com")
	session := createTestSession(t, db, user.ID, nil)

	pair, err := svc.SendMessageStream(context.Background(), user.ID, session.ID, "stream please", func(delta string) error {
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pair.AssistantMessage.Content != "one two" {
		t.Errorf("assistant content = %q", pair.AssistantMessage.Content)
	}

	var count int64
	db.Model(&model.ConversationMessage{}).Where("session_id = ?", session.ID).Count(&count)
	if count != 2 {
		t.Errorf("expected user and assistant messages, got %d", count)
	}
}

func TestGenerateInitialRecommendationRequiresProfile(t *testing.T) {
	searcher := &fakeSearcher{results: [][]model.RetrievedProgram{somePrograms(1), somePrograms(1)}}
	completer := &fakeCompleter{response: testAIResponse}
	db, svc := newConversationFixture(t, searcher, completer)
	user := createTestUser(t, db, "student@example.com")
	session := createTestSession(t, db, user.ID, nil)

	_, err := svc.GenerateInitialRecommendation(context.Background(), user.ID, session.ID, 5)
	if !errors.Is(err, ErrMissingProfile) {
		t.Fatalf("expected ErrMissingProfile, got %v", err)
	}

	// Attach a profile and retry
	profile := createTestProfile(t, db, user.ID, "Science Track")
	if _, err := svc.UpdateSession(user.ID, session.ID, UpdateSessionInput{ProfileID: &profile.ID}); err != nil {
		t.Fatalf("failed to attach profile: %v", err)
	}

	result, err := svc.GenerateInitialRecommendation(context.Background(), user.ID, session.ID, 5)
	if err != nil {
		t.Fatalf("unexpected error after attaching profile: %v", err)
	}

	if result.Recommendation == nil || result.Recommendation.ProfileID != profile.ID {
		t.Errorf("recommendation not bound to the attached profile")
	}
	if !strings.HasPrefix(result.AssistantMessage.Content, "# Academic Recommendations Generated") {
		t.Errorf("welcome message header missing: %q", result.AssistantMessage.Content)
	}
	if result.AssistantMessage.Metadata["type"] != "recommendation_generated" {
		t.Errorf("message metadata = %v", result.AssistantMessage.Metadata)
	}
	if result.AssistantMessage.Metadata["recommendation_id"] != result.Recommendation.ID.String() {
		t.Errorf("metadata must reference the recommendation")
	}
}

func TestDeleteSessionCascades(t *testing.T) {
	searcher := &fakeSearcher{results: [][]model.RetrievedProgram{somePrograms(1)}}
	completer := &fakeCompleter{response: testAIResponse}
	db, svc := newConversationFixture(t, searcher, completer)
	user := createTestUser(t, db, "student@example.com")
	profile := createTestProfile(t, db, user.ID, "Science Track")
	session := createTestSession(t, db, user.ID, &profile.ID)

	if _, err := svc.GenerateInitialRecommendation(context.Background(), user.ID, session.ID, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.DeleteSession(user.ID, session.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var messages, recs int64
	db.Model(&model.ConversationMessage{}).Where("session_id = ?", session.ID).Count(&messages)
	db.Model(&model.Recommendation{}).Where("session_id = ?", session.ID).Count(&recs)
	if messages != 0 || recs != 0 {
		t.Errorf("cascade incomplete: %d messages, %d recommendations left", messages, recs)
	}
}

func TestUpdateSessionArchive(t *testing.T) {
	db, svc := newConversationFixture(t, &fakeSearcher{}, &fakeCompleter{})
	user := createTestUser(t, db, "student@example.com")
	session := createTestSession(t, db, user.ID, nil)

	status := model.SessionStatusArchived
	updated, err := svc.UpdateSession(user.ID, session.ID, UpdateSessionInput{Status: &status})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != model.SessionStatusArchived {
		t.Errorf("status = %s, want archived", updated.Status)
	}
}

func TestListSessionsFilters(t *testing.T) {
	db, svc := newConversationFixture(t, &fakeSearcher{}, &fakeCompleter{})
	user := createTestUser(t, db, "student@example.com")
	profile := createTestProfile(t, db, user.ID, "Science Track")

	createTestSession(t, db, user.ID, &profile.ID)
	createTestSession(t, db, user.ID, nil)

	list, err := svc.ListSessions(user.ID, ListSessionsInput{ProfileID: &profile.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list.Total != 1 {
		t.Errorf("profile filter: total = %d, want 1", list.Total)
	}

	all, err := svc.ListSessions(user.ID, ListSessionsInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if all.Total != 2 {
		t.Errorf("unfiltered: total = %d, want 2", all.Total)
	}
}
