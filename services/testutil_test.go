package services

import (
	"context"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/siralabs/sira-api/database"
	"github.com/siralabs/sira-api/model"
	"github.com/siralabs/sira-api/services/mistral"
)

// newTestDB opens an isolated in-memory database with the full schema
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

func createTestUser(t *testing.T, db *gorm.DB, email string) *model.User {
	t.Helper()

	user := &model.User{
		Email:        email,
		PasswordHash: "x",
		Name:         "Test User",
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// createTestProfile creates a profile with a full academic record and
// preference section
func createTestProfile(t *testing.T, db *gorm.DB, userID uuid.UUID, name string) *model.Profile {
	t.Helper()

	profile := &model.Profile{
		UserID:      userID,
		ProfileName: name,
		Status:      model.ProfileStatusActive,
	}
	if err := db.Create(profile).Error; err != nil {
		t.Fatalf("failed to create test profile: %v", err)
	}

	gpa := 15.5
	record := &model.AcademicRecord{
		ProfileID:          profile.ID,
		CurrentStatus:      "high_school",
		CurrentField:       "Science",
		GPA:                &gpa,
		LanguagePreference: "French",
	}
	if err := db.Create(record).Error; err != nil {
		t.Fatalf("failed to create test academic record: %v", err)
	}

	budget := 50000.0
	prefs := &model.StudentPreferences{
		ProfileID:            profile.ID,
		FavoriteSubjects:     datatypes.NewJSONSlice([]string{"Mathematics", "Physics"}),
		SoftSkills:           datatypes.NewJSONSlice([]string{"problem solving", "teamwork"}),
		Hobbies:              datatypes.NewJSONSlice([]string{"robotics"}),
		GeographicPreference: "Casablanca",
		BudgetRangeMax:       &budget,
		CareerGoals:          "software engineering",
	}
	if err := db.Create(prefs).Error; err != nil {
		t.Fatalf("failed to create test preferences: %v", err)
	}

	profile.AcademicRecord = record
	profile.Preferences = prefs
	return profile
}

func createTestSession(t *testing.T, db *gorm.DB, userID uuid.UUID, profileID *uuid.UUID) *model.ConversationSession {
	t.Helper()

	session := &model.ConversationSession{
		UserID:    userID,
		ProfileID: profileID,
		Title:     "Test Session",
		Status:    model.SessionStatusActive,
	}
	if err := db.Create(session).Error; err != nil {
		t.Fatalf("failed to create test session: %v", err)
	}
	return session
}

// fakeSearcher returns scripted result sets per call and records the
// arguments it was called with
type fakeSearcher struct {
	results [][]model.RetrievedProgram
	err     error

	calls   int
	queries []string
	filters []map[string]interface{}
}

func (f *fakeSearcher) Search(ctx context.Context, query string, filters map[string]interface{}, topK int) ([]model.RetrievedProgram, error) {
	f.queries = append(f.queries, query)
	f.filters = append(f.filters, filters)
	call := f.calls
	f.calls++

	if f.err != nil {
		return nil, f.err
	}
	if call < len(f.results) {
		return f.results[call], nil
	}
	return nil, nil
}

func somePrograms(n int) []model.RetrievedProgram {
	programs := make([]model.RetrievedProgram, 0, n)
	for i := 0; i < n; i++ {
		programs = append(programs, model.RetrievedProgram{
			ID:          uuid.New().String(),
			University:  "Test University",
			ProgramName: "Test Program",
			Score:       0.9,
			Content:     "A program description",
		})
	}
	return programs
}

// fakeCompleter scripts completion results and records the transcripts it saw
type fakeCompleter struct {
	response string
	chunks   []string
	err      error
	// failAfter aborts a stream after delivering this many chunks (0 = all)
	failAfter int

	transcripts [][]mistral.ChatMessage
}

var errFakeCompletion = errors.New("model unavailable")

func (f *fakeCompleter) Complete(ctx context.Context, messages []mistral.ChatMessage) (string, error) {
	f.transcripts = append(f.transcripts, messages)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeCompleter) StreamComplete(ctx context.Context, messages []mistral.ChatMessage, onChunk func(delta string) error) error {
	f.transcripts = append(f.transcripts, messages)
	for i, chunk := range f.chunks {
		if f.err != nil && f.failAfter > 0 && i >= f.failAfter {
			return f.err
		}
		if err := onChunk(chunk); err != nil {
			return err
		}
	}
	if f.err != nil && f.failAfter == 0 {
		return f.err
	}
	return nil
}
