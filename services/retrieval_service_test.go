package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"gorm.io/datatypes"

	"github.com/siralabs/sira-api/model"
)

// retrievalTestProfile carries every constraint so all three tiers differ
func retrievalTestProfile() *model.Profile {
	gpa := 15.0
	budget := 40000.0
	return &model.Profile{
		AcademicRecord: &model.AcademicRecord{
			CurrentStatus:      "undergrad",
			CurrentField:       "Engineering",
			GPA:                &gpa,
			LanguagePreference: "English",
		},
		Preferences: &model.StudentPreferences{
			FavoriteSubjects:     datatypes.NewJSONSlice([]string{"Math"}),
			SoftSkills:           datatypes.NewJSONSlice([]string{"teamwork"}),
			GeographicPreference: "Casablanca",
			BudgetRangeMax:       &budget,
			CareerGoals:          "robotics",
		},
	}
}

func TestRetrieveFullConstraints(t *testing.T) {
	searcher := &fakeSearcher{results: [][]model.RetrievedProgram{somePrograms(3)}}
	s := NewRetrievalService(searcher, NewQueryService(), nil)

	programs, tier, err := s.Retrieve(context.Background(), retrievalTestProfile(), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tier != model.TierFullConstraints {
		t.Errorf("tier = %s, want %s", tier, model.TierFullConstraints)
	}
	if len(programs) != 3 {
		t.Errorf("got %d programs, want 3", len(programs))
	}
	if searcher.calls != 1 {
		t.Errorf("expected a single search, got %d", searcher.calls)
	}

	// Filtered tiers search with the context-enhanced query
	if !strings.Contains(searcher.queries[0], "skills in teamwork") {
		t.Errorf("tier 1 should use the enhanced query: %q", searcher.queries[0])
	}
	if _, ok := searcher.filters[0]["tuition_fee_mad"]; !ok {
		t.Errorf("tier 1 should carry the budget filter: %v", searcher.filters[0])
	}
}

func TestRetrieveRelaxedBudget(t *testing.T) {
	searcher := &fakeSearcher{results: [][]model.RetrievedProgram{nil, somePrograms(2)}}
	s := NewRetrievalService(searcher, NewQueryService(), nil)

	programs, tier, err := s.Retrieve(context.Background(), retrievalTestProfile(), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tier != model.TierRelaxedBudget {
		t.Errorf("tier = %s, want %s", tier, model.TierRelaxedBudget)
	}
	if len(programs) != 2 {
		t.Errorf("got %d programs, want 2", len(programs))
	}

	relaxed := searcher.filters[1]
	if _, ok := relaxed["tuition_fee_mad"]; ok {
		t.Errorf("relaxed tier must drop the budget filter: %v", relaxed)
	}
	for _, key := range []string{"min_gpa", "location", "language"} {
		if _, ok := relaxed[key]; !ok {
			t.Errorf("relaxed tier must keep %s: %v", key, relaxed)
		}
	}
}

func TestRetrieveSemanticOnly(t *testing.T) {
	searcher := &fakeSearcher{results: [][]model.RetrievedProgram{nil, nil, somePrograms(1)}}
	queries := NewQueryService()
	s := NewRetrievalService(searcher, queries, nil)

	profile := retrievalTestProfile()
	programs, tier, err := s.Retrieve(context.Background(), profile, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tier != model.TierSemanticOnly {
		t.Errorf("tier = %s, want %s", tier, model.TierSemanticOnly)
	}
	if len(programs) != 1 {
		t.Errorf("got %d programs, want 1", len(programs))
	}

	// Semantic tier runs the base query without any filters
	if searcher.queries[2] != queries.ProfileToQuery(profile) {
		t.Errorf("semantic tier should use the base query, got %q", searcher.queries[2])
	}
	if searcher.filters[2] != nil {
		t.Errorf("semantic tier must be unfiltered: %v", searcher.filters[2])
	}
}

func TestRetrieveSkipsRelaxedWithoutBudget(t *testing.T) {
	searcher := &fakeSearcher{results: [][]model.RetrievedProgram{nil, somePrograms(1)}}
	s := NewRetrievalService(searcher, NewQueryService(), nil)

	profile := retrievalTestProfile()
	profile.Preferences.BudgetRangeMax = nil

	_, tier, err := s.Retrieve(context.Background(), profile, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tier != model.TierSemanticOnly {
		t.Errorf("tier = %s, want %s", tier, model.TierSemanticOnly)
	}
	if searcher.calls != 2 {
		t.Errorf("relaxed tier should be skipped without a budget filter, got %d calls", searcher.calls)
	}
}

func TestRetrieveNoCandidates(t *testing.T) {
	searcher := &fakeSearcher{}
	s := NewRetrievalService(searcher, NewQueryService(), nil)

	_, _, err := s.Retrieve(context.Background(), retrievalTestProfile(), 5)
	if !errors.Is(err, ErrNoCandidatesFound) {
		t.Errorf("expected ErrNoCandidatesFound, got %v", err)
	}
	if searcher.calls != 3 {
		t.Errorf("expected all three tiers attempted, got %d calls", searcher.calls)
	}
}

func TestRetrieveSearchError(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("index down")}
	s := NewRetrievalService(searcher, NewQueryService(), nil)

	_, _, err := s.Retrieve(context.Background(), retrievalTestProfile(), 5)
	if err == nil || errors.Is(err, ErrNoCandidatesFound) {
		t.Errorf("search failure must surface, got %v", err)
	}
}
