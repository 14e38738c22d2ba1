package services

import (
	"fmt"
	"strings"

	"github.com/siralabs/sira-api/model"
)

// FallbackQuery is used when a profile carries no usable signal at all
const FallbackQuery = "academic programs suitable for students"

// statusPhrases maps academic status values to query fragments. Unknown
// statuses contribute nothing.
var statusPhrases = map[string]string{
	"high_school":     "for high school graduates",
	"undergrad":       "for undergraduate students",
	"career_switcher": "for career transition",
}

// allowedFilterLanguages are the only language values that become filters
var allowedFilterLanguages = map[string]bool{
	"French":  true,
	"English": true,
	"Arabic":  true,
}

// QueryService converts student profiles into semantic search queries and
// metadata filters. All methods are pure functions of the profile.
type QueryService struct{}

// NewQueryService creates a new query construction service
func NewQueryService() *QueryService {
	return &QueryService{}
}

// ProfileToQuery converts a student profile into a natural language query
// optimized for semantic search. Missing sections are skipped; a profile
// with no signal yields FallbackQuery.
func (s *QueryService) ProfileToQuery(profile *model.Profile) string {
	var parts []string

	if ar := profile.AcademicRecord; ar != nil {
		if ar.CurrentField != "" {
			parts = append(parts, fmt.Sprintf("Programs in %s", ar.CurrentField))
		}
		if phrase, ok := statusPhrases[ar.CurrentStatus]; ok {
			parts = append(parts, phrase)
		}
	}

	if prefs := profile.Preferences; prefs != nil {
		if len(prefs.FavoriteSubjects) > 0 {
			subjects := topN(prefs.FavoriteSubjects, 3)
			parts = append(parts, fmt.Sprintf("with focus on %s", strings.Join(subjects, ", ")))
		}
		if prefs.CareerGoals != "" {
			parts = append(parts, fmt.Sprintf("leading to careers in %s", prefs.CareerGoals))
		}
	}

	query := strings.Join(parts, " ")
	if query == "" {
		return FallbackQuery
	}
	return query
}

// BuildMetadataFilters derives vector search filters from the profile's hard
// constraints. Only explicitly present constraints produce filters; an empty
// map means unconstrained search.
func (s *QueryService) BuildMetadataFilters(profile *model.Profile) map[string]interface{} {
	filters := map[string]interface{}{}

	// Programs whose minimum GPA the student meets
	if ar := profile.AcademicRecord; ar != nil && ar.GPA != nil {
		filters["min_gpa"] = map[string]interface{}{"$lte": *ar.GPA}
	}

	if prefs := profile.Preferences; prefs != nil {
		if prefs.BudgetRangeMax != nil {
			filters["tuition_fee_mad"] = map[string]interface{}{"$lte": *prefs.BudgetRangeMax}
		}

		if prefs.GeographicPreference != "" {
			filters["location"] = map[string]interface{}{"$eq": prefs.GeographicPreference}
		}

		if ar := profile.AcademicRecord; ar != nil && allowedFilterLanguages[ar.LanguagePreference] {
			filters["language"] = map[string]interface{}{"$eq": ar.LanguagePreference}
		}
	}

	return filters
}

// EnhanceQueryWithContext appends soft-skill and hobby context to the base
// query. Filters are never affected by enhancement.
func (s *QueryService) EnhanceQueryWithContext(baseQuery string, profile *model.Profile) string {
	parts := []string{baseQuery}

	if prefs := profile.Preferences; prefs != nil {
		if len(prefs.SoftSkills) > 0 {
			skills := topN(prefs.SoftSkills, 2)
			parts = append(parts, fmt.Sprintf("Suitable for students with skills in %s.", strings.Join(skills, ", ")))
		}
		if len(prefs.Hobbies) > 0 {
			hobbies := topN(prefs.Hobbies, 2)
			parts = append(parts, fmt.Sprintf("Student interests include %s.", strings.Join(hobbies, ", ")))
		}
	}

	return strings.Join(parts, " ")
}

// topN returns at most n leading elements preserving order
func topN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
