package services

import (
	"fmt"
	"strings"

	"github.com/siralabs/sira-api/model"
)

// maxContextContentChars caps how much of a program description goes into
// the prompt and into the stored context snapshot
const maxContextContentChars = 500

// SystemPrompt is the fixed advisor instruction set. The trailing JSON block
// requirement is what the structured extractor parses later.
const SystemPrompt = `You are SIRA (Système Intelligent de Recommandation Académique), an expert academic advisor specializing in Moroccan and international university programs.

Your role is to provide highly personalized, data-driven academic orientation based on:
1. Student's academic profile (grades, interests, constraints)
2. Retrieved program data from the knowledge base

### YOUR CONSTRAINTS:
- Use ONLY the provided ACADEMIC_CONTEXT for specific university details
- Base all recommendations on actual data from the retrieved programs
- If student's grades are below typical requirements, suggest "Bridge" paths or accessible alternatives
- Be encouraging but realistic - if there's a clear mismatch (e.g., hates Math but wants Engineering), point it out constructively
- Always cite your sources: Mention specific university and program names from the context

### RESPONSE STRUCTURE:
Your response MUST follow this exact structure:

1. **Summary Analysis** (2-3 sentences)
   - Briefly analyze the student's academic strengths and interests
   - Highlight any notable patterns or concerns

2. **Top 3-5 Recommendations**
   For each recommendation, include:
   - **Program Name**: Full program title
   - **University**: Institution name
   - **Match Score**: Percentage (0-100%) based on alignment with profile
   - **Why it fits**: 2-3 sentences explaining the match
   - **Requirements**: Key admission requirements (GPA, subjects, tests)
   - **Tuition**: Annual cost in MAD
   - **Duration**: Program length

3. **The Roadmap** (Optional)
   - Brief 3-step timeline if applicable (e.g., Year 1-3: Bachelor, Year 4-5: Master)

4. **Visual Data** (REQUIRED - for Chart.js integration)
   At the end of your response, include EXACTLY this JSON block:
   ` + "```json" + `
   {
     "match_scores": [80, 75, 70],
     "program_names": ["Program 1", "Program 2", "Program 3"],
     "difficulty_levels": [7, 8, 6],
     "tuition_fees": [50000, 80000, 30000]
   }
   ` + "```" + `

### LANGUAGE:
- Respond in the student's preferred language (French/English/Arabic)
- Default to French if not specified

### IMPORTANT:
- Do NOT invent programs or universities not in the provided context
- If no good matches exist, be honest and suggest alternative paths
- Consider budget constraints seriously - don't recommend unaffordable programs without mentioning alternatives
`

// PromptService assembles the completion request sent to the AI model
type PromptService struct{}

// NewPromptService creates a new prompt assembly service
func NewPromptService() *PromptService {
	return &PromptService{}
}

// SystemPrompt returns the fixed advisor system prompt
func (s *PromptService) SystemPrompt() string {
	return SystemPrompt
}

// CreateUserPrompt builds the user prompt from the profile and the retrieved
// candidate programs
func (s *PromptService) CreateUserPrompt(profile *model.Profile, programs []model.RetrievedProgram) string {
	return fmt.Sprintf(`Please analyze the following student profile and provide personalized academic recommendations based on the retrieved program data.

### STUDENT PROFILE:
%s

### ACADEMIC CONTEXT (Retrieved Programs):
%s

### TASK:
Based on the student's profile and the retrieved programs above, provide your top 3-5 recommendations following the response structure specified in your system prompt. Remember to include the JSON data block at the end for visualization.
`, s.formatProfile(profile), s.formatContext(programs))
}

// formatProfile renders profile data into readable text, skipping absent
// sections entirely
func (s *PromptService) formatProfile(profile *model.Profile) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("**Profile Name:** %s", profile.ProfileName))
	parts = append(parts, fmt.Sprintf("**Status:** %s", profile.Status))

	if ar := profile.AcademicRecord; ar != nil {
		parts = append(parts, "\n**Academic Information:**")
		if ar.CurrentStatus != "" {
			parts = append(parts, fmt.Sprintf("- Current Status: %s", ar.CurrentStatus))
		}
		if ar.CurrentInstitution != "" {
			parts = append(parts, fmt.Sprintf("- Institution: %s", ar.CurrentInstitution))
		}
		if ar.CurrentField != "" {
			parts = append(parts, fmt.Sprintf("- Field of Study: %s", ar.CurrentField))
		}
		if ar.GPA != nil {
			parts = append(parts, fmt.Sprintf("- GPA: %g/20", *ar.GPA))
		}
		if ar.LanguagePreference != "" {
			parts = append(parts, fmt.Sprintf("- Language Preference: %s", ar.LanguagePreference))
		}

		if len(ar.SubjectGrades) > 0 {
			parts = append(parts, "\n**Subject Grades:**")
			for _, grade := range ar.SubjectGrades {
				parts = append(parts, fmt.Sprintf("  - %s: %g/20", grade.SubjectName, grade.Grade))
			}
		}
	}

	if prefs := profile.Preferences; prefs != nil {
		parts = append(parts, "\n**Interests & Preferences:**")
		if len(prefs.FavoriteSubjects) > 0 {
			parts = append(parts, fmt.Sprintf("- Favorite Subjects: %s", strings.Join(prefs.FavoriteSubjects, ", ")))
		}
		if len(prefs.DislikedSubjects) > 0 {
			parts = append(parts, fmt.Sprintf("- Disliked Subjects: %s", strings.Join(prefs.DislikedSubjects, ", ")))
		}
		if len(prefs.SoftSkills) > 0 {
			parts = append(parts, fmt.Sprintf("- Soft Skills: %s", strings.Join(prefs.SoftSkills, ", ")))
		}
		if len(prefs.Hobbies) > 0 {
			parts = append(parts, fmt.Sprintf("- Hobbies: %s", strings.Join(prefs.Hobbies, ", ")))
		}
		if prefs.CareerGoals != "" {
			parts = append(parts, fmt.Sprintf("- Career Goals: %s", prefs.CareerGoals))
		}

		parts = append(parts, "\n**Constraints:**")
		if prefs.GeographicPreference != "" {
			parts = append(parts, fmt.Sprintf("- Location Preference: %s", prefs.GeographicPreference))
		}
		if prefs.BudgetRangeMin != nil || prefs.BudgetRangeMax != nil {
			min := "0"
			if prefs.BudgetRangeMin != nil {
				min = fmt.Sprintf("%g", *prefs.BudgetRangeMin)
			}
			max := "unlimited"
			if prefs.BudgetRangeMax != nil {
				max = fmt.Sprintf("%g", *prefs.BudgetRangeMax)
			}
			parts = append(parts, fmt.Sprintf("- Budget Range: %s - %s MAD/year", min, max))
		}
	}

	return strings.Join(parts, "\n")
}

// formatContext renders the candidate programs into readable context
func (s *PromptService) formatContext(programs []model.RetrievedProgram) string {
	if len(programs) == 0 {
		return "No programs found matching the criteria."
	}

	var parts []string
	for idx, program := range programs {
		parts = append(parts, fmt.Sprintf("\n**Program %d:**", idx+1))
		parts = append(parts, fmt.Sprintf("- **University:** %s", program.University))
		parts = append(parts, fmt.Sprintf("- **Program Name:** %s", program.ProgramName))
		parts = append(parts, fmt.Sprintf("- **Relevance Score:** %.2f%%", program.Score*100))

		if meta := program.Metadata; meta != nil {
			if v, ok := meta["tuition_fee_mad"]; ok {
				parts = append(parts, fmt.Sprintf("- **Tuition:** %v MAD/year", v))
			}
			if v, ok := meta["min_gpa"]; ok {
				parts = append(parts, fmt.Sprintf("- **Minimum GPA:** %v/20", v))
			}
			if v, ok := meta["language"]; ok {
				parts = append(parts, fmt.Sprintf("- **Language:** %v", v))
			}
			if v, ok := meta["degree_type"]; ok {
				parts = append(parts, fmt.Sprintf("- **Degree Type:** %v", v))
			}
			if v, ok := meta["duration_years"]; ok {
				parts = append(parts, fmt.Sprintf("- **Duration:** %v years", v))
			}
			if v, ok := meta["field"]; ok {
				parts = append(parts, fmt.Sprintf("- **Field:** %v", v))
			}
		}

		if program.Content != "" {
			parts = append(parts, fmt.Sprintf("- **Description:** %s", TruncateContent(program.Content)))
		}
	}

	return strings.Join(parts, "\n")
}

// TruncateContent caps program description length for prompts and stored
// context snapshots
func TruncateContent(content string) string {
	if len(content) > maxContextContentChars {
		return content[:maxContextContentChars] + "..."
	}
	return content
}
