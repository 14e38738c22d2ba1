package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/siralabs/sira-api/model"
	"github.com/siralabs/sira-api/services/mistral"
	"gorm.io/gorm"
)

// historyWindow caps how many prior messages ground a chat completion
const historyWindow = 10

// ConversationService manages chat sessions, their messages and the grounded
// conversational AI exchange. Sessions may exist without a profile; only
// recommendation generation requires one.
type ConversationService struct {
	db              *gorm.DB
	completer       ChatCompleter
	recommendations *RecommendationService
}

// NewConversationService creates a new conversation service
func NewConversationService(db *gorm.DB, completer ChatCompleter, recommendations *RecommendationService) *ConversationService {
	return &ConversationService{
		db:              db,
		completer:       completer,
		recommendations: recommendations,
	}
}

// CreateSessionInput carries optional session creation fields
type CreateSessionInput struct {
	ProfileID *uuid.UUID
	Title     string
}

// CreateSession creates a new conversation session. When no title is given
// one is derived from the profile name (or "General") and the current time.
func (s *ConversationService) CreateSession(userID uuid.UUID, input CreateSessionInput) (*model.ConversationSession, error) {
	profileName := "General"

	if input.ProfileID != nil {
		profile, err := findProfileForUser(s.db, *input.ProfileID, userID)
		if err != nil {
			return nil, err
		}
		profileName = profile.ProfileName
	}

	title := input.Title
	if title == "" {
		title = fmt.Sprintf("%s - %s", profileName, time.Now().UTC().Format("Jan 2, 2006 15:04"))
	}

	session := &model.ConversationSession{
		UserID:    userID,
		ProfileID: input.ProfileID,
		Title:     title,
		Status:    model.SessionStatusActive,
	}

	if err := s.db.Create(session).Error; err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	log.Printf("[Conversation] Created session %s for user %s", session.ID, userID)
	return session, nil
}

// SessionListItem is one session in the grouped listing
type SessionListItem struct {
	ID            uuid.UUID  `json:"id"`
	ProfileID     *uuid.UUID `json:"profile_id,omitempty"`
	ProfileName   *string    `json:"profile_name,omitempty"`
	Title         string     `json:"title"`
	Status        string     `json:"status"`
	LastMessage   *string    `json:"last_message,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	MessageCount  int64      `json:"message_count"`
}

// SessionGroup is one recency bucket of sessions
type SessionGroup struct {
	Period   string            `json:"period"`
	Sessions []SessionListItem `json:"sessions"`
}

// SessionList is the grouped session listing. Total counts every matched
// session, including those too old for any bucket.
type SessionList struct {
	Groups []SessionGroup `json:"sessions"`
	Total  int            `json:"total"`
}

// ListSessionsInput carries optional listing filters
type ListSessionsInput struct {
	ProfileID *uuid.UUID
	Status    *model.SessionStatus
	Limit     int
}

// ListSessions returns the user's sessions grouped into recency buckets
func (s *ConversationService) ListSessions(userID uuid.UUID, input ListSessionsInput) (*SessionList, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 50
	}

	query := s.db.
		Preload("Profile").
		Where("user_id = ?", userID).
		Order("last_message_at DESC NULLS LAST, created_at DESC").
		Limit(limit)

	if input.ProfileID != nil {
		query = query.Where("profile_id = ?", *input.ProfileID)
	}
	if input.Status != nil {
		query = query.Where("status = ?", *input.Status)
	}

	var sessions []model.ConversationSession
	if err := query.Find(&sessions).Error; err != nil {
		return nil, err
	}

	items := make([]SessionListItem, 0, len(sessions))
	for _, session := range sessions {
		item := SessionListItem{
			ID:            session.ID,
			ProfileID:     session.ProfileID,
			Title:         session.Title,
			Status:        string(session.Status),
			LastMessageAt: session.LastMessageAt,
			CreatedAt:     session.CreatedAt,
		}

		if session.Profile != nil {
			name := session.Profile.ProfileName
			item.ProfileName = &name
		}

		s.db.Model(&model.ConversationMessage{}).
			Where("session_id = ?", session.ID).
			Count(&item.MessageCount)

		var lastMsg model.ConversationMessage
		err := s.db.
			Where("session_id = ?", session.ID).
			Order("created_at DESC").
			First(&lastMsg).Error
		if err == nil {
			preview := lastMsg.Content
			if len(preview) > 100 {
				preview = preview[:100]
			}
			item.LastMessage = &preview
		}

		items = append(items, item)
	}

	return &SessionList{
		Groups: GroupSessionsByPeriod(items, time.Now().UTC()),
		Total:  len(items),
	}, nil
}

// GroupSessionsByPeriod buckets sessions into Today, Yesterday, Last 7 days
// and Last month using day-boundary cutoffs relative to now. Sessions older
// than the last cutoff are silently excluded. The grouping timestamp is the
// last message time, falling back to creation time.
func GroupSessionsByPeriod(items []SessionListItem, now time.Time) []SessionGroup {
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	yesterdayStart := todayStart.AddDate(0, 0, -1)
	weekAgo := todayStart.AddDate(0, 0, -7)
	monthAgo := todayStart.AddDate(0, 0, -30)

	groups := []SessionGroup{
		{Period: "Today", Sessions: []SessionListItem{}},
		{Period: "Yesterday", Sessions: []SessionListItem{}},
		{Period: "Last 7 days", Sessions: []SessionListItem{}},
		{Period: "Last month", Sessions: []SessionListItem{}},
	}

	for _, item := range items {
		ts := item.CreatedAt
		if item.LastMessageAt != nil {
			ts = *item.LastMessageAt
		}

		switch {
		case !ts.Before(todayStart):
			groups[0].Sessions = append(groups[0].Sessions, item)
		case !ts.Before(yesterdayStart):
			groups[1].Sessions = append(groups[1].Sessions, item)
		case !ts.Before(weekAgo):
			groups[2].Sessions = append(groups[2].Sessions, item)
		case !ts.Before(monthAgo):
			groups[3].Sessions = append(groups[3].Sessions, item)
		}
	}

	return groups
}

// GetSession returns a session with its full ordered message history
func (s *ConversationService) GetSession(userID, sessionID uuid.UUID) (*model.ConversationSession, []model.ConversationMessage, error) {
	session, err := findSessionForUser(s.db, sessionID, userID)
	if err != nil {
		return nil, nil, err
	}

	var messages []model.ConversationMessage
	err = s.db.
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, nil, err
	}

	return session, messages, nil
}

// UpdateSessionInput is a typed patch; nil fields are left untouched
type UpdateSessionInput struct {
	Title     *string
	Status    *model.SessionStatus
	ProfileID *uuid.UUID
}

// UpdateSession applies a partial update. Attaching a profile verifies
// existence and ownership first; an attached profile can also be replaced.
func (s *ConversationService) UpdateSession(userID, sessionID uuid.UUID, input UpdateSessionInput) (*model.ConversationSession, error) {
	session, err := findSessionForUser(s.db, sessionID, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.Title != nil {
		updates["title"] = *input.Title
		session.Title = *input.Title
	}
	if input.Status != nil {
		updates["status"] = *input.Status
		session.Status = *input.Status
	}
	if input.ProfileID != nil {
		if _, err := findProfileForUser(s.db, *input.ProfileID, userID); err != nil {
			return nil, err
		}
		updates["profile_id"] = *input.ProfileID
		session.ProfileID = input.ProfileID
		log.Printf("[Conversation] Attaching profile %s to session %s", *input.ProfileID, sessionID)
	}

	if len(updates) == 0 {
		return session, nil
	}

	if err := s.db.Model(&model.ConversationSession{}).Where("id = ?", sessionID).Updates(updates).Error; err != nil {
		return nil, err
	}

	return session, nil
}

// DeleteSession removes a session together with its messages and
// recommendations in one transaction
func (s *ConversationService) DeleteSession(userID, sessionID uuid.UUID) error {
	if _, err := findSessionForUser(s.db, sessionID, userID); err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&model.ConversationMessage{}).Error; err != nil {
			return err
		}
		if err := tx.Where("session_id = ?", sessionID).Delete(&model.Recommendation{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&model.ConversationSession{}, "id = ?", sessionID).Error; err != nil {
			return err
		}
		log.Printf("[Conversation] Deleted session %s", sessionID)
		return nil
	})
}

// MessagePair is the result of one chat exchange
type MessagePair struct {
	UserMessage      *model.ConversationMessage `json:"user_message"`
	AssistantMessage *model.ConversationMessage `json:"assistant_message"`
}

// SendMessage appends the user's message, generates a grounded AI reply and
// appends it. Chat exchanges never create recommendation rows. The AI reply
// is grounded on the session profile (when attached), the latest session
// recommendation and the last messages before the new one, oldest first.
func (s *ConversationService) SendMessage(ctx context.Context, userID, sessionID uuid.UUID, content string) (*MessagePair, error) {
	session, grounding, err := s.prepareExchange(userID, sessionID)
	if err != nil {
		return nil, err
	}

	userMessage, err := s.appendMessage(s.db, sessionID, model.MessageRoleUser, content, nil)
	if err != nil {
		return nil, err
	}

	messages := append(grounding, mistral.ChatMessage{Role: "user", Content: content})
	aiResponse, err := s.completer.Complete(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}

	assistantMessage, err := s.appendMessage(s.db, sessionID, model.MessageRoleAssistant, aiResponse, nil)
	if err != nil {
		return nil, err
	}

	log.Printf("[Conversation] Completed message exchange in session %s", session.ID)
	return &MessagePair{UserMessage: userMessage, AssistantMessage: assistantMessage}, nil
}

// SendMessageStream is the streaming variant of SendMessage. Deltas reach
// onChunk in arrival order; the assistant message is persisted only after
// the stream completes naturally.
func (s *ConversationService) SendMessageStream(ctx context.Context, userID, sessionID uuid.UUID, content string, onChunk func(delta string) error) (*MessagePair, error) {
	_, grounding, err := s.prepareExchange(userID, sessionID)
	if err != nil {
		return nil, err
	}

	userMessage, err := s.appendMessage(s.db, sessionID, model.MessageRoleUser, content, nil)
	if err != nil {
		return nil, err
	}

	messages := append(grounding, mistral.ChatMessage{Role: "user", Content: content})

	var full []byte
	err = s.completer.StreamComplete(ctx, messages, func(delta string) error {
		full = append(full, delta...)
		return onChunk(delta)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}

	assistantMessage, err := s.appendMessage(s.db, sessionID, model.MessageRoleAssistant, string(full), nil)
	if err != nil {
		return nil, err
	}

	return &MessagePair{UserMessage: userMessage, AssistantMessage: assistantMessage}, nil
}

// prepareExchange verifies ownership and builds the grounding transcript:
// system prompt plus the trailing history window.
func (s *ConversationService) prepareExchange(userID, sessionID uuid.UUID) (*model.ConversationSession, []mistral.ChatMessage, error) {
	session, err := findSessionForUser(s.db, sessionID, userID)
	if err != nil {
		return nil, nil, err
	}

	var profile *model.Profile
	if session.ProfileID != nil {
		profile, err = findProfileForUser(s.db, *session.ProfileID, userID)
		if err != nil {
			return nil, nil, err
		}
	}

	var latestRec *model.Recommendation
	var rec model.Recommendation
	err = s.db.
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		First(&rec).Error
	if err == nil {
		latestRec = &rec
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}

	history, err := s.recentMessages(sessionID, historyWindow)
	if err != nil {
		return nil, nil, err
	}

	messages := []mistral.ChatMessage{
		{Role: "system", Content: buildChatSystemPrompt(profile, latestRec)},
	}
	for _, msg := range history {
		messages = append(messages, mistral.ChatMessage{Role: string(msg.Role), Content: msg.Content})
	}

	return session, messages, nil
}

// recentMessages returns the last n messages in chronological order
func (s *ConversationService) recentMessages(sessionID uuid.UUID, n int) ([]model.ConversationMessage, error) {
	var recent []model.ConversationMessage
	err := s.db.
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Limit(n).
		Find(&recent).Error
	if err != nil {
		return nil, err
	}

	// Reverse to chronological order
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}
	return recent, nil
}

// appendMessage inserts a message and bumps the session's last_message_at
func (s *ConversationService) appendMessage(db *gorm.DB, sessionID uuid.UUID, role model.MessageRole, content string, metadata model.JSONMap) (*model.ConversationMessage, error) {
	message := &model.ConversationMessage{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Metadata:  metadata,
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		now := time.Now().UTC()
		return tx.Model(&model.ConversationSession{}).
			Where("id = ?", sessionID).
			Updates(map[string]interface{}{"last_message_at": now, "updated_at": now}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}

	return message, nil
}

// buildChatSystemPrompt assembles the context-aware advisor prompt from the
// profile and the latest recommendation, both optional
func buildChatSystemPrompt(profile *model.Profile, rec *model.Recommendation) string {
	var b strings.Builder

	b.WriteString(`You are an expert academic advisor AI assistant helping students find and understand academic programs.

Your role:
- Answer questions about academic programs and recommendations
- Provide detailed information about admission requirements, costs, and difficulty
- Help students make informed decisions
- Use markdown formatting for clarity

Guidelines:
- Be encouraging and supportive
- Provide specific, actionable advice
- Reference the student's profile when relevant
- If asked about programs not in the recommendations, acknowledge this and focus on what you know
`)

	if profile != nil {
		b.WriteString("\n\n**Student Profile:**\n")
		fmt.Fprintf(&b, "- Name: %s\n", profile.ProfileName)

		if ar := profile.AcademicRecord; ar != nil {
			if ar.CurrentStatus != "" {
				fmt.Fprintf(&b, "- Current Status: %s\n", ar.CurrentStatus)
			}
			if ar.CurrentField != "" {
				fmt.Fprintf(&b, "- Field of Study: %s\n", ar.CurrentField)
			}
			if ar.GPA != nil {
				fmt.Fprintf(&b, "- GPA: %g/20\n", *ar.GPA)
			}
			if ar.CurrentInstitution != "" {
				fmt.Fprintf(&b, "- Current Institution: %s\n", ar.CurrentInstitution)
			}
		}

		if prefs := profile.Preferences; prefs != nil {
			if prefs.BudgetRangeMax != nil {
				fmt.Fprintf(&b, "- Budget: Up to %.0f MAD/year\n", *prefs.BudgetRangeMax)
			}
			if prefs.GeographicPreference != "" {
				fmt.Fprintf(&b, "- Preferred Location: %s\n", prefs.GeographicPreference)
			}
			if prefs.CareerGoals != "" {
				fmt.Fprintf(&b, "- Career Goals: %s\n", prefs.CareerGoals)
			}
			if len(prefs.FavoriteSubjects) > 0 {
				subjects := topN(prefs.FavoriteSubjects, 3)
				fmt.Fprintf(&b, "- Favorite Subjects: %s\n", strings.Join(subjects, ", "))
			}
		}
	}

	if rec != nil && rec.StructuredData != nil {
		structured := rec.StructuredData
		if len(structured.ProgramNames) > 0 {
			b.WriteString("\n\n**Generated Recommendations:**\n")
			fmt.Fprintf(&b, "You recommended %d programs:\n", len(structured.ProgramNames))
			for i, prog := range structured.ProgramNames {
				if i >= 5 {
					break
				}
				fmt.Fprintf(&b, "%d. %s", i+1, prog)
				if i < len(structured.MatchScores) {
					fmt.Fprintf(&b, " (Match: %g%%)", structured.MatchScores[i])
				}
				b.WriteString("\n")
			}
		}
	}

	b.WriteString("\n\nRespond in a friendly, professional tone using markdown formatting.")
	return b.String()
}

// RecommendationGeneration is the result of an in-session generation
type RecommendationGeneration struct {
	Recommendation   *model.Recommendation      `json:"recommendation"`
	AssistantMessage *model.ConversationMessage `json:"assistant_message"`
}

// GenerateInitialRecommendation runs the recommendation pipeline for the
// session's attached profile and posts a summary message into the
// conversation. Fails with ErrMissingProfile when no profile is attached.
func (s *ConversationService) GenerateInitialRecommendation(ctx context.Context, userID, sessionID uuid.UUID, topK int) (*RecommendationGeneration, error) {
	session, err := findSessionForUser(s.db, sessionID, userID)
	if err != nil {
		return nil, err
	}

	if session.ProfileID == nil {
		return nil, ErrMissingProfile
	}

	rec, err := s.recommendations.Generate(ctx, userID, GenerateInput{
		ProfileID: *session.ProfileID,
		SessionID: sessionID,
		TopK:      topK,
	})
	if err != nil {
		return nil, err
	}

	welcome := buildWelcomeMessage(rec.StructuredData)
	assistantMessage, err := s.appendMessage(s.db, sessionID, model.MessageRoleAssistant, welcome, model.JSONMap{
		"type":              "recommendation_generated",
		"recommendation_id": rec.ID.String(),
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Conversation] Generated initial recommendation for session %s", sessionID)
	return &RecommendationGeneration{Recommendation: rec, AssistantMessage: assistantMessage}, nil
}

// buildWelcomeMessage summarizes up to five recommended programs with match
// scores. Degrades gracefully when structured data is absent.
func buildWelcomeMessage(structured *model.StructuredData) string {
	var programs []string
	var scores []float64
	if structured != nil {
		programs = structured.ProgramNames
		scores = structured.MatchScores
	}
	if len(programs) > 5 {
		programs = programs[:5]
	}

	var b strings.Builder
	b.WriteString("# Academic Recommendations Generated\n\n")
	fmt.Fprintf(&b, "I've analyzed your profile and found **%d** programs that match your goals.\n\n", len(programs))
	b.WriteString("**Top Recommendations:**\n")

	for i, prog := range programs {
		match := "N/A"
		if i < len(scores) {
			match = fmt.Sprintf("%g", scores[i])
		}
		fmt.Fprintf(&b, "\n%d. **%s** (Match: %s%%)", i+1, prog, match)
	}

	b.WriteString("\n\nFeel free to ask me any questions about these programs, admission requirements, costs, or anything else!")
	return b.String()
}
