package services

import (
	"encoding/json"
	"strings"

	"github.com/siralabs/sira-api/model"
)

// ExtractStructuredData parses the machine-readable JSON block out of an AI
// response. The block is expected in a fenced segment:
//
//	```json
//	{ "match_scores": [...], "program_names": [...], ... }
//	```
//
// Extraction failure is never an error: an absent or unparsable block yields
// nil and the caller degrades to the prose response alone.
func ExtractStructuredData(response string) *model.StructuredData {
	raw := extractFencedJSON(response)
	if raw == "" {
		return nil
	}

	var data model.StructuredData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil
	}

	return &data
}

// extractFencedJSON returns the contents of the first ```json fence, or an
// empty string when no complete fence exists
func extractFencedJSON(text string) string {
	const startMarker = "```json"

	start := strings.Index(text, startMarker)
	if start == -1 {
		return ""
	}
	start += len(startMarker)

	end := strings.Index(text[start:], "```")
	if end == -1 {
		return ""
	}

	return strings.TrimSpace(text[start : start+end])
}
