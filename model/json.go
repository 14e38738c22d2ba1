package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JSONMap is a custom type for storing JSON data as JSONB
type JSONMap map[string]interface{}

// Scan implements the sql.Scanner interface for reading from database
func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = JSONMap{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		if s, sok := value.(string); sok {
			bytes = []byte(s)
		} else {
			return errors.New("failed to unmarshal JSONMap value")
		}
	}

	if len(bytes) == 0 {
		*j = JSONMap{}
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Value implements the driver.Valuer interface for writing to database
func (j JSONMap) Value() (driver.Value, error) {
	if len(j) == 0 {
		return []byte("{}"), nil // Return empty JSON object instead of nil
	}
	return json.Marshal(j)
}

// RetrievedProgram is one candidate program returned by vector search,
// snapshotted onto a recommendation at generation time.
type RetrievedProgram struct {
	ID          string                 `json:"id"`
	University  string                 `json:"university"`
	ProgramName string                 `json:"program_name"`
	Score       float64                `json:"score"`
	Content     string                 `json:"content"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// RetrievedPrograms is a custom type for storing candidate snapshots as JSONB
type RetrievedPrograms []RetrievedProgram

// Scan implements the sql.Scanner interface for reading from database
func (r *RetrievedPrograms) Scan(value interface{}) error {
	if value == nil {
		*r = RetrievedPrograms{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		if s, sok := value.(string); sok {
			bytes = []byte(s)
		} else {
			return errors.New("failed to unmarshal RetrievedPrograms value")
		}
	}

	if len(bytes) == 0 {
		*r = RetrievedPrograms{}
		return nil
	}

	return json.Unmarshal(bytes, r)
}

// Value implements the driver.Valuer interface for writing to database
func (r RetrievedPrograms) Value() (driver.Value, error) {
	if len(r) == 0 {
		return []byte("[]"), nil // Return empty JSON array instead of nil
	}
	return json.Marshal(r)
}

// DifficultyList holds difficulty labels. Models emit these either as
// strings ("Hard") or bare numbers (7), so unmarshalling accepts both and
// keeps the numeric literal as its text.
type DifficultyList []string

// UnmarshalJSON implements the json.Unmarshaler interface
func (d *DifficultyList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	levels := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			levels = append(levels, s)
			continue
		}

		var n json.Number
		if err := json.Unmarshal(item, &n); err != nil {
			return errors.New("difficulty level must be a string or a number")
		}
		levels = append(levels, n.String())
	}

	*d = levels
	return nil
}

// StructuredData holds the machine-readable block parsed out of an AI
// response. All four arrays are index-aligned per program.
type StructuredData struct {
	MatchScores      []float64      `json:"match_scores"`
	ProgramNames     []string       `json:"program_names"`
	DifficultyLevels DifficultyList `json:"difficulty_levels"`
	TuitionFees      []float64      `json:"tuition_fees"`
}

// Scan implements the sql.Scanner interface for reading from database
func (s *StructuredData) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		if str, sok := value.(string); sok {
			bytes = []byte(str)
		} else {
			return errors.New("failed to unmarshal StructuredData value")
		}
	}

	if len(bytes) == 0 {
		return nil
	}

	return json.Unmarshal(bytes, s)
}

// Value implements the driver.Valuer interface for writing to database
func (s StructuredData) Value() (driver.Value, error) {
	return json.Marshal(s)
}
