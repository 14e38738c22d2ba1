package services

import (
	"context"

	"github.com/siralabs/sira-api/model"
	"github.com/siralabs/sira-api/services/pinecone"
)

// PineconeSearcher adapts the Pinecone index client to the ProgramSearcher
// interface, mapping raw matches onto program candidates.
type PineconeSearcher struct {
	client *pinecone.Client
}

// NewPineconeSearcher creates a searcher backed by a Pinecone index
func NewPineconeSearcher(client *pinecone.Client) *PineconeSearcher {
	return &PineconeSearcher{client: client}
}

// Search implements ProgramSearcher
func (s *PineconeSearcher) Search(ctx context.Context, query string, filters map[string]interface{}, topK int) ([]model.RetrievedProgram, error) {
	matches, err := s.client.Query(ctx, query, filters, topK)
	if err != nil {
		return nil, err
	}

	programs := make([]model.RetrievedProgram, 0, len(matches))
	for _, m := range matches {
		programs = append(programs, model.RetrievedProgram{
			ID:          m.ID,
			University:  metadataString(m.Metadata, "university", "Unknown"),
			ProgramName: metadataString(m.Metadata, "program_name", "Unknown Program"),
			Score:       m.Score,
			Content:     metadataString(m.Metadata, "content", ""),
			Metadata:    m.Metadata,
		})
	}

	return programs, nil
}

// metadataString reads a string field from match metadata with a fallback
func metadataString(metadata map[string]interface{}, key, fallback string) string {
	if metadata == nil {
		return fallback
	}
	if v, ok := metadata[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
