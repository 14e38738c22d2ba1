package services

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/siralabs/sira-api/model"
	"github.com/siralabs/sira-api/utils/cache"
)

// retrievalCacheTTL bounds how long a vector search result is reused
const retrievalCacheTTL = 10 * time.Minute

// ProgramSearcher runs a similarity search over the program index.
// An empty filter map means unconstrained semantic search.
type ProgramSearcher interface {
	Search(ctx context.Context, query string, filters map[string]interface{}, topK int) ([]model.RetrievedProgram, error)
}

// RetrievalService finds candidate programs for a profile with a staged
// constraint-relaxation fallback: full filters first, then without the
// budget filter, then pure semantic search.
type RetrievalService struct {
	searcher ProgramSearcher
	queries  *QueryService
	cache    *cache.RedisCache // optional, nil disables caching
}

// NewRetrievalService creates a new retrieval service. The cache may be nil.
func NewRetrievalService(searcher ProgramSearcher, queries *QueryService, redisCache *cache.RedisCache) *RetrievalService {
	return &RetrievalService{
		searcher: searcher,
		queries:  queries,
		cache:    redisCache,
	}
}

// Retrieve returns the candidate set for a profile together with the tier
// that produced it. Candidates keep the order the index returned them in.
// Returns ErrNoCandidatesFound when every tier comes back empty.
func (s *RetrievalService) Retrieve(ctx context.Context, profile *model.Profile, topK int) ([]model.RetrievedProgram, model.RetrievalTier, error) {
	if topK <= 0 {
		topK = 5
	}

	baseQuery := s.queries.ProfileToQuery(profile)
	enhancedQuery := s.queries.EnhanceQueryWithContext(baseQuery, profile)
	filters := s.queries.BuildMetadataFilters(profile)

	// Tier 1: full constraints
	programs, err := s.search(ctx, enhancedQuery, filters, topK)
	if err != nil {
		return nil, "", fmt.Errorf("full constraint search failed: %w", err)
	}
	if len(programs) > 0 {
		return programs, model.TierFullConstraints, nil
	}

	// Tier 2: drop the budget filter, keep the rest. Skipped when the
	// profile had no budget constraint to begin with.
	if _, hadBudget := filters["tuition_fee_mad"]; hadBudget {
		relaxed := make(map[string]interface{}, len(filters))
		for k, v := range filters {
			if k == "tuition_fee_mad" {
				continue
			}
			relaxed[k] = v
		}

		programs, err = s.search(ctx, enhancedQuery, relaxed, topK)
		if err != nil {
			return nil, "", fmt.Errorf("relaxed budget search failed: %w", err)
		}
		if len(programs) > 0 {
			log.Printf("[RAG] No results with full constraints, relaxed budget produced %d programs", len(programs))
			return programs, model.TierRelaxedBudget, nil
		}
	}

	// Tier 3: pure semantic search on the base query, no filters
	programs, err = s.search(ctx, baseQuery, nil, topK)
	if err != nil {
		return nil, "", fmt.Errorf("semantic search failed: %w", err)
	}
	if len(programs) > 0 {
		log.Printf("[RAG] Constraint filters exhausted, semantic-only search produced %d programs", len(programs))
		return programs, model.TierSemanticOnly, nil
	}

	return nil, "", ErrNoCandidatesFound
}

// search runs one index query with a best-effort cache in front of it
func (s *RetrievalService) search(ctx context.Context, query string, filters map[string]interface{}, topK int) ([]model.RetrievedProgram, error) {
	key := retrievalCacheKey(query, filters, topK)

	if s.cache != nil {
		var cached []model.RetrievedProgram
		if err := s.cache.GetJSON(ctx, key, &cached); err == nil {
			return cached, nil
		}
	}

	programs, err := s.searcher.Search(ctx, query, filters, topK)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, programs, retrievalCacheTTL); err != nil {
			log.Printf("[RAG] Failed to cache retrieval result: %v", err)
		}
	}

	return programs, nil
}

// retrievalCacheKey builds a stable cache key for one index query
func retrievalCacheKey(query string, filters map[string]interface{}, topK int) string {
	payload, _ := json.Marshal(struct {
		Query   string                 `json:"q"`
		Filters map[string]interface{} `json:"f,omitempty"`
		TopK    int                    `json:"k"`
	}{query, filters, topK})

	sum := sha1.Sum(payload)
	return "retrieval:" + hex.EncodeToString(sum[:])
}
