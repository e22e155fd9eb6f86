package services

import (
	"context"

	"github.com/researchhub/unified-search/model"
)

// Sort orders accepted by unified search. Unknown values silently fall
// back to relevance.
const (
	SortRelevance = "relevance"
	SortNewest    = "newest"
)

// SearchQuery is one unified search request.
type SearchQuery struct {
	Query    string `json:"query"`
	Page     int    `json:"page"`      // 1-based
	PageSize int    `json:"page_size"`
	Sort     string `json:"sort"`
	// IncludePeople additionally runs person search and fills the
	// envelope's people list.
	IncludePeople bool `json:"include_people"`
	// RequestURL, when set, is used to build next/previous pagination
	// links.
	RequestURL string `json:"-"`
}

// BucketCount is one aggregation bucket.
type BucketCount struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// Aggregations summarizes the full (unpaginated) match set.
type Aggregations struct {
	Years        []BucketCount `json:"years"`
	Hubs         []BucketCount `json:"hubs"`
	ContentTypes []BucketCount `json:"content_types"`
}

// SearchResponse is the unified search envelope.
type SearchResponse struct {
	Count           int64                `json:"count"`
	Next            *string              `json:"next"`
	Previous        *string              `json:"previous"`
	Documents       []model.ResultRecord `json:"documents"`
	People          []model.PersonRecord `json:"people"`
	Aggregations    Aggregations         `json:"aggregations"`
	ExecutionTimeMs float64              `json:"execution_time_ms"`
}

// SuggestQuery is one autocomplete request.
type SuggestQuery struct {
	Query    string   `json:"query"`
	Indexes  []string `json:"indexes"`
	Limit    int      `json:"limit"`
	Balanced bool     `json:"balanced"`
}

// SearchService executes unified document/person search.
type SearchService interface {
	Search(ctx context.Context, query SearchQuery) SearchResponse
	SearchPeople(ctx context.Context, query SearchQuery) []model.PersonRecord
}

// SuggestService executes multi-index autocomplete.
type SuggestService interface {
	Suggest(ctx context.Context, query SuggestQuery) ([]model.SuggestResult, error)
}
