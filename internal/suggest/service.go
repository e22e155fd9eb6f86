// Package suggest merges autocomplete candidates from the local
// completion suggesters and the OpenAlex API into one weighted,
// DOI-deduplicated ranking.
package suggest

import (
	"context"
	"sort"
	"strings"

	"github.com/olivere/elastic/v7"
	"go.uber.org/zap"

	"github.com/researchhub/unified-search/internal/doiutil"
	errs "github.com/researchhub/unified-search/internal/errors"
	"github.com/researchhub/unified-search/internal/openalex"
	"github.com/researchhub/unified-search/model"
	"github.com/researchhub/unified-search/services"
)

const (
	defaultLimit = 10

	// optionsPerSuggestion caps how many completion options are taken
	// from each suggester response.
	optionsPerSuggestion = 3

	// doiMatchScore forces exact DOI matches to the top of the list.
	doiMatchScore = 1000.0

	exactNameMatchBonus   = 5.0
	partialNameMatchBonus = 2.0

	// balancedMinPerType is the per-entity-type quota in balanced mode.
	balancedMinPerType = 2
)

// typeWeights ensures fair representation across entity types: hubs
// (communities) first, then users and authors, then papers, then posts.
var typeWeights = map[string]float64{
	model.EntityHub:    3.0,
	model.EntityPaper:  2.0,
	model.EntityUser:   2.5,
	model.EntityPerson: 2.5,
	model.EntityPost:   1.0,
}

// indexOrder is the canonical ordering of the public index names.
var indexOrder = []string{"paper", "author", "user", "post", "hub"}

type indexEntry struct {
	esIndex      string
	suggestField string
	entityType   string
	// external marks indices that also query OpenAlex.
	external  bool
	transform func(elastic.SearchSuggestionOption) model.SuggestResult
}

// Config carries the concrete index names behind the public ones.
type Config struct {
	PaperIndex  string
	PostIndex   string
	PersonIndex string
	UserIndex   string
	HubIndex    string
}

// Service implements multi-source autocomplete.
type Service struct {
	client   *elastic.Client
	openAlex *openalex.Client
	logger   *zap.Logger
	config   Config
	indexes  map[string]indexEntry
}

// NewService creates a suggest service.
func NewService(client *elastic.Client, openAlex *openalex.Client, logger *zap.Logger, config Config) *Service {
	return &Service{
		client:   client,
		openAlex: openAlex,
		logger:   logger,
		config:   config,
		indexes: map[string]indexEntry{
			"paper": {
				esIndex:      config.PaperIndex,
				suggestField: "suggestion_phrases",
				entityType:   model.EntityPaper,
				external:     true,
				transform:    transformPaperOption,
			},
			"author": {
				esIndex:      config.PersonIndex,
				suggestField: "suggestion_phrases",
				entityType:   model.EntityPerson,
				transform:    transformPersonOption,
			},
			"user": {
				esIndex:      config.UserIndex,
				suggestField: "full_name_suggest",
				entityType:   model.EntityUser,
				transform:    transformUserOption,
			},
			"post": {
				esIndex:      config.PostIndex,
				suggestField: "suggestion_phrases",
				entityType:   model.EntityPost,
				transform:    transformPostOption,
			},
			"hub": {
				esIndex:      config.HubIndex,
				suggestField: "name_suggest",
				entityType:   model.EntityHub,
				transform:    transformHubOption,
			},
		},
	}
}

// ValidIndexNames returns the accepted public index names in canonical
// order.
func (s *Service) ValidIndexNames() []string {
	return append([]string(nil), indexOrder...)
}

// Suggest runs autocomplete for the given query. It returns a
// validation error for a missing query or unknown index names; engine
// and OpenAlex failures degrade per index instead of failing the call.
func (s *Service) Suggest(ctx context.Context, q services.SuggestQuery) ([]model.SuggestResult, error) {
	if q.Query == "" {
		return nil, errs.ErrMissingQuery
	}

	indexes := q.Indexes
	if len(indexes) == 0 {
		indexes = []string{"paper"}
	}
	var invalid []string
	for _, name := range indexes {
		if _, ok := s.indexes[name]; !ok {
			invalid = append(invalid, name)
		}
	}
	if len(invalid) > 0 {
		return nil, errs.NewInvalidIndexError(invalid, s.ValidIndexNames())
	}

	limit := q.Limit
	if limit < 1 {
		limit = defaultLimit
	}

	// DOI-shaped queries get a dedicated exact-lookup path; zero hits
	// fall back to the general path for the same string.
	if doiutil.IsDOI(q.Query) {
		if results := s.suggestByDOI(ctx, q.Query, limit); len(results) > 0 {
			return results, nil
		}
	}

	resultsByType := make(map[string][]model.SuggestResult)
	var typeOrder []string

	for _, name := range indexes {
		entry := s.indexes[name]

		local := s.localSuggestions(ctx, q.Query, entry)

		if name == "paper" {
			// Local results are deduplicated before OpenAlex results so
			// in-platform data always wins DOI collisions.
			var external []model.SuggestResult
			if entry.external && s.openAlex != nil {
				external = s.openAlexSuggestions(ctx, q.Query)
			}
			if _, exists := resultsByType[model.EntityPaper]; !exists {
				typeOrder = append(typeOrder, model.EntityPaper)
			}
			resultsByType[model.EntityPaper] = dedupeByDOI(local, external)
			continue
		}

		sortByScore(local)
		if len(local) > 0 {
			entityType := local[0].EntityType
			if _, exists := resultsByType[entityType]; !exists {
				typeOrder = append(typeOrder, entityType)
			}
			resultsByType[entityType] = local
		}
	}

	for entityType, results := range resultsByType {
		applyTypeWeight(entityType, results, q.Query)
	}

	merged := combineResults(resultsByType, typeOrder, q.Balanced, limit)
	sortByScore(merged)
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

func (s *Service) localSuggestions(ctx context.Context, queryString string, entry indexEntry) []model.SuggestResult {
	suggester := elastic.NewCompletionSuggester("suggestions").
		Text(queryString).
		Field(entry.suggestField)

	result, err := s.client.Search(entry.esIndex).
		Suggester(suggester).
		Size(0).
		Do(ctx)
	if err != nil {
		s.logger.Warn("completion suggester failed",
			zap.String("index", entry.esIndex),
			zap.String("query", queryString),
			zap.Error(err))
		return nil
	}

	var results []model.SuggestResult
	for _, suggestion := range result.Suggest["suggestions"] {
		options := suggestion.Options
		if len(options) > optionsPerSuggestion {
			options = options[:optionsPerSuggestion]
		}
		for _, option := range options {
			results = append(results, entry.transform(option))
		}
	}
	return results
}

func (s *Service) openAlexSuggestions(ctx context.Context, queryString string) []model.SuggestResult {
	resp, err := s.openAlex.AutocompleteWorks(ctx, queryString)
	if err != nil {
		s.logger.Warn("OpenAlex autocomplete failed",
			zap.String("query", queryString),
			zap.Error(err))
		return nil
	}

	var results []model.SuggestResult
	for _, entry := range resp.Results {
		// Entries with no external ID carry no DOI and cannot be
		// deduplicated against local papers.
		if entry.ExternalID == "" {
			continue
		}
		results = append(results, transformOpenAlexResult(entry))
	}
	return results
}

func (s *Service) suggestByDOI(ctx context.Context, queryString string, limit int) []model.SuggestResult {
	normalized, ok := doiutil.Normalize(queryString)
	if !ok {
		return nil
	}
	variants := doiutil.Variants(normalized)

	local := s.doiLookupLocal(ctx, variants, limit)
	var external []model.SuggestResult
	if s.openAlex != nil {
		if work, err := s.openAlex.GetWorkByDOI(ctx, normalized); err != nil {
			s.logger.Warn("OpenAlex DOI lookup failed",
				zap.String("doi", normalized),
				zap.Error(err))
		} else {
			external = append(external, transformOpenAlexWork(work))
		}
	}

	results := dedupeByDOI(local, external)
	for i := range results {
		if doiMatchesVariant(results[i].DOI, variants) {
			results[i].Score = doiMatchScore
		}
	}
	sortByScore(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func (s *Service) doiLookupLocal(ctx context.Context, variants []string, limit int) []model.SuggestResult {
	values := make([]interface{}, len(variants))
	lookup := elastic.NewBoolQuery()
	for i, v := range variants {
		values[i] = v
		lookup.Should(elastic.NewMatchPhraseQuery("doi", v))
	}
	lookup.Should(elastic.NewTermsQuery("doi", values...)).
		MinimumNumberShouldMatch(1)

	result, err := s.client.Search(s.config.PaperIndex, s.config.PostIndex).
		Query(lookup).
		Size(limit).
		Do(ctx)
	if err != nil {
		s.logger.Warn("local DOI suggest lookup failed", zap.Error(err))
		return nil
	}

	var results []model.SuggestResult
	for _, hit := range result.Hits.Hits {
		results = append(results, transformPaperHit(hit))
	}
	return results
}

func doiMatchesVariant(doi string, variants []string) bool {
	if doi == "" {
		return false
	}
	for _, v := range variants {
		if strings.Contains(doi, v) || strings.Contains(v, doi) {
			return true
		}
	}
	return false
}

// dedupeByDOI keeps at most one result per normalized DOI, first-seen
// wins. The local slice is processed first so local data shadows
// external data on collisions. Results without a DOI pass through.
func dedupeByDOI(local, external []model.SuggestResult) []model.SuggestResult {
	seen := make(map[string]bool)
	var unique []model.SuggestResult

	for _, group := range [][]model.SuggestResult{local, external} {
		sortByScore(group)
		for _, result := range group {
			doi := result.NormalizedDOI()
			if doi == "" {
				unique = append(unique, result)
				continue
			}
			if seen[doi] {
				continue
			}
			seen[doi] = true
			unique = append(unique, result)
		}
	}
	return unique
}

// applyTypeWeight multiplies each result's score by the entity-type
// weight, with an extra name-match bonus for users and persons.
func applyTypeWeight(entityType string, results []model.SuggestResult, queryString string) {
	weight, ok := typeWeights[entityType]
	if !ok {
		weight = 1.0
	}
	applyNameBonus := entityType == model.EntityUser || entityType == model.EntityPerson
	lowerQuery := strings.ToLower(queryString)

	for i := range results {
		base := results[i].Score * weight
		if applyNameBonus {
			lowerName := strings.ToLower(results[i].DisplayName)
			switch {
			case lowerName == lowerQuery:
				base *= exactNameMatchBonus
				results[i].BoostTag = "exact_name_match"
			case strings.Contains(lowerName, lowerQuery) || strings.Contains(lowerQuery, lowerName):
				base *= partialNameMatchBonus
				results[i].BoostTag = "partial_name_match"
			}
		}
		results[i].Score = base
	}
}

// combineResults merges per-type lists. Balanced mode guarantees a
// minimum quota per entity type before filling the rest by score.
func combineResults(resultsByType map[string][]model.SuggestResult, typeOrder []string, balanced bool, limit int) []model.SuggestResult {
	var merged []model.SuggestResult

	if balanced && len(resultsByType) > 1 {
		remaining := make(map[string][]model.SuggestResult, len(resultsByType))
		for _, entityType := range typeOrder {
			results := resultsByType[entityType]
			quota := balancedMinPerType
			if quota > len(results) {
				quota = len(results)
			}
			merged = append(merged, results[:quota]...)
			remaining[entityType] = results[quota:]
		}

		slots := limit - len(merged)
		if slots > 0 {
			var rest []model.SuggestResult
			for _, entityType := range typeOrder {
				rest = append(rest, remaining[entityType]...)
			}
			sortByScore(rest)
			if len(rest) > slots {
				rest = rest[:slots]
			}
			merged = append(merged, rest...)
		}
		return merged
	}

	for _, entityType := range typeOrder {
		merged = append(merged, resultsByType[entityType]...)
	}
	return merged
}

func sortByScore(results []model.SuggestResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}
