package suggest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/olivere/elastic/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	errs "github.com/researchhub/unified-search/internal/errors"
	"github.com/researchhub/unified-search/internal/openalex"
	"github.com/researchhub/unified-search/model"
	"github.com/researchhub/unified-search/services"
)

func newTestSuggestService(t *testing.T, esHandler, oaHandler http.HandlerFunc) *Service {
	t.Helper()
	esServer := httptest.NewServer(esHandler)
	t.Cleanup(esServer.Close)
	oaServer := httptest.NewServer(oaHandler)
	t.Cleanup(oaServer.Close)

	client, err := elastic.NewClient(
		elastic.SetURL(esServer.URL),
		elastic.SetSniff(false),
		elastic.SetHealthcheck(false),
	)
	require.NoError(t, err)

	return NewService(
		client,
		openalex.NewClient(openalex.WithBaseURL(oaServer.URL)),
		zap.NewNop(),
		Config{
			PaperIndex:  "paper",
			PostIndex:   "post",
			PersonIndex: "person",
			UserIndex:   "user",
			HubIndex:    "hub",
		},
	)
}

func suggestionBody(options string) string {
	return `{
		"took": 1,
		"hits": {"total": {"value": 0, "relation": "eq"}, "hits": []},
		"suggest": {
			"suggestions": [{"text": "q", "offset": 0, "length": 1, "options": [` + options + `]}]
		}
	}`
}

func emptyOpenAlex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, `{"results": []}`)
}

func TestSuggest_MissingQuery(t *testing.T) {
	svc := newTestSuggestService(t, func(w http.ResponseWriter, r *http.Request) {}, emptyOpenAlex)
	_, err := svc.Suggest(context.Background(), services.SuggestQuery{})
	assert.ErrorIs(t, err, errs.ErrMissingQuery)
}

func TestSuggest_InvalidIndexListsValidNames(t *testing.T) {
	svc := newTestSuggestService(t, func(w http.ResponseWriter, r *http.Request) {}, emptyOpenAlex)
	_, err := svc.Suggest(context.Background(), services.SuggestQuery{
		Query:   "biology",
		Indexes: []string{"paper", "journal"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrInvalidIndex))
	assert.Contains(t, err.Error(), "journal")
	assert.Contains(t, err.Error(), "paper, author, user, post, hub")
}

func TestSuggest_PaperDedupLocalWins(t *testing.T) {
	svc := newTestSuggestService(t,
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, suggestionBody(`{
				"text": "deep residual",
				"_id": "42", "_index": "paper", "_score": 5.0,
				"_source": {
					"id": 42,
					"paper_title": "Deep Residual Learning",
					"doi": "10.1109/cvpr.2016.90",
					"citations": 180000,
					"raw_authors": [{"full_name": "Kaiming He"}]
				}
			}`))
		},
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"results": [{
				"id": "https://openalex.org/W123",
				"display_name": "Deep Residual Learning",
				"hint": "Kaiming He, Xiangyu Zhang",
				"external_id": "https://doi.org/10.1109/CVPR.2016.90",
				"cited_by_count": 180000
			}]}`)
		},
	)

	results, err := svc.Suggest(context.Background(), services.SuggestQuery{
		Query:   "deep residual",
		Indexes: []string{"paper"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1, "same DOI from both sources keeps exactly one result")
	assert.Equal(t, model.SourceResearchHub, results[0].Source)
	assert.Equal(t, 42, results[0].ID)
}

func TestSuggest_OpenAlexEntriesWithoutDOISkipped(t *testing.T) {
	svc := newTestSuggestService(t,
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, suggestionBody(``))
		},
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"results": [
				{"id": "https://openalex.org/W1", "display_name": "Has DOI", "external_id": "https://doi.org/10.1/a"},
				{"id": "https://openalex.org/W2", "display_name": "No DOI"}
			]}`)
		},
	)

	results, err := svc.Suggest(context.Background(), services.SuggestQuery{
		Query:   "anything",
		Indexes: []string{"paper"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Has DOI", results[0].DisplayName)
}

func TestSuggest_TypeWeightsAndNameBonuses(t *testing.T) {
	t.Run("hub weight", func(t *testing.T) {
		results := []model.SuggestResult{
			{EntityType: model.EntityHub, DisplayName: "Biology", Score: 2.0},
		}
		applyTypeWeight(model.EntityHub, results, "bio")
		assert.Equal(t, 6.0, results[0].Score)
		assert.Empty(t, results[0].BoostTag)
	})

	t.Run("person exact name match", func(t *testing.T) {
		results := []model.SuggestResult{
			{EntityType: model.EntityPerson, DisplayName: "Marie Curie", Score: 4.0},
		}
		applyTypeWeight(model.EntityPerson, results, "marie curie")
		assert.Equal(t, 4.0*2.5*5.0, results[0].Score)
		assert.Equal(t, "exact_name_match", results[0].BoostTag)
	})

	t.Run("user partial name match", func(t *testing.T) {
		results := []model.SuggestResult{
			{EntityType: model.EntityUser, DisplayName: "Marie Curie", Score: 4.0},
		}
		applyTypeWeight(model.EntityUser, results, "marie")
		assert.Equal(t, 4.0*2.5*2.0, results[0].Score)
		assert.Equal(t, "partial_name_match", results[0].BoostTag)
	})

	t.Run("post standard weight", func(t *testing.T) {
		results := []model.SuggestResult{
			{EntityType: model.EntityPost, DisplayName: "Marie Curie", Score: 4.0},
		}
		applyTypeWeight(model.EntityPost, results, "marie")
		assert.Equal(t, 4.0, results[0].Score)
		assert.Empty(t, results[0].BoostTag)
	})
}

func TestSuggest_MergesAcrossIndexes(t *testing.T) {
	svc := newTestSuggestService(t,
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if strings.Contains(r.URL.Path, "hub") {
				io.WriteString(w, suggestionBody(`{
					"text": "bio", "_id": "3", "_index": "hub", "_score": 2.0,
					"_source": {"id": 3, "name": "Biology", "slug": "biology"}
				}`))
				return
			}
			io.WriteString(w, suggestionBody(`{
				"text": "bio", "_id": "42", "_index": "paper", "_score": 5.0,
				"_source": {"id": 42, "paper_title": "Biology of Aging", "doi": "10.1/bio"}
			}`))
		},
		emptyOpenAlex,
	)

	results, err := svc.Suggest(context.Background(), services.SuggestQuery{
		Query:   "bio",
		Indexes: []string{"paper", "hub"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	// paper: 5.0 * 2.0 = 10 outranks hub: 2.0 * 3.0 = 6.
	assert.Equal(t, model.EntityPaper, results[0].EntityType)
	assert.Equal(t, 10.0, results[0].Score)
	assert.Equal(t, model.EntityHub, results[1].EntityType)
	assert.Equal(t, 6.0, results[1].Score)
}

func TestSuggest_MalformedOptionYieldsPlaceholder(t *testing.T) {
	svc := newTestSuggestService(t,
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, suggestionBody(`{
				"text": "bio", "_id": "3", "_index": "hub", "_score": 2.0
			}`))
		},
		emptyOpenAlex,
	)

	results, err := svc.Suggest(context.Background(), services.SuggestQuery{
		Query:   "bio",
		Indexes: []string{"hub"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Error processing result", results[0].DisplayName)
	assert.Equal(t, model.EntityHub, results[0].EntityType)
	assert.InDelta(t, placeholderScore*3.0, results[0].Score, 1e-9)
}

func TestSuggest_DOIPathForcesScore(t *testing.T) {
	var esBody string
	svc := newTestSuggestService(t,
		func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			esBody = string(body)
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{
				"took": 1,
				"hits": {
					"total": {"value": 1, "relation": "eq"},
					"hits": [{
						"_index": "paper", "_id": "42", "_score": 1.2,
						"_source": {"id": 42, "paper_title": "Deep Residual Learning", "doi": "10.1109/cvpr.2016.90"}
					}]
				}
			}`)
		},
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{
				"id": "https://openalex.org/W123",
				"doi": "https://doi.org/10.1109/cvpr.2016.90",
				"display_name": "Deep Residual Learning",
				"cited_by_count": 180000
			}`)
		},
	)

	results, err := svc.Suggest(context.Background(), services.SuggestQuery{
		Query:   "10.1109/cvpr.2016.90",
		Indexes: []string{"paper"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1, "local and OpenAlex share the DOI, one survives")
	assert.Equal(t, model.SourceResearchHub, results[0].Source)
	assert.Equal(t, doiMatchScore, results[0].Score)

	// Lookup covers term and phrase matching over all variants.
	assert.Contains(t, esBody, `"match_phrase"`)
	assert.Contains(t, esBody, `"doi.org/10.1109/cvpr.2016.90"`)
}

func TestSuggest_DOIPathFallsBackWhenEmpty(t *testing.T) {
	esRequests := 0
	svc := newTestSuggestService(t,
		func(w http.ResponseWriter, r *http.Request) {
			esRequests++
			w.Header().Set("Content-Type", "application/json")
			if esRequests == 1 {
				io.WriteString(w, `{"took":1,"hits":{"total":{"value":0,"relation":"eq"},"hits":[]}}`)
				return
			}
			io.WriteString(w, suggestionBody(``))
		},
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if strings.Contains(r.URL.Path, "/works/") {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			io.WriteString(w, `{"results": []}`)
		},
	)

	results, err := svc.Suggest(context.Background(), services.SuggestQuery{
		Query:   "10.9999/nope",
		Indexes: []string{"paper"},
	})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 2, esRequests, "empty DOI path falls back to the general path")
}

func TestDedupeByDOI_LocalPriority(t *testing.T) {
	local := []model.SuggestResult{{EntityType: model.EntityPaper, ID: 1, Source: model.SourceResearchHub, Score: 2.0}}
	local[0].SetNormalizedDOI("10.1/x")
	external := []model.SuggestResult{{EntityType: model.EntityPaper, Source: model.SourceOpenAlex, Score: 9.0}}
	external[0].SetNormalizedDOI("10.1/x")

	unique := dedupeByDOI(local, external)
	require.Len(t, unique, 1)
	assert.Equal(t, model.SourceResearchHub, unique[0].Source,
		"local result wins the DOI collision even with a lower score")
}

func TestCombineResults_Balanced(t *testing.T) {
	resultsByType := map[string][]model.SuggestResult{
		model.EntityPaper: {
			{EntityType: model.EntityPaper, Score: 100}, {EntityType: model.EntityPaper, Score: 90},
			{EntityType: model.EntityPaper, Score: 80}, {EntityType: model.EntityPaper, Score: 70},
		},
		model.EntityHub: {
			{EntityType: model.EntityHub, Score: 5}, {EntityType: model.EntityHub, Score: 4},
			{EntityType: model.EntityHub, Score: 3},
		},
	}
	typeOrder := []string{model.EntityPaper, model.EntityHub}

	merged := combineResults(resultsByType, typeOrder, true, 6)
	require.Len(t, merged, 6)

	hubCount := 0
	for _, r := range merged {
		if r.EntityType == model.EntityHub {
			hubCount++
		}
	}
	// Balanced mode guarantees two hubs despite their low scores; the
	// remaining slots go to the highest-scored leftovers (papers).
	assert.Equal(t, 2, hubCount)
}

func TestSuggest_LimitTruncates(t *testing.T) {
	var options []string
	for i := 0; i < 5; i++ {
		src, _ := json.Marshal(map[string]interface{}{"id": i, "name": "Hub"})
		options = append(options, `{"text":"h","_id":"`+string(rune('0'+i))+`","_index":"hub","_score":2.0,"_source":`+string(src)+`}`)
	}

	svc := newTestSuggestService(t,
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, suggestionBody(strings.Join(options, ",")))
		},
		emptyOpenAlex,
	)

	results, err := svc.Suggest(context.Background(), services.SuggestQuery{
		Query:   "h",
		Indexes: []string{"hub"},
		Limit:   2,
	})
	require.NoError(t, err)
	// Three options survive the per-suggestion cap, limit trims to two.
	assert.Len(t, results, 2)
}
