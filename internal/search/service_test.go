package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/olivere/elastic/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/researchhub/unified-search/internal/query"
	"github.com/researchhub/unified-search/services"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := elastic.NewClient(
		elastic.SetURL(server.URL),
		elastic.SetSniff(false),
		elastic.SetHealthcheck(false),
	)
	require.NoError(t, err)

	return NewService(client, zap.NewNop(), Config{
		PaperIndex:  "paper",
		PostIndex:   "post",
		PersonIndex: "person",
		Popularity:  query.DefaultPopularityConfig,
	})
}

const paperHitBody = `{
	"took": 4,
	"hits": {
		"total": {"value": 1, "relation": "eq"},
		"hits": [{
			"_index": "paper",
			"_id": "42",
			"_score": 11.5,
			"_source": {
				"id": 42,
				"paper_title": "Deep Residual Learning for Image Recognition",
				"abstract": "Deeper neural networks are more difficult to train.",
				"doi": "10.1109/cvpr.2016.90",
				"citations": 180000,
				"hot_score_v2": 321.5,
				"created_date": "2016-06-27",
				"raw_authors": [
					{"first_name": "Kaiming", "last_name": "He", "full_name": "Kaiming He"}
				],
				"hubs": [
					{"id": 7, "name": "Computer Vision", "slug": "computer-vision"},
					{"id": 9, "name": "CVPR", "namespace": "journal"}
				]
			},
			"highlight": {
				"paper_title": ["<mark>Deep</mark> Residual Learning for Image Recognition"]
			}
		}]
	}
}`

func TestSearch_DOIShortCircuit(t *testing.T) {
	var requestBody string
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requestBody = string(body)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, paperHitBody)
	})

	resp := svc.Search(context.Background(), services.SearchQuery{
		Query: "https://doi.org/10.1109/CVPR.2016.90",
		Page:  1, PageSize: 10,
	})

	require.Equal(t, int64(1), resp.Count)
	require.Len(t, resp.Documents, 1)
	doc := resp.Documents[0]
	assert.Equal(t, "10.1109/cvpr.2016.90", doc.DOI)
	assert.Equal(t, "paper", doc.DocType)
	// The DOI path has no pagination links.
	assert.Nil(t, resp.Next)
	assert.Nil(t, resp.Previous)

	// Lookup searches every normalized variant and orders by recency.
	assert.Contains(t, requestBody, `"10.1109/cvpr.2016.90"`)
	assert.Contains(t, requestBody, `"doi.org/10.1109/cvpr.2016.90"`)
	assert.Contains(t, requestBody, `"https://doi.org/10.1109/cvpr.2016.90"`)
	assert.Contains(t, requestBody, `"_script"`)
	assert.Contains(t, requestBody, "updated_date")
	// Author-existence filter applies on the DOI path too.
	assert.Contains(t, requestBody, `"exists":{"field":"raw_authors.full_name"}`)
}

func TestSearch_DOIPathFallsThroughOnZeroHits(t *testing.T) {
	requests := 0
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Content-Type", "application/json")
		if requests == 1 {
			io.WriteString(w, `{"took":1,"hits":{"total":{"value":0,"relation":"eq"},"hits":[]}}`)
			return
		}
		io.WriteString(w, paperHitBody)
	})

	resp := svc.Search(context.Background(), services.SearchQuery{
		Query: "10.9999/unknown.doi",
		Page:  1, PageSize: 10,
	})

	assert.Equal(t, 2, requests, "zero DOI hits should fall through to the general path")
	assert.Equal(t, int64(1), resp.Count)
}

func TestSearch_GeneralPathRequestShape(t *testing.T) {
	var requestBody string
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requestBody = string(body)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, paperHitBody)
	})

	svc.Search(context.Background(), services.SearchQuery{
		Query: "residual learning",
		Page:  1, PageSize: 10,
	})

	// Popularity-boosted text query.
	assert.Contains(t, requestBody, `"function_score"`)
	assert.Contains(t, requestBody, `"hot_score_v2"`)
	// Mandatory author-existence filter.
	assert.Contains(t, requestBody, `"exists":{"field":"raw_authors.full_name"}`)
	assert.Contains(t, requestBody, `"exists":{"field":"authors.full_name"}`)
	// Highlighting, timeout, total tracking. encoding/json escapes angle
	// brackets, so the highlight tags appear in \u003c form on the wire.
	assert.Contains(t, requestBody, `"pre_tags":["\u003cmark\u003e"]`)
	assert.Contains(t, requestBody, `"post_tags":["\u003c/mark\u003e"]`)
	assert.Contains(t, requestBody, `"fragment_size":700`)
	assert.Contains(t, requestBody, `"timeout":"5s"`)
	assert.Contains(t, requestBody, `"track_total_hits":true`)
	// Aggregations.
	assert.Contains(t, requestBody, `"date_histogram"`)
	assert.Contains(t, requestBody, `"hubs.name"`)
}

func TestSearch_NewestSortPrecedesScore(t *testing.T) {
	var requestBody string
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requestBody = string(body)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, paperHitBody)
	})

	svc.Search(context.Background(), services.SearchQuery{
		Query: "residual learning",
		Page:  1, PageSize: 10,
		Sort: services.SortNewest,
	})

	created := strings.Index(requestBody, `"created_date":{"order":"desc"`)
	score := strings.Index(requestBody, `"_score":{"order":"desc"`)
	require.Greater(t, created, -1)
	require.Greater(t, score, -1)
	assert.Less(t, created, score)
}

func TestSearch_InvalidSortFallsBackToRelevance(t *testing.T) {
	var requestBody string
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requestBody = string(body)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, paperHitBody)
	})

	svc.Search(context.Background(), services.SearchQuery{
		Query: "residual learning",
		Page:  1, PageSize: 10,
		Sort: "upvoted",
	})

	assert.NotContains(t, requestBody, `"created_date":{"order":"desc"`)
	assert.Contains(t, requestBody, `"_score":{"order":"desc"`)
}

func TestSearch_NormalizesPaperHit(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, paperHitBody)
	})

	resp := svc.Search(context.Background(), services.SearchQuery{
		Query: "residual learning",
		Page:  1, PageSize: 10,
	})

	require.Len(t, resp.Documents, 1)
	doc := resp.Documents[0]
	assert.Equal(t, 42, doc.ID)
	assert.Equal(t, "Deep Residual Learning for Image Recognition", doc.Title)
	assert.Equal(t, "<mark>Deep</mark> Residual Learning for Image Recognition", doc.Snippet)
	assert.Equal(t, "title", doc.MatchedField)
	assert.Equal(t, 11.5, doc.Score)
	assert.Equal(t, 321.5, doc.HotScore)
	require.Len(t, doc.Authors, 1)
	assert.Equal(t, "Kaiming He", doc.Authors[0].FullName)
	require.Len(t, doc.Hubs, 2)
	require.NotNil(t, doc.Journal)
	assert.Equal(t, "CVPR", *doc.Journal)
}

func TestSearch_FailureDegradesToEmptyResponse(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"search_phase_execution_exception"}`, http.StatusInternalServerError)
	})

	resp := svc.Search(context.Background(), services.SearchQuery{
		Query: "residual learning",
		Page:  1, PageSize: 10,
	})

	assert.Equal(t, int64(0), resp.Count)
	assert.Empty(t, resp.Documents)
	assert.Empty(t, resp.People)
}

func TestSearch_IncludePeopleQueriesPersonIndex(t *testing.T) {
	var paths []string
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(r.URL.Path, "person") {
			io.WriteString(w, `{
				"took": 2,
				"hits": {
					"total": {"value": 1, "relation": "eq"},
					"hits": [{
						"_index": "person",
						"_id": "7",
						"_score": 9.0,
						"_source": {"id": 7, "full_name": "Kaiming He", "headline": {"title": "Research Scientist"}},
						"highlight": {"full_name": ["<mark>Kaiming He</mark>"]}
					}]
				}
			}`)
			return
		}
		io.WriteString(w, paperHitBody)
	})

	resp := svc.Search(context.Background(), services.SearchQuery{
		Query: "kaiming he",
		Page:  1, PageSize: 10,
		IncludePeople: true,
	})

	require.Len(t, resp.People, 1)
	person := resp.People[0]
	assert.Equal(t, "Kaiming He", person.FullName)
	assert.Equal(t, "<mark>Kaiming He</mark>", person.Snippet)
	assert.Equal(t, "Research Scientist", person.Headline["title"])
	assert.Equal(t, int64(2), resp.Count, "count sums documents and people")

	require.Len(t, paths, 2)
	assert.Contains(t, paths[1], "person")
}

func TestSearch_PaginationLinks(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"took": 1,
			"hits": {"total": {"value": 25, "relation": "eq"}, "hits": []}
		}`)
	})

	resp := svc.Search(context.Background(), services.SearchQuery{
		Query:      "residual learning",
		Page:       2,
		PageSize:   10,
		RequestURL: "http://localhost/api/search?q=residual+learning&page=2",
	})

	require.NotNil(t, resp.Next)
	assert.Contains(t, *resp.Next, "page=3")
	require.NotNil(t, resp.Previous)
	assert.Contains(t, *resp.Previous, "page=1")
}

func TestSearch_NextLinkFollowsDocumentTotalOnly(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(r.URL.Path, "person") {
			io.WriteString(w, `{
				"took": 1,
				"hits": {"total": {"value": 30, "relation": "eq"}, "hits": []}
			}`)
			return
		}
		io.WriteString(w, `{
			"took": 1,
			"hits": {"total": {"value": 1, "relation": "eq"}, "hits": []}
		}`)
	})

	resp := svc.Search(context.Background(), services.SearchQuery{
		Query:         "kaiming he",
		Page:          1,
		PageSize:      10,
		IncludePeople: true,
		RequestURL:    "http://localhost/api/search?q=kaiming+he",
	})

	// People inflate the envelope count but the documents are exhausted,
	// so no next page exists.
	assert.Equal(t, int64(31), resp.Count)
	assert.Nil(t, resp.Next)
	assert.Nil(t, resp.Previous)
}

func TestSearch_Aggregations(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"took": 1,
			"hits": {"total": {"value": 2, "relation": "eq"}, "hits": []},
			"aggregations": {
				"years": {"buckets": [{"key_as_string": "2016", "key": 1451606400000, "doc_count": 2}]},
				"hubs": {"buckets": [{"key": "Computer Vision", "doc_count": 2}]},
				"content_types": {"buckets": [
					{"key": "paper_v3", "doc_count": 1},
					{"key": "post_v2", "doc_count": 1},
					{"key": "unrelated_index", "doc_count": 5}
				]}
			}
		}`)
	})

	resp := svc.Search(context.Background(), services.SearchQuery{
		Query: "residual learning",
		Page:  1, PageSize: 10,
	})

	require.Len(t, resp.Aggregations.Years, 1)
	assert.Equal(t, services.BucketCount{Key: "2016", Count: 2}, resp.Aggregations.Years[0])
	require.Len(t, resp.Aggregations.Hubs, 1)
	assert.Equal(t, "Computer Vision", resp.Aggregations.Hubs[0].Key)
	require.Len(t, resp.Aggregations.ContentTypes, 2)
	assert.Equal(t, "paper", resp.Aggregations.ContentTypes[0].Key)
	assert.Equal(t, "post", resp.Aggregations.ContentTypes[1].Key)
}

func TestNormalizeDocumentHit_PostFields(t *testing.T) {
	score := 3.5
	hit := &elastic.SearchHit{
		Index: "post_v2",
		Id:    "11",
		Score: &score,
		Source: json.RawMessage(`{
			"id": 11,
			"title": "Preprint review norms",
			"renderable_text": "How should preprints be reviewed?",
			"slug": "preprint-review-norms",
			"document_type": "DISCUSSION",
			"authors": [{"full_name": "Jane Roe"}]
		}`),
		Highlight: elastic.SearchHitHighlight{
			"renderable_text": []string{"How should <mark>preprints</mark> be reviewed?"},
		},
	}

	record, ok := normalizeDocumentHit(hit)
	require.True(t, ok)
	assert.Equal(t, "post", record.DocType)
	assert.Equal(t, "Preprint review norms", record.Title)
	assert.Equal(t, "content", record.MatchedField)
	assert.Equal(t, "preprint-review-norms", record.Slug)
	assert.Equal(t, "DISCUSSION", record.DocumentType)
	require.Len(t, record.Authors, 1)
	assert.Nil(t, record.Journal)
}

func TestNormalizeDocumentHit_MalformedSourceSkipped(t *testing.T) {
	hit := &elastic.SearchHit{Index: "paper", Source: json.RawMessage(`not json`)}
	_, ok := normalizeDocumentHit(hit)
	assert.False(t, ok)
}

func TestExtractHubs_MalformedEntriesSkipped(t *testing.T) {
	hubs := extractHubs([]interface{}{
		map[string]interface{}{"id": float64(1), "name": "Biology", "slug": "biology"},
		"not a hub",
		map[string]interface{}{"id": float64(2)}, // no name
		nil,
	})
	require.Len(t, hubs, 1)
	assert.Equal(t, "Biology", hubs[0].Name)
}

func TestJournalFromHubs(t *testing.T) {
	t.Run("first journal hub wins", func(t *testing.T) {
		got := journalFromHubs(extractHubs([]interface{}{
			map[string]interface{}{"id": float64(1), "name": "Biology"},
			map[string]interface{}{"id": float64(2), "name": "  Nature  ", "namespace": "journal"},
			map[string]interface{}{"id": float64(3), "name": "Science", "namespace": "journal"},
		}))
		require.NotNil(t, got)
		assert.Equal(t, "Nature", *got)
	})

	t.Run("blank journal name ignored", func(t *testing.T) {
		got := journalFromHubs(extractHubs([]interface{}{
			map[string]interface{}{"id": float64(2), "name": "   ", "namespace": "journal"},
		}))
		assert.Nil(t, got)
	})

	t.Run("no hubs", func(t *testing.T) {
		assert.Nil(t, journalFromHubs(nil))
	})
}

func TestBestSnippet_Priority(t *testing.T) {
	highlight := elastic.SearchHitHighlight{
		"abstract":        []string{"abstract fragment"},
		"renderable_text": []string{"content fragment"},
	}
	snippet, matched := bestSnippet(highlight)
	assert.Equal(t, "abstract fragment", snippet)
	assert.Equal(t, "abstract", matched)

	highlight["title"] = []string{"title fragment"}
	snippet, matched = bestSnippet(highlight)
	assert.Equal(t, "title fragment", snippet)
	assert.Equal(t, "title", matched)
}
