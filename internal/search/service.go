// Package search executes unified document and person search against
// OpenSearch and normalizes heterogeneous hits into one result schema.
package search

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/olivere/elastic/v7"
	"go.uber.org/zap"

	"github.com/researchhub/unified-search/internal/doiutil"
	"github.com/researchhub/unified-search/internal/query"
	"github.com/researchhub/unified-search/model"
	"github.com/researchhub/unified-search/services"
)

const (
	defaultPageSize = 10

	// Server-side query timeout. Timeouts surface as client errors and
	// degrade to an empty result set.
	queryTimeout = "5s"
)

// documentSourceFields is the source allow-list for document hits,
// keeping payloads bounded regardless of index mapping growth.
var documentSourceFields = []string{
	"id", "paper_title", "title", "abstract", "renderable_text",
	"raw_authors", "authors", "created_date", "paper_publish_date",
	"citations", "hubs", "doi", "slug", "hot_score_v2",
	"document_type", "unified_document_id",
}

var personSourceFields = []string{
	"id", "first_name", "last_name", "full_name",
	"profile_image", "headline", "description",
}

// Config carries the index names and popularity settings the service
// searches with.
type Config struct {
	PaperIndex  string
	PostIndex   string
	PersonIndex string
	Popularity  query.PopularityConfig
}

// Service is the unified search service. It is safe for concurrent use:
// all mutable state is request-scoped.
type Service struct {
	client  *elastic.Client
	builder *query.UnifiedBuilder
	logger  *zap.Logger
	config  Config
}

// NewService creates a unified search service.
func NewService(client *elastic.Client, logger *zap.Logger, config Config) *Service {
	return &Service{
		client:  client,
		builder: query.NewUnifiedBuilder(),
		logger:  logger,
		config:  config,
	}
}

// Search runs unified search and returns the result envelope. Search
// engine failures are logged and produce an empty envelope; this method
// never fails the caller for relevance queries.
func (s *Service) Search(ctx context.Context, q services.SearchQuery) services.SearchResponse {
	started := time.Now()

	page := q.Page
	if page < 1 {
		page = 1
	}
	pageSize := q.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	sort := q.Sort
	if sort != services.SortNewest {
		sort = services.SortRelevance
	}

	response := services.SearchResponse{
		Documents: []model.ResultRecord{},
		People:    []model.PersonRecord{},
	}

	// DOI short-circuit: an exact DOI hit beats every relevance
	// heuristic. Zero hits fall through to the general path so a
	// DOI-shaped query still gets fuzzy/text matching.
	if normalized, ok := doiutil.Normalize(q.Query); ok && doiutil.IsDOI(q.Query) {
		if docs, count := s.searchByDOI(ctx, normalized, pageSize); count > 0 {
			response.Documents = docs
			response.Count = count
			response.ExecutionTimeMs = elapsedMs(started)
			return response
		}
	}

	docs, docCount, aggs := s.searchDocuments(ctx, q.Query, (page-1)*pageSize, pageSize, sort)
	response.Documents = docs
	response.Count = docCount
	response.Aggregations = aggs

	if q.IncludePeople {
		people, peopleCount := s.searchPeople(ctx, q.Query, (page-1)*pageSize, pageSize, sort)
		response.People = people
		response.Count += peopleCount
	}

	// Pagination follows the document result set alone; the people list is
	// capped at one page and never drives a next link.
	response.Next = pageURL(q.RequestURL, page+1, int64(page*pageSize) < docCount)
	response.Previous = pageURL(q.RequestURL, page-1, page > 1)
	response.ExecutionTimeMs = elapsedMs(started)
	return response
}

// SearchPeople runs person search alone.
func (s *Service) SearchPeople(ctx context.Context, q services.SearchQuery) []model.PersonRecord {
	page := q.Page
	if page < 1 {
		page = 1
	}
	pageSize := q.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	people, _ := s.searchPeople(ctx, q.Query, (page-1)*pageSize, pageSize, q.Sort)
	return people
}

// authorExistsFilter excludes documents with no author data at all;
// they are incomplete records that only degrade result quality.
func authorExistsFilter() elastic.Query {
	return elastic.NewBoolQuery().
		Should(
			elastic.NewExistsQuery("raw_authors.full_name"),
			elastic.NewExistsQuery("authors.full_name"),
		).
		MinimumNumberShouldMatch(1)
}

// recencyScript orders DOI-lookup hits by freshest known timestamp:
// updated_date when present, else created_date, else epoch zero.
const recencyScript = `
if (doc.containsKey('updated_date') && doc['updated_date'].size() > 0) {
  return doc['updated_date'].value.toInstant().toEpochMilli();
}
if (doc.containsKey('created_date') && doc['created_date'].size() > 0) {
  return doc['created_date'].value.toInstant().toEpochMilli();
}
return 0;`

func (s *Service) searchByDOI(ctx context.Context, normalizedDOI string, limit int) ([]model.ResultRecord, int64) {
	variants := doiutil.Variants(normalizedDOI)
	values := make([]interface{}, len(variants))
	for i, v := range variants {
		values[i] = v
	}

	lookup := elastic.NewBoolQuery().
		Must(elastic.NewTermsQuery("doi", values...)).
		Filter(authorExistsFilter())

	result, err := s.client.Search(s.config.PaperIndex, s.config.PostIndex).
		Query(lookup).
		SortBy(elastic.NewScriptSort(elastic.NewScript(recencyScript), "number").Desc()).
		Size(limit).
		TrackTotalHits(true).
		Timeout(queryTimeout).
		FetchSourceContext(elastic.NewFetchSourceContext(true).Include(documentSourceFields...)).
		Do(ctx)
	if err != nil {
		s.logger.Warn("DOI lookup failed",
			zap.String("doi", normalizedDOI),
			zap.Error(err))
		return nil, 0
	}

	docs := make([]model.ResultRecord, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		if record, ok := normalizeDocumentHit(hit); ok {
			docs = append(docs, record)
		}
	}
	return docs, result.TotalHits()
}

func (s *Service) searchDocuments(ctx context.Context, queryString string, offset, limit int, sort string) ([]model.ResultRecord, int64, services.Aggregations) {
	textQuery := s.builder.BuildDocumentQueryWithPopularity(queryString, &s.config.Popularity)
	fullQuery := elastic.NewBoolQuery().
		Must(textQuery).
		Filter(authorExistsFilter())

	highlight := elastic.NewHighlight().
		PreTags("<mark>").
		PostTags("</mark>").
		Fields(
			elastic.NewHighlighterField("paper_title").NumOfFragments(0),
			elastic.NewHighlighterField("title").NumOfFragments(0),
			elastic.NewHighlighterField("abstract").FragmentSize(700).NumOfFragments(1),
			elastic.NewHighlighterField("renderable_text").FragmentSize(700).NumOfFragments(1),
		)

	search := s.client.Search(s.config.PaperIndex, s.config.PostIndex).
		Query(fullQuery).
		Highlight(highlight).
		From(offset).
		Size(limit).
		TrackTotalHits(true).
		Timeout(queryTimeout).
		FetchSourceContext(elastic.NewFetchSourceContext(true).Include(documentSourceFields...)).
		Aggregation("years", elastic.NewDateHistogramAggregation().
			Field("created_date").
			CalendarInterval("year").
			Format("yyyy")).
		Aggregation("hubs", elastic.NewTermsAggregation().
			Field("hubs.name").
			Size(20)).
		Aggregation("content_types", elastic.NewTermsAggregation().
			Field("_index").
			Size(10))

	if sort == services.SortNewest {
		search = search.SortBy(
			elastic.NewFieldSort("created_date").Desc(),
			elastic.NewScoreSort().Desc(),
		)
	} else {
		search = search.SortBy(elastic.NewScoreSort().Desc())
	}

	result, err := search.Do(ctx)
	if err != nil {
		s.logger.Error("document search failed",
			zap.String("query", queryString),
			zap.Int("offset", offset),
			zap.Int("limit", limit),
			zap.String("sort", sort),
			zap.Error(err))
		return []model.ResultRecord{}, 0, services.Aggregations{}
	}

	docs := make([]model.ResultRecord, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		if record, ok := normalizeDocumentHit(hit); ok {
			docs = append(docs, record)
		}
	}
	return docs, result.TotalHits(), s.processAggregations(result)
}

func (s *Service) searchPeople(ctx context.Context, queryString string, offset, limit int, sort string) ([]model.PersonRecord, int64) {
	personQuery := s.builder.BuildPersonQuery(queryString)

	highlight := elastic.NewHighlight().
		PreTags("<mark>").
		PostTags("</mark>").
		Fields(
			elastic.NewHighlighterField("full_name").NumOfFragments(0),
			elastic.NewHighlighterField("headline.title").FragmentSize(150).NumOfFragments(1),
			elastic.NewHighlighterField("description").FragmentSize(200).NumOfFragments(1),
		)

	search := s.client.Search(s.config.PersonIndex).
		Query(personQuery).
		Highlight(highlight).
		From(offset).
		Size(limit).
		TrackTotalHits(true).
		Timeout(queryTimeout).
		FetchSourceContext(elastic.NewFetchSourceContext(true).Include(personSourceFields...))

	if sort == services.SortNewest {
		search = search.SortBy(
			elastic.NewFieldSort("created_date").Desc(),
			elastic.NewScoreSort().Desc(),
		)
	} else {
		search = search.SortBy(elastic.NewScoreSort().Desc())
	}

	result, err := search.Do(ctx)
	if err != nil {
		s.logger.Error("people search failed",
			zap.String("query", queryString),
			zap.Error(err))
		return []model.PersonRecord{}, 0
	}

	people := make([]model.PersonRecord, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		if record, ok := normalizePersonHit(hit); ok {
			people = append(people, record)
		}
	}
	return people, result.TotalHits()
}

func (s *Service) processAggregations(result *elastic.SearchResult) services.Aggregations {
	aggs := services.Aggregations{
		Years:        []services.BucketCount{},
		Hubs:         []services.BucketCount{},
		ContentTypes: []services.BucketCount{},
	}
	if result.Aggregations == nil {
		return aggs
	}

	if years, ok := result.Aggregations.DateHistogram("years"); ok {
		for _, bucket := range years.Buckets {
			if bucket.KeyAsString == nil {
				continue
			}
			aggs.Years = append(aggs.Years, services.BucketCount{
				Key:   *bucket.KeyAsString,
				Count: bucket.DocCount,
			})
		}
	}

	if hubs, ok := result.Aggregations.Terms("hubs"); ok {
		for _, bucket := range hubs.Buckets {
			if key, ok := bucket.Key.(string); ok {
				aggs.Hubs = append(aggs.Hubs, services.BucketCount{
					Key:   key,
					Count: bucket.DocCount,
				})
			}
		}
	}

	if types, ok := result.Aggregations.Terms("content_types"); ok {
		for _, bucket := range types.Buckets {
			indexName, ok := bucket.Key.(string)
			if !ok {
				continue
			}
			if docType, ok := docTypeFromIndex(indexName); ok {
				aggs.ContentTypes = append(aggs.ContentTypes, services.BucketCount{
					Key:   docType,
					Count: bucket.DocCount,
				})
			}
		}
	}
	return aggs
}

func docTypeFromIndex(indexName string) (string, bool) {
	switch {
	case strings.Contains(indexName, "paper"):
		return model.DocTypePaper, true
	case strings.Contains(indexName, "post"):
		return model.DocTypePost, true
	default:
		return "", false
	}
}

// pageURL rewrites the request URL's page parameter, or returns nil when
// the page does not exist or no request URL was supplied.
func pageURL(requestURL string, page int, exists bool) *string {
	if !exists || requestURL == "" {
		return nil
	}
	parsed, err := url.Parse(requestURL)
	if err != nil {
		return nil
	}
	params := parsed.Query()
	params.Set("page", strconv.Itoa(page))
	parsed.RawQuery = params.Encode()
	link := parsed.String()
	return &link
}

func elapsedMs(started time.Time) float64 {
	return float64(time.Since(started).Microseconds()) / 1000.0
}
