package search

import (
	"encoding/json"
	"strings"

	"github.com/olivere/elastic/v7"

	"github.com/researchhub/unified-search/model"
)

// Matched-field tags attached to normalized hits.
const (
	matchedTitle    = "title"
	matchedAbstract = "abstract"
	matchedContent  = "content"
)

// normalizeDocumentHit flattens a paper or post hit into the shared
// result shape. The second return is false when the hit source cannot
// be decoded at all; callers skip such hits and keep going.
func normalizeDocumentHit(hit *elastic.SearchHit) (model.ResultRecord, bool) {
	var src map[string]interface{}
	if err := json.Unmarshal(hit.Source, &src); err != nil {
		return model.ResultRecord{}, false
	}

	docType := model.DocTypePost
	if strings.Contains(hit.Index, "paper") {
		docType = model.DocTypePaper
	}

	record := model.ResultRecord{
		ID:          intField(src, "id"),
		DocType:     docType,
		CreatedDate: stringField(src, "created_date"),
		HotScore:    floatField(src, "hot_score_v2"),
	}
	if hit.Score != nil {
		record.Score = *hit.Score
	}

	record.Title = stringField(src, "paper_title")
	if record.Title == "" {
		record.Title = stringField(src, "title")
	}

	record.Snippet, record.MatchedField = bestSnippet(hit.Highlight)
	record.Hubs = extractHubs(src["hubs"])

	if docType == model.DocTypePaper {
		record.Authors = extractAuthors(src["raw_authors"])
		record.DOI = stringField(src, "doi")
		record.Citations = intField(src, "citations")
		record.PaperPublishDate = stringField(src, "paper_publish_date")
		record.UnifiedDocumentID = intField(src, "unified_document_id")
		record.Abstract = stringField(src, "abstract")
		record.Journal = journalFromHubs(record.Hubs)
	} else {
		record.Authors = extractAuthors(src["authors"])
		record.Slug = stringField(src, "slug")
		record.DocumentType = stringField(src, "document_type")
		record.RenderableText = stringField(src, "renderable_text")
		record.UnifiedDocumentID = intField(src, "unified_document_id")
	}

	if record.Authors == nil {
		record.Authors = []model.Author{}
	}
	if record.Hubs == nil {
		record.Hubs = []model.Hub{}
	}
	return record, true
}

// bestSnippet picks the highest-priority highlight fragment: title
// fields first, then abstract, then body content.
func bestSnippet(highlight elastic.SearchHitHighlight) (string, string) {
	for _, candidate := range []struct {
		field   string
		matched string
	}{
		{"paper_title", matchedTitle},
		{"title", matchedTitle},
		{"abstract", matchedAbstract},
		{"renderable_text", matchedContent},
	} {
		if fragments := highlight[candidate.field]; len(fragments) > 0 {
			return fragments[0], candidate.matched
		}
	}
	return "", ""
}

func normalizePersonHit(hit *elastic.SearchHit) (model.PersonRecord, bool) {
	var src map[string]interface{}
	if err := json.Unmarshal(hit.Source, &src); err != nil {
		return model.PersonRecord{}, false
	}

	record := model.PersonRecord{
		ID:           intField(src, "id"),
		FullName:     stringField(src, "full_name"),
		FirstName:    stringField(src, "first_name"),
		LastName:     stringField(src, "last_name"),
		Description:  stringField(src, "description"),
		ProfileImage: stringField(src, "profile_image"),
	}
	if hit.Score != nil {
		record.Score = *hit.Score
	}
	if headline, ok := src["headline"].(map[string]interface{}); ok {
		record.Headline = headline
	}
	for _, field := range []string{"full_name", "headline.title", "description"} {
		if fragments := hit.Highlight[field]; len(fragments) > 0 {
			record.Snippet = fragments[0]
			break
		}
	}
	return record, true
}

// extractAuthors decodes an author list. Malformed entries are skipped;
// one bad author never drops the hit.
func extractAuthors(value interface{}) []model.Author {
	entries, ok := value.([]interface{})
	if !ok {
		return nil
	}
	authors := make([]model.Author, 0, len(entries))
	for _, entry := range entries {
		m, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		author := model.Author{
			FirstName: stringField(m, "first_name"),
			LastName:  stringField(m, "last_name"),
			FullName:  stringField(m, "full_name"),
		}
		if author.FullName == "" && author.FirstName == "" && author.LastName == "" {
			continue
		}
		authors = append(authors, author)
	}
	return authors
}

// extractHubs decodes a hub list defensively. Hubs arrive as decoded
// JSON maps from the engine, but callers in tests and fixtures also
// hand in typed values, so struct and pointer forms are accepted too.
// Malformed entries are skipped.
func extractHubs(value interface{}) []model.Hub {
	entries, ok := value.([]interface{})
	if !ok {
		return nil
	}
	hubs := make([]model.Hub, 0, len(entries))
	for _, entry := range entries {
		if hub, ok := hubFromEntry(entry); ok {
			hubs = append(hubs, hub)
		}
	}
	return hubs
}

func hubFromEntry(entry interface{}) (model.Hub, bool) {
	switch v := entry.(type) {
	case map[string]interface{}:
		hub := model.Hub{
			ID:        intField(v, "id"),
			Name:      stringField(v, "name"),
			Slug:      stringField(v, "slug"),
			Namespace: stringField(v, "namespace"),
		}
		if hub.Name == "" {
			return model.Hub{}, false
		}
		return hub, true
	case model.Hub:
		return v, v.Name != ""
	case *model.Hub:
		if v == nil {
			return model.Hub{}, false
		}
		return *v, v.Name != ""
	default:
		return model.Hub{}, false
	}
}

// journalFromHubs returns the name of the first journal-namespaced hub,
// or nil when the document has none.
func journalFromHubs(hubs []model.Hub) *string {
	for _, hub := range hubs {
		if hub.Namespace != "journal" {
			continue
		}
		name := strings.TrimSpace(hub.Name)
		if name != "" {
			return &name
		}
	}
	return nil
}

func stringField(src map[string]interface{}, key string) string {
	s, _ := src[key].(string)
	return s
}

func floatField(src map[string]interface{}, key string) float64 {
	f, _ := src[key].(float64)
	return f
}

func intField(src map[string]interface{}, key string) int {
	// Decoded JSON numbers are float64.
	if f, ok := src[key].(float64); ok {
		return int(f)
	}
	if n, ok := src[key].(int); ok {
		return n
	}
	return 0
}
