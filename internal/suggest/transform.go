package suggest

import (
	"encoding/json"
	"strings"

	"github.com/olivere/elastic/v7"

	"github.com/researchhub/unified-search/internal/doiutil"
	"github.com/researchhub/unified-search/internal/openalex"
	"github.com/researchhub/unified-search/model"
)

// placeholderScore is the fixed low score assigned when transforming a
// single result fails; the batch always continues.
const placeholderScore = 0.1

func placeholderResult(entityType string) model.SuggestResult {
	return model.SuggestResult{
		EntityType:  entityType,
		DisplayName: "Error processing result",
		Score:       placeholderScore,
		Source:      model.SourceResearchHub,
	}
}

func optionScore(option elastic.SearchSuggestionOption) float64 {
	if option.ScoreUnderscore != 0 {
		return option.ScoreUnderscore
	}
	if option.Score != 0 {
		return option.Score
	}
	return 1.0
}

func decodeSource(option elastic.SearchSuggestionOption) (map[string]interface{}, bool) {
	if len(option.Source) == 0 {
		return nil, false
	}
	var src map[string]interface{}
	if err := json.Unmarshal(option.Source, &src); err != nil {
		return nil, false
	}
	return src, true
}

func stringField(src map[string]interface{}, key string) string {
	s, _ := src[key].(string)
	return s
}

func intField(src map[string]interface{}, key string) int {
	if f, ok := src[key].(float64); ok {
		return int(f)
	}
	return 0
}

func mapField(src map[string]interface{}, key string) map[string]interface{} {
	m, _ := src[key].(map[string]interface{})
	return m
}

func authorNames(src map[string]interface{}, key string) []string {
	entries, ok := src[key].([]interface{})
	if !ok {
		return nil
	}
	var names []string
	for _, entry := range entries {
		if m, ok := entry.(map[string]interface{}); ok {
			if name := stringField(m, "full_name"); name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}

// transformPaperOption maps a local paper completion into a suggest
// result, carrying the normalized DOI as the dedup key.
func transformPaperOption(option elastic.SearchSuggestionOption) model.SuggestResult {
	src, ok := decodeSource(option)
	if !ok {
		return placeholderResult(model.EntityPaper)
	}
	result := model.SuggestResult{
		EntityType:    model.EntityPaper,
		ID:            intField(src, "id"),
		DisplayName:   stringField(src, "paper_title"),
		Authors:       authorNames(src, "raw_authors"),
		Citations:     intField(src, "citations"),
		DatePublished: stringField(src, "paper_publish_date"),
		OpenAlexID:    stringField(src, "openalex_id"),
		Source:        model.SourceResearchHub,
		Score:         optionScore(option),
	}
	if normalized, ok := doiutil.Normalize(stringField(src, "doi")); ok {
		result.DOI = normalized
		result.SetNormalizedDOI(normalized)
	}
	return result
}

// transformOpenAlexResult maps an OpenAlex autocomplete entry. Callers
// filter out entries without an external ID (DOI) before calling.
func transformOpenAlexResult(entry openalex.AutocompleteResult) model.SuggestResult {
	result := model.SuggestResult{
		EntityType:  model.EntityPaper,
		DisplayName: entry.DisplayName,
		Citations:   entry.CitedByCount,
		OpenAlexID:  entry.ID,
		Source:      model.SourceOpenAlex,
		Score:       1.0,
	}
	if entry.Hint != "" {
		result.Authors = strings.Split(entry.Hint, ", ")
	}
	if normalized, ok := doiutil.Normalize(entry.ExternalID); ok {
		result.DOI = normalized
		result.SetNormalizedDOI(normalized)
	}
	return result
}

func transformOpenAlexWork(work *openalex.Work) model.SuggestResult {
	title := work.DisplayName
	if title == "" {
		title = work.Title
	}
	result := model.SuggestResult{
		EntityType:    model.EntityPaper,
		DisplayName:   title,
		Authors:       work.AuthorNames(),
		Citations:     work.CitedByCount,
		DatePublished: work.PublicationDate,
		OpenAlexID:    work.ID,
		Source:        model.SourceOpenAlex,
		Score:         1.0,
	}
	if normalized, ok := doiutil.Normalize(work.DOI); ok {
		result.DOI = normalized
		result.SetNormalizedDOI(normalized)
	}
	return result
}

func transformPersonOption(option elastic.SearchSuggestionOption) model.SuggestResult {
	src, ok := decodeSource(option)
	if !ok {
		return placeholderResult(model.EntityPerson)
	}
	return model.SuggestResult{
		EntityType:   model.EntityPerson,
		ID:           intField(src, "id"),
		DisplayName:  stringField(src, "full_name"),
		ProfileImage: stringField(src, "profile_image"),
		Headline:     mapField(src, "headline"),
		Source:       model.SourceResearchHub,
		Score:        optionScore(option),
	}
}

func transformUserOption(option elastic.SearchSuggestionOption) model.SuggestResult {
	src, ok := decodeSource(option)
	if !ok {
		return placeholderResult(model.EntityUser)
	}
	return model.SuggestResult{
		EntityType:    model.EntityUser,
		ID:            intField(src, "id"),
		DisplayName:   stringField(src, "full_name"),
		AuthorProfile: mapField(src, "author_profile"),
		Source:        model.SourceResearchHub,
		Score:         optionScore(option),
	}
}

func transformPostOption(option elastic.SearchSuggestionOption) model.SuggestResult {
	src, ok := decodeSource(option)
	if !ok {
		return placeholderResult(model.EntityPost)
	}
	return model.SuggestResult{
		EntityType:   model.EntityPost,
		ID:           intField(src, "id"),
		DisplayName:  stringField(src, "title"),
		DocumentType: stringField(src, "document_type"),
		Authors:      authorNames(src, "authors"),
		Source:       model.SourceResearchHub,
		Score:        optionScore(option),
	}
}

func transformHubOption(option elastic.SearchSuggestionOption) model.SuggestResult {
	src, ok := decodeSource(option)
	if !ok {
		return placeholderResult(model.EntityHub)
	}
	return model.SuggestResult{
		EntityType:      model.EntityHub,
		ID:              intField(src, "id"),
		DisplayName:     stringField(src, "name"),
		Slug:            stringField(src, "slug"),
		Description:     stringField(src, "description"),
		PaperCount:      intField(src, "paper_count"),
		DiscussionCount: intField(src, "discussion_count"),
		Source:          model.SourceResearchHub,
		Score:           optionScore(option),
	}
}

// transformPaperHit maps a full search hit (DOI path) rather than a
// completion option.
func transformPaperHit(hit *elastic.SearchHit) model.SuggestResult {
	var src map[string]interface{}
	if err := json.Unmarshal(hit.Source, &src); err != nil {
		return placeholderResult(model.EntityPaper)
	}

	entityType := model.EntityPost
	displayName := stringField(src, "title")
	if strings.Contains(hit.Index, "paper") {
		entityType = model.EntityPaper
		displayName = stringField(src, "paper_title")
	}

	result := model.SuggestResult{
		EntityType:    entityType,
		ID:            intField(src, "id"),
		DisplayName:   displayName,
		Authors:       authorNames(src, "raw_authors"),
		Citations:     intField(src, "citations"),
		DatePublished: stringField(src, "paper_publish_date"),
		OpenAlexID:    stringField(src, "openalex_id"),
		Source:        model.SourceResearchHub,
		Score:         1.0,
	}
	if hit.Score != nil {
		result.Score = *hit.Score
	}
	if normalized, ok := doiutil.Normalize(stringField(src, "doi")); ok {
		result.DOI = normalized
		result.SetNormalizedDOI(normalized)
	}
	return result
}
