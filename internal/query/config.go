// Package query builds weighted, multi-strategy OpenSearch queries for
// unified document (paper/post) and person search.
//
// All tunable ranking parameters live in this file so relevance can be
// tuned without touching query building logic. Boost values are applied
// as multipliers on the underlying engine's relevance score.
package query

import (
	"fmt"
	"math"
)

// Strategy tags controlling which query strategies may use a field.
const (
	StrategyPhrase      = "phrase"
	StrategyPrefix      = "prefix"
	StrategyFuzzy       = "fuzzy"
	StrategyCrossFields = "cross_fields"
)

// Field categories used for strategy boost lookup.
const (
	categoryTitle   = "title"
	categoryAuthor  = "author"
	categoryContent = "content"
)

// FieldConfig describes a searchable field: the index field name, its base
// boost multiplier, and the set of query strategies it participates in.
// A nil QueryTypes set means the field supports no optional strategies.
type FieldConfig struct {
	Name       string
	Boost      float64
	QueryTypes map[string]bool
}

// Supports reports whether the field participates in the given strategy.
func (f FieldConfig) Supports(strategy string) bool {
	return f.QueryTypes[strategy]
}

// BoostedName returns the field name with a caret boost suffix, as
// understood by multi_match field lists. Whole-number boosts are
// formatted without a decimal point ("title^3", not "title^3.0").
func (f FieldConfig) BoostedName() string {
	return boostedFieldName(f.Name, f.Boost)
}

func boostedFieldName(name string, boost float64) string {
	if math.Abs(boost-1.0) < 1e-9 {
		return name
	}
	if math.Abs(boost-math.Round(boost)) < 1e-9 {
		return fmt.Sprintf("%s^%d", name, int(math.Round(boost)))
	}
	return fmt.Sprintf("%s^%g", name, boost)
}

func queryTypes(strategies ...string) map[string]bool {
	m := make(map[string]bool, len(strategies))
	for _, s := range strategies {
		m[s] = true
	}
	return m
}

// PopularityConfig tunes the popularity boost applied on top of text
// relevance. When disabled, the text query is returned unmodified
// regardless of Weight.
type PopularityConfig struct {
	Enabled bool
	// Weight is the field_value_factor factor applied to hot_score_v2.
	Weight float64
	// BoostMode controls how the popularity factor combines with the text
	// relevance score: "sum", "multiply", "replace", "avg", "max", "min".
	// Empty means "sum".
	BoostMode string
}

// DefaultPopularityConfig is the production popularity boost setting.
var DefaultPopularityConfig = PopularityConfig{
	Enabled:   true,
	Weight:    1.0,
	BoostMode: "sum",
}

// DocumentConfig centralizes every tunable ranking parameter for document
// (paper/post) search.
type DocumentConfig struct {
	TitleFields   []FieldConfig
	AuthorFields  []FieldConfig
	ContentFields []FieldConfig

	// MaxQueryWordsForAuthorTitleCombo caps the number of words used by the
	// author+title combination strategy to prevent query explosion.
	MaxQueryWordsForAuthorTitleCombo int

	// MaxTermsForFuzzyContentFields is the largest query term count for
	// which fuzzy matching still runs against content fields. Fuzzy on long
	// queries against abstract/renderable_text produces too much noise.
	MaxTermsForFuzzyContentFields int

	DOIBoost float64

	// Exact title AND match: all query terms must appear in a title field.
	TitleAndMatchBoost      float64
	TitleAndMatchFieldBoost float64

	// Author + title combination strategy.
	AuthorTitleComboBoost float64
	CrossFieldComboBoost  float64

	// Simple match strategy: per-category base boosts plus sub-strategy
	// multipliers layered on top (phrase > AND match > fuzzy).
	SimpleMatchTitleBoost      float64
	SimpleMatchAuthorBoost     float64
	SimpleMatchContentBoost    float64
	SimpleMatchAndMultiplier   float64
	SimpleMatchFuzzyMultiplier float64

	// Phrase strategy.
	PhraseTitleBoost    float64
	PhraseAbstractBoost float64
	PhraseContentBoost  float64
	PhraseDefaultSlop   int
	PhraseAbstractSlop  int

	// Prefix (autocomplete-style) strategy.
	PrefixBoost                   float64
	PrefixMaxExpansionsSingleWord int
	PrefixMaxExpansionsMultiWord  int

	// Fuzzy strategy. There is deliberately no content-category entry:
	// content fields use their own configured boost unmodified.
	FuzzyTitleBoost  float64
	FuzzyAuthorBoost float64

	// Single-word fuzzy uses fixed edit distance 1 and stronger title
	// boosting: with a single token there is no combinatorial false
	// positive risk.
	FuzzySingleWordTitleBoost  float64
	FuzzySingleWordAuthorBoost float64
	FuzzySingleWordFuzziness   string

	AuthorNameStrategyBoost float64

	// Low-boost cross-field OR fallback so queries matching no other
	// strategy still surface plausible results, ranked last.
	FallbackBoost float64

	// Tie breaker for dis_max groups: rewards matching several fields
	// without double-counting overlapping matches.
	DisMaxTieBreaker float64
}

// PersonConfig tunes person/author search: a single multi-field fuzzy
// strategy with fixed descending boosts by field specificity.
type PersonConfig struct {
	FullNameBoost    float64
	FirstNameBoost   float64
	LastNameBoost    float64
	HeadlineBoost    float64
	DescriptionBoost float64

	Fuzziness string
	QueryType string
	Operator  string
}

// FieldsWithBoosts returns the person fields as caret-boosted names.
func (c PersonConfig) FieldsWithBoosts() []string {
	return []string{
		boostedFieldName("full_name", c.FullNameBoost),
		boostedFieldName("first_name", c.FirstNameBoost),
		boostedFieldName("last_name", c.LastNameBoost),
		boostedFieldName("headline", c.HeadlineBoost),
		boostedFieldName("description", c.DescriptionBoost),
	}
}

// Base field boosts. Title is the most important field; author full name
// matches outrank last name, which outrank first name (too ambiguous
// alone); content fields carry no extra weight.
const (
	titleFieldBoost           = 3.0
	authorFullNameFieldBoost  = 3.0
	authorLastNameFieldBoost  = 2.5
	authorFirstNameFieldBoost = 2.0
	abstractFieldBoost        = 1.0
	renderableTextFieldBoost  = 1.0
)

func defaultTitleFields() []FieldConfig {
	types := queryTypes(StrategyPhrase, StrategyPrefix, StrategyFuzzy)
	return []FieldConfig{
		{Name: "paper_title", Boost: titleFieldBoost, QueryTypes: types},
		{Name: "title", Boost: titleFieldBoost, QueryTypes: types},
	}
}

func defaultAuthorFields() []FieldConfig {
	types := queryTypes(StrategyCrossFields, StrategyFuzzy, StrategyPrefix)
	fields := make([]FieldConfig, 0, 6)
	// raw_authors carries paper author metadata, authors carries post
	// author profiles; both are searched with identical boosts.
	for _, prefix := range []string{"raw_authors", "authors"} {
		fields = append(fields,
			FieldConfig{Name: prefix + ".full_name", Boost: authorFullNameFieldBoost, QueryTypes: types},
			FieldConfig{Name: prefix + ".last_name", Boost: authorLastNameFieldBoost, QueryTypes: types},
			FieldConfig{Name: prefix + ".first_name", Boost: authorFirstNameFieldBoost, QueryTypes: types},
		)
	}
	return fields
}

func defaultContentFields() []FieldConfig {
	return []FieldConfig{
		{Name: "abstract", Boost: abstractFieldBoost, QueryTypes: queryTypes(StrategyPhrase, StrategyFuzzy)},
		{Name: "renderable_text", Boost: renderableTextFieldBoost, QueryTypes: queryTypes(StrategyFuzzy)},
	}
}

// DefaultDocumentConfig returns the production document search
// configuration. Callers must treat the result as immutable.
func DefaultDocumentConfig() DocumentConfig {
	return DocumentConfig{
		TitleFields:   defaultTitleFields(),
		AuthorFields:  defaultAuthorFields(),
		ContentFields: defaultContentFields(),

		MaxQueryWordsForAuthorTitleCombo: 7,
		MaxTermsForFuzzyContentFields:    2,

		DOIBoost: 8.0,

		TitleAndMatchBoost:      8.0,
		TitleAndMatchFieldBoost: 7.0,

		AuthorTitleComboBoost: 15.0,
		CrossFieldComboBoost:  6.0,

		SimpleMatchTitleBoost:      1.0,
		SimpleMatchAuthorBoost:     0.8,
		SimpleMatchContentBoost:    1.0,
		SimpleMatchAndMultiplier:   0.5,
		SimpleMatchFuzzyMultiplier: 0.2,

		PhraseTitleBoost:    0.6,
		PhraseAbstractBoost: 0.75,
		PhraseContentBoost:  0.6,
		PhraseDefaultSlop:   1,
		PhraseAbstractSlop:  2,

		PrefixBoost:                   0.5,
		PrefixMaxExpansionsSingleWord: 10,
		PrefixMaxExpansionsMultiWord:  20,

		FuzzyTitleBoost:  2.0,
		FuzzyAuthorBoost: 2.0,

		FuzzySingleWordTitleBoost:  4.0,
		FuzzySingleWordAuthorBoost: 2.0,
		FuzzySingleWordFuzziness:   "1",

		AuthorNameStrategyBoost: 2.5,

		FallbackBoost: 0.2,

		DisMaxTieBreaker: 0.1,
	}
}

// DefaultPersonConfig returns the production person search configuration.
func DefaultPersonConfig() PersonConfig {
	return PersonConfig{
		FullNameBoost:    5.0,
		FirstNameBoost:   3.0,
		LastNameBoost:    4.0,
		HeadlineBoost:    2.0,
		DescriptionBoost: 1.0,

		Fuzziness: "AUTO",
		QueryType: "best_fields",
		Operator:  "or",
	}
}
