package query

import (
	"strings"

	"github.com/olivere/elastic/v7"

	"github.com/researchhub/unified-search/internal/doiutil"
)

// DocumentQueryBuilder accumulates weighted "should" clauses for document
// (paper/post) search, one group per matching strategy.
//
// Strategy methods mutate and return the builder so strategies can be
// chained:
//
//	builder.AddPhraseStrategy(fields, 0).AddFuzzyStrategy(fields, "or").Build()
//
// Builders are request-scoped and must not be shared across goroutines.
// Calling a strategy method twice duplicates its clauses; callers apply
// each strategy at most once per builder.
type DocumentQueryBuilder struct {
	query         string
	config        DocumentConfig
	queryTerms    []string
	shouldClauses []elastic.Query
}

// NewDocumentQueryBuilder creates a builder for the given query string.
// The query is tokenized on whitespace purely for term-count heuristics;
// tokenization for retrieval is the search engine's job. If the whole
// query is a syntactically valid DOI, a high-boost exact-term clause on
// the normalized DOI field is added before any other strategy.
func NewDocumentQueryBuilder(queryString string, config DocumentConfig) *DocumentQueryBuilder {
	b := &DocumentQueryBuilder{
		query:      queryString,
		config:     config,
		queryTerms: strings.Fields(queryString),
	}
	b.addDOIMatchIfApplicable()
	return b
}

func (b *DocumentQueryBuilder) addDOIMatchIfApplicable() {
	// DOI detection is best-effort and must never abort query construction.
	if !doiutil.IsDOI(b.query) {
		return
	}
	normalized, ok := doiutil.Normalize(b.query)
	if !ok {
		return
	}
	b.shouldClauses = append(b.shouldClauses,
		elastic.NewTermQuery("doi", normalized).Boost(b.config.DOIBoost))
}

// IsSingleWordQuery reports whether the query consists of exactly one
// whitespace-separated term.
func IsSingleWordQuery(queryString string) bool {
	return len(strings.Fields(queryString)) == 1
}

func limitQueryToMaxWords(queryString string, maxWords int) string {
	words := strings.Fields(queryString)
	if len(words) <= maxWords {
		return queryString
	}
	return strings.Join(words[:maxWords], " ")
}

func (b *DocumentQueryBuilder) termCount() int {
	return len(b.queryTerms)
}

func (b *DocumentQueryBuilder) shortEnoughForFuzzyContent() bool {
	return b.termCount() <= b.config.MaxTermsForFuzzyContentFields
}

func fieldCategory(field FieldConfig) string {
	if field.Name == "paper_title" || field.Name == "title" {
		return categoryTitle
	}
	if strings.Contains(field.Name, "authors") {
		return categoryAuthor
	}
	return categoryContent
}

func (b *DocumentQueryBuilder) simpleMatchBoost(category string) float64 {
	switch category {
	case categoryTitle:
		return b.config.SimpleMatchTitleBoost
	case categoryAuthor:
		return b.config.SimpleMatchAuthorBoost
	default:
		return b.config.SimpleMatchContentBoost
	}
}

func (b *DocumentQueryBuilder) phraseBoost(field FieldConfig) float64 {
	if field.Name == "abstract" {
		return b.config.PhraseAbstractBoost
	}
	if fieldCategory(field) == categoryTitle {
		return b.config.PhraseTitleBoost
	}
	return b.config.PhraseContentBoost
}

// fuzzyBoost has no content-category table entry: content fields use
// their own configured boost directly, with no strategy-level dampening.
func (b *DocumentQueryBuilder) fuzzyBoost(field FieldConfig) float64 {
	switch fieldCategory(field) {
	case categoryTitle:
		return b.config.FuzzyTitleBoost
	case categoryAuthor:
		return b.config.FuzzyAuthorBoost
	default:
		return field.Boost
	}
}

// AddAuthorTitleCombinationStrategy rewards queries that combine an
// author name with title words ("Kaiyan Zhang reinforcement learning"),
// a common search pattern that should rank far above either signal
// alone. Only meaningful for multi-word queries.
func (b *DocumentQueryBuilder) AddAuthorTitleCombinationStrategy() *DocumentQueryBuilder {
	truncated := limitQueryToMaxWords(b.query, b.config.MaxQueryWordsForAuthorTitleCombo)

	var authorQueries []elastic.Query
	for _, f := range b.config.AuthorFields {
		authorQueries = append(authorQueries, elastic.NewMatchQuery(f.Name, truncated).Operator("or"))
	}
	var titleQueries []elastic.Query
	for _, f := range b.config.TitleFields {
		titleQueries = append(titleQueries, elastic.NewMatchQuery(f.Name, truncated).Operator("or"))
	}

	if len(authorQueries) > 0 && len(titleQueries) > 0 {
		authorMatch := elastic.NewBoolQuery().Should(authorQueries...).MinimumNumberShouldMatch(1)
		titleMatch := elastic.NewBoolQuery().Should(titleQueries...).MinimumNumberShouldMatch(1)
		combo := elastic.NewBoolQuery().Must(authorMatch, titleMatch).Boost(b.config.AuthorTitleComboBoost)
		b.shouldClauses = append(b.shouldClauses, combo)
	}

	// Fallback: cross-field matching across all author and title fields.
	allFields := make([]string, 0, len(b.config.AuthorFields)+len(b.config.TitleFields))
	for _, f := range b.config.AuthorFields {
		allFields = append(allFields, f.BoostedName())
	}
	for _, f := range b.config.TitleFields {
		allFields = append(allFields, f.BoostedName())
	}
	b.shouldClauses = append(b.shouldClauses,
		elastic.NewMultiMatchQuery(b.query, allFields...).
			Type("cross_fields").
			Operator("or").
			Boost(b.config.CrossFieldComboBoost))

	return b
}

// AddPhraseStrategy adds exact-phrase matching for every field tagged
// with the phrase strategy. slop 0 means "use the configured default";
// abstract fields always use the abstract slop to tolerate minor word
// reordering. All phrase clauses are grouped in one dis_max so
// overlapping field matches do not double-count.
func (b *DocumentQueryBuilder) AddPhraseStrategy(fields []FieldConfig, slop int) *DocumentQueryBuilder {
	if slop <= 0 {
		slop = b.config.PhraseDefaultSlop
	}

	var queries []elastic.Query
	for _, field := range fields {
		if !field.Supports(StrategyPhrase) {
			continue
		}
		fieldSlop := slop
		if field.Name == "abstract" {
			fieldSlop = b.config.PhraseAbstractSlop
		}
		queries = append(queries,
			elastic.NewMatchPhraseQuery(field.Name, b.query).
				Slop(fieldSlop).
				Boost(field.Boost*b.phraseBoost(field)))
	}

	if len(queries) > 0 {
		b.shouldClauses = append(b.shouldClauses,
			elastic.NewDisMaxQuery().Query(queries...).TieBreaker(b.config.DisMaxTieBreaker))
	}
	return b
}

// AddPrefixStrategy adds autocomplete-style phrase-prefix matching for
// fields tagged with the prefix strategy. maxExpansions 0 means "use the
// multi-word default".
func (b *DocumentQueryBuilder) AddPrefixStrategy(fields []FieldConfig, maxExpansions int) *DocumentQueryBuilder {
	if maxExpansions <= 0 {
		maxExpansions = b.config.PrefixMaxExpansionsMultiWord
	}

	var queries []elastic.Query
	for _, field := range fields {
		if !field.Supports(StrategyPrefix) {
			continue
		}
		queries = append(queries,
			elastic.NewMatchPhrasePrefixQuery(field.Name, b.query).
				MaxExpansions(maxExpansions).
				Boost(field.Boost*b.config.PrefixBoost))
	}

	if len(queries) > 0 {
		b.shouldClauses = append(b.shouldClauses,
			elastic.NewDisMaxQuery().Query(queries...).TieBreaker(b.config.DisMaxTieBreaker))
	}
	return b
}

func (b *DocumentQueryBuilder) skipFuzzyField(field FieldConfig, restrictToAuthorTitle bool, authorTitleNames map[string]bool) bool {
	if !field.Supports(StrategyFuzzy) {
		return true
	}
	return restrictToAuthorTitle && !authorTitleNames[field.Name]
}

// AddFuzzyStrategy adds AUTO-fuzziness matching for fields tagged with
// the fuzzy strategy. Queries longer than the configured term limit are
// restricted to author and title fields: fuzzy matching long queries
// against large content fields is expensive and noisy.
func (b *DocumentQueryBuilder) AddFuzzyStrategy(fields []FieldConfig, operator string) *DocumentQueryBuilder {
	restrictToAuthorTitle := !b.shortEnoughForFuzzyContent()
	authorTitleNames := make(map[string]bool, len(b.config.AuthorFields)+len(b.config.TitleFields))
	for _, f := range b.config.AuthorFields {
		authorTitleNames[f.Name] = true
	}
	for _, f := range b.config.TitleFields {
		authorTitleNames[f.Name] = true
	}

	var fieldList []string
	for _, field := range fields {
		if b.skipFuzzyField(field, restrictToAuthorTitle, authorTitleNames) {
			continue
		}
		fieldList = append(fieldList, boostedFieldName(field.Name, b.fuzzyBoost(field)))
	}

	if len(fieldList) > 0 {
		b.shouldClauses = append(b.shouldClauses,
			elastic.NewMultiMatchQuery(b.query, fieldList...).
				Type("best_fields").
				Fuzziness("AUTO").
				Operator(operator))
	}
	return b
}

// AddFuzzyStrategySingleWord adds fuzzy matching tuned for single-word
// queries: fixed edit distance 1 and a stronger title boost, since a
// lone token carries no combinatorial false positive risk.
func (b *DocumentQueryBuilder) AddFuzzyStrategySingleWord(fields []FieldConfig) *DocumentQueryBuilder {
	var fieldList []string
	for _, field := range fields {
		if !field.Supports(StrategyFuzzy) {
			continue
		}
		var boost float64
		switch fieldCategory(field) {
		case categoryTitle:
			boost = b.config.FuzzySingleWordTitleBoost
		case categoryAuthor:
			boost = b.config.FuzzySingleWordAuthorBoost
		default:
			boost = field.Boost
		}
		fieldList = append(fieldList, boostedFieldName(field.Name, boost))
	}

	if len(fieldList) > 0 {
		b.shouldClauses = append(b.shouldClauses,
			elastic.NewMultiMatchQuery(b.query, fieldList...).
				Type("best_fields").
				Fuzziness(b.config.FuzzySingleWordFuzziness).
				Operator("or"))
	}
	return b
}

// AddAuthorNameStrategy adds a dedicated best-fields match across all
// author fields, applied regardless of query length.
func (b *DocumentQueryBuilder) AddAuthorNameStrategy() *DocumentQueryBuilder {
	authorFields := make([]string, 0, len(b.config.AuthorFields))
	for _, f := range b.config.AuthorFields {
		authorFields = append(authorFields, f.BoostedName())
	}

	if len(authorFields) > 0 {
		b.shouldClauses = append(b.shouldClauses,
			elastic.NewMultiMatchQuery(b.query, authorFields...).
				Type("best_fields").
				Operator("or").
				Fuzziness("AUTO").
				Boost(b.config.AuthorNameStrategyBoost))
	}
	return b
}

// AddSimpleMatchStrategy layers three clauses per field with cascading
// specificity: exact phrase ranks highest, then all-terms-present, then
// (for short queries on non-content fields) a fuzzy-tolerant match,
// each strictly lower than the previous.
func (b *DocumentQueryBuilder) AddSimpleMatchStrategy(fields []FieldConfig) *DocumentQueryBuilder {
	for _, field := range fields {
		baseBoost := field.Boost * b.simpleMatchBoost(fieldCategory(field))

		b.shouldClauses = append(b.shouldClauses,
			elastic.NewMatchPhraseQuery(field.Name, b.query).Boost(baseBoost))

		b.shouldClauses = append(b.shouldClauses,
			elastic.NewMatchQuery(field.Name, b.query).
				Operator("and").
				Boost(baseBoost*b.config.SimpleMatchAndMultiplier))

		if b.shortEnoughForFuzzyContent() && field.Name != "abstract" && field.Name != "renderable_text" {
			b.shouldClauses = append(b.shouldClauses,
				elastic.NewMatchQuery(field.Name, b.query).
					Fuzziness("AUTO").
					Boost(baseBoost*b.config.SimpleMatchFuzzyMultiplier))
		}
	}
	return b
}

// AddCrossFieldFallbackStrategy adds a catch-all cross-fields match at a
// deliberately tiny boost so queries matching no other strategy still
// surface plausible results, ranked last.
func (b *DocumentQueryBuilder) AddCrossFieldFallbackStrategy() *DocumentQueryBuilder {
	allFields := make([]string, 0, len(b.config.AuthorFields)+len(b.config.TitleFields))
	for _, f := range b.config.AuthorFields {
		allFields = append(allFields, f.BoostedName())
	}
	for _, f := range b.config.TitleFields {
		allFields = append(allFields, f.BoostedName())
	}

	b.shouldClauses = append(b.shouldClauses,
		elastic.NewMultiMatchQuery(b.query, allFields...).
			Type("cross_fields").
			Operator("or").
			Boost(b.config.FallbackBoost))
	return b
}

// AddShouldClause appends a pre-built clause. Used by the orchestrating
// builder for the unconditional title AND match.
func (b *DocumentQueryBuilder) AddShouldClause(q elastic.Query) *DocumentQueryBuilder {
	b.shouldClauses = append(b.shouldClauses, q)
	return b
}

// Build combines all accumulated clauses into one boolean query that
// matches when at least one strategy clause matches. An empty clause
// list is valid and matches nothing, which is the correct terminal
// behavior for empty input.
func (b *DocumentQueryBuilder) Build() elastic.Query {
	return elastic.NewBoolQuery().
		Should(b.shouldClauses...).
		MinimumNumberShouldMatch(1)
}

// BuildWithPopularityBoost wraps the text query in a function_score that
// combines relevance with a log1p-scaled hot_score_v2 factor. Documents
// without a popularity score are treated as 1, never 0, so their text
// relevance is not zeroed out.
func (b *DocumentQueryBuilder) BuildWithPopularityBoost(cfg PopularityConfig) elastic.Query {
	textQuery := b.Build()
	if !cfg.Enabled {
		return textQuery
	}

	boostMode := cfg.BoostMode
	if boostMode == "" {
		boostMode = "sum"
	}

	return elastic.NewFunctionScoreQuery().
		Query(textQuery).
		AddScoreFunc(elastic.NewFieldValueFactorFunction().
			Field("hot_score_v2").
			Factor(cfg.Weight).
			Modifier("log1p").
			Missing(1)).
		BoostMode(boostMode)
}
