package query

import "github.com/olivere/elastic/v7"

// UnifiedBuilder orchestrates document and person query construction,
// deciding which strategies apply to a given query and in what shape
// (single-word queries get tighter fuzziness and fewer expansions).
type UnifiedBuilder struct {
	documentConfig   DocumentConfig
	personConfig     PersonConfig
	popularityConfig PopularityConfig
}

// NewUnifiedBuilder returns a builder wired with the production default
// configuration.
func NewUnifiedBuilder() *UnifiedBuilder {
	return &UnifiedBuilder{
		documentConfig:   DefaultDocumentConfig(),
		personConfig:     DefaultPersonConfig(),
		popularityConfig: DefaultPopularityConfig,
	}
}

// NewUnifiedBuilderWithConfigs returns a builder with explicit
// configuration, used by tests and relevance experiments.
func NewUnifiedBuilderWithConfigs(doc DocumentConfig, person PersonConfig, popularity PopularityConfig) *UnifiedBuilder {
	return &UnifiedBuilder{
		documentConfig:   doc,
		personConfig:     person,
		popularityConfig: popularity,
	}
}

func (u *UnifiedBuilder) documentBuilder(queryString string) *DocumentQueryBuilder {
	cfg := u.documentConfig
	builder := NewDocumentQueryBuilder(queryString, cfg)
	singleWord := IsSingleWordQuery(queryString)

	// Strong title AND match: every query term present in one title field.
	titleFields := make([]string, 0, len(cfg.TitleFields))
	for _, f := range cfg.TitleFields {
		titleFields = append(titleFields, boostedFieldName(f.Name, cfg.TitleAndMatchFieldBoost))
	}
	builder.AddShouldClause(
		elastic.NewMultiMatchQuery(queryString, titleFields...).
			Type("best_fields").
			Operator("and").
			Boost(cfg.TitleAndMatchBoost))

	builder.
		AddSimpleMatchStrategy(cfg.TitleFields).
		AddSimpleMatchStrategy(cfg.AuthorFields).
		AddAuthorNameStrategy().
		AddPhraseStrategy(concatFields(cfg.TitleFields, cfg.ContentFields), 0)

	if !singleWord {
		builder.AddAuthorTitleCombinationStrategy()
	}

	prefixExpansions := cfg.PrefixMaxExpansionsMultiWord
	if singleWord {
		prefixExpansions = cfg.PrefixMaxExpansionsSingleWord
	}
	builder.AddPrefixStrategy(concatFields(cfg.TitleFields, cfg.AuthorFields), prefixExpansions)

	if singleWord {
		builder.AddFuzzyStrategySingleWord(concatFields(cfg.TitleFields, cfg.AuthorFields))
	} else {
		builder.AddFuzzyStrategy(concatFields(cfg.TitleFields, cfg.AuthorFields, cfg.ContentFields), "or")
	}

	builder.AddCrossFieldFallbackStrategy()
	return builder
}

// BuildDocumentQuery builds the full multi-strategy document query
// without popularity boosting.
func (u *UnifiedBuilder) BuildDocumentQuery(queryString string) elastic.Query {
	return u.documentBuilder(queryString).Build()
}

// BuildDocumentQueryWithPopularity builds the document query wrapped in
// the popularity function_score. A nil config uses the builder default.
func (u *UnifiedBuilder) BuildDocumentQueryWithPopularity(queryString string, popularity *PopularityConfig) elastic.Query {
	cfg := u.popularityConfig
	if popularity != nil {
		cfg = *popularity
	}
	return u.documentBuilder(queryString).BuildWithPopularityBoost(cfg)
}

// BuildPersonQuery builds the person/author profile query.
func (u *UnifiedBuilder) BuildPersonQuery(queryString string) elastic.Query {
	return NewPersonQueryBuilder(queryString, u.personConfig).Build()
}

func concatFields(groups ...[]FieldConfig) []FieldConfig {
	n := 0
	for _, g := range groups {
		n += len(g)
	}
	out := make([]FieldConfig, 0, n)
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
