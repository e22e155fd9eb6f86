package query

import "github.com/olivere/elastic/v7"

// PersonQueryBuilder builds queries for person/author profile search.
// Unlike document search, person search is a single fuzzy multi-field
// match: names are short and a strategy cascade buys nothing.
type PersonQueryBuilder struct {
	query  string
	config PersonConfig
}

// NewPersonQueryBuilder creates a builder for the given query string.
func NewPersonQueryBuilder(queryString string, config PersonConfig) *PersonQueryBuilder {
	return &PersonQueryBuilder{query: queryString, config: config}
}

// Build returns a best-fields multi_match over the person name and
// profile fields with the configured fuzziness.
func (b *PersonQueryBuilder) Build() elastic.Query {
	return elastic.NewMultiMatchQuery(b.query, b.config.FieldsWithBoosts()...).
		Type(b.config.QueryType).
		Fuzziness(b.config.Fuzziness).
		Operator(b.config.Operator)
}
