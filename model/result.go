package model

// Author is a normalized author entry attached to papers and posts.
type Author struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	FullName  string `json:"full_name"`
}

// Hub is a topic/community tag. Namespace distinguishes plain hubs from
// journals.
type Hub struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Slug      string `json:"slug,omitempty"`
	Namespace string `json:"namespace,omitempty"`
}

// ResultRecord is the normalized search hit shape shared by papers and
// posts. Type-specific fields are omitted from JSON when empty.
type ResultRecord struct {
	ID           int      `json:"id"`
	DocType      string   `json:"type"`
	Title        string   `json:"title"`
	Snippet      string   `json:"snippet,omitempty"`
	MatchedField string   `json:"matched_field,omitempty"`
	CreatedDate  string   `json:"created_date,omitempty"`
	Score        float64  `json:"score"`
	HotScore     float64  `json:"hot_score_v2"`
	Authors      []Author `json:"authors"`
	Hubs         []Hub    `json:"hubs"`

	// Paper-only fields.
	DOI               string  `json:"doi,omitempty"`
	Citations         int     `json:"citations,omitempty"`
	PaperPublishDate  string  `json:"paper_publish_date,omitempty"`
	UnifiedDocumentID int     `json:"unified_document_id,omitempty"`
	Abstract          string  `json:"abstract,omitempty"`
	Journal           *string `json:"journal,omitempty"`

	// Post-only fields.
	Slug           string `json:"slug,omitempty"`
	DocumentType   string `json:"document_type,omitempty"`
	RenderableText string `json:"renderable_text,omitempty"`
}

// Document type values for ResultRecord.DocType.
const (
	DocTypePaper = "paper"
	DocTypePost  = "post"
)

// PersonRecord is a normalized person/author profile hit.
type PersonRecord struct {
	ID           int                    `json:"id"`
	FullName     string                 `json:"full_name"`
	FirstName    string                 `json:"first_name,omitempty"`
	LastName     string                 `json:"last_name,omitempty"`
	Headline     map[string]interface{} `json:"headline,omitempty"`
	Description  string                 `json:"description,omitempty"`
	ProfileImage string                 `json:"profile_image,omitempty"`
	Score        float64                `json:"score"`
	Snippet      string                 `json:"snippet,omitempty"`
}

// SuggestResult is one autocomplete entry. All entity types share this
// flat shape; type-specific fields are omitted from JSON when empty.
type SuggestResult struct {
	EntityType  string `json:"entity_type"`
	ID          int    `json:"id,omitempty"`
	DisplayName string `json:"display_name"`
	// Score is the weighted ranking score, serialized as _score to match
	// the engine convention the frontend already consumes.
	Score  float64 `json:"_score"`
	Source string  `json:"source"`
	// BoostTag records which name-match bonus applied, if any
	// ("exact_name_match" or "partial_name_match").
	BoostTag string `json:"_boost,omitempty"`

	// Paper fields.
	DOI           string   `json:"doi,omitempty"`
	Authors       []string `json:"authors,omitempty"`
	Citations     int      `json:"citations,omitempty"`
	DatePublished string   `json:"date_published,omitempty"`
	OpenAlexID    string   `json:"openalex_id,omitempty"`

	// Person and user fields.
	Headline      map[string]interface{} `json:"headline,omitempty"`
	ProfileImage  string                 `json:"profile_image,omitempty"`
	AuthorProfile map[string]interface{} `json:"author_profile,omitempty"`

	// Post fields.
	DocumentType string `json:"document_type,omitempty"`

	// Hub fields.
	Slug            string `json:"slug,omitempty"`
	Description     string `json:"description,omitempty"`
	PaperCount      int    `json:"paper_count,omitempty"`
	DiscussionCount int    `json:"discussion_count,omitempty"`

	// normalizedDOI is the dedup key used during merging; never serialized.
	normalizedDOI string
}

// Suggest entity types.
const (
	EntityPaper  = "paper"
	EntityPerson = "person"
	EntityUser   = "user"
	EntityPost   = "post"
	EntityHub    = "hub"
)

// Suggest result sources.
const (
	SourceResearchHub = "researchhub"
	SourceOpenAlex    = "openalex"
)

// NormalizedDOI returns the dedup key set by the transform layer.
func (r *SuggestResult) NormalizedDOI() string { return r.normalizedDOI }

// SetNormalizedDOI records the dedup key. It is intentionally excluded
// from JSON output: it exists only for merge-time comparison.
func (r *SuggestResult) SetNormalizedDOI(doi string) { r.normalizedDOI = doi }
