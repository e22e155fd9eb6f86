// Package openalex is a minimal client for the OpenAlex API, covering
// the two calls autocomplete needs: work autocompletion and DOI lookup.
package openalex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const defaultBaseURL = "https://api.openalex.org"

// Client talks to the OpenAlex API. The base URL is injectable so tests
// can substitute an httptest server.
type Client struct {
	httpClient *http.Client
	baseURL    string
	// email is sent as the mailto parameter for polite pool access.
	email string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient overrides the HTTP client, including its timeout.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithEmail sets the mailto parameter for polite pool access.
func WithEmail(email string) Option {
	return func(c *Client) { c.email = email }
}

// NewClient creates an OpenAlex client with a 10 second default timeout.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    defaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AutocompleteResponse is the OpenAlex autocomplete envelope.
type AutocompleteResponse struct {
	Results []AutocompleteResult `json:"results"`
}

// AutocompleteResult is one autocomplete suggestion. ExternalID carries
// the work's DOI in URL form when OpenAlex knows it.
type AutocompleteResult struct {
	ID              string `json:"id"`
	DisplayName     string `json:"display_name"`
	Hint            string `json:"hint"`
	ExternalID      string `json:"external_id"`
	CitedByCount    int    `json:"cited_by_count"`
	EntityType      string `json:"entity_type"`
	PublicationDate string `json:"publication_date"`
}

// Work is an OpenAlex work record, reduced to the fields suggest uses.
type Work struct {
	ID              string       `json:"id"`
	DOI             string       `json:"doi"`
	Title           string       `json:"title"`
	DisplayName     string       `json:"display_name"`
	PublicationDate string       `json:"publication_date"`
	CitedByCount    int          `json:"cited_by_count"`
	Authorships     []Authorship `json:"authorships"`
}

// Authorship links a work to one author.
type Authorship struct {
	Author struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
	} `json:"author"`
}

// AuthorNames returns the display names of all authors with one set.
func (w *Work) AuthorNames() []string {
	var names []string
	for _, a := range w.Authorships {
		if a.Author.DisplayName != "" {
			names = append(names, a.Author.DisplayName)
		}
	}
	return names
}

// AutocompleteWorks queries the work autocomplete endpoint.
func (c *Client) AutocompleteWorks(ctx context.Context, query string) (*AutocompleteResponse, error) {
	params := url.Values{"q": {query}}
	if c.email != "" {
		params.Set("mailto", c.email)
	}
	reqURL := c.baseURL + "/autocomplete/works?" + params.Encode()

	var out AutocompleteResponse
	if err := c.getJSON(ctx, reqURL, &out); err != nil {
		return nil, fmt.Errorf("autocomplete works: %w", err)
	}
	return &out, nil
}

// GetWorkByDOI fetches a single work by bare DOI.
func (c *Client) GetWorkByDOI(ctx context.Context, doi string) (*Work, error) {
	params := url.Values{}
	if c.email != "" {
		params.Set("mailto", c.email)
	}
	reqURL := c.baseURL + "/works/https://doi.org/" + url.PathEscape(doi)
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var out Work
	if err := c.getJSON(ctx, reqURL, &out); err != nil {
		return nil, fmt.Errorf("get work by doi %q: %w", doi, err)
	}
	return &out, nil
}

func (c *Client) getJSON(ctx context.Context, reqURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("OpenAlex request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("OpenAlex returned HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing OpenAlex response: %w", err)
	}
	return nil
}
