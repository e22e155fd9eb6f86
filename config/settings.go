// Package config provides the service configuration: server settings,
// OpenSearch index names, OpenAlex access, and relevance tuning knobs.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerSettings configures the HTTP server.
type ServerSettings struct {
	Port int `mapstructure:"port"`
}

// OpenSearchSettings configures the search cluster connection and the
// index names searched.
type OpenSearchSettings struct {
	URL         string `mapstructure:"url"`
	PaperIndex  string `mapstructure:"paper_index"`
	PostIndex   string `mapstructure:"post_index"`
	PersonIndex string `mapstructure:"person_index"`
	UserIndex   string `mapstructure:"user_index"`
	HubIndex    string `mapstructure:"hub_index"`
}

// OpenAlexSettings configures the external bibliographic API client.
type OpenAlexSettings struct {
	BaseURL string        `mapstructure:"base_url"`
	Email   string        `mapstructure:"email"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// PopularitySettings tunes the popularity boost on document search.
type PopularitySettings struct {
	Enabled   bool    `mapstructure:"enabled"`
	Weight    float64 `mapstructure:"weight"`
	BoostMode string  `mapstructure:"boost_mode"`
}

// SearchSettings bounds pagination and autocomplete sizes.
type SearchSettings struct {
	DefaultPageSize int `mapstructure:"default_page_size"`
	MaxPageSize     int `mapstructure:"max_page_size"`
	SuggestLimit    int `mapstructure:"suggest_limit"`
}

// Settings is the full service configuration.
type Settings struct {
	Server     ServerSettings     `mapstructure:"server"`
	OpenSearch OpenSearchSettings `mapstructure:"opensearch"`
	OpenAlex   OpenAlexSettings   `mapstructure:"openalex"`
	Popularity PopularitySettings `mapstructure:"popularity"`
	Search     SearchSettings     `mapstructure:"search"`
}

// validBoostModes mirrors what the engine accepts for function_score.
var validBoostModes = map[string]bool{
	"sum": true, "multiply": true, "replace": true,
	"avg": true, "max": true, "min": true,
}

// Load reads configuration from the given file (optional) and from
// UNIFIED_SEARCH_* environment variables, applies defaults, and
// validates the result.
func Load(configFile string) (*Settings, error) {
	v := viper.New()
	v.SetEnvPrefix("UNIFIED_SEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", configFile, err)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	settings.ApplyDefaults()
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &settings, nil
}

// ApplyDefaults fills zero values with production defaults.
func (s *Settings) ApplyDefaults() {
	if s.Server.Port == 0 {
		s.Server.Port = 8080
	}
	if s.OpenSearch.URL == "" {
		s.OpenSearch.URL = "http://localhost:9200"
	}
	if s.OpenSearch.PaperIndex == "" {
		s.OpenSearch.PaperIndex = "paper"
	}
	if s.OpenSearch.PostIndex == "" {
		s.OpenSearch.PostIndex = "post"
	}
	if s.OpenSearch.PersonIndex == "" {
		s.OpenSearch.PersonIndex = "person"
	}
	if s.OpenSearch.UserIndex == "" {
		s.OpenSearch.UserIndex = "user"
	}
	if s.OpenSearch.HubIndex == "" {
		s.OpenSearch.HubIndex = "hub"
	}
	if s.OpenAlex.BaseURL == "" {
		s.OpenAlex.BaseURL = "https://api.openalex.org"
	}
	if s.OpenAlex.Timeout == 0 {
		s.OpenAlex.Timeout = 10 * time.Second
	}
	if s.Popularity.Weight == 0 {
		s.Popularity.Weight = 1.0
	}
	if s.Popularity.BoostMode == "" {
		s.Popularity.BoostMode = "sum"
	}
	if s.Search.DefaultPageSize == 0 {
		s.Search.DefaultPageSize = 10
	}
	if s.Search.MaxPageSize == 0 {
		s.Search.MaxPageSize = 100
	}
	if s.Search.SuggestLimit == 0 {
		s.Search.SuggestLimit = 10
	}
}

// Validate reports configuration values that cannot work.
func (s *Settings) Validate() error {
	if s.Server.Port < 1 || s.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", s.Server.Port)
	}
	if !strings.HasPrefix(s.OpenSearch.URL, "http://") && !strings.HasPrefix(s.OpenSearch.URL, "https://") {
		return fmt.Errorf("opensearch url %q must be http(s)", s.OpenSearch.URL)
	}
	if !validBoostModes[s.Popularity.BoostMode] {
		return fmt.Errorf("popularity boost_mode %q is not a valid boost mode", s.Popularity.BoostMode)
	}
	if s.Popularity.Weight < 0 {
		return fmt.Errorf("popularity weight must be non-negative, got %g", s.Popularity.Weight)
	}
	if s.Search.DefaultPageSize > s.Search.MaxPageSize {
		return fmt.Errorf("default page size %d exceeds max page size %d",
			s.Search.DefaultPageSize, s.Search.MaxPageSize)
	}
	return nil
}
