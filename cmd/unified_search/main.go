package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/olivere/elastic/v7"
	"go.uber.org/zap"

	"github.com/researchhub/unified-search/api"
	"github.com/researchhub/unified-search/config"
	"github.com/researchhub/unified-search/internal/openalex"
	"github.com/researchhub/unified-search/internal/query"
	"github.com/researchhub/unified-search/internal/search"
	"github.com/researchhub/unified-search/internal/suggest"
	"github.com/researchhub/unified-search/services"
)

const maxRequestBodySize = 1 << 20 // 1 MiB

func main() {
	var (
		help       = flag.Bool("help", false, "Show help message")
		version    = flag.Bool("version", false, "Show version information")
		configFile = flag.String("config", "", "Path to a YAML config file (optional)")
	)

	flag.Parse()

	if *help {
		fmt.Printf("Unified Search - search and suggestion API for the ResearchHub corpus\n\n")
		fmt.Printf("Usage: %s [options]\n\n", os.Args[0])
		fmt.Printf("Options:\n")
		flag.PrintDefaults()
		fmt.Printf("\nConfiguration may also be supplied via UNIFIED_SEARCH_* environment variables.\n")
		return
	}

	if *version {
		fmt.Printf("Unified Search v1.0.0\n")
		return
	}

	settings, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	esClient, err := elastic.NewClient(
		elastic.SetURL(settings.OpenSearch.URL),
		elastic.SetSniff(false),
	)
	if err != nil {
		logger.Fatal("failed to connect to OpenSearch",
			zap.String("url", settings.OpenSearch.URL),
			zap.Error(err))
	}

	openAlexClient := openalex.NewClient(
		openalex.WithBaseURL(settings.OpenAlex.BaseURL),
		openalex.WithEmail(settings.OpenAlex.Email),
		openalex.WithHTTPClient(&http.Client{Timeout: settings.OpenAlex.Timeout}),
	)

	searchService := search.NewService(esClient, logger, search.Config{
		PaperIndex:  settings.OpenSearch.PaperIndex,
		PostIndex:   settings.OpenSearch.PostIndex,
		PersonIndex: settings.OpenSearch.PersonIndex,
		Popularity:  popularityConfig(settings),
	})

	suggestService := suggest.NewService(esClient, openAlexClient, logger, suggest.Config{
		PaperIndex:  settings.OpenSearch.PaperIndex,
		PostIndex:   settings.OpenSearch.PostIndex,
		PersonIndex: settings.OpenSearch.PersonIndex,
		UserIndex:   settings.OpenSearch.UserIndex,
		HubIndex:    settings.OpenSearch.HubIndex,
	})

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(api.RequestIDMiddleware())
	router.Use(api.CORSMiddleware())
	router.Use(api.RequestSizeLimitMiddleware(maxRequestBodySize))

	api.SetupRoutes(router, api.NewAPI(searchService, suggestService, settings.Search, logger))

	addr := fmt.Sprintf(":%d", settings.Server.Port)
	logger.Info("starting unified search server",
		zap.String("addr", addr),
		zap.String("opensearch_url", settings.OpenSearch.URL))

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func popularityConfig(settings *config.Settings) query.PopularityConfig {
	return query.PopularityConfig{
		Enabled:   settings.Popularity.Enabled,
		Weight:    settings.Popularity.Weight,
		BoostMode: settings.Popularity.BoostMode,
	}
}

// Ensure the concrete services satisfy the handler-facing interfaces.
var (
	_ services.SearchService  = (*search.Service)(nil)
	_ services.SuggestService = (*suggest.Service)(nil)
)
