package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/researchhub/unified-search/config"
	"github.com/researchhub/unified-search/services"
)

// API holds dependencies for API handlers: the search and suggestion
// services plus server settings.
type API struct {
	search   services.SearchService
	suggest  services.SuggestService
	settings config.SearchSettings
	logger   *zap.Logger
}

// NewAPI creates a new API handler structure.
func NewAPI(search services.SearchService, suggest services.SuggestService, settings config.SearchSettings, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		search:   search,
		suggest:  suggest,
		settings: settings,
		logger:   logger,
	}
}

// SetupRoutes defines all the API routes for the unified search service.
func SetupRoutes(router *gin.Engine, api *API) {
	// Health check route
	router.GET("/health", api.HealthCheckHandler)

	// Search routes
	searchRoutes := router.Group("/api/search")
	{
		searchRoutes.GET("", api.SearchHandler)              // Unified document + people search
		searchRoutes.GET("/people", api.SearchPeopleHandler) // People-only search
		searchRoutes.GET("/suggest", api.SuggestHandler)     // Typeahead suggestions
	}
}

// HealthCheckHandler provides a simple health check endpoint
func (api *API) HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "unified-search",
		"timestamp": fmt.Sprintf("%d", time.Now().Unix()),
	})
}
