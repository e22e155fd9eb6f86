package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	errs "github.com/researchhub/unified-search/internal/errors"
	"github.com/researchhub/unified-search/services"
)

// SuggestHandler handles typeahead suggestion requests.
//
// Query parameters: q (required), index (comma-separated entity index
// names), limit, balanced.
func (api *API) SuggestHandler(c *gin.Context) {
	queryString := strings.TrimSpace(c.Query("q"))
	if queryString == "" {
		SendMissingQueryError(c)
		return
	}

	query := services.SuggestQuery{
		Query:    queryString,
		Indexes:  ParseIndexParam(c.Query("index")),
		Limit:    intQueryParam(c, "limit", api.settings.SuggestLimit),
		Balanced: boolQueryParam(c, "balanced", false),
	}

	results, err := api.suggest.Suggest(c.Request.Context(), query)
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrMissingQuery):
			SendMissingQueryError(c)
		case errors.Is(err, errs.ErrInvalidIndex):
			SendInvalidIndexError(c, err)
		default:
			api.logger.Error("suggest request failed",
				zap.String("query", queryString),
				zap.Error(err))
			SendSuggestError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, results)
}
