package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/researchhub/unified-search/services"
)

// SearchHandler handles unified search requests across documents and,
// optionally, people.
//
// Query parameters: q, page, page_size, sort, include_people.
// Malformed parameters fall back to defaults; the handler always answers
// 200 with a result envelope, even when the query matches nothing.
func (api *API) SearchHandler(c *gin.Context) {
	query := api.parseSearchQuery(c)

	response := api.search.Search(c.Request.Context(), query)

	c.JSON(http.StatusOK, response)
}

// SearchPeopleHandler handles people-only search requests.
func (api *API) SearchPeopleHandler(c *gin.Context) {
	query := api.parseSearchQuery(c)

	people := api.search.SearchPeople(c.Request.Context(), query)

	c.JSON(http.StatusOK, gin.H{
		"count":  len(people),
		"people": people,
	})
}

func (api *API) parseSearchQuery(c *gin.Context) services.SearchQuery {
	page, pageSize, _ := ValidatePagination(
		intQueryParam(c, "page", 1),
		intQueryParam(c, "page_size", api.settings.DefaultPageSize),
		api.settings.DefaultPageSize,
		api.settings.MaxPageSize,
	)

	return services.SearchQuery{
		Query:         strings.TrimSpace(c.Query("q")),
		Page:          page,
		PageSize:      pageSize,
		Sort:          ValidateSort(c.Query("sort")),
		IncludePeople: boolQueryParam(c, "include_people", false),
		RequestURL:    c.Request.URL.String(),
	}
}
