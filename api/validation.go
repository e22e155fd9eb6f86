// Package api provides validation utilities for API request handling.
package api

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/researchhub/unified-search/services"
)

// ValidationError represents a validation error with field context
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult holds the result of validation operations
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// AddError adds a validation error to the result
func (vr *ValidationResult) AddError(field, message string) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, ValidationError{
		Field:   field,
		Message: message,
	})
}

// HasErrors returns true if there are validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// ValidatePagination validates pagination parameters and applies defaults
func ValidatePagination(page, pageSize, defaultPageSize, maxPageSize int) (int, int, *ValidationResult) {
	result := &ValidationResult{Valid: true}

	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	return page, pageSize, result
}

// ValidateSort validates the sort parameter, falling back to relevance
func ValidateSort(sort string) string {
	switch sort {
	case services.SortRelevance, services.SortNewest:
		return sort
	default:
		return services.SortRelevance
	}
}

// ParseIndexParam splits a comma-separated index parameter into names,
// dropping empty entries
func ParseIndexParam(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	indexes := make([]string, 0, len(parts))
	for _, part := range parts {
		name := strings.TrimSpace(part)
		if name != "" {
			indexes = append(indexes, name)
		}
	}

	return indexes
}

// intQueryParam parses an integer query parameter, returning the fallback
// when absent or malformed
func intQueryParam(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return value
}

// boolQueryParam parses a boolean query parameter, returning the fallback
// when absent or malformed
func boolQueryParam(c *gin.Context, name string, fallback bool) bool {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}

	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}

	return value
}

// SendValidationError sends a standardized validation error response
func SendValidationError(c *gin.Context, result *ValidationResult) {
	SendStructuredValidationError(c, result)
}
