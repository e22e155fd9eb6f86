// Package doiutil provides detection, normalization, and variant expansion
// for Digital Object Identifiers (DOIs). A normalized DOI is the canonical
// lowercase bare form ("10.1234/abc") stripped of any URL scheme and host,
// and is used as an exact-match and deduplication key throughout search.
package doiutil

import (
	"regexp"
	"strings"
)

// urlPrefixPattern strips common DOI URL prefixes ("https://doi.org/",
// "http://dx.doi.org/") before pattern matching.
var urlPrefixPattern = regexp.MustCompile(`^https?://(dx\.)?doi\.org/`)

// doiPattern matches bare DOIs: "10.1145/1234567.1234568".
var doiPattern = regexp.MustCompile(`10\.\d{4,}/[-._;()/:a-zA-Z0-9]+`)

// IsDOI reports whether text looks like a DOI, with or without a
// doi.org URL prefix.
func IsDOI(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	cleaned := urlPrefixPattern.ReplaceAllString(text, "")
	return doiPattern.MatchString(cleaned)
}

// Normalize converts any DOI form (bare, "doi.org/..." or a full URL) to
// the canonical lowercase bare form. It returns false when the input does
// not contain a recognizable DOI.
func Normalize(text string) (string, bool) {
	text = strings.ToLower(strings.TrimSpace(text))
	text = strings.TrimRight(text, "/")
	if text == "" {
		return "", false
	}

	if idx := strings.Index(text, "doi.org/"); idx >= 0 {
		text = text[idx+len("doi.org/"):]
		// Some registrars emit an extra "doi/" path segment.
		text = strings.ReplaceAll(text, "doi/", "")
	}
	text = strings.TrimPrefix(text, "doi:")

	match := doiPattern.FindString(text)
	if match == "" {
		return "", false
	}
	return match, true
}

// Variants returns the forms under which a DOI may be stored in an index:
// the bare DOI, the host-qualified form, and the full URL. The slice is
// empty when the input is not a valid DOI.
func Variants(text string) []string {
	bare, ok := Normalize(text)
	if !ok {
		return nil
	}
	return []string{
		bare,
		"doi.org/" + bare,
		"https://doi.org/" + bare,
	}
}
