package document

import (
	"regexp"

	dateparser "github.com/markusmobius/go-dateparser"
)

var (
	namePattern    = regexp.MustCompile(`[A-Z][a-z]+ (?:[A-Z][a-z]+ )*[A-Z][a-z]+`)
	datePattern    = regexp.MustCompile(`\d{1,2}[-/]\d{1,2}[-/]\d{2,4}`)
	// Whitespace is intra-line only so a trailing number on the previous
	// line cannot bind as the street number.
	addressPattern = regexp.MustCompile(`(?i)\d+[ \t]+(?:[\w,]+[ \t]+){1,4}(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Drive|Dr|Lane|Ln|Way|Court|Ct|Place|Pl)\b`)
	idPattern      = regexp.MustCompile(`\d{3}-\d{2}-\d{4}|\b\d{9}\b`)
)

// extractClaims pulls identity fields out of raw OCR text using the
// heuristics the verification product ships with. Each field degrades to ""
// independently of the others.
func extractClaims(text string) *Claims {
	return &Claims{
		Name:        extractName(text),
		DateOfBirth: extractDateOfBirth(text),
		Address:     extractAddress(text),
		IDNumber:    extractIDNumber(text),
	}
}

// extractName picks the longest title-case word run, on the assumption that
// the longest run is the holder's full name rather than a label.
func extractName(text string) string {
	var name string
	for _, candidate := range namePattern.FindAllString(text, -1) {
		if len(candidate) > len(name) {
			name = candidate
		}
	}
	return name
}

// extractDateOfBirth finds numeric date candidates and returns the first one
// that parses to a plausible birth year, normalized to YYYY-MM-DD.
func extractDateOfBirth(text string) string {
	for _, candidate := range datePattern.FindAllString(text, -1) {
		dt, err := dateparser.Parse(nil, candidate)
		if err != nil {
			continue
		}
		if year := dt.Time.Year(); year > 1900 && year < 2100 {
			return dt.Time.Format("2006-01-02")
		}
	}
	return ""
}

func extractAddress(text string) string {
	var address string
	for _, candidate := range addressPattern.FindAllString(text, -1) {
		if len(candidate) > len(address) {
			address = candidate
		}
	}
	return address
}

func extractIDNumber(text string) string {
	return idPattern.FindString(text)
}
