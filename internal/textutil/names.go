// Package textutil provides filename sanitization and unique-name generation
// for AI-derived document names.
package textutil

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// PDFExtension is the document extension handled by the pipeline.
const PDFExtension = ".pdf"

var illegalReplacer = strings.NewReplacer(
	"\\", "", "/", "", ":", "", "*", "", "?", "",
	"\"", "", "<", "", ">", "", "|", "",
)

// SanitizeNamePart makes a single filename segment filesystem-safe: NFC
// normalization, removal of characters Windows forbids, whitespace collapsed
// to single underscores, runs of underscores squeezed, leading and trailing
// underscores trimmed.
func SanitizeNamePart(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	name = illegalReplacer.Replace(name)
	name = strings.Join(strings.Fields(name), "_")
	for strings.Contains(name, "__") {
		name = strings.ReplaceAll(name, "__", "_")
	}
	return strings.Trim(name, "_")
}

// BuildBaseName joins sanitized company and summary segments with an
// underscore and caps the result at maxLength runes. Empty segments fall back
// to "Unknown" and "Document" so a usable name is always produced.
func BuildBaseName(company, summary string, maxLength int) string {
	companyPart := SanitizeNamePart(company)
	if companyPart == "" {
		companyPart = "Unknown"
	}
	summaryPart := SanitizeNamePart(summary)
	if summaryPart == "" {
		summaryPart = "Document"
	}
	base := companyPart + "_" + summaryPart
	if maxLength > 0 {
		if runes := []rune(base); len(runes) > maxLength {
			base = strings.Trim(string(runes[:maxLength]), "_")
		}
	}
	return base
}

// UniqueName appends the document extension to base and, when the result
// collides with an existing name, appends _1, _2, ... until unique.
func UniqueName(base string, existing []string) string {
	taken := make(map[string]struct{}, len(existing))
	for _, name := range existing {
		taken[name] = struct{}{}
	}

	candidate := base + PDFExtension
	for counter := 1; ; counter++ {
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
		candidate = fmt.Sprintf("%s_%d%s", base, counter, PDFExtension)
	}
}

// EnsurePDFExtension appends the document extension when name lacks it.
func EnsurePDFExtension(name string) string {
	if strings.HasSuffix(strings.ToLower(name), PDFExtension) {
		return name
	}
	return name + PDFExtension
}

// SplitRenamed splits a previously generated filename of the form
// company_summary.pdf back into its segments. The first underscore-delimited
// token is the company; everything after is the summary.
func SplitRenamed(filename string) (company, summary string) {
	base := strings.TrimSuffix(filename, PDFExtension)
	parts := strings.SplitN(base, "_", 2)
	company = parts[0]
	if company == "" {
		company = "Unknown"
	}
	if len(parts) > 1 && parts[1] != "" {
		summary = parts[1]
	} else {
		summary = "Document"
	}
	return company, summary
}

// Truncate caps s at max runes.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
