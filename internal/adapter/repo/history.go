package repo

import (
	"net/url"
	"path"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// HistoryTitle derives a human-readable title from the source image location,
// e.g. "https://cdn/x/gold-ring_01.png" becomes "Gold Ring 01". Data URIs and
// unparseable sources fall back to a generic title.
func HistoryTitle(source string) string {
	source = strings.TrimSpace(source)
	if source == "" || strings.HasPrefix(source, "data:") {
		return "Optimized Image"
	}
	name := source
	if parsed, err := url.Parse(source); err == nil && parsed.Path != "" {
		name = parsed.Path
	}
	name = path.Base(name)
	if ext := path.Ext(name); ext != "" {
		name = strings.TrimSuffix(name, ext)
	}
	name = strings.NewReplacer("-", " ", "_", " ", "%20", " ").Replace(name)
	name = strings.Join(strings.Fields(name), " ")
	if name == "" || name == "/" || name == "." {
		return "Optimized Image"
	}
	return cases.Title(language.Und).String(name)
}
