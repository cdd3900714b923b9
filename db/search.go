package db

import (
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"
	"golang.org/x/text/cases"
	"robpike.io/nihongo"
)

const minSuggestionSimilarity = 0.8

// Search returns the games whose name, description, manufacturer or year
// contains query, ignoring case. Japanese descriptions also match in romaji.
func Search(catalog *Catalog, query string) []GameEntry {
	fold := cases.Fold()
	query = fold.String(strings.TrimSpace(query))
	if query == "" {
		return catalog.Entries()
	}

	var result []GameEntry
	for _, entry := range catalog.Entries() {
		fields := []string{
			entry.Name,
			entry.Description,
			entry.Manufacturer,
			entry.Year,
			nihongo.RomajiString(entry.Description),
		}
		for _, field := range fields {
			if strings.Contains(fold.String(field), query) {
				result = append(result, entry)
				break
			}
		}
	}
	return result
}

type suggestion struct {
	name       string
	similarity float32
}

// Suggest returns up to max identifiers similar to name, best first.
func Suggest(catalog *Catalog, name string, max int) []string {
	var matches []suggestion
	for _, candidate := range catalog.names {
		if candidate == name {
			continue
		}
		similarity := edlib.JaroWinklerSimilarity(name, candidate)
		if similarity >= minSuggestionSimilarity {
			matches = append(matches, suggestion{name: candidate, similarity: similarity})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].similarity > matches[j].similarity
	})

	result := make([]string, 0, max)
	for i := 0; i < len(matches) && i < max; i++ {
		result = append(result, matches[i].name)
	}
	return result
}
