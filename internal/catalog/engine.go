// Package catalog implements the marketplace query engine: filtering, search,
// ordering and summary reductions over an immutable slice of records.
//
// Every function here is pure. Callers pass the collection in on each call and
// may share it between goroutines without locking.
package catalog

import (
	"sort"
	"strings"

	"github.com/terra-clan/template-marketplace/internal/models"
)

// Query filters records by category, source and search text, then orders them
// by spec.Sort. The input slice is never modified; the result holds the same
// record pointers in a new slice.
//
// Unknown category or source values are treated as "all" and an unknown sort key
// as popularity. Callers that need strict validation should build spec with
// models.ParseQuerySpec.
func Query(records []*models.Record, spec models.QuerySpec) []*models.Record {
	category := normalizeCategory(spec.Category)
	source := normalizeSource(spec.Source)
	needle := strings.ToLower(strings.TrimSpace(spec.Search))

	result := make([]*models.Record, 0, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		if category != models.FilterAll && string(r.Channel) != category {
			continue
		}
		if source != models.FilterAll && string(r.Source) != source {
			continue
		}
		if needle != "" && !matchesSearch(r, needle) {
			continue
		}
		result = append(result, r)
	}

	sort.SliceStable(result, lessFunc(result, spec.Sort))
	return result
}

// Matches reports whether a single record passes the filters of spec
func Matches(r *models.Record, spec models.QuerySpec) bool {
	return len(Query([]*models.Record{r}, spec)) == 1
}

// matchesSearch expects needle to be trimmed and lower-cased already
func matchesSearch(r *models.Record, needle string) bool {
	if strings.Contains(strings.ToLower(r.Name), needle) ||
		strings.Contains(strings.ToLower(r.Description), needle) ||
		strings.Contains(strings.ToLower(r.Author.Name), needle) {
		return true
	}
	for _, tag := range r.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

func normalizeCategory(category string) string {
	if models.Channel(category).Valid() {
		return category
	}
	return models.FilterAll
}

func normalizeSource(source string) string {
	if models.Source(source).Valid() {
		return source
	}
	return models.FilterAll
}

// lessFunc returns a comparator imposing a strict total order for key.
// Ties on the primary key always fall back to the record ID.
func lessFunc(rs []*models.Record, key models.SortKey) func(i, j int) bool {
	switch key {
	case models.SortEffectiveness:
		return func(i, j int) bool {
			a, b := rs[i], rs[j]
			if a.Effectiveness != b.Effectiveness {
				return a.Effectiveness > b.Effectiveness
			}
			return a.ID < b.ID
		}
	case models.SortNewest:
		return func(i, j int) bool {
			a, b := rs[i], rs[j]
			if a.Recency != b.Recency {
				return a.Recency > b.Recency
			}
			return a.ID > b.ID
		}
	case models.SortRating:
		return func(i, j int) bool {
			a, b := rs[i], rs[j]
			if a.Rating != b.Rating {
				return a.Rating > b.Rating
			}
			return a.ID < b.ID
		}
	case models.SortDifficulty:
		return func(i, j int) bool {
			a, b := rs[i], rs[j]
			if a.Difficulty != b.Difficulty {
				return a.Difficulty < b.Difficulty
			}
			return a.ID < b.ID
		}
	default:
		return func(i, j int) bool {
			a, b := rs[i], rs[j]
			if a.Popularity != b.Popularity {
				return a.Popularity > b.Popularity
			}
			return a.ID < b.ID
		}
	}
}
