package models

import "strings"

// FilterAll disables a category or source filter
const FilterAll = "all"

// SortKey selects the ordering of query results
type SortKey string

const (
	SortPopularity    SortKey = "popularity"
	SortEffectiveness SortKey = "effectiveness"
	SortNewest        SortKey = "newest"
	SortRating        SortKey = "rating"
	SortDifficulty    SortKey = "difficulty"
)

// SortKeys lists every sort key in dropdown order
var SortKeys = []SortKey{SortPopularity, SortEffectiveness, SortNewest, SortRating, SortDifficulty}

// Valid reports whether k is a known sort key
func (k SortKey) Valid() bool {
	for _, known := range SortKeys {
		if k == known {
			return true
		}
	}
	return false
}

// QuerySpec captures one catalog query: filters, free-text search and sort order
type QuerySpec struct {
	Category string  `json:"category"` // "all" or a Channel
	Source   string  `json:"source"`   // "all" or a Source
	Search   string  `json:"search"`
	Sort     SortKey `json:"sort"`
}

// DefaultQuery matches every record, most popular first
func DefaultQuery() QuerySpec {
	return QuerySpec{
		Category: FilterAll,
		Source:   FilterAll,
		Sort:     SortPopularity,
	}
}

// ParseQuerySpec builds a QuerySpec from raw user input.
// Empty values fall back to the defaults; unknown values are rejected.
func ParseQuerySpec(category, source, search, sort string) (QuerySpec, error) {
	q := DefaultQuery()
	q.Search = search

	category = strings.TrimSpace(category)
	if category != "" && category != FilterAll {
		if !Channel(category).Valid() {
			return QuerySpec{}, &ValidationError{Field: "category", Value: category, Reason: "unknown channel"}
		}
		q.Category = category
	}

	source = strings.TrimSpace(source)
	if source != "" && source != FilterAll {
		if !Source(source).Valid() {
			return QuerySpec{}, &ValidationError{Field: "source", Value: source, Reason: "unknown source"}
		}
		q.Source = source
	}

	sort = strings.TrimSpace(sort)
	if sort != "" {
		if !SortKey(sort).Valid() {
			return QuerySpec{}, &ValidationError{Field: "sort", Value: sort, Reason: "unknown sort key"}
		}
		q.Sort = SortKey(sort)
	}

	return q, nil
}
