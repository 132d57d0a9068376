package catalog

import (
	"math"

	"github.com/terra-clan/template-marketplace/internal/models"
)

// ChannelCount is the number of records in one channel tab
type ChannelCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Summary holds the marketplace header figures
type Summary struct {
	TotalTemplates       int     `json:"totalTemplates"`
	CommunityTemplates   int     `json:"communityTemplates"`
	AverageEffectiveness float64 `json:"averageEffectiveness"`
	TotalPopularity      int     `json:"totalPopularity"`
}

// CountByCategory counts records in category, or all records when category is "all"
func CountByCategory(records []*models.Record, category string) int {
	if category == models.FilterAll {
		return countNonNil(records)
	}
	n := 0
	for _, r := range records {
		if r != nil && string(r.Channel) == category {
			n++
		}
	}
	return n
}

// CountBySource counts records from source, or all records when source is "all"
func CountBySource(records []*models.Record, source string) int {
	if source == models.FilterAll {
		return countNonNil(records)
	}
	n := 0
	for _, r := range records {
		if r != nil && string(r.Source) == source {
			n++
		}
	}
	return n
}

// AverageEffectiveness is the mean effectiveness score, 0 for an empty collection
func AverageEffectiveness(records []*models.Record) float64 {
	var sum float64
	n := 0
	for _, r := range records {
		if r == nil {
			continue
		}
		sum += r.Effectiveness
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// TotalPopularity sums popularity across the collection
func TotalPopularity(records []*models.Record) int {
	total := 0
	for _, r := range records {
		if r != nil {
			total += r.Popularity
		}
	}
	return total
}

// ChannelCounts returns the "all" tab followed by every channel in display order
func ChannelCounts(records []*models.Record) []ChannelCount {
	counts := make([]ChannelCount, 0, len(models.Channels)+1)
	counts = append(counts, ChannelCount{Key: models.FilterAll, Count: CountByCategory(records, models.FilterAll)})
	for _, c := range models.Channels {
		counts = append(counts, ChannelCount{Key: string(c), Count: CountByCategory(records, string(c))})
	}
	return counts
}

// Summarize computes the header figures. The average is rounded to one decimal.
func Summarize(records []*models.Record) Summary {
	return Summary{
		TotalTemplates:       CountByCategory(records, models.FilterAll),
		CommunityTemplates:   CountBySource(records, string(models.SourceCommunity)),
		AverageEffectiveness: math.Round(AverageEffectiveness(records)*10) / 10,
		TotalPopularity:      TotalPopularity(records),
	}
}

func countNonNil(records []*models.Record) int {
	n := 0
	for _, r := range records {
		if r != nil {
			n++
		}
	}
	return n
}
