// Package pattern derives candidate reminder hours from a user's historical
// consumption timestamps.
package pattern

import (
	"sort"

	"hydromate/internal/model"
	"hydromate/internal/timewindow"
)

const (
	// MinOccurrences is the minimum sample count for an hour to be treated
	// as a reliable pattern.
	MinOccurrences = 3

	// MaxSuggestions caps the number of returned candidates.
	MaxSuggestions = 8

	// confidenceDivisor maps sample counts onto [0, 1].
	confidenceDivisor = 10.0
)

// Suggestion reasons.
const (
	ReasonHistoricalPattern = "historical_pattern"
	ReasonDefaultInterval   = "default_interval"
)

// Suggestion is one candidate reminder time with a confidence score.
type Suggestion struct {
	Time       timewindow.TimeOfDay `json:"time"`
	Confidence float64              `json:"confidence"`
	Reason     string               `json:"reason"`
}

// Analyze groups the samples by hour of day and returns candidate reminder
// times ordered by descending frequency, ties broken by ascending hour.
// Hours with fewer than MinOccurrences samples are discarded. When no hour
// qualifies, it falls back to uniform interval stepping across the active
// window. The result is recomputed fresh on each call and is deterministic
// for identical inputs.
func Analyze(samples []model.ConsumptionSample, active timewindow.Window, intervalMinutes int) []Suggestion {
	counts := make(map[int]int)
	for _, s := range samples {
		if s.Hour < 0 || s.Hour > 23 {
			continue
		}
		counts[s.Hour]++
	}

	var hours []int
	for hour, n := range counts {
		if n >= MinOccurrences {
			hours = append(hours, hour)
		}
	}

	if len(hours) == 0 {
		return defaultSuggestions(active, intervalMinutes)
	}

	sort.Slice(hours, func(i, j int) bool {
		if counts[hours[i]] != counts[hours[j]] {
			return counts[hours[i]] > counts[hours[j]]
		}
		return hours[i] < hours[j]
	})

	if len(hours) > MaxSuggestions {
		hours = hours[:MaxSuggestions]
	}

	suggestions := make([]Suggestion, 0, len(hours))
	for _, hour := range hours {
		confidence := float64(counts[hour]) / confidenceDivisor
		if confidence > 1.0 {
			confidence = 1.0
		}
		suggestions = append(suggestions, Suggestion{
			Time:       timewindow.TimeOfDay{Hour: hour},
			Confidence: confidence,
			Reason:     ReasonHistoricalPattern,
		})
	}
	return suggestions
}

// defaultSuggestions steps from the active window start to its end by
// intervalMinutes, each candidate carrying a flat 0.5 confidence.
func defaultSuggestions(active timewindow.Window, intervalMinutes int) []Suggestion {
	if intervalMinutes <= 0 {
		return nil
	}

	var suggestions []Suggestion
	cursor := active.Start
	for !cursor.After(active.End) {
		suggestions = append(suggestions, Suggestion{
			Time:       cursor,
			Confidence: 0.5,
			Reason:     ReasonDefaultInterval,
		})
		next, days := cursor.AddMinutes(intervalMinutes)
		if days > 0 {
			break
		}
		cursor = next
	}
	return suggestions
}
