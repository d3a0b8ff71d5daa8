package service

import (
	"math"
	"regexp"
	"strings"

	"github.com/NvTimLiu/spark-rapids-tools/core/qualification"
)

const millisPerDay = 24 * 60 * 60 * 1000

// defaultMonthlyFrequency is assumed for a job observed only once.
const defaultMonthlyFrequency = 30

var (
	nameNoisePattern = regexp.MustCompile(`[\s_\-]*\d+[\s_\-]*`)
	separatorPattern = regexp.MustCompile(`[\s_\-]+`)
)

// normalizeAppName reduces an application name to its recurring identity
// by stripping embedded run numbers and timestamps and unifying word
// separators.
func normalizeAppName(name string) string {
	normalized := nameNoisePattern.ReplaceAllString(strings.ToLower(name), "")
	normalized = separatorPattern.ReplaceAllString(normalized, " ")
	return strings.TrimSpace(normalized)
}

// EstimateFrequencies groups the batch's summaries by normalized
// application name and derives a per-month recurrence estimate for each
// group, written back onto every member. Applications with zero SQL are
// still counted in grouping; they simply carry zero duration.
func EstimateFrequencies(summaries []*qualification.AggregateSummary) {
	groups := map[string][]*qualification.AggregateSummary{}
	for _, summary := range summaries {
		key := normalizeAppName(summary.AppName)
		groups[key] = append(groups[key], summary)
	}

	for _, group := range groups {
		frequency := int64(defaultMonthlyFrequency)
		if len(group) > 1 {
			earliest, latest := group[0].StartTime, group[0].StartTime
			for _, summary := range group[1:] {
				if summary.StartTime < earliest {
					earliest = summary.StartTime
				}
				if summary.StartTime > latest {
					latest = summary.StartTime
				}
			}
			spanDays := math.Max(1, float64(latest-earliest)/millisPerDay)
			frequency = int64(math.Round(float64(len(group)) * 30 / spanDays))
			if frequency < 1 {
				frequency = 1
			}
		}
		for _, summary := range group {
			summary.EstimatedFrequency = frequency
		}
	}
}
