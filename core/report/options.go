package report

import (
	"sort"

	"github.com/NvTimLiu/spark-rapids-tools/core/qualification"
)

// Options controls ordering, trimming and optional sections of the
// rendered reports.
type Options struct {
	OrderAscending   bool
	Limit            int // number of data rows kept, <= 0 keeps all
	PerSQL           bool
	ReportReadSchema bool
}

// SortSummaries orders by estimated speedup with the application id as a
// deterministic tie-break, so identical inputs always render identical
// reports.
func SortSummaries(summaries []*qualification.AggregateSummary, ascending bool) {
	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		if a.EstimatedGpuSpeedup != b.EstimatedGpuSpeedup {
			if ascending {
				return a.EstimatedGpuSpeedup < b.EstimatedGpuSpeedup
			}
			return a.EstimatedGpuSpeedup > b.EstimatedGpuSpeedup
		}
		return a.AppID < b.AppID
	})
}

// ApplyLimit trims to the first limit rows after sorting.
func ApplyLimit(summaries []*qualification.AggregateSummary, limit int) []*qualification.AggregateSummary {
	if limit <= 0 || limit >= len(summaries) {
		return summaries
	}
	return summaries[:limit]
}
