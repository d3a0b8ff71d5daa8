package qualification

// Recommendation is the migration suitability bucket derived from the
// estimated GPU speedup.
type Recommendation string

const (
	StronglyRecommended Recommendation = "Strongly Recommended"
	Recommended         Recommendation = "Recommended"
	NotRecommended      Recommendation = "Not Recommended"
	NotApplicable       Recommendation = "Not Applicable"
)

// Speedup thresholds bounding the recommendation buckets.
const (
	StronglyRecommendedThreshold = 2.5
	RecommendedThreshold         = 1.3
)

// RecommendationFor buckets an estimated speedup. applicable is false when
// the speedup could not be computed at all, e.g. a zero-SQL application;
// threshold comparison is skipped entirely in that case.
func RecommendationFor(speedup float64, applicable bool) Recommendation {
	if !applicable {
		return NotApplicable
	}
	switch {
	case speedup >= StronglyRecommendedThreshold:
		return StronglyRecommended
	case speedup >= RecommendedThreshold:
		return Recommended
	default:
		return NotRecommended
	}
}

// SQLSummary is the per-SQL slice of an application summary.
type SQLSummary struct {
	SQLID                   int
	Description             string
	Duration                int64
	DurationEstimated       bool
	TaskDuration            int64
	SupportedTaskDuration   int64
	UnsupportedTaskDuration int64
	EstimatedGpuSpeedup     float64
	Recommendation          Recommendation
	PlanTree                string
}

// UnsupportedOperator is one distinct unsupported exec or expression with
// the reason it cannot run on GPU.
type UnsupportedOperator struct {
	Name   string
	Kind   string // Exec or Expression
	Reason string
}

// AggregateSummary is the read-only per-application result produced once
// by the aggregation engine.
type AggregateSummary struct {
	AppID     string
	AppName   string
	StartTime int64

	AppDuration                int64
	SQLDataframeDuration       int64
	SQLDataframeTaskDuration   int64
	SupportedSQLTaskDuration   int64
	UnsupportedSQLTaskDuration int64
	NonSQLTaskDuration         int64
	GpuOpportunity             int64

	TaskSpeedupFactor     float64
	EstimatedGpuDur       float64
	EstimatedGpuSpeedup   float64
	EstimatedGpuTimeSaved float64
	SpeedupApplicable     bool
	Recommendation        Recommendation

	UnsupportedOperators []UnsupportedOperator
	PotentialProblems    []string
	ComplexTypes         string
	NestedComplexTypes   string
	ReadFileFormats      []string
	ReadSchema           string
	UnsupportedReadTypes []string
	ReadFormatScore      float64
	WriteFormats         []string
	ClusterTags          ClusterTagSet
	MlFunctions          []string

	EstimatedFrequency int64 // recurrences per month across the batch
	PerSQL             []SQLSummary
}
