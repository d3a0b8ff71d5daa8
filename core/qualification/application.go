package qualification

import (
	"sort"

	"github.com/NvTimLiu/spark-rapids-tools/core/plan"
)

// Application is the per-log model built by replaying execution events.
// It is mutated only by the builder that owns it and becomes effectively
// immutable once finalized.
type Application struct {
	ID           string
	Name         string
	StartTime    int64
	EndTime      int64
	EndEstimated bool
	SparkVersion string

	Jobs   map[int]*Job
	Stages map[int]*Stage
	SQL    map[int]*SqlExecution

	ReadSchemas       []ReadSchemaEntry
	WriteFormats      []string
	ClusterTags       ClusterTagSet
	MlFunctions       []string
	PotentialProblems []string
}

func NewApplication() *Application {
	return &Application{
		Jobs:        map[int]*Job{},
		Stages:      map[int]*Stage{},
		SQL:         map[int]*SqlExecution{},
		ClusterTags: ClusterTagSet{},
	}
}

// Duration is the application wall-clock duration in milliseconds, zero
// when either endpoint is unknown.
func (a *Application) Duration() int64 {
	if a.EndTime <= a.StartTime {
		return 0
	}
	return a.EndTime - a.StartTime
}

// SQLIDs returns execution ids in ascending order for deterministic walks.
func (a *Application) SQLIDs() []int {
	ids := make([]int, 0, len(a.SQL))
	for id := range a.SQL {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Job groups stages under one scheduler job. SQLID is nil for jobs outside
// any SQL context, e.g. plain RDD jobs.
type Job struct {
	ID       int
	StageIDs []int
	SQLID    *int
}

// Stage accumulates task-level aggregates. A stage may be referenced by
// several jobs when its output is reused; aggregates here are per stage,
// never per referencing job, so reuse cannot double-count.
type Stage struct {
	ID              int
	TaskCount       int
	TaskDuration    int64
	ExecutorCPUTime int64
	SubmissionTime  int64
	CompletionTime  int64
}

// SqlExecution is one SQL query execution with its physical plan.
type SqlExecution struct {
	ID                int
	Description       string
	StartTime         int64
	EndTime           int64
	DurationEstimated bool
	PlanRoot          *plan.Node
	StageIDs          map[int]struct{}
	PotentialProblems []string
}

func (s *SqlExecution) Duration() int64 {
	if s.EndTime <= s.StartTime {
		return 0
	}
	return s.EndTime - s.StartTime
}

// SortedStageIDs returns the attributed stage ids in ascending order.
func (s *SqlExecution) SortedStageIDs() []int {
	ids := make([]int, 0, len(s.StageIDs))
	for id := range s.StageIDs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// ReadSchemaEntry is one scanned datasource: its format and parsed fields.
type ReadSchemaEntry struct {
	Format string
	Fields []plan.SchemaField
}
