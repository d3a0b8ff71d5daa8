package service

import (
	"context"
	"strings"

	"github.com/goto/salt/log"
	"github.com/kushsharma/parallel"

	"github.com/NvTimLiu/spark-rapids-tools/core/qualification"
)

const (
	// ConcurrentTicketPerSec limits how fast new logs are admitted.
	ConcurrentTicketPerSec = 40
	// ConcurrentLimit caps logs processed at once; each log's model can be
	// large, so this bounds peak memory more than CPU.
	ConcurrentLimit = 4
)

// Qualifier runs the batch pipeline: fan out one worker per log, replay,
// aggregate, record the outcome, then collect and post-process all
// summaries. Per-log failures are isolated; they are reflected in the
// status tracker and never abort the batch.
type Qualifier struct {
	logger  log.Logger
	builder *AppModelBuilder
	engine  *AggregationEngine
	tracker *qualification.StatusTracker

	maxWorkers int
	nameFilter string
}

func NewQualifier(logger log.Logger, builder *AppModelBuilder, engine *AggregationEngine, tracker *qualification.StatusTracker, maxWorkers int, nameFilter string) *Qualifier {
	if maxWorkers <= 0 {
		maxWorkers = ConcurrentLimit
	}
	return &Qualifier{
		logger:     logger,
		builder:    builder,
		engine:     engine,
		tracker:    tracker,
		maxWorkers: maxWorkers,
		nameFilter: nameFilter,
	}
}

// Run processes every log and returns the summaries of the successful
// ones. Ordering across workers carries no guarantee; callers sort before
// rendering.
func (q *Qualifier) Run(ctx context.Context, paths []string) []*qualification.AggregateSummary {
	runner := parallel.NewRunner(parallel.WithTicket(ConcurrentTicketPerSec), parallel.WithLimit(q.maxWorkers))
	for _, path := range paths {
		runner.Add(func(logPath string) func() (interface{}, error) {
			return func() (interface{}, error) {
				return q.processLog(ctx, logPath), nil
			}
		}(path))
	}

	var summaries []*qualification.AggregateSummary
	for _, result := range runner.Run() {
		summary, ok := result.Val.(*qualification.AggregateSummary)
		if !ok || summary == nil {
			continue
		}
		if !q.matchesNameFilter(summary.AppName) {
			continue
		}
		summaries = append(summaries, summary)
	}

	EstimateFrequencies(summaries)
	return summaries
}

func (q *Qualifier) processLog(ctx context.Context, path string) *qualification.AggregateSummary {
	app, outcome, err := q.builder.Ingest(ctx, path)
	switch {
	case err != nil && outcome == qualification.StatusUnknown:
		// GPU-origin log: outcome recorded, no summary emitted
		q.tracker.Record(path, outcome, err.Error())
		return nil
	case err != nil:
		q.logger.Error("unable to process %s: %s", path, err)
		q.tracker.Record(path, qualification.StatusFailure, err.Error())
		return nil
	}

	q.tracker.Record(path, outcome, "")
	if app == nil || outcome != qualification.StatusSuccess {
		return nil
	}
	return q.engine.Summarize(app)
}

// matchesNameFilter applies the application-name substring filter; a `~`
// prefix negates the match.
func (q *Qualifier) matchesNameFilter(appName string) bool {
	if q.nameFilter == "" {
		return true
	}
	if negated := strings.TrimPrefix(q.nameFilter, "~"); negated != q.nameFilter {
		return !strings.Contains(appName, negated)
	}
	return strings.Contains(appName, q.nameFilter)
}
