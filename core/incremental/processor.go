package incremental

import (
	"context"
	"errors"
	"sync"

	"github.com/goto/salt/log"

	"github.com/NvTimLiu/spark-rapids-tools/core/eventlog"
	"github.com/NvTimLiu/spark-rapids-tools/core/qualification"
	"github.com/NvTimLiu/spark-rapids-tools/core/qualification/service"
	"github.com/NvTimLiu/spark-rapids-tools/core/report"
)

const defaultQueueSize = 1024

// Config holds the output-rolling knobs for a live session.
type Config struct {
	// MaxSQLPerFile triggers a flush once this many SQL executions have
	// completed since the last roll.
	MaxSQLPerFile int
	// MaxRolledFiles caps retained output pairs; the oldest pair is
	// discarded once exceeded.
	MaxRolledFiles int
}

type rolledSet struct {
	names []string
}

// Processor is the live-session entry point: the host pushes typed events
// as they happen and a single drain goroutine applies them to the model in
// arrival order. External readers only ever see consistent snapshots
// taken under the processor's lock; they never touch live mutable state.
type Processor struct {
	logger log.Logger
	engine *service.AggregationEngine
	writer *report.Writer
	cfg    Config

	events chan interface{}
	done   chan struct{}
	wg     sync.WaitGroup

	closeMu sync.RWMutex
	closed  bool

	mu           sync.Mutex
	state        *service.ModelState
	gpuDetected  bool
	completedSQL int
	rollIndex    int
	rolled       []rolledSet
}

func NewProcessor(logger log.Logger, engine *service.AggregationEngine, writer *report.Writer, detectML bool, cfg Config) *Processor {
	return &Processor{
		logger: logger,
		engine: engine,
		writer: writer,
		cfg:    cfg,
		events: make(chan interface{}, defaultQueueSize),
		done:   make(chan struct{}),
		state:  service.NewModelState(logger, detectML),
	}
}

// Start launches the drain loop. Events pushed after ctx is done or after
// Close are dropped.
func (p *Processor) Start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(p.done)
		for {
			select {
			case <-ctx.Done():
				return
			case record, ok := <-p.events:
				if !ok {
					return
				}
				p.apply(record)
			}
		}
	}()
}

// Push queues one event for the drain loop. The queue preserves arrival
// order; Push is the only producer-facing entry point. Events pushed after
// Close, or after the drain loop has stopped, are dropped.
func (p *Processor) Push(record interface{}) {
	p.closeMu.RLock()
	defer p.closeMu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.events <- record:
	case <-p.done:
	}
}

// Close stops accepting events, drains the queue and flushes whatever has
// not been rolled yet. Close is idempotent.
func (p *Processor) Close() error {
	p.closeMu.Lock()
	alreadyClosed := p.closed
	p.closed = true
	p.closeMu.Unlock()
	if !alreadyClosed {
		close(p.events)
	}
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rollLocked()
}

func (p *Processor) apply(record interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.gpuDetected {
		return
	}
	if err := p.state.Apply(record); err != nil {
		if errors.Is(err, service.ErrGpuEventLog) {
			p.logger.Warn("live session is GPU accelerated, suspending qualification")
			p.gpuDetected = true
		}
		return
	}

	if _, ok := record.(*eventlog.SQLExecutionEnd); ok {
		p.completedSQL++
		if p.cfg.MaxSQLPerFile > 0 && p.completedSQL >= p.cfg.MaxSQLPerFile {
			if err := p.rollLocked(); err != nil {
				p.logger.Error("unable to roll qualification output: %s", err)
			}
		}
	}
}

// Summary returns the formatted summary of a single SQL execution from a
// consistent snapshot of the model.
func (p *Processor) Summary(sqlID int) (qualification.SQLSummary, bool) {
	summary := p.Snapshot()
	for _, sql := range summary.PerSQL {
		if sql.SQLID == sqlID {
			return sql, true
		}
	}
	return qualification.SQLSummary{}, false
}

// Snapshot summarizes the current model state without blocking event
// application for longer than the copy takes.
func (p *Processor) Snapshot() *qualification.AggregateSummary {
	p.mu.Lock()
	app := p.state.Snapshot()
	p.mu.Unlock()
	return p.engine.Summarize(app)
}

// Evict removes a completed SQL execution's retained state once the
// caller has consumed its summary, bounding memory on long sessions.
func (p *Processor) Evict(sqlID int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.EvictSQL(sqlID)
}

func (p *Processor) rollLocked() error {
	if p.writer == nil || p.completedSQL == 0 {
		return nil
	}
	summary := p.engine.Summarize(p.state.Snapshot())

	names, err := p.writer.WriteRoll(p.rollIndex, []*qualification.AggregateSummary{summary}, report.Options{PerSQL: true})
	if err != nil {
		return err
	}
	p.rollIndex++
	p.completedSQL = 0

	p.rolled = append(p.rolled, rolledSet{names: names})
	if p.cfg.MaxRolledFiles > 0 && len(p.rolled) > p.cfg.MaxRolledFiles {
		oldest := p.rolled[0]
		p.rolled = p.rolled[1:]
		p.writer.Remove(oldest.names...)
	}
	return nil
}
