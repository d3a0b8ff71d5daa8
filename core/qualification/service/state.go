package service

import (
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/goto/salt/log"

	"github.com/NvTimLiu/spark-rapids-tools/core/eventlog"
	"github.com/NvTimLiu/spark-rapids-tools/core/plan"
	"github.com/NvTimLiu/spark-rapids-tools/core/qualification"
)

// ErrGpuEventLog marks a log produced by a GPU-accelerated run. Such a log
// cannot be qualified for migration, so ingestion aborts early and the log
// is recorded UNKNOWN without a summary.
var ErrGpuEventLog = errors.New("event log is from a gpu run")

const (
	propSQLExecutionID = "spark.sql.execution.id"
	propRapidsEnabled  = "spark.rapids.sql.enabled"
	propSparkPlugins   = "spark.plugins"
	gpuPluginClass     = "com.nvidia.spark.SQLPlugin"
)

// Potential-problem patterns scanned in plans and SQL text. Each produces
// a pattern:function tag; UDF use is inherently non-portable and forces
// the surrounding duration into the unsupported bucket.
var timezoneFunctions = []string{
	"from_utc_timestamp",
	"to_utc_timestamp",
	"current_timezone",
	"hour",
	"minute",
	"second",
}

var mlFunctionPattern = regexp.MustCompile(`org\.apache\.spark\.ml\.(\w+)\.(\w+)`)

// ModelState is the replay state machine: it applies typed events one at a
// time and accumulates the Application model. It is single-threaded and
// non-reentrant; both the batch builder and the incremental processor
// drive it from exactly one goroutine.
type ModelState struct {
	logger        log.Logger
	app           *qualification.Application
	lastTimestamp int64
	detectML      bool
	mlSeen        map[string]struct{}
	finalized     bool
}

func NewModelState(logger log.Logger, detectML bool) *ModelState {
	return &ModelState{
		logger:   logger,
		app:      qualification.NewApplication(),
		detectML: detectML,
		mlSeen:   map[string]struct{}{},
	}
}

// Apply folds one decoded event into the model. Events for unknown ids
// are dropped silently; the stream may be truncated anywhere and every
// prefix of it leaves the state usable.
func (s *ModelState) Apply(record interface{}) error {
	switch ev := record.(type) {
	case *eventlog.LogStart:
		s.app.SparkVersion = ev.SparkVersion
	case *eventlog.ApplicationStart:
		s.app.ID = ev.AppID
		s.app.Name = ev.AppName
		s.app.StartTime = ev.Timestamp
		s.observe(ev.Timestamp)
	case *eventlog.ApplicationEnd:
		s.app.EndTime = ev.Timestamp
		s.observe(ev.Timestamp)
	case *eventlog.EnvironmentUpdate:
		return s.applyEnvironment(ev)
	case *eventlog.JobStart:
		s.applyJobStart(ev)
	case *eventlog.JobEnd:
		s.observe(ev.CompletionTime)
	case *eventlog.StageSubmitted:
		s.applyStageInfo(ev.StageInfo)
	case *eventlog.StageCompleted:
		s.applyStageInfo(ev.StageInfo)
	case *eventlog.TaskEnd:
		s.applyTaskEnd(ev)
	case *eventlog.SQLExecutionStart:
		s.applySQLStart(ev)
	case *eventlog.SQLExecutionEnd:
		s.applySQLEnd(ev)
	}
	return nil
}

func (s *ModelState) observe(ts int64) {
	if ts > s.lastTimestamp {
		s.lastTimestamp = ts
	}
}

func (s *ModelState) applyEnvironment(ev *eventlog.EnvironmentUpdate) error {
	props := ev.SparkProperties
	if props[propRapidsEnabled] == "true" || strings.Contains(props[propSparkPlugins], gpuPluginClass) {
		return ErrGpuEventLog
	}
	for name, value := range qualification.ParseClusterTags(props) {
		s.app.ClusterTags[name] = value
	}
	return nil
}

func (s *ModelState) applyJobStart(ev *eventlog.JobStart) {
	job := &qualification.Job{ID: ev.JobID}
	for _, info := range ev.StageInfos {
		job.StageIDs = append(job.StageIDs, info.StageID)
		s.applyStageInfo(info)
	}
	if raw, ok := ev.Properties[propSQLExecutionID]; ok {
		if id, err := strconv.Atoi(raw); err == nil {
			job.SQLID = &id
		}
	}
	s.app.Jobs[ev.JobID] = job
	s.observe(ev.SubmissionTime)
}

func (s *ModelState) applyStageInfo(info eventlog.StageInfo) {
	stage, ok := s.app.Stages[info.StageID]
	if !ok {
		stage = &qualification.Stage{ID: info.StageID}
		s.app.Stages[info.StageID] = stage
	}
	if info.NumTasks > stage.TaskCount {
		stage.TaskCount = info.NumTasks
	}
	if info.SubmissionTime > 0 && (stage.SubmissionTime == 0 || info.SubmissionTime < stage.SubmissionTime) {
		stage.SubmissionTime = info.SubmissionTime
	}
	if info.CompletionTime > stage.CompletionTime {
		stage.CompletionTime = info.CompletionTime
	}
	s.observe(info.CompletionTime)
	if s.detectML {
		s.scanMLFunctions(info.Details)
	}
}

func (s *ModelState) applyTaskEnd(ev *eventlog.TaskEnd) {
	stage, ok := s.app.Stages[ev.StageID]
	if !ok {
		// end record for a stage we never saw start, likely truncated input
		return
	}
	if ev.TaskInfo.FinishTime > ev.TaskInfo.LaunchTime {
		stage.TaskDuration += ev.TaskInfo.FinishTime - ev.TaskInfo.LaunchTime
	}
	stage.ExecutorCPUTime += ev.TaskMetrics.ExecutorCPUTime
	s.observe(ev.TaskInfo.FinishTime)
}

func (s *ModelState) applySQLStart(ev *eventlog.SQLExecutionStart) {
	sql := &qualification.SqlExecution{
		ID:          ev.ExecutionID,
		Description: ev.Description,
		StartTime:   ev.Time,
		PlanRoot:    plan.Parse(ev.SparkPlanInfo),
		StageIDs:    map[int]struct{}{},
	}
	sql.PotentialProblems = detectPotentialProblems(sql.PlanRoot, ev.Description, ev.PhysicalPlanDescription)
	s.app.SQL[ev.ExecutionID] = sql
	s.harvestPlanMetadata(sql.PlanRoot)
	s.observe(ev.Time)
}

func (s *ModelState) applySQLEnd(ev *eventlog.SQLExecutionEnd) {
	sql, ok := s.app.SQL[ev.ExecutionID]
	if !ok {
		return
	}
	sql.EndTime = ev.Time
	s.observe(ev.Time)
}

// harvestPlanMetadata lifts read schemas and write formats off a freshly
// parsed plan into the application model.
func (s *ModelState) harvestPlanMetadata(root *plan.Node) {
	root.Visit(func(node *plan.Node) {
		if schema, ok := node.Metadata[plan.MetaReadSchema]; ok {
			entry := qualification.ReadSchemaEntry{
				Format: node.Metadata[plan.MetaReadFormat],
				Fields: plan.ParseReadSchema(schema),
			}
			s.app.ReadSchemas = append(s.app.ReadSchemas, entry)
		}
		if format, ok := node.Metadata[plan.MetaWriteFormat]; ok {
			s.app.WriteFormats = append(s.app.WriteFormats, format)
		}
	})
}

func (s *ModelState) scanMLFunctions(details string) {
	for _, m := range mlFunctionPattern.FindAllStringSubmatch(details, -1) {
		name := m[1] + "." + m[2]
		if _, ok := s.mlSeen[name]; ok {
			continue
		}
		s.mlSeen[name] = struct{}{}
		s.app.MlFunctions = append(s.app.MlFunctions, name)
	}
}

// Finalize resolves cross-entity references and closes every entity still
// open, estimating missing end times from the last observed timestamp.
// Idempotent; the returned Application must not be mutated afterwards.
func (s *ModelState) Finalize() *qualification.Application {
	if s.finalized {
		return s.app
	}
	s.finalized = true

	// jobs may arrive before or after the SQL execution they belong to, so
	// stage attribution is resolved once the stream is complete
	s.attributeStages()

	for _, id := range s.app.SQLIDs() {
		sql := s.app.SQL[id]
		if sql.EndTime == 0 {
			sql.EndTime = s.lastTimestamp
			sql.DurationEstimated = true
		}
	}
	if s.app.EndTime == 0 {
		s.app.EndTime = s.lastTimestamp
		s.app.EndEstimated = true
	}
	sort.Strings(s.app.PotentialProblems)
	return s.app
}

// Snapshot finalizes a deep enough copy of the current state for readers
// on other goroutines; the live state keeps accumulating events.
func (s *ModelState) Snapshot() *qualification.Application {
	clone := *s.app
	clone.Jobs = make(map[int]*qualification.Job, len(s.app.Jobs))
	for id, job := range s.app.Jobs {
		j := *job
		clone.Jobs[id] = &j
	}
	clone.Stages = make(map[int]*qualification.Stage, len(s.app.Stages))
	for id, stage := range s.app.Stages {
		st := *stage
		clone.Stages[id] = &st
	}
	clone.SQL = make(map[int]*qualification.SqlExecution, len(s.app.SQL))
	for id, sql := range s.app.SQL {
		sq := *sql
		sq.StageIDs = make(map[int]struct{}, len(sql.StageIDs))
		for sid := range sql.StageIDs {
			sq.StageIDs[sid] = struct{}{}
		}
		clone.SQL[id] = &sq
	}

	snap := &ModelState{
		logger:        s.logger,
		app:           &clone,
		lastTimestamp: s.lastTimestamp,
		detectML:      s.detectML,
		mlSeen:        s.mlSeen,
	}
	return snap.Finalize()
}

func (s *ModelState) attributeStages() {
	for _, job := range s.app.Jobs {
		if job.SQLID == nil {
			continue
		}
		sql, ok := s.app.SQL[*job.SQLID]
		if !ok {
			continue
		}
		for _, stageID := range job.StageIDs {
			sql.StageIDs[stageID] = struct{}{}
		}
	}

	problems := map[string]struct{}{}
	for _, sql := range s.app.SQL {
		for _, problem := range sql.PotentialProblems {
			problems[problem] = struct{}{}
		}
	}
	s.app.PotentialProblems = s.app.PotentialProblems[:0]
	for problem := range problems {
		s.app.PotentialProblems = append(s.app.PotentialProblems, problem)
	}
}

// EvictSQL removes a completed SQL execution's retained state. Used by the
// incremental processor to bound memory growth on long-lived sessions.
func (s *ModelState) EvictSQL(sqlID int) {
	delete(s.app.SQL, sqlID)
}

func detectPotentialProblems(root *plan.Node, description, planDescription string) []string {
	var problems []string
	seen := map[string]struct{}{}
	add := func(tag string) {
		if _, ok := seen[tag]; ok {
			return
		}
		seen[tag] = struct{}{}
		problems = append(problems, tag)
	}

	haystack := strings.ToLower(description + " " + planDescription)
	exprSet := map[string]struct{}{}
	root.Visit(func(node *plan.Node) {
		for _, expr := range node.Exprs {
			exprSet[expr] = struct{}{}
		}
	})

	for _, fn := range timezoneFunctions {
		if _, ok := exprSet[fn]; ok {
			add("TIMEZONE:" + fn)
			continue
		}
		if strings.Contains(haystack, fn+"(") {
			add("TIMEZONE:" + fn)
		}
	}
	for expr := range exprSet {
		if strings.HasPrefix(expr, "udf") {
			add("UDF:" + expr)
		}
	}
	if strings.Contains(planDescription, "UDF") {
		add("UDF:udf")
	}
	return problems
}
