package service

import (
	"sort"
	"strings"

	"github.com/goto/salt/log"

	"github.com/NvTimLiu/spark-rapids-tools/core/plan"
	"github.com/NvTimLiu/spark-rapids-tools/core/qualification"
)

// AggregationEngine turns a finalized Application plus classifier output
// into an AggregateSummary. It holds only read-only state and is shared
// across parallel workers.
type AggregationEngine struct {
	logger     log.Logger
	classifier *plan.Classifier
}

func NewAggregationEngine(logger log.Logger, classifier *plan.Classifier) *AggregationEngine {
	return &AggregationEngine{logger: logger, classifier: classifier}
}

// sqlClassification is the per-SQL intermediate of one summarize pass.
type sqlClassification struct {
	taskDuration        int64
	supportedDuration   int64
	unsupportedDuration int64
	meanSpeedupFactor   float64
	unsupportedOps      []qualification.UnsupportedOperator
}

// Summarize computes the per-application metrics. A zero-SQL application
// yields a zero-valued summary with recommendation Not Applicable rather
// than an error.
func (e *AggregationEngine) Summarize(app *qualification.Application) *qualification.AggregateSummary {
	summary := &qualification.AggregateSummary{
		AppID:             app.ID,
		AppName:           app.Name,
		StartTime:         app.StartTime,
		AppDuration:       app.Duration(),
		ClusterTags:       app.ClusterTags,
		MlFunctions:       app.MlFunctions,
		PotentialProblems: app.PotentialProblems,
		TaskSpeedupFactor: 1.0,
		Recommendation:    qualification.NotApplicable,
	}
	e.summarizeIO(app, summary)

	claimed := map[int]struct{}{}
	var wallSQLDuration int64
	var weightedFactorSum float64

	// SQL executions are walked in ascending id order; a stage reused by a
	// later execution is owned by the first to claim it and contributes its
	// duration exactly once.
	for _, sqlID := range app.SQLIDs() {
		sql := app.SQL[sqlID]
		cls := e.classifySQL(app, sql, claimed)

		summary.SQLDataframeTaskDuration += cls.taskDuration
		summary.SupportedSQLTaskDuration += cls.supportedDuration
		summary.UnsupportedSQLTaskDuration += cls.unsupportedDuration
		weightedFactorSum += cls.meanSpeedupFactor * float64(cls.supportedDuration)
		summary.UnsupportedOperators = mergeUnsupported(summary.UnsupportedOperators, cls.unsupportedOps)
		wallSQLDuration += sql.Duration()

		summary.PerSQL = append(summary.PerSQL, e.sqlSummary(sql, cls))
	}

	summary.SQLDataframeDuration = clampInt64(wallSQLDuration, summary.AppDuration)
	for _, stage := range app.Stages {
		if _, owned := claimed[stage.ID]; !owned {
			summary.NonSQLTaskDuration += stage.TaskDuration
		}
	}

	if summary.SupportedSQLTaskDuration > 0 {
		summary.TaskSpeedupFactor = weightedFactorSum / float64(summary.SupportedSQLTaskDuration)
	}

	supportedFraction := 1.0
	if total := summary.SupportedSQLTaskDuration + summary.UnsupportedSQLTaskDuration; total > 0 {
		supportedFraction = float64(summary.SupportedSQLTaskDuration) / float64(total)
	}
	opportunity := int64(float64(summary.SQLDataframeDuration) * supportedFraction)
	summary.GpuOpportunity = clampInt64(opportunity, summary.AppDuration)

	nonSQLWall := float64(summary.AppDuration - summary.SQLDataframeDuration)
	unsupportedWall := float64(summary.SQLDataframeDuration - summary.GpuOpportunity)
	summary.EstimatedGpuDur = nonSQLWall + unsupportedWall +
		float64(summary.GpuOpportunity)/summary.TaskSpeedupFactor

	summary.SpeedupApplicable = len(app.SQL) > 0 && summary.EstimatedGpuDur > 0
	if summary.SpeedupApplicable {
		summary.EstimatedGpuSpeedup = float64(summary.AppDuration) / summary.EstimatedGpuDur
		if saved := float64(summary.AppDuration) - summary.EstimatedGpuDur; saved > 0 {
			summary.EstimatedGpuTimeSaved = saved
		}
	}
	summary.Recommendation = qualification.RecommendationFor(summary.EstimatedGpuSpeedup, summary.SpeedupApplicable)
	return summary
}

// classifySQL scores one execution's plan and attributes its owned
// stages' task time. Attribution is whole-stage: with U unsupported out
// of N classified operators, the ceil(U/N * stages) highest-id stages
// carry their full duration in the unsupported bucket and the rest in the
// supported bucket, so the buckets always sum to the SQL task duration.
func (e *AggregationEngine) classifySQL(app *qualification.Application, sql *qualification.SqlExecution, claimed map[int]struct{}) sqlClassification {
	cls := sqlClassification{meanSpeedupFactor: 1.0}

	total, unsupported := 0, 0
	var factorSum float64
	supportedCount := 0
	sql.PlanRoot.Visit(func(node *plan.Node) {
		if node.Op == plan.OperatorWholeStageCodegen {
			return
		}
		total++
		c := e.classifier.ClassifyExec(node)
		kind := "Exec"
		if c.Supported {
			// expressions can disqualify an otherwise supported exec; a UDF
			// call is inherently non-portable regardless of the exec around it
			for _, expr := range node.Exprs {
				if strings.HasPrefix(expr, "udf") {
					c.Supported = false
					c.OpName = expr
					c.UnsupportedReason = "user defined function"
					kind = "Expression"
					break
				}
				if ec := e.classifier.ClassifyExpr(expr); !ec.Supported {
					c.Supported = false
					c.OpName = expr
					c.UnsupportedReason = ec.UnsupportedReason
					kind = "Expression"
					break
				}
			}
		}
		if c.Supported {
			supportedCount++
			factorSum += c.SpeedupFactor
			return
		}
		unsupported++
		cls.unsupportedOps = append(cls.unsupportedOps, qualification.UnsupportedOperator{
			Name: c.OpName, Kind: kind, Reason: c.UnsupportedReason,
		})
	})
	if supportedCount > 0 {
		cls.meanSpeedupFactor = factorSum / float64(supportedCount)
	}

	ownedStages := e.claimStages(app, sql, claimed)
	for _, stage := range ownedStages {
		cls.taskDuration += stage.TaskDuration
	}
	if total == 0 || len(ownedStages) == 0 {
		cls.supportedDuration = cls.taskDuration
		return cls
	}

	unsupportedStages := ceilDiv(unsupported*len(ownedStages), total)
	// stages in ascending id order; the trailing ones take the unsupported
	// attribution (documented policy, see DESIGN.md)
	for i, stage := range ownedStages {
		if i >= len(ownedStages)-unsupportedStages {
			cls.unsupportedDuration += stage.TaskDuration
		} else {
			cls.supportedDuration += stage.TaskDuration
		}
	}
	return cls
}

func (e *AggregationEngine) claimStages(app *qualification.Application, sql *qualification.SqlExecution, claimed map[int]struct{}) []*qualification.Stage {
	var owned []*qualification.Stage
	for _, stageID := range sql.SortedStageIDs() {
		if _, taken := claimed[stageID]; taken {
			continue
		}
		stage, ok := app.Stages[stageID]
		if !ok {
			continue
		}
		claimed[stageID] = struct{}{}
		owned = append(owned, stage)
	}
	return owned
}

func (e *AggregationEngine) sqlSummary(sql *qualification.SqlExecution, cls sqlClassification) qualification.SQLSummary {
	duration := sql.Duration()
	supportedFraction := 1.0
	if total := cls.supportedDuration + cls.unsupportedDuration; total > 0 {
		supportedFraction = float64(cls.supportedDuration) / float64(total)
	}
	opportunity := float64(duration) * supportedFraction
	estimated := float64(duration) - opportunity + opportunity/cls.meanSpeedupFactor

	speedup := 0.0
	applicable := estimated > 0
	if applicable {
		speedup = float64(duration) / estimated
	}
	return qualification.SQLSummary{
		SQLID:                   sql.ID,
		Description:             sql.Description,
		Duration:                duration,
		DurationEstimated:       sql.DurationEstimated,
		TaskDuration:            cls.taskDuration,
		SupportedTaskDuration:   cls.supportedDuration,
		UnsupportedTaskDuration: cls.unsupportedDuration,
		EstimatedGpuSpeedup:     speedup,
		Recommendation:          qualification.RecommendationFor(speedup, applicable),
		PlanTree:                plan.RenderTree(sql.PlanRoot),
	}
}

// summarizeIO folds read schemas and write formats into the summary:
// complex/nested-complex type lists, the read-format score and the
// distinct unsupported read types.
func (e *AggregationEngine) summarizeIO(app *qualification.Application, summary *qualification.AggregateSummary) {
	summary.ReadFormatScore = 1.0
	if len(app.ReadSchemas) == 0 && len(app.WriteFormats) == 0 {
		return
	}

	var allFields []plan.SchemaField
	var scoreSum float64
	var schemaParts []string
	unsupportedTypes := map[string]struct{}{}
	formatsSeen := map[string]struct{}{}

	for _, entry := range app.ReadSchemas {
		allFields = append(allFields, entry.Fields...)
		for _, field := range entry.Fields {
			schemaParts = append(schemaParts, field.Name+":"+field.TypeString)
		}
		if _, ok := formatsSeen[entry.Format]; !ok && entry.Format != "" {
			formatsSeen[entry.Format] = struct{}{}
			summary.ReadFileFormats = append(summary.ReadFileFormats, entry.Format)
		}
		types := make([]string, 0, len(entry.Fields))
		for _, field := range entry.Fields {
			types = append(types, field.TypeString)
		}
		score, unsupported := e.classifier.ScoreReadDataTypes(entry.Format, types)
		scoreSum += score
		for _, t := range unsupported {
			unsupportedTypes[t] = struct{}{}
		}
	}
	if len(app.ReadSchemas) > 0 {
		summary.ReadFormatScore = scoreSum / float64(len(app.ReadSchemas))
	}

	complexTypes, nestedComplex := plan.ComplexTypes(allFields)
	summary.ComplexTypes = plan.FormatTypeList(complexTypes)
	summary.NestedComplexTypes = plan.FormatTypeList(nestedComplex)
	summary.ReadSchema = plan.FormatTypeList(schemaParts)

	for t := range unsupportedTypes {
		summary.UnsupportedReadTypes = append(summary.UnsupportedReadTypes, t)
	}
	sort.Strings(summary.UnsupportedReadTypes)

	writesSeen := map[string]struct{}{}
	for _, format := range app.WriteFormats {
		if _, ok := writesSeen[format]; ok {
			continue
		}
		writesSeen[format] = struct{}{}
		summary.WriteFormats = append(summary.WriteFormats, format)
	}
}

func mergeUnsupported(existing, incoming []qualification.UnsupportedOperator) []qualification.UnsupportedOperator {
	seen := make(map[string]struct{}, len(existing))
	for _, op := range existing {
		seen[op.Kind+"/"+op.Name] = struct{}{}
	}
	for _, op := range incoming {
		key := op.Kind + "/" + op.Name
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		existing = append(existing, op)
	}
	return existing
}

func clampInt64(v, bound int64) int64 {
	if v > bound {
		return bound
	}
	return v
}

func ceilDiv(a, b int) int {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}
