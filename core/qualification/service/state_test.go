package service_test

import (
	"testing"

	"github.com/goto/salt/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NvTimLiu/spark-rapids-tools/core/eventlog"
	"github.com/NvTimLiu/spark-rapids-tools/core/plan"
	"github.com/NvTimLiu/spark-rapids-tools/core/qualification"
	"github.com/NvTimLiu/spark-rapids-tools/core/qualification/service"
)

func intPtrProps(sqlID string) map[string]string {
	return map[string]string{"spark.sql.execution.id": sqlID}
}

func TestModelStateApply(t *testing.T) {
	t.Run("builds the application model from a replayed stream", func(t *testing.T) {
		state := service.NewModelState(log.NewNoop(), false)

		require.NoError(t, state.Apply(&eventlog.LogStart{SparkVersion: "3.1.1"}))
		require.NoError(t, state.Apply(&eventlog.ApplicationStart{AppID: "app-1", AppName: "ETL Run", Timestamp: 1000}))
		require.NoError(t, state.Apply(&eventlog.SQLExecutionStart{
			ExecutionID:   0,
			Description:   "count at <console>:24",
			Time:          1100,
			SparkPlanInfo: plan.Info{NodeName: "Project", SimpleString: "Project [id#0]"},
		}))
		require.NoError(t, state.Apply(&eventlog.JobStart{
			JobID:          0,
			SubmissionTime: 1150,
			StageInfos:     []eventlog.StageInfo{{StageID: 0, NumTasks: 4}},
			Properties:     intPtrProps("0"),
		}))
		require.NoError(t, state.Apply(&eventlog.TaskEnd{
			StageID:     0,
			TaskInfo:    eventlog.TaskInfo{TaskID: 1, LaunchTime: 1200, FinishTime: 1500},
			TaskMetrics: eventlog.TaskMetrics{ExecutorCPUTime: 100000000},
		}))
		require.NoError(t, state.Apply(&eventlog.SQLExecutionEnd{ExecutionID: 0, Time: 1600}))
		require.NoError(t, state.Apply(&eventlog.ApplicationEnd{Timestamp: 2000}))

		app := state.Finalize()

		assert.Equal(t, "app-1", app.ID)
		assert.Equal(t, "3.1.1", app.SparkVersion)
		assert.Equal(t, int64(1000), app.Duration())
		assert.False(t, app.EndEstimated)
		require.Contains(t, app.SQL, 0)
		assert.Equal(t, int64(500), app.SQL[0].Duration())
		assert.False(t, app.SQL[0].DurationEstimated)
		assert.Equal(t, map[int]struct{}{0: {}}, app.SQL[0].StageIDs)
		assert.Equal(t, int64(300), app.Stages[0].TaskDuration)
	})

	t.Run("gpu markers abort ingestion", func(t *testing.T) {
		for name, props := range map[string]map[string]string{
			"rapids enabled": {"spark.rapids.sql.enabled": "true"},
			"plugin listed":  {"spark.plugins": "org.example.Other,com.nvidia.spark.SQLPlugin"},
		} {
			t.Run(name, func(t *testing.T) {
				state := service.NewModelState(log.NewNoop(), false)

				err := state.Apply(&eventlog.EnvironmentUpdate{SparkProperties: props})

				assert.ErrorIs(t, err, service.ErrGpuEventLog)
			})
		}
	})

	t.Run("truncated stream gets estimated end times", func(t *testing.T) {
		state := service.NewModelState(log.NewNoop(), false)

		require.NoError(t, state.Apply(&eventlog.ApplicationStart{AppID: "app-1", AppName: "ETL Run", Timestamp: 1000}))
		require.NoError(t, state.Apply(&eventlog.SQLExecutionStart{
			ExecutionID:   0,
			Time:          1100,
			SparkPlanInfo: plan.Info{NodeName: "Project", SimpleString: "Project [id#0]"},
		}))
		require.NoError(t, state.Apply(&eventlog.TaskEnd{
			StageID:  0,
			TaskInfo: eventlog.TaskInfo{TaskID: 1, LaunchTime: 1200, FinishTime: 1800},
		}))
		require.NoError(t, state.Apply(&eventlog.StageSubmitted{StageInfo: eventlog.StageInfo{StageID: 0, NumTasks: 2}}))

		app := state.Finalize()

		assert.True(t, app.EndEstimated)
		assert.Equal(t, int64(1100), app.EndTime, "last observed timestamp (dropped task end aside)")
		assert.True(t, app.SQL[0].DurationEstimated)
	})

	t.Run("task end for an unseen stage is dropped", func(t *testing.T) {
		state := service.NewModelState(log.NewNoop(), false)

		require.NoError(t, state.Apply(&eventlog.TaskEnd{
			StageID:  42,
			TaskInfo: eventlog.TaskInfo{LaunchTime: 1, FinishTime: 10},
		}))

		app := state.Finalize()
		assert.Empty(t, app.Stages)
	})

	t.Run("cluster tags survive redacted aggregates", func(t *testing.T) {
		state := service.NewModelState(log.NewNoop(), false)

		require.NoError(t, state.Apply(&eventlog.EnvironmentUpdate{SparkProperties: map[string]string{
			"spark.databricks.clusterUsageTags.clusterAllTags": qualification.RedactedPlaceholder,
			"spark.databricks.clusterUsageTags.clusterId":      "0617-131246-dray530",
		}}))

		app := state.Finalize()
		assert.Equal(t, "0617-131246-dray530", app.ClusterTags[qualification.TagClusterID])
	})

	t.Run("ml functions detected from stage details when enabled", func(t *testing.T) {
		state := service.NewModelState(log.NewNoop(), true)

		require.NoError(t, state.Apply(&eventlog.StageSubmitted{StageInfo: eventlog.StageInfo{
			StageID: 1,
			Details: "org.apache.spark.ml.classification.LogisticRegression.train(LogisticRegression.scala:123)",
		}}))

		app := state.Finalize()
		assert.Equal(t, []string{"classification.LogisticRegression"}, app.MlFunctions)
	})

	t.Run("potential problems are tagged and sorted", func(t *testing.T) {
		state := service.NewModelState(log.NewNoop(), false)

		require.NoError(t, state.Apply(&eventlog.SQLExecutionStart{
			ExecutionID: 0,
			Time:        1100,
			SparkPlanInfo: plan.Info{
				NodeName:     "Project",
				SimpleString: "Project [hour(ts#0) AS h#1, UDF:udfScore(v#2) AS s#3]",
			},
		}))

		app := state.Finalize()
		assert.Equal(t, []string{"TIMEZONE:hour", "UDF:udfscore"}, app.PotentialProblems)
	})
}

func TestModelStateSnapshot(t *testing.T) {
	state := service.NewModelState(log.NewNoop(), false)
	require.NoError(t, state.Apply(&eventlog.ApplicationStart{AppID: "app-1", AppName: "ETL Run", Timestamp: 1000}))
	require.NoError(t, state.Apply(&eventlog.SQLExecutionStart{
		ExecutionID:   0,
		Time:          1100,
		SparkPlanInfo: plan.Info{NodeName: "Project", SimpleString: "Project [id#0]"},
	}))

	snap := state.Snapshot()

	// the snapshot is finalized, the live state keeps accumulating
	assert.True(t, snap.EndEstimated)
	require.NoError(t, state.Apply(&eventlog.SQLExecutionEnd{ExecutionID: 0, Time: 1500}))
	require.NoError(t, state.Apply(&eventlog.ApplicationEnd{Timestamp: 2000}))
	assert.Len(t, snap.SQL, 1)
	assert.Equal(t, int64(1100), snap.EndTime)

	final := state.Finalize()
	assert.Equal(t, int64(2000), final.EndTime)
	assert.False(t, final.EndEstimated)
}

func TestEvictSQL(t *testing.T) {
	state := service.NewModelState(log.NewNoop(), false)
	require.NoError(t, state.Apply(&eventlog.SQLExecutionStart{
		ExecutionID:   7,
		Time:          100,
		SparkPlanInfo: plan.Info{NodeName: "Project", SimpleString: "Project [id#0]"},
	}))

	state.EvictSQL(7)

	assert.NotContains(t, state.Snapshot().SQL, 7)
}
