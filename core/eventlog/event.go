package eventlog

import (
	"encoding/json"

	"github.com/NvTimLiu/spark-rapids-tools/core/plan"
	"github.com/NvTimLiu/spark-rapids-tools/internal/errors"
)

const EntityEventLog = "event log"

// Event discriminant values as they appear in the log's Event field.
const (
	KindLogStart       = "SparkListenerLogStart"
	KindAppStart       = "SparkListenerApplicationStart"
	KindAppEnd         = "SparkListenerApplicationEnd"
	KindEnvUpdate      = "SparkListenerEnvironmentUpdate"
	KindJobStart       = "SparkListenerJobStart"
	KindJobEnd         = "SparkListenerJobEnd"
	KindStageSubmitted = "SparkListenerStageSubmitted"
	KindStageCompleted = "SparkListenerStageCompleted"
	KindTaskEnd        = "SparkListenerTaskEnd"
	KindSQLStart       = "org.apache.spark.sql.execution.ui.SparkListenerSQLExecutionStart"
	KindSQLEnd         = "org.apache.spark.sql.execution.ui.SparkListenerSQLExecutionEnd"
)

type envelope struct {
	Event string `json:"Event"`
}

type LogStart struct {
	SparkVersion string `json:"Spark Version"`
}

type ApplicationStart struct {
	AppName   string `json:"App Name"`
	AppID     string `json:"App ID"`
	Timestamp int64  `json:"Timestamp"`
	User      string `json:"User"`
}

type ApplicationEnd struct {
	Timestamp int64 `json:"Timestamp"`
}

type EnvironmentUpdate struct {
	SparkProperties  map[string]string `json:"Spark Properties"`
	SystemProperties map[string]string `json:"System Properties"`
}

type StageInfo struct {
	StageID        int    `json:"Stage ID"`
	NumTasks       int    `json:"Number of Tasks"`
	Details        string `json:"Details"`
	SubmissionTime int64  `json:"Submission Time"`
	CompletionTime int64  `json:"Completion Time"`
}

type JobStart struct {
	JobID          int               `json:"Job ID"`
	SubmissionTime int64             `json:"Submission Time"`
	StageInfos     []StageInfo       `json:"Stage Infos"`
	Properties     map[string]string `json:"Properties"`
}

type JobEnd struct {
	JobID          int   `json:"Job ID"`
	CompletionTime int64 `json:"Completion Time"`
}

type StageSubmitted struct {
	StageInfo StageInfo `json:"Stage Info"`
}

type StageCompleted struct {
	StageInfo StageInfo `json:"Stage Info"`
}

type TaskInfo struct {
	TaskID     int64 `json:"Task ID"`
	LaunchTime int64 `json:"Launch Time"`
	FinishTime int64 `json:"Finish Time"`
}

type TaskMetrics struct {
	ExecutorCPUTime int64 `json:"Executor CPU Time"`
	ExecutorRunTime int64 `json:"Executor Run Time"`
}

type TaskEnd struct {
	StageID     int         `json:"Stage ID"`
	TaskInfo    TaskInfo    `json:"Task Info"`
	TaskMetrics TaskMetrics `json:"Task Metrics"`
}

type SQLExecutionStart struct {
	ExecutionID             int       `json:"executionId"`
	Description             string    `json:"description"`
	Details                 string    `json:"details"`
	PhysicalPlanDescription string    `json:"physicalPlanDescription"`
	SparkPlanInfo           plan.Info `json:"sparkPlanInfo"`
	Time                    int64     `json:"time"`
}

type SQLExecutionEnd struct {
	ExecutionID int   `json:"executionId"`
	Time        int64 `json:"time"`
}

// Decode parses one log line into its typed record. Unknown or unhandled
// event kinds return (nil, nil) so callers skip them silently; a line that
// is not valid JSON returns an invalid-argument error the caller treats as
// a recoverable record error.
func Decode(line []byte) (interface{}, error) {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, errors.InvalidArgument(EntityEventLog, "malformed record: "+err.Error())
	}

	switch env.Event {
	case KindLogStart:
		return decodeAs[LogStart](line)
	case KindAppStart:
		return decodeAs[ApplicationStart](line)
	case KindAppEnd:
		return decodeAs[ApplicationEnd](line)
	case KindEnvUpdate:
		return decodeAs[EnvironmentUpdate](line)
	case KindJobStart:
		return decodeAs[JobStart](line)
	case KindJobEnd:
		return decodeAs[JobEnd](line)
	case KindStageSubmitted:
		return decodeAs[StageSubmitted](line)
	case KindStageCompleted:
		return decodeAs[StageCompleted](line)
	case KindTaskEnd:
		return decodeAs[TaskEnd](line)
	case KindSQLStart:
		return decodeAs[SQLExecutionStart](line)
	case KindSQLEnd:
		return decodeAs[SQLExecutionEnd](line)
	default:
		return nil, nil
	}
}

func decodeAs[T any](line []byte) (interface{}, error) {
	var record T
	if err := json.Unmarshal(line, &record); err != nil {
		return nil, errors.InvalidArgument(EntityEventLog, "malformed record: "+err.Error())
	}
	return &record, nil
}
