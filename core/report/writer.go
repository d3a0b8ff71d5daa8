package report

import (
	"encoding/csv"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/goto/salt/log"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/afero"

	"github.com/NvTimLiu/spark-rapids-tools/core/qualification"
	"github.com/NvTimLiu/spark-rapids-tools/internal/errors"
)

const EntityReport = "report"

// Output file names inside the output directory.
const (
	SummaryCSVFile        = "rapids_4_spark_qualification_output.csv"
	SummaryTextFile       = "rapids_4_spark_qualification_output.log"
	PerSQLCSVFile         = "rapids_4_spark_qualification_output_persql.csv"
	PerSQLTextFile        = "rapids_4_spark_qualification_output_persql.log"
	UnsupportedOpsCSVFile = "rapids_4_spark_qualification_output_unsupportedOperators.csv"
	StatusCSVFile         = "rapids_4_spark_qualification_output_status.csv"
	StatusTextFile        = "rapids_4_spark_qualification_output_status.log"
)

// Fixed-width columns holding operator lists are capped at this width; the
// overflow is marked with an ellipsis.
const maxOperatorColumnWidth = 25

// Writer renders aggregate summaries as paired delimited and fixed-width
// files. One Writer serves a whole run; writes happen once, after all
// workers have finished.
type Writer struct {
	fs        afero.Fs
	logger    log.Logger
	outputDir string
}

func NewWriter(fs afero.Fs, logger log.Logger, outputDir string) *Writer {
	return &Writer{fs: fs, logger: logger, outputDir: outputDir}
}

// Write renders the summary pair, plus the per-SQL pair and the
// unsupported-operators file when enabled. Summaries must already be
// sorted and trimmed by the caller.
func (w *Writer) Write(summaries []*qualification.AggregateSummary, opts Options) error {
	if err := w.fs.MkdirAll(w.outputDir, 0o755); err != nil {
		return errors.InternalError(EntityReport, "unable to create "+w.outputDir, err)
	}

	header, rows := summaryRows(summaries, opts)
	if err := w.writeCSV(SummaryCSVFile, header, rows); err != nil {
		return err
	}
	if err := w.writeTable(SummaryTextFile, header, rows, ""); err != nil {
		return err
	}

	if opts.PerSQL {
		sqlHeader, sqlRows, trees := perSQLRows(summaries)
		if err := w.writeCSV(PerSQLCSVFile, sqlHeader, sqlRows); err != nil {
			return err
		}
		if err := w.writeTable(PerSQLTextFile, sqlHeader, sqlRows, trees); err != nil {
			return err
		}
	}

	return w.writeUnsupportedOperators(summaries)
}

// WriteRoll emits one numbered set of output files for the incremental
// processor's periodic flush, a delimited/fixed-width summary pair plus a
// per-SQL pair when requested. The returned names let the caller discard
// the oldest set once its retention cap is exceeded.
func (w *Writer) WriteRoll(index int, summaries []*qualification.AggregateSummary, opts Options) ([]string, error) {
	if err := w.fs.MkdirAll(w.outputDir, 0o755); err != nil {
		return nil, errors.InternalError(EntityReport, "unable to create "+w.outputDir, err)
	}
	csvName := fmt.Sprintf("rapids_4_spark_qualification_output_%d.csv", index)
	textName := fmt.Sprintf("rapids_4_spark_qualification_output_%d.log", index)
	names := []string{csvName, textName}

	header, rows := summaryRows(summaries, opts)
	if err := w.writeCSV(csvName, header, rows); err != nil {
		return nil, err
	}
	if err := w.writeTable(textName, header, rows, ""); err != nil {
		return nil, err
	}

	if opts.PerSQL {
		sqlCSVName := fmt.Sprintf("rapids_4_spark_qualification_output_persql_%d.csv", index)
		sqlTextName := fmt.Sprintf("rapids_4_spark_qualification_output_persql_%d.log", index)
		sqlHeader, sqlRows, trees := perSQLRows(summaries)
		if err := w.writeCSV(sqlCSVName, sqlHeader, sqlRows); err != nil {
			return nil, err
		}
		if err := w.writeTable(sqlTextName, sqlHeader, sqlRows, trees); err != nil {
			return nil, err
		}
		names = append(names, sqlCSVName, sqlTextName)
	}
	return names, nil
}

// Remove deletes previously rolled output files.
func (w *Writer) Remove(names ...string) {
	for _, name := range names {
		if err := w.fs.Remove(path.Join(w.outputDir, name)); err != nil {
			w.logger.Warn("unable to remove rolled output %s: %s", name, err)
		}
	}
}

// WriteStatus renders the per-log status report, stamped with the run id.
func (w *Writer) WriteStatus(runID string, tracker *qualification.StatusTracker) error {
	if err := w.fs.MkdirAll(w.outputDir, 0o755); err != nil {
		return errors.InternalError(EntityReport, "unable to create "+w.outputDir, err)
	}
	header := []string{"Event Log", "Status", "Description"}
	records := tracker.Records()
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		rows = append(rows, []string{record.Path, string(record.Outcome), record.Detail})
	}
	if err := w.writeCSV(StatusCSVFile, header, rows); err != nil {
		return err
	}

	success, failure, unknown := tracker.Counts()
	caption := fmt.Sprintf("run %s: %d success, %d failure, %d unknown", runID, success, failure, unknown)
	return w.writeTable(StatusTextFile, header, rows, caption)
}

func summaryRows(summaries []*qualification.AggregateSummary, opts Options) ([]string, [][]string) {
	header := []string{
		"App Name",
		"App ID",
		"Recommendation",
		"Estimated GPU Speedup",
		"Estimated GPU Duration",
		"Estimated GPU Time Saved",
		"App Duration",
		"SQL DF Duration",
		"SQL Dataframe Task Duration",
		"GPU Opportunity",
		"Task Speedup Factor",
		"Unsupported Execs",
		"Unsupported Expressions",
		"Potential Problems",
		"Complex Types",
		"Nested Complex Types",
		"Read File Formats",
		"Unsupported Read File Formats and Types",
		"Write Data Formats",
		"Cluster Tags",
		"ML Functions",
		"Estimated Job Frequency (monthly)",
	}
	if opts.ReportReadSchema {
		header = append(header, "Read Schema")
	}

	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		row := []string{
			s.AppName,
			s.AppID,
			string(s.Recommendation),
			formatFloat(s.EstimatedGpuSpeedup),
			formatFloat(s.EstimatedGpuDur),
			formatFloat(s.EstimatedGpuTimeSaved),
			strconv.FormatInt(s.AppDuration, 10),
			strconv.FormatInt(s.SQLDataframeDuration, 10),
			strconv.FormatInt(s.SQLDataframeTaskDuration, 10),
			strconv.FormatInt(s.GpuOpportunity, 10),
			formatFloat(s.TaskSpeedupFactor),
			joinOperators(s.UnsupportedOperators, "Exec"),
			joinOperators(s.UnsupportedOperators, "Expression"),
			strings.Join(s.PotentialProblems, ";"),
			s.ComplexTypes,
			s.NestedComplexTypes,
			strings.Join(s.ReadFileFormats, ";"),
			strings.Join(s.UnsupportedReadTypes, ";"),
			strings.Join(s.WriteFormats, ";"),
			formatClusterTags(s.ClusterTags),
			strings.Join(s.MlFunctions, ";"),
			strconv.FormatInt(s.EstimatedFrequency, 10),
		}
		if opts.ReportReadSchema {
			row = append(row, s.ReadSchema)
		}
		rows = append(rows, row)
	}
	return header, rows
}

func perSQLRows(summaries []*qualification.AggregateSummary) ([]string, [][]string, string) {
	header := []string{
		"App ID",
		"SQL ID",
		"SQL Description",
		"SQL DF Duration",
		"SQL Dataframe Task Duration",
		"Supported Task Duration",
		"Unsupported Task Duration",
		"Estimated GPU Speedup",
		"Recommendation",
		"Duration Estimated",
	}
	var rows [][]string
	var trees strings.Builder
	for _, s := range summaries {
		for _, sql := range s.PerSQL {
			rows = append(rows, []string{
				s.AppID,
				strconv.Itoa(sql.SQLID),
				sql.Description,
				strconv.FormatInt(sql.Duration, 10),
				strconv.FormatInt(sql.TaskDuration, 10),
				strconv.FormatInt(sql.SupportedTaskDuration, 10),
				strconv.FormatInt(sql.UnsupportedTaskDuration, 10),
				formatFloat(sql.EstimatedGpuSpeedup),
				string(sql.Recommendation),
				strconv.FormatBool(sql.DurationEstimated),
			})
			if sql.PlanTree != "" {
				trees.WriteString(fmt.Sprintf("%s sql %d:\n%s\n", s.AppID, sql.SQLID, sql.PlanTree))
			}
		}
	}
	return header, rows, trees.String()
}

func (w *Writer) writeUnsupportedOperators(summaries []*qualification.AggregateSummary) error {
	header := []string{"App ID", "Operator Name", "Operator Type", "Reason"}
	var rows [][]string
	for _, s := range summaries {
		ops := make([]qualification.UnsupportedOperator, len(s.UnsupportedOperators))
		copy(ops, s.UnsupportedOperators)
		sort.Slice(ops, func(i, j int) bool {
			if ops[i].Kind != ops[j].Kind {
				return ops[i].Kind < ops[j].Kind
			}
			return ops[i].Name < ops[j].Name
		})
		for _, op := range ops {
			rows = append(rows, []string{s.AppID, op.Name, op.Kind, op.Reason})
		}
	}
	return w.writeCSV(UnsupportedOpsCSVFile, header, rows)
}

// writeCSV emits a delimited file. encoding/csv quote-escapes fields
// containing the delimiter or quote characters; free text is otherwise
// written verbatim so the original string stays recoverable.
func (w *Writer) writeCSV(name string, header []string, rows [][]string) error {
	f, err := w.fs.Create(path.Join(w.outputDir, name))
	if err != nil {
		return errors.InternalError(EntityReport, "unable to create "+name, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		return errors.InternalError(EntityReport, "unable to write "+name, err)
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return errors.InternalError(EntityReport, "unable to write "+name, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeTable emits the fixed-width rendition with border rows; operator
// list columns are truncated at a fixed width with an ellipsis marker.
func (w *Writer) writeTable(name string, header []string, rows [][]string, trailer string) error {
	f, err := w.fs.Create(path.Join(w.outputDir, name))
	if err != nil {
		return errors.InternalError(EntityReport, "unable to create "+name, err)
	}
	defer f.Close()

	table := tablewriter.NewWriter(f)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(true)
	for _, row := range rows {
		truncated := make([]string, len(row))
		for i, cell := range row {
			if isOperatorColumn(header[i]) {
				cell = truncateCell(cell, maxOperatorColumnWidth)
			}
			truncated[i] = cell
		}
		table.Append(truncated)
	}
	table.Render()

	if trailer != "" {
		if _, err := f.WriteString("\n" + trailer + "\n"); err != nil {
			return errors.InternalError(EntityReport, "unable to write "+name, err)
		}
	}
	return nil
}

func isOperatorColumn(header string) bool {
	switch header {
	case "Unsupported Execs", "Unsupported Expressions", "Potential Problems",
		"Unsupported Read File Formats and Types":
		return true
	default:
		return false
	}
}

func truncateCell(cell string, width int) string {
	runes := []rune(cell)
	if len(runes) <= width {
		return cell
	}
	return string(runes[:width-3]) + "..."
}

func joinOperators(ops []qualification.UnsupportedOperator, kind string) string {
	var names []string
	for _, op := range ops {
		if op.Kind == kind {
			names = append(names, op.Name)
		}
	}
	return strings.Join(names, ";")
}

func formatClusterTags(tags qualification.ClusterTagSet) string {
	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, name)
	}
	sort.Strings(names)
	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, name+"="+tags[name])
	}
	return strings.Join(pairs, ";")
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', 2, 64)
}
