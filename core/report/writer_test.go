package report_test

import (
	"encoding/csv"
	"path"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/goto/salt/log"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NvTimLiu/spark-rapids-tools/core/qualification"
	"github.com/NvTimLiu/spark-rapids-tools/core/report"
)

func sampleSummaries() []*qualification.AggregateSummary {
	return []*qualification.AggregateSummary{
		{
			AppID:               "local-1622043423018",
			AppName:             "Spark shell",
			AppDuration:         100_000,
			EstimatedGpuSpeedup: 3.4,
			Recommendation:      qualification.StronglyRecommended,
			EstimatedFrequency:  30,
		},
		{
			AppID:               "local-1623281204390",
			AppName:             "Nightly ETL",
			AppDuration:         200_000,
			EstimatedGpuSpeedup: 1.15,
			Recommendation:      qualification.NotRecommended,
			EstimatedFrequency:  30,
		},
		{
			AppID:               "local-1623281204999",
			AppName:             "Hourly Rollup",
			AppDuration:         50_000,
			EstimatedGpuSpeedup: 1.8,
			Recommendation:      qualification.Recommended,
			EstimatedFrequency:  30,
		},
	}
}

func readOutput(t *testing.T, fs afero.Fs, dir, name string) string {
	t.Helper()
	content, err := afero.ReadFile(fs, path.Join(dir, name))
	require.NoError(t, err)
	return string(content)
}

func TestSortSummaries(t *testing.T) {
	t.Run("descending puts the largest speedup first", func(t *testing.T) {
		summaries := sampleSummaries()

		report.SortSummaries(summaries, false)

		assert.Equal(t, "local-1622043423018", summaries[0].AppID)
		assert.Equal(t, "local-1623281204390", summaries[2].AppID)
	})

	t.Run("ascending puts the smallest speedup first", func(t *testing.T) {
		summaries := sampleSummaries()

		report.SortSummaries(summaries, true)

		assert.Equal(t, "local-1623281204390", summaries[0].AppID)
		assert.Equal(t, "local-1622043423018", summaries[2].AppID)
	})

	t.Run("equal speedups tie-break on app id", func(t *testing.T) {
		summaries := []*qualification.AggregateSummary{
			{AppID: "local-2", EstimatedGpuSpeedup: 2.0},
			{AppID: "local-1", EstimatedGpuSpeedup: 2.0},
		}

		report.SortSummaries(summaries, false)

		assert.Equal(t, "local-1", summaries[0].AppID)
	})
}

func TestApplyLimit(t *testing.T) {
	summaries := sampleSummaries()

	assert.Len(t, report.ApplyLimit(summaries, 2), 2)
	assert.Len(t, report.ApplyLimit(summaries, 0), 3)
	assert.Len(t, report.ApplyLimit(summaries, 10), 3)
}

func TestWriterWrite(t *testing.T) {
	t.Run("csv and table pair share rows", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writer := report.NewWriter(fs, log.NewNoop(), "/out")

		require.NoError(t, writer.Write(sampleSummaries(), report.Options{}))

		csvContent := readOutput(t, fs, "/out", report.SummaryCSVFile)
		records, err := csv.NewReader(strings.NewReader(csvContent)).ReadAll()
		require.NoError(t, err)
		assert.Len(t, records, 4, "header plus three data rows")
		assert.Equal(t, "App Name", records[0][0])
		assert.Equal(t, "Spark shell", records[1][0])

		tableContent := readOutput(t, fs, "/out", report.SummaryTextFile)
		assert.Contains(t, tableContent, "Spark shell")
		assert.Contains(t, tableContent, "local-1623281204390")
		assert.True(t, strings.HasPrefix(tableContent, "+"), "bordered table")
	})

	t.Run("free text round-trips through csv quoting", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writer := report.NewWriter(fs, log.NewNoop(), "/out")
		summaries := []*qualification.AggregateSummary{{
			AppID:   "local-1",
			AppName: `query "daily", step 2`,
		}}

		require.NoError(t, writer.Write(summaries, report.Options{}))

		csvContent := readOutput(t, fs, "/out", report.SummaryCSVFile)
		records, err := csv.NewReader(strings.NewReader(csvContent)).ReadAll()
		require.NoError(t, err)
		assert.Equal(t, `query "daily", step 2`, records[1][0])
	})

	t.Run("operator list columns are truncated in the table only", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writer := report.NewWriter(fs, log.NewNoop(), "/out")
		longList := "CollectLimit;MapInPandas;FlatMapGroupsInPandas"
		summaries := []*qualification.AggregateSummary{{
			AppID:   "local-1",
			AppName: "ETL",
			UnsupportedOperators: []qualification.UnsupportedOperator{
				{Name: "CollectLimit", Kind: "Exec", Reason: "disabled"},
				{Name: "MapInPandas", Kind: "Exec", Reason: "not supported"},
				{Name: "FlatMapGroupsInPandas", Kind: "Exec", Reason: "not supported"},
			},
		}}

		require.NoError(t, writer.Write(summaries, report.Options{}))

		csvContent := readOutput(t, fs, "/out", report.SummaryCSVFile)
		assert.Contains(t, csvContent, longList)

		tableContent := readOutput(t, fs, "/out", report.SummaryTextFile)
		assert.NotContains(t, tableContent, longList)
		assert.Contains(t, tableContent, longList[:22]+"...")
	})

	t.Run("truncation never splits a multi-byte rune", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writer := report.NewWriter(fs, log.NewNoop(), "/out")
		accented := strings.Repeat("é", 30)
		summaries := []*qualification.AggregateSummary{{
			AppID:   "local-1",
			AppName: "ETL",
			UnsupportedOperators: []qualification.UnsupportedOperator{
				{Name: accented, Kind: "Expression", Reason: "not supported"},
			},
		}}

		require.NoError(t, writer.Write(summaries, report.Options{}))

		tableContent := readOutput(t, fs, "/out", report.SummaryTextFile)
		assert.True(t, utf8.ValidString(tableContent))
		assert.Contains(t, tableContent, strings.Repeat("é", 22)+"...")
	})

	t.Run("per sql report carries plan trees in the text pair", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writer := report.NewWriter(fs, log.NewNoop(), "/out")
		summaries := []*qualification.AggregateSummary{{
			AppID:   "local-1",
			AppName: "ETL",
			PerSQL: []qualification.SQLSummary{{
				SQLID:               0,
				Description:         "count at <console>:24",
				Duration:            500,
				EstimatedGpuSpeedup: 2.0,
				Recommendation:      qualification.Recommended,
				PlanTree:            "Project\n└── Filter\n",
			}},
		}}

		require.NoError(t, writer.Write(summaries, report.Options{PerSQL: true}))

		csvContent := readOutput(t, fs, "/out", report.PerSQLCSVFile)
		records, err := csv.NewReader(strings.NewReader(csvContent)).ReadAll()
		require.NoError(t, err)
		assert.Len(t, records, 2)
		assert.Equal(t, "count at <console>:24", records[1][2])

		textContent := readOutput(t, fs, "/out", report.PerSQLTextFile)
		assert.Contains(t, textContent, "local-1 sql 0:")
		assert.Contains(t, textContent, "└── Filter")
	})

	t.Run("read schema column is opt-in", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writer := report.NewWriter(fs, log.NewNoop(), "/out")
		summaries := []*qualification.AggregateSummary{{AppID: "local-1", AppName: "ETL", ReadSchema: "id:int"}}

		require.NoError(t, writer.Write(summaries, report.Options{ReportReadSchema: true}))
		assert.Contains(t, readOutput(t, fs, "/out", report.SummaryCSVFile), "Read Schema")

		require.NoError(t, writer.Write(summaries, report.Options{}))
		assert.NotContains(t, readOutput(t, fs, "/out", report.SummaryCSVFile), "Read Schema")
	})

	t.Run("unsupported operators file sorts by kind then name", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writer := report.NewWriter(fs, log.NewNoop(), "/out")
		summaries := []*qualification.AggregateSummary{{
			AppID: "local-1",
			UnsupportedOperators: []qualification.UnsupportedOperator{
				{Name: "conv", Kind: "Expression", Reason: "not supported"},
				{Name: "CollectLimit", Kind: "Exec", Reason: "disabled"},
			},
		}}

		require.NoError(t, writer.Write(summaries, report.Options{}))

		records, err := csv.NewReader(strings.NewReader(readOutput(t, fs, "/out", report.UnsupportedOpsCSVFile))).ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, "CollectLimit", records[1][1])
		assert.Equal(t, "conv", records[2][1])
	})
}

func TestWriterStatus(t *testing.T) {
	fs := afero.NewMemMapFs()
	writer := report.NewWriter(fs, log.NewNoop(), "/out")
	tracker := qualification.NewStatusTracker()
	tracker.Record("/logs/a", qualification.StatusSuccess, "")
	tracker.Record("/logs/b", qualification.StatusFailure, "malformed header")
	tracker.Record("/logs/c", qualification.StatusUnknown, "gpu event log")

	require.NoError(t, writer.WriteStatus("3e1bbd4c", tracker))

	csvContent := readOutput(t, fs, "/out", report.StatusCSVFile)
	records, err := csv.NewReader(strings.NewReader(csvContent)).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 4)
	assert.Equal(t, []string{"/logs/b", "FAILURE", "malformed header"}, records[2])

	textContent := readOutput(t, fs, "/out", report.StatusTextFile)
	assert.Contains(t, textContent, "run 3e1bbd4c: 1 success, 1 failure, 1 unknown")
}

func TestWriterRoll(t *testing.T) {
	t.Run("numbered summary pair", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writer := report.NewWriter(fs, log.NewNoop(), "/out")

		names, err := writer.WriteRoll(3, sampleSummaries(), report.Options{})

		require.NoError(t, err)
		assert.Equal(t, []string{
			"rapids_4_spark_qualification_output_3.csv",
			"rapids_4_spark_qualification_output_3.log",
		}, names)
		assert.NotEmpty(t, readOutput(t, fs, "/out", names[0]))

		writer.Remove(names...)
		_, err = fs.Stat(path.Join("/out", names[0]))
		assert.Error(t, err)
	})

	t.Run("per sql option adds a numbered per sql pair", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writer := report.NewWriter(fs, log.NewNoop(), "/out")
		summaries := []*qualification.AggregateSummary{{
			AppID:   "local-1",
			AppName: "ETL",
			PerSQL: []qualification.SQLSummary{{
				SQLID:          0,
				Description:    "count at <console>:24",
				Duration:       500,
				Recommendation: qualification.Recommended,
			}},
		}}

		names, err := writer.WriteRoll(0, summaries, report.Options{PerSQL: true})

		require.NoError(t, err)
		assert.Equal(t, []string{
			"rapids_4_spark_qualification_output_0.csv",
			"rapids_4_spark_qualification_output_0.log",
			"rapids_4_spark_qualification_output_persql_0.csv",
			"rapids_4_spark_qualification_output_persql_0.log",
		}, names)
		assert.Contains(t, readOutput(t, fs, "/out", names[2]), "count at <console>:24")
	})
}
