package qualification

import (
	"github.com/google/uuid"
	"github.com/goto/salt/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/NvTimLiu/spark-rapids-tools/client/cmd/internal/logger"
	lerrors "github.com/NvTimLiu/spark-rapids-tools/client/local/errors"
	"github.com/NvTimLiu/spark-rapids-tools/config"
	"github.com/NvTimLiu/spark-rapids-tools/core/eventlog"
	"github.com/NvTimLiu/spark-rapids-tools/core/plan"
	"github.com/NvTimLiu/spark-rapids-tools/core/qualification"
	"github.com/NvTimLiu/spark-rapids-tools/core/qualification/service"
	"github.com/NvTimLiu/spark-rapids-tools/core/report"
)

type qualificationCommand struct {
	logger log.Logger
	fs     afero.Fs

	configFilePath    string
	outputDirectory   string
	perSQL            bool
	order             string
	limit             int
	applicationName   string
	reportReadSchema  bool
	mlFunctions       bool
	platform          string
	speedupFactorFile string
	typeSupportFile   string
	maxWorkers        int

	cfg *config.Config
}

// NewQualificationCommand initializes the batch qualification command.
func NewQualificationCommand() *cobra.Command {
	qualify := &qualificationCommand{
		logger: logger.NewClientLogger(),
		fs:     afero.NewOsFs(),
	}

	cmd := &cobra.Command{
		Use:   "qualification <event-log> [<event-log>...]",
		Short: "Estimate per-application GPU speedup from event logs",
		Long: "Each event log is replayed into an application model, its execution " +
			"plan operators are scored for GPU support and a calibrated speedup " +
			"estimate with a recommendation bucket is reported.",
		Example: `... qualification /logs/app-1 /logs/app-2.gz   # qualify two logs
... qualification --per-sql -n 20 /logs/*        # top 20 with per-SQL detail
... qualification --platform emr /logs/rolling/  # rolling directory, EMR factors`,
		Args:    cobra.MinimumNArgs(1),
		RunE:    qualify.RunE,
		PreRunE: qualify.PreRunE,
	}

	cmd.Flags().StringVarP(&qualify.configFilePath, "config", "c", config.EmptyPath, "File path for run configuration")
	cmd.Flags().StringVarP(&qualify.outputDirectory, "output-directory", "o", ".", "Directory the report files are written to")
	cmd.Flags().BoolVar(&qualify.perSQL, "per-sql", false, "Also report per-SQL execution summaries")
	cmd.Flags().StringVar(&qualify.order, "order", config.OrderDescending, "Report ordering by estimated speedup, asc or desc")
	cmd.Flags().IntVarP(&qualify.limit, "num-output-rows", "n", -1, "Maximum data rows in the report, negative for all")
	cmd.Flags().StringVar(&qualify.applicationName, "application-name", "", "Only report applications whose name contains this substring, prefix with ~ to negate")
	cmd.Flags().BoolVar(&qualify.reportReadSchema, "report-read-schema", false, "Include the full read-schema column in the report")
	cmd.Flags().BoolVar(&qualify.mlFunctions, "ml-functions", false, "Detect and report ML function use per application")
	cmd.Flags().StringVar(&qualify.platform, "platform", "onprem", "Platform identifier selecting the bundled speedup tables")
	cmd.Flags().StringVar(&qualify.speedupFactorFile, "speedup-factor-file", "", "Custom operator speedup table, header CPUOperator,Score")
	cmd.Flags().StringVar(&qualify.typeSupportFile, "type-support-file", "", "Custom data-type support table, header Format,Direction,<TYPE...>")
	cmd.Flags().IntVar(&qualify.maxWorkers, "max-workers", 0, "Event logs processed concurrently, 0 for the default")

	return cmd
}

// PreRunE folds the optional config file and the command flags into one
// validated configuration. Flags set on the command line win.
func (q *qualificationCommand) PreRunE(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(q.configFilePath)
	if err != nil {
		return lerrors.NewCmdError(err, lerrors.ExitCodeConfigError)
	}

	flagOverrides := map[string]func(){
		"output-directory":    func() { cfg.OutputDirectory = q.outputDirectory },
		"per-sql":             func() { cfg.PerSQL = q.perSQL },
		"order":               func() { cfg.Order = q.order },
		"num-output-rows":     func() { cfg.Limit = q.limit },
		"application-name":    func() { cfg.ApplicationName = q.applicationName },
		"report-read-schema":  func() { cfg.ReportReadSchema = q.reportReadSchema },
		"ml-functions":        func() { cfg.MlFunctions = q.mlFunctions },
		"platform":            func() { cfg.Platform = q.platform },
		"speedup-factor-file": func() { cfg.SpeedupFactorFile = q.speedupFactorFile },
		"type-support-file":   func() { cfg.TypeSupportFile = q.typeSupportFile },
		"max-workers":         func() { cfg.MaxWorkers = q.maxWorkers },
	}
	for name, apply := range flagOverrides {
		if cmd.Flags().Changed(name) {
			apply()
		}
	}

	if err := cfg.Validate(); err != nil {
		return lerrors.NewCmdError(err, lerrors.ExitCodeConfigError)
	}
	q.cfg = cfg
	return nil
}

func (q *qualificationCommand) RunE(cmd *cobra.Command, args []string) error {
	table, err := q.loadTables()
	if err != nil {
		// configuration errors are fatal before any log is processed
		return lerrors.NewCmdError(err, lerrors.ExitCodeConfigError)
	}

	classifier := plan.NewClassifier(q.logger, table)
	reader := eventlog.NewReader(q.fs, q.logger)
	builder := service.NewAppModelBuilder(q.logger, reader, q.cfg.MlFunctions)
	engine := service.NewAggregationEngine(q.logger, classifier)
	tracker := qualification.NewStatusTracker()
	qualifier := service.NewQualifier(q.logger, builder, engine, tracker, q.cfg.MaxWorkers, q.cfg.ApplicationName)

	q.logger.Info("qualifying %d event logs on platform [%s]", len(args), q.cfg.Platform)
	summaries := qualifier.Run(cmd.Context(), args)

	report.SortSummaries(summaries, q.cfg.Order == config.OrderAscending)
	summaries = report.ApplyLimit(summaries, q.cfg.Limit)

	writer := report.NewWriter(q.fs, q.logger, q.cfg.OutputDirectory)
	opts := report.Options{
		OrderAscending:   q.cfg.Order == config.OrderAscending,
		Limit:            q.cfg.Limit,
		PerSQL:           q.cfg.PerSQL,
		ReportReadSchema: q.cfg.ReportReadSchema,
	}
	if err := writer.Write(summaries, opts); err != nil {
		return err
	}
	if err := writer.WriteStatus(uuid.New().String(), tracker); err != nil {
		return err
	}

	success, failure, unknown := tracker.Counts()
	q.logger.Info("qualification finished: %d success, %d failure, %d unknown", success, failure, unknown)
	if tracker.AllFailed() {
		q.logger.Warn("every event log failed to process, see the status report")
	}
	// per-log failures never escalate into a nonzero exit code
	return nil
}

func (q *qualificationCommand) loadTables() (*plan.SpeedupFactorTable, error) {
	table, err := plan.LoadPlatformTable(q.cfg.Platform)
	if err != nil {
		return nil, err
	}
	if q.cfg.SpeedupFactorFile != "" {
		if err := table.LoadSpeedupFactorFile(q.fs, q.cfg.SpeedupFactorFile); err != nil {
			return nil, err
		}
	}
	if q.cfg.TypeSupportFile != "" {
		if err := table.MergeTypeSupportFile(q.fs, q.cfg.TypeSupportFile); err != nil {
			return nil, err
		}
	}
	return table, nil
}
