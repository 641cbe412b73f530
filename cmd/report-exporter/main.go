package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/intellego-platform/report-exporter/internal/export"
	"github.com/intellego-platform/report-exporter/internal/handler"
	appI18n "github.com/intellego-platform/report-exporter/internal/i18n"
	"github.com/intellego-platform/report-exporter/internal/model"
	"github.com/intellego-platform/report-exporter/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "report-exporter",
		Short: "Hierarchical export of student progress reports to JSON",
	}

	exp := exportCmd()
	root.AddCommand(exp, exportReportCmd(), statsCmd(), serveCmd(), importCmd())

	// Make "export" the default when no subcommand is given.
	root.RunE = exp.RunE
	root.Flags().AddFlagSet(exp.Flags())

	return root
}

// addCommonFlags registers the flags shared by every subcommand.
func addCommonFlags(f *pflag.FlagSet) {
	f.String("db", "intellego.db", "SQLite database path")
	f.StringP("lang", "l", "es", "Output language (es, en)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

// addExportFlags registers the export configuration surface.
func addExportFlags(f *pflag.FlagSet) {
	f.String("base-path", export.DefaultBasePath, "Root directory of the exported file tree")
	f.Int("batch-size", 100, "Number of reports processed per batch")
	f.Bool("overwrite", false, "Overwrite existing export files")
	f.Bool("backup", false, "Back up existing files before overwriting")
	f.Bool("skip-validation", false, "Skip student/report validation")
	f.Bool("no-answers", false, "Export reports without their answers")
	f.String("from", "", "Only reports submitted on or after this date (YYYY-MM-DD)")
	f.String("to", "", "Only reports submitted on or before this date (YYYY-MM-DD)")
	f.StringSlice("subject", nil, "Only reports for these subjects (repeatable)")
	f.StringSlice("sede", nil, "Only reports for students of these sedes (repeatable)")
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all progress reports to the hierarchical JSON tree",
		RunE:  runExport,
	}
	addCommonFlags(cmd.Flags())
	addExportFlags(cmd.Flags())
	return cmd
}

func exportReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export-report <report-id>",
		Short: "Export a single report by ID",
		Args:  cobra.ExactArgs(1),
		RunE:  runExportReport,
	}
	addCommonFlags(cmd.Flags())
	addExportFlags(cmd.Flags())
	return cmd
}

func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show export statistics without writing any files",
		RunE:  runStats,
	}
	addCommonFlags(cmd.Flags())
	addExportFlags(cmd.Flags())
	return cmd
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP export API",
		RunE:  runServe,
	}
	addCommonFlags(cmd.Flags())
	cmd.Flags().StringP("addr", "a", ":8080", "HTTP listen address")
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <dataset.json>",
		Short: "Import a students/reports dataset into the database",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	}
	addCommonFlags(cmd.Flags())
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("REPORTER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("report-exporter")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/report-exporter")
	v.AddConfigPath("/etc/report-exporter")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// exportConfigFromFlags translates the flag surface into an export.Config.
func exportConfigFromFlags(v *viper.Viper) (export.Config, error) {
	cfg := export.DefaultConfig()
	cfg.BasePath = v.GetString("base-path")
	cfg.BatchSize = v.GetInt("batch-size")
	cfg.OverwriteExisting = v.GetBool("overwrite")
	cfg.CreateBackup = v.GetBool("backup")
	cfg.ValidateData = !v.GetBool("skip-validation")
	cfg.IncludeAnswers = !v.GetBool("no-answers")
	cfg.FilterBySubject = v.GetStringSlice("subject")
	cfg.FilterBySede = v.GetStringSlice("sede")

	from := v.GetString("from")
	to := v.GetString("to")
	if from != "" || to != "" {
		if from == "" || to == "" {
			return cfg, fmt.Errorf("--from and --to must be given together")
		}
		start, err := time.Parse("2006-01-02", from)
		if err != nil {
			return cfg, fmt.Errorf("parse --from: %w", err)
		}
		end, err := time.Parse("2006-01-02", to)
		if err != nil {
			return cfg, fmt.Errorf("parse --to: %w", err)
		}
		// The end date is inclusive.
		cfg.DateRange = &export.DateRange{Start: start, End: end.Add(24*time.Hour - time.Second)}
	}
	return cfg, nil
}

func openStore(v *viper.Viper) (*store.Store, error) {
	db, err := store.New(v.GetString("db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	if err := appI18n.Init(v.GetString("lang")); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	cfg, err := exportConfigFromFlags(v)
	if err != nil {
		return err
	}

	fmt.Println(appI18n.T("ExportStarting"))
	res := export.New(db).ExportAll(cmd.Context(), cfg)
	printRunSummary(res)

	if !res.Success {
		return fmt.Errorf("export run %s failed with %d error(s)", res.RunID, len(res.Errors))
	}
	return nil
}

func runExportReport(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	if err := appI18n.Init(v.GetString("lang")); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	cfg, err := exportConfigFromFlags(v)
	if err != nil {
		return err
	}

	res := export.New(db).ExportReport(cmd.Context(), args[0], cfg)
	printRunSummary(res)

	if !res.Success {
		return fmt.Errorf("export of report %s failed with %d error(s)", args[0], len(res.Errors))
	}
	return nil
}

func printRunSummary(res export.Result) {
	if res.Success {
		fmt.Println(appI18n.T("ExportCompleted"))
	} else {
		fmt.Println(appI18n.T("ExportFailed"))
	}
	if res.Success && res.TotalReportsProcessed == 0 {
		fmt.Println(appI18n.T("NoReportsFound"))
	}
	fmt.Println(appI18n.Td("ReportsProcessed", map[string]any{"Count": res.TotalReportsProcessed}))
	fmt.Println(appI18n.Td("FilesCreated", map[string]any{"Count": res.TotalFilesCreated}))
	fmt.Println(appI18n.Td("SkippedReports", map[string]any{"Count": res.SkippedReports}))
	fmt.Println(appI18n.Td("ErrorsEncountered", map[string]any{"Count": len(res.Errors)}))
	fmt.Println(appI18n.Td("WarningsGenerated", map[string]any{"Count": len(res.Warnings)}))
	fmt.Println(appI18n.Td("ProcessingTime", map[string]any{"Duration": res.Metrics.Duration.String()}))

	for _, e := range res.Errors {
		slog.Error("export error", "operation", e.Op, "error", e)
	}
}

func runStats(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	if err := appI18n.Init(v.GetString("lang")); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	cfg, err := exportConfigFromFlags(v)
	if err != nil {
		return err
	}

	stats, err := export.New(db).Statistics(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("calculate statistics: %w", err)
	}

	fmt.Println(appI18n.Td("TotalStudents", map[string]any{"Count": stats.TotalStudents}))
	fmt.Println(appI18n.Td("TotalReports", map[string]any{"Count": stats.TotalReports}))
	fmt.Println(appI18n.Td("EstimatedFiles", map[string]any{"Count": stats.EstimatedFiles}))

	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	h := handler.New(export.New(db))

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting export API", "addr", addr, "db", v.GetString("db"))
	return http.ListenAndServe(addr, r)
}

// dataset is the JSON shape accepted by the import command.
type dataset struct {
	Students []model.Student `json:"students"`
	Reports  []model.Report  `json:"reports"`
}

func runImport(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	if err := appI18n.Init(v.GetString("lang")); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}
	var ds dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return fmt.Errorf("parse %s: %w", args[0], err)
	}

	ctx := context.Background()
	for _, st := range ds.Students {
		if _, err := db.InsertStudent(ctx, st); err != nil {
			return fmt.Errorf("insert student %s: %w", st.StudentID, err)
		}
	}
	for _, r := range ds.Reports {
		if _, err := db.InsertReport(ctx, r); err != nil {
			return fmt.Errorf("insert report %s: %w", r.ID, err)
		}
	}

	fmt.Println(appI18n.Td("ImportCompleted", map[string]any{
		"Students": len(ds.Students),
		"Reports":  len(ds.Reports),
	}))
	return nil
}
