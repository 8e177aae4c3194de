package main

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx as database/sql driver
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/triage-ai/denywatch/internal/classify"
	"github.com/triage-ai/denywatch/internal/config"
	"github.com/triage-ai/denywatch/internal/credentials"
	"github.com/triage-ai/denywatch/internal/export"
	"github.com/triage-ai/denywatch/internal/job"
	"github.com/triage-ai/denywatch/internal/runner"
	"github.com/triage-ai/denywatch/internal/sink"
	"github.com/triage-ai/denywatch/internal/source"
)

const dateLayout = "2006-01-02"

func newRunCmd() *cobra.Command {
	var (
		configPath string
		startArg   string
		endArg     string
		sourcesArg []string
		maxRecords int
		outputDir  string
		uploadURL  string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one extraction batch over a time window",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := parseWindow(startArg, endArg)
			if err != nil {
				return err
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return usageErr("%v", err)
			}
			if maxRecords > 0 {
				cfg.MaxRecords = maxRecords
			}
			if outputDir != "" {
				cfg.OutputDir = outputDir
			}
			if uploadURL != "" {
				cfg.UploadURL = uploadURL
			}

			selected, err := selectSources(cfg.Sources, sourcesArg)
			if err != nil {
				return err
			}

			logger := mustBuildLogger(cfg.LogLevel)
			defer logger.Sync() //nolint:errcheck // best-effort flush

			return runBatch(cmd, cfg, selected, start, end, logger)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file")
	cmd.Flags().StringVar(&startArg, "start", "", "Window start date (YYYY-MM-DD, inclusive)")
	cmd.Flags().StringVar(&endArg, "end", "", "Window end date (YYYY-MM-DD, exclusive)")
	cmd.Flags().StringSliceVar(&sourcesArg, "sources", nil, "Subset of sources to run (default: all configured)")
	cmd.Flags().IntVar(&maxRecords, "max-records", 0, "Per-source record cap (default from config)")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Directory for export files")
	cmd.Flags().StringVar(&uploadURL, "upload-url", "", "Upload collaborator base URL (empty disables upload)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")

	return cmd
}

// parseWindow validates the dates before any I/O. start must precede end.
func parseWindow(startArg, endArg string) (time.Time, time.Time, error) {
	start, err := time.Parse(dateLayout, startArg)
	if err != nil {
		return time.Time{}, time.Time{}, usageErr("invalid --start %q: %v", startArg, err)
	}
	end, err := time.Parse(dateLayout, endArg)
	if err != nil {
		return time.Time{}, time.Time{}, usageErr("invalid --end %q: %v", endArg, err)
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, usageErr("invalid range: start %s must precede end %s", startArg, endArg)
	}
	return start, end, nil
}

// selectSources filters the configured sources down to the requested
// subset, preserving configuration order.
func selectSources(configured []config.SourceConfig, requested []string) ([]config.SourceConfig, error) {
	if len(requested) == 0 {
		return configured, nil
	}

	wanted := make(map[source.Kind]bool, len(requested))
	for _, name := range requested {
		kind, err := source.ParseKind(name)
		if err != nil {
			return nil, usageErr("%v", err)
		}
		wanted[kind] = true
	}

	var out []config.SourceConfig
	for _, sc := range configured {
		kind, _ := source.ParseKind(sc.Kind)
		if wanted[kind] {
			out = append(out, sc)
		}
	}
	return out, nil
}

func runBatch(cmd *cobra.Command, cfg *config.Config, selected []config.SourceConfig, start, end time.Time, logger *zap.Logger) error {
	// Credential store: Postgres-backed when configured, env otherwise.
	var credStore credentials.Store
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer func() { _ = db.Close() }()
		if err := db.PingContext(cmd.Context()); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		credStore = credentials.NewPostgresStore(db, logger)
		logger.Info("postgres credential store connected")
	} else {
		credStore = credentials.NewEnvStore("DENYWATCH_SECRET")
	}
	credStore = credentials.Cached(credStore, cfg.CredentialTTL)

	// Sink: ClickHouse when configured, CSV files otherwise. The export
	// step only applies to file-backed output.
	var (
		eventSink sink.Sink
		exporter  runner.Exporter
	)
	if cfg.ClickHouseDSN != "" {
		ch, err := sink.NewClickHouseSink(cfg.ClickHouseDSN, logger)
		if err != nil {
			return fmt.Errorf("clickhouse sink: %w", err)
		}
		defer func() { _ = ch.Close() }()
		eventSink = ch
		logger.Info("clickhouse sink connected")
	} else {
		eventSink = sink.NewCSVSink(cfg.OutputDir, start.UTC().Format(dateLayout), logger)
		exporter = export.New(cfg.OutputDir, cfg.UploadURL, logger)
	}

	sources := make([]runner.Source, 0, len(selected))
	for _, sc := range selected {
		sc := sc
		kind, _ := source.ParseKind(sc.Kind)
		sources = append(sources, runner.Source{
			Kind:          kind,
			CredentialRef: sc.CredentialRef,
			Build: func(secret string) runner.JobRunner {
				client := source.NewHTTPClient(sc.Endpoint, secret, logger)
				retriever := source.NewRetriever(client, kind, sc.PageSize, cfg.MaxRecords, logger)
				return job.New(retriever, classifierFor(kind, sc, logger), eventSink, logger)
			},
		})
	}

	orch := runner.New(credStore, sources, exporter, logger)
	summary, err := orch.Run(cmd.Context(), start, end)
	if err != nil {
		return usageErr("%v", err)
	}

	fmt.Fprint(cmd.OutOrStdout(), summary.Render())

	if code := summary.Status.ExitCode(); code != 0 {
		return &exitError{code: code, err: fmt.Errorf("all extraction jobs failed")}
	}
	return nil
}

func classifierFor(kind source.Kind, sc config.SourceConfig, logger *zap.Logger) classify.Classifier {
	switch kind {
	case source.KindDlpRuleMatch:
		if sc.PolicyFilter == "" {
			logger.Warn("no DLP policy filter configured; only marker-tagged policies will be reported",
				zap.String("marker", classify.SurfaceMarker),
			)
		}
		return classify.NewDlpClassifier(sc.PolicyFilter)
	case source.KindContentFilterTelemetry:
		return classify.NewTelemetryClassifier()
	default:
		return classify.NewAuditClassifier()
	}
}
