package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pmdata/polymarket-data/internal/clob"
	"github.com/pmdata/polymarket-data/internal/collector"
	"github.com/pmdata/polymarket-data/internal/config"
	"github.com/pmdata/polymarket-data/internal/database"
	"github.com/pmdata/polymarket-data/internal/export"
	"github.com/pmdata/polymarket-data/internal/gamma"
	"github.com/pmdata/polymarket-data/internal/logging"
	"github.com/pmdata/polymarket-data/internal/store"
	"github.com/pmdata/polymarket-data/internal/version"
)

// app holds what every subcommand needs once the root command has run.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	pool   *pgxpool.Pool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	a := &app{}

	root := &cobra.Command{
		Use:           "pm",
		Short:         "Polymarket orderbook pipeline: ingest, track, collect, export",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Optional .env for local secrets; absence is fine.
			_ = godotenv.Load()

			cfg, err := config.LoadAndValidate(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger, err := logging.New(cfg.Logging)
			if err != nil {
				return fmt.Errorf("configure logging: %w", err)
			}
			slog.SetDefault(logger)

			logger.Info("starting pm",
				"version", version.Version,
				"commit", version.Commit,
				"command", cmd.Name(),
				"config", configPath,
			)

			pool, err := database.Connect(cmd.Context(), cfg.Database)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}

			a.cfg = cfg
			a.logger = logger
			a.pool = pool
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.pool != nil {
				a.pool.Close()
			}
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "configs/pm.yaml", "path to config file")

	root.AddCommand(
		newMigrateCmd(a),
		newIngestMarketsCmd(a),
		newTrackMarketsCmd(a),
		newRefreshEndedCmd(a),
		newAutoTrackCmd(a),
		newCollectCmd(a),
		newExportCmd(a),
	)

	return root
}

func newMigrateCmd(a *app) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQL migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			applied, err := database.Migrate(cmd.Context(), a.pool, dir, a.logger)
			if err != nil {
				return err
			}
			a.logger.Info("migrations complete", "applied", applied)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "migrations", "directory with *.sql migration files")
	return cmd
}

func newIngestMarketsCmd(a *app) *cobra.Command {
	var (
		eventID int64
		limit   int
		pages   int
	)

	cmd := &cobra.Command{
		Use:   "ingest-markets",
		Short: "Ingest market metadata into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := gammaClient(a.cfg, a.logger)

			var eid *int64
			if cmd.Flags().Changed("event-id") {
				eid = &eventID
			}

			st := store.New(a.pool, a.logger)
			n, err := gamma.Ingest(cmd.Context(), client, st, eid, limit, pages, a.logger)
			if err != nil {
				return err
			}
			a.logger.Info("market ingestion complete", "upserted", n)
			return nil
		},
	}

	cmd.Flags().Int64Var(&eventID, "event-id", 0, "restrict to a single event")
	cmd.Flags().IntVar(&limit, "limit", 1000, "markets per page")
	cmd.Flags().IntVar(&pages, "pages", 1, "maximum pages to fetch")
	return cmd
}

func newTrackMarketsCmd(a *app) *cobra.Command {
	var (
		session   string
		marketIDs string
	)

	cmd := &cobra.Command{
		Use:   "track-markets",
		Short: "Add markets to the tracked set by id",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseMarketIDs(marketIDs)
			if err != nil {
				return err
			}

			st := store.New(a.pool, a.logger)
			n, err := st.TrackMarkets(cmd.Context(), ids, session)
			if err != nil {
				return err
			}
			a.logger.Info("markets tracked", "session", session, "tracked", n)
			return nil
		},
	}

	cmd.Flags().StringVar(&session, "session", "", "session tag to attach")
	cmd.Flags().StringVar(&marketIDs, "market-ids", "", "comma-separated market ids, e.g. 123,456")
	cmd.MarkFlagRequired("session")
	cmd.MarkFlagRequired("market-ids")
	return cmd
}

func newRefreshEndedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh-ended",
		Short: "Flag tracked markets whose market row has ended",
		RunE: func(cmd *cobra.Command, args []string) error {
			st := store.New(a.pool, a.logger)
			n, err := st.RefreshEndedFlags(cmd.Context())
			if err != nil {
				return err
			}
			a.logger.Info("ended flags refreshed", "updated", n)
			return nil
		},
	}
}

func newAutoTrackCmd(a *app) *cobra.Command {
	var (
		session               string
		topN                  int
		minLiquidity          float64
		minVolume             float64
		endsWithinHours       float64
		category              string
		includeClosed         bool
		includeTracked        bool
		allowMissingTokenKeys bool
		dryRun                bool
	)

	cmd := &cobra.Command{
		Use:   "auto-track",
		Short: "Select and track hot markets by policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			policy := store.AutoTrackPolicy{
				Session:               session,
				TopN:                  topN,
				IncludeClosed:         includeClosed,
				IncludeAlreadyTracked: includeTracked,
				RequireTokenKeys:      !allowMissingTokenKeys,
			}
			if cmd.Flags().Changed("min-liquidity") {
				policy.MinLiquidity = &minLiquidity
			}
			if cmd.Flags().Changed("min-volume") {
				policy.MinVolume = &minVolume
			}
			if cmd.Flags().Changed("ends-within-hours") {
				policy.EndsWithinHours = &endsWithinHours
			}
			if cmd.Flags().Changed("category") {
				policy.Category = &category
			}

			st := store.New(a.pool, a.logger)
			tracked, selected, err := st.AutoTrackMarkets(cmd.Context(), policy, dryRun)
			if err != nil {
				return err
			}

			sample := selected
			if len(sample) > 25 {
				sample = sample[:25]
			}
			a.logger.Info("auto-track complete",
				"session", session,
				"dry_run", dryRun,
				"selected", len(selected),
				"tracked", tracked,
				"sample_market_ids", sample,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&session, "session", "", "session tag to attach")
	cmd.Flags().IntVar(&topN, "top", 200, "maximum markets to select")
	cmd.Flags().Float64Var(&minLiquidity, "min-liquidity", 0, "minimum liquidity")
	cmd.Flags().Float64Var(&minVolume, "min-volume", 0, "minimum volume")
	cmd.Flags().Float64Var(&endsWithinHours, "ends-within-hours", 0, "only markets ending within this horizon")
	cmd.Flags().StringVar(&category, "category", "", "restrict to a category")
	cmd.Flags().BoolVar(&includeClosed, "include-closed", false, "include closed/resolved markets")
	cmd.Flags().BoolVar(&includeTracked, "include-already-tracked", false, "include markets already tracked")
	cmd.Flags().BoolVar(&allowMissingTokenKeys, "allow-missing-token-keys", false, "skip the raw_json token-key guard")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "select without writing")
	cmd.MarkFlagRequired("session")
	return cmd
}

func newCollectCmd(a *app) *cobra.Command {
	var (
		batch      int
		topN       int
		loop       time.Duration
		pause      time.Duration
		iterations int
	)

	cmd := &cobra.Command{
		Use:   "collect-orderbooks",
		Short: "Poll tracked tokens and persist snapshots plus features",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := a.cfg.Collector
			if cmd.Flags().Changed("batch") {
				cc.BatchSize = batch
			}
			if cmd.Flags().Changed("top-n") {
				cc.TopN = topN
			}
			if cmd.Flags().Changed("loop-interval") {
				cc.LoopInterval = loop
			}
			if cmd.Flags().Changed("batch-pause") {
				cc.BatchPause = pause
			}

			st := store.New(a.pool, a.logger)
			fetcher := clobClient(a.cfg, a.logger)

			col := collector.New(st, fetcher, st, collector.Config{
				BatchSize:    cc.BatchSize,
				TopN:         cc.TopN,
				LoopInterval: cc.LoopInterval,
				BatchPause:   cc.BatchPause,
				Iterations:   iterations,
			}, a.logger)

			err := col.Run(cmd.Context())
			if errors.Is(err, context.Canceled) {
				a.logger.Info("collector stopped")
				return nil
			}
			return err
		},
	}

	cmd.Flags().IntVar(&batch, "batch", 0, "tokens per batch (default from config)")
	cmd.Flags().IntVar(&topN, "top-n", 0, "ladder depth to persist (default from config)")
	cmd.Flags().DurationVar(&loop, "loop-interval", 0, "sleep between iterations (default from config)")
	cmd.Flags().DurationVar(&pause, "batch-pause", 0, "sleep between batches (default from config)")
	cmd.Flags().IntVar(&iterations, "iterations", 0, "iteration bound, 0 runs forever")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var (
		marketID     int64
		tokenID      string
		start        string
		end          string
		expected     float64
		tolerance    float64
		topNFlatten  int
		outClean     string
		outCorrupted string
		levelsPq     string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the clean dataset and flagged corrupted rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := export.Params{
				TopNFlatten: topNFlatten,
				Cadence: export.CadenceConfig{
					ExpectedSeconds:  expected,
					ToleranceSeconds: tolerance,
				},
				OutClean:      outClean,
				OutCorrupted:  outCorrupted,
				LevelsParquet: levelsPq,
			}

			if cmd.Flags().Changed("market-id") {
				params.MarketID = &marketID
			}
			if cmd.Flags().Changed("token-id") {
				params.TokenID = &tokenID
			}

			var err error
			if params.StartTS, err = parseTS(start); err != nil {
				return fmt.Errorf("parse --start: %w", err)
			}
			if params.EndTS, err = parseTS(end); err != nil {
				return fmt.Errorf("parse --end: %w", err)
			}

			exp := export.New(a.pool, a.logger)
			cleanN, badN, err := exp.Run(cmd.Context(), params)
			if err != nil {
				return err
			}
			a.logger.Info("export finished",
				"clean_rows", cleanN,
				"corrupted_rows", badN,
			)
			return nil
		},
	}

	cmd.Flags().Int64Var(&marketID, "market-id", 0, "restrict to one market")
	cmd.Flags().StringVar(&tokenID, "token-id", "", "restrict to one token")
	cmd.Flags().StringVar(&start, "start", "", "window start, RFC3339")
	cmd.Flags().StringVar(&end, "end", "", "window end, RFC3339")
	cmd.Flags().Float64Var(&expected, "expected-seconds", 0, "expected sampling cadence, 0 disables the grid check")
	cmd.Flags().Float64Var(&tolerance, "tolerance-seconds", 0.5, "allowed deviation from the cadence")
	cmd.Flags().IntVar(&topNFlatten, "top-n-flatten", 10, "ladder depth to flatten into columns")
	cmd.Flags().StringVar(&outClean, "out-clean", "clean_orderbook_dataset.csv", "clean output path")
	cmd.Flags().StringVar(&outCorrupted, "out-corrupted", "flagged_corrupted_rows.csv", "corrupted output path")
	cmd.Flags().StringVar(&levelsPq, "levels-parquet", "", "optionally write clean ladders as long-form parquet")
	return cmd
}

func gammaClient(cfg *config.Config, logger *slog.Logger) *gamma.Client {
	opts := []gamma.ClientOption{
		gamma.WithTimeout(cfg.Gamma.Timeout),
		gamma.WithRetries(cfg.Gamma.MaxRetries, cfg.Gamma.RetryBackoff),
		gamma.WithLogger(logger),
	}
	if cfg.Gamma.UserAgent != "" {
		opts = append(opts, gamma.WithUserAgent(cfg.Gamma.UserAgent))
	}
	return gamma.NewClient(cfg.Gamma.BaseURL, opts...)
}

func clobClient(cfg *config.Config, logger *slog.Logger) *clob.Client {
	opts := []clob.ClientOption{
		clob.WithTimeout(cfg.Clob.Timeout),
		clob.WithRetries(cfg.Clob.MaxRetries, cfg.Clob.RetryBackoff),
		clob.WithRateLimit(cfg.Clob.RateLimit.RequestsPerSecond, cfg.Clob.RateLimit.Burst),
		clob.WithLogger(logger),
	}
	if cfg.Clob.UserAgent != "" {
		opts = append(opts, clob.WithUserAgent(cfg.Clob.UserAgent))
	}
	return clob.NewClient(cfg.Clob.BaseURL, opts...)
}

func parseMarketIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad market id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no market ids in %q", s)
	}
	return ids, nil
}

func parseTS(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	utc := ts.UTC()
	return &utc, nil
}
