package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/supercrema/adforge/internal/engine"
	"github.com/supercrema/adforge/pkg/clients"
	"github.com/supercrema/adforge/pkg/config"
	"github.com/supercrema/adforge/pkg/diag"
	"github.com/supercrema/adforge/pkg/importer"
	"github.com/supercrema/adforge/pkg/logger"
	"github.com/supercrema/adforge/pkg/platform/core"
	"github.com/supercrema/adforge/pkg/platform/registry"
	"github.com/supercrema/adforge/pkg/template"

	// Import all platform adapters to register them
	_ "github.com/supercrema/adforge/pkg/platform/meta"
	_ "github.com/supercrema/adforge/pkg/platform/unity"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "adforge",
		Short: "Adforge - batch creative upload for ad networks",
		Long: `Adforge imports video creatives from remote storage, validates them
against the chosen ad format, and uploads them in parallel to ad
networks, inheriting text defaults from the destination's active ads.`,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Adforge v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "networks",
		Short: "List supported ad networks",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range registry.List() {
				fmt.Printf("  - %s\n", name)
			}
		},
	})

	var (
		configFile  string
		batchFile   string
		stageDir    string
		timeout     time.Duration
		logLevel    string
		metricsAddr string
		driveCreds  string
		driveToken  string
		gcsCreds    string
		s3Region    string
	)

	uploadCmd := &cobra.Command{
		Use:   "upload",
		Short: "Run a batch creative upload",
		Long: `Run a batch creative upload from a YAML submission file.

Example:
  adforge upload --config config.yaml --batch batch.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(uploadOptions{
				configFile:  configFile,
				batchFile:   batchFile,
				stageDir:    stageDir,
				timeout:     timeout,
				logLevel:    logLevel,
				metricsAddr: metricsAddr,
				driveCreds:  driveCreds,
				driveToken:  driveToken,
				gcsCreds:    gcsCreds,
				s3Region:    s3Region,
			})
		},
	}

	uploadCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to YAML configuration file (required)")
	uploadCmd.Flags().StringVarP(&batchFile, "batch", "b", "", "Path to YAML batch submission file (required)")
	_ = uploadCmd.MarkFlagRequired("config")
	_ = uploadCmd.MarkFlagRequired("batch")

	uploadCmd.Flags().StringVar(&stageDir, "stage-dir", "", "Directory for staged media (default: a temp dir removed on exit)")
	uploadCmd.Flags().DurationVar(&timeout, "timeout", 2*time.Hour, "Overall batch timeout")
	uploadCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	uploadCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Address to serve Prometheus metrics on (e.g. :9090)")
	uploadCmd.Flags().StringVar(&driveCreds, "drive-credentials", "", "Google service account JSON for Drive sources")
	uploadCmd.Flags().StringVar(&driveToken, "drive-token", "", "User OAuth access token for Drive sources (alternative to --drive-credentials)")
	uploadCmd.Flags().StringVar(&gcsCreds, "gcs-credentials", "", "Google service account JSON for GCS sources")
	uploadCmd.Flags().StringVar(&s3Region, "s3-region", "", "AWS region for S3 sources")

	root.AddCommand(uploadCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type uploadOptions struct {
	configFile  string
	batchFile   string
	stageDir    string
	timeout     time.Duration
	logLevel    string
	metricsAddr string
	driveCreds  string
	driveToken  string
	gcsCreds    string
	s3Region    string
}

func runUpload(opts uploadOptions) error {
	cfg := config.NewBaseConfig("adforge", "engine")
	if err := config.Load(opts.configFile, cfg); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if opts.logLevel != "" {
		cfg.Observability.LogLevel = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Encoding:    "json",
		OutputPaths: []string{"stderr"},
	}); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	log := logger.With(zap.String("component", "adforge-cli"))

	batch, err := engine.LoadBatch(opts.batchFile)
	if err != nil {
		return err
	}
	jobs, err := batch.BuildJobs()
	if err != nil {
		return err
	}

	log.Info("starting batch upload",
		zap.String("network", batch.Network),
		zap.String("mode", batch.Mode),
		zap.Int("jobs", len(jobs)))

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	if opts.metricsAddr != "" && cfg.Observability.EnableMetrics {
		go serveMetrics(opts.metricsAddr, log)
	}

	adapter, err := registry.Create(batch.Network, cfg)
	if err != nil {
		return err
	}
	if _, err := adapter.Authenticate(ctx, credentialsFromConfig(cfg)); err != nil {
		return fmt.Errorf("authentication failed for %s: %w", batch.Network, err)
	}

	stageDir := opts.stageDir
	if stageDir == "" {
		stageDir, err = os.MkdirTemp("", "adforge-stage-*")
		if err != nil {
			return err
		}
		defer os.RemoveAll(stageDir)
	}

	fetchers, err := buildFetchers(ctx, opts)
	if err != nil {
		return err
	}

	retry := &clients.RetryPolicy{
		MaxAttempts:     cfg.Reliability.RetryAttempts,
		InitialDelay:    cfg.Reliability.RetryDelay,
		MaxDelay:        cfg.Reliability.MaxRetryDelay,
		Multiplier:      cfg.Reliability.RetryMultiplier,
		RandomizeFactor: 0.25,
	}

	imp := importer.New(stageDir, cfg.Performance.ImportWorkers, retry, fetchers...)
	resolver := template.NewResolver(cfg.Template.CacheTTL)
	diagToken := os.Getenv("ADFORGE_DIAG_TOKEN")
	diagCh := diag.NewChannel(cfg.Observability.DiagnosticBufferSize, diagToken)

	controller := engine.NewController(cfg, adapter, imp, resolver, diagCh)

	start := time.Now()
	reports := controller.Run(ctx, jobs)

	out, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	failed := 0
	for _, r := range reports {
		if r.Status != engine.StatusSucceeded {
			failed++
		}
	}
	log.Info("batch finished",
		zap.Int("jobs", len(reports)),
		zap.Int("failed", failed),
		zap.Duration("duration", time.Since(start)))

	if failed > 0 {
		// Full diagnostic records go to stderr, and only for holders of
		// the elevated token; the stdout report stays user-safe.
		if diagToken != "" {
			if records, err := json.MarshalIndent(diagCh.Records(diagToken), "", "  "); err == nil {
				fmt.Fprintln(os.Stderr, string(records))
			}
		}
		return fmt.Errorf("%d of %d jobs did not succeed", failed, len(reports))
	}
	return nil
}

// credentialsFromConfig maps the config credential keys onto the generic
// adapter credentials. Network-specific keys stay available in Extra.
func credentialsFromConfig(cfg *config.BaseConfig) core.Credentials {
	token := cfg.Security.Credential("access_token")
	if token == "" {
		token = cfg.Security.Credential("api_key")
	}
	account := cfg.Security.Credential("account_id")
	if account == "" {
		account = cfg.Security.Credential("organization_id")
	}
	return core.Credentials{
		AccessToken: token,
		AccountID:   account,
		Extra:       cfg.Security.Credentials,
	}
}

// buildFetchers wires the storage backends the flags enable. Local files
// are always supported.
func buildFetchers(ctx context.Context, opts uploadOptions) ([]importer.Fetcher, error) {
	fetchers := []importer.Fetcher{importer.NewLocalFetcher()}

	switch {
	case opts.driveCreds != "":
		f, err := importer.NewDriveFetcher(ctx, opts.driveCreds)
		if err != nil {
			return nil, fmt.Errorf("drive fetcher: %w", err)
		}
		fetchers = append(fetchers, f)
	case opts.driveToken != "":
		f, err := importer.NewDriveFetcherWithToken(ctx, opts.driveToken)
		if err != nil {
			return nil, fmt.Errorf("drive fetcher: %w", err)
		}
		fetchers = append(fetchers, f)
	}
	if opts.gcsCreds != "" {
		f, err := importer.NewGCSFetcher(ctx, opts.gcsCreds)
		if err != nil {
			return nil, fmt.Errorf("gcs fetcher: %w", err)
		}
		fetchers = append(fetchers, f)
	}
	if opts.s3Region != "" {
		f, err := importer.NewS3Fetcher(ctx, opts.s3Region)
		if err != nil {
			return nil, fmt.Errorf("s3 fetcher: %w", err)
		}
		fetchers = append(fetchers, f)
	}

	return fetchers, nil
}

func serveMetrics(addr string, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	log.Info("serving metrics", zap.String("addr", addr))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Warn("metrics server stopped", zap.Error(err))
	}
}
