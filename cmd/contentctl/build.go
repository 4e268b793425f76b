package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"security-content/internal/attack"
	"security-content/internal/builder"
	"security-content/internal/config"
	"security-content/internal/export"
	"security-content/internal/loader"
	"security-content/internal/logging"
	"security-content/internal/pipeline"
)

func runBuildCmd(args []string) {
	flags := flag.NewFlagSet("build", flag.ExitOnError)
	dir := flags.String("dir", "", "Content directory (overrides config)")
	output := flags.String("output", "", "Bundle output path (overrides config)")
	strict := flags.Bool("strict", false, "Fail detections with unresolved references")
	workers := flags.Int("workers", 0, "Number of build workers (overrides config)")
	allowFailures := flags.Bool("allow-failures", false, "Exit 0 even when some objects failed to build")
	flags.Parse(args)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *dir != "" {
		cfg.Content.Dir = *dir
	}
	if *output != "" {
		cfg.Export.OutputPath = *output
	}
	if *strict {
		cfg.Build.Strict = true
	}
	if *workers > 0 {
		cfg.Build.Workers = *workers
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging, os.Stderr)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", logging.ConfigSummary(cfg)...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Build.Timeout)
	defer cancel()

	code := runBuild(ctx, os.Stdout, cfg, logger)
	if code == 2 && *allowFailures {
		code = 0
	}
	os.Exit(code)
}

// runBuild builds the content tree described by cfg and exports the bundle.
// It returns 0 on success, 1 when the build could not run and 2 when it ran
// with failed objects.
func runBuild(ctx context.Context, w io.Writer, cfg *config.Config, logger *slog.Logger) int {
	src, err := attackSource(ctx, cfg.Attack)
	if err != nil {
		logger.Error("failed to open attack dataset", "source", cfg.Attack.Source, "error", err)
		return 1
	}
	provider := attack.NewProvider(src, attack.WithLogger(logger))

	p := pipeline.New(
		pipeline.Config{Workers: cfg.Build.Workers, Strict: cfg.Build.Strict},
		provider,
		pipeline.WithLogger(logger),
		pipeline.WithBuilderOptions(builder.WithLoader(loader.FileLoader{MaxBytes: cfg.Content.MaxFileSize})),
	)

	result, err := p.Run(ctx, cfg.Content.Dir)
	if err != nil {
		logger.Error("build failed", "dir", cfg.Content.Dir, "error", err)
		return 1
	}

	var uploader *export.S3Uploader
	if s3cfg := cfg.Export.S3; s3cfg.Enabled {
		uploader, err = export.NewS3Uploader(ctx, export.S3Config{
			Region:          s3cfg.Region,
			Bucket:          s3cfg.Bucket,
			Prefix:          s3cfg.Prefix,
			Endpoint:        s3cfg.Endpoint,
			AccessKeyID:     s3cfg.AccessKeyID,
			SecretAccessKey: s3cfg.SecretAccessKey,
			UsePathStyle:    s3cfg.UsePathStyle,
		}, logger)
		if err != nil {
			logger.Error("failed to create s3 uploader", "error", err)
			return 1
		}
	}

	bundle := export.NewBundle(result, version)
	report, err := export.NewExporter(cfg.Export.OutputPath, uploader, logger).Export(ctx, bundle)
	if err != nil {
		logger.Error("export failed", "error", err)
		return 1
	}

	printSummary(w, result, report)

	if len(result.Failures) > 0 {
		return 2
	}
	return 0
}

func attackSource(ctx context.Context, cfg config.AttackConfig) (attack.Source, error) {
	switch cfg.Source {
	case config.AttackSourceFile:
		return attack.FileSource{Path: cfg.File}, nil
	case config.AttackSourceRedis:
		return attack.NewRedisSource(ctx, attack.RedisConfig{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			Key:         cfg.Redis.Key,
			DialTimeout: cfg.Redis.DialTimeout,
		})
	default:
		return attack.EmbeddedSource{}, nil
	}
}

func printSummary(w io.Writer, result *pipeline.Result, report export.Report) {
	for _, f := range result.Failures {
		fmt.Fprintf(w, "  %s  %s: %v\n", statusLabel(false), f.Path, f.Err)
	}

	status := okStyle.Render("build succeeded")
	if len(result.Failures) > 0 {
		status = warnStyle.Render(fmt.Sprintf("build finished with %d failure(s)", len(result.Failures)))
	}

	body := fmt.Sprintf("%s\n\ndetections  %d\nfailures    %d\nduration    %s",
		status, len(result.Detections), len(result.Failures), result.Duration.Round(time.Millisecond))
	if report.Path != "" {
		body += "\nbundle      " + report.Path
	}
	if report.Location != "" {
		body += "\nuploaded    " + report.Location
	}
	fmt.Fprintln(w, summaryStyle.Render(body))
}
