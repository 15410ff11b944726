// Package main runs the transcript audit worker: a poll loop that watches a
// folder (local directory tree or Supabase bucket) for new or updated sales
// transcripts, sends each one to the model for analysis, and persists both a
// report and a running memory of the conversation.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/neuralops/auditor/pkg/analyzer"
	"github.com/neuralops/auditor/pkg/config"
	"github.com/neuralops/auditor/pkg/dispatcher"
	"github.com/neuralops/auditor/pkg/ledger"
	"github.com/neuralops/auditor/pkg/llm/openai"
	"github.com/neuralops/auditor/pkg/logging"
	"github.com/neuralops/auditor/pkg/sink"
	"github.com/neuralops/auditor/pkg/source"
)

const version = "0.1.0"

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigFile  string
	Mode        string
	ShowVersion bool
}

func main() {
	cli := parseFlags()

	if cli.ShowVersion {
		fmt.Printf("Auditor v%s\n", version)
		return
	}

	// Create context with signal handling
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down gracefully...")
		cancel()
	}()

	if err := run(ctx, cli); err != nil && err != context.Canceled {
		cancel()
		log.Printf("Execution failed: %v", err)
		os.Exit(1)
	}
	cancel()
}

// parseFlags parses command line flags
func parseFlags() *CLIConfig {
	cli := &CLIConfig{}

	flag.StringVar(&cli.ConfigFile, "config", "", "Path to configuration file (YAML)")
	flag.StringVar(&cli.Mode, "mode", "", "Override source mode: local or cloud")
	flag.BoolVar(&cli.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Auditor - Sales Transcript Audit Worker\n\n")
		fmt.Fprintf(os.Stderr, "Usage: auditor [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Watch the local inputs/ tree\n")
		fmt.Fprintf(os.Stderr, "  auditor -mode local\n\n")
		fmt.Fprintf(os.Stderr, "  # Watch the Supabase input bucket\n")
		fmt.Fprintf(os.Stderr, "  auditor -config auditor.yaml -mode cloud\n\n")
	}

	flag.Parse()
	return cli
}

// run loads configuration, wires the collaborators, and drives the loop
// until the context is canceled.
func run(ctx context.Context, cli *CLIConfig) error {
	cfg, err := config.Load(cli.ConfigFile)
	if err != nil {
		return err
	}
	if cli.Mode != "" {
		cfg.Mode = config.Mode(cli.Mode)
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger, logErr := logging.NewLogger("main")
	if logErr != nil {
		log.Printf("Warning: file logging unavailable: %v", logErr)
	}
	defer logger.Close()

	provider, err := openai.NewProvider(cfg.LLM.APIKey,
		openai.WithBaseURL(cfg.LLM.BaseURL),
		openai.WithModel(cfg.LLM.Model),
		openai.WithTemperature(cfg.LLM.Temperature),
	)
	if err != nil {
		return fmt.Errorf("failed to create LLM provider: %w", err)
	}

	led, closeLedger, err := buildLedger(cfg)
	if err != nil {
		return err
	}
	defer closeLedger()

	src, snk, err := buildSourceAndSink(cfg)
	if err != nil {
		return err
	}

	an := analyzer.New(provider, analyzer.WithMaxInputTokens(cfg.LLM.MaxInputTokens))

	disp := dispatcher.New(src, led, an, snk,
		dispatcher.WithPollInterval(cfg.PollInterval()),
		dispatcher.WithBackoffInterval(cfg.BackoffInterval()),
	)

	logger.Infof("auditor v%s starting in %s mode (model=%s)", version, cfg.Mode, provider.GetModel())
	return disp.Run(ctx)
}

// buildLedger constructs the configured memory ledger backend.
func buildLedger(cfg *config.Config) (ledger.Ledger, func(), error) {
	switch cfg.Ledger.Driver {
	case "supabase":
		led, err := ledger.NewSupabaseLedger(cfg.Supabase.URL, cfg.Supabase.Key, cfg.Ledger.Table)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create supabase ledger: %w", err)
		}
		return led, func() {}, nil
	default:
		dir := cfg.Ledger.Dir
		if dir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, nil, fmt.Errorf("failed to locate home directory for ledger: %w", err)
			}
			dir = home + "/.auditor"
		}
		led, err := ledger.OpenSQLite(dir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite ledger: %w", err)
		}
		return led, func() { led.Close() }, nil
	}
}

// buildSourceAndSink constructs the work source and report sink for the
// configured mode.
func buildSourceAndSink(cfg *config.Config) (source.Source, sink.Sink, error) {
	if cfg.Mode == config.ModeCloud {
		src, err := source.NewSupabase(cfg.Supabase.URL, cfg.Supabase.Key, cfg.Supabase.InputBucket,
			source.WithOwnerPrefix(cfg.OwnerPrefix),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create bucket source: %w", err)
		}
		snk, err := sink.NewSupabase(cfg.Supabase.URL, cfg.Supabase.Key, cfg.Supabase.OutputBucket)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create bucket sink: %w", err)
		}
		return src, snk, nil
	}

	src, err := source.NewLocal(cfg.InputRoot, cfg.IncludePattern)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create local source: %w", err)
	}
	snk, err := sink.NewLocal(cfg.OutputRoot)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create local sink: %w", err)
	}
	return src, snk, nil
}
