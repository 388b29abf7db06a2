package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/scrubber"
	logAdapter "github.com/bft-labs/scrubber/internal/adapters/log"
	"github.com/bft-labs/scrubber/internal/cliconfig"
)

const helpDescription = `
Rewrite the tagged spans of a line-oriented dataset through a text-generation
service, in resumable batches.

Highlights:
  - Only text between the start and end tags is sent; every other byte of
    every line is kept as is.
  - Progress is checkpointed after each batch, so an interrupted run resumes
    where it stopped (file, sqlite:// or postgres:// checkpoints).
  - Failed batches keep their original text instead of aborting the run.
  - Configure via file, env (SCRUBBER_*), or flags.
`

var longHelp = strings.TrimSpace(helpDescription)

var exampleUsage = strings.TrimSpace(`
  scrubber --input train.jsonl --output train.clean.jsonl
  scrubber --config $HOME/.scrubber/config.toml --checkpoint sqlite://state.db?name=train
  scrubber --provider echo --batch-interval 0s --watch
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	log := logAdapter.NewConsoleLogger(cfg.LogLevel)

	root := &cobra.Command{
		Use:           "scrubber",
		Short:         "Sanitize tagged spans of a dataset with a text-generation service",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Load config file first (default $HOME/.scrubber/config.toml), then env, then flags
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			// Environment overrides the file; flags were already checked via changed
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return fmt.Errorf("load env: %w", err)
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			log = logAdapter.NewConsoleLogger(cfg.LogLevel)
			log.Info().Interface("config", cfg.Masked()).Msg("configuration")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := scrubber.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer func() {
				if err := s.Close(); err != nil {
					log.Warn().Err(err).Msg("close")
				}
			}()

			out := cmd.OutOrStdout()
			if cfg.Watch {
				return s.Watch(ctx, func(summary scrubber.Summary, err error) {
					if err == nil {
						printSummary(out, summary)
					}
				})
			}

			summary, err := s.Run(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					log.Info().Msg("interrupted, checkpoint kept for resume")
				}
				return err
			}
			printSummary(out, summary)
			return nil
		},
	}

	f := root.Flags()
	f.StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.scrubber/config.toml)")
	f.StringVar(&cfg.Input, "input", cfg.Input, "input document")
	f.StringVar(&cfg.Output, "output", cfg.Output, "output document")
	f.StringVar(&cfg.Checkpoint, "checkpoint", cfg.Checkpoint, "checkpoint location: file path, sqlite://path?name=key or postgres://...")
	f.StringVar(&cfg.StartTag, "start-tag", cfg.StartTag, "opening span delimiter")
	f.StringVar(&cfg.EndTag, "end-tag", cfg.EndTag, "closing span delimiter")
	f.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "spans per generator request")

	f.StringVar(&cfg.Provider, "provider", cfg.Provider, "generator provider (gemini, echo)")
	f.StringVar(&cfg.Model, "model", cfg.Model, "generator model")
	f.StringVar(&cfg.APIKey, "api-key", cfg.APIKey, "generator API key (falls back to GEMINI_API_KEY, GOOGLE_API_KEY)")
	f.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "generator base URL")
	if err := f.MarkHidden("base-url"); err != nil {
		log.Info().Err(err).Msg("failed to hide base-url flag")
	}
	f.DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "HTTP timeout per generator call")
	f.IntVar(&cfg.MaxOutputTokens, "max-output-tokens", cfg.MaxOutputTokens, "response token cap")
	f.IntVar(&cfg.AcceptPercent, "accept-percent", cfg.AcceptPercent, "minimum share of items a response must return")

	f.IntVar(&cfg.MaxAttempts, "max-attempts", cfg.MaxAttempts, "failed attempts per batch before keeping the originals")
	f.DurationVar(&cfg.RetryBackoff, "retry-backoff", cfg.RetryBackoff, "pause after a failed attempt")
	f.DurationVar(&cfg.RateLimitCooldown, "rate-limit-cooldown", cfg.RateLimitCooldown, "pause after a rate-limit error")
	f.IntVar(&cfg.MaxRateLimitWaits, "max-rate-limit-waits", cfg.MaxRateLimitWaits, "rate-limit pauses per batch before keeping the originals (0 = unlimited)")
	f.DurationVar(&cfg.BatchInterval, "batch-interval", cfg.BatchInterval, "pause between batches")
	f.Float64Var(&cfg.MaxLossPercent, "max-loss-percent", cfg.MaxLossPercent, "largest share of missing texts padded with originals")

	f.StringVar(&cfg.NATSURL, "nats-url", cfg.NATSURL, "publish batch and run events to this NATS server (optional)")
	f.StringVar(&cfg.NATSToken, "nats-token", cfg.NATSToken, "NATS auth token")
	f.StringVar(&cfg.StatusAddr, "status-addr", cfg.StatusAddr, "serve /health and /v1/progress on this address (optional)")
	f.BoolVar(&cfg.Watch, "watch", cfg.Watch, "rerun whenever the input changes")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("scrubber")
		os.Exit(1)
	}
}

func printSummary(w io.Writer, s scrubber.Summary) {
	label := color.New(color.Bold).SprintFunc()
	good := color.New(color.FgGreen).SprintFunc()
	warn := color.New(color.FgYellow).SprintFunc()

	fallback := fmt.Sprint(s.FallbackBatches)
	if s.FallbackBatches > 0 {
		fallback = warn(fmt.Sprintf("%d (%d items kept original)", s.FallbackBatches, s.FallbackItems))
	}
	loss := fmt.Sprintf("%.2f%%", s.LossPercent)
	if s.Lost > 0 {
		loss = warn(fmt.Sprintf("%s (%d items)", loss, s.Lost))
	}

	fmt.Fprintln(w, good("sanitization complete"))
	fmt.Fprintf(w, "  %s %d\n", label("items:"), s.Items)
	fmt.Fprintf(w, "  %s %d (%d resumed)\n", label("batches:"), s.Batches, s.ResumedBatches)
	fmt.Fprintf(w, "  %s %d\n", label("sanitized:"), s.SanitizedBatches)
	fmt.Fprintf(w, "  %s %s\n", label("fallback:"), fallback)
	fmt.Fprintf(w, "  %s %s\n", label("loss:"), loss)
	fmt.Fprintf(w, "  %s %s\n", label("output:"), s.Output)
	fmt.Fprintf(w, "  %s %s\n", label("duration:"), s.Duration.Round(time.Millisecond))
}
