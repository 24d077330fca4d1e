package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfrename/internal/ai"
	"github.com/local/pdfrename/internal/archive"
	cfgpkg "github.com/local/pdfrename/internal/config"
	"github.com/local/pdfrename/internal/dispatcher"
	"github.com/local/pdfrename/internal/lock"
	logpkg "github.com/local/pdfrename/internal/logger"
	"github.com/local/pdfrename/internal/metadata"
	"github.com/local/pdfrename/internal/metrics"
	"github.com/local/pdfrename/internal/pdfmeta"
	"github.com/local/pdfrename/internal/pdftext"
	"github.com/local/pdfrename/internal/renamer"
)

var errInvalidDirectory = errors.New("invalid directory")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout)
	stop()
	os.Exit(code)
}

type cliFlags struct {
	provider    string
	model       string
	prompt      string
	pages       int
	dryRun      bool
	providers   string
	metricsFile string
	envFile     string
	dir         string
	set         map[string]bool
}

func parseFlags(args []string, out io.Writer) (cliFlags, error) {
	var f cliFlags
	fs := flag.NewFlagSet("pdfrename", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() {
		fmt.Fprintln(out, "Usage: pdfrename [flags] [directory]")
		fs.PrintDefaults()
	}
	fs.StringVar(&f.provider, "provider", "anthropic", "LLM provider (anthropic, openai, gemini, perplexity, llama)")
	fs.StringVar(&f.model, "model", "", "model name; defaults to the provider's default model")
	fs.StringVar(&f.prompt, "prompt", "prompt.txt", "path to the system prompt file")
	fs.IntVar(&f.pages, "pages", 5, "number of leading pages to send to the model")
	fs.BoolVar(&f.dryRun, "dry-run", false, "show the new names without touching any file")
	fs.StringVar(&f.providers, "providers", "", "YAML file overriding the model/provider table")
	fs.StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile after the run")
	fs.StringVar(&f.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if fs.NArg() > 1 {
		return f, fmt.Errorf("expected at most one directory, got %d arguments", fs.NArg())
	}
	f.dir = fs.Arg(0)
	f.set = map[string]bool{}
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })
	return f, nil
}

// overlay applies explicitly given flags on top of the environment.
func (f cliFlags) overlay(cfg *cfgpkg.Config) {
	if f.set["provider"] {
		cfg.Renamer.Provider = strings.ToLower(f.provider)
	}
	if f.set["model"] {
		cfg.Renamer.Model = f.model
	}
	if f.set["prompt"] {
		cfg.Renamer.PromptPath = f.prompt
	}
	if f.set["pages"] {
		cfg.Renamer.Pages = f.pages
	}
	if f.set["dry-run"] {
		cfg.Renamer.DryRun = f.dryRun
	}
	if f.set["providers"] {
		cfg.Renamer.ProvidersFile = f.providers
	}
	if f.set["metrics-file"] {
		cfg.MetricsFile = f.metricsFile
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) int {
	flags, err := parseFlags(args, stdout)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stdout, err)
		return 2
	}

	if _, err := cfgpkg.LoadEnvFile(flags.envFile); err != nil {
		fmt.Fprintf(stdout, "Could not load %s: %v\n", flags.envFile, err)
		return 1
	}
	cfg := cfgpkg.FromEnv()
	flags.overlay(&cfg)

	_ = logpkg.Init(logpkg.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		Out:          stdout,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	})
	defer logpkg.Close()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stdout, err)
		return 1
	}

	dir, err := resolveDirectory(flags.dir, stdin, stdout)
	if err != nil {
		fmt.Fprintln(stdout, err)
		return 1
	}

	prompt, err := cfgpkg.LoadPrompt(cfg.Renamer.PromptPath)
	if err != nil {
		fmt.Fprintf(stdout, "Prompt file not found or unreadable: %v\n", err)
		return 1
	}

	table := ai.DefaultProviderTable()
	if cfg.Renamer.ProvidersFile != "" {
		if table, err = ai.LoadProviderTable(cfg.Renamer.ProvidersFile); err != nil {
			fmt.Fprintln(stdout, err)
			return 1
		}
	}
	sel, err := table.Resolve(cfg.Renamer.Model, cfg.Renamer.Provider, os.LookupEnv)
	if err != nil {
		fmt.Fprintln(stdout, err)
		return 1
	}
	client, err := ai.NewClient(sel.Provider, ai.ClientOptions{BaseURLs: cfg.LLM.BaseURLs})
	if err != nil {
		fmt.Fprintln(stdout, err)
		return 1
	}
	disp := dispatcher.New(client, dispatcher.Config{
		Model:             sel.Model,
		APIKey:            sel.APIKey,
		Timeout:           cfg.LLM.Timeout,
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
		MaxTokens:         cfg.LLM.MaxTokens,
		Temperature:       cfg.LLM.Temperature,
	})

	if cfg.Lock.RedisURL != "" {
		locker, err := lock.New(ctx, lock.Options{RedisURL: cfg.Lock.RedisURL, TTL: cfg.Lock.TTL})
		if err != nil {
			fmt.Fprintf(stdout, "Directory lock unavailable: %v\n", err)
			return 1
		}
		defer locker.Close()
		lease, err := locker.Acquire(ctx, dir)
		if err != nil {
			fmt.Fprintln(stdout, err)
			return 1
		}
		defer func() {
			if err := lease.Release(context.Background()); err != nil {
				log.Warn().Err(err).Msg("directory lock release failed")
			}
		}()
		var unguard context.CancelFunc
		ctx, unguard = lease.Guard(ctx)
		defer unguard()
	}

	deps := renamer.Dependencies{
		Text:     pdftext.NewExtractor(nil),
		Inferrer: metadata.NewInferrer(disp, prompt),
		Writer:   pdfmeta.NewWriter(nil),
	}
	if cfg.Archive.Bucket != "" && !cfg.Renamer.DryRun {
		arch, err := archive.NewS3Archiver(ctx, archive.Options{
			Bucket: cfg.Archive.Bucket,
			Prefix: cfg.Archive.Prefix,
			Region: cfg.Archive.Region,
		})
		if err != nil {
			fmt.Fprintln(stdout, err)
			return 1
		}
		deps.Archiver = arch
	}

	log.Info().
		Str("dir", dir).
		Str("provider", sel.Provider).
		Str("model", sel.Model).
		Int("pages", cfg.Renamer.Pages).
		Bool("dry_run", cfg.Renamer.DryRun).
		Msg("pdfrename starting")

	job := renamer.NewJob(deps, renamer.Options{
		Pages:     cfg.Renamer.Pages,
		NameLimit: cfg.Renamer.NameLimit,
		DryRun:    cfg.Renamer.DryRun,
	})
	sum, err := renamer.NewBatch(job).Run(ctx, dir)
	if err != nil {
		fmt.Fprintln(stdout, err)
		return 1
	}

	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			log.Warn().Err(err).Str("path", cfg.MetricsFile).Msg("metrics not written")
		}
	}
	fmt.Fprintf(stdout, "Renamed %d, skipped %d, failed %d.\n", sum.Renamed, sum.Skipped, sum.Failed)
	if errors.Is(context.Cause(ctx), lock.ErrLost) {
		fmt.Fprintln(stdout, "Directory lock lost, stopped early.")
		return 1
	}
	if sum.Interrupted {
		return 130
	}
	return 0
}

// resolveDirectory asks on stdin when no directory was given, expands a
// leading ~ and returns an absolute path to an existing directory.
func resolveDirectory(arg string, stdin io.Reader, stdout io.Writer) (string, error) {
	dir := strings.TrimSpace(arg)
	if dir == "" {
		fmt.Fprint(stdout, "Enter the directory containing PDFs: ")
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read directory: %w", err)
		}
		dir = strings.TrimSpace(line)
	}
	if dir == "" {
		return "", fmt.Errorf("%w: no directory given", errInvalidDirectory)
	}
	dir, err := expandHome(dir)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errInvalidDirectory, err)
	}
	st, err := os.Stat(abs)
	if err != nil || !st.IsDir() {
		return "", fmt.Errorf("%w: %s", errInvalidDirectory, abs)
	}
	return abs, nil
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", p, err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}
