// cmd/reporter/commands.go
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"commit-reporter/internal/classify"
	"commit-reporter/internal/compose"
	"commit-reporter/internal/config"
	"commit-reporter/internal/ghrepo"
	"commit-reporter/internal/gitrepo"
	"commit-reporter/internal/model"
	"commit-reporter/internal/report"
)

// app holds the per-invocation wiring shared by all subcommands. It is
// built in the root command's PersistentPreRunE, after flags are parsed.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	local   *gitrepo.Extractor
	service *report.Service
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	a := &app{}

	root := &cobra.Command{
		Use:           "reporter",
		Short:         "Turn git commit history into an AI-generated work report",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cfgPath)
		},
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default ./reporter.yaml)")

	root.AddCommand(
		newGenerateCmd(a),
		newLogCmd(a),
		newTestConnectionCmd(a),
		newAuthorsCmd(a),
	)
	return root
}

func (a *app) init(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	a.cfg = cfg

	logLevel := new(slog.LevelVar)
	setLogLevel(cfg.LogLevel, logLevel)
	a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(a.logger)

	a.local = gitrepo.NewExtractor(a.logger)
	a.service = report.NewService(report.Options{
		Sources: map[model.RepoKind]report.Extractor{
			model.RepoKindLocal:  a.local,
			model.RepoKindGitHub: ghrepo.NewExtractor(cfg.GithubToken, a.logger),
		},
		Classifier:  classify.New(cfg.ClassifierConfig()),
		Logger:      a.logger,
		Concurrency: cfg.Concurrency,
		RepoTimeout: cfg.RepoTimeout,
	})
	return nil
}

// rangeFlags adds the shared --since/--until flags and resolves them into a
// date range. The default window is the last seven days.
type rangeFlags struct {
	since string
	until string
}

func (f *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.since, "since", "", "start of the date range (YYYY-MM-DD), default 7 days ago")
	cmd.Flags().StringVar(&f.until, "until", "", "end of the date range (YYYY-MM-DD, inclusive), default now")
}

func (f *rangeFlags) resolve() (model.DateRange, error) {
	r := model.DateRange{
		Since: time.Now().AddDate(0, 0, -7),
		Until: time.Now(),
	}
	if f.since != "" {
		t, err := parseDate(f.since)
		if err != nil {
			return model.DateRange{}, fmt.Errorf("invalid --since: %w", err)
		}
		r.Since = t
	}
	if f.until != "" {
		t, err := parseDate(f.until)
		if err != nil {
			return model.DateRange{}, fmt.Errorf("invalid --until: %w", err)
		}
		// A bare date means the whole day, inclusive.
		r.Until = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return r, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func newGenerateCmd(a *app) *cobra.Command {
	var (
		dates      rangeFlags
		providerID string
		outPath    string
		keepNoise  bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Extract, classify and aggregate commits, then generate the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			dateRange, err := dates.resolve()
			if err != nil {
				return err
			}
			providerCfg, err := a.providerConfig(providerID)
			if err != nil {
				return err
			}

			result, diags, err := a.service.GenerateReport(cmd.Context(), report.GenerateParams{
				Repos:        a.cfg.Repositories(),
				Range:        dateRange,
				Provider:     providerCfg,
				Template:     a.cfg.AI.UserPrompt,
				SystemPrompt: a.cfg.AI.SystemPrompt,
				Temperature:  a.cfg.AI.Temperature,
				KeepNoise:    keepNoise,
			})
			a.reportDiagnostics(diags)
			if err != nil {
				return err
			}

			a.logger.Info("Report generated",
				"prompt_tokens", result.Usage.PromptTokens,
				"completion_tokens", result.Usage.CompletionTokens,
				"total_tokens", result.Usage.TotalTokens)

			if outPath != "" {
				if err := os.WriteFile(outPath, []byte(result.Content+"\n"), 0o644); err != nil {
					return fmt.Errorf("failed to write report: %w", err)
				}
				a.logger.Info("Report written", "path", outPath)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Content)
			return nil
		},
	}
	dates.register(cmd)
	cmd.Flags().StringVar(&providerID, "provider", "", "override the active AI provider")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write the report to a file instead of stdout")
	cmd.Flags().BoolVar(&keepNoise, "keep-noise", false, "keep merge/sync noise commits in the timeline")
	return cmd
}

func newLogCmd(a *app) *cobra.Command {
	var (
		dates     rangeFlags
		keepNoise bool
	)

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Print the aggregated, classified commit log without calling the AI provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			dateRange, err := dates.resolve()
			if err != nil {
				return err
			}
			timeline, diags, err := a.service.Timeline(cmd.Context(), a.cfg.Repositories(), dateRange, keepNoise)
			a.reportDiagnostics(diags)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), compose.Serialize(timeline))
			return nil
		},
	}
	dates.register(cmd)
	cmd.Flags().BoolVar(&keepNoise, "keep-noise", false, "keep merge/sync noise commits in the timeline")
	return cmd
}

func newTestConnectionCmd(a *app) *cobra.Command {
	var providerID string

	cmd := &cobra.Command{
		Use:   "test-connection",
		Short: "Verify the AI provider credential and endpoint with a minimal request",
		RunE: func(cmd *cobra.Command, args []string) error {
			providerCfg, err := a.providerConfig(providerID)
			if err != nil {
				return err
			}
			if err := a.service.TestConnection(cmd.Context(), providerCfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Connection to %s succeeded.\n", providerCfg.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&providerID, "provider", "", "override the active AI provider")
	return cmd
}

func newAuthorsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "authors <repo-name-or-path>",
		Short: "List the distinct author identities found in a repository's history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			for _, repo := range a.cfg.Repositories() {
				if repo.Name == args[0] && repo.Kind == model.RepoKindLocal {
					path = repo.Path
					break
				}
			}
			authors, err := a.local.ListAuthors(path)
			if err != nil {
				return err
			}
			for _, id := range authors {
				fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>\n", id.Name, id.Email)
			}
			return nil
		},
	}
}

// providerConfig resolves the provider used for this call: the --provider
// override when given, the configured active provider otherwise.
func (a *app) providerConfig(override string) (model.ProviderConfig, error) {
	if override != "" {
		entry, ok := a.cfg.AI.Configs[override]
		if !ok {
			return model.ProviderConfig{}, fmt.Errorf("no configuration found for provider %q", override)
		}
		return model.ProviderConfig{
			ID:      override,
			APIKey:  entry.APIKey,
			Model:   entry.Model,
			BaseURL: entry.BaseURL,
		}, nil
	}
	return a.cfg.ActiveProvider()
}

func (a *app) reportDiagnostics(diags []model.RepoDiagnostic) {
	for _, d := range diags {
		a.logger.Warn("Repository skipped", "repo", d.Repo, "error", d.Err)
	}
}

func setLogLevel(level string, v *slog.LevelVar) {
	switch level {
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}
