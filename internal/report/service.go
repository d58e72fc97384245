// internal/report/service.go

// Package report orchestrates the pipeline: concurrent per-repository
// extraction, classification, k-way aggregation, prompt composition and the
// provider call.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"commit-reporter/internal/aggregate"
	"commit-reporter/internal/apperrors"
	"commit-reporter/internal/classify"
	"commit-reporter/internal/compose"
	"commit-reporter/internal/model"
	"commit-reporter/internal/provider"
)

// Extractor produces a repository's commits for a date range. One
// implementation exists per repository kind.
type Extractor interface {
	Extract(ctx context.Context, cfg model.RepositoryConfig, dateRange model.DateRange) ([]model.CommitRecord, error)
}

// Options wires the Service's collaborators. Sources and NewAdapter are
// injected so tests can substitute mocks without process-wide state.
type Options struct {
	Sources     map[model.RepoKind]Extractor
	Classifier  *classify.Classifier
	NewAdapter  provider.Factory
	Logger      *slog.Logger
	Concurrency int
	RepoTimeout time.Duration
}

// Service is the pipeline entry point.
type Service struct {
	sources     map[model.RepoKind]Extractor
	classifier  *classify.Classifier
	newAdapter  provider.Factory
	logger      *slog.Logger
	concurrency int
	repoTimeout time.Duration
}

const (
	defaultConcurrency = 4
	defaultRepoTimeout = 30 * time.Second
)

// NewService creates a Service. Zero Concurrency and RepoTimeout fall back
// to defaults.
func NewService(opts Options) *Service {
	s := &Service{
		sources:     opts.Sources,
		classifier:  opts.Classifier,
		newAdapter:  opts.NewAdapter,
		logger:      opts.Logger,
		concurrency: opts.Concurrency,
		repoTimeout: opts.RepoTimeout,
	}
	if s.classifier == nil {
		s.classifier = classify.New(classify.Default())
	}
	if s.newAdapter == nil {
		s.newAdapter = provider.New
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.concurrency < 1 {
		s.concurrency = defaultConcurrency
	}
	if s.repoTimeout <= 0 {
		s.repoTimeout = defaultRepoTimeout
	}
	return s
}

// GenerateParams names everything one report-generation call needs.
type GenerateParams struct {
	Repos        []model.RepositoryConfig
	Range        model.DateRange
	Provider     model.ProviderConfig
	Template     string
	SystemPrompt string
	Temperature  float64
	// KeepNoise retains noise commits in the timeline instead of dropping
	// them.
	KeepNoise bool
}

// GenerateReport runs the full pipeline. Repository-scoped extraction
// failures are returned as diagnostics alongside the result built from the
// remaining repositories; template and provider failures abort the call.
func (s *Service) GenerateReport(ctx context.Context, p GenerateParams) (*model.ReportResult, []model.RepoDiagnostic, error) {
	// A bad template must fail before any repository or network work.
	if err := compose.ValidateTemplate(p.Template); err != nil {
		return nil, nil, err
	}

	timeline, diags, err := s.Timeline(ctx, p.Repos, p.Range, p.KeepNoise)
	if err != nil {
		return nil, diags, err
	}

	prompt, err := compose.Compose(p.Template, timeline)
	if err != nil {
		return nil, diags, err
	}

	adapter, err := s.newAdapter(p.Provider, s.logger)
	if err != nil {
		return nil, diags, err
	}

	s.logger.Info("Requesting report generation",
		"provider", p.Provider.ID, "commits", len(timeline), "failed_repos", len(diags))
	result, err := adapter.GenerateReport(ctx, model.ReportRequest{
		SystemPrompt: p.SystemPrompt,
		UserPrompt:   prompt,
		Temperature:  p.Temperature,
	})
	if err != nil {
		return nil, diags, err
	}
	return result, diags, nil
}

// Timeline extracts and classifies commits from every enabled repository
// concurrently and merges them into one deterministic, provenance-tagged
// sequence. Per-repository failures become diagnostics, not errors; the
// only error returned is a run-wide cancellation.
func (s *Service) Timeline(ctx context.Context, repos []model.RepositoryConfig, dateRange model.DateRange, keepNoise bool) ([]model.CommitRecord, []model.RepoDiagnostic, error) {
	var (
		mu        sync.Mutex
		sequences []aggregate.Sequence
		diags     []model.RepoDiagnostic
	)

	g := &errgroup.Group{}
	g.SetLimit(s.concurrency)

	for _, repo := range repos {
		if !repo.Enabled {
			continue
		}
		repo := repo
		g.Go(func() error {
			commits, err := s.extractOne(ctx, repo, dateRange)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Warn("Repository extraction failed", "repo", repo.Name, "error", err)
				diags = append(diags, model.RepoDiagnostic{Repo: repo.Name, Err: err})
			}
			// Partial results extracted before a failure still count.
			if len(commits) > 0 {
				sequences = append(sequences, aggregate.Sequence{Order: repo.Order, Commits: commits})
			}
			return nil
		})
	}
	// Workers never return errors; failures are collected as diagnostics.
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, diags, apperrors.Wrap(apperrors.KindCancelled, "run cancelled", err)
	}

	timeline := aggregate.Merge(sequences)
	if !keepNoise {
		timeline = aggregate.DropNoise(timeline)
	}
	s.logger.Info("Timeline assembled",
		"repos", len(sequences), "commits", len(timeline), "failed_repos", len(diags))
	return timeline, diags, nil
}

// extractOne runs one repository's extraction under its own timeout and
// classifies the result. The per-repo deadline keeps one unreachable
// repository from stalling the run.
func (s *Service) extractOne(ctx context.Context, repo model.RepositoryConfig, dateRange model.DateRange) ([]model.CommitRecord, error) {
	source, ok := s.sources[repo.Kind]
	if !ok {
		return nil, apperrors.New(apperrors.KindHistoryBackendUnavailable,
			fmt.Sprintf("no extractor registered for repository kind %q", repo.Kind))
	}

	repoCtx, cancel := context.WithTimeout(ctx, s.repoTimeout)
	defer cancel()

	commits, err := source.Extract(repoCtx, repo, dateRange)
	for i := range commits {
		commits[i].Type, commits[i].Noise = s.classifier.Classify(commits[i].Message)
	}
	return commits, err
}

// TestConnection validates the provider credential and endpoint with a
// minimal probe request.
func (s *Service) TestConnection(ctx context.Context, cfg model.ProviderConfig) error {
	adapter, err := s.newAdapter(cfg, s.logger)
	if err != nil {
		return err
	}
	return adapter.TestConnection(ctx)
}
