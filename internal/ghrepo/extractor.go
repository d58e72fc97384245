// internal/ghrepo/extractor.go
package ghrepo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	"commit-reporter/internal/apperrors"
	"commit-reporter/internal/model"
)

// Extractor reads commit history from the GitHub API for repository
// entries of kind "github", whose path is "owner/name".
type Extractor struct {
	gh     *github.Client
	logger *slog.Logger
}

// NewExtractor creates a GitHub Extractor. The token is used to build an
// authenticated http.Client; an empty token falls back to anonymous access.
func NewExtractor(token string, logger *slog.Logger) *Extractor {
	httpClient := http.DefaultClient
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	}
	return &Extractor{
		gh:     github.NewClient(httpClient),
		logger: logger,
	}
}

// SetClient replaces the underlying go-github client. Used by tests to
// point the extractor at a local server.
func (e *Extractor) SetClient(gh *github.Client) {
	e.gh = gh
}

// Extract lists the repository's commits inside the date range, applies the
// author filter, and returns them sorted by timestamp descending. API
// pagination is handled transparently. Failures are classified as
// repository-scoped kinds.
func (e *Extractor) Extract(ctx context.Context, cfg model.RepositoryConfig, dateRange model.DateRange) ([]model.CommitRecord, error) {
	owner, name, err := splitPath(cfg.Path)
	if err != nil {
		return nil, err
	}

	opts := &github.CommitsListOptions{
		Since:       dateRange.Since,
		Until:       dateRange.Until,
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var commits []model.CommitRecord
	for {
		e.logger.Debug("Fetching commits page", "repo", cfg.Name, "page", opts.Page)

		page, resp, err := e.gh.Repositories.ListCommits(ctx, owner, name, opts)
		if err != nil {
			return commits, classifyAPIErr(err)
		}
		for _, c := range page {
			record := toCommitRecord(cfg.Name, c)
			if !cfg.MatchesAuthor(record.AuthorName, record.AuthorEmail) {
				continue
			}
			commits = append(commits, record)
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	sort.SliceStable(commits, func(i, j int) bool {
		if !commits[i].When.Equal(commits[j].When) {
			return commits[i].When.After(commits[j].When)
		}
		return commits[i].Hash < commits[j].Hash
	})
	return commits, nil
}

// toCommitRecord translates a github.RepositoryCommit into the internal
// commit model, unclassified.
func toCommitRecord(repoName string, c *github.RepositoryCommit) model.CommitRecord {
	return model.CommitRecord{
		Repo:        repoName,
		Hash:        c.GetSHA(),
		AuthorName:  c.GetCommit().GetAuthor().GetName(),
		AuthorEmail: c.GetCommit().GetAuthor().GetEmail(),
		When:        c.GetCommit().GetCommitter().GetDate().Time,
		Message:     c.GetCommit().GetMessage(),
	}
}

func splitPath(path string) (owner, name string, err error) {
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", apperrors.New(apperrors.KindRepositoryNotFound,
			fmt.Sprintf("invalid github repository path %q, expected owner/name", path))
	}
	return parts[0], parts[1], nil
}

// classifyAPIErr maps a go-github failure onto the repository-scoped error
// taxonomy.
func classifyAPIErr(err error) error {
	if errors.Is(err, context.Canceled) {
		return apperrors.Wrap(apperrors.KindCancelled, "extraction cancelled", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(apperrors.KindHistoryBackendUnavailable, "extraction timed out", err)
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return apperrors.Wrap(apperrors.KindHistoryBackendUnavailable, "github rate limit exceeded", err)
	}

	var apiErr *github.ErrorResponse
	if errors.As(err, &apiErr) && apiErr.Response != nil {
		switch apiErr.Response.StatusCode {
		case http.StatusNotFound:
			return apperrors.Wrap(apperrors.KindRepositoryNotFound, "repository not found on github", err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return apperrors.Wrap(apperrors.KindRepositoryAccessDenied, "github denied access to repository", err)
		}
	}
	return apperrors.Wrap(apperrors.KindHistoryBackendUnavailable, "github request failed", err)
}
