// internal/gitrepo/extractor.go
package gitrepo

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"commit-reporter/internal/apperrors"
	"commit-reporter/internal/model"
)

// Extractor reads commit history from local git repositories on disk.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor creates a local git Extractor.
func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract returns the repository's commits inside the date range, filtered
// by the configured author rules and sorted by timestamp descending. All
// failures are classified as repository-scoped kinds so the caller can
// collect them without aborting the run.
func (e *Extractor) Extract(ctx context.Context, cfg model.RepositoryConfig, dateRange model.DateRange) ([]model.CommitRecord, error) {
	repo, err := openRepository(cfg.Path)
	if err != nil {
		return nil, err
	}

	// An empty repository has no HEAD and no commits.
	if _, err := repo.Head(); err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			e.logger.Debug("Repository has no commits", "repo", cfg.Name)
			return nil, nil
		}
		return nil, apperrors.Wrap(apperrors.KindHistoryBackendUnavailable, "reading HEAD failed", err)
	}

	opts := &git.LogOptions{Order: git.LogOrderCommitterTime}
	if !dateRange.Since.IsZero() {
		since := dateRange.Since
		opts.Since = &since
	}
	if !dateRange.Until.IsZero() {
		until := dateRange.Until
		opts.Until = &until
	}

	iter, err := repo.Log(opts)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindHistoryBackendUnavailable, "walking history failed", err)
	}
	defer iter.Close()

	var commits []model.CommitRecord
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !dateRange.Contains(c.Committer.When) {
			return nil
		}
		if !cfg.MatchesAuthor(c.Author.Name, c.Author.Email) {
			return nil
		}
		commits = append(commits, model.CommitRecord{
			Repo:        cfg.Name,
			Hash:        c.Hash.String(),
			AuthorName:  c.Author.Name,
			AuthorEmail: c.Author.Email,
			When:        c.Committer.When,
			Message:     c.Message,
		})
		return nil
	})
	if err != nil {
		return commits, classifyContextErr(err)
	}

	sortNewestFirst(commits)
	e.logger.Debug("Extracted commits", "repo", cfg.Name, "count", len(commits))
	return commits, nil
}

// ListAuthors returns every distinct author identity in the repository's
// history, sorted by name then email.
func (e *Extractor) ListAuthors(path string) ([]model.AuthorIdentity, error) {
	repo, err := openRepository(path)
	if err != nil {
		return nil, err
	}
	if _, err := repo.Head(); err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, nil
		}
		return nil, apperrors.Wrap(apperrors.KindHistoryBackendUnavailable, "reading HEAD failed", err)
	}

	iter, err := repo.Log(&git.LogOptions{})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindHistoryBackendUnavailable, "walking history failed", err)
	}
	defer iter.Close()

	seen := make(map[model.AuthorIdentity]struct{})
	err = iter.ForEach(func(c *object.Commit) error {
		seen[model.AuthorIdentity{Name: c.Author.Name, Email: c.Author.Email}] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindHistoryBackendUnavailable, "walking history failed", err)
	}

	authors := make([]model.AuthorIdentity, 0, len(seen))
	for id := range seen {
		authors = append(authors, id)
	}
	sort.Slice(authors, func(i, j int) bool {
		if authors[i].Name != authors[j].Name {
			return authors[i].Name < authors[j].Name
		}
		return authors[i].Email < authors[j].Email
	})
	return authors, nil
}

// openRepository resolves a path to a git repository, classifying every
// failure mode.
func openRepository(path string) (*git.Repository, error) {
	if _, err := os.Stat(path); err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, apperrors.Wrap(apperrors.KindRepositoryNotFound, "repository path does not exist", err)
		case errors.Is(err, fs.ErrPermission):
			return nil, apperrors.Wrap(apperrors.KindRepositoryAccessDenied, "repository path is not readable", err)
		default:
			return nil, apperrors.Wrap(apperrors.KindHistoryBackendUnavailable, "repository path is not accessible", err)
		}
	}

	repo, err := git.PlainOpen(path)
	if err != nil {
		switch {
		case errors.Is(err, git.ErrRepositoryNotExists):
			return nil, apperrors.Wrap(apperrors.KindRepositoryNotFound, "path is not a git repository", err)
		case errors.Is(err, fs.ErrPermission):
			return nil, apperrors.Wrap(apperrors.KindRepositoryAccessDenied, "repository is not readable", err)
		default:
			return nil, apperrors.Wrap(apperrors.KindHistoryBackendUnavailable, "opening repository failed", err)
		}
	}
	return repo, nil
}

// classifyContextErr maps an interrupted history walk onto the error
// taxonomy: a per-repository timeout counts as the backend being
// unavailable, an explicit cancellation stays a cancellation.
func classifyContextErr(err error) error {
	if errors.Is(err, context.Canceled) {
		return apperrors.Wrap(apperrors.KindCancelled, "extraction cancelled", err)
	}
	return apperrors.Wrap(apperrors.KindHistoryBackendUnavailable, "extraction timed out", err)
}

// sortNewestFirst enforces the per-repository ordering contract. go-git
// already walks in committer-time order, but merge determinism depends on
// the exact (timestamp desc, hash asc) order.
func sortNewestFirst(commits []model.CommitRecord) {
	sort.SliceStable(commits, func(i, j int) bool {
		if !commits[i].When.Equal(commits[j].When) {
			return commits[i].When.After(commits[j].When)
		}
		return commits[i].Hash < commits[j].Hash
	})
}
