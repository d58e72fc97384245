// internal/gitrepo/extractor_test.go
package gitrepo

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commit-reporter/internal/apperrors"
	"commit-reporter/internal/model"
)

func testExtractor() *Extractor {
	return NewExtractor(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// initRepo creates a throwaway git repository in a temp directory.
func initRepo(t *testing.T) (string, *git.Worktree) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	return dir, wt
}

var commitSeq int

// addCommit writes a unique file and commits it with the given identity
// and timestamp.
func addCommit(t *testing.T, dir string, wt *git.Worktree, name, email, message string, when time.Time) string {
	t.Helper()
	commitSeq++
	file := fmt.Sprintf("file%d.txt", commitSeq)
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(message), 0o644))
	_, err := wt.Add(file)
	require.NoError(t, err)

	sig := &object.Signature{Name: name, Email: email, When: when}
	hash, err := wt.Commit(message, &git.CommitOptions{Author: sig, Committer: sig})
	require.NoError(t, err)
	return hash.String()
}

func repoConfig(name, path string, authors ...model.AuthorRule) model.RepositoryConfig {
	return model.RepositoryConfig{
		Name: name, Path: path, Kind: model.RepoKindLocal, Enabled: true, Authors: authors,
	}
}

func TestExtractor_Extract(t *testing.T) {
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("returns commits in the window, newest first", func(t *testing.T) {
		dir, wt := initRepo(t)
		h1 := addCommit(t, dir, wt, "Dana", "dana@example.com", "feat: one", base)
		h2 := addCommit(t, dir, wt, "Dana", "dana@example.com", "fix: two", base.Add(2*time.Hour))

		commits, err := testExtractor().Extract(context.Background(),
			repoConfig("proj", dir),
			model.DateRange{Since: base.Add(-time.Hour), Until: base.Add(3 * time.Hour)})

		require.NoError(t, err)
		require.Len(t, commits, 2)
		assert.Equal(t, h2, commits[0].Hash)
		assert.Equal(t, h1, commits[1].Hash)
		assert.Equal(t, "proj", commits[0].Repo)
		assert.Equal(t, "Dana", commits[0].AuthorName)
		assert.Equal(t, "dana@example.com", commits[0].AuthorEmail)
		assert.Equal(t, "fix: two", commits[0].Message)
		assert.True(t, commits[0].When.Equal(base.Add(2*time.Hour)))
	})

	t.Run("excludes commits outside the window", func(t *testing.T) {
		dir, wt := initRepo(t)
		addCommit(t, dir, wt, "Dana", "dana@example.com", "too old", base.Add(-48*time.Hour))
		hStay := addCommit(t, dir, wt, "Dana", "dana@example.com", "inside", base)
		addCommit(t, dir, wt, "Dana", "dana@example.com", "too new", base.Add(48*time.Hour))

		commits, err := testExtractor().Extract(context.Background(),
			repoConfig("proj", dir),
			model.DateRange{Since: base.Add(-time.Hour), Until: base.Add(time.Hour)})

		require.NoError(t, err)
		require.Len(t, commits, 1)
		assert.Equal(t, hStay, commits[0].Hash)
	})

	t.Run("filters by author, case-insensitive, name or email", func(t *testing.T) {
		dir, wt := initRepo(t)
		hDana := addCommit(t, dir, wt, "Dana", "dana@example.com", "feat: mine", base)
		addCommit(t, dir, wt, "Sam", "sam@example.com", "feat: theirs", base.Add(time.Minute))

		commits, err := testExtractor().Extract(context.Background(),
			repoConfig("proj", dir, model.AuthorRule{Email: "DANA@EXAMPLE.COM"}),
			model.DateRange{})

		require.NoError(t, err)
		require.Len(t, commits, 1)
		assert.Equal(t, hDana, commits[0].Hash)
	})

	t.Run("an empty rule list passes every commit", func(t *testing.T) {
		dir, wt := initRepo(t)
		addCommit(t, dir, wt, "Dana", "dana@example.com", "feat: mine", base)
		addCommit(t, dir, wt, "Sam", "sam@example.com", "feat: theirs", base.Add(time.Minute))

		commits, err := testExtractor().Extract(context.Background(),
			repoConfig("proj", dir), model.DateRange{})

		require.NoError(t, err)
		assert.Len(t, commits, 2)
	})

	t.Run("an empty repository yields no commits and no error", func(t *testing.T) {
		dir, _ := initRepo(t)

		commits, err := testExtractor().Extract(context.Background(),
			repoConfig("proj", dir), model.DateRange{})

		require.NoError(t, err)
		assert.Empty(t, commits)
	})

	t.Run("a missing path is classified as repository not found", func(t *testing.T) {
		_, err := testExtractor().Extract(context.Background(),
			repoConfig("proj", filepath.Join(t.TempDir(), "nope")), model.DateRange{})

		require.Error(t, err)
		assert.Equal(t, apperrors.KindRepositoryNotFound, apperrors.KindOf(err))
		assert.True(t, apperrors.IsRepositoryScoped(err))
	})

	t.Run("a directory without history is classified as repository not found", func(t *testing.T) {
		_, err := testExtractor().Extract(context.Background(),
			repoConfig("proj", t.TempDir()), model.DateRange{})

		require.Error(t, err)
		assert.Equal(t, apperrors.KindRepositoryNotFound, apperrors.KindOf(err))
	})
}

func TestExtractor_ListAuthors(t *testing.T) {
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("returns distinct identities sorted by name", func(t *testing.T) {
		dir, wt := initRepo(t)
		addCommit(t, dir, wt, "Sam", "sam@example.com", "feat: a", base)
		addCommit(t, dir, wt, "Dana", "dana@example.com", "feat: b", base.Add(time.Minute))
		addCommit(t, dir, wt, "Dana", "dana@example.com", "feat: c", base.Add(2*time.Minute))

		authors, err := testExtractor().ListAuthors(dir)

		require.NoError(t, err)
		require.Len(t, authors, 2)
		assert.Equal(t, model.AuthorIdentity{Name: "Dana", Email: "dana@example.com"}, authors[0])
		assert.Equal(t, model.AuthorIdentity{Name: "Sam", Email: "sam@example.com"}, authors[1])
	})

	t.Run("an empty repository yields no authors", func(t *testing.T) {
		dir, _ := initRepo(t)

		authors, err := testExtractor().ListAuthors(dir)
		require.NoError(t, err)
		assert.Empty(t, authors)
	})
}
