// internal/ghrepo/extractor_test.go
package ghrepo

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commit-reporter/internal/apperrors"
	"commit-reporter/internal/model"
)

// setupExtractor points an Extractor at a local test server.
func setupExtractor(t *testing.T, handler http.Handler) *Extractor {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	e := NewExtractor("", slog.New(slog.NewTextHandler(io.Discard, nil)))
	gh, err := github.NewClient(server.Client()).WithEnterpriseURLs(server.URL, server.URL)
	require.NoError(t, err)
	e.SetClient(gh)
	return e
}

func apiCommit(sha, name, email, message string, when time.Time) string {
	return fmt.Sprintf(`{
		"sha": %q,
		"commit": {
			"author": {"name": %q, "email": %q, "date": %q},
			"committer": {"name": %q, "email": %q, "date": %q},
			"message": %q
		}
	}`, sha, name, email, when.Format(time.RFC3339),
		name, email, when.Format(time.RFC3339), message)
}

func githubRepo(name string, authors ...model.AuthorRule) model.RepositoryConfig {
	return model.RepositoryConfig{
		Name: name, Path: "acme/" + name, Kind: model.RepoKindGitHub, Enabled: true, Authors: authors,
	}
}

func TestExtractor_Extract(t *testing.T) {
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	dateRange := model.DateRange{Since: base.Add(-24 * time.Hour), Until: base.Add(24 * time.Hour)}

	t.Run("lists, filters and sorts commits across pages", func(t *testing.T) {
		var requests int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.True(t, strings.HasSuffix(r.URL.Path, "/repos/acme/widgets/commits"))
			page := atomic.AddInt32(&requests, 1)
			w.Header().Set("Content-Type", "application/json")
			if page == 1 {
				w.Header().Set("Link", fmt.Sprintf(`<http://%s%s?page=2>; rel="next"`, r.Host, r.URL.Path))
				fmt.Fprintf(w, "[%s,%s]",
					apiCommit("c1", "Dana", "dana@example.com", "feat: one", base),
					apiCommit("c2", "Sam", "sam@example.com", "fix: two", base.Add(time.Hour)))
				return
			}
			fmt.Fprintf(w, "[%s]",
				apiCommit("c3", "Dana", "dana@example.com", "fix: three", base.Add(2*time.Hour)))
		})
		e := setupExtractor(t, handler)

		commits, err := e.Extract(context.Background(),
			githubRepo("widgets", model.AuthorRule{Name: "dana"}), dateRange)

		require.NoError(t, err)
		require.Len(t, commits, 2, "Sam's commit is filtered out")
		assert.Equal(t, int32(2), atomic.LoadInt32(&requests), "pagination is followed")
		assert.Equal(t, []string{"c3", "c1"}, []string{commits[0].Hash, commits[1].Hash}, "newest first")
		assert.Equal(t, "widgets", commits[0].Repo)
		assert.Equal(t, "dana@example.com", commits[0].AuthorEmail)
	})

	t.Run("a 404 is classified as repository not found", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"message": "Not Found"}`)
		})
		e := setupExtractor(t, handler)

		_, err := e.Extract(context.Background(), githubRepo("gone"), dateRange)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindRepositoryNotFound, apperrors.KindOf(err))
	})

	t.Run("a 401 is classified as access denied", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"message": "Bad credentials"}`)
		})
		e := setupExtractor(t, handler)

		_, err := e.Extract(context.Background(), githubRepo("private"), dateRange)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindRepositoryAccessDenied, apperrors.KindOf(err))
	})

	t.Run("a server failure is classified as backend unavailable", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		e := setupExtractor(t, handler)

		_, err := e.Extract(context.Background(), githubRepo("flaky"), dateRange)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindHistoryBackendUnavailable, apperrors.KindOf(err))
	})

	t.Run("a malformed repository path fails up front", func(t *testing.T) {
		e := NewExtractor("", slog.New(slog.NewTextHandler(io.Discard, nil)))
		cfg := model.RepositoryConfig{Name: "broken", Path: "not-a-path", Kind: model.RepoKindGitHub}

		_, err := e.Extract(context.Background(), cfg, dateRange)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindRepositoryNotFound, apperrors.KindOf(err))
	})
}
