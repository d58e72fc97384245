// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commit-reporter/internal/apperrors"
	"commit-reporter/internal/model"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reporter.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validConfig = `
log_level: debug
concurrency: 2
repo_timeout: 10s
github_token: ghp_test
repos:
  - name: billing
    path: /src/billing
    authors:
      - name: Dana
        email: dana@example.com
  - name: website
    path: acme/website
    kind: github
    enabled: false
ai:
  provider: deepseek
  user_prompt: "Report on:\n{commit_log}"
  temperature: 0.3
  configs:
    deepseek:
      api_key: sk-deep
      model: deepseek-chat
    openai:
      api_key: sk-open
      base_url: https://proxy.internal/v1
classify:
  min_message_length: 5
  noise_markers: [sync, wip, checkpoint]
`

func TestLoad(t *testing.T) {
	t.Run("parses a full config file", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, validConfig))
		require.NoError(t, err)

		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, 2, cfg.Concurrency)
		assert.Equal(t, 10*time.Second, cfg.RepoTimeout)
		assert.Equal(t, "ghp_test", cfg.GithubToken)

		repos := cfg.Repositories()
		require.Len(t, repos, 2)
		assert.Equal(t, model.RepoKindLocal, repos[0].Kind, "kind defaults to local")
		assert.True(t, repos[0].Enabled, "enabled defaults to true")
		assert.Equal(t, 0, repos[0].Order)
		require.Len(t, repos[0].Authors, 1)
		assert.Equal(t, "dana@example.com", repos[0].Authors[0].Email)
		assert.Equal(t, model.RepoKindGitHub, repos[1].Kind)
		assert.False(t, repos[1].Enabled)
		assert.Equal(t, 1, repos[1].Order)
	})

	t.Run("resolves the active provider", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, validConfig))
		require.NoError(t, err)

		p, err := cfg.ActiveProvider()
		require.NoError(t, err)
		assert.Equal(t, "deepseek", p.ID)
		assert.Equal(t, "sk-deep", p.APIKey)
		assert.Equal(t, "deepseek-chat", p.Model)
	})

	t.Run("applies classifier overrides onto the defaults", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, validConfig))
		require.NoError(t, err)

		cc := cfg.ClassifierConfig()
		assert.Equal(t, 5, cc.MinMessageLength)
		assert.Contains(t, cc.NoiseMarkers, "checkpoint")
		assert.NotEmpty(t, cc.Rules, "the type table keeps its defaults")
	})

	t.Run("falls back to defaults for a minimal file", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, "repos: []\n"))
		require.NoError(t, err)

		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, 4, cfg.Concurrency)
		assert.Equal(t, 30*time.Second, cfg.RepoTimeout)
		assert.Equal(t, "openai", cfg.AI.Provider)
		assert.Contains(t, cfg.AI.UserPrompt, "{commit_log}")
	})

	t.Run("rejects a template without the placeholder at load time", func(t *testing.T) {
		_, err := Load(writeConfig(t, "ai:\n  user_prompt: no placeholder\n"))
		require.Error(t, err)
		assert.Equal(t, apperrors.KindTemplateError, apperrors.KindOf(err))
	})

	t.Run("rejects a template with duplicate placeholders at load time", func(t *testing.T) {
		_, err := Load(writeConfig(t, "ai:\n  user_prompt: \"{commit_log}{commit_log}\"\n"))
		require.Error(t, err)
		assert.Equal(t, apperrors.KindTemplateError, apperrors.KindOf(err))
	})

	t.Run("rejects an out-of-range temperature", func(t *testing.T) {
		_, err := Load(writeConfig(t, "ai:\n  temperature: 3.5\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "temperature")
	})

	t.Run("rejects a repository without a path", func(t *testing.T) {
		_, err := Load(writeConfig(t, "repos:\n  - name: broken\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "path is required")
	})

	t.Run("rejects an unknown repository kind", func(t *testing.T) {
		_, err := Load(writeConfig(t, "repos:\n  - name: x\n    path: /src/x\n    kind: svn\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown kind "svn"`)
	})

	t.Run("fails when the active provider has no config block", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, "ai:\n  provider: zhipu\n"))
		require.NoError(t, err)

		_, err = cfg.ActiveProvider()
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"zhipu"`)
	})
}
