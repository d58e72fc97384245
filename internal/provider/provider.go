// internal/provider/provider.go

// Package provider abstracts the interchangeable AI backends used to turn a
// commit log into a report. Each backend variant normalizes its results and
// failures to a common shape; callers never see backend-specific errors.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"commit-reporter/internal/apperrors"
	"commit-reporter/internal/model"
)

// Adapter is the capability set every backend variant implements.
type Adapter interface {
	// GenerateReport sends the composed prompt and returns the generated
	// text plus normalized token usage. There is no automatic retry: a
	// failed call surfaces directly so a paid request is never silently
	// doubled.
	GenerateReport(ctx context.Context, req model.ReportRequest) (*model.ReportResult, error)

	// TestConnection issues a minimal fixed payload to validate the
	// credential and endpoint without consuming a real prompt.
	TestConnection(ctx context.Context) error
}

// Factory builds an Adapter from a provider config. It exists so tests can
// substitute a mock without touching process-wide state.
type Factory func(cfg model.ProviderConfig, logger *slog.Logger) (Adapter, error)

// profile carries a backend's defaults. All currently supported backends
// speak the OpenAI chat-completions dialect and differ only here.
type profile struct {
	displayName  string
	baseURL      string
	defaultModel string
}

var profiles = map[string]profile{
	"openai":   {displayName: "OpenAI GPT", baseURL: "https://api.openai.com/v1", defaultModel: "gpt-4o-mini"},
	"deepseek": {displayName: "Deepseek Chat", baseURL: "https://api.deepseek.com", defaultModel: "deepseek-chat"},
	"zhipu":    {displayName: "Zhipu GLM", baseURL: "https://open.bigmodel.cn/api/paas/v4", defaultModel: "glm-4-flash"},
}

// SupportedIDs returns the known provider identifiers, sorted.
func SupportedIDs() []string {
	ids := make([]string, 0, len(profiles))
	for id := range profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// New builds the Adapter for the configured backend.
func New(cfg model.ProviderConfig, logger *slog.Logger) (Adapter, error) {
	p, ok := profiles[cfg.ID]
	if !ok {
		return nil, fmt.Errorf("unsupported provider %q, supported: %s",
			cfg.ID, strings.Join(SupportedIDs(), ", "))
	}
	if cfg.APIKey == "" {
		return nil, apperrors.New(apperrors.KindAuthenticationError,
			fmt.Sprintf("no api key configured for provider %q", cfg.ID))
	}
	return newChatAdapter(cfg, p, logger), nil
}
