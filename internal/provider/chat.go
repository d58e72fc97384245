// internal/provider/chat.go
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"commit-reporter/internal/apperrors"
	"commit-reporter/internal/model"
)

const (
	generateTimeout = 60 * time.Second
	testTimeout     = 10 * time.Second

	// testMaxTokens caps the connection-test completion so the probe stays
	// nearly free.
	testMaxTokens = 5
)

// chatAdapter speaks the OpenAI chat-completions dialect, which every
// supported backend exposes. Per-backend differences live in the profile.
type chatAdapter struct {
	cfg        model.ProviderConfig
	profile    profile
	httpClient *http.Client
	logger     *slog.Logger
}

func newChatAdapter(cfg model.ProviderConfig, p profile, logger *slog.Logger) *chatAdapter {
	return &chatAdapter{
		cfg:        cfg,
		profile:    p,
		httpClient: &http.Client{},
		logger:     logger.With("provider", cfg.ID),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// errorResponse is the error envelope the OpenAI dialect uses; decoded
// best-effort for diagnostics.
type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (a *chatAdapter) GenerateReport(ctx context.Context, req model.ReportRequest) (*model.ReportResult, error) {
	messages := make([]chatMessage, 0, 2)
	if s := strings.TrimSpace(req.SystemPrompt); s != "" {
		messages = append(messages, chatMessage{Role: "system", Content: s})
	}
	messages = append(messages, chatMessage{Role: "user", Content: strings.TrimSpace(req.UserPrompt)})

	payload := chatRequest{
		Model:    a.modelName(),
		Messages: messages,
	}
	if req.Temperature != 0 {
		t := req.Temperature
		payload.Temperature = &t
	}

	a.logger.Info("Sending generation request",
		"model", payload.Model, "input_chars", len(req.UserPrompt), "api_key", maskKey(a.cfg.APIKey))

	start := time.Now()
	parsed, err := a.send(ctx, payload, generateTimeout)
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	a.logger.Info("Generation request succeeded",
		"duration", time.Since(start).Round(time.Millisecond).String(),
		"total_tokens", parsed.Usage.TotalTokens)

	return &model.ReportResult{
		Content: content,
		Usage: model.TokenUsage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
	}, nil
}

func (a *chatAdapter) TestConnection(ctx context.Context) error {
	payload := chatRequest{
		Model:     a.modelName(),
		Messages:  []chatMessage{{Role: "user", Content: "hi"}},
		MaxTokens: testMaxTokens,
	}

	a.logger.Info("Testing provider connection", "model", payload.Model, "api_key", maskKey(a.cfg.APIKey))
	if _, err := a.send(ctx, payload, testTimeout); err != nil {
		return err
	}
	a.logger.Info("Provider connection test succeeded")
	return nil
}

// send posts a chat-completions payload, enforcing the per-call timeout,
// and maps every failure onto the shared error taxonomy.
func (a *chatAdapter) send(ctx context.Context, payload chatRequest, timeout time.Duration) (*chatResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindResponseShapeError, "encoding request failed", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindNetworkError, "building request failed", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportErr(ctx, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, classifyTransportErr(ctx, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, a.classifyStatus(resp.StatusCode, respBody)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, apperrors.Wrap(apperrors.KindResponseShapeError, "decoding response failed", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, apperrors.New(apperrors.KindResponseShapeError, "response contains no choices")
	}
	return &parsed, nil
}

func (a *chatAdapter) modelName() string {
	if a.cfg.Model != "" {
		return a.cfg.Model
	}
	return a.profile.defaultModel
}

func (a *chatAdapter) endpoint() string {
	base := a.cfg.BaseURL
	if base == "" {
		base = a.profile.baseURL
	}
	return strings.TrimRight(base, "/") + "/chat/completions"
}

// classifyStatus maps a non-200 backend status onto the error taxonomy,
// preserving the backend-reported detail for diagnostics.
func (a *chatAdapter) classifyStatus(status int, body []byte) error {
	detail := backendDetail(body)
	a.logger.Error("Provider request failed", "status", status, "detail", detail)

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperrors.WithStatus(apperrors.KindAuthenticationError, status, detail)
	case status == http.StatusTooManyRequests:
		return apperrors.WithStatus(apperrors.KindRateLimitError, status, detail)
	case status >= 500:
		return apperrors.WithStatus(apperrors.KindBackendServerError, status, detail)
	default:
		return apperrors.WithStatus(apperrors.KindResponseShapeError, status, detail)
	}
}

// classifyTransportErr distinguishes an explicit cancellation from a
// timeout or connection failure.
func classifyTransportErr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled) {
		return apperrors.Wrap(apperrors.KindCancelled, "request cancelled", err)
	}
	return apperrors.Wrap(apperrors.KindNetworkError, "request failed", err)
}

// backendDetail extracts the backend's error message when the body follows
// the OpenAI error envelope, falling back to the raw body.
func backendDetail(body []byte) string {
	var envelope errorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	detail := strings.TrimSpace(string(body))
	if detail == "" {
		return "backend returned no detail"
	}
	if len(detail) > 300 {
		detail = detail[:300] + "..."
	}
	return detail
}

// maskKey hides an api key in logs, keeping only the last four characters.
func maskKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return fmt.Sprintf("****%s", key[len(key)-4:])
}
