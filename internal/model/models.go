// internal/model/models.go
package model

import (
	"strings"
	"time"
)

// RepoKind selects the history backend used for a repository entry.
type RepoKind string

const (
	// RepoKindLocal reads history from a git repository on disk.
	RepoKindLocal RepoKind = "local"
	// RepoKindGitHub reads history from the GitHub API ("owner/name" path).
	RepoKindGitHub RepoKind = "github"
)

// AuthorRule matches a commit author by name or email, case-insensitive.
type AuthorRule struct {
	Name  string
	Email string
}

// Matches reports whether the given author identity satisfies this rule.
func (r AuthorRule) Matches(name, email string) bool {
	if r.Name != "" && strings.EqualFold(r.Name, name) {
		return true
	}
	if r.Email != "" && strings.EqualFold(r.Email, email) {
		return true
	}
	return false
}

// RepositoryConfig describes one registered repository. It is loaded once
// from configuration and never mutated during a run.
type RepositoryConfig struct {
	// Name is the display label attached to every commit extracted from
	// this repository.
	Name    string
	Path    string
	Kind    RepoKind
	Enabled bool
	// Authors is the ordered list of author-match rules. An empty list
	// passes every commit.
	Authors []AuthorRule
	// Order is the registration index, used as the merge tie-break when
	// timestamps collide across repositories.
	Order int
}

// MatchesAuthor reports whether a commit by the given author passes this
// repository's filter rules.
func (c RepositoryConfig) MatchesAuthor(name, email string) bool {
	if len(c.Authors) == 0 {
		return true
	}
	for _, rule := range c.Authors {
		if rule.Matches(name, email) {
			return true
		}
	}
	return false
}

// CommitType is the semantic category assigned to a commit message.
type CommitType string

const (
	TypeFeat     CommitType = "feat"
	TypeFix      CommitType = "fix"
	TypeRefactor CommitType = "refactor"
	TypeDocs     CommitType = "docs"
	TypeTest     CommitType = "test"
	TypePerf     CommitType = "perf"
	TypeChore    CommitType = "chore"
	TypeOther    CommitType = "other"
)

// CommitRecord is a single extracted commit. It is created once during
// extraction, classified once, and read-only afterwards.
type CommitRecord struct {
	// Repo is the display label of the originating repository.
	Repo        string
	Hash        string
	AuthorName  string
	AuthorEmail string
	When        time.Time
	Message     string
	Type        CommitType
	Noise       bool
}

// ShortHash returns the abbreviated commit hash.
func (c CommitRecord) ShortHash() string {
	if len(c.Hash) <= 7 {
		return c.Hash
	}
	return c.Hash[:7]
}

// Subject returns the first line of the commit message.
func (c CommitRecord) Subject() string {
	if i := strings.IndexByte(c.Message, '\n'); i >= 0 {
		return strings.TrimSpace(c.Message[:i])
	}
	return strings.TrimSpace(c.Message)
}

// DateRange is the closed [Since, Until] extraction window.
type DateRange struct {
	Since time.Time
	Until time.Time
}

// Contains reports whether t falls inside the range. A zero Since or Until
// leaves that side of the window open.
func (d DateRange) Contains(t time.Time) bool {
	if !d.Since.IsZero() && t.Before(d.Since) {
		return false
	}
	if !d.Until.IsZero() && t.After(d.Until) {
		return false
	}
	return true
}

// ProviderConfig identifies the AI backend used for one generation call.
// Multiple configs may coexist; the caller selects the active one.
type ProviderConfig struct {
	// ID selects the adapter implementation: openai | deepseek | zhipu.
	ID     string
	APIKey string
	Model  string
	// BaseURL optionally overrides the backend's default endpoint.
	BaseURL string
}

// ReportRequest is the fully composed payload handed to a provider.
type ReportRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
}

// TokenUsage is the backend-reported accounting for one generation call.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ReportResult is the outcome of a successful generation call.
type ReportResult struct {
	Content string
	Usage   TokenUsage
}

// RepoDiagnostic records a repository-scoped extraction failure. These are
// collected, not fatal: the run proceeds with the remaining repositories.
type RepoDiagnostic struct {
	Repo string
	Err  error
}

// AuthorIdentity is one distinct (name, email) pair seen in a repository's
// history.
type AuthorIdentity struct {
	Name  string
	Email string
}
