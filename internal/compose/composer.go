// internal/compose/composer.go
package compose

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"commit-reporter/internal/apperrors"
	"commit-reporter/internal/model"
)

// Placeholder is the token a prompt template must contain exactly once.
// The serialized commit log is substituted in its place.
const Placeholder = "{commit_log}"

// typeHeadings gives the section order and heading for each commit type.
var typeHeadings = []struct {
	Type    model.CommitType
	Heading string
}{
	{model.TypeFeat, "Features"},
	{model.TypeFix, "Fixes"},
	{model.TypeRefactor, "Refactoring"},
	{model.TypeDocs, "Documentation"},
	{model.TypePerf, "Performance"},
	{model.TypeTest, "Tests"},
	{model.TypeChore, "Chores"},
	{model.TypeOther, "Other"},
}

// typePrefixRE strips a conventional "type(scope): " prefix from a message
// for display. Classification has already happened; the prefix is redundant
// inside a typed section.
var typePrefixRE = regexp.MustCompile(`^\w+(\(.+?\))?!?:\s*`)

// ValidateTemplate checks that the template carries exactly one placeholder
// occurrence. Zero or multiple occurrences is a configuration error.
func ValidateTemplate(template string) error {
	switch n := strings.Count(template, Placeholder); n {
	case 1:
		return nil
	case 0:
		return apperrors.New(apperrors.KindTemplateError,
			fmt.Sprintf("template is missing the %s placeholder", Placeholder))
	default:
		return apperrors.New(apperrors.KindTemplateError,
			fmt.Sprintf("template contains %d occurrences of %s, expected exactly one", n, Placeholder))
	}
}

// Serialize renders the timeline into a single text block: a summary
// header followed by per-type sections, one line per commit carrying the
// repository label, author, date and message. The timeline's order is
// preserved inside each section.
func Serialize(timeline []model.CommitRecord) string {
	if len(timeline) == 0 {
		return "No commits found in the selected range."
	}

	grouped := make(map[model.CommitType][]model.CommitRecord)
	repos := make(map[string]struct{})
	for _, c := range timeline {
		grouped[c.Type] = append(grouped[c.Type], c)
		repos[c.Repo] = struct{}{}
	}

	var b strings.Builder
	b.WriteString("# Commit summary\n")
	fmt.Fprintf(&b, "Total: %d commits across %d repositories (%s)\n",
		len(timeline), len(repos), joinSorted(repos))
	for _, th := range typeHeadings {
		if n := len(grouped[th.Type]); n > 0 {
			fmt.Fprintf(&b, "%s: %d\n", th.Type, n)
		}
	}

	b.WriteString("\n# Commit log\n")
	for _, th := range typeHeadings {
		commits := grouped[th.Type]
		if len(commits) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n", th.Heading)
		for _, c := range commits {
			subject := typePrefixRE.ReplaceAllString(c.Subject(), "")
			fmt.Fprintf(&b, "[%s] [%s] %s: %s\n",
				c.When.Format("2006-01-02"), c.Repo, c.AuthorName, subject)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Compose validates the template and substitutes the serialized timeline
// into its placeholder. It fails with a template error before any external
// call is attempted.
func Compose(template string, timeline []model.CommitRecord) (string, error) {
	if err := ValidateTemplate(template); err != nil {
		return "", err
	}
	return strings.Replace(template, Placeholder, Serialize(timeline), 1), nil
}

func joinSorted(set map[string]struct{}) string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
