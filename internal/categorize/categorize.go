package categorize

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"unicode/utf8"

	"blaulicht/internal/logging"
	"blaulicht/internal/report"
	"blaulicht/internal/services"
	"blaulicht/internal/textutil"
)

const defaultDescriptionLimit = 800

// Completer sends a prompt to a language model.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithDescriptionLimit caps the description length (in runes) sent to the model.
func WithDescriptionLimit(limit int) Option {
	return func(c *Classifier) {
		if limit > 0 {
			c.descriptionLimit = limit
		}
	}
}

// WithLogger sets the classifier logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Classifier) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Classifier maps a report to one taxonomy label.
type Classifier struct {
	completer        Completer
	taxonomy         report.Taxonomy
	byLength         []string
	descriptionLimit int
	logger           *slog.Logger
}

// New builds a classifier over tax.
func New(completer Completer, tax report.Taxonomy, opts ...Option) *Classifier {
	c := &Classifier{
		completer:        completer,
		taxonomy:         tax,
		descriptionLimit: defaultDescriptionLimit,
		logger:           logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "categorize")
	// Longest first so "Brandstiftung" is not shadowed by a shorter label it contains.
	c.byLength = tax.Names()
	slices.SortStableFunc(c.byLength, func(a, b string) int {
		return utf8.RuneCountInString(b) - utf8.RuneCountInString(a)
	})
	return c
}

// Prompt renders the classification prompt for one report.
func (c *Classifier) Prompt(title, description string) string {
	if description == report.WarningPlaceholder {
		description = ""
	}
	var b strings.Builder
	b.WriteString("Du bist Experte für deutsche Polizeimeldungen.\n\n")
	b.WriteString("Kategorisiere diese Meldung in GENAU EINE Kategorie:\n\n")
	for _, label := range c.taxonomy.Labels {
		fmt.Fprintf(&b, "- %s: %s\n", label.Name, label.Description)
	}
	b.WriteString("\nREGELN:\n")
	fmt.Fprintf(&b, "1. Antworte nur mit dem Kategorienamen (z.B. %q)\n", c.taxonomy.Labels[0].Name)
	b.WriteString("2. Keine Erklärungen oder zusätzlicher Text\n")
	fmt.Fprintf(&b, "3. Bei Unsicherheit: %q\n", c.taxonomy.Fallback)
	b.WriteString("\nMELDUNG:\n")
	fmt.Fprintf(&b, "Titel: %s\n", strings.TrimSpace(title))
	fmt.Fprintf(&b, "Beschreibung: %s\n", textutil.Truncate(strings.TrimSpace(description), c.descriptionLimit))
	b.WriteString("\nKATEGORIE:")
	return b.String()
}

// Match returns the label found in a model response, or the fallback label.
func (c *Classifier) Match(response string) (string, bool) {
	for _, label := range c.byLength {
		if textutil.ContainsFold(response, label) {
			return label, true
		}
	}
	return c.taxonomy.Fallback, false
}

// Classify returns the label for a report. Quota exhaustion returns no label
// and an error matching services.ErrQuotaExceeded. Any other failure returns
// the fallback label with an error matching services.ErrTransient.
func (c *Classifier) Classify(ctx context.Context, title, description string) (string, error) {
	response, err := c.completer.Complete(ctx, "", c.Prompt(title, description))
	if err != nil {
		if services.IsQuota(err) || ctx.Err() != nil {
			return "", err
		}
		return c.taxonomy.Fallback, services.Wrap(services.ErrTransient, "categorize", "classify", "", err)
	}
	label, matched := c.Match(response)
	if !matched {
		c.logger.Debug("model reply matched no label, using fallback",
			logging.String("reply", textutil.Truncate(textutil.CollapseSpace(response), 120)),
			logging.String("fallback", label),
		)
	}
	return label, nil
}

// Compute classifies a report from its title and description.
func (c *Classifier) Compute(ctx context.Context, r report.Report) (string, error) {
	return c.Classify(ctx, r.Title, r.Description)
}

// Fallback returns the catch-all label.
func (c *Classifier) Fallback() string {
	return c.taxonomy.Fallback
}
