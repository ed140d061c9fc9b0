// Package assistant proposes a category and priority for new complaints and
// writes resolution summaries. Callers treat every error as "use defaults".
package assistant

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/civic-complaints-api/internal/models"
	"github.com/noah-isme/civic-complaints-api/pkg/config"
)

// Defaults used whenever the assistant is unavailable or answers out of range.
const (
	DefaultCategory = models.CategoryOther
	DefaultPriority = models.PriorityMedium
)

// Result is a categorization proposal.
type Result struct {
	Category models.ComplaintCategory
	Priority models.ComplaintPriority
}

// Categorizer is the text-generation collaborator.
type Categorizer interface {
	Categorize(ctx context.Context, title, description string) (Result, error)
	Summarize(ctx context.Context, title, description, details string) (string, error)
}

// Static always answers with the defaults and echoes resolution details.
type Static struct{}

// Categorize returns the default category and priority.
func (Static) Categorize(context.Context, string, string) (Result, error) {
	return Result{Category: DefaultCategory, Priority: DefaultPriority}, nil
}

// Summarize returns details unchanged.
func (Static) Summarize(_ context.Context, _, _, details string) (string, error) {
	return details, nil
}

// New selects the Anthropic categorizer when configured with an API key and
// falls back to Static otherwise.
func New(cfg config.AssistantConfig, logger *zap.Logger) Categorizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.EqualFold(cfg.Provider, "anthropic") && cfg.APIKey != "" {
		logger.Info("categorization assistant enabled", zap.String("provider", "anthropic"), zap.String("model", cfg.Model))
		return NewAnthropic(cfg)
	}
	logger.Info("categorization assistant disabled, using defaults", zap.String("provider", cfg.Provider))
	return Static{}
}

// NormalizeCategory maps a free-form answer onto a category.
func NormalizeCategory(raw string) models.ComplaintCategory {
	c := models.ComplaintCategory(clean(raw))
	if c.Valid() {
		return c
	}
	return DefaultCategory
}

// NormalizePriority maps a free-form answer onto a priority.
func NormalizePriority(raw string) models.ComplaintPriority {
	p := models.ComplaintPriority(clean(raw))
	if p.Valid() {
		return p
	}
	return DefaultPriority
}

func clean(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.Trim(s, "\"'`.")
	return strings.ReplaceAll(s, " ", "_")
}
