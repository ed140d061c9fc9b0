package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/civic-complaints-api/pkg/config"
)

const categoryPrompt = `Analyze the following complaint and categorize it into one of these categories:
- infrastructure (roads, bridges, buildings)
- sanitation (public toilets, cleanliness)
- water_supply (water quality, supply issues)
- electricity (power outages, electrical issues)
- traffic (traffic lights, road signs, congestion)
- waste_management (garbage collection, recycling)
- parks (parks, playgrounds, green spaces)
- security (safety, security issues)
- other (anything else)

Complaint Title: %s
Complaint Description: %s

Respond with ONLY the category name.`

const priorityPrompt = `Analyze the following complaint and assign a priority:
- high (urgent, safety issues, critical infrastructure)
- medium (important but not urgent)
- low (minor issues, non-critical)

Complaint Title: %s
Complaint Description: %s

Respond with ONLY the priority level (high, medium, or low).`

const summaryPrompt = `Generate a professional resolution summary for this complaint.

Original Complaint:
Title: %s
Description: %s

Resolution Details: %s

Respond with a concise summary (2-3 sentences) of how this complaint was resolved.`

// Anthropic asks a Claude model through the Messages API.
type Anthropic struct {
	client  anthropic.Client
	model   string
	timeout time.Duration
}

// NewAnthropic builds the client from config. APIURL overrides the base URL.
func NewAnthropic(cfg config.AssistantConfig, extra ...option.RequestOption) *Anthropic {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.APIURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.APIURL))
	}
	opts = append(opts, extra...)
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Anthropic{client: anthropic.NewClient(opts...), model: cfg.Model, timeout: timeout}
}

// Categorize runs the category and priority prompts concurrently.
func (a *Anthropic) Categorize(ctx context.Context, title, description string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var res Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		text, err := a.complete(gctx, fmt.Sprintf(categoryPrompt, title, description), 20)
		if err != nil {
			return fmt.Errorf("categorize complaint: %w", err)
		}
		res.Category = NormalizeCategory(text)
		return nil
	})
	g.Go(func() error {
		text, err := a.complete(gctx, fmt.Sprintf(priorityPrompt, title, description), 10)
		if err != nil {
			return fmt.Errorf("prioritize complaint: %w", err)
		}
		res.Priority = NormalizePriority(text)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Result{Category: DefaultCategory, Priority: DefaultPriority}, err
	}
	return res, nil
}

// Summarize produces a short resolution summary.
func (a *Anthropic) Summarize(ctx context.Context, title, description, details string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	text, err := a.complete(ctx, fmt.Sprintf(summaryPrompt, title, description, details), 200)
	if err != nil {
		return "", fmt.Errorf("summarize resolution: %w", err)
	}
	return text, nil
}

func (a *Anthropic) complete(ctx context.Context, prompt string, maxTokens int64) (string, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", err
	}
	if len(msg.Content) == 0 {
		return "", errors.New("empty response")
	}
	text := strings.TrimSpace(msg.Content[0].Text)
	if text == "" {
		return "", errors.New("empty response")
	}
	return text, nil
}
