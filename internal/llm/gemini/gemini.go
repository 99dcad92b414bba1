// Package gemini generates answers with Gemini models on Vertex AI.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"docqa/internal/domain"
)

type Config struct {
	ProjectID         string
	Region            string
	Model             string
	CredentialsFile   string
	TopP              float32
	TopK              int32
	RequestsPerMinute float64
}

// Client holds the Vertex AI client and the model settings shared by all calls.
type Client struct {
	base    *genai.Client
	model   string
	topP    float32
	topK    int32
	limiter *rate.Limiter
}

// NewClient creates a Vertex AI client for the configured project and region.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ProjectID == "" || cfg.Region == "" {
		return nil, fmt.Errorf("gemini: projectID and region cannot be empty")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	base, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Region, opts...)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(cfg.RequestsPerMinute / 60)
	}
	return &Client{
		base:    base,
		model:   cfg.Model,
		topP:    cfg.TopP,
		topK:    cfg.TopK,
		limiter: rate.NewLimiter(limit, 1),
	}, nil
}

func (c *Client) Model() string { return c.model }

func (c *Client) Close() error {
	if c.base != nil {
		return c.base.Close()
	}
	return nil
}

// Generate sends a single-turn prompt and returns the concatenated text parts
// of the first candidate.
func (c *Client) Generate(ctx context.Context, prompt string, opts domain.GenerateOptions) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("gemini rate limit: %w", err)
	}
	model := c.base.GenerativeModel(c.model)
	model.GenerationConfig = generationConfig(opts, c.topP, c.topK)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := responseText(resp)
	if text == "" {
		return "", fmt.Errorf("gemini generate: %w", domain.ErrEmptyResponse)
	}
	return text, nil
}

func generationConfig(opts domain.GenerateOptions, topP float32, topK int32) genai.GenerationConfig {
	cfg := genai.GenerationConfig{
		Temperature: genai.Ptr(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = genai.Ptr(int32(opts.MaxTokens))
	}
	if topP > 0 {
		cfg.TopP = genai.Ptr(topP)
	}
	if topK > 0 {
		cfg.TopK = genai.Ptr(topK)
	}
	return cfg
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}
