// Package gemini provides a client for the Google Gemini API
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/bobmcallan/novus/internal/common"
	"github.com/bobmcallan/novus/internal/interfaces"
	"github.com/bobmcallan/novus/internal/models"
)

const (
	DefaultModel           = "gemini-2.0-flash"
	DefaultTemperature     = 0.25
	DefaultTopP            = 0.9
	DefaultMaxOutputTokens = 1024
)

// Client implements interfaces.LLMClient
type Client struct {
	client      *genai.Client
	model       string
	temperature float32
	topP        float32
	maxTokens   int32
	logger      *common.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithModel sets the model to use
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithTemperature sets the sampling temperature
func WithTemperature(t float32) ClientOption {
	return func(c *Client) {
		c.temperature = t
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new Gemini client
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	c := &Client{
		client:      genaiClient,
		model:       DefaultModel,
		temperature: DefaultTemperature,
		topP:        DefaultTopP,
		maxTokens:   DefaultMaxOutputTokens,
		logger:      common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Generate sends the conversation with a system instruction and returns the
// concatenated text of the first candidate.
func (c *Client) Generate(ctx context.Context, system string, turns []models.ChatTurn) (string, error) {
	contents := buildContents(turns)
	if len(contents) == 0 {
		return "", fmt.Errorf("no content to send")
	}

	config := &genai.GenerateContentConfig{
		Temperature:     float32Ptr(c.temperature),
		TopP:            float32Ptr(c.topP),
		MaxOutputTokens: c.maxTokens,
	}
	if strings.TrimSpace(system) != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}

	c.logger.Debug().Str("model", c.model).Int("turns", len(contents)).Msg("Generating content")

	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	return extractTextFromResponse(result)
}

const (
	roleUser  = "user"
	roleModel = "model"
)

func float32Ptr(v float32) *float32 { return &v }

// buildContents maps chat turns onto genai roles, dropping empty turns.
func buildContents(turns []models.ChatTurn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		text := strings.TrimSpace(t.Content)
		if text == "" {
			continue
		}
		role := roleUser
		if t.Role == models.RoleAssistant {
			role = roleModel
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []*genai.Part{{Text: text}}})
	}
	return contents
}

// extractTextFromResponse extracts text from a generate content response
func extractTextFromResponse(result *genai.GenerateContentResponse) (string, error) {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content generated")
	}

	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("no content generated")
	}
	return text, nil
}

// Ensure Client implements LLMClient
var _ interfaces.LLMClient = (*Client)(nil)
