package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiGateway sends prompts to the Gemini API.
type GeminiGateway struct {
	client    *genai.Client
	model     string
	streaming bool
	timeout   time.Duration
}

// NewGemini creates a Gemini gateway.
func NewGemini(ctx context.Context, cfg Config) (*GeminiGateway, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiGateway{
		client:    client,
		model:     model,
		streaming: cfg.streaming(),
		timeout:   cfg.timeout(),
	}, nil
}

func (g *GeminiGateway) Name() string { return ProviderGemini }

func (g *GeminiGateway) Send(ctx context.Context, req Request) (string, error) {
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	config := &genai.GenerateContentConfig{}
	if req.JSON {
		config.ResponseMIMEType = "application/json"
	}

	var text string
	if g.streaming {
		var sb strings.Builder
		for result, err := range g.client.Models.GenerateContentStream(ctx, g.model, genai.Text(req.Prompt), config) {
			if err != nil {
				return "", mapGeminiError(err)
			}
			sb.WriteString(result.Text())
		}
		text = sb.String()
	} else {
		result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), config)
		if err != nil {
			return "", mapGeminiError(err)
		}
		text = result.Text()
	}

	if strings.TrimSpace(text) == "" {
		return "", &GatewayError{Backend: ProviderGemini, Reason: "no answer", Err: ErrEmptyResponse}
	}
	return text, nil
}

func mapGeminiError(err error) error {
	gerr := &GatewayError{Backend: ProviderGemini, Reason: "request failed", Err: err}
	// The SDK returns APIError by value.
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		gerr.StatusCode = apiErr.Code
		gerr.Reason = "api error"
	}
	return gerr
}

var _ Gateway = (*GeminiGateway)(nil)
