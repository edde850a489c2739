package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultAnthropicModel     = "claude-sonnet-4-5"
	defaultAnthropicMaxTokens = 4096
)

// AnthropicGateway sends prompts to the Anthropic Messages API.
type AnthropicGateway struct {
	client  *anthropic.Client
	model   string
	timeout time.Duration
}

// NewAnthropic creates an Anthropic gateway. Streaming is not used for this backend.
func NewAnthropic(cfg Config) (*AnthropicGateway, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("anthropic API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	return &AnthropicGateway{
		client:  &client,
		model:   model,
		timeout: cfg.timeout(),
	}, nil
}

func (g *AnthropicGateway) Name() string { return ProviderAnthropic }

func (g *AnthropicGateway) Send(ctx context.Context, req Request) (string, error) {
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	msg, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: defaultAnthropicMaxTokens,
		Messages: []anthropic.MessageParam{{
			Role: anthropic.MessageParamRoleUser,
			Content: []anthropic.ContentBlockParamUnion{
				anthropic.NewTextBlock(req.Prompt),
			},
		}},
	})
	if err != nil {
		gerr := &GatewayError{Backend: ProviderAnthropic, Reason: "request failed", Err: err}
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			gerr.StatusCode = apiErr.StatusCode
			gerr.Reason = "api error"
		}
		return "", gerr
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", &GatewayError{Backend: ProviderAnthropic, Reason: "no text content", Err: ErrEmptyResponse}
	}
	return sb.String(), nil
}

var _ Gateway = (*AnthropicGateway)(nil)
