package llm

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIGateway wraps an OpenAI-compatible chat completions API.
type OpenAIGateway struct {
	api       *openai.Client
	model     string
	streaming bool
	timeout   time.Duration
}

// NewOpenAI creates a gateway for an OpenAI-compatible endpoint.
func NewOpenAI(cfg Config) (*OpenAIGateway, error) {
	if cfg.Model == "" {
		return nil, errors.New("openai model name is required")
	}
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	return &OpenAIGateway{
		api:       openai.NewClientWithConfig(config),
		model:     cfg.Model,
		streaming: cfg.streaming(),
		timeout:   cfg.timeout(),
	}, nil
}

func (g *OpenAIGateway) Name() string { return ProviderOpenAI }

// Send sends the prompt as a single user message.
func (g *OpenAIGateway) Send(ctx context.Context, req Request) (string, error) {
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	chatReq := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: 0.3,
		User:        req.UserID,
	}
	if req.JSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	var (
		raw string
		err error
	)
	if g.streaming {
		raw, err = g.stream(ctx, chatReq)
	} else {
		raw, err = g.complete(ctx, chatReq)
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(raw) == "" {
		return "", &GatewayError{Backend: ProviderOpenAI, Reason: "no answer", Err: ErrEmptyResponse}
	}
	return raw, nil
}

func (g *OpenAIGateway) complete(ctx context.Context, chatReq openai.ChatCompletionRequest) (string, error) {
	resp, err := g.api.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", mapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", &GatewayError{Backend: ProviderOpenAI, Reason: "no choices", Err: ErrEmptyResponse}
	}
	return resp.Choices[0].Message.Content, nil
}

func (g *OpenAIGateway) stream(ctx context.Context, chatReq openai.ChatCompletionRequest) (string, error) {
	chatReq.Stream = true
	stream, err := g.api.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return "", mapOpenAIError(err)
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return "", mapOpenAIError(err)
		}
		if len(chunk.Choices) > 0 {
			sb.WriteString(chunk.Choices[0].Delta.Content)
		}
	}
}

func mapOpenAIError(err error) error {
	gerr := &GatewayError{Backend: ProviderOpenAI, Reason: "request failed", Err: err}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		gerr.StatusCode = apiErr.HTTPStatusCode
		gerr.Reason = "api error"
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		gerr.StatusCode = reqErr.HTTPStatusCode
	}
	return gerr
}

var _ Gateway = (*OpenAIGateway)(nil)
