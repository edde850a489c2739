package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Gateway sends one prompt to a model backend and returns its raw text reply.
// Implementations hold no per-call mutable state and are safe for concurrent use.
type Gateway interface {
	Send(ctx context.Context, req Request) (string, error)
	Name() string
}

// Request is a single model call.
type Request struct {
	Prompt         string
	UserID         string
	ConversationID string
	Inputs         map[string]any
	Capability     Capability
	// JSON asks backends that support it to constrain the reply to a JSON object.
	JSON bool
}

// Backend names.
const (
	ProviderDify      = "dify"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// Response modes for backends that can stream.
const (
	ResponseBlocking  = "blocking"
	ResponseStreaming = "streaming"
)

const (
	// DefaultTimeout bounds a model call when none is configured.
	DefaultTimeout = 60 * time.Second
	// MinTimeout is the shortest accepted call timeout.
	MinTimeout = 30 * time.Second
)

// ErrEmptyResponse is wrapped by a GatewayError when the backend answered with no text.
var ErrEmptyResponse = errors.New("empty model response")

// GatewayError reports that the model backend could not produce a reply:
// network failure, timeout, non-2xx status or an empty answer.
type GatewayError struct {
	Backend    string
	StatusCode int
	Reason     string
	Err        error
}

func (e *GatewayError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Backend)
	sb.WriteString(": ")
	sb.WriteString(e.Reason)
	if e.StatusCode != 0 {
		fmt.Fprintf(&sb, " (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Config selects and configures a backend.
type Config struct {
	Provider     string
	BaseURL      string
	APIKey       string
	Model        string
	Timeout      time.Duration
	ResponseMode string
}

func (c Config) timeout() time.Duration {
	switch {
	case c.Timeout <= 0:
		return DefaultTimeout
	case c.Timeout < MinTimeout:
		return MinTimeout
	default:
		return c.Timeout
	}
}

func (c Config) streaming() bool {
	return strings.EqualFold(c.ResponseMode, ResponseStreaming)
}

// New creates the gateway named by cfg.Provider.
func New(ctx context.Context, cfg Config) (Gateway, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderDify:
		return NewDify(cfg)
	case ProviderOpenAI:
		return NewOpenAI(cfg)
	case ProviderGemini:
		return NewGemini(ctx, cfg)
	case ProviderAnthropic:
		return NewAnthropic(cfg)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}

// withTimeout bounds ctx by the configured call timeout.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}
