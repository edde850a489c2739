package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// DefaultDifyURL is the hosted Dify API.
const DefaultDifyURL = "https://api.dify.ai/v1"

// DifyGateway talks to a Dify chat application over its chat-messages endpoint.
type DifyGateway struct {
	baseURL    string
	apiKey     string
	streaming  bool
	httpClient *http.Client
}

// NewDify creates a Dify gateway.
func NewDify(cfg Config) (*DifyGateway, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("dify API key is required")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultDifyURL
	}
	return &DifyGateway{
		baseURL:    base,
		apiKey:     cfg.APIKey,
		streaming:  cfg.streaming(),
		httpClient: &http.Client{Timeout: cfg.timeout()},
	}, nil
}

func (g *DifyGateway) Name() string { return ProviderDify }

type difyRequest struct {
	Inputs           map[string]any `json:"inputs"`
	Query            string         `json:"query"`
	ResponseMode     string         `json:"response_mode"`
	ConversationID   string         `json:"conversation_id,omitempty"`
	User             string         `json:"user"`
	AutoGenerateName bool           `json:"auto_generate_name"`
}

type difyResponse struct {
	Answer         string `json:"answer"`
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

type difyEvent struct {
	Event   string `json:"event"`
	Answer  string `json:"answer"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// Send posts the prompt and returns the assembled answer.
func (g *DifyGateway) Send(ctx context.Context, req Request) (string, error) {
	mode := ResponseBlocking
	if g.streaming {
		mode = ResponseStreaming
	}
	inputs := req.Inputs
	if inputs == nil {
		inputs = map[string]any{}
	}
	user := req.UserID
	if user == "" {
		user = "interviewer"
	}

	body, err := json.Marshal(difyRequest{
		Inputs:           inputs,
		Query:            req.Prompt,
		ResponseMode:     mode,
		ConversationID:   req.ConversationID,
		User:             user,
		AutoGenerateName: true,
	})
	if err != nil {
		return "", fmt.Errorf("marshal dify request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat-messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create dify request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", &GatewayError{Backend: ProviderDify, Reason: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &GatewayError{
			Backend:    ProviderDify,
			StatusCode: resp.StatusCode,
			Reason:     "unexpected status",
			Err:        errors.New(strings.TrimSpace(string(snippet))),
		}
	}

	var answer string
	if g.streaming {
		answer, err = readDifyStream(resp.Body)
	} else {
		answer, err = readDifyBlocking(resp.Body)
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(answer) == "" {
		return "", &GatewayError{Backend: ProviderDify, StatusCode: resp.StatusCode, Reason: "no answer", Err: ErrEmptyResponse}
	}
	return answer, nil
}

func readDifyBlocking(r io.Reader) (string, error) {
	var out difyResponse
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		if errors.Is(err, io.EOF) {
			return "", &GatewayError{Backend: ProviderDify, Reason: "empty body", Err: ErrEmptyResponse}
		}
		return "", &GatewayError{Backend: ProviderDify, Reason: "decode response", Err: err}
	}
	return out.Answer, nil
}

// readDifyStream concatenates the answer chunks of a server-sent event stream.
// Lines without the data prefix and malformed events are skipped.
func readDifyStream(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var sb strings.Builder
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		payload, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		payload = strings.TrimSpace(payload)
		if payload == "" {
			continue
		}

		var ev difyEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			slog.Debug("skipping malformed dify event", "error", err)
			continue
		}

		switch ev.Event {
		case "message", "agent_message":
			sb.WriteString(ev.Answer)
		case "message_end":
			return sb.String(), nil
		case "error":
			return "", &GatewayError{
				Backend:    ProviderDify,
				StatusCode: ev.Status,
				Reason:     "stream error " + ev.Code,
				Err:        errors.New(ev.Message),
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", &GatewayError{Backend: ProviderDify, Reason: "read stream", Err: err}
	}
	return sb.String(), nil
}

var _ Gateway = (*DifyGateway)(nil)
