package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/conduitai/conduit-oss/pkg/domain"
)

const (
	anthropicDefaultBaseURL = "https://api.anthropic.com"
	anthropicMessagesPath   = "/v1/messages"
	anthropicAPIVersion     = "2023-06-01"
	anthropicDefaultModel   = "claude-3-5-haiku-latest"
	anthropicMaxTokens      = 1024
)

// Anthropic talks to the Anthropic Messages API.
type Anthropic struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	caps    []string
	client  *http.Client
}

// AnthropicConfig configures an Anthropic adapter.
type AnthropicConfig struct {
	Name         string
	BaseURL      string
	APIKey       string
	Model        string
	Capabilities []string
	HTTPClient   *http.Client
}

// NewAnthropic builds an adapter for the Anthropic API.
func NewAnthropic(cfg AnthropicConfig) *Anthropic {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = anthropicDefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = anthropicDefaultModel
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout:   60 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	caps := cfg.Capabilities
	if len(caps) == 0 {
		caps = []string{TaskTranslate, TaskModerate, TaskSummarize, TaskDetect}
	}
	return &Anthropic{
		name:    cfg.Name,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   model,
		caps:    caps,
		client:  client,
	}
}

func (p *Anthropic) Descriptor() Descriptor {
	return Descriptor{Name: p.name, Capabilities: p.caps}
}

// -- wire types --

type anthRequest struct {
	Model     string        `json:"model"`
	System    string        `json:"system,omitempty"`
	Messages  []anthMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type anthMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthResponse struct {
	Content []anthContentBlock `json:"content"`
	Error   *anthError         `json:"error,omitempty"`
}

type anthContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Invoke executes a task type as a single messages call.
func (p *Anthropic) Invoke(ctx context.Context, taskType string, payload any, options map[string]any) (any, error) {
	instruction, err := taskInstruction(taskType, options)
	if err != nil {
		if pe, ok := err.(*domain.ProviderError); ok {
			pe.Provider = p.name
		}
		return nil, err
	}
	text, err := payloadText(payload)
	if err != nil {
		return nil, &domain.ProviderError{Provider: p.name, Kind: domain.ErrorInvalidRequest, Err: err}
	}

	body, err := json.Marshal(anthRequest{
		Model:     p.model,
		System:    instruction,
		Messages:  []anthMessage{{Role: "user", Content: text}},
		MaxTokens: anthropicMaxTokens,
	})
	if err != nil {
		return nil, &domain.ProviderError{Provider: p.name, Kind: domain.ErrorInvalidRequest, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+anthropicMessagesPath, bytes.NewReader(body))
	if err != nil {
		return nil, &domain.ProviderError{Provider: p.name, Kind: domain.ErrorInvalidRequest, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &domain.ProviderError{Provider: p.name, Kind: domain.ErrorNetwork, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.ProviderError{Provider: p.name, Kind: domain.ErrorNetwork, Err: err}
	}

	var anthResp anthResponse
	_ = json.Unmarshal(respBody, &anthResp)

	if resp.StatusCode != http.StatusOK {
		msg := ""
		if anthResp.Error != nil {
			msg = anthResp.Error.Message
			if anthResp.Error.Type == "overloaded_error" {
				return nil, &domain.ProviderError{Provider: p.name, Kind: domain.ErrorModel, Message: msg}
			}
		}
		return nil, classifyStatus(p.name, resp, msg)
	}
	if anthResp.Error != nil {
		return nil, &domain.ProviderError{Provider: p.name, Kind: domain.ErrorModel, Message: anthResp.Error.Message}
	}

	var reply strings.Builder
	for _, block := range anthResp.Content {
		if block.Type == "text" {
			reply.WriteString(block.Text)
		}
	}
	if reply.Len() == 0 {
		return nil, &domain.ProviderError{Provider: p.name, Kind: domain.ErrorModel,
			Message: fmt.Sprintf("no text content in response: %s", string(respBody))}
	}
	return parseReply(reply.String()), nil
}
