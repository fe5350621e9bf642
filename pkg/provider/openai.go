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
	openAIDefaultBaseURL  = "https://api.openai.com/v1"
	openAICompletionsPath = "/chat/completions"
	openAIDefaultModel    = "gpt-4o-mini"
)

// OpenAI talks to any OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	caps    []string
	client  *http.Client
}

// OpenAIConfig configures an OpenAI adapter.
type OpenAIConfig struct {
	Name         string
	BaseURL      string
	APIKey       string
	Model        string
	Capabilities []string
	// HTTPClient overrides the default traced client, mainly for tests.
	HTTPClient *http.Client
}

// NewOpenAI builds an adapter for an OpenAI-compatible endpoint.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openAIDefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openAIDefaultModel
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
	return &OpenAI{
		name:    cfg.Name,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   model,
		caps:    caps,
		client:  client,
	}
}

func (p *OpenAI) Descriptor() Descriptor {
	return Descriptor{Name: p.name, Capabilities: p.caps}
}

// -- wire types --

type oaiRequest struct {
	Model    string       `json:"model"`
	Messages []oaiMessage `json:"messages"`
}

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiResponse struct {
	Choices []oaiChoice `json:"choices"`
	Error   *oaiError   `json:"error,omitempty"`
}

type oaiChoice struct {
	Message oaiMessage `json:"message"`
}

type oaiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// Invoke executes a task type as a single chat completion.
func (p *OpenAI) Invoke(ctx context.Context, taskType string, payload any, options map[string]any) (any, error) {
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

	body, err := json.Marshal(oaiRequest{
		Model: p.model,
		Messages: []oaiMessage{
			{Role: "system", Content: instruction},
			{Role: "user", Content: text},
		},
	})
	if err != nil {
		return nil, &domain.ProviderError{Provider: p.name, Kind: domain.ErrorInvalidRequest, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+openAICompletionsPath, bytes.NewReader(body))
	if err != nil {
		return nil, &domain.ProviderError{Provider: p.name, Kind: domain.ErrorInvalidRequest, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &domain.ProviderError{Provider: p.name, Kind: domain.ErrorNetwork, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.ProviderError{Provider: p.name, Kind: domain.ErrorNetwork, Err: err}
	}

	var oaiResp oaiResponse
	_ = json.Unmarshal(respBody, &oaiResp)

	if resp.StatusCode != http.StatusOK {
		msg := ""
		if oaiResp.Error != nil {
			msg = oaiResp.Error.Message
			// OpenAI reports exhausted quota as a 429 with a distinct code.
			if oaiResp.Error.Code == "insufficient_quota" || oaiResp.Error.Type == "insufficient_quota" {
				return nil, &domain.ProviderError{Provider: p.name, Kind: domain.ErrorQuotaExceeded, Message: msg}
			}
		}
		return nil, classifyStatus(p.name, resp, msg)
	}
	if oaiResp.Error != nil {
		return nil, &domain.ProviderError{Provider: p.name, Kind: domain.ErrorModel, Message: oaiResp.Error.Message}
	}
	if len(oaiResp.Choices) == 0 {
		return nil, &domain.ProviderError{Provider: p.name, Kind: domain.ErrorModel,
			Message: fmt.Sprintf("empty choices in response: %s", string(respBody))}
	}
	return parseReply(oaiResp.Choices[0].Message.Content), nil
}
