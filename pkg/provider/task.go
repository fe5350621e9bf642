package provider

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/conduitai/conduit-oss/pkg/domain"
)

// taskInstruction builds the system instruction sent to a chat model for a
// task type. Every instruction demands a strict JSON reply so outputs stay
// machine-mergeable in pipeline data.
func taskInstruction(taskType string, options map[string]any) (string, error) {
	switch taskType {
	case TaskTranslate:
		target, _ := options["target_language"].(string)
		if target == "" {
			target = "English"
		}
		return fmt.Sprintf(
			"Translate the user text into %s. Reply with only a JSON object of the form {\"translated\": \"...\"}.",
			target), nil
	case TaskModerate:
		return "Decide whether the user text is safe for a general audience. " +
			"Reply with only a JSON object of the form {\"safe\": true|false, \"categories\": [\"...\"]}.", nil
	case TaskSummarize:
		return "Summarize the user text in at most three sentences. " +
			"Reply with only a JSON object of the form {\"summary\": \"...\"}.", nil
	case TaskDetect:
		return "Detect the language of the user text. " +
			"Reply with only a JSON object of the form {\"language\": \"...\", \"confidence\": 0.0}.", nil
	default:
		return "", &domain.ProviderError{
			Kind:    domain.ErrorInvalidRequest,
			Message: fmt.Sprintf("unsupported task type %q", taskType),
		}
	}
}

// payloadText renders the pipeline payload as the user message. Strings pass
// through; everything else is sent as JSON.
func payloadText(payload any) (string, error) {
	if s, ok := payload.(string); ok {
		return s, nil
	}
	if m, ok := payload.(map[string]any); ok {
		if s, ok := m["text"].(string); ok && len(m) == 1 {
			return s, nil
		}
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(b), nil
}

// parseReply decodes the model's reply. A well-behaved model returns the JSON
// object the instruction asked for; a bare-text reply is wrapped so callers
// always see structured output.
func parseReply(content string) any {
	var out map[string]any
	if err := json.Unmarshal([]byte(content), &out); err == nil {
		return out
	}
	return map[string]any{"text": content}
}

// classifyStatus maps an HTTP failure to a provider error kind, honoring
// Retry-After on throttling responses.
func classifyStatus(name string, resp *http.Response, apiMessage string) *domain.ProviderError {
	pe := &domain.ProviderError{Provider: name, Message: apiMessage}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		pe.Kind = domain.ErrorRateLimited
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				pe.RetryAfter = time.Duration(secs) * time.Second
			}
		}
	case resp.StatusCode == http.StatusPaymentRequired:
		pe.Kind = domain.ErrorQuotaExceeded
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusNotFound,
		resp.StatusCode == http.StatusUnprocessableEntity:
		pe.Kind = domain.ErrorInvalidRequest
	case resp.StatusCode >= 500:
		pe.Kind = domain.ErrorModel
	default:
		pe.Kind = domain.ErrorUnknown
	}
	if pe.Message == "" {
		pe.Message = fmt.Sprintf("http status %d", resp.StatusCode)
	}
	return pe
}
