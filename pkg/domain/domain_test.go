package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextForkIsolation(t *testing.T) {
	c := NewContext(map[string]any{"text": "hi"})
	c.Metadata["lang"] = "en"
	c.StepResults = append(c.StepResults, StepResult{Type: "moderate", Provider: "static"})
	c.Logf("step 0 (moderate) succeeded via static")

	f := c.Fork()
	f.Metadata["lang"] = "es"
	f.StepResults = append(f.StepResults, StepResult{Type: "translate", Provider: "static"})
	f.Logf("step 1 (translate) succeeded via static")

	assert.Equal(t, "en", c.Metadata["lang"])
	assert.Len(t, c.StepResults, 1)
	assert.Len(t, c.Logs, 1)
	assert.Len(t, f.StepResults, 2)
	assert.Len(t, f.Logs, 2)
}

func TestLastResult(t *testing.T) {
	c := NewContext(nil)
	_, ok := c.LastResult()
	require.False(t, ok)

	c.StepResults = append(c.StepResults, StepResult{Type: "detect", Provider: "openai"})
	last, ok := c.LastResult()
	require.True(t, ok)
	assert.Equal(t, "detect", last.Type)
}

func TestErrorKindRetryable(t *testing.T) {
	assert.True(t, ErrorRateLimited.Retryable())
	assert.True(t, ErrorNetwork.Retryable())
	assert.False(t, ErrorInvalidRequest.Retryable())
	assert.False(t, ErrorQuotaExceeded.Retryable())
	assert.False(t, ErrorModel.Retryable())
	assert.False(t, ErrorUnknown.Retryable())
}

func TestClassifyError(t *testing.T) {
	pe := &ProviderError{Provider: "openai", Kind: ErrorRateLimited, Message: "slow down"}
	wrapped := &StepError{Index: 2, StepType: "translate", Err: pe}
	assert.Equal(t, ErrorRateLimited, ClassifyError(wrapped))
	assert.Equal(t, ErrorUnknown, ClassifyError(errors.New("boom")))
}

func TestExhaustedErrorMessage(t *testing.T) {
	err := &ExhaustedError{
		TaskType:  "translate",
		Attempted: []string{"openai", "anthropic"},
		LastErrors: map[string]error{
			"openai":    &ProviderError{Provider: "openai", Kind: ErrorNetwork, Message: "timeout"},
			"anthropic": &ProviderError{Provider: "anthropic", Kind: ErrorModel, Message: "overloaded"},
		},
	}
	msg := err.Error()
	assert.Contains(t, msg, "AllProvidersExhausted")
	assert.Contains(t, msg, "translate")
	assert.Contains(t, msg, "openai")
	assert.Contains(t, msg, "anthropic")
}

func TestStepErrorUnwrap(t *testing.T) {
	inner := &ProviderError{Provider: "openai", Kind: ErrorQuotaExceeded}
	err := &StepError{Index: 0, StepType: "summarize", Err: inner}
	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, ErrorQuotaExceeded, pe.Kind)
}

func TestSimpleStepProviders(t *testing.T) {
	s := SimpleStep{Type: "translate", Options: map[string]any{
		"provider":  "openai",
		"fallbacks": []any{"anthropic", "static"},
	}}
	assert.Equal(t, []string{"openai", "anthropic", "static"}, s.Providers())

	empty := SimpleStep{Type: "detect"}
	assert.Empty(t, empty.Providers())
}

func TestSimpleStepPreserveAndResultKey(t *testing.T) {
	s := SimpleStep{Type: "moderate", Options: map[string]any{
		"preserve":   true,
		"result_key": "moderation",
	}}
	assert.True(t, s.Preserve())
	assert.Equal(t, "moderation", s.ResultKey())

	d := SimpleStep{Type: "moderate", Options: map[string]any{"preserve": true}}
	assert.Equal(t, "moderate", d.ResultKey())
}
