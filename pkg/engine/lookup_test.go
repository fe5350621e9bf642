package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduitai/conduit-oss/pkg/domain"
)

func TestScopeLookup(t *testing.T) {
	scope := domain.Scope{
		Data: map[string]any{
			"safe": true,
			"nested": map[string]any{
				"score": 0.9,
				"tags":  []any{"a", "b"},
			},
		},
		Metadata: map[string]any{
			"moderation": map[string]any{"safe": false},
		},
		StepResults: []domain.StepResult{
			{Type: "moderate", Provider: "p", Output: map[string]any{"safe": true}},
			{Type: "translate", Provider: "p", Output: map[string]any{"translated": "hola"}},
		},
	}
	lookup := scopeLookup(scope)

	cases := []struct {
		path string
		want any
	}{
		{"data", scope.Data},
		{"data.safe", true},
		{"data.nested.score", 0.9},
		{"data.nested.tags.1", "b"},
		{"metadata.moderation", map[string]any{"safe": false}},
		{"metadata.moderation.safe", false},
		{"steps.count", 2},
		{"result", map[string]any{"translated": "hola"}},
		{"result.translated", "hola"},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			got, ok := lookup(tc.path)
			require.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}

	for _, path := range []string{
		"data.missing",
		"data.nested.tags.9",
		"metadata.absent",
		"steps.first",
		"unknown",
	} {
		t.Run(path+" missing", func(t *testing.T) {
			_, ok := lookup(path)
			assert.False(t, ok)
		})
	}
}

func TestScopeLookupResultEmpty(t *testing.T) {
	lookup := scopeLookup(domain.Scope{})
	_, ok := lookup("result")
	assert.False(t, ok)
	got, ok := lookup("steps.count")
	require.True(t, ok)
	assert.Equal(t, 0, got)
}
