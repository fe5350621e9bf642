package expr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLookup(vars map[string]any) LookupFunc {
	return func(path string) (any, bool) {
		v, ok := vars[path]
		return v, ok
	}
}

func TestEvaluate(t *testing.T) {
	vars := map[string]any{
		"data.safe":        true,
		"data.score":       0.85,
		"data.language":    "es",
		"steps.count":      2,
		"metadata.retries": 0,
	}
	e := New(Options{})

	cases := []struct {
		expr string
		want bool
	}{
		{"data.safe", true},
		{"!data.safe", false},
		{"data.score > 0.5", true},
		{"data.score >= 0.85", true},
		{"data.score < 0.5", false},
		{"data.language == 'es'", true},
		{"data.language != \"en\"", true},
		{"steps.count < 3", true},
		{"steps.count <= 2 && data.safe", true},
		{"steps.count > 5 || data.safe", true},
		{"data.score > 0.9 || (data.safe && steps.count < 3)", true},
		{"!(data.language == 'en')", true},
		{"metadata.retries == 0", true},
		{"-data.score < 0", true},
		{"true", true},
		{"false || FALSE", false},
		{"'abc' < 'abd'", true},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			got, err := e.Evaluate(context.Background(), tc.expr, testLookup(vars))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEvaluatePrecedence(t *testing.T) {
	e := New(Options{})
	// || binds loosest: true || (false && false).
	got, err := e.Evaluate(context.Background(), "true || false && false", testLookup(nil))
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEvaluateShortCircuit(t *testing.T) {
	e := New(Options{})
	// The right operand references a missing variable but is never reached.
	got, err := e.Evaluate(context.Background(), "false && missing.var", testLookup(nil))
	require.NoError(t, err)
	assert.False(t, got)

	got, err = e.Evaluate(context.Background(), "true || missing.var", testLookup(nil))
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEvaluateUnknownIdentifier(t *testing.T) {
	e := New(Options{})
	_, err := e.Evaluate(context.Background(), "data.missing == 1", testLookup(nil))
	assert.ErrorIs(t, err, ErrUnknownIdentifier)
}

func TestEvaluateSyntaxErrors(t *testing.T) {
	e := New(Options{})
	for _, expr := range []string{
		"",
		"   ",
		"data.x ==",
		"(data.x > 1",
		"data.x = 1",
		"&& true",
		"'unterminated",
		"1 2",
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := e.Evaluate(context.Background(), expr, testLookup(map[string]any{"data.x": 1}))
			assert.ErrorIs(t, err, ErrSyntax)
		})
	}
}

func TestEvaluateTypeMismatch(t *testing.T) {
	vars := map[string]any{"data.list": []any{1, 2}, "data.n": 5}
	e := New(Options{})

	_, err := e.Evaluate(context.Background(), "data.list > 1", testLookup(vars))
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = e.Evaluate(context.Background(), "data.n", testLookup(vars))
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = e.Evaluate(context.Background(), "!data.n", testLookup(vars))
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestEvaluateNumericStringCoercion(t *testing.T) {
	vars := map[string]any{"data.count": "3"}
	e := New(Options{})
	got, err := e.Evaluate(context.Background(), "data.count < 10", testLookup(vars))
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEvaluateCancelledContext(t *testing.T) {
	e := New(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Evaluate(ctx, "true && true", testLookup(nil))
	assert.Error(t, err)
}
