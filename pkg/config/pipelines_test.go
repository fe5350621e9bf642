package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduitai/conduit-oss/pkg/domain"
)

func TestParsePipelineSimple(t *testing.T) {
	def, err := ParsePipeline([]byte(`
name: translate-es
steps:
  - type: moderate
  - type: translate
    options:
      target_language: es
      provider: primary
      fallbacks: [offline]
`))
	require.NoError(t, err)
	assert.Equal(t, "translate-es", def.Name)
	require.Len(t, def.Steps, 2)

	first, ok := def.Steps[0].(domain.SimpleStep)
	require.True(t, ok)
	assert.Equal(t, "moderate", first.Type)

	second, ok := def.Steps[1].(domain.SimpleStep)
	require.True(t, ok)
	assert.Equal(t, "es", second.Options["target_language"])
	assert.Equal(t, []string{"primary", "offline"}, second.Providers())
}

func TestParsePipelineComposite(t *testing.T) {
	def, err := ParsePipeline([]byte(`
name: full
steps:
  - kind: parallel
    branches:
      - [{type: moderate}]
      - [{type: detect}]
  - kind: conditional
    when: "data.0.safe"
    then:
      - type: translate
    else:
      - type: summarize
  - kind: loop
    when: "steps.count < 5"
    steps:
      - type: summarize
  - kind: batch
    size: 2
    items: records
    steps:
      - type: translate
`))
	require.NoError(t, err)
	require.Len(t, def.Steps, 4)

	par, ok := def.Steps[0].(domain.ParallelStep)
	require.True(t, ok)
	require.Len(t, par.Branches, 2)

	cond, ok := def.Steps[1].(domain.ConditionalStep)
	require.True(t, ok)
	assert.Equal(t, "data.0.safe", cond.When.Expr)
	require.Len(t, cond.Then, 1)
	require.Len(t, cond.Else, 1)

	loop, ok := def.Steps[2].(domain.LoopStep)
	require.True(t, ok)
	assert.Equal(t, "steps.count < 5", loop.While.Expr)

	batch, ok := def.Steps[3].(domain.BatchStep)
	require.True(t, ok)
	assert.Equal(t, 2, batch.Size)
	assert.Equal(t, "records", batch.Items)
}

func TestParsePipelineErrors(t *testing.T) {
	cases := map[string]string{
		"no name":        "steps: [{type: moderate}]",
		"no steps":       "name: empty",
		"no type":        "name: p\nsteps: [{options: {x: 1}}]",
		"bad kind":       "name: p\nsteps: [{kind: teleport}]",
		"loop no when":   "name: p\nsteps: [{kind: loop, steps: [{type: moderate}]}]",
		"batch no size":  "name: p\nsteps: [{kind: batch, steps: [{type: moderate}]}]",
		"empty parallel": "name: p\nsteps: [{kind: parallel}]",
		"cond no when":   "name: p\nsteps: [{kind: conditional, then: [{type: moderate}]}]",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePipeline([]byte(input))
			assert.Error(t, err)
		})
	}
}

func TestLoadPipelineDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.yaml", "name: second\nsteps: [{type: translate}]")
	writeFile(t, dir, "a.yaml", "name: first\nsteps: [{type: moderate}]")
	writeFile(t, dir, "notes.txt", "ignored")

	defs, err := LoadPipelineDir(dir)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	// Sorted by file name.
	assert.Equal(t, "first", defs[0].Name)
	assert.Equal(t, "second", defs[1].Name)
}

func TestLoadPipelineDirDuplicateName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "name: same\nsteps: [{type: moderate}]")
	writeFile(t, dir, "b.yaml", "name: same\nsteps: [{type: translate}]")

	_, err := LoadPipelineDir(dir)
	assert.ErrorContains(t, err, "already defined")
}
