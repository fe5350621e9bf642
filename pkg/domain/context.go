package domain

import "fmt"

// StepResult records one completed provider invocation.
type StepResult struct {
	Type     string `json:"type"`
	Provider string `json:"provider"`
	Output   any    `json:"output"`
}

// Context is the working state threaded through a pipeline run: the current
// payload, every prior step output, caller/step metadata, and the trace log.
// A step receives a context and returns an updated one; the engine never
// shares a context across concurrent branches; each branch gets its own
// fork, merged deterministically afterwards.
type Context struct {
	Data        any
	StepResults []StepResult
	Metadata    map[string]any
	Logs        []string
}

// NewContext creates a context seeded with the initial payload.
func NewContext(data any) *Context {
	return &Context{Data: data, Metadata: make(map[string]any)}
}

// Fork returns a branch-local copy. Slices and the metadata map are copied so
// a branch can append and annotate freely; Data is shared by reference and
// must be treated as read-only by branches (replace, don't mutate).
func (c *Context) Fork() *Context {
	clone := &Context{Data: c.Data}
	clone.StepResults = append([]StepResult(nil), c.StepResults...)
	clone.Logs = append([]string(nil), c.Logs...)
	clone.Metadata = make(map[string]any, len(c.Metadata))
	for k, v := range c.Metadata {
		clone.Metadata[k] = v
	}
	return clone
}

// Scope exposes the context to predicates.
func (c *Context) Scope() Scope {
	return Scope{Data: c.Data, StepResults: c.StepResults, Metadata: c.Metadata}
}

// Logf appends a formatted trace line.
func (c *Context) Logf(format string, args ...any) {
	c.Logs = append(c.Logs, fmt.Sprintf(format, args...))
}

// LastResult returns the most recent step result, if any.
func (c *Context) LastResult() (StepResult, bool) {
	if len(c.StepResults) == 0 {
		return StepResult{}, false
	}
	return c.StepResults[len(c.StepResults)-1], true
}

// Result is the terminal artifact of a pipeline run. A failed run still
// returns a Result carrying the payload at the failure point and the full
// trace log; the engine never surfaces an unhandled crash.
type Result struct {
	Success     bool         `json:"success"`
	Data        any          `json:"data"`
	StepResults []StepResult `json:"step_results,omitempty"`
	Logs        []string     `json:"logs"`
}
