package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/conduitai/conduit-oss/pkg/domain"
)

// pipelineFile is the on-disk shape of one pipeline definition.
type pipelineFile struct {
	Name  string     `yaml:"name"`
	Steps []stepSpec `yaml:"steps"`
}

// stepSpec is the YAML shape of a step. Kind selects the variant; a spec
// with a task type and no kind is a simple step.
type stepSpec struct {
	Kind string `yaml:"kind"`

	// simple
	Type    string         `yaml:"type"`
	Options map[string]any `yaml:"options"`

	// parallel
	Branches [][]stepSpec `yaml:"branches"`

	// conditional and loop
	When string     `yaml:"when"`
	Then []stepSpec `yaml:"then"`
	Else []stepSpec `yaml:"else"`

	// loop and batch
	Steps []stepSpec `yaml:"steps"`

	// batch
	Size  int    `yaml:"size"`
	Items string `yaml:"items"`
}

// ParsePipeline decodes one pipeline definition from YAML.
func ParsePipeline(data []byte) (domain.Definition, error) {
	var pf pipelineFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return domain.Definition{}, fmt.Errorf("parse pipeline: %w", err)
	}
	if pf.Name == "" {
		return domain.Definition{}, fmt.Errorf("pipeline: name is required")
	}
	if len(pf.Steps) == 0 {
		return domain.Definition{}, fmt.Errorf("pipeline %q: at least one step is required", pf.Name)
	}
	steps, err := buildSteps(pf.Steps, "steps")
	if err != nil {
		return domain.Definition{}, fmt.Errorf("pipeline %q: %w", pf.Name, err)
	}
	return domain.Definition{Name: pf.Name, Steps: steps}, nil
}

func buildSteps(specs []stepSpec, path string) ([]domain.Step, error) {
	steps := make([]domain.Step, 0, len(specs))
	for i, spec := range specs {
		step, err := buildStep(spec, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func buildStep(spec stepSpec, path string) (domain.Step, error) {
	kind := spec.Kind
	if kind == "" {
		if spec.Type == "" {
			return nil, fmt.Errorf("%s: step needs a kind or a task type", path)
		}
		kind = string(domain.KindSimple)
	}

	switch domain.StepKind(kind) {
	case domain.KindSimple:
		if spec.Type == "" {
			return nil, fmt.Errorf("%s: simple step needs a task type", path)
		}
		return domain.SimpleStep{Type: spec.Type, Options: spec.Options}, nil

	case domain.KindParallel:
		if len(spec.Branches) == 0 {
			return nil, fmt.Errorf("%s: parallel step needs branches", path)
		}
		branches := make([][]domain.Step, 0, len(spec.Branches))
		for i, branch := range spec.Branches {
			steps, err := buildSteps(branch, fmt.Sprintf("%s.branches[%d]", path, i))
			if err != nil {
				return nil, err
			}
			branches = append(branches, steps)
		}
		return domain.ParallelStep{Branches: branches}, nil

	case domain.KindConditional:
		if spec.When == "" {
			return nil, fmt.Errorf("%s: conditional step needs a when expression", path)
		}
		thenSteps, err := buildSteps(spec.Then, path+".then")
		if err != nil {
			return nil, err
		}
		elseSteps, err := buildSteps(spec.Else, path+".else")
		if err != nil {
			return nil, err
		}
		return domain.ConditionalStep{
			When: domain.Predicate{Expr: spec.When},
			Then: thenSteps,
			Else: elseSteps,
		}, nil

	case domain.KindLoop:
		if spec.When == "" {
			return nil, fmt.Errorf("%s: loop step needs a when expression", path)
		}
		if len(spec.Steps) == 0 {
			return nil, fmt.Errorf("%s: loop step needs nested steps", path)
		}
		steps, err := buildSteps(spec.Steps, path+".steps")
		if err != nil {
			return nil, err
		}
		return domain.LoopStep{While: domain.Predicate{Expr: spec.When}, Steps: steps}, nil

	case domain.KindBatch:
		if spec.Size <= 0 {
			return nil, fmt.Errorf("%s: batch step needs a positive size", path)
		}
		if len(spec.Steps) == 0 {
			return nil, fmt.Errorf("%s: batch step needs nested steps", path)
		}
		steps, err := buildSteps(spec.Steps, path+".steps")
		if err != nil {
			return nil, err
		}
		return domain.BatchStep{Size: spec.Size, Items: spec.Items, Steps: steps}, nil

	default:
		return nil, fmt.Errorf("%s: unknown step kind %q", path, kind)
	}
}

// LoadPipelineFile parses one pipeline definition file.
func LoadPipelineFile(path string) (domain.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Definition{}, fmt.Errorf("read pipeline file %s: %w", path, err)
	}
	def, err := ParsePipeline(data)
	if err != nil {
		return domain.Definition{}, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// LoadPipelineDir parses every *.yaml / *.yml file in the directory, sorted
// by name for deterministic load order.
func LoadPipelineDir(dir string) ([]domain.Definition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read pipeline dir %s: %w", dir, err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)

	defs := make([]domain.Definition, 0, len(paths))
	names := make(map[string]string, len(paths))
	for _, path := range paths {
		def, err := LoadPipelineFile(path)
		if err != nil {
			return nil, err
		}
		if prev, ok := names[def.Name]; ok {
			return nil, fmt.Errorf("%s: pipeline %q already defined in %s", path, def.Name, prev)
		}
		names[def.Name] = path
		defs = append(defs, def)
	}
	return defs, nil
}

// LoadPipelines gathers definitions from the configured directory and
// explicit file list.
func (c *Config) LoadPipelines() ([]domain.Definition, error) {
	var defs []domain.Definition
	if c.Pipelines.Dir != "" {
		dirDefs, err := LoadPipelineDir(c.Pipelines.Dir)
		if err != nil {
			return nil, err
		}
		defs = append(defs, dirDefs...)
	}
	for _, path := range c.Pipelines.Files {
		def, err := LoadPipelineFile(path)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}
