package registry

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultStrategy = "default"

// Capabilities a model may declare.
const (
	CapabilityVision           = "vision"
	CapabilityStructuredOutput = "structured_output"
	CapabilityLongContext      = "long_context"
)

var ErrUnknownAction = errors.New("unknown action")

type ModelConfig struct {
	ModelID      string
	Provider     string   `yaml:"provider"`
	Capabilities []string `yaml:"capabilities"`
	MaxContext   int      `yaml:"max_context"`
	CostPer1K    CostRate `yaml:"cost_per_1k"`
}

type CostRate struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

func (m ModelConfig) HasCapability(cap string) bool {
	for _, c := range m.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// EstimateCost returns the USD cost for the given token counts at the
// model's declared per-1k rates.
func (m ModelConfig) EstimateCost(tokensIn, tokensOut int) float64 {
	return float64(tokensIn)*m.CostPer1K.Input/1000 + float64(tokensOut)*m.CostPer1K.Output/1000
}

type ActionConfig struct {
	Name        string
	Description string   `yaml:"description"`
	Requires    []string `yaml:"requires"`
}

type catalogFile struct {
	Models  map[string]ModelConfig         `yaml:"models"`
	Actions map[string]ActionConfig        `yaml:"actions"`
	Routing map[string]map[string][]string `yaml:"routing"`
}

// Registry is the validated, immutable model/action/routing catalog.
// It is loaded once at startup; a validation failure is fatal.
type Registry struct {
	models  map[string]ModelConfig
	actions map[string]ActionConfig
	routing map[string]map[string][]string
}

func Load(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model catalog %s: %w", path, err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Registry, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse model catalog: %w", err)
	}
	for id, m := range file.Models {
		m.ModelID = id
		file.Models[id] = m
	}
	for name, a := range file.Actions {
		a.Name = name
		file.Actions[name] = a
	}
	r := &Registry{
		models:  file.Models,
		actions: file.Actions,
		routing: file.Routing,
	}
	if r.models == nil {
		r.models = map[string]ModelConfig{}
	}
	if r.actions == nil {
		r.actions = map[string]ActionConfig{}
	}
	if r.routing == nil {
		r.routing = map[string]map[string][]string{}
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// validate collects every catalog offence into a single error so a broken
// catalog can be fixed in one pass.
func (r *Registry) validate() error {
	var problems []string

	actionNames := make([]string, 0, len(r.routing))
	for action := range r.routing {
		actionNames = append(actionNames, action)
	}
	sort.Strings(actionNames)

	for _, action := range actionNames {
		strategies := r.routing[action]
		actionCfg, actionDeclared := r.actions[action]
		if !actionDeclared {
			problems = append(problems, fmt.Sprintf("routing references undeclared action %q", action))
		}
		if _, ok := strategies[DefaultStrategy]; !ok {
			problems = append(problems, fmt.Sprintf("action %q has no %q strategy", action, DefaultStrategy))
		}

		stratNames := make([]string, 0, len(strategies))
		for s := range strategies {
			stratNames = append(stratNames, s)
		}
		sort.Strings(stratNames)

		for _, strategy := range stratNames {
			chain := strategies[strategy]
			if len(chain) == 0 {
				problems = append(problems, fmt.Sprintf("chain %s/%s is empty", action, strategy))
				continue
			}
			for _, modelID := range chain {
				model, ok := r.models[modelID]
				if !ok {
					problems = append(problems, fmt.Sprintf("chain %s/%s references undeclared model %q", action, strategy, modelID))
					continue
				}
				if !actionDeclared {
					continue
				}
				var missing []string
				for _, req := range actionCfg.Requires {
					if !model.HasCapability(req) {
						missing = append(missing, req)
					}
				}
				if len(missing) > 0 {
					problems = append(problems, fmt.Sprintf(
						"model %q in chain %s/%s lacks required capabilities {%s}",
						modelID, action, strategy, strings.Join(missing, ", ")))
				}
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("model catalog validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

// Chain returns the ordered model chain for (action, strategy). An unknown
// strategy silently falls back to the default strategy so newer strategy
// names can be rolled out before every deployment knows them.
func (r *Registry) Chain(action, strategy string) ([]ModelConfig, error) {
	strategies, ok := r.routing[action]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	chain, ok := strategies[strategy]
	if !ok {
		chain = strategies[DefaultStrategy]
	}
	out := make([]ModelConfig, 0, len(chain))
	for _, id := range chain {
		out = append(out, r.models[id])
	}
	return out, nil
}

func (r *Registry) Strategies(action string) ([]string, error) {
	strategies, ok := r.routing[action]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	out := make([]string, 0, len(strategies))
	for s := range strategies {
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

func (r *Registry) Model(modelID string) (ModelConfig, bool) {
	m, ok := r.models[modelID]
	return m, ok
}

func (r *Registry) Action(name string) (ActionConfig, bool) {
	a, ok := r.actions[name]
	return a, ok
}
