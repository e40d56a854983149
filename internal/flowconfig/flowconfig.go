// Package flowconfig loads and validates declarative conversation flow
// documents.
//
// Flows are described in YAML, parsed into models.FlowDefinition values, and
// validated in two passes (schema-level and graph-level) before the store is
// returned. A document either loads completely or not at all.
package flowconfig

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/ReclaimHQ/ReclaimBot/internal/models"
	"gopkg.in/yaml.v3"
)

// ConfigError aggregates every violation found in a flow document so a single
// invalid document yields one actionable report.
type ConfigError struct {
	Violations []string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("flow configuration invalid: %d violation(s):\n  - %s",
		len(e.Violations), strings.Join(e.Violations, "\n  - "))
}

// document mirrors the top-level YAML layout.
type document struct {
	Flows map[string]models.FlowDefinition `yaml:"flows"`
}

// Store holds the immutable set of loaded flow definitions.
type Store struct {
	flows map[string]models.FlowDefinition
}

// Load reads and validates a flow document from the given path.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Error("FlowConfig load failed to read file", "error", err, "path", path)
		return nil, fmt.Errorf("failed to read flow config %s: %w", path, err)
	}
	store, err := Parse(data)
	if err != nil {
		return nil, err
	}
	slog.Info("FlowConfig loaded", "path", path, "flows", len(store.flows))
	return store, nil
}

// Parse parses and validates a flow document from raw YAML bytes.
func Parse(data []byte) (*Store, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		slog.Error("FlowConfig parse failed", "error", err)
		return nil, fmt.Errorf("failed to parse flow config: %w", err)
	}
	if len(doc.Flows) == 0 {
		return nil, &ConfigError{Violations: []string{"document defines no flows"}}
	}

	// Fill in identifiers that YAML keys carry implicitly.
	for flowID, flow := range doc.Flows {
		flow.ID = flowID
		for stepID, step := range flow.Steps {
			step.ID = stepID
			if step.PromptKind == "" {
				step.PromptKind = models.OutboundText
			}
			flow.Steps[stepID] = step
		}
		for name, slot := range flow.Slots {
			slot.Name = name
			flow.Slots[name] = slot
		}
		doc.Flows[flowID] = flow
	}

	var violations []string
	for _, flowID := range sortedKeys(doc.Flows) {
		flow := doc.Flows[flowID]
		violations = append(violations, validateSchema(flow)...)
		violations = append(violations, validateGraph(flow)...)
	}
	violations = append(violations, validateTriggers(doc.Flows)...)
	if len(violations) > 0 {
		slog.Error("FlowConfig validation failed", "violations", len(violations))
		return nil, &ConfigError{Violations: violations}
	}

	return &Store{flows: doc.Flows}, nil
}

// Flow returns the flow definition with the given id.
func (s *Store) Flow(id string) (models.FlowDefinition, bool) {
	flow, ok := s.flows[id]
	return flow, ok
}

// Flows returns all loaded flow definitions, keyed by flow id.
func (s *Store) Flows() map[string]models.FlowDefinition {
	return s.flows
}

// MatchTrigger resolves user input to a flow whose trigger matches: first by
// exact menu option or flow id (button/list selections), then by keyword
// (case-insensitive substring).
func (s *Store) MatchTrigger(input string) (models.FlowDefinition, bool) {
	trimmed := strings.TrimSpace(input)
	lowered := strings.ToLower(trimmed)

	for _, id := range sortedKeys(s.flows) {
		flow := s.flows[id]
		if trimmed == flow.Trigger.MenuOption || lowered == flow.ID {
			return flow, true
		}
	}
	for _, id := range sortedKeys(s.flows) {
		flow := s.flows[id]
		for _, kw := range flow.Trigger.Keywords {
			if strings.Contains(lowered, strings.ToLower(kw)) {
				return flow, true
			}
		}
	}
	return models.FlowDefinition{}, false
}

// MenuOptions returns one option per flow, ordered by menu option, for
// building the main menu message.
func (s *Store) MenuOptions() []models.Option {
	options := make([]models.Option, 0, len(s.flows))
	for _, id := range sortedKeys(s.flows) {
		flow := s.flows[id]
		options = append(options, models.Option{ID: flow.ID, Label: flow.Name})
	}
	sort.Slice(options, func(i, j int) bool {
		return s.flows[options[i].ID].Trigger.MenuOption < s.flows[options[j].ID].Trigger.MenuOption
	})
	return options
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
