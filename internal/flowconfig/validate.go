package flowconfig

import (
	"fmt"
	"regexp"

	"github.com/ReclaimHQ/ReclaimBot/internal/models"
)

// validateSchema checks required fields and enumerated values for one flow.
func validateSchema(flow models.FlowDefinition) []string {
	var violations []string
	fail := func(format string, args ...any) {
		violations = append(violations, fmt.Sprintf("flow %q: ", flow.ID)+fmt.Sprintf(format, args...))
	}

	if flow.Name == "" {
		fail("name is required")
	}
	if flow.InitialStep == "" {
		fail("initial_step is required")
	}
	if flow.Trigger.MenuOption == "" && len(flow.Trigger.Keywords) == 0 {
		fail("trigger requires a menu_option or at least one keyword")
	}
	if len(flow.Steps) == 0 {
		fail("at least one step is required")
	}

	for _, name := range sortedKeys(flow.Slots) {
		slot := flow.Slots[name]
		if !models.IsValidSlotType(slot.Type) {
			fail("slot %q has invalid type %q", name, slot.Type)
		}
		if slot.Prompt == "" {
			fail("slot %q requires a prompt", name)
		}
		if slot.Pattern != "" {
			if _, err := regexp.Compile(slot.Pattern); err != nil {
				fail("slot %q has invalid pattern: %v", name, err)
			}
		}
		if slot.Type == models.SlotEnum && len(slot.Allowed) == 0 {
			fail("slot %q of type enum requires allowed values", name)
		}
		if slot.Min != nil && slot.Max != nil && *slot.Min > *slot.Max {
			fail("slot %q has min greater than max", name)
		}
	}

	hasTerminal := false
	for _, stepID := range sortedKeys(flow.Steps) {
		step := flow.Steps[stepID]
		if !models.IsValidStepType(step.Type) {
			fail("step %q has invalid type %q", stepID, step.Type)
			continue
		}
		switch step.Type {
		case models.StepCollect:
			if step.Slot == "" {
				fail("collect step %q requires a slot", stepID)
			} else if _, ok := flow.Slots[step.Slot]; !ok {
				fail("collect step %q references undefined slot %q", stepID, step.Slot)
			}
			if step.Next == "" {
				fail("collect step %q requires next", stepID)
			}
		case models.StepAction:
			if step.Handler == "" {
				fail("action step %q requires a handler", stepID)
			}
			if step.Next == "" {
				fail("action step %q requires next", stepID)
			}
		case models.StepResponse:
			if step.Message == "" {
				fail("response step %q requires a message", stepID)
			}
			if step.Next == "" {
				fail("response step %q requires next", stepID)
			}
		case models.StepTerminal:
			hasTerminal = true
			if !models.IsValidDisposition(step.Disposition) {
				fail("terminal step %q has invalid disposition %q", stepID, step.Disposition)
			}
			if step.Next != "" {
				fail("terminal step %q must not declare next", stepID)
			}
		}
	}
	if len(flow.Steps) > 0 && !hasTerminal {
		fail("at least one terminal step is required")
	}

	return violations
}

// validateTriggers checks cross-flow trigger constraints: a menu option may
// belong to at most one flow, or trigger matching would silently pick one.
func validateTriggers(flows map[string]models.FlowDefinition) []string {
	var violations []string
	claimed := map[string]string{}
	for _, flowID := range sortedKeys(flows) {
		option := flows[flowID].Trigger.MenuOption
		if option == "" {
			continue
		}
		if prev, ok := claimed[option]; ok {
			violations = append(violations, fmt.Sprintf(
				"flow %q: trigger menu_option %q already claimed by flow %q", flowID, option, prev))
			continue
		}
		claimed[option] = flowID
	}
	return violations
}

// validateGraph checks step references and walks the execution graph from the
// initial step.
func validateGraph(flow models.FlowDefinition) []string {
	var violations []string
	fail := func(format string, args ...any) {
		violations = append(violations, fmt.Sprintf("flow %q: ", flow.ID)+fmt.Sprintf(format, args...))
	}

	exists := func(id string) bool {
		_, ok := flow.Steps[id]
		return ok
	}

	if flow.InitialStep != "" && !exists(flow.InitialStep) {
		fail("initial_step %q does not exist", flow.InitialStep)
		return violations
	}

	for _, stepID := range sortedKeys(flow.Steps) {
		step := flow.Steps[stepID]
		for field, target := range map[string]string{"next": step.Next, "back": step.Back, "error_next": step.ErrorNext} {
			if target != "" && !exists(target) {
				fail("step %q %s references non-existent step %q", stepID, field, target)
			}
		}
		// A step whose every exit points back at itself can never terminate.
		if step.Next == stepID && (step.ErrorNext == "" || step.ErrorNext == stepID) {
			fail("step %q loops only onto itself", stepID)
		}
	}
	if len(violations) > 0 {
		// Graph walk assumes all references resolve.
		return violations
	}
	if flow.InitialStep == "" {
		return violations
	}

	// Reachability walk along next/error_next edges. Every reachable dead end
	// must be a terminal step, and at least one terminal must be reachable.
	visited := map[string]bool{}
	terminalReachable := false
	stack := []string{flow.InitialStep}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		visited[id] = true

		step := flow.Steps[id]
		if step.Type == models.StepTerminal {
			terminalReachable = true
			continue
		}
		if step.Next == "" && step.ErrorNext == "" {
			fail("step %q is a dead end: non-terminal step with no successor", id)
			continue
		}
		if step.Next != "" {
			stack = append(stack, step.Next)
		}
		if step.ErrorNext != "" {
			stack = append(stack, step.ErrorNext)
		}
	}
	if !terminalReachable {
		fail("no terminal step is reachable from initial_step %q", flow.InitialStep)
	}
	for _, stepID := range sortedKeys(flow.Steps) {
		if !visited[stepID] {
			fail("step %q is unreachable from initial_step %q", stepID, flow.InitialStep)
		}
	}

	// Cycles along next-only edges never terminate without an error detour.
	if cycle := findNextCycle(flow); cycle != "" {
		fail("next chain contains a cycle: %s", cycle)
	}

	return violations
}

// findNextCycle walks next edges from the initial step and reports the first
// cycle found, formatted as "a -> b -> a". Error-path edges are exempt: a
// retry loop through error_next is legitimate.
func findNextCycle(flow models.FlowDefinition) string {
	visited := map[string]bool{}
	var path []string
	onPath := map[string]bool{}

	var visit func(id string) string
	visit = func(id string) string {
		if onPath[id] {
			start := 0
			for i, p := range path {
				if p == id {
					start = i
					break
				}
			}
			cycle := append(append([]string{}, path[start:]...), id)
			out := ""
			for i, p := range cycle {
				if i > 0 {
					out += " -> "
				}
				out += p
			}
			return out
		}
		if visited[id] {
			return ""
		}
		visited[id] = true
		onPath[id] = true
		path = append(path, id)
		defer func() {
			onPath[id] = false
			path = path[:len(path)-1]
		}()

		step := flow.Steps[id]
		if step.Next != "" {
			return visit(step.Next)
		}
		return ""
	}

	return visit(flow.InitialStep)
}
