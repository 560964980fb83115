// Package curriculum defines the static ordered catalog of goals and modules.
package curriculum

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownGoal is returned when a goal is not defined in the catalog.
	ErrUnknownGoal = errors.New("unknown goal")
	// ErrUnknownModule is returned when a module is not a member of the
	// goal's sequence.
	ErrUnknownModule = errors.New("unknown module")
)

// Goal is a top-level project the learner is building. Its module order
// defines the progression sequence.
type Goal struct {
	Name    string   `json:"name"`
	Modules []string `json:"modules"`
}

// Catalog is the immutable curriculum definition. It is constructed once at
// process start and injected into the engine; lookups have no side effects.
type Catalog struct {
	order []string
	goals map[string][]string
}

// New builds a catalog from the given goals. Goal names and module names
// within a goal must be unique.
func New(goals []Goal) (*Catalog, error) {
	c := &Catalog{goals: make(map[string][]string, len(goals))}
	for _, g := range goals {
		if g.Name == "" {
			return nil, fmt.Errorf("goal with empty name")
		}
		if _, ok := c.goals[g.Name]; ok {
			return nil, fmt.Errorf("duplicate goal %q", g.Name)
		}
		if len(g.Modules) == 0 {
			return nil, fmt.Errorf("goal %q has no modules", g.Name)
		}
		seen := make(map[string]bool, len(g.Modules))
		for _, m := range g.Modules {
			if seen[m] {
				return nil, fmt.Errorf("goal %q: duplicate module %q", g.Name, m)
			}
			seen[m] = true
		}
		modules := make([]string, len(g.Modules))
		copy(modules, g.Modules)
		c.order = append(c.order, g.Name)
		c.goals[g.Name] = modules
	}
	return c, nil
}

// Goals returns goal names in definition order.
func (c *Catalog) Goals() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// ModulesFor returns the ordered module sequence for a goal.
func (c *Catalog) ModulesFor(goal string) ([]string, error) {
	modules, ok := c.goals[goal]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGoal, goal)
	}
	out := make([]string, len(modules))
	copy(out, modules)
	return out, nil
}

// FirstModule returns the first module of a goal.
func (c *Catalog) FirstModule(goal string) (string, error) {
	modules, ok := c.goals[goal]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownGoal, goal)
	}
	return modules[0], nil
}

// Contains reports whether the module belongs to the goal's sequence.
func (c *Catalog) Contains(goal, module string) bool {
	for _, m := range c.goals[goal] {
		if m == module {
			return true
		}
	}
	return false
}

// NextModule returns the module immediately following current in the goal's
// sequence. ok is false when current is the last module. ErrUnknownModule is
// returned when current is not a member of the goal's sequence.
func (c *Catalog) NextModule(goal, current string) (next string, ok bool, err error) {
	modules, found := c.goals[goal]
	if !found {
		return "", false, fmt.Errorf("%w: %q", ErrUnknownGoal, goal)
	}
	for i, m := range modules {
		if m != current {
			continue
		}
		if i == len(modules)-1 {
			return "", false, nil
		}
		return modules[i+1], true, nil
	}
	return "", false, fmt.Errorf("%w: %q not in goal %q", ErrUnknownModule, current, goal)
}
