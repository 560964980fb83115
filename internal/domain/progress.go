package domain

import (
	"time"
)

// ModuleCompletion records the metrics captured when a module was finished.
type ModuleCompletion struct {
	Module string `json:"completed_module_name"`
	Steps  int    `json:"steps"`
}

// Progress is the durable per-user snapshot of curriculum position and
// completed-module history. One record exists per username; the record is
// overwritten on each advancement while Completed accumulates.
type Progress struct {
	Username      string                      `json:"username"`
	CurrentGoal   string                      `json:"current_goal"`
	CurrentModule string                      `json:"current_module"`
	Completed     map[string]ModuleCompletion `json:"completed"`
	LastUpdated   time.Time                   `json:"last_updated"`
}

// CompletedCount returns how many of the named modules appear in the
// completed mapping.
func (p *Progress) CompletedCount(modules []string) int {
	n := 0
	for _, m := range modules {
		if _, ok := p.Completed[m]; ok {
			n++
		}
	}
	return n
}
