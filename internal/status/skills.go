package status

import (
	"strings"
)

// Skill names shown on the roadmap.
const (
	SkillLogic    = "Logic"
	SkillDatabase = "Database"
	SkillFrontend = "Frontend"
)

// skillKeywords classifies completed module names into skills by lowercase
// substring match. Classification is independent per skill: a module may
// contribute to zero, one, or several skills. Curriculum authors changing
// module names should update this table, not the aggregation code.
var skillKeywords = map[string][]string{
	SkillLogic:    {"conditional", "loop", "logic", "math", "if"},
	SkillDatabase: {"variable", "integer", "list", "file", "track", "data"},
	SkillFrontend: {"string", "text", "print", "menu", "publish", "html"},
}

// Skills returns skill names in stable display order.
func Skills() []string {
	return []string{SkillLogic, SkillDatabase, SkillFrontend}
}

// classify returns the skills a module name contributes to.
func classify(module string) []string {
	lower := strings.ToLower(module)
	var hits []string
	for _, skill := range Skills() {
		for _, kw := range skillKeywords[skill] {
			if strings.Contains(lower, kw) {
				hits = append(hits, skill)
				break
			}
		}
	}
	return hits
}
