// Package status derives human-readable progress summaries from the
// progress store, for display only.
package status

import (
	"context"
	"fmt"

	"github.com/blrlabs/codelab/internal/curriculum"
	"github.com/blrlabs/codelab/internal/store"
)

const (
	// baselinePercent is shown for users with no recorded progress so the
	// roadmap bars are never empty.
	baselinePercent = 10
	// percentPerModule is the experience gained per completed module that
	// matches a skill.
	percentPerModule = 15
)

// GoalProgress is the per-goal completion count.
type GoalProgress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// Summary is the display-only progress snapshot for one user.
type Summary struct {
	Goals  map[string]GoalProgress `json:"goals"`
	Skills map[string]int          `json:"skills"`
}

// Summarizer computes summaries. It is a pure read-side component: no writes,
// no caching.
type Summarizer struct {
	repo    store.Repository
	catalog *curriculum.Catalog
}

// New creates a Summarizer.
func New(repo store.Repository, catalog *curriculum.Catalog) *Summarizer {
	return &Summarizer{repo: repo, catalog: catalog}
}

// Summarize builds per-goal completion counts and per-skill experience
// percentages for a user. Users without a progress record get the fixed
// baseline so the visuals are not degenerate.
func (s *Summarizer) Summarize(ctx context.Context, username string) (Summary, error) {
	summary := Summary{
		Goals:  make(map[string]GoalProgress, len(s.catalog.Goals())),
		Skills: make(map[string]int, len(Skills())),
	}

	var progress map[string]struct{}
	if username != "" {
		p, err := s.repo.GetProgress(ctx, username)
		if err != nil {
			return Summary{}, fmt.Errorf("load progress for summary: %w", err)
		}
		if p != nil {
			progress = make(map[string]struct{}, len(p.Completed))
			for m := range p.Completed {
				progress[m] = struct{}{}
			}
		}
	}

	for _, goal := range s.catalog.Goals() {
		modules, err := s.catalog.ModulesFor(goal)
		if err != nil {
			return Summary{}, err
		}
		gp := GoalProgress{Total: len(modules)}
		for _, m := range modules {
			if _, done := progress[m]; done {
				gp.Done++
			}
		}
		summary.Goals[goal] = gp
	}

	// No completions yet, whether the record is absent or merely empty:
	// show the baseline so the roadmap bars are never degenerate.
	if len(progress) == 0 {
		for _, skill := range Skills() {
			summary.Skills[skill] = baselinePercent
		}
		return summary, nil
	}

	counts := make(map[string]int, len(Skills()))
	for m := range progress {
		for _, skill := range classify(m) {
			counts[skill]++
		}
	}
	for _, skill := range Skills() {
		summary.Skills[skill] = min(counts[skill]*percentPerModule, 100)
	}

	return summary, nil
}
