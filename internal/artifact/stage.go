// Package artifact defines the four pipeline stages, their structural
// schemas, and the SQLite-backed store for validated stage outputs.
package artifact

import "fmt"

// Stage identifies one of the four ordered generation stages.
type Stage string

const (
	// StageScenario builds the business scenario and preliminary claims.
	StageScenario Stage = "scenario"
	// StageProblems derives four problematic marketing messages.
	StageProblems Stage = "problems"
	// StageCorrections rewrites each problematic message compliantly.
	StageCorrections Stage = "corrections"
	// StageImplementation produces the rollout roadmap and metrics.
	StageImplementation Stage = "implementation"
)

// stageOrder is the fixed dependency chain. Each stage depends on the one
// before it; there is no branching.
var stageOrder = []Stage{
	StageScenario,
	StageProblems,
	StageCorrections,
	StageImplementation,
}

// Stages returns the stages in dependency order.
func Stages() []Stage {
	out := make([]Stage, len(stageOrder))
	copy(out, stageOrder)
	return out
}

// ParseStage converts a string to a Stage.
func ParseStage(s string) (Stage, error) {
	for _, st := range stageOrder {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q", s)
}

// Index returns the stage's position in the chain, or -1 if unknown.
func (s Stage) Index() int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Next returns the stage that follows s, or false for the last stage.
func (s Stage) Next() (Stage, bool) {
	i := s.Index()
	if i < 0 || i+1 >= len(stageOrder) {
		return "", false
	}
	return stageOrder[i+1], true
}

// Dependency returns the stage s depends on, or false for the first stage.
func (s Stage) Dependency() (Stage, bool) {
	i := s.Index()
	if i <= 0 {
		return "", false
	}
	return stageOrder[i-1], true
}

// Upstream returns every stage before s in dependency order.
func (s Stage) Upstream() []Stage {
	i := s.Index()
	if i <= 0 {
		return nil
	}
	out := make([]Stage, i)
	copy(out, stageOrder[:i])
	return out
}
