package schema

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrVersionMismatch is returned when a transform receives a snapshot of
	// the wrong version.
	ErrVersionMismatch = errors.New("snapshot version mismatch")

	// ErrNoPath is returned when no contiguous chain of steps reaches the
	// requested version.
	ErrNoPath = errors.New("no migration path")
)

// Env carries the inputs a transform may not derive from the snapshot.
type Env struct {
	Now    time.Time
	NewKey func() string
}

// Transform derives the rows of version To from the rows of version From.
type Transform func(in Snapshot, env Env) (Snapshot, error)

// Step upgrades the local layout from one version to the next.
type Step struct {
	From      int64
	To        int64
	Name      string
	DDL       []string
	Transform Transform
}

// Steps returns the data-transforming layout upgrades in application order.
// Versions without a step are plain SQL migrations.
func Steps() []Step {
	return []Step{
		{From: 2, To: 3, Name: "identity_backfill", DDL: identityBackfillDDL, Transform: BackfillIdentities},
		{From: 3, To: 4, Name: "staff_attribution", DDL: staffAttributionDDL, Transform: AddAttribution},
		{From: 4, To: 5, Name: "normalize_plans", DDL: normalizePlansDDL, Transform: SplitPlans},
	}
}

// Apply runs steps in order starting from in's version until target is
// reached. It is the in-memory counterpart of the store's migration runner.
func Apply(steps []Step, in Snapshot, target int64, env Env) (Snapshot, error) {
	cur := in
	for cur.Version() < target {
		step, ok := findStep(steps, cur.Version())
		if !ok {
			return nil, fmt.Errorf("%w: from version %d to %d", ErrNoPath, cur.Version(), target)
		}
		next, err := step.Transform(cur, env)
		if err != nil {
			return nil, fmt.Errorf("step %s (%d -> %d): %w", step.Name, step.From, step.To, err)
		}
		if next.Version() != step.To {
			return nil, fmt.Errorf("step %s produced version %d: %w", step.Name, next.Version(), ErrVersionMismatch)
		}
		cur = next
	}
	return cur, nil
}

func findStep(steps []Step, from int64) (Step, bool) {
	for _, s := range steps {
		if s.From == from {
			return s, true
		}
	}
	return Step{}, false
}

func mismatch(want int64, got Snapshot) error {
	return fmt.Errorf("%w: want %d, got %d", ErrVersionMismatch, want, got.Version())
}
