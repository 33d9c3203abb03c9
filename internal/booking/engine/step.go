package engine

import (
	"context"
	"fmt"
)

// Step moves an attempt forward. On success the attempt enters Reaches.
type Step struct {
	Name    string
	Reaches State
	Execute func(ctx context.Context, a *Attempt) error
}

func NewStep(name string, reaches State, execute func(ctx context.Context, a *Attempt) error) Step {
	return Step{
		Name:    name,
		Reaches: reaches,
		Execute: execute,
	}
}

// run executes steps in order and stops at the first failure, leaving the
// attempt in Failed.
func run(ctx context.Context, a *Attempt, steps []Step) error {
	for _, step := range steps {
		err := ctx.Err()
		if err == nil {
			err = step.Execute(ctx, a)
		}
		if err != nil {
			a.State = Failed
			a.FailedStep = step.Name
			return fmt.Errorf("%s: %w", step.Name, err)
		}
		a.State = step.Reaches
	}
	return nil
}
