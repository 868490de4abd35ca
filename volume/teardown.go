package volume

import (
	"context"

	"github.com/pkg/errors"
)

// effort classifies a teardown step.
type effort int

const (
	// mandatory steps stop the teardown sequence when they fail.
	mandatory effort = iota

	// bestEffort steps are logged and skipped over when they fail, so
	// that teardown makes maximal forward progress.
	bestEffort
)

type teardownStep struct {
	name   string
	effort effort
	run    func(ctx context.Context) error
}

// runTeardown executes steps in order, stopping early only when a
// mandatory step fails.
func runTeardown(ctx context.Context, steps []teardownStep) error {
	for _, s := range steps {
		err := s.run(ctx)
		if err == nil {
			continue
		}

		if s.effort == bestEffort {
			log(ctx).Warnf("%v failed: %v", s.name, err)
			continue
		}

		return errors.Wrap(err, s.name)
	}

	return nil
}
