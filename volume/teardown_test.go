package volume

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/penguin-xe/android-system-vold/internal/testlogging"
)

func TestRunTeardown_BestEffortContinues(t *testing.T) {
	var ran []string

	step := func(name string, e effort, err error) teardownStep {
		return teardownStep{name, e, func(ctx context.Context) error {
			ran = append(ran, name)
			return err
		}}
	}

	err := runTeardown(testlogging.Context(t), []teardownStep{
		step("a", bestEffort, errors.New("boom")),
		step("b", bestEffort, nil),
		step("c", mandatory, nil),
	})

	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, ran)
}

func TestRunTeardown_MandatoryStops(t *testing.T) {
	var ran []string

	step := func(name string, e effort, err error) teardownStep {
		return teardownStep{name, e, func(ctx context.Context) error {
			ran = append(ran, name)
			return err
		}}
	}

	err := runTeardown(testlogging.Context(t), []teardownStep{
		step("a", bestEffort, nil),
		step("b", mandatory, errors.New("boom")),
		step("c", bestEffort, nil),
	})

	require.ErrorContains(t, err, "b")
	require.ErrorContains(t, err, "boom")
	require.Equal(t, []string{"a", "b"}, ran)
}

func TestRunTeardown_Empty(t *testing.T) {
	require.NoError(t, runTeardown(testlogging.Context(t), nil))
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{
		StateUnmounted:   "unmounted",
		StateChecking:    "checking",
		StateMounted:     "mounted",
		StateEjecting:    "ejecting",
		StateUnmountable: "unmountable",
		StateBadRemoval:  "bad-removal",
		State(99):        "unknown",
	} {
		require.Equal(t, want, s.String())
	}
}
