// Package waitfor implements bounded polling for external conditions.
//
// It exists for situations where an out-of-process actor causes a
// kernel-level state change it never reports back directly, so the only
// way to detect completion is to re-check a predicate until it flips.
package waitfor

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/penguin-xe/android-system-vold/internal/clock"
	"github.com/penguin-xe/android-system-vold/logging"
)

var log = logging.GetContextLoggerFunc("waitfor")

// ErrTimeout is returned by Condition when the predicate does not become
// true within the allotted time.
var ErrTimeout = errors.New("timed out waiting for condition")

// overridable in tests
var (
	timeNow = clock.Now
	sleep   = time.Sleep
)

// Condition polls pred every interval until it returns true or timeout
// elapses. The predicate is always evaluated at least once.
func Condition(ctx context.Context, pred func() bool, interval, timeout time.Duration) error {
	start := timeNow()

	for !pred() {
		if timeNow().Sub(start) > timeout {
			return ErrTimeout
		}

		log(ctx).Debugf("condition not met, sleeping %v", interval)
		sleep(interval)
	}

	return nil
}
