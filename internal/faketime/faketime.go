// Package faketime fakes time for tests.
package faketime

import (
	"sync"
	"time"
)

// Frozen returns a function that always returns t.
func Frozen(t time.Time) func() time.Time {
	return func() time.Time {
		return t
	}
}

// AutoAdvance returns a time source function that returns a time equal to
// 'start + (n-1)*dt' where n is the number of serialized invocations of
// the returned function. The returned function will generate a time series of
// the form [start, start+dt, start+2dt, start+3dt, ...].
func AutoAdvance(start time.Time, dt time.Duration) func() time.Time {
	var mu sync.Mutex

	cur := start

	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()

		t := cur
		cur = cur.Add(dt)

		return t
	}
}
