// Package pool recycles the timers behind the strong pull-up dwells and the
// busy poll delays, which run once per committed row.
package pool

import (
	"sync"
	"time"
)

var timers = sync.Pool{
	New: func() any {
		t := time.NewTimer(time.Hour)
		t.Stop()

		return t
	},
}

// Sleep blocks for d on a recycled timer. It returns at once when d <= 0.
func Sleep(d time.Duration) {
	if d <= 0 {
		return
	}

	t, _ := timers.Get().(*time.Timer)
	t.Reset(d)
	<-t.C
	timers.Put(t)
}
