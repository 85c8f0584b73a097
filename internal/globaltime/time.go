// Package globaltime is the clock behind stored timestamps, rescan ranges,
// and health reports. Tests pin it with SetMockTime.
package globaltime

import (
	"sync"
	"time"
)

var (
	mu      sync.RWMutex
	nowFunc = time.Now
)

func Now() time.Time {
	mu.RLock()
	defer mu.RUnlock()
	return nowFunc()
}

func UTC() time.Time {
	return Now().UTC()
}

// Since is time.Since measured against this clock.
func Since(start time.Time) time.Duration {
	return Now().Sub(start)
}

// SetMockTime freezes the clock at t until ResetTime.
func SetMockTime(t time.Time) {
	frozen := t.UTC()
	mu.Lock()
	defer mu.Unlock()
	nowFunc = func() time.Time { return frozen }
}

func ResetTime() {
	mu.Lock()
	defer mu.Unlock()
	nowFunc = time.Now
}
