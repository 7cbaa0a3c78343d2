package gamenet

import "time"

// TimeProvider is the clock behind keepalive scheduling, dead-peer detection
// and ping round trips. Tests substitute a manual clock to drive timeouts.
// Implementations must be safe for concurrent use.
type TimeProvider interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

// DefaultTimeProvider reads the wall clock.
type DefaultTimeProvider struct{}

func (DefaultTimeProvider) Now() time.Time { return time.Now() }

func (DefaultTimeProvider) Since(t time.Time) time.Duration { return time.Since(t) }

// stamp is a point in time stored as UnixNano so the receive goroutine can
// publish it atomically to the send goroutine.
type stamp = int64

func stampNow(clock TimeProvider) stamp {
	return clock.Now().UnixNano()
}

// sinceStamp reports how long ago st was taken according to clock.
func sinceStamp(clock TimeProvider, st stamp) time.Duration {
	return clock.Since(time.Unix(0, st))
}
