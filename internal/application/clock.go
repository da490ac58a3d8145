package application

import "time"

// Clock lets services measure elapsed time without depending on time.Now in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the default Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
