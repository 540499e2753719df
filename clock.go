package vbs

import "time"

// Clock supplies timestamps for commits and links.
type Clock interface {
	Now() time.Time
}

// SystemClock is a Clock reading the system time.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
