package services

import "time"

// HourBucketFunc floors a timestamp to its canonical hour bucket. It is
// injected into the services that key on hour buckets so tests can pin
// the clock.
type HourBucketFunc func(time.Time) time.Time

// HourBucketIn returns the floor-to-hour function for a timezone.
func HourBucketIn(loc *time.Location) HourBucketFunc {
	if loc == nil {
		loc = time.UTC
	}
	return func(now time.Time) time.Time {
		t := now.In(loc)
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, loc)
	}
}
