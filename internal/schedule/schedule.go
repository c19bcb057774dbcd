// Package schedule implements the recurrence grammar for scheduled tasks:
// a positive integer followed by a unit, one of m (minutes), h (hours) or
// d (days). Examples: "30m", "6h", "1d".
package schedule

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// ErrInvalidSchedule is returned for any spec that does not match the
// grammar or encodes a zero interval.
var ErrInvalidSchedule = errors.New("invalid schedule spec")

var specRe = regexp.MustCompile(`^(\d+)([mhd])$`)

// Parse returns the recurrence interval described by spec.
func Parse(spec string) (time.Duration, error) {
	m := specRe.FindStringSubmatch(spec)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSchedule, spec)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSchedule, spec)
	}
	switch m[2] {
	case "m":
		return time.Duration(n) * time.Minute, nil
	case "h":
		return time.Duration(n) * time.Hour, nil
	default:
		return time.Duration(n) * 24 * time.Hour, nil
	}
}

// Validate reports whether spec is a usable schedule.
func Validate(spec string) error {
	_, err := Parse(spec)
	return err
}

// NextRunFrom computes the next run instant as anchor plus the spec's
// interval. The anchor is the actual moment scheduling happens (task
// creation, or completion of the previous run), not the nominal previous
// slot, so late invocations drift the cadence forward.
func NextRunFrom(anchor time.Time, spec string) (time.Time, error) {
	d, err := Parse(spec)
	if err != nil {
		return time.Time{}, err
	}
	return anchor.Add(d), nil
}
