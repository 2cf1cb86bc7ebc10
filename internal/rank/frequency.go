package rank

import (
	"strings"
	"time"
)

// Frequency is how often a tracked item should be checked.
type Frequency string

const (
	Minutely Frequency = "minutely"
	Hourly   Frequency = "hourly"
	Daily    Frequency = "daily"
	Weekly   Frequency = "weekly"
	Monthly  Frequency = "monthly"
)

// DefaultFrequency is used for any value that is not a known frequency.
const DefaultFrequency = Daily

var intervals = map[Frequency]time.Duration{
	Minutely: time.Minute,
	Hourly:   time.Hour,
	Daily:    24 * time.Hour,
	Weekly:   7 * 24 * time.Hour,
	Monthly:  30 * 24 * time.Hour,
}

// ParseFrequency maps a raw string onto a known Frequency. Matching ignores
// case and surrounding whitespace; anything else becomes DefaultFrequency.
func ParseFrequency(raw string) Frequency {
	f := Frequency(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := intervals[f]; ok {
		return f
	}
	return DefaultFrequency
}

// Valid reports whether f is one of the known frequencies.
func (f Frequency) Valid() bool {
	_, ok := intervals[f]
	return ok
}

// Interval returns the minimum time between two checks.
func (f Frequency) Interval() time.Duration {
	if d, ok := intervals[f]; ok {
		return d
	}
	return intervals[DefaultFrequency]
}

func (f Frequency) String() string {
	return string(f)
}
