package rank

import "time"

// IsDue reports whether an item with frequency f should be checked at now.
// hasLast is false when the item has never been checked, in which case it is
// always due. Otherwise it is due once at least f.Interval() has elapsed since
// last.
func IsDue(f Frequency, last time.Time, hasLast bool, now time.Time) bool {
	if !hasLast {
		return true
	}
	return now.Sub(last) >= f.Interval()
}
