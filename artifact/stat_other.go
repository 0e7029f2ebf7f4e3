//go:build !linux

package artifact

import "time"

// statTimes has no portable change/access time source off linux;
// callers fall back to modification time alone.
func statTimes(_ string) (ctime, atime time.Time, ok bool) {
	return time.Time{}, time.Time{}, false
}
