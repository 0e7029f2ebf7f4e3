//go:build linux

package artifact

import (
	"time"

	"golang.org/x/sys/unix"
)

// statTimes reads the change and access times for path. ok is false
// when the stat call fails; callers then judge staleness on
// modification time alone.
func statTimes(path string) (ctime, atime time.Time, ok bool) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return time.Time{}, time.Time{}, false
	}
	ctime = time.Unix(st.Ctim.Sec, st.Ctim.Nsec)
	atime = time.Unix(st.Atim.Sec, st.Atim.Nsec)
	return ctime, atime, true
}
