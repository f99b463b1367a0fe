//go:build linux

package bootstrap

import (
	"time"

	"golang.org/x/sys/unix"
)

// bootUptime reports how long the host has been up. Recorded in the run
// journal so a slow phase2 can be told apart from a slow boot.
func bootUptime() (time.Duration, bool) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, false
	}
	return time.Duration(info.Uptime) * time.Second, true
}
