//go:build !linux

package bootstrap

import "time"

func bootUptime() (time.Duration, bool) { return 0, false }
