package bootstrap

import (
	"log/slog"
	"time"

	"github.com/beevik/ntp"
)

const (
	ntpHost        = "pool.ntp.org"
	ntpMaxSkew     = 30 * time.Second
	ntpQueryBudget = 5 * time.Second
)

// CheckClock queries an NTP pool once and warns if the host clock is off.
// A skewed clock breaks TLS to the mesh control plane and the DNS API, so
// the offset is worth a log line, but freshly imaged hosts often have no
// NTP reachability yet and the bootstrap must not depend on it.
func CheckClock() {
	resp, err := ntp.QueryWithOptions(ntpHost, ntp.QueryOptions{Timeout: ntpQueryBudget})
	if err != nil {
		slog.Warn("ntp preflight skipped", "host", ntpHost, "err", err)
		return
	}
	offset := resp.ClockOffset
	if offset < 0 {
		offset = -offset
	}
	if offset > ntpMaxSkew {
		slog.Warn("host clock skewed", "offset", resp.ClockOffset)
		return
	}
	slog.Debug("host clock in sync", "offset", resp.ClockOffset)
}
