package dnssync

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"
)

const defaultTTL = 120

// ApexZone derives the registrable zone from an FQDN's last two labels:
// node1.ats.example.com → example.com.
func ApexZone(fqdn string) (string, error) {
	labels := strings.Split(strings.Trim(fqdn, "."), ".")
	if len(labels) < 2 {
		return "", fmt.Errorf("fqdn %q has no registrable zone", fqdn)
	}
	return strings.Join(labels[len(labels)-2:], "."), nil
}

// Reconciler upserts one A record.
type Reconciler struct {
	Client *Client
	TTL    int
}

func (r *Reconciler) ttl() int {
	if r.TTL > 0 {
		return r.TTL
	}
	return defaultTTL
}

// Ensure points fqdn at addr: update the existing record if one exists,
// create it otherwise — never both. The returned error is informational;
// callers log it and continue.
func (r *Reconciler) Ensure(ctx context.Context, fqdn string, addr netip.Addr) error {
	zone, err := ApexZone(fqdn)
	if err != nil {
		return err
	}
	zoneID, err := r.Client.ZoneID(ctx, zone)
	if err != nil {
		return err
	}

	rec, found, err := r.Client.FindARecord(ctx, zoneID, fqdn)
	if err != nil {
		return err
	}
	if found {
		if rec.Content == addr.String() && rec.TTL == r.ttl() {
			slog.Info("dns record already current", "fqdn", fqdn, "content", rec.Content)
			return nil
		}
		if err := r.Client.UpdateARecord(ctx, zoneID, rec.ID, fqdn, addr.String(), r.ttl()); err != nil {
			return err
		}
		slog.Info("dns record updated", "fqdn", fqdn, "content", addr)
		return nil
	}

	if err := r.Client.CreateARecord(ctx, zoneID, fqdn, addr.String(), r.ttl()); err != nil {
		return err
	}
	slog.Info("dns record created", "fqdn", fqdn, "content", addr)
	return nil
}
