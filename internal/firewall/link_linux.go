//go:build linux

package firewall

import "github.com/vishvananda/netlink"

func linkExists(name string) bool {
	_, err := netlink.LinkByName(name)
	return err == nil
}
