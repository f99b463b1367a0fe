//go:build !linux

package firewall

func linkExists(string) bool { return false }
