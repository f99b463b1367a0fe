package netconf

import (
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultNetworks_Valid(t *testing.T) {
	if err := Validate(DefaultNetworks()); err != nil {
		t.Fatalf("default networks invalid: %v", err)
	}
}

func TestValidate_RejectsOverlap(t *testing.T) {
	specs := DefaultNetworks()
	specs[1].Subnet = netip.MustParsePrefix("172.28.1.0/25")
	if err := Validate(specs); err == nil {
		t.Fatal("overlapping subnets accepted")
	}
}

func TestValidate_RejectsForeignGateway(t *testing.T) {
	specs := DefaultNetworks()
	specs[0].Gateway = netip.MustParseAddr("10.0.0.1")
	if err := Validate(specs); err == nil {
		t.Fatal("gateway outside subnet accepted")
	}
}

func TestWriteDescription(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "networks.yaml")
	if err := WriteDescription(path, DefaultNetworks()); err != nil {
		t.Fatalf("WriteDescription: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	for _, want := range []string{"proxy", "172.28.1.0/24", "apps", "172.28.2.0/24", "data", "172.28.3.0/24"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("artifact missing %q:\n%s", want, data)
		}
	}
}
