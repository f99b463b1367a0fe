package netconf

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// describedNetwork is the published form of a NetworkSpec. Service-deployment
// tooling reads this file to pick the Docker network a service attaches to,
// so the field set is a contract: name, subnet, gateway.
type describedNetwork struct {
	Name    string `yaml:"name"`
	Subnet  string `yaml:"subnet"`
	Gateway string `yaml:"gateway"`
}

// WriteDescription publishes the network layout for downstream tooling.
func WriteDescription(path string, specs []NetworkSpec) error {
	out := make([]describedNetwork, len(specs))
	for i, s := range specs {
		out[i] = describedNetwork{
			Name:    s.Name,
			Subnet:  s.Subnet.String(),
			Gateway: s.Gateway.String(),
		}
	}
	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshal network description: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write network description: %w", err)
	}
	return nil
}
