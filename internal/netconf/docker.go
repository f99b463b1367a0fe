package netconf

import (
	"context"
	"fmt"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	dockernetwork "github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
)

// DockerAPI is the slice of the Docker engine API the reconciler needs.
// Satisfied by *client.Client.
type DockerAPI interface {
	NetworkInspect(ctx context.Context, networkID string, options dockernetwork.InspectOptions) (dockernetwork.Inspect, error)
	NetworkCreate(ctx context.Context, name string, options dockernetwork.CreateOptions) (dockernetwork.CreateResponse, error)
	NetworkRemove(ctx context.Context, networkID string) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	Ping(ctx context.Context) (types.Ping, error)
}

// Networks manages the fixed bridge networks through the Docker API.
type Networks struct {
	cli DockerAPI
}

func NewNetworks(cli DockerAPI) *Networks {
	return &Networks{cli: cli}
}

// NewDockerClient builds the engine client from the environment.
func NewDockerClient() (*client.Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return cli, nil
}

// EnsureNetwork makes the named bridge network exist with the declared
// addressing. A network with the wrong subnet is torn down and recreated;
// a matching one is left alone. Returns the bridge interface name.
func (n *Networks) EnsureNetwork(ctx context.Context, spec NetworkSpec) (string, error) {
	needsCreate := false
	nw, err := n.cli.NetworkInspect(ctx, spec.Name, dockernetwork.InspectOptions{})
	if err != nil {
		if !errdefs.IsNotFound(err) {
			return "", fmt.Errorf("inspect docker network %q: %w", spec.Name, err)
		}
		needsCreate = true
	} else if len(nw.IPAM.Config) == 0 || nw.IPAM.Config[0].Subnet != spec.Subnet.String() {
		if err := n.purgeContainers(ctx, spec.Name, nw); err != nil {
			return "", err
		}
		if err := n.cli.NetworkRemove(ctx, nw.ID); err != nil {
			return "", fmt.Errorf("remove mismatched docker network %q: %w", spec.Name, err)
		}
		needsCreate = true
	}

	if needsCreate {
		if err := n.create(ctx, spec); err != nil {
			return "", err
		}
		nw, err = n.cli.NetworkInspect(ctx, spec.Name, dockernetwork.InspectOptions{})
		if err != nil {
			return "", fmt.Errorf("inspect docker network %q: %w", spec.Name, err)
		}
	}

	return "br-" + nw.ID[:12], nil
}

// RecreateNetwork destroys and recreates the network unconditionally.
// Phase2 uses this to guarantee deterministic bridge addressing across
// redeployments regardless of what the previous deployment left behind.
func (n *Networks) RecreateNetwork(ctx context.Context, spec NetworkSpec) (string, error) {
	nw, err := n.cli.NetworkInspect(ctx, spec.Name, dockernetwork.InspectOptions{})
	if err == nil {
		if err := n.purgeContainers(ctx, spec.Name, nw); err != nil {
			return "", err
		}
		if err := n.cli.NetworkRemove(ctx, nw.ID); err != nil && !errdefs.IsNotFound(err) {
			return "", fmt.Errorf("remove docker network %q: %w", spec.Name, err)
		}
	} else if !errdefs.IsNotFound(err) {
		return "", fmt.Errorf("inspect docker network %q: %w", spec.Name, err)
	}

	if err := n.create(ctx, spec); err != nil {
		return "", err
	}
	nw, err = n.cli.NetworkInspect(ctx, spec.Name, dockernetwork.InspectOptions{})
	if err != nil {
		return "", fmt.Errorf("inspect docker network %q: %w", spec.Name, err)
	}
	return "br-" + nw.ID[:12], nil
}

func (n *Networks) create(ctx context.Context, spec NetworkSpec) error {
	cfg := dockernetwork.IPAMConfig{
		Subnet:  spec.Subnet.String(),
		Gateway: spec.Gateway.String(),
	}
	if spec.IPRange.IsValid() {
		cfg.IPRange = spec.IPRange.String()
	}
	if _, err := n.cli.NetworkCreate(ctx, spec.Name, dockernetwork.CreateOptions{
		Driver: "bridge",
		Scope:  "local",
		IPAM:   &dockernetwork.IPAM{Config: []dockernetwork.IPAMConfig{cfg}},
	}); err != nil {
		return fmt.Errorf("create docker network %q: %w", spec.Name, err)
	}
	return nil
}

func (n *Networks) purgeContainers(ctx context.Context, networkName string, nw dockernetwork.Inspect) error {
	for id := range nw.Containers {
		if err := n.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true, RemoveVolumes: true}); err != nil {
			if errdefs.IsNotFound(err) {
				continue
			}
			return fmt.Errorf("remove container %q attached to docker network %q: %w", id, networkName, err)
		}
	}
	return nil
}
