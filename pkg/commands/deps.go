package commands

import (
	"context"

	"github.com/smartcontractkit/lottery-deployments/config"
	"github.com/smartcontractkit/lottery-deployments/contracts"
	"github.com/smartcontractkit/lottery-deployments/network"
	"github.com/smartcontractkit/lottery-deployments/pkg/logger"
)

// ConfigLoaderFunc loads the project config from path.
type ConfigLoaderFunc func(path string) (*config.Config, error)

// NetworkConnectorFunc connects to the named network.
type NetworkConnectorFunc func(
	ctx context.Context, lggr logger.Logger, cfg *config.Config, name string, opts ...network.ConnectOption,
) (*network.Network, error)

// ArtifactLoaderFunc loads the build artifact of contract name from dir.
type ArtifactLoaderFunc func(dir, name string) (*contracts.Artifact, error)

// Deps holds the injectable dependencies of the commands.
// All fields are optional; nil values will use production defaults.
type Deps struct {
	// ConfigLoader loads the project config.
	// Default: config.Load
	ConfigLoader ConfigLoaderFunc

	// NetworkConnector connects to the active network.
	// Default: network.Connect
	NetworkConnector NetworkConnectorFunc

	// ArtifactLoader loads the compiled lottery.
	// Default: contracts.LoadArtifact
	ArtifactLoader ArtifactLoaderFunc
}

// applyDefaults fills in nil dependencies with production defaults.
func (d *Deps) applyDefaults() {
	if d.ConfigLoader == nil {
		d.ConfigLoader = config.Load
	}
	if d.NetworkConnector == nil {
		d.NetworkConnector = network.Connect
	}
	if d.ArtifactLoader == nil {
		d.ArtifactLoader = contracts.LoadArtifact
	}
}
