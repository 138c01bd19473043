// Package container manages the lifecycle of server instances under test:
// building their launch command line, starting the process, waiting for the
// management endpoint to report the server running, and shutting it down.
package container

import (
	"fmt"

	"github.com/jarness/jarness/pkg/config"
	"github.com/jarness/jarness/pkg/console"
	"github.com/jarness/jarness/pkg/launcher"
	"github.com/jarness/jarness/pkg/management"
)

// Container states
const (
	StateStopped  = "stopped"
	StateStarting = "starting"
	StateRunning  = "running"
	StateStopping = "stopping"
	StateFailed   = "failed"
)

// DeployableContainer translates a container configuration into a launch
// command for one packaging variant of the server.
type DeployableContainer interface {
	// ConfigType names the configuration variant the adapter understands.
	ConfigType() string

	// CreateCommand builds the launch command from a populated configuration.
	CreateCommand(cfg *config.ContainerConfig) (launcher.CommandBuilder, error)
}

// EventRecorder receives lifecycle events for the run history. Implementations
// must tolerate concurrent calls.
type EventRecorder interface {
	RecordEvent(containerID, event, detail string)
}

// Deps are the collaborators a managed container is wired with
type Deps struct {
	Executor CommandExecutor
	Client   *management.Client
	Capture  *console.Capture
	Events   EventRecorder
}

// New creates a managed container for the configured variant
func New(id string, cfg *config.ContainerConfig, deps Deps) (*ManagedContainer, error) {
	var adapter DeployableContainer
	switch cfg.Variant {
	case config.VariantBootable:
		adapter = BootableContainer{}
	case config.VariantStandalone:
		adapter = StandaloneContainer{}
	default:
		return nil, fmt.Errorf("unknown container variant: %s", cfg.Variant)
	}

	if deps.Executor == nil {
		deps.Executor = LocalExecutor{}
	}
	if deps.Client == nil {
		deps.Client = management.NewClient(management.Config{
			Host:     cfg.Management.Host,
			Port:     cfg.Management.Port,
			Username: cfg.Management.Username,
			Password: cfg.Management.Password,
		})
	}

	return newManaged(id, cfg, adapter, deps), nil
}
