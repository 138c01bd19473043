package container

import (
	"fmt"
	"os"

	"github.com/jarness/jarness/pkg/config"
	"github.com/jarness/jarness/pkg/launcher"
)

// StandaloneContainer is the adapter for the traditional unpacked
// distribution layout, launched through its standalone script.
type StandaloneContainer struct{}

// ConfigType implements DeployableContainer
func (StandaloneContainer) ConfigType() string {
	return config.VariantStandalone
}

// CreateCommand implements DeployableContainer
func (StandaloneContainer) CreateCommand(cfg *config.ContainerConfig) (launcher.CommandBuilder, error) {
	if _, err := os.Stat(cfg.DistDir); err != nil {
		return nil, fmt.Errorf("distribution directory %s is not usable: %w", cfg.DistDir, err)
	}

	builder := launcher.NewStandaloneCommand(cfg.DistDir)
	builder.SetJavaHome(cfg.JavaHome)

	if cfg.ServerConfig != "" {
		builder.SetServerConfig(cfg.ServerConfig)
	}

	javaOpts, err := launcher.SplitParams(cfg.JavaOpts)
	if err != nil {
		return nil, err
	}
	if len(javaOpts) > 0 {
		builder.SetJavaOptions(javaOpts)
	}

	if cfg.EnableAssertions {
		builder.AddJavaOption("-ea")
	}

	serverArgs, err := launcher.SplitParams(cfg.ServerArgs)
	if err != nil {
		return nil, err
	}
	if len(serverArgs) > 0 {
		builder.AddServerArguments(serverArgs)
	}

	if cfg.Debug {
		builder.SetDebug(cfg.DebugSuspend, cfg.DebugPort)
	}

	return builder, nil
}
