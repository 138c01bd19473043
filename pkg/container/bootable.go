package container

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/jarness/jarness/pkg/config"
	"github.com/jarness/jarness/pkg/launcher"
)

// BootableContainer is the adapter for the bootable JAR packaging of the
// server: a self-contained executable jar that unpacks itself into an
// install directory at launch.
type BootableContainer struct{}

// ConfigType implements DeployableContainer
func (BootableContainer) ConfigType() string {
	return config.VariantBootable
}

// CreateCommand implements DeployableContainer
func (BootableContainer) CreateCommand(cfg *config.ContainerConfig) (launcher.CommandBuilder, error) {
	builder := launcher.NewBootableJarCommand(cfg.JarFile)

	if cfg.InstallDir != "" {
		// Some server versions refuse to boot when the install dir is
		// missing instead of creating it, so create it up front.
		if _, err := os.Stat(cfg.InstallDir); errors.Is(err, fs.ErrNotExist) {
			if err := os.MkdirAll(cfg.InstallDir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create directory %s: %w", cfg.InstallDir, err)
			}
		}
		builder.SetInstallDir(cfg.InstallDir)
	}

	builder.SetJavaHome(cfg.JavaHome)

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
