package config

import (
	"fmt"
	"strings"
	"time"
)

// Container variants. The variant selects the command-line strategy used to
// launch the server under test.
const (
	VariantBootable   = "bootable"
	VariantStandalone = "standalone"
)

// ContainerConfig describes one server instance managed by the harness
type ContainerConfig struct {
	Variant string `yaml:"variant" json:"variant"`

	// Bootable variant: the self-contained executable jar.
	JarFile    string `yaml:"jar_file,omitempty" json:"jar_file,omitempty"`
	InstallDir string `yaml:"install_dir,omitempty" json:"install_dir,omitempty"`

	// Standalone variant: the unpacked distribution.
	DistDir      string `yaml:"dist_dir,omitempty" json:"dist_dir,omitempty"`
	ServerConfig string `yaml:"server_config,omitempty" json:"server_config,omitempty"`

	JavaHome         string `yaml:"java_home,omitempty" json:"java_home,omitempty"`
	JavaOpts         string `yaml:"java_opts,omitempty" json:"java_opts,omitempty"`
	ServerArgs       string `yaml:"server_args,omitempty" json:"server_args,omitempty"`
	EnableAssertions bool   `yaml:"enable_assertions" json:"enable_assertions"`

	Debug        bool `yaml:"debug" json:"debug"`
	DebugPort    int  `yaml:"debug_port,omitempty" json:"debug_port,omitempty"`
	DebugSuspend bool `yaml:"debug_suspend" json:"debug_suspend"`

	Management ManagementConfig `yaml:"management" json:"management"`

	StartupTimeout string `yaml:"startup_timeout,omitempty" json:"startup_timeout,omitempty"`
	StopTimeout    string `yaml:"stop_timeout,omitempty" json:"stop_timeout,omitempty"`
	PollInterval   string `yaml:"poll_interval,omitempty" json:"poll_interval,omitempty"`

	// AllowConnectingToRunningServer adopts an already-running instance
	// instead of refusing to start.
	AllowConnectingToRunningServer bool `yaml:"allow_connecting_to_running_server" json:"allow_connecting_to_running_server"`

	Remote *RemoteConfig `yaml:"remote,omitempty" json:"remote,omitempty"`

	ConsoleLog ConsoleLogConfig `yaml:"console_log" json:"console_log"`

	// Deployments are archive sources pushed after setup tasks complete.
	Deployments []string `yaml:"deployments,omitempty" json:"deployments,omitempty"`
}

// ManagementConfig contains the management endpoint coordinates
type ManagementConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Username string `yaml:"username,omitempty" json:"username,omitempty"`
	Password string `yaml:"password,omitempty" json:"-"`
	Timeout  string `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// RemoteConfig contains SSH connection details for remote containers
type RemoteConfig struct {
	Host            string `yaml:"host" json:"host"`
	Port            int    `yaml:"port" json:"port"`
	Username        string `yaml:"username" json:"username"`
	AuthMethod      string `yaml:"auth_method" json:"auth_method"` // "key" or "password"
	KeyPath         string `yaml:"key_path,omitempty" json:"key_path,omitempty"`
	Password        string `yaml:"password,omitempty" json:"-"`
	KnownHostsPath  string `yaml:"known_hosts_path,omitempty" json:"known_hosts_path,omitempty"`
	TrustOnFirstUse bool   `yaml:"trust_on_first_use" json:"trust_on_first_use"`
	WorkDir         string `yaml:"work_dir,omitempty" json:"work_dir,omitempty"`
}

// ConsoleLogConfig contains console capture settings
type ConsoleLogConfig struct {
	File       string `yaml:"file,omitempty" json:"file,omitempty"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	TailLines  int    `yaml:"tail_lines" json:"tail_lines"`
}

func (c *ContainerConfig) applyDefaults() {
	if c.Variant == "" {
		c.Variant = VariantBootable
	}
	if c.Management.Host == "" {
		c.Management.Host = "127.0.0.1"
	}
	if c.Management.Port == 0 {
		c.Management.Port = 9990
	}
	if c.DebugPort == 0 {
		c.DebugPort = 8787
	}
	if c.ConsoleLog.MaxSize == 0 {
		c.ConsoleLog.MaxSize = 50
	}
	if c.ConsoleLog.MaxBackups == 0 {
		c.ConsoleLog.MaxBackups = 3
	}
	if c.ConsoleLog.TailLines == 0 {
		c.ConsoleLog.TailLines = 500
	}
	if c.Remote != nil && c.Remote.Port == 0 {
		c.Remote.Port = 22
	}
}

// Validate checks the configuration for the selected variant
func (c *ContainerConfig) Validate() error {
	switch c.Variant {
	case VariantBootable:
		if strings.TrimSpace(c.JarFile) == "" {
			return fmt.Errorf("jar_file is required for the bootable variant")
		}
	case VariantStandalone:
		if strings.TrimSpace(c.DistDir) == "" {
			return fmt.Errorf("dist_dir is required for the standalone variant")
		}
	default:
		return fmt.Errorf("unknown container variant: %s", c.Variant)
	}

	if c.Remote != nil {
		if c.Remote.Host == "" {
			return fmt.Errorf("remote.host is required for remote containers")
		}
		switch c.Remote.AuthMethod {
		case "key", "password":
		default:
			return fmt.Errorf("unsupported remote auth method: %s", c.Remote.AuthMethod)
		}
	}

	for _, field := range []struct{ name, value string }{
		{"startup_timeout", c.StartupTimeout},
		{"stop_timeout", c.StopTimeout},
		{"poll_interval", c.PollInterval},
		{"management.timeout", c.Management.Timeout},
	} {
		if field.value == "" {
			continue
		}
		if _, err := time.ParseDuration(field.value); err != nil {
			return fmt.Errorf("invalid %s: %w", field.name, err)
		}
	}

	return nil
}

// StartupTimeoutD returns the parsed startup timeout
func (c *ContainerConfig) StartupTimeoutD() time.Duration {
	return parseDurationOr(c.StartupTimeout, 60*time.Second)
}

// StopTimeoutD returns the parsed stop timeout
func (c *ContainerConfig) StopTimeoutD() time.Duration {
	return parseDurationOr(c.StopTimeout, 30*time.Second)
}

// PollIntervalD returns the parsed startup poll interval
func (c *ContainerConfig) PollIntervalD() time.Duration {
	return parseDurationOr(c.PollInterval, 2*time.Second)
}
