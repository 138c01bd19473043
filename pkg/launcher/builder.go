package launcher

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// CommandBuilder assembles the command line used to launch a server instance
type CommandBuilder interface {
	// Build returns the full argument vector, executable first.
	Build() ([]string, error)

	// WorkingDir returns the directory the command runs in, or "" for the
	// caller's directory.
	WorkingDir() string

	// Env returns extra environment entries in KEY=VALUE form.
	Env() []string
}

// BootableJarCommandBuilder builds the launch command for a bootable JAR
type BootableJarCommandBuilder struct {
	jarFile      string
	installDir   string
	javaHome     string
	javaOpts     []string
	serverArgs   []string
	debug        bool
	debugSuspend bool
	debugPort    int
	workingDir   string
	env          []string
}

// NewBootableJarCommand creates a builder for the given bootable JAR
func NewBootableJarCommand(jarFile string) *BootableJarCommandBuilder {
	return &BootableJarCommandBuilder{jarFile: jarFile}
}

// SetInstallDir sets the directory the server unpacks itself into
func (b *BootableJarCommandBuilder) SetInstallDir(dir string) *BootableJarCommandBuilder {
	b.installDir = dir
	return b
}

// SetJavaHome sets the Java installation used to launch the server
func (b *BootableJarCommandBuilder) SetJavaHome(javaHome string) *BootableJarCommandBuilder {
	b.javaHome = javaHome
	return b
}

// SetJavaOptions replaces the JVM options
func (b *BootableJarCommandBuilder) SetJavaOptions(opts []string) *BootableJarCommandBuilder {
	b.javaOpts = opts
	return b
}

// AddJavaOption appends a single JVM option
func (b *BootableJarCommandBuilder) AddJavaOption(opt string) *BootableJarCommandBuilder {
	b.javaOpts = append(b.javaOpts, opt)
	return b
}

// AddServerArguments appends arguments passed to the server itself
func (b *BootableJarCommandBuilder) AddServerArguments(args []string) *BootableJarCommandBuilder {
	b.serverArgs = append(b.serverArgs, args...)
	return b
}

// SetDebug enables the JDWP agent on the given port
func (b *BootableJarCommandBuilder) SetDebug(suspend bool, port int) *BootableJarCommandBuilder {
	b.debug = true
	b.debugSuspend = suspend
	b.debugPort = port
	return b
}

// SetWorkingDir sets the directory the command runs in
func (b *BootableJarCommandBuilder) SetWorkingDir(dir string) *BootableJarCommandBuilder {
	b.workingDir = dir
	return b
}

// AddEnv appends an environment entry in KEY=VALUE form
func (b *BootableJarCommandBuilder) AddEnv(entry string) *BootableJarCommandBuilder {
	b.env = append(b.env, entry)
	return b
}

// Build returns the assembled command line
func (b *BootableJarCommandBuilder) Build() ([]string, error) {
	if strings.TrimSpace(b.jarFile) == "" {
		return nil, fmt.Errorf("bootable jar file is required")
	}

	args := []string{javaExecutable(b.javaHome)}
	args = append(args, b.javaOpts...)
	if b.debug {
		args = append(args, debugOption(b.debugSuspend, b.debugPort))
	}
	args = append(args, "-jar", b.jarFile)
	if b.installDir != "" {
		args = append(args, "--install-dir="+b.installDir)
	}
	args = append(args, b.serverArgs...)
	return args, nil
}

// WorkingDir implements CommandBuilder
func (b *BootableJarCommandBuilder) WorkingDir() string { return b.workingDir }

// Env implements CommandBuilder
func (b *BootableJarCommandBuilder) Env() []string { return b.env }

// StandaloneCommandBuilder builds the launch command for an unpacked
// distribution, going through its standalone launch script.
type StandaloneCommandBuilder struct {
	distDir      string
	serverConfig string
	javaHome     string
	javaOpts     []string
	serverArgs   []string
	debug        bool
	debugSuspend bool
	debugPort    int
}

// NewStandaloneCommand creates a builder for the given distribution directory
func NewStandaloneCommand(distDir string) *StandaloneCommandBuilder {
	return &StandaloneCommandBuilder{distDir: distDir}
}

// SetServerConfig selects an alternate server configuration file
func (b *StandaloneCommandBuilder) SetServerConfig(name string) *StandaloneCommandBuilder {
	b.serverConfig = name
	return b
}

// SetJavaHome sets the Java installation used to launch the server
func (b *StandaloneCommandBuilder) SetJavaHome(javaHome string) *StandaloneCommandBuilder {
	b.javaHome = javaHome
	return b
}

// SetJavaOptions replaces the JVM options exported through JAVA_OPTS
func (b *StandaloneCommandBuilder) SetJavaOptions(opts []string) *StandaloneCommandBuilder {
	b.javaOpts = opts
	return b
}

// AddJavaOption appends a single JVM option
func (b *StandaloneCommandBuilder) AddJavaOption(opt string) *StandaloneCommandBuilder {
	b.javaOpts = append(b.javaOpts, opt)
	return b
}

// AddServerArguments appends arguments passed to the server itself
func (b *StandaloneCommandBuilder) AddServerArguments(args []string) *StandaloneCommandBuilder {
	b.serverArgs = append(b.serverArgs, args...)
	return b
}

// SetDebug enables the JDWP agent on the given port
func (b *StandaloneCommandBuilder) SetDebug(suspend bool, port int) *StandaloneCommandBuilder {
	b.debug = true
	b.debugSuspend = suspend
	b.debugPort = port
	return b
}

// Build returns the assembled command line
func (b *StandaloneCommandBuilder) Build() ([]string, error) {
	if strings.TrimSpace(b.distDir) == "" {
		return nil, fmt.Errorf("distribution directory is required")
	}

	script := "standalone.sh"
	if runtime.GOOS == "windows" {
		script = "standalone.bat"
	}
	args := []string{filepath.Join(b.distDir, "bin", script)}
	if b.serverConfig != "" {
		args = append(args, "--server-config="+b.serverConfig)
	}
	args = append(args, b.serverArgs...)
	return args, nil
}

// WorkingDir implements CommandBuilder
func (b *StandaloneCommandBuilder) WorkingDir() string { return b.distDir }

// Env implements CommandBuilder. JVM settings reach the launch script through
// the environment rather than the argument vector.
func (b *StandaloneCommandBuilder) Env() []string {
	var env []string
	if b.javaHome != "" {
		env = append(env, "JAVA_HOME="+b.javaHome)
	}
	opts := b.javaOpts
	if b.debug {
		opts = append(append([]string{}, opts...), debugOption(b.debugSuspend, b.debugPort))
	}
	if len(opts) > 0 {
		env = append(env, "JAVA_OPTS="+strings.Join(opts, " "))
	}
	return env
}

func javaExecutable(javaHome string) string {
	exe := "java"
	if runtime.GOOS == "windows" {
		exe = "java.exe"
	}
	if javaHome == "" {
		return exe
	}
	return filepath.Join(javaHome, "bin", exe)
}

func debugOption(suspend bool, port int) string {
	s := "n"
	if suspend {
		s = "y"
	}
	return fmt.Sprintf("-agentlib:jdwp=transport=dt_socket,server=y,suspend=%s,address=%d", s, port)
}
