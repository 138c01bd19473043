package container

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jarness/jarness/pkg/config"
)

func bootableConfig(jar string) *config.ContainerConfig {
	return &config.ContainerConfig{
		Variant: config.VariantBootable,
		JarFile: jar,
	}
}

func TestBootableCreateCommand(t *testing.T) {
	cfg := bootableConfig("/srv/app-bootable.jar")
	cfg.JavaOpts = `-Xmx1G -Dname="quoted value"`
	cfg.ServerArgs = "-b 127.0.0.1"
	cfg.EnableAssertions = true
	cfg.Debug = true
	cfg.DebugSuspend = true
	cfg.DebugPort = 8787

	builder, err := BootableContainer{}.CreateCommand(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	args, err := builder.Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	joined := strings.Join(args, "\x00")
	for _, fragment := range []string{
		"-Xmx1G",
		"-Dname=quoted value",
		"-ea",
		"-agentlib:jdwp=transport=dt_socket,server=y,suspend=y,address=8787",
		"/srv/app-bootable.jar",
		"-b",
		"127.0.0.1",
	} {
		if !strings.Contains(joined, fragment) {
			t.Fatalf("expected command to contain %q, got %v", fragment, args)
		}
	}
}

func TestBootableCreateCommandBlankOptions(t *testing.T) {
	cfg := bootableConfig("app.jar")
	cfg.JavaOpts = "   "
	cfg.ServerArgs = "\t"

	builder, err := BootableContainer{}.CreateCommand(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	args, err := builder.Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Whitespace-only options contribute nothing.
	want := []string{"java", "-jar", "app.jar"}
	if len(args) != len(want) {
		t.Fatalf("expected %v, got %v", want, args)
	}
}

func TestBootableCreateCommandCreatesInstallDir(t *testing.T) {
	installDir := filepath.Join(t.TempDir(), "nested", "install")
	cfg := bootableConfig("app.jar")
	cfg.InstallDir = installDir

	builder, err := BootableContainer{}.CreateCommand(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	info, err := os.Stat(installDir)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected install dir to be created: %v", err)
	}

	args, err := builder.Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(strings.Join(args, " "), "--install-dir="+installDir) {
		t.Fatalf("expected --install-dir argument, got %v", args)
	}
}

func TestBootableCreateCommandInstallDirFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to create blocker file: %v", err)
	}

	cfg := bootableConfig("app.jar")
	cfg.InstallDir = filepath.Join(blocker, "install")

	_, err := BootableContainer{}.CreateCommand(cfg)
	if err == nil {
		t.Fatalf("expected error when the install dir cannot be created")
	}
	if !strings.Contains(err.Error(), "failed to create directory") {
		t.Fatalf("expected directory error, got %v", err)
	}
}

func TestBootableConfigType(t *testing.T) {
	if got := (BootableContainer{}).ConfigType(); got != config.VariantBootable {
		t.Fatalf("expected %s, got %s", config.VariantBootable, got)
	}
}
