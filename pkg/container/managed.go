package container

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jarness/jarness/pkg/config"
	"github.com/jarness/jarness/pkg/console"
	"github.com/jarness/jarness/pkg/management"
)

// monitor is the slice of the management client the lifecycle loop uses.
// Narrowed to an interface so tests can stand in for a live endpoint.
type monitor interface {
	ServerState(ctx context.Context) (string, error)
	Shutdown(ctx context.Context) error
}

// ManagedContainer owns one server instance: it launches the process through
// the variant adapter's command line, polls the management endpoint until the
// server reports itself running, and stops it again.
type ManagedContainer struct {
	id      string
	cfg     *config.ContainerConfig
	adapter DeployableContainer
	exec    CommandExecutor
	client  *management.Client
	monitor monitor
	capture *console.Capture
	events  EventRecorder

	mu      sync.Mutex
	proc    Process
	state   string
	adopted bool
}

func newManaged(id string, cfg *config.ContainerConfig, adapter DeployableContainer, deps Deps) *ManagedContainer {
	return &ManagedContainer{
		id:      id,
		cfg:     cfg,
		adapter: adapter,
		exec:    deps.Executor,
		client:  deps.Client,
		monitor: deps.Client,
		capture: deps.Capture,
		events:  deps.Events,
		state:   StateStopped,
	}
}

// ID returns the container identifier
func (m *ManagedContainer) ID() string { return m.id }

// Config returns the container configuration
func (m *ManagedContainer) Config() *config.ContainerConfig { return m.cfg }

// Client returns the management client for this container
func (m *ManagedContainer) Client() *management.Client { return m.client }

// Console returns the console capture, or nil when none is attached
func (m *ManagedContainer) Console() *console.Capture { return m.capture }

// State returns the current lifecycle state
func (m *ManagedContainer) State() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// PID returns the server process ID, or 0 when not running or unknown
func (m *ManagedContainer) PID() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.proc == nil {
		return 0
	}
	return m.proc.PID()
}

// Start launches the server and blocks until the management endpoint reports
// it running, the startup timeout elapses, or the process exits early. When a
// server is already reachable and AllowConnectingToRunningServer is set the
// instance is adopted instead of launched.
func (m *ManagedContainer) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateRunning || m.state == StateStarting {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("container %s is already %s", m.id, state)
	}
	m.state = StateStarting
	m.mu.Unlock()

	if state := m.probeRunning(ctx); state {
		if m.cfg.AllowConnectingToRunningServer {
			slog.Info("connecting to already running server", "container", m.id)
			m.setState(StateRunning)
			m.mu.Lock()
			m.adopted = true
			m.mu.Unlock()
			m.record("adopted", "")
			return nil
		}
		m.setState(StateFailed)
		return fmt.Errorf("a server is already running at %s; refusing to start container %s",
			m.client.Endpoint(), m.id)
	}

	builder, err := m.adapter.CreateCommand(m.cfg)
	if err != nil {
		m.setState(StateFailed)
		return err
	}
	args, err := builder.Build()
	if err != nil {
		m.setState(StateFailed)
		return err
	}

	slog.Info("starting container", "container", m.id, "command", args)
	m.record("starting", "")

	spec := StartSpec{Args: args, Dir: builder.WorkingDir(), Env: builder.Env()}
	if m.capture != nil {
		spec.Output = m.capture
	}

	proc, err := m.exec.Start(ctx, spec)
	if err != nil {
		m.setState(StateFailed)
		m.record("start_failed", err.Error())
		return fmt.Errorf("failed to launch container %s: %w", m.id, err)
	}

	m.mu.Lock()
	m.proc = proc
	m.mu.Unlock()

	if err := m.awaitStarted(ctx, proc); err != nil {
		proc.Kill()
		m.setState(StateFailed)
		m.record("start_failed", err.Error())
		return err
	}

	m.setState(StateRunning)
	m.record("started", "")
	slog.Info("container started", "container", m.id, "pid", proc.PID())
	return nil
}

func (m *ManagedContainer) awaitStarted(ctx context.Context, proc Process) error {
	timeout := m.cfg.StartupTimeoutD()
	interval := m.cfg.PollIntervalD()
	deadline := time.Now().Add(timeout)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-proc.Done():
			return fmt.Errorf("container %s exited before its management endpoint came up: %v",
				m.id, proc.Err())
		case <-ticker.C:
			if time.Now().After(deadline) {
				return fmt.Errorf("container %s startup timeout after %v", m.id, timeout)
			}
			state, err := m.monitor.ServerState(ctx)
			if err != nil {
				slog.Debug("management endpoint not ready", "container", m.id, "error", err)
				continue
			}
			if state == "running" {
				return nil
			}
		}
	}
}

// Stop shuts the server down through the management endpoint, waiting up to
// the stop timeout before killing the process. Adopted servers are shut down
// but their process is never killed (the harness did not start it).
func (m *ManagedContainer) Stop(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateRunning && m.state != StateStarting {
		m.mu.Unlock()
		return nil
	}
	m.state = StateStopping
	proc := m.proc
	adopted := m.adopted
	m.mu.Unlock()

	slog.Info("stopping container", "container", m.id)

	if err := m.monitor.Shutdown(ctx); err != nil {
		slog.Warn("shutdown operation failed", "container", m.id, "error", err)
	}

	if adopted || proc == nil {
		m.finishStop()
		return nil
	}

	select {
	case <-proc.Done():
		m.finishStop()
		return nil
	case <-time.After(m.cfg.StopTimeoutD()):
	case <-ctx.Done():
	}

	slog.Warn("graceful shutdown timed out, killing process", "container", m.id)
	if err := proc.Kill(); err != nil {
		return fmt.Errorf("failed to kill container %s: %w", m.id, err)
	}
	<-proc.Done()
	m.finishStop()
	return nil
}

// Kill terminates the server process without a graceful shutdown
func (m *ManagedContainer) Kill() error {
	m.mu.Lock()
	proc := m.proc
	m.mu.Unlock()

	if proc == nil {
		return nil
	}
	if err := proc.Kill(); err != nil {
		return fmt.Errorf("failed to kill container %s: %w", m.id, err)
	}
	<-proc.Done()
	m.setState(StateStopped)
	m.record("killed", "")
	return nil
}

func (m *ManagedContainer) finishStop() {
	m.setState(StateStopped)
	m.mu.Lock()
	m.proc = nil
	m.adopted = false
	m.mu.Unlock()
	m.record("stopped", "")
	slog.Info("container stopped", "container", m.id)
}

// probeRunning checks whether a server already answers on the management
// endpoint.
func (m *ManagedContainer) probeRunning(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	state, err := m.monitor.ServerState(probeCtx)
	return err == nil && state == "running"
}

func (m *ManagedContainer) setState(state string) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
}

func (m *ManagedContainer) record(event, detail string) {
	if m.events != nil {
		m.events.RecordEvent(m.id, event, detail)
	}
}
