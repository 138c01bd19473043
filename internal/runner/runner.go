// Package runner wires the harness together for a run: it builds the managed
// containers from configuration, starts them, applies setup-task stacks,
// pushes deployments, and unwinds everything in reverse.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/jarness/jarness/internal/history"
	"github.com/jarness/jarness/pkg/artifact"
	"github.com/jarness/jarness/pkg/config"
	"github.com/jarness/jarness/pkg/console"
	"github.com/jarness/jarness/pkg/container"
	"github.com/jarness/jarness/pkg/deploy"
	"github.com/jarness/jarness/pkg/setup"
	"github.com/jarness/jarness/pkg/sshx"
)

// Instance bundles one container with its deployer and setup stack
type Instance struct {
	Container *container.ManagedContainer
	Deployer  *deploy.Deployer
	Stack     *setup.Stack

	cfg    *config.ContainerConfig
	remote *sshx.Client
}

// Runner owns every configured container for the duration of a run
type Runner struct {
	cfg      *config.Config
	resolver *artifact.Resolver
	pool     *sshx.Pool
	store    *history.Store

	mu        sync.Mutex
	instances map[string]*Instance
	order     []string
	started   []string
}

// New builds a runner from the harness configuration. Remote containers get
// their SSH connection dialed here so misconfiguration fails before anything
// starts.
func New(cfg *config.Config, store *history.Store) (*Runner, error) {
	r := &Runner{
		cfg:       cfg,
		resolver:  artifact.NewResolver(cfg.Artifacts),
		pool:      sshx.NewPool(),
		store:     store,
		instances: make(map[string]*Instance),
	}

	ids := make([]string, 0, len(cfg.Containers))
	for id := range cfg.Containers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	r.order = ids

	for _, id := range ids {
		inst, err := r.buildInstance(id, cfg.Containers[id])
		if err != nil {
			r.Close()
			return nil, err
		}
		r.instances[id] = inst
	}

	return r, nil
}

func (r *Runner) buildInstance(id string, cc *config.ContainerConfig) (*Instance, error) {
	capture := console.NewCapture(console.CaptureConfig{
		File:       cc.ConsoleLog.File,
		MaxSize:    cc.ConsoleLog.MaxSize,
		MaxBackups: cc.ConsoleLog.MaxBackups,
		TailLines:  cc.ConsoleLog.TailLines,
	})

	deps := container.Deps{Capture: capture}
	if r.store != nil {
		deps.Events = r.store
	}

	var remote *sshx.Client
	if cc.Remote != nil {
		client, err := r.pool.Get(id, sshx.Config{
			Host:            cc.Remote.Host,
			Port:            cc.Remote.Port,
			Username:        cc.Remote.Username,
			AuthMethod:      cc.Remote.AuthMethod,
			KeyPath:         cc.Remote.KeyPath,
			Password:        cc.Remote.Password,
			KnownHostsPath:  cc.Remote.KnownHostsPath,
			TrustOnFirstUse: cc.Remote.TrustOnFirstUse,
		})
		if err != nil {
			return nil, fmt.Errorf("container %s: %w", id, err)
		}
		remote = client
		deps.Executor = container.SSHExecutor{Client: client}
	}

	cont, err := container.New(id, cc, deps)
	if err != nil {
		return nil, fmt.Errorf("container %s: %w", id, err)
	}

	deployer := deploy.NewDeployer(cont.Client())
	if remote != nil {
		deployer.WithRemote(remote, cc.Remote.WorkDir)
	}

	return &Instance{
		Container: cont,
		Deployer:  deployer,
		Stack:     setup.NewStack(),
		cfg:       cc,
		remote:    remote,
	}, nil
}

// Instance returns the named instance, or nil
func (r *Runner) Instance(id string) *Instance {
	return r.instances[id]
}

// IDs returns the container IDs in start order
func (r *Runner) IDs() []string {
	return r.order
}

// RegisterTasks appends setup tasks to a container's stack
func (r *Runner) RegisterTasks(containerID string, tasks ...setup.Task) error {
	inst, ok := r.instances[containerID]
	if !ok {
		return fmt.Errorf("unknown container: %s", containerID)
	}
	for _, t := range tasks {
		inst.Stack.Add(t)
	}
	return nil
}

// Start starts one container: resolves its server artifact, stages it on the
// remote host when needed, launches, runs the setup stack, and pushes the
// configured deployments.
func (r *Runner) Start(ctx context.Context, id string) error {
	inst, ok := r.instances[id]
	if !ok {
		return fmt.Errorf("unknown container: %s", id)
	}

	if err := r.stageArtifacts(ctx, id, inst); err != nil {
		return err
	}

	if err := inst.Container.Start(ctx); err != nil {
		return err
	}
	r.markStarted(id)

	setupStart := time.Now()
	if err := inst.Stack.Setup(ctx, inst.Container.Client(), id); err != nil {
		r.recordOperation(id, "setup", "failed", setupStart)
		return err
	}
	if inst.Stack.Completed() > 0 {
		r.recordOperation(id, "setup", "success", setupStart)
	}

	for _, source := range inst.cfg.Deployments {
		local, err := r.resolver.Resolve(ctx, source)
		if err != nil {
			return fmt.Errorf("container %s: %w", id, err)
		}
		deployStart := time.Now()
		if _, err := inst.Deployer.Deploy(ctx, local); err != nil {
			r.recordOperation(id, "deploy", "failed", deployStart)
			return fmt.Errorf("container %s: %w", id, err)
		}
		r.recordOperation(id, "deploy", "success", deployStart)
	}

	return nil
}

func (r *Runner) recordOperation(id, operation, outcome string, start time.Time) {
	if r.store != nil {
		r.store.RecordOperation(id, operation, outcome, time.Since(start))
	}
}

func (r *Runner) stageArtifacts(ctx context.Context, id string, inst *Instance) error {
	cc := inst.cfg
	if cc.Variant != config.VariantBootable {
		return nil
	}

	local, err := r.resolver.Resolve(ctx, cc.JarFile)
	if err != nil {
		return fmt.Errorf("container %s: %w", id, err)
	}

	if inst.remote != nil {
		remotePath := path.Join(cc.Remote.WorkDir, filepath.Base(local))
		if err := inst.remote.Upload(local, remotePath); err != nil {
			return fmt.Errorf("container %s: %w", id, err)
		}
		cc.JarFile = remotePath
		return nil
	}

	cc.JarFile = local
	return nil
}

// StartAll starts every container in order, stopping the ones already
// started when one fails.
func (r *Runner) StartAll(ctx context.Context) error {
	for _, id := range r.order {
		if err := r.Start(ctx, id); err != nil {
			slog.Error("container start failed, unwinding", "container", id, "error", err)
			if stopErr := r.StopAll(context.WithoutCancel(ctx)); stopErr != nil {
				return errors.Join(err, stopErr)
			}
			return err
		}
	}
	return nil
}

// Stop unwinds one container: undeploys everything, tears the setup stack
// down, and stops the server. All steps are attempted; failures are joined.
func (r *Runner) Stop(ctx context.Context, id string) error {
	inst, ok := r.instances[id]
	if !ok {
		return fmt.Errorf("unknown container: %s", id)
	}

	var errs []error
	if err := inst.Deployer.UndeployAll(ctx); err != nil {
		errs = append(errs, err)
	}
	if inst.Stack.Completed() > 0 {
		teardownStart := time.Now()
		if err := inst.Stack.TearDown(ctx, inst.Container.Client(), id); err != nil {
			r.recordOperation(id, "teardown", "failed", teardownStart)
			errs = append(errs, err)
		} else {
			r.recordOperation(id, "teardown", "success", teardownStart)
		}
	}
	if err := inst.Container.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// StopAll unwinds every started container in reverse start order
func (r *Runner) StopAll(ctx context.Context) error {
	r.mu.Lock()
	started := make([]string, len(r.started))
	copy(started, r.started)
	r.started = nil
	r.mu.Unlock()

	var errs []error
	for i := len(started) - 1; i >= 0; i-- {
		if err := r.Stop(ctx, started[i]); err != nil {
			errs = append(errs, fmt.Errorf("container %s: %w", started[i], err))
		}
	}
	return errors.Join(errs...)
}

// Close releases pooled connections and per-container resources
func (r *Runner) Close() {
	for _, inst := range r.instances {
		if c := inst.Container.Console(); c != nil {
			c.Close()
		}
		inst.Container.Client().Close()
	}
	r.pool.Close()
}

func (r *Runner) markStarted(id string) {
	r.mu.Lock()
	r.started = append(r.started, id)
	r.mu.Unlock()
}
