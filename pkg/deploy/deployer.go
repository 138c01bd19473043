// Package deploy pushes deployment archives to a running container through
// its management endpoint and tracks them so a run can be unwound.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Jeffail/gabs/v2"
	"github.com/google/uuid"

	"github.com/jarness/jarness/pkg/management"
	"github.com/jarness/jarness/pkg/sshx"
)

// Executor is the slice of the management client the deployer needs
type Executor interface {
	Execute(ctx context.Context, op *management.Operation) (*gabs.Container, error)
}

// Deployer deploys archives to one container
type Deployer struct {
	client Executor

	// remote is set for containers running on another host; archives are
	// uploaded there and referenced by path instead of attached as streams.
	remote    *sshx.Client
	remoteDir string

	mu       sync.Mutex
	deployed []string
}

// NewDeployer creates a deployer over the given management client
func NewDeployer(client Executor) *Deployer {
	return &Deployer{client: client}
}

// WithRemote switches the deployer to remote mode: archives are copied to
// workDir on the remote host over sftp.
func (d *Deployer) WithRemote(client *sshx.Client, workDir string) *Deployer {
	d.remote = client
	d.remoteDir = workDir
	return d
}

// Deploy pushes the archive at archivePath and returns the runtime name it
// was deployed under. Runtime names are made unique per run so repeated runs
// never collide on the server.
func (d *Deployer) Deploy(ctx context.Context, archivePath string) (string, error) {
	runtimeName := uniqueRuntimeName(filepath.Base(archivePath))

	var (
		addOp *management.Operation
		err   error
	)
	if d.remote != nil {
		addOp, err = d.remoteAdd(archivePath, runtimeName)
		if err != nil {
			return "", err
		}
	} else {
		var content *os.File
		addOp, content, err = d.localAdd(archivePath, runtimeName)
		if err != nil {
			return "", err
		}
		defer content.Close()
	}

	deployOp := management.NewOperation("deploy", "deployment", runtimeName)
	op := management.Composite(addOp, deployOp)

	response, err := d.client.Execute(ctx, op)
	if err != nil {
		return "", fmt.Errorf("failed to deploy %s: %w", archivePath, err)
	}
	if !management.IsSuccessfulOutcome(response) {
		return "", management.NewOperationError(op, response)
	}

	d.mu.Lock()
	d.deployed = append(d.deployed, runtimeName)
	d.mu.Unlock()

	slog.Info("deployed archive", "archive", archivePath, "runtime_name", runtimeName)
	return runtimeName, nil
}

func (d *Deployer) localAdd(archivePath, runtimeName string) (*management.Operation, *os.File, error) {
	content, err := os.Open(archivePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open deployment archive: %w", err)
	}

	op := management.NewOperation("add", "deployment", runtimeName)
	idx := op.AddAttachment(content)
	op.Set("content", []any{map[string]any{"input-stream-index": idx}})
	return op, content, nil
}

func (d *Deployer) remoteAdd(archivePath, runtimeName string) (*management.Operation, error) {
	remotePath := path.Join(d.remoteDir, "deployments", runtimeName)
	if err := d.remote.Upload(archivePath, remotePath); err != nil {
		return nil, fmt.Errorf("failed to upload deployment archive: %w", err)
	}

	op := management.NewOperation("add", "deployment", runtimeName)
	op.Set("content", []any{map[string]any{"path": remotePath, "archive": true}})
	return op, nil
}

// Undeploy removes the deployment with the given runtime name. A deployment
// the server no longer knows about is not an error.
func (d *Deployer) Undeploy(ctx context.Context, runtimeName string) error {
	op := management.Composite(
		management.NewOperation("undeploy", "deployment", runtimeName),
		management.NewOperation("remove", "deployment", runtimeName),
	)

	response, err := d.client.Execute(ctx, op)
	if err != nil {
		return fmt.Errorf("failed to undeploy %s: %w", runtimeName, err)
	}
	if !management.IsSuccessfulOutcome(response) {
		desc := management.FailureDescription(response)
		if strings.Contains(desc, "not found") {
			slog.Warn("deployment already gone", "runtime_name", runtimeName)
		} else {
			return management.NewOperationError(op, response)
		}
	}

	d.mu.Lock()
	for i, name := range d.deployed {
		if name == runtimeName {
			d.deployed = append(d.deployed[:i], d.deployed[i+1:]...)
			break
		}
	}
	d.mu.Unlock()

	slog.Info("undeployed archive", "runtime_name", runtimeName)
	return nil
}

// UndeployAll undeploys everything this deployer pushed, newest first. All
// deployments are attempted; failures are joined.
func (d *Deployer) UndeployAll(ctx context.Context) error {
	d.mu.Lock()
	names := make([]string, len(d.deployed))
	copy(names, d.deployed)
	d.mu.Unlock()

	var errs []error
	for i := len(names) - 1; i >= 0; i-- {
		if err := d.Undeploy(ctx, names[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Deployments returns the runtime names currently tracked as deployed
func (d *Deployer) Deployments() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.deployed))
	copy(out, d.deployed)
	return out
}

func uniqueRuntimeName(base string) string {
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	suffix := strings.Split(uuid.NewString(), "-")[0]
	return fmt.Sprintf("%s-%s%s", stem, suffix, ext)
}
