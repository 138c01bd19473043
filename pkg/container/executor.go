package container

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/kballard/go-shellquote"
	"golang.org/x/crypto/ssh"

	"github.com/jarness/jarness/pkg/sshx"
)

// StartSpec describes a server process to launch
type StartSpec struct {
	Args   []string
	Dir    string
	Env    []string // extra KEY=VALUE entries
	Output io.Writer
}

// Process is a handle on a launched server process
type Process interface {
	// PID returns the process ID, or 0 when it is not known (remote).
	PID() int

	// Done is closed when the process exits.
	Done() <-chan struct{}

	// Err returns the exit error once Done is closed.
	Err() error

	// Kill terminates the process immediately.
	Kill() error
}

// CommandExecutor launches server processes locally or on a remote host
type CommandExecutor interface {
	Start(ctx context.Context, spec StartSpec) (Process, error)
}

// LocalExecutor launches processes on the harness host
type LocalExecutor struct{}

// Start implements CommandExecutor
func (LocalExecutor) Start(ctx context.Context, spec StartSpec) (Process, error) {
	if len(spec.Args) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	cmd := exec.Command(spec.Args[0], spec.Args[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	if spec.Output != nil {
		cmd.Stdout = spec.Output
		cmd.Stderr = spec.Output
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", spec.Args[0], err)
	}

	p := &localProcess{cmd: cmd, done: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

type localProcess struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

func (p *localProcess) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *localProcess) Done() <-chan struct{} { return p.done }

func (p *localProcess) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

func (p *localProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	select {
	case <-p.done:
		return nil
	default:
	}
	return p.cmd.Process.Kill()
}

// SSHExecutor launches processes on a remote host over an established SSH
// connection.
type SSHExecutor struct {
	Client *sshx.Client
}

// Start implements CommandExecutor
func (e SSHExecutor) Start(ctx context.Context, spec StartSpec) (Process, error) {
	if len(spec.Args) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	command := shellquote.Join(spec.Args...)
	if len(spec.Env) > 0 {
		command = "env " + shellquote.Join(spec.Env...) + " " + command
	}
	if spec.Dir != "" {
		command = fmt.Sprintf("cd %s && %s", shellquote.Join(spec.Dir), command)
	}

	session, err := e.Client.StartSession(command, spec.Output)
	if err != nil {
		return nil, err
	}

	p := &remoteProcess{session: session, done: make(chan struct{})}
	go func() {
		p.err = session.Wait()
		close(p.done)
	}()
	return p, nil
}

type remoteProcess struct {
	session *ssh.Session
	done    chan struct{}
	err     error
	killMu  sync.Mutex
}

func (p *remoteProcess) PID() int { return 0 }

func (p *remoteProcess) Done() <-chan struct{} { return p.done }

func (p *remoteProcess) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

func (p *remoteProcess) Kill() error {
	p.killMu.Lock()
	defer p.killMu.Unlock()

	select {
	case <-p.done:
		return nil
	default:
	}

	// Not every sshd honors signals on non-interactive sessions; closing
	// the session tears the remote process down either way.
	p.session.Signal(ssh.SIGKILL)
	return p.session.Close()
}
