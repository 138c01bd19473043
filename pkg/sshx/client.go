// Package sshx provides the SSH plumbing used to launch and control server
// instances on remote hosts: a pooled client for command execution, sftp
// upload, and long-running session management.
package sshx

import (
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// Config holds SSH connection settings for a remote host
type Config struct {
	Host            string
	Port            int
	Username        string
	AuthMethod      string // "key" or "password"
	KeyPath         string
	Password        string
	Timeout         time.Duration
	KnownHostsPath  string
	TrustOnFirstUse bool
}

// Client wraps an SSH connection to a remote host
type Client struct {
	config      Config
	client      *ssh.Client
	connectedAt time.Time
}

// NewClient creates a connected SSH client
func NewClient(config Config) (*Client, error) {
	if config.Port == 0 {
		config.Port = 22
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	c := &Client{config: config}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect() error {
	var authMethod ssh.AuthMethod

	switch c.config.AuthMethod {
	case "key":
		data, err := os.ReadFile(c.config.KeyPath)
		if err != nil {
			return fmt.Errorf("failed to read private key: %w", err)
		}
		key, err := ssh.ParsePrivateKey(data)
		if err != nil {
			return fmt.Errorf("failed to parse private key: %w", err)
		}
		authMethod = ssh.PublicKeys(key)

	case "password":
		authMethod = ssh.Password(c.config.Password)

	default:
		return fmt.Errorf("unsupported auth method: %s", c.config.AuthMethod)
	}

	hostKeyCallback, err := NewHostKeyCallback(c.config.KnownHostsPath, c.config.TrustOnFirstUse)
	if err != nil {
		return fmt.Errorf("failed to configure host key verification: %w", err)
	}

	sshConfig := &ssh.ClientConfig{
		User:            c.config.Username,
		Auth:            []ssh.AuthMethod{authMethod},
		HostKeyCallback: hostKeyCallback,
		Timeout:         c.config.Timeout,
	}

	address := fmt.Sprintf("%s:%d", c.config.Host, c.config.Port)
	client, err := ssh.Dial("tcp", address, sshConfig)
	if err != nil {
		return fmt.Errorf("failed to dial SSH: %w", err)
	}

	c.client = client
	c.connectedAt = time.Now()
	return nil
}

// Close closes the SSH connection
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsConnected checks whether the connection is still alive
func (c *Client) IsConnected() bool {
	if c.client == nil {
		return false
	}
	_, _, err := c.client.SendRequest("keepalive@openssh.com", true, nil)
	return err == nil
}

// RunCommand executes a command and returns its combined output
func (c *Client) RunCommand(command string) (string, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	output, err := session.CombinedOutput(command)
	if err != nil {
		return string(output), fmt.Errorf("command failed: %w", err)
	}
	return string(output), nil
}

// StartSession starts a long-running command with its output streamed into
// the given writer. The returned session stays open until the command exits
// or the session is closed.
func (c *Client) StartSession(command string, output io.Writer) (*ssh.Session, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	session.Stdout = output
	session.Stderr = output

	if err := session.Start(command); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to start remote command: %w", err)
	}
	return session, nil
}

// Upload copies a local file to the remote host over sftp, creating parent
// directories as needed.
func (c *Client) Upload(localPath, remotePath string) error {
	sftpClient, err := sftp.NewClient(c.client)
	if err != nil {
		return fmt.Errorf("failed to open sftp session: %w", err)
	}
	defer sftpClient.Close()

	if dir := path.Dir(remotePath); dir != "." && dir != "/" {
		if err := sftpClient.MkdirAll(dir); err != nil {
			return fmt.Errorf("failed to create remote directory %s: %w", dir, err)
		}
	}

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer src.Close()

	dst, err := sftpClient.Create(remotePath)
	if err != nil {
		return fmt.Errorf("failed to create remote file %s: %w", remotePath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to upload %s: %w", localPath, err)
	}
	return nil
}
