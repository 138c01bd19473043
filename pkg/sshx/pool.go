package sshx

import (
	"fmt"
	"log/slog"
	"sync"
)

// Pool manages SSH connections keyed by container ID so lifecycle, deploy,
// and console code share one connection per remote host.
type Pool struct {
	mu          sync.Mutex
	connections map[string]*Client
}

// NewPool creates an empty connection pool
func NewPool() *Pool {
	return &Pool{connections: make(map[string]*Client)}
}

// Get returns the pooled connection for containerID, dialing a new one when
// none exists or the existing one has gone dead.
func (p *Pool) Get(containerID string, config Config) (*Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if conn, ok := p.connections[containerID]; ok {
		if conn.IsConnected() {
			return conn, nil
		}
		slog.Info("ssh connection is dead, reconnecting", "container", containerID)
		conn.Close()
		delete(p.connections, containerID)
	}

	conn, err := NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", config.Host, err)
	}
	p.connections[containerID] = conn
	return conn, nil
}

// Existing returns the pooled connection for containerID, or nil
func (p *Pool) Existing(containerID string) *Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connections[containerID]
}

// Release closes and forgets the connection for containerID
func (p *Pool) Release(containerID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if conn, ok := p.connections[containerID]; ok {
		conn.Close()
		delete(p.connections, containerID)
	}
}

// Close closes every pooled connection
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, conn := range p.connections {
		conn.Close()
		delete(p.connections, id)
	}
}
