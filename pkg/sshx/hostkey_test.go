package sshx

import (
	"crypto/ed25519"
	"crypto/rand"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/ssh"
)

func generateHostKey(t *testing.T) ssh.PublicKey {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("failed to build signer: %v", err)
	}
	return signer.PublicKey()
}

func testAddr() net.Addr {
	return &net.TCPAddr{IP: net.ParseIP("192.0.2.10"), Port: 22}
}

func TestHostKeyCallbackDisabled(t *testing.T) {
	cb, err := NewHostKeyCallback("", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cb("build7.example.com:22", testAddr(), generateHostKey(t)); err != nil {
		t.Fatalf("empty path must disable verification, got %v", err)
	}
}

func TestHostKeyCallbackRejectsUnknownHost(t *testing.T) {
	path := filepath.Join(t.TempDir(), "known_hosts")
	cb, err := NewHostKeyCallback(path, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = cb("build7.example.com:22", testAddr(), generateHostKey(t))
	if err == nil || !strings.Contains(err.Error(), "unknown SSH host key") {
		t.Fatalf("expected unknown host rejection, got %v", err)
	}
}

func TestHostKeyCallbackTrustOnFirstUse(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".ssh", "known_hosts")
	key := generateHostKey(t)

	cb, err := NewHostKeyCallback(path, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cb("build7.example.com:22", testAddr(), key); err != nil {
		t.Fatalf("first use must be trusted, got %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read known_hosts: %v", err)
	}
	if !strings.Contains(string(data), "build7.example.com") {
		t.Fatalf("expected host recorded, got %q", string(data))
	}

	// A fresh callback over the recorded file accepts the same key.
	cb, err = NewHostKeyCallback(path, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cb("build7.example.com:22", testAddr(), key); err != nil {
		t.Fatalf("recorded key must be accepted, got %v", err)
	}
}

func TestHostKeyCallbackRejectsChangedKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "known_hosts")

	cb, err := NewHostKeyCallback(path, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cb("build7.example.com:22", testAddr(), generateHostKey(t)); err != nil {
		t.Fatalf("first use must be trusted, got %v", err)
	}

	// Even with trust-on-first-use, a different key for a known host is an
	// error.
	cb, err = NewHostKeyCallback(path, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err = cb("build7.example.com:22", testAddr(), generateHostKey(t))
	if err == nil || !strings.Contains(err.Error(), "host key changed") {
		t.Fatalf("expected changed key rejection, got %v", err)
	}
}
