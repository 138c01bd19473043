// Package console captures the stdout/stderr of a managed server process,
// writing it to a rotating log file and fanning complete lines out to
// subscribers.
package console

import (
	"bytes"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// CaptureConfig contains console capture settings
type CaptureConfig struct {
	// File is the rotating log file path; empty disables file capture.
	File       string
	MaxSize    int // megabytes before rotation
	MaxBackups int
	// TailLines bounds the in-memory tail ring.
	TailLines int
}

// Capture is an io.Writer fed with raw process output. It splits the stream
// into lines, appends them to a bounded tail ring, writes them to the
// rotating file, and forwards them to subscribers.
type Capture struct {
	mu        sync.Mutex
	file      *lumberjack.Logger
	partial   bytes.Buffer
	tail      []string
	tailMax   int
	listeners map[int]chan string
	nextID    int
	closed    bool
}

// NewCapture creates a capture with the given settings
func NewCapture(cfg CaptureConfig) *Capture {
	c := &Capture{
		tailMax:   cfg.TailLines,
		listeners: make(map[int]chan string),
	}
	if c.tailMax <= 0 {
		c.tailMax = 500
	}
	if cfg.File != "" {
		c.file = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		}
	}
	return c
}

// Write implements io.Writer over raw, possibly partial-line chunks
func (c *Capture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return len(p), nil
	}

	c.partial.Write(p)
	for {
		data := c.partial.Bytes()
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		line := string(bytes.TrimRight(data[:idx], "\r"))
		c.partial.Next(idx + 1)
		c.publish(line)
	}
	return len(p), nil
}

func (c *Capture) publish(line string) {
	if c.file != nil {
		c.file.Write([]byte(line + "\n"))
	}

	c.tail = append(c.tail, line)
	if len(c.tail) > c.tailMax {
		c.tail = c.tail[len(c.tail)-c.tailMax:]
	}

	for _, ch := range c.listeners {
		select {
		case ch <- line:
		default:
			// Slow subscribers drop lines rather than stall the capture.
		}
	}
}

// Tail returns up to n of the most recent captured lines
func (c *Capture) Tail(n int) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n <= 0 || n > len(c.tail) {
		n = len(c.tail)
	}
	out := make([]string, n)
	copy(out, c.tail[len(c.tail)-n:])
	return out
}

// Subscribe registers a line listener. The returned cancel function must be
// called to release it.
func (c *Capture) Subscribe() (<-chan string, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	ch := make(chan string, 256)
	c.listeners[id] = ch

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.listeners[id]; ok {
			delete(c.listeners, id)
			close(ch)
		}
	}
	return ch, cancel
}

// Close flushes the trailing partial line and closes the file and all
// subscriber channels.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	if c.partial.Len() > 0 {
		c.publish(c.partial.String())
		c.partial.Reset()
	}
	c.closed = true

	for id, ch := range c.listeners {
		delete(c.listeners, id)
		close(ch)
	}

	if c.file != nil {
		return c.file.Close()
	}
	return nil
}
