package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/jarness/jarness/internal/history"
	"github.com/jarness/jarness/internal/runner"
)

type handler struct {
	runner *runner.Runner
	store  *history.Store
}

func newHandler(r *runner.Runner, store *history.Store) *handler {
	return &handler{runner: r, store: store}
}

type containerSummary struct {
	ID      string `json:"id"`
	Variant string `json:"variant"`
	State   string `json:"state"`
	PID     int    `json:"pid,omitempty"`
}

// GET /api/containers
func (h *handler) listContainers(c *gin.Context) {
	var out []containerSummary
	for _, id := range h.runner.IDs() {
		inst := h.runner.Instance(id)
		out = append(out, containerSummary{
			ID:      id,
			Variant: inst.Container.Config().Variant,
			State:   inst.Container.State(),
			PID:     inst.Container.PID(),
		})
	}
	c.JSON(http.StatusOK, out)
}

// GET /api/containers/:id
func (h *handler) getContainer(c *gin.Context) {
	inst := h.runner.Instance(c.Param("id"))
	if inst == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown container"})
		return
	}

	resp := gin.H{
		"id":          inst.Container.ID(),
		"variant":     inst.Container.Config().Variant,
		"state":       inst.Container.State(),
		"pid":         inst.Container.PID(),
		"management":  inst.Container.Client().Endpoint(),
		"deployments": inst.Deployer.Deployments(),
	}

	if h.store != nil {
		events, err := h.store.Events(inst.Container.ID(), 20)
		if err == nil {
			resp["events"] = events
		}
	}

	c.JSON(http.StatusOK, resp)
}

// POST /api/containers/:id/start
func (h *handler) startContainer(c *gin.Context) {
	id := c.Param("id")
	if h.runner.Instance(id) == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown container"})
		return
	}
	if err := h.runner.Start(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": h.runner.Instance(id).Container.State()})
}

// POST /api/containers/:id/stop
func (h *handler) stopContainer(c *gin.Context) {
	id := c.Param("id")
	if h.runner.Instance(id) == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown container"})
		return
	}
	if err := h.runner.Stop(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": h.runner.Instance(id).Container.State()})
}

// GET /api/containers/:id/console?lines=200
func (h *handler) consoleTail(c *gin.Context) {
	inst := h.runner.Instance(c.Param("id"))
	if inst == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown container"})
		return
	}
	capture := inst.Container.Console()
	if capture == nil {
		c.JSON(http.StatusOK, gin.H{"lines": []string{}})
		return
	}

	lines, _ := strconv.Atoi(c.DefaultQuery("lines", "200"))
	c.JSON(http.StatusOK, gin.H{"lines": capture.Tail(lines)})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API binds loopback; cross-origin browsers are not a concern.
	CheckOrigin: func(*http.Request) bool { return true },
}

// GET /ws/console/:id streams the console: the recent tail first, then live
// lines until the client disconnects.
func (h *handler) consoleStream(c *gin.Context) {
	inst := h.runner.Instance(c.Param("id"))
	if inst == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown container"})
		return
	}
	capture := inst.Container.Console()
	if capture == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "console capture disabled"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	for _, line := range capture.Tail(200) {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
			return
		}
	}

	lines, cancel := capture.Subscribe()
	defer cancel()

	// Reader goroutine notices the peer going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				return
			}
		}
	}
}
