// Package surface presents one pending signing request to the human
// and carries the decision back. The surface is ephemeral: the daemon
// opens a fresh one per request and tears it down on resolution.
package surface

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pvanko/walletgate/internal/model"
)

// Host opens and closes decision surfaces. Closed reports surfaces
// that disappeared on their own (the user closed the window).
type Host interface {
	Open(ctx context.Context) (model.SurfaceHandle, error)
	Close(handle model.SurfaceHandle) error
	Closed() <-chan model.SurfaceHandle
}

// BrowserHost runs a browser process per surface. Window mode uses the
// chromium-style --app flag for a standalone frame; tab mode hands the
// URL to the browser and lets it decide.
type BrowserHost struct {
	browser string
	url     string
	mode    string
	logger  *zap.Logger

	mu     sync.Mutex
	procs  map[string]*exec.Cmd
	closed chan model.SurfaceHandle
}

// NewBrowserHost creates a host. mode is "window" or "tab".
func NewBrowserHost(browser, url, mode string, logger *zap.Logger) *BrowserHost {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BrowserHost{
		browser: browser,
		url:     url,
		mode:    mode,
		logger:  logger,
		procs:   make(map[string]*exec.Cmd),
		closed:  make(chan model.SurfaceHandle, 4),
	}
}

// Open launches a browser surface and starts watching for it to exit.
func (h *BrowserHost) Open(ctx context.Context) (model.SurfaceHandle, error) {
	var arg string
	if h.mode == "window" {
		arg = "--app=" + h.url
	} else {
		arg = h.url
	}

	cmd := exec.Command(h.browser, arg)
	if err := cmd.Start(); err != nil {
		return model.SurfaceHandle{}, fmt.Errorf("surface: start %s: %w", h.browser, err)
	}

	handle := model.SurfaceHandle{
		ID:          uuid.NewString(),
		ContainerID: strconv.Itoa(cmd.Process.Pid),
	}

	h.mu.Lock()
	h.procs[handle.ID] = cmd
	h.mu.Unlock()

	go func() {
		cmd.Wait()
		h.mu.Lock()
		_, tracked := h.procs[handle.ID]
		delete(h.procs, handle.ID)
		h.mu.Unlock()
		if tracked {
			// The surface went away without us closing it.
			select {
			case h.closed <- handle:
			default:
			}
		}
	}()

	h.logger.Info("surface opened",
		zap.String("surface_id", handle.ID),
		zap.String("container_id", handle.ContainerID),
		zap.String("mode", h.mode))
	return handle, nil
}

// Close tears down the surface process. Closing an unknown handle is a
// no-op: the process already exited and was reported via Closed.
func (h *BrowserHost) Close(handle model.SurfaceHandle) error {
	h.mu.Lock()
	cmd, ok := h.procs[handle.ID]
	delete(h.procs, handle.ID)
	h.mu.Unlock()
	if !ok {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil {
		return fmt.Errorf("surface: kill %s: %w", handle.ContainerID, err)
	}
	h.logger.Info("surface closed", zap.String("surface_id", handle.ID))
	return nil
}

// Closed reports surfaces the user dismissed.
func (h *BrowserHost) Closed() <-chan model.SurfaceHandle {
	return h.closed
}

// NopHost is the terminal-mode host: there is no window to open, the
// reviewer drives the session from the CLI.
type NopHost struct {
	closed chan model.SurfaceHandle
}

// NewNopHost returns a host that opens nothing.
func NewNopHost() *NopHost {
	return &NopHost{closed: make(chan model.SurfaceHandle)}
}

func (h *NopHost) Open(ctx context.Context) (model.SurfaceHandle, error) {
	return model.SurfaceHandle{ID: uuid.NewString()}, nil
}

func (h *NopHost) Close(handle model.SurfaceHandle) error { return nil }

func (h *NopHost) Closed() <-chan model.SurfaceHandle { return h.closed }
