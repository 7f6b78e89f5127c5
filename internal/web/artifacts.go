package web

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"go.uber.org/zap"
)

// ArtifactHost serves each competitor's produced working directory as static
// files on that competitor's dedicated port.
type ArtifactHost struct {
	log *zap.SugaredLogger

	mu      sync.Mutex
	servers []*http.Server
}

// NewArtifactHost creates an empty host.
func NewArtifactHost(log *zap.SugaredLogger) *ArtifactHost {
	return &ArtifactHost{log: log}
}

// Publish serves dir on the given port. Bind failures are logged, not
// fatal: losing one artifact viewer should not take down the arena.
func (h *ArtifactHost) Publish(name string, port int, dir string) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		h.log.Warnw("failed to bind artifact server",
			"competitor", name, "port", port, "error", err)
		return err
	}

	server := &http.Server{Handler: http.FileServer(http.Dir(dir))}
	h.mu.Lock()
	h.servers = append(h.servers, server)
	h.mu.Unlock()

	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			h.log.Warnw("artifact server stopped", "competitor", name, "error", err)
		}
	}()
	h.log.Infow("artifact server up", "competitor", name, "port", port, "dir", dir)
	return nil
}

// Shutdown stops every published server.
func (h *ArtifactHost) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	servers := append([]*http.Server{}, h.servers...)
	h.mu.Unlock()

	var firstErr error
	for _, server := range servers {
		if err := server.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
