package notifier

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/amoylab/oscbridge/internal/common/cnst"
	"github.com/amoylab/oscbridge/internal/common/config"
)

const reloadPath = "/_reload"

// APINotifier implements Notifier using HTTP API
type APINotifier struct {
	logger    *zap.Logger
	watchers  *watchers
	router    *gin.Engine
	server    *http.Server
	listener  net.Listener
	role      config.NotifierRole
	targetURL string
	client    *http.Client
}

// NewAPINotifier creates a new API-based notifier. A receiver serves
// POST /_reload on host:port.
func NewAPINotifier(logger *zap.Logger, host string, port int, role config.NotifierRole, targetURL string) (*APINotifier, error) {
	n := &APINotifier{
		logger:    logger.Named("notifier.api"),
		role:      role,
		targetURL: targetURL,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
	n.watchers = newWatchers(n.logger)

	if !n.CanReceive() {
		return n, nil
	}

	n.router = gin.New()
	n.router.Use(gin.Recovery())
	n.router.POST(reloadPath, func(c *gin.Context) {
		n.watchers.broadcast()
		c.JSON(http.StatusOK, gin.H{"status": "reload triggered"})
	})

	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("failed to listen for reload API: %w", err)
	}
	n.listener = ln
	n.server = &http.Server{Handler: n.router}

	go func() {
		if err := n.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			n.logger.Error("reload API server stopped", zap.Error(err))
		}
	}()

	return n, nil
}

// Addr returns the receiving address, or nil for a sender
func (n *APINotifier) Addr() net.Addr {
	if n.listener == nil {
		return nil
	}
	return n.listener.Addr()
}

// Watch implements Notifier.Watch
func (n *APINotifier) Watch(ctx context.Context) (<-chan struct{}, error) {
	if !n.CanReceive() {
		return nil, cnst.ErrNotReceiver
	}
	return n.watchers.add(ctx), nil
}

// NotifyReload posts to the target URL, appending /_reload when missing
func (n *APINotifier) NotifyReload(ctx context.Context) error {
	if !n.CanSend() {
		return cnst.ErrNotSender
	}

	if n.targetURL == "" {
		return fmt.Errorf("target URL is not configured")
	}

	target := strings.TrimRight(n.targetURL, "/")
	if !strings.HasSuffix(target, reloadPath) {
		target += reloadPath
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil
}

// Shutdown gracefully shuts down the API server
func (n *APINotifier) Shutdown(ctx context.Context) error {
	if n.server != nil {
		return n.server.Shutdown(ctx)
	}
	return nil
}

// CanReceive returns true if the notifier can receive updates
func (n *APINotifier) CanReceive() bool {
	return n.role == config.RoleReceiver || n.role == config.RoleBoth
}

// CanSend returns true if the notifier can send updates
func (n *APINotifier) CanSend() bool {
	return n.role == config.RoleSender || n.role == config.RoleBoth
}
