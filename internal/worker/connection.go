package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"slicer/internal/config"
	"slicer/internal/logging"
	"slicer/internal/prefs"
	"slicer/internal/services"
)

// Connection supervises the logical link to the external rendering worker.
// The worker's listening port is not statically known: it is discovered
// through a preference-store handshake and may require enabling the worker
// feature flag first.
type Connection struct {
	cfg    *config.Config
	prefs  *prefs.Store
	logger *slog.Logger
	dial   Dialer
	sleep  func(ctx context.Context, d time.Duration) error

	mu         sync.Mutex
	conn       Conn
	available  bool
	busy       bool
	lastFolder string
}

// Option configures optional Connection behavior.
type Option func(*Connection)

// WithDialer overrides the transport dialer (used in tests).
func WithDialer(dial Dialer) Option {
	return func(c *Connection) {
		if dial != nil {
			c.dial = dial
		}
	}
}

// NewConnection constructs an unconnected supervisor. The last-used export
// folder is preloaded from the preference store.
func NewConnection(cfg *config.Config, store *prefs.Store, logger *slog.Logger, opts ...Option) *Connection {
	c := &Connection{
		cfg:    cfg,
		prefs:  store,
		logger: logging.NewComponentLogger(logger, "worker"),
		dial:   DialWebsocket,
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	if folder, err := store.GetString(prefs.KeyLastExportFolder); err == nil {
		c.lastFolder = folder
	}
	return c
}

// Connect performs the discovery handshake. On success the connection is
// marked available; on failure all partial state is cleared and the error is
// tagged ErrConnection. Failures are never fatal to the process: callers
// check IsReady before issuing work.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.available {
		return nil
	}

	if c.cfg.Worker.DebugQuickConnect {
		if c.quickConnectLocked(ctx) {
			return nil
		}
	}

	// The enable-and-connect sequence gets exactly one retry before the
	// worker is declared unavailable.
	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		err := c.enableAndConnectLocked(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		c.logger.Warn("worker handshake attempt failed",
			logging.Int("attempt", attempt),
			logging.Error(err),
			logging.String(logging.FieldEventType, "worker_handshake_failed"),
			logging.String(logging.FieldErrorHint, "check that the host application is running"),
		)
	}

	c.dropLocked()
	return services.Wrap(services.ErrConnection, "worker", "connect", "handshake failed after retry", lastErr)
}

// quickConnectLocked tries reattaching to a worker left running from a prior
// session using the port remembered in the preference store.
func (c *Connection) quickConnectLocked(ctx context.Context) bool {
	raw, err := c.prefs.GetString(prefs.KeyWorkerLastPort)
	if err != nil || raw == "" {
		return false
	}
	port := parsePort(raw)
	if port <= 0 {
		return false
	}
	conn, err := c.dial(ctx, c.cfg.Worker.Host, port, c.dialTimeout())
	if err != nil {
		c.logger.Debug("quick connect failed", logging.Int("port", port), logging.Error(err))
		return false
	}
	c.adoptLocked(conn, port)
	c.logger.Info("reattached to running worker", logging.Int("port", port))
	return true
}

func (c *Connection) enableAndConnectLocked(ctx context.Context) error {
	enabled, err := c.prefs.GetBool(prefs.KeyWorkerEnabled)
	if err != nil {
		return err
	}
	if !enabled {
		if err := c.prefs.Set(prefs.KeyWorkerEnabled, true); err != nil {
			return err
		}
		// Flag enablement is not synchronous: the worker needs time to bind
		// its port before the settings blob is trustworthy.
		if err := c.sleep(ctx, c.settleDelay()); err != nil {
			return err
		}
	}

	settings, err := ReadSettings(c.prefs)
	if err != nil {
		return err
	}

	conn, err := c.dial(ctx, c.cfg.Worker.Host, settings.WebsocketServerPort, c.dialTimeout())
	if err != nil {
		return err
	}
	c.adoptLocked(conn, settings.WebsocketServerPort)
	c.logger.Info("worker connected", logging.Int("port", settings.WebsocketServerPort))
	return nil
}

func (c *Connection) adoptLocked(conn Conn, port int) {
	c.conn = conn
	c.available = true
	if err := c.prefs.Set(prefs.KeyWorkerLastPort, FormatPort(port)); err != nil {
		c.logger.Debug("persist worker port failed", logging.Error(err))
	}
}

func (c *Connection) dropLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.available = false
}

// IsReady reports whether the handshake has completed.
func (c *Connection) IsReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.available
}

// Busy reports whether a batch is currently exporting. Distinct from
// availability: a ready worker may still be busy.
func (c *Connection) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// SetBusy flips the busy gate.
func (c *Connection) SetBusy(busy bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = busy
}

// LastFolder returns the last successfully chosen export destination.
func (c *Connection) LastFolder() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastFolder
}

// SetLastFolder remembers the destination for the next folder chooser and
// persists it best-effort.
func (c *Connection) SetLastFolder(path string) {
	c.mu.Lock()
	c.lastFolder = path
	c.mu.Unlock()
	if err := c.prefs.Set(prefs.KeyLastExportFolder, path); err != nil {
		c.logger.Debug("persist last folder failed", logging.Error(err))
	}
}

// Render performs one asset export round trip against the worker.
func (c *Connection) Render(ctx context.Context, req RenderRequest) ([]string, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil, services.Wrap(services.ErrConnection, "worker", "render", "not connected", nil)
	}

	timeout := time.Duration(c.cfg.Worker.RenderTimeoutSec) * time.Second
	renderCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	paths, err := conn.Render(renderCtx, req)
	if err != nil {
		return nil, services.Wrap(services.ErrAssetExport, "worker", "render", req.FileName, err)
	}
	return paths, nil
}

// Close releases the connection handle. Safe to call when never connected.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropLocked()
	return nil
}

func (c *Connection) settleDelay() time.Duration {
	return time.Duration(c.cfg.Worker.SettleDelayMS) * time.Millisecond
}

func (c *Connection) dialTimeout() time.Duration {
	return time.Duration(c.cfg.Worker.DialTimeoutMS) * time.Millisecond
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
