package tor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/tornago"
)

// DefaultStartupTimeout bounds the bootstrap of the daemon. Bootstrapping
// downloads directory information and builds circuits, which takes one to
// three minutes on a typical network.
const DefaultStartupTimeout = 3 * time.Minute

// Daemon manages an embedded Tor process.
type Daemon struct {
	process        *tornago.TorProcess
	socksAddr      string
	startupTimeout time.Duration
	logger         *slog.Logger
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithStartupTimeout sets the maximum time to wait for Tor to bootstrap.
// Non-positive values keep the default.
func WithStartupTimeout(timeout time.Duration) Option {
	return func(d *Daemon) {
		if timeout > 0 {
			d.startupTimeout = timeout
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Daemon) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDaemon creates a Daemon. Call Start to launch the process.
func NewDaemon(opts ...Option) *Daemon {
	d := &Daemon{
		startupTimeout: DefaultStartupTimeout,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the daemon on OS-assigned ports and blocks until it has
// bootstrapped. If ctx ends meanwhile, the process is stopped and the
// context error returned.
func (d *Daemon) Start(ctx context.Context) error {
	if d.process != nil {
		return ErrAlreadyRunning
	}

	launchCfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(d.startupTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create Tor launch config: %w", err)
	}

	d.logger.Info("starting embedded Tor daemon", "timeout", d.startupTimeout)
	started := time.Now()

	process, err := tornago.StartTorDaemon(launchCfg)
	if err != nil {
		return fmt.Errorf("failed to start embedded Tor daemon: %w", err)
	}

	if err := ctx.Err(); err != nil {
		_ = process.Stop() //nolint:errcheck // best effort
		return err
	}

	d.process = process
	d.socksAddr = process.SocksAddr()
	d.logger.Info("embedded Tor daemon ready",
		"socks", d.socksAddr,
		"elapsed", time.Since(started).Round(time.Second),
	)
	return nil
}

// Stop shuts the daemon down. Stopping a daemon that is not running is a
// no-op.
func (d *Daemon) Stop() error {
	if d.process == nil {
		return nil
	}
	err := d.process.Stop()
	d.process = nil
	d.socksAddr = ""
	return err
}

// Running reports whether the daemon has been started and not stopped.
func (d *Daemon) Running() bool {
	return d.process != nil
}

// ProxyURL returns the SOCKS address of the daemon as a proxy URL. The
// socks5h scheme makes the daemon resolve host names, which onion
// addresses require.
func (d *Daemon) ProxyURL() (string, error) {
	if d.process == nil {
		return "", ErrNotRunning
	}
	return "socks5h://" + d.socksAddr, nil
}
