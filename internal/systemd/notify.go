// Package systemd reports service lifecycle to systemd via sd_notify.
// Every call is a no-op when the process is not run by systemd.
package systemd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier sends sd_notify messages.
type Notifier struct {
	notify func(state string) (bool, error)
	logger *slog.Logger
}

// NewNotifier creates a notifier that writes to $NOTIFY_SOCKET.
func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{
		notify: func(state string) (bool, error) {
			return daemon.SdNotify(false, state)
		},
		logger: logger,
	}
}

func (n *Notifier) send(state string) {
	sent, err := n.notify(state)
	if err != nil {
		n.logger.Debug("sd_notify failed", "state", state, "error", err)
		return
	}
	if sent {
		n.logger.Debug("sd_notify sent", "state", state)
	}
}

// Ready tells systemd startup finished.
func (n *Notifier) Ready() { n.send(daemon.SdNotifyReady) }

// Stopping tells systemd shutdown began.
func (n *Notifier) Stopping() { n.send(daemon.SdNotifyStopping) }

// Status sets the free-form status line shown by systemctl status.
func (n *Notifier) Status(format string, args ...any) {
	n.send("STATUS=" + fmt.Sprintf(format, args...))
}

// Watchdog pings systemd at half the configured WatchdogSec while healthy
// returns true, until ctx is done. It returns at once when the unit has no
// watchdog.
func (n *Notifier) Watchdog(ctx context.Context, healthy func() bool) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return
	}
	n.watchdogLoop(ctx, interval/2, healthy)
}

func (n *Notifier) watchdogLoop(ctx context.Context, period time.Duration, healthy func() bool) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// A missed ping lets systemd restart a wedged service
			if !healthy() {
				n.logger.Warn("Skipping watchdog ping, service unhealthy")
				continue
			}
			n.send(daemon.SdNotifyWatchdog)
		}
	}
}
