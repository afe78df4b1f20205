// Package systemd reports service state to the supervisor through the
// sd_notify socket. Every call is a no-op when NOTIFY_SOCKET is unset.
package systemd

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/smazurov/vop2ctl/internal/logging"
)

// Notifier sends state updates for the running unit.
type Notifier struct {
	logger logging.Logger
	notify func(unsetEnv bool, state string) (bool, error)
}

// NewNotifier returns a notifier logging through logger.
func NewNotifier(logger logging.Logger) *Notifier {
	return &Notifier{logger: logger, notify: daemon.SdNotify}
}

// Ready tells systemd start-up finished. status is shown by systemctl.
func (n *Notifier) Ready(status string) {
	n.send(daemon.SdNotifyReady + "\nSTATUS=" + status)
}

// Status updates the free-form status line.
func (n *Notifier) Status(status string) {
	n.send("STATUS=" + status)
}

// Reloading marks the start of a configuration reload; Ready ends it.
func (n *Notifier) Reloading() {
	n.send(daemon.SdNotifyReloading)
}

// Stopping marks the start of shutdown.
func (n *Notifier) Stopping() {
	n.send(daemon.SdNotifyStopping)
}

// Watchdog pings the watchdog at half the configured interval until ctx
// is done. It returns at once when the unit has no WatchdogSec.
func (n *Notifier) Watchdog(ctx context.Context) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		n.logger.Warn("Watchdog setting unreadable", "error", err)
		return
	}
	if interval <= 0 {
		return
	}
	n.logger.Debug("Watchdog enabled", "interval", interval)

	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.send(daemon.SdNotifyWatchdog)
		}
	}
}

func (n *Notifier) send(state string) {
	sent, err := n.notify(false, state)
	if err != nil {
		n.logger.Warn("sd_notify failed", "state", state, "error", err)
		return
	}
	if sent {
		n.logger.Debug("sd_notify", "state", state)
	}
}
