package bmsguard

import (
	"context"
	"github.com/jd3nn1s/bmsguard/relaylink"
	log "github.com/sirupsen/logrus"
	"sync/atomic"
	"time"
)

// inactivityWatchdog turns the relay off when the log goes quiet. It never
// turns it back on.
type inactivityWatchdog struct {
	sup            *Supervisor
	timeout        time.Duration
	commandTimeout time.Duration
	now            func() time.Time

	lastRow int64 // unix nanoseconds
}

func newInactivityWatchdog(sup *Supervisor, timeout, commandTimeout time.Duration) *inactivityWatchdog {
	w := &inactivityWatchdog{
		sup:            sup,
		timeout:        timeout,
		commandTimeout: commandTimeout,
		now:            time.Now,
	}
	w.touch()
	return w
}

// touch records that a log row has just been seen.
func (w *inactivityWatchdog) touch() {
	atomic.StoreInt64(&w.lastRow, w.now().UnixNano())
}

func (w *inactivityWatchdog) idle() time.Duration {
	return w.now().Sub(time.Unix(0, atomic.LoadInt64(&w.lastRow)))
}

// check forces the relay off if the log has been idle past the timeout
// while the relay is on. The tracked state becomes off whatever the
// command outcome. It returns whether a command was issued, and any
// transport failure.
func (w *inactivityWatchdog) check() (bool, error) {
	idle := w.idle()
	if idle <= w.timeout || !w.sup.State().On() {
		return false, nil
	}

	log.WithField("idle", idle).Warn("no battery log rows, turning relay off")
	_, err := w.sup.SetRelay(RelayOff, w.commandTimeout)
	w.sup.setState(RelayOff)
	if err != nil {
		log.WithField("err", err).Error("unable to turn off relay on inactivity")
		if relaylink.IsTransport(err) {
			return true, err
		}
	}
	return true, nil
}

func (w *inactivityWatchdog) run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if _, err := w.check(); err != nil {
			return err
		}
	}
}
