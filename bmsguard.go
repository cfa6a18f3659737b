// Package bmsguard protects the battery pack by driving a relay controller
// from the battery management system's live log.
package bmsguard

import (
	"context"
	"github.com/jd3nn1s/bmsguard/relaylink"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"sync/atomic"
)

// Supervisor owns the link to the relay controller and the tracked relay
// state. The tracked state is a hint; the controller's ACK is authoritative.
type Supervisor struct {
	cfg   Config
	guard *linkGuard
	state int32
}

// New returns a Supervisor tracking the relay as on.
func New(cfg Config, link Link) *Supervisor {
	return &Supervisor{
		cfg:   cfg,
		guard: &linkGuard{link: link},
		state: int32(RelayOn),
	}
}

func (s *Supervisor) State() RelayState {
	return RelayState(atomic.LoadInt32(&s.state))
}

func (s *Supervisor) setState(state RelayState) {
	atomic.StoreInt32(&s.state, int32(state))
}

// Run asserts the relay on, then runs the heartbeat, the inactivity
// watchdog, the sensor worker and the threshold watchdog over rows until
// ctx is done or the link fails.
func (s *Supervisor) Run(ctx context.Context, rows <-chan LogRow) error {
	ok, err := s.SetRelay(RelayOn, s.cfg.CommandTimeout)
	if relaylink.IsTransport(err) {
		return err
	}
	if err != nil || !ok {
		log.WithField("err", err).
			WithField("confirmed", ok).
			Warn("unable to confirm relay on at start")
	}

	g, ctx := errgroup.WithContext(ctx)

	inactivity := newInactivityWatchdog(s, s.cfg.InactivityTimeout, s.cfg.CommandTimeout)
	sensors := newSensorWorker(s, s.cfg.SensorTimeout)
	threshold := &thresholdWatchdog{
		sup:            s,
		thresholds:     s.cfg.Thresholds(),
		column:         s.cfg.VoltageColumn,
		commandTimeout: s.cfg.CommandTimeout,
		onRow: func() {
			inactivity.touch()
			sensors.trigger()
		},
	}

	g.Go(func() error {
		return runHeartbeat(ctx, s, s.cfg.HeartbeatInterval())
	})
	g.Go(func() error {
		return inactivity.run(ctx, s.cfg.InactivityPoll)
	})
	g.Go(func() error {
		return sensors.run(ctx)
	})
	g.Go(func() error {
		return threshold.run(ctx, rows)
	})
	return g.Wait()
}
