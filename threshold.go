package bmsguard

import (
	"context"
	"github.com/jd3nn1s/bmsguard/relaylink"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"time"
)

// ErrRowsClosed ends a run when the log row source goes away.
var ErrRowsClosed = errors.New("log row source closed")

// Thresholds is the voltage hysteresis band. The relay drops below CutOff
// and only reconnects at or above Connect.
type Thresholds struct {
	CutOff  float64
	Connect float64
}

// Next returns the relay state for voltage v and whether it differs from
// state. Voltages in [CutOff, Connect) never change the state.
func (t Thresholds) Next(state RelayState, v float64) (RelayState, bool) {
	switch {
	case state == RelayOn && v < t.CutOff:
		return RelayOff, true
	case state == RelayOff && v >= t.Connect:
		return RelayOn, true
	}
	return state, false
}

type thresholdWatchdog struct {
	sup            *Supervisor
	thresholds     Thresholds
	column         int
	commandTimeout time.Duration

	// called for every row, parseable or not
	onRow func()
}

// observe applies one log row. Only transport failures are returned.
func (w *thresholdWatchdog) observe(row LogRow) error {
	if w.onRow != nil {
		w.onRow()
	}

	v, err := row.Float(w.column)
	if err != nil {
		log.WithField("err", err).Debug("skipping log row")
		return nil
	}

	state := w.sup.State()
	next, changed := w.thresholds.Next(state, v)
	if !changed {
		return nil
	}

	log.WithField("voltage", v).
		WithField("from", state).
		WithField("to", next).
		Info("battery voltage crossed threshold")
	if _, err := w.sup.SetRelay(next, w.commandTimeout); err != nil {
		if relaylink.IsTransport(err) {
			return err
		}
		// tracked state is unchanged, the next qualifying row retries
		log.WithField("err", err).
			WithField("relay", next).
			Error("unable to switch relay")
	}
	return nil
}

func (w *thresholdWatchdog) run(ctx context.Context, rows <-chan LogRow) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case row, ok := <-rows:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return ErrRowsClosed
			}
			if err := w.observe(row); err != nil {
				return err
			}
		}
	}
}
