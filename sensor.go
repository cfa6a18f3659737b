package bmsguard

import (
	"context"
	"github.com/jd3nn1s/bmsguard/relaylink"
	log "github.com/sirupsen/logrus"
	"time"
)

// sensorWorker runs opportunistic sensor reads on a single goroutine.
// Requests arriving while a read is queued are dropped.
type sensorWorker struct {
	sup     *Supervisor
	timeout time.Duration
	reqChan chan struct{}

	// receives every successful reading
	onReading func(relaylink.Reading)
}

func newSensorWorker(sup *Supervisor, timeout time.Duration) *sensorWorker {
	return &sensorWorker{
		sup:     sup,
		timeout: timeout,
		reqChan: make(chan struct{}, 1),
		onReading: func(r relaylink.Reading) {
			log.WithField("tempC", r.TempC).
				WithField("tempF", r.TempF).
				WithField("humidity", r.Humidity).
				Info("sensor reading")
		},
	}
}

// trigger never blocks.
func (w *sensorWorker) trigger() {
	select {
	case w.reqChan <- struct{}{}:
	default:
	}
}

// run returns ctx.Err() or a transport failure. Other read failures are
// only logged.
func (w *sensorWorker) run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.reqChan:
		}
		reading, err := w.sup.ReadSensor(w.timeout)
		if err != nil {
			if relaylink.IsTransport(err) {
				return err
			}
			log.WithField("err", err).Warn("sensor read failed")
			continue
		}
		w.onReading(reading)
	}
}
