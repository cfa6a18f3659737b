package bmsguard

import (
	"context"
	"fmt"
	"github.com/jd3nn1s/bmsguard/relaylink"
	"time"
)

var (
	testModeRowInterval = 250 * time.Millisecond
	// longer than the default inactivity timeout
	testModeStall = 4 * time.Second
)

// NewTestModeLink returns a simulated relay controller printing sensor
// samples every second until ctx is done.
func NewTestModeLink(ctx context.Context, cfg Config) (*relaylink.Connection, *relaylink.Simulator, error) {
	sim := relaylink.NewSimulator()
	sim.SafetyTimeout = cfg.InactivityTimeout
	conn, err := relaylink.NewConnection(sim)
	if err != nil {
		return nil, nil, err
	}
	go sim.Run(ctx, time.Second)
	return conn, sim, nil
}

// RunTestMode writes synthetic log rows to sendChan, sweeping the pack
// voltage between 12.0 and 14.0 V and stalling at the top of each sweep.
// sendChan is closed on return.
func RunTestMode(ctx context.Context, column int, sendChan chan<- LogRow) {
	defer close(sendChan)
	// tenths of a volt
	deciVolts := 140
	step := -1
	for seq := 0; ; seq++ {
		wait := testModeRowInterval
		if deciVolts >= 140 && seq > 0 {
			wait = testModeStall
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}

		row := make(LogRow, column+1)
		for i := range row {
			row[i] = "0"
		}
		row[0] = time.Now().Format("2006-01-02 15:04:05")
		row[column] = fmt.Sprintf("%.2f", float64(deciVolts)/10)
		select {
		case sendChan <- row:
		case <-ctx.Done():
			return
		}

		deciVolts += step
		if deciVolts <= 120 {
			step = 1
		} else if deciVolts >= 140 {
			step = -1
		}
	}
}
