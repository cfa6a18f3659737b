package bmsguard

import (
	"context"
	"fmt"
	"github.com/jd3nn1s/bmsguard/relaylink"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"math/rand"
	"testing"
)

var referenceThresholds = Thresholds{CutOff: 12.5, Connect: 13.4}

func newThresholdWatchdog(sup *Supervisor) *thresholdWatchdog {
	return &thresholdWatchdog{
		sup:            sup,
		thresholds:     referenceThresholds,
		column:         3,
		commandTimeout: shortTimeout,
	}
}

func voltageRow(v float64) LogRow {
	return ParseLogRow(fmt.Sprintf("2024-05-01 10:00:00,1,98,%.2f", v))
}

func TestThresholdsNext(t *testing.T) {
	cases := []struct {
		state   RelayState
		v       float64
		want    RelayState
		changed bool
	}{
		{RelayOn, 13.6, RelayOn, false},
		{RelayOn, 12.5, RelayOn, false},
		{RelayOn, 12.49, RelayOff, true},
		{RelayOff, 12.5, RelayOff, false},
		{RelayOff, 13.39, RelayOff, false},
		{RelayOff, 13.4, RelayOn, true},
		{RelayOff, 11.0, RelayOff, false},
	}
	for _, c := range cases {
		got, changed := referenceThresholds.Next(c.state, c.v)
		assert.Equal(t, c.want, got, "state %v voltage %v", c.state, c.v)
		assert.Equal(t, c.changed, changed, "state %v voltage %v", c.state, c.v)
	}
}

func TestThresholdsHysteresis(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	state := RelayOn
	for i := 0; i < 10000; i++ {
		v := 11.5 + rnd.Float64()*3
		next, changed := referenceThresholds.Next(state, v)
		switch {
		case state == RelayOff && v < referenceThresholds.Connect:
			assert.False(t, changed, "reconnected at %v", v)
		case state == RelayOn && v >= referenceThresholds.CutOff:
			assert.False(t, changed, "cut off at %v", v)
		default:
			assert.True(t, changed, "no transition at %v from %v", v, state)
		}
		state = next
	}
}

func TestThresholdScenario(t *testing.T) {
	link := &linkStub{autoAck: true}
	sup := New(DefaultConfig(), link)
	w := newThresholdWatchdog(sup)

	voltages := []float64{13.6, 13.0, 12.3, 12.0, 13.5}
	expected := []RelayState{RelayOn, RelayOn, RelayOff, RelayOff, RelayOn}
	for i, v := range voltages {
		assert.NoError(t, w.observe(voltageRow(v)))
		assert.Equal(t, expected[i], sup.State(), "after %v", v)
	}
	assert.Equal(t, []string{"0\n", "1\n"}, link.sentCommands())
}

func TestThresholdSkipsBadRows(t *testing.T) {
	link := &linkStub{autoAck: true}
	sup := New(DefaultConfig(), link)
	w := newThresholdWatchdog(sup)
	rows := 0
	w.onRow = func() {
		rows++
	}

	assert.NoError(t, w.observe(ParseLogRow("a,b,c")))
	assert.NoError(t, w.observe(ParseLogRow("a,b,c,volts")))
	assert.NoError(t, w.observe(ParseLogRow("")))
	assert.Equal(t, 3, rows, "every row counts as activity")
	assert.Equal(t, RelayOn, sup.State())
	assert.Empty(t, link.sentCommands())
}

func TestThresholdFailureLeavesState(t *testing.T) {
	link := &linkStub{}
	sup := New(DefaultConfig(), link)
	w := newThresholdWatchdog(sup)

	assert.NoError(t, w.observe(voltageRow(12.0)))
	assert.Equal(t, RelayOn, sup.State())

	link.script("ERR,RELAY,busy")
	assert.NoError(t, w.observe(voltageRow(12.1)))
	assert.Equal(t, RelayOn, sup.State())

	link.script("ACK,RELAY,0")
	assert.NoError(t, w.observe(voltageRow(12.2)))
	assert.Equal(t, RelayOff, sup.State())
	assert.Equal(t, []string{"0\n", "0\n", "0\n"}, link.sentCommands(),
		"each qualifying row retries")
}

func TestThresholdTransportError(t *testing.T) {
	link := &linkStub{
		sendErr: &relaylink.TransportError{Op: "write", Err: errors.New("unplugged")},
	}
	sup := New(DefaultConfig(), link)
	w := newThresholdWatchdog(sup)

	err := w.observe(voltageRow(12.0))
	assert.True(t, relaylink.IsTransport(err))
}

func TestThresholdRun(t *testing.T) {
	link := &linkStub{autoAck: true}
	sup := New(DefaultConfig(), link)
	w := newThresholdWatchdog(sup)

	rows := make(chan LogRow, 2)
	rows <- voltageRow(12.0)
	close(rows)
	assert.Equal(t, ErrRowsClosed, w.run(context.Background(), rows))
	assert.Equal(t, RelayOff, sup.State())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, context.Canceled, w.run(ctx, make(chan LogRow)))
}

func TestThresholdColumn(t *testing.T) {
	link := &linkStub{autoAck: true}
	sup := New(DefaultConfig(), link)
	w := newThresholdWatchdog(sup)
	w.column = 0

	assert.NoError(t, w.observe(ParseLogRow("12.0,13.6")))
	assert.Equal(t, RelayOff, sup.State())
	assert.Equal(t, []string{"0\n"}, link.sentCommands())
}
