package bmsguard

import (
	"context"
	"github.com/jd3nn1s/bmsguard/relaylink"
	"github.com/stretchr/testify/assert"
	"io"
	"testing"
	"time"
)

func TestSensorWorker(t *testing.T) {
	link := &linkStub{}
	sup := New(DefaultConfig(), link)
	w := newSensorWorker(sup, shortTimeout)
	readings := make(chan relaylink.Reading, 4)
	w.onReading = func(r relaylink.Reading) {
		readings <- r
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- w.run(ctx)
	}()

	// a failed read must not stop the worker
	link.script("ERR,SENSOR,dht")
	w.trigger()
	assert.Eventually(t, func() bool {
		return link.pendingLines() == 0
	}, time.Second, 5*time.Millisecond)
	link.script("DATA,SENSOR,22.5,72.5,45.0")
	w.trigger()

	select {
	case r := <-readings:
		assert.Equal(t, relaylink.Reading{TempC: 22.5, TempF: 72.5, Humidity: 45}, r)
	case <-time.After(2 * time.Second):
		t.Fatal("no sensor reading")
	}

	cancel()
	assert.Equal(t, context.Canceled, <-done)
}

func TestSensorWorkerTransportError(t *testing.T) {
	link := &linkStub{}
	link.failReads(&relaylink.TransportError{Op: "read", Err: io.EOF})
	sup := New(DefaultConfig(), link)
	w := newSensorWorker(sup, shortTimeout)

	done := make(chan error)
	go func() {
		done <- w.run(context.Background())
	}()
	w.trigger()

	select {
	case err := <-done:
		assert.True(t, relaylink.IsTransport(err))
	case <-time.After(2 * time.Second):
		t.Fatal("sensor worker kept running after the link failed")
	}
}

func TestSensorWorkerTriggerNeverBlocks(t *testing.T) {
	sup := New(DefaultConfig(), &linkStub{})
	w := newSensorWorker(sup, shortTimeout)

	// nothing is draining the queue
	for i := 0; i < 10; i++ {
		w.trigger()
	}
	assert.Len(t, w.reqChan, 1)
}
