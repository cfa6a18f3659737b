package relaylink

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Simulator is an in-memory Port that behaves like the relay
// microcontroller: it acknowledges relay commands, prints sensor samples and
// drops the relay when commands stop arriving for SafetyTimeout.
type Simulator struct {
	// SafetyTimeout is the device's own inactivity cut-off; zero disables it.
	SafetyTimeout time.Duration

	mu          sync.Mutex
	rx          []byte
	written     []byte
	cmdBuf      []byte
	relayOn     bool
	lastCmd     time.Time
	relayErr    string
	silent      bool
	readTimeout time.Duration
	closed      bool
	notify      chan struct{}
}

func NewSimulator() *Simulator {
	return &Simulator{
		readTimeout: readPoll,
		lastCmd:     time.Now(),
		notify:      make(chan struct{}, 1),
	}
}

func (s *Simulator) Read(p []byte) (int, error) {
	s.mu.Lock()
	timeout := s.readTimeout
	s.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return 0, io.EOF
		}
		if len(s.rx) > 0 {
			n := copy(p, s.rx)
			s.rx = s.rx[n:]
			s.mu.Unlock()
			return n, nil
		}
		s.mu.Unlock()

		select {
		case <-s.notify:
		case <-timer.C:
			return 0, nil
		}
	}
}

func (s *Simulator) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, io.ErrClosedPipe
	}
	s.written = append(s.written, p...)
	for _, b := range p {
		if b != '\n' {
			s.cmdBuf = append(s.cmdBuf, b)
			continue
		}
		s.command(strings.TrimSpace(string(s.cmdBuf)))
		s.cmdBuf = s.cmdBuf[:0]
	}
	return len(p), nil
}

// command must be called with mu held.
func (s *Simulator) command(cmd string) {
	var on bool
	switch cmd {
	case "1":
		on = true
	case "0":
		on = false
	default:
		return
	}
	s.lastCmd = time.Now()
	if s.silent {
		return
	}
	if s.relayErr != "" {
		s.queue(fmt.Sprintf("%s,%s,%s", KindErr, SourceRelay, s.relayErr))
		return
	}
	s.relayOn = on
	s.queue(fmt.Sprintf("%s,%s,%s", KindAck, SourceRelay, cmd))
}

// queue must be called with mu held.
func (s *Simulator) queue(line string) {
	s.rx = append(s.rx, line+"\r\n"...)
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Simulator) ResetInputBuffer() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rx = s.rx[:0]
	return nil
}

func (s *Simulator) SetReadTimeout(t time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readTimeout = t
	return nil
}

func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	select {
	case s.notify <- struct{}{}:
	default:
	}
	return nil
}

// EmitLine makes line available to the host, as if printed by the device.
func (s *Simulator) EmitLine(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue(line)
}

// EmitReading prints a DATA,SENSOR sample.
func (s *Simulator) EmitReading(r Reading) {
	s.EmitLine(fmt.Sprintf("%s,%s,%.2f,%.2f,%.2f",
		KindData, SourceSensor, r.TempC, r.TempF, r.Humidity))
}

// FailRelay answers subsequent relay commands with ERR,RELAY,reason.
// An empty reason restores normal acknowledgements.
func (s *Simulator) FailRelay(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relayErr = reason
}

// SetSilent stops the device from answering relay commands.
func (s *Simulator) SetSilent(silent bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.silent = silent
}

// Relay reports the physical relay state, applying the safety timeout.
func (s *Simulator) Relay() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SafetyTimeout > 0 && time.Since(s.lastCmd) > s.SafetyTimeout {
		s.relayOn = false
	}
	return s.relayOn
}

// Written returns a copy of every byte the host has written.
func (s *Simulator) Written() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.written...)
}

// Run prints a sensor sample every interval until ctx is done.
func (s *Simulator) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	tempC := 20.0
	step := 0.5
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		s.EmitReading(Reading{
			TempC:    tempC,
			TempF:    tempC*9/5 + 32,
			Humidity: 45,
		})
		tempC += step
		if tempC >= 40 || tempC <= 20 {
			step = -step
		}
	}
}
