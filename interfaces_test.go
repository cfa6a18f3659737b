package bmsguard

import (
	"context"
	"github.com/jd3nn1s/bmsguard/relaylink"
	"sync"
	"time"
)

// linkStub replays scripted lines. Once the script is exhausted ReadLine
// waits out the deadline, or acknowledges the last command when autoAck
// is set.
type linkStub struct {
	mu       sync.Mutex
	lines    []string
	sent     []string
	discards int
	autoAck  bool
	acked    bool
	sendErr  error
	readErr  error
}

func (l *linkStub) Send(b []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sendErr != nil {
		return l.sendErr
	}
	l.sent = append(l.sent, string(b))
	l.acked = false
	return nil
}

func (l *linkStub) ReadLine(deadline time.Time) (string, error) {
	l.mu.Lock()
	if l.readErr != nil {
		l.mu.Unlock()
		return "", l.readErr
	}
	if len(l.lines) > 0 {
		line := l.lines[0]
		l.lines = l.lines[1:]
		l.mu.Unlock()
		return line, nil
	}
	if l.autoAck && !l.acked && len(l.sent) > 0 {
		l.acked = true
		cmd := l.sent[len(l.sent)-1]
		l.mu.Unlock()
		return "ACK,RELAY," + cmd[:1], nil
	}
	l.mu.Unlock()
	time.Sleep(time.Until(deadline))
	return "", relaylink.ErrTimeout
}

func (l *linkStub) Discard() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.discards++
	return nil
}

func (l *linkStub) Close() error {
	return nil
}

func (l *linkStub) script(lines ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, lines...)
}

func (l *linkStub) sentCommands() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.sent...)
}

func (l *linkStub) pendingLines() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines)
}

func (l *linkStub) ackServed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.acked
}

func (l *linkStub) failReads(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.readErr = err
}

func (l *linkStub) discardCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.discards
}

type tailerStub struct {
	startChan chan struct{}
	errChan   chan error
	fnChan    chan func()
	closed    bool
	fn        func(line string)
}

func createTailerStub() *tailerStub {
	return &tailerStub{
		startChan: make(chan struct{}, 1),
		errChan:   make(chan error),
		fnChan:    make(chan func()),
	}
}

func (s *tailerStub) Close() error {
	s.closed = true
	return nil
}

func (s *tailerStub) Start(ctx context.Context, fn func(line string)) error {
	s.fn = fn
	select {
	case s.startChan <- struct{}{}:
	default:
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-s.errChan:
			return err
		case f := <-s.fnChan:
			f()
		}
	}
}
