package bmsguard

import (
	"github.com/jd3nn1s/bmsguard/relaylink"
	log "github.com/sirupsen/logrus"
	"sync"
	"time"
)

// linkGuard gives one caller at a time exclusive use of the link. Every
// command/response exchange and every heartbeat write runs inside exclusive.
type linkGuard struct {
	mu   sync.Mutex
	link Link
}

func (g *linkGuard) exclusive(fn func(Link) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fn(g.link)
}

// SetRelay commands the relay and waits up to timeout for ACK,RELAY. It
// returns whether the acknowledged value matches the request. An
// ERR,RELAY line ends the wait with a *relaylink.ProtocolError; no answer
// gives relaylink.ErrTimeout. The command is always sent, even when the
// tracked state already matches.
func (s *Supervisor) SetRelay(state RelayState, timeout time.Duration) (bool, error) {
	var matched bool
	err := s.guard.exclusive(func(link Link) error {
		if err := link.Discard(); err != nil {
			return err
		}
		if err := link.Send(relaylink.RelayCommand(state.On())); err != nil {
			return err
		}
		deadline := time.Now().Add(timeout)
		for {
			line, err := link.ReadLine(deadline)
			if err != nil {
				return err
			}
			f, ok := relaylink.ParseFrame(line)
			if !ok {
				continue
			}
			switch {
			case f.IsRelayAck():
				matched = f.AckMatches(state.On())
				return nil
			case f.IsRelayErr():
				return f.ProtocolError()
			}
		}
	})
	if err != nil {
		return false, err
	}
	s.setState(state)
	log.WithField("relay", state).
		WithField("confirmed", matched).
		Info("relay command acknowledged")
	return matched, nil
}

// ReadSensor waits up to timeout for the next DATA,SENSOR sample.
// Input is not discarded first: samples arrive unsolicited.
func (s *Supervisor) ReadSensor(timeout time.Duration) (relaylink.Reading, error) {
	var reading relaylink.Reading
	err := s.guard.exclusive(func(link Link) error {
		deadline := time.Now().Add(timeout)
		for {
			line, err := link.ReadLine(deadline)
			if err != nil {
				return err
			}
			f, ok := relaylink.ParseFrame(line)
			if !ok {
				continue
			}
			switch {
			case f.IsSensorSample():
				reading, err = relaylink.ParseReading(f)
				return err
			case f.IsSensorErr():
				return f.ProtocolError()
			}
		}
	})
	return reading, err
}

// Heartbeat re-sends the command for the tracked relay state without
// waiting for an acknowledgement.
func (s *Supervisor) Heartbeat() error {
	return s.guard.exclusive(func(link Link) error {
		state := s.State()
		log.WithField("relay", state).Debug("heartbeat")
		return link.Send(relaylink.RelayCommand(state.On()))
	})
}
