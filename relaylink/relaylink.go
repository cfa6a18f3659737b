package relaylink

import (
	"bytes"
	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"
	"io"
	"strings"
	"time"
)

const (
	// granularity of the line poll; each Read blocks at most this long
	readPoll = 100 * time.Millisecond

	readChunk = 64
)

// Port is the subset of serial.Port used by a Connection.
type Port interface {
	io.ReadWriteCloser
	ResetInputBuffer() error
	SetReadTimeout(t time.Duration) error
}

var openPort = func(portName string, baud int) (Port, error) {
	return serial.Open(portName, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
}

// Connection frames the serial byte stream into newline-terminated lines.
// It is not safe for concurrent use; callers serialize exchanges.
type Connection struct {
	port    Port
	pending []byte
}

// Connect opens the serial port, waits settle for the device to reboot
// and discards anything it printed while booting.
func Connect(portName string, baud int, settle time.Duration) (*Connection, error) {
	port, err := openPort(portName, baud)
	if err != nil {
		return nil, &TransportError{Op: "open " + portName, Err: err}
	}
	c, err := NewConnection(port)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	log.WithField("port", portName).
		WithField("baud", baud).
		Infof("serial port opened, waiting %v for device", settle)
	time.Sleep(settle)
	if err := c.Discard(); err != nil {
		_ = port.Close()
		return nil, err
	}
	return c, nil
}

// NewConnection wraps an already open port.
func NewConnection(port Port) (*Connection, error) {
	if err := port.SetReadTimeout(readPoll); err != nil {
		return nil, &TransportError{Op: "set read timeout", Err: err}
	}
	return &Connection{port: port}, nil
}

// Send writes b in full.
func (c *Connection) Send(b []byte) error {
	if _, err := c.port.Write(b); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	log.WithField("data", strings.TrimSpace(string(b))).Debug("sent to relay controller")
	return nil
}

// Discard drops buffered input, both in the OS and in the line buffer.
func (c *Connection) Discard() error {
	c.pending = c.pending[:0]
	if err := c.port.ResetInputBuffer(); err != nil {
		return &TransportError{Op: "reset input buffer", Err: err}
	}
	return nil
}

// ReadLine returns the next non-blank line, without its terminator, or
// ErrTimeout once deadline has passed. A read may overrun the deadline by
// up to the poll granularity.
func (c *Connection) ReadLine(deadline time.Time) (string, error) {
	buf := make([]byte, readChunk)
	for {
		for {
			idx := bytes.IndexByte(c.pending, '\n')
			if idx < 0 {
				break
			}
			line := strings.TrimSpace(string(c.pending[:idx]))
			c.pending = c.pending[idx+1:]
			if line != "" {
				return line, nil
			}
		}
		if !time.Now().Before(deadline) {
			return "", ErrTimeout
		}
		n, err := c.port.Read(buf)
		if err != nil {
			return "", &TransportError{Op: "read", Err: err}
		}
		c.pending = append(c.pending, buf[:n]...)
	}
}

func (c *Connection) Close() error {
	if c.port == nil {
		return nil
	}
	return c.port.Close()
}
