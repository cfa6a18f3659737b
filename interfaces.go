package bmsguard

import (
	"context"
	"time"
)

// Link is a line-framed connection to the relay microcontroller,
// implemented by *relaylink.Connection.
type Link interface {
	Send([]byte) error
	ReadLine(deadline time.Time) (string, error)
	Discard() error
	Close() error
}

type LogTailer interface {
	Close() error
	Start(context.Context, func(line string)) error
}
