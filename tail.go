package bmsguard

import (
	"context"
	"github.com/jd3nn1s/bmsguard/logtail"
	log "github.com/sirupsen/logrus"
)

type tailRetryable struct {
	dir      string
	pattern  string
	t        LogTailer
	sendChan chan<- LogRow
}

// to allow testing
var tailerOpen = func(dir, pattern string) (LogTailer, error) {
	t, err := logtail.Open(dir, pattern)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (tr *tailRetryable) Name() string {
	return "logtail"
}

func (tr *tailRetryable) Open() error {
	t, err := tailerOpen(tr.dir, tr.pattern)
	tr.t = t
	return err
}

func (tr *tailRetryable) Close() error {
	if tr.t == nil {
		return nil
	}
	err := tr.t.Close()
	tr.t = nil
	return err
}

func (tr *tailRetryable) Start(ctx context.Context) error {
	return tr.t.Start(ctx, func(line string) {
		row := ParseLogRow(line)
		log.WithField("row", line).Debug("new log row")
		select {
		case tr.sendChan <- row:
		case <-ctx.Done():
		}
	})
}

// RunTailer feeds rows from the newest log in dir to sendChan, reopening
// the newest log after errors, until ctx is done. sendChan is closed on
// return.
func RunTailer(ctx context.Context, dir, pattern string, sendChan chan<- LogRow) {
	defer close(sendChan)
	tr := &tailRetryable{
		dir:      dir,
		pattern:  pattern,
		sendChan: sendChan,
	}
	err := retry(ctx, tr)
	if cerr := tr.Close(); cerr != nil {
		log.WithField("err", cerr).Warn("unable to close log tailer")
	}
	if err != nil {
		log.Errorf("logtail done: %v", err)
	}
}
