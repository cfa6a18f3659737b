// Package logtail follows the most recently modified log file in a
// directory, delivering each line appended after it was opened.
package logtail

import (
	"bufio"
	"context"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/encoding/charmap"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"
)

const DefaultPattern = "*.csv"

// fallback for filesystems that do not deliver write notifications
var pollInterval = 200 * time.Millisecond

// ErrNoLogFiles is returned when the directory holds no matching file.
var ErrNoLogFiles = errors.New("logtail: no log files found")

// Latest returns the most recently modified file in dir matching pattern.
func Latest(dir, pattern string) (string, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return "", errors.Wrapf(err, "bad log pattern %q", pattern)
	}
	var latest string
	var latestMod time.Time
	for _, m := range matches {
		fi, err := os.Stat(m)
		if err != nil || fi.IsDir() {
			continue
		}
		if latest == "" || fi.ModTime().After(latestMod) {
			latest = m
			latestMod = fi.ModTime()
		}
	}
	if latest == "" {
		return "", errors.Wrapf(ErrNoLogFiles, "%s/%s", dir, pattern)
	}
	return latest, nil
}

type Tailer struct {
	path    string
	f       *os.File
	r       *bufio.Reader
	watcher *fsnotify.Watcher
	partial string
}

// Open opens the latest log in dir and positions it at end-of-file.
func Open(dir, pattern string) (*Tailer, error) {
	path, err := Latest(dir, pattern)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open %s", path)
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "unable to seek to end of %s", path)
	}

	t := &Tailer{
		path: path,
		f:    f,
		r:    bufio.NewReader(f),
	}
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		err = watcher.Add(path)
		if err != nil {
			_ = watcher.Close()
		} else {
			t.watcher = watcher
		}
	}
	if err != nil {
		log.WithField("err", err).Warn("file notifications unavailable, polling")
	}
	log.WithField("path", path).Info("tailing log file")
	return t, nil
}

func (t *Tailer) Path() string {
	return t.path
}

// Start calls fn for every complete line appended to the file until ctx is
// done or reading fails.
func (t *Tailer) Start(ctx context.Context, fn func(line string)) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var events <-chan fsnotify.Event
	var watchErrs <-chan error
	if t.watcher != nil {
		events = t.watcher.Events
		watchErrs = t.watcher.Errors
	}

	for {
		if err := t.drain(fn); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				return errors.Errorf("log file %s was moved", t.path)
			}
		case err, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
				continue
			}
			log.WithField("err", err).Warn("file watcher error")
		}
	}
}

func (t *Tailer) drain(fn func(line string)) error {
	for {
		chunk, err := t.r.ReadString('\n')
		if err == io.EOF {
			t.partial += chunk
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "unable to read %s", t.path)
		}
		line := strings.TrimRight(t.partial+chunk, "\r\n")
		t.partial = ""
		fn(decode(line))
	}
}

func (t *Tailer) Close() error {
	if t.watcher != nil {
		_ = t.watcher.Close()
	}
	if t.f == nil {
		return nil
	}
	return t.f.Close()
}

// decode treats invalid UTF-8 as Latin-1, the encoding the BMS tool
// writes on some hosts.
func decode(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	out, err := charmap.ISO8859_1.NewDecoder().String(s)
	if err != nil {
		return s
	}
	return out
}
