package bmsguard

import (
	"github.com/jd3nn1s/bmsguard/relaylink"
	"github.com/pkg/errors"
	"strconv"
	"strings"
)

type RelayState int32

const (
	RelayOff RelayState = iota
	RelayOn
)

func (s RelayState) On() bool {
	return s == RelayOn
}

func (s RelayState) String() string {
	if s == RelayOn {
		return "on"
	}
	return "off"
}

func relayStateOf(on bool) RelayState {
	if on {
		return RelayOn
	}
	return RelayOff
}

// ParseRelayState accepts on/off and 1/0.
func ParseRelayState(s string) (RelayState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "1":
		return RelayOn, nil
	case "off", "0":
		return RelayOff, nil
	}
	return RelayOff, errors.Errorf("invalid relay state %q", s)
}

// LogRow is one comma-split line of the battery log.
type LogRow []string

func ParseLogRow(line string) LogRow {
	return strings.Split(line, ",")
}

// Float parses the field at column idx.
func (r LogRow) Float(idx int) (float64, error) {
	if idx < 0 || idx >= len(r) {
		return 0, &relaylink.ParseError{
			Field: "column " + strconv.Itoa(idx),
			Err:   errors.Errorf("row has %d fields", len(r)),
		}
	}
	raw := strings.TrimSpace(r[idx])
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &relaylink.ParseError{
			Field: "column " + strconv.Itoa(idx),
			Value: raw,
			Err:   err,
		}
	}
	return v, nil
}
