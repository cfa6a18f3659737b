package relaylink

import (
	"strconv"
	"strings"
)

const (
	KindAck  = "ACK"
	KindErr  = "ERR"
	KindData = "DATA"

	SourceRelay  = "RELAY"
	SourceSensor = "SENSOR"

	sensorFieldCount = 5
)

var (
	cmdRelayOn  = []byte("1\n")
	cmdRelayOff = []byte("0\n")
)

// Frame is one comma-delimited line from the device.
type Frame struct {
	Kind   string
	Source string
	Fields []string
}

// Reading is a single DATA,SENSOR sample.
type Reading struct {
	TempC    float64
	TempF    float64
	Humidity float64
}

// RelayCommand returns the command bytes for the requested relay state.
func RelayCommand(on bool) []byte {
	if on {
		return cmdRelayOn
	}
	return cmdRelayOff
}

// ParseFrame splits a line into a Frame. Lines with fewer than two fields
// are not frames.
func ParseFrame(line string) (Frame, bool) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) < 2 {
		return Frame{}, false
	}
	return Frame{
		Kind:   fields[0],
		Source: fields[1],
		Fields: fields,
	}, true
}

func (f Frame) is(kind, source string) bool {
	return f.Kind == kind && f.Source == source
}

func (f Frame) IsRelayAck() bool   { return f.is(KindAck, SourceRelay) }
func (f Frame) IsRelayErr() bool   { return f.is(KindErr, SourceRelay) }
func (f Frame) IsSensorData() bool { return f.is(KindData, SourceSensor) }
func (f Frame) IsSensorErr() bool  { return f.is(KindErr, SourceSensor) }

// IsSensorSample reports a DATA,SENSOR frame carrying all three values.
func (f Frame) IsSensorSample() bool {
	return f.IsSensorData() && len(f.Fields) == sensorFieldCount
}

// Value returns the third field, the payload of ACK and ERR lines.
func (f Frame) Value() string {
	if len(f.Fields) < 3 {
		return ""
	}
	return f.Fields[2]
}

// AckMatches reports whether an ACK,RELAY frame confirms the requested state.
func (f Frame) AckMatches(on bool) bool {
	want := "0"
	if on {
		want = "1"
	}
	return f.Value() == want
}

// ProtocolError converts an ERR frame into an error.
func (f Frame) ProtocolError() *ProtocolError {
	return &ProtocolError{
		Source: f.Source,
		Reason: f.Value(),
	}
}

// ParseReading decodes DATA,SENSOR,<tempC>,<tempF>,<humidity>.
func ParseReading(f Frame) (Reading, error) {
	if !f.IsSensorSample() {
		return Reading{}, &ParseError{
			Field: "sensor frame",
			Value: strings.Join(f.Fields, ","),
			Err:   strconv.ErrSyntax,
		}
	}
	names := [...]string{"tempC", "tempF", "humidity"}
	var values [3]float64
	for i, name := range names {
		raw := strings.TrimSpace(f.Fields[i+2])
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Reading{}, &ParseError{Field: name, Value: raw, Err: err}
		}
		values[i] = v
	}
	return Reading{
		TempC:    values[0],
		TempF:    values[1],
		Humidity: values[2],
	}, nil
}
