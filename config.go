package bmsguard

import (
	"github.com/BurntSushi/toml"
	"github.com/jd3nn1s/bmsguard/logtail"
	"github.com/pkg/errors"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	Port string
	Baud int

	LogDir        string
	LogPattern    string
	VoltageColumn int

	CutOffThreshold     float64
	ConnectionThreshold float64

	InactivityTimeout time.Duration
	InactivityPoll    time.Duration
	CommandTimeout    time.Duration
	SensorTimeout     time.Duration
	SettleDelay       time.Duration
}

// DefaultConfig returns the reference battery policy.
func DefaultConfig() Config {
	return Config{
		Baud:                9600,
		LogPattern:          logtail.DefaultPattern,
		VoltageColumn:       3,
		CutOffThreshold:     12.5,
		ConnectionThreshold: 13.4,
		InactivityTimeout:   3 * time.Second,
		InactivityPoll:      time.Second,
		CommandTimeout:      time.Second,
		SensorTimeout:       2 * time.Second,
		SettleDelay:         2 * time.Second,
	}
}

// LoadConfig reads fileName from the directory holding the binary.
func LoadConfig(fileName string) (Config, error) {
	path := fileName
	if !filepath.IsAbs(fileName) {
		dir, err := filepath.Abs(filepath.Dir(os.Args[0]))
		if err != nil {
			return Config{}, errors.Wrapf(err, "unable to determine binary location")
		}
		path = filepath.Join(dir, fileName)
	}
	file, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "unable to open file %s", fileName)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// LoadConfigFromReader decodes TOML over DefaultConfig.
func LoadConfigFromReader(configReader io.Reader) (Config, error) {
	configData, err := ioutil.ReadAll(configReader)
	if err != nil {
		return Config{}, errors.Wrap(err, "unable to read config reader")
	}
	config := DefaultConfig()
	if _, err := toml.Decode(string(configData), &config); err != nil {
		return Config{}, errors.Wrapf(err, "unable to load bmsguard configuration")
	}
	return config, nil
}

func (c Config) Thresholds() Thresholds {
	return Thresholds{
		CutOff:  c.CutOffThreshold,
		Connect: c.ConnectionThreshold,
	}
}

// HeartbeatInterval is half the inactivity timeout, keeping the relay
// controller's own timeout from tripping.
func (c Config) HeartbeatInterval() time.Duration {
	return c.InactivityTimeout / 2
}

// Validate checks the policy. The serial port and log directory are only
// required when needsHardware is set.
func (c Config) Validate(needsHardware bool) error {
	if c.CutOffThreshold >= c.ConnectionThreshold {
		return errors.Errorf("cut-off threshold %.2f must be below connection threshold %.2f",
			c.CutOffThreshold, c.ConnectionThreshold)
	}
	if c.VoltageColumn < 0 {
		return errors.Errorf("voltage column %d is negative", c.VoltageColumn)
	}
	for name, d := range map[string]time.Duration{
		"InactivityTimeout": c.InactivityTimeout,
		"InactivityPoll":    c.InactivityPoll,
		"CommandTimeout":    c.CommandTimeout,
		"SensorTimeout":     c.SensorTimeout,
	} {
		if d <= 0 {
			return errors.Errorf("%s must be positive, got %v", name, d)
		}
	}
	if c.HeartbeatInterval() <= 0 {
		return errors.Errorf("InactivityTimeout %v leaves no heartbeat interval", c.InactivityTimeout)
	}
	if c.SettleDelay < 0 {
		return errors.Errorf("SettleDelay must not be negative, got %v", c.SettleDelay)
	}
	if needsHardware {
		if c.Port == "" {
			return errors.New("serial Port is not configured")
		}
		if c.Baud <= 0 {
			return errors.Errorf("invalid baud rate %d", c.Baud)
		}
		if c.LogDir == "" {
			return errors.New("LogDir is not configured")
		}
	}
	return nil
}
