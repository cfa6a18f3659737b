package main

import (
	"context"
	"flag"
	"fmt"
	"github.com/jd3nn1s/bmsguard"
	"github.com/jd3nn1s/bmsguard/relaylink"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"os"
	"os/signal"
	"syscall"
)

var configFile = flag.String("config", "bmsguard.toml", "configuration file, relative to the binary")
var testMode = flag.Bool("testmode", false, "run against a simulated relay controller and generated log rows")
var debug = flag.Bool("debug", false, "enable debug logging")
var relayCmd = flag.String("relay", "", "send a single relay command (on|off) and exit")
var printSensor = flag.Bool("sensor", false, "print sensor readings until interrupted")

func main() {
	flag.Parse()
	log.SetLevel(log.InfoLevel)
	if *debug {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := bmsguard.LoadConfig(*configFile)
	if err != nil {
		if !*testMode || !os.IsNotExist(errors.Cause(err)) {
			log.Fatal("unable to load configuration: ", err)
		}
		cfg = bmsguard.DefaultConfig()
	}
	if err := cfg.Validate(!*testMode); err != nil {
		log.Fatal("invalid configuration: ", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var link bmsguard.Link
	if *testMode {
		link, _, err = bmsguard.NewTestModeLink(ctx, cfg)
	} else {
		link, err = relaylink.Connect(cfg.Port, cfg.Baud, cfg.SettleDelay)
	}
	if err != nil {
		log.Fatal("unable to connect to relay controller: ", err)
	}
	defer link.Close()

	sup := bmsguard.New(cfg, link)

	switch {
	case *relayCmd != "":
		err = setRelay(sup, cfg)
	case *printSensor:
		err = readSensors(ctx, sup, cfg)
	default:
		err = supervise(ctx, sup, cfg)
	}
	if err != nil && errors.Cause(err) != context.Canceled {
		log.Fatal(err)
	}
	log.Info("shutting down")
}

func setRelay(sup *bmsguard.Supervisor, cfg bmsguard.Config) error {
	state, err := bmsguard.ParseRelayState(*relayCmd)
	if err != nil {
		return err
	}
	ok, err := sup.SetRelay(state, cfg.CommandTimeout)
	if err != nil {
		return errors.Wrapf(err, "relay %s", state)
	}
	fmt.Printf("relay %s -> %v\n", state, ok)
	return nil
}

func readSensors(ctx context.Context, sup *bmsguard.Supervisor, cfg bmsguard.Config) error {
	for ctx.Err() == nil {
		r, err := sup.ReadSensor(cfg.SensorTimeout)
		if err != nil {
			if relaylink.IsTransport(err) {
				return err
			}
			log.WithField("err", err).Warn("sensor read failed")
			continue
		}
		fmt.Printf("%.2f°C  %.2f°F  Humidity: %.2f%%\n", r.TempC, r.TempF, r.Humidity)
	}
	return ctx.Err()
}

func supervise(ctx context.Context, sup *bmsguard.Supervisor, cfg bmsguard.Config) error {
	rows := make(chan bmsguard.LogRow, 1)
	if *testMode {
		go bmsguard.RunTestMode(ctx, cfg.VoltageColumn, rows)
	} else {
		go bmsguard.RunTailer(ctx, cfg.LogDir, cfg.LogPattern, rows)
	}
	return sup.Run(ctx, rows)
}
