// Package main is the entry point of the DriveBridge server. It loads the
// configuration, opens the serial link to the motor controller board and
// starts the websocket bridge with its background status poller. The program
// waits for an interrupt signal and performs graceful shutdown, ending with
// an emergency stop so the drivetrain never outlives the process.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"DriveBridge/internal/core"
	"DriveBridge/internal/model"
	"DriveBridge/internal/util"
)

func main() {
	util.SetupLogger()

	cfgPath := flag.String("c", "", "path to configuration file (defaults apply when empty)")
	flag.Parse()

	cfg, err := model.LoadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	util.Info("using serial device %s @ %d baud", cfg.Serial.Device, cfg.Serial.Baud)

	sys, err := core.NewSystem(cfg)
	if err != nil {
		log.Fatalf("failed to create system: %v", err)
	}

	if err := sys.StartAll(); err != nil {
		log.Fatalf("failed to start system: %v", err)
	}

	// wait for Ctrl+C or SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	util.Info("shutting down bridge...")
	sys.StopAll()
	util.Info("bridge stopped cleanly")
}
