// Package main runs the firmware simulator: a process that speaks the motor
// controller board's serial protocol over a pty, so the bridge can be tested
// end to end without hardware. With -virtual it creates a linked pty pair
// via socat and serves the board side; point the bridge at the other link.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"DriveBridge/internal/device"
	"DriveBridge/internal/util"
)

func main() {
	util.SetupLogger()

	devPath := flag.String("device", "/tmp/ttySIM", "serial device to serve the board protocol on")
	baud := flag.Int("baud", 115200, "baud rate")
	virtual := flag.Bool("virtual", false, "create a socat pty pair (/tmp/ttyBRIDGE <-> device)")
	bridgeLink := flag.String("bridge-link", "/tmp/ttyBRIDGE", "bridge-side pty link when -virtual is set")
	flag.Parse()

	if *virtual {
		pair, err := util.NewVirtualSerial(*bridgeLink, *devPath)
		if err != nil {
			log.Fatalf("failed to create virtual serial pair: %v", err)
		}
		defer pair.Cleanup()
		// give socat a moment to create the links
		time.Sleep(500 * time.Millisecond)
		util.Info("bridge side: %s", *bridgeLink)
	}

	port, err := device.Open(*devPath, *baud)
	if err != nil {
		log.Fatalf("failed to open %s: %v", *devPath, err)
	}

	fw := device.NewFirmware()
	done := make(chan error, 1)
	go func() { done <- fw.Serve(port) }()
	util.Info("firmware simulator serving on %s", *devPath)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case <-stop:
		util.Info("simulator stopped")
	case err := <-done:
		if err != nil {
			util.Error("simulator serve: %v", err)
		}
	}
	_ = port.Close()
}
