// Package device opens physical serial ports and provides a line-oriented
// firmware simulator for running the bridge without motor hardware.
package device

import (
	serial "go.bug.st/serial"
)

// Open opens a serial device (e.g. /dev/ttyACM0) with the given baudrate.
// The returned port implements io.ReadWriteCloser.
func Open(device string, baud int) (serial.Port, error) {
	return serial.Open(device, &serial.Mode{BaudRate: baud})
}
