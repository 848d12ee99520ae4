package device

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"
)

const maxSimSpeed = 20000

// simMotor mirrors the state the controller board keeps per motor.
type simMotor struct {
	name      string
	speed     float64
	direction int // 1 forward, -1 backward
	running   bool
	boosted   bool
	position  int64
	// stepScale models mechanical imperfection so the two motors drift
	// apart while running, like the real drivetrain does.
	stepScale float64
}

// boostCfg mirrors the board's boost configuration.
type boostCfg struct {
	multiplier float64
	durationMs int
	enabled    bool
}

// Firmware emulates the dual-motor controller board's serial protocol. It is
// line-oriented: each inbound command yields zero or more reply lines. Used
// by cmd/firmware_sim and by tests that need a realistic device endpoint.
type Firmware struct {
	mu       sync.Mutex
	m1, m2   simMotor
	boost    boostCfg
	lastTick time.Time
}

// NewFirmware creates a simulator with both motors stopped at position zero.
func NewFirmware() *Firmware {
	return &Firmware{
		m1:       simMotor{name: "Motor 1", direction: 1, stepScale: 1.0},
		m2:       simMotor{name: "Motor 2", direction: 1, stepScale: 0.995},
		boost:    boostCfg{multiplier: 1.5, durationMs: 800, enabled: true},
		lastTick: time.Now(),
	}
}

// Serve reads newline-terminated commands from rwc and writes reply lines
// back until the stream closes or errors.
func (f *Firmware) Serve(rwc io.ReadWriteCloser) error {
	defer rwc.Close()
	r := bufio.NewReader(rwc)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return err
		}
		for _, reply := range f.Process(line) {
			if _, err := rwc.Write([]byte(reply + "\n")); err != nil {
				return err
			}
		}
	}
}

// Process handles one command line and returns the board's reply lines.
func (f *Firmware) Process(line string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.advance()

	cmd := strings.ToUpper(strings.TrimSpace(line))
	if cmd == "" {
		return nil
	}

	// Per-motor prefix: M1:/M2: (also bare 1:/2:)
	var target *simMotor
	switch {
	case strings.HasPrefix(cmd, "M1:"), strings.HasPrefix(cmd, "1:"):
		target = &f.m1
		cmd = cmd[strings.Index(cmd, ":")+1:]
	case strings.HasPrefix(cmd, "M2:"), strings.HasPrefix(cmd, "2:"):
		target = &f.m2
		cmd = cmd[strings.Index(cmd, ":")+1:]
	}

	command, value := cmd, ""
	if i := strings.Index(cmd, ":"); i > 0 {
		command, value = cmd[:i], cmd[i+1:]
	}

	switch command {
	case "SPEED", "S":
		speed, _ := strconv.ParseFloat(value, 64)
		if speed < 0 {
			speed = 0
		} else if speed > maxSimSpeed {
			speed = maxSimSpeed
		}
		if target != nil {
			target.speed = speed
			return []string{fmt.Sprintf("%s speed set to: %.2f", target.name, speed)}
		}
		f.m1.speed, f.m2.speed = speed, speed
		return []string{fmt.Sprintf("Both motors speed set to: %.2f", speed)}

	case "FORWARD", "FWD", "F":
		if target != nil {
			target.direction = 1
			return []string{target.name + " direction: FORWARD"}
		}
		f.m1.direction, f.m2.direction = 1, 1
		return []string{"Both motors direction: FORWARD"}

	case "BACKWARD", "BACK", "B":
		if target != nil {
			target.direction = -1
			return []string{target.name + " direction: BACKWARD"}
		}
		f.m1.direction, f.m2.direction = -1, -1
		return []string{"Both motors direction: BACKWARD"}

	case "RUN", "R":
		if target != nil {
			target.running = true
			return []string{target.name + " running"}
		}
		f.m1.running, f.m2.running = true, true
		return []string{"Both motors running"}

	case "STOP", "X":
		if target != nil {
			f.stopMotor(target)
			return []string{target.name + " stopped"}
		}
		f.stopMotor(&f.m1)
		f.stopMotor(&f.m2)
		return []string{"Both motors stopped"}

	case "ESTOP", "E":
		f.stopMotor(&f.m1)
		f.stopMotor(&f.m2)
		return []string{"EMERGENCY STOP - ALL MOTORS"}

	case "STATUS", "?":
		return f.statusDump()

	case "RESET", "RST":
		if target != nil {
			target.position = 0
			f.stopMotor(target)
			return []string{target.name + " reset"}
		}
		f.m1.position, f.m2.position = 0, 0
		f.stopMotor(&f.m1)
		f.stopMotor(&f.m2)
		return []string{"Both motors reset"}

	case "SYNC":
		f.m1.position, f.m2.position = 0, 0
		return []string{"Motors synchronized - positions reset"}

	case "SPIN":
		dir, speed, ok := splitDirSpeed(value)
		if !ok || (dir != "LEFT" && dir != "L" && dir != "RIGHT" && dir != "R") {
			return []string{"Invalid SPIN direction. Use LEFT or RIGHT"}
		}
		left := dir == "LEFT" || dir == "L"
		f.spin(left, speed, false)
		if left {
			return []string{fmt.Sprintf("Spinning LEFT at %.2f", speed)}
		}
		return []string{fmt.Sprintf("Spinning RIGHT at %.2f", speed)}

	case "BOOST":
		dir, speed, ok := splitDirSpeed(value)
		if !ok {
			return []string{"Invalid BOOST direction"}
		}
		switch dir {
		case "LEFT", "L":
			f.spin(true, speed, true)
			return []string{fmt.Sprintf("BOOST Spin LEFT at %.2f", speed)}
		case "RIGHT", "R":
			f.spin(false, speed, true)
			return []string{fmt.Sprintf("BOOST Spin RIGHT at %.2f", speed)}
		case "FORWARD", "F":
			f.straight(1, speed, true)
			return []string{fmt.Sprintf("BOOST Forward at %.2f", speed)}
		case "BACKWARD", "B":
			f.straight(-1, speed, true)
			return []string{fmt.Sprintf("BOOST Backward at %.2f", speed)}
		}
		return []string{"Invalid BOOST direction"}

	case "CONFIG":
		if !strings.HasPrefix(value, "BOOST:") {
			return []string{
				"CONFIG:BOOST:multiplier:duration:enabled",
				"Example: CONFIG:BOOST:1.5:200:1",
			}
		}
		params := strings.Split(strings.TrimPrefix(value, "BOOST:"), ":")
		if len(params) != 3 {
			return []string{
				"CONFIG:BOOST:multiplier:duration:enabled",
				"Example: CONFIG:BOOST:1.5:200:1",
			}
		}
		f.boost.multiplier, _ = strconv.ParseFloat(params[0], 64)
		f.boost.durationMs, _ = strconv.Atoi(params[1])
		f.boost.enabled = params[2] == "1"
		enabled := "NO"
		if f.boost.enabled {
			enabled = "YES"
		}
		return []string{
			"Boost configuration updated:",
			fmt.Sprintf("  Multiplier: %.2f", f.boost.multiplier),
			fmt.Sprintf("  Duration: %d ms", f.boost.durationMs),
			"  Enabled: " + enabled,
		}
	}

	return []string{"Unknown command: " + cmd}
}

// splitDirSpeed parses "LEFT:3000" style values.
func splitDirSpeed(value string) (string, float64, bool) {
	i := strings.Index(value, ":")
	if i <= 0 {
		return "", 0, false
	}
	speed, err := strconv.ParseFloat(value[i+1:], 64)
	if err != nil {
		return "", 0, false
	}
	return value[:i], speed, true
}

func (f *Firmware) spin(left bool, speed float64, boosted bool) {
	if left {
		f.m1.direction, f.m2.direction = -1, 1
	} else {
		f.m1.direction, f.m2.direction = 1, -1
	}
	f.applySpeed(speed, boosted)
}

func (f *Firmware) straight(direction int, speed float64, boosted bool) {
	f.m1.direction, f.m2.direction = direction, direction
	f.applySpeed(speed, boosted)
}

func (f *Firmware) applySpeed(speed float64, boosted bool) {
	if boosted && f.boost.enabled {
		speed *= f.boost.multiplier
	}
	if speed > maxSimSpeed {
		speed = maxSimSpeed
	}
	f.m1.speed, f.m2.speed = speed, speed
	f.m1.boosted, f.m2.boosted = boosted, boosted
	f.m1.running, f.m2.running = true, true
}

func (f *Firmware) stopMotor(m *simMotor) {
	m.running = false
	m.boosted = false
	m.speed = 0
}

// advance steps the position counters based on elapsed wall time.
func (f *Firmware) advance() {
	now := time.Now()
	elapsed := now.Sub(f.lastTick).Seconds()
	f.lastTick = now
	for _, m := range []*simMotor{&f.m1, &f.m2} {
		if m.running && m.speed > 0 {
			m.position += int64(m.speed * m.stepScale * elapsed * float64(m.direction))
		}
	}
}

// statusDump renders the framed multi-line STATUS block in the exact layout
// the board firmware prints.
func (f *Firmware) statusDump() []string {
	drift := f.m1.position - f.m2.position
	if drift < 0 {
		drift = -drift
	}
	lines := []string{"======== DUAL MOTOR STATUS ========"}
	for i, m := range []*simMotor{&f.m1, &f.m2} {
		side := "Left/Port"
		if i == 1 {
			side = "Right/Starboard"
		}
		lines = append(lines,
			fmt.Sprintf("--- %s (%s) ---", m.name, side),
			"  Running: "+yesNo(m.running),
			fmt.Sprintf("  Current Speed: %.2f", m.speed),
			fmt.Sprintf("  Target Speed: %.2f", m.speed),
			"  Direction: "+dirLabel(m.direction),
			fmt.Sprintf("  Position: %d", m.position),
			"  Boost Active: "+yesNo(m.boosted),
		)
	}
	lines = append(lines,
		fmt.Sprintf("--- Sync Drift: %d steps ---", drift),
		"===================================",
	)
	return lines
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}

func dirLabel(d int) string {
	if d == 1 {
		return "FORWARD"
	}
	return "BACKWARD"
}
