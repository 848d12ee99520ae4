// Package motor exposes the typed command API for the two-motor drivetrain.
// Every operation reduces to one or more serial commands executed under the
// link's mutual exclusion, so command/response pairs from different callers
// never interleave on the wire.
package motor

import (
	"errors"
	"fmt"
	"sync"

	"DriveBridge/internal/link"
)

// Speed limits accepted by the board, in steps/second.
const (
	MinSpeed = 0
	MaxSpeed = 20000
)

// Direction labels reported in status snapshots.
const (
	DirStopped   = "STOPPED"
	DirForward   = "FORWARD"
	DirBackward  = "BACKWARD"
	DirSpinLeft  = "SPIN LEFT"
	DirSpinRight = "SPIN RIGHT"
)

var (
	// ErrNegativeSpeed rejects spin/boost commands with a negative speed.
	ErrNegativeSpeed = errors.New("speed must be non-negative")

	// ErrInvalidMotor rejects per-motor commands outside motors 1 and 2.
	ErrInvalidMotor = errors.New("motor id must be 1 or 2")

	// ErrInvalidDirection rejects unknown differential directions.
	ErrInvalidDirection = errors.New("direction must be forward or backward")
)

// Service is the single process-wide motor command service. It owns the Link
// and tracks the last commanded speed and direction for status snapshots.
type Service struct {
	link *link.Link

	mu           sync.Mutex
	speed        int
	direction    string
	disconnected bool
}

// NewService wraps an open link. Exactly one Service exists per process: the
// hardware channel is a singleton resource.
func NewService(l *link.Link) *Service {
	return &Service{link: l, direction: DirStopped}
}

// send runs the given commands as one critical section and marks the service
// disconnected on link failure.
func (s *Service) send(commands ...string) ([]link.Response, error) {
	responses, err := s.link.SendCommands(commands...)
	if errors.Is(err, link.ErrClosed) {
		s.mu.Lock()
		s.disconnected = true
		s.mu.Unlock()
	}
	return responses, err
}

// setState records the last commanded speed and direction.
func (s *Service) setState(speed int, direction string) {
	s.mu.Lock()
	s.speed = speed
	s.direction = direction
	s.mu.Unlock()
}

// Snapshot returns the last commanded speed and direction label.
func (s *Service) Snapshot() (speed int, direction string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speed, s.direction
}

// Disconnected reports whether a link failure has been observed. Once set it
// stays set until the process is restarted with a fresh link.
func (s *Service) Disconnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnected
}

// clampSpeed silently constrains a speed to the board's accepted range.
func clampSpeed(speed int) int {
	if speed < MinSpeed {
		return MinSpeed
	}
	if speed > MaxSpeed {
		return MaxSpeed
	}
	return speed
}

// SetSpeedAll sets both motors to the given speed, clamped to [0, 20000].
func (s *Service) SetSpeedAll(speed int) error {
	speed = clampSpeed(speed)
	if _, err := s.send(fmt.Sprintf("SPEED:%d", speed)); err != nil {
		return err
	}
	s.mu.Lock()
	s.speed = speed
	s.mu.Unlock()
	return nil
}

// SetMotorSpeed sets one motor's speed, clamped to [0, 20000].
func (s *Service) SetMotorSpeed(id, speed int) error {
	if id != 1 && id != 2 {
		return fmt.Errorf("%w: %d", ErrInvalidMotor, id)
	}
	speed = clampSpeed(speed)
	_, err := s.send(fmt.Sprintf("M%d:SPEED:%d", id, speed))
	return err
}

// MoveForward drives both motors forward: direction, speed and run are sent
// as a single critical section so no other caller's command can land between
// them.
func (s *Service) MoveForward(speed int) error {
	speed = clampSpeed(speed)
	if _, err := s.send("FORWARD", fmt.Sprintf("SPEED:%d", speed), "RUN"); err != nil {
		return err
	}
	s.setState(speed, DirForward)
	return nil
}

// MoveBackward drives both motors backward as a single critical section.
func (s *Service) MoveBackward(speed int) error {
	speed = clampSpeed(speed)
	if _, err := s.send("BACKWARD", fmt.Sprintf("SPEED:%d", speed), "RUN"); err != nil {
		return err
	}
	s.setState(speed, DirBackward)
	return nil
}

// SpinLeft rotates in place counter-clockwise (left motor backward, right
// motor forward). The board recognizes this as one composite command.
func (s *Service) SpinLeft(speed int) error {
	if speed < 0 {
		return ErrNegativeSpeed
	}
	if _, err := s.send(fmt.Sprintf("SPIN:LEFT:%d", speed)); err != nil {
		return err
	}
	s.setState(speed, DirSpinLeft)
	return nil
}

// SpinRight rotates in place clockwise.
func (s *Service) SpinRight(speed int) error {
	if speed < 0 {
		return ErrNegativeSpeed
	}
	if _, err := s.send(fmt.Sprintf("SPIN:RIGHT:%d", speed)); err != nil {
		return err
	}
	s.setState(speed, DirSpinRight)
	return nil
}

// BoostForward runs both motors forward with the board's boost multiplier.
func (s *Service) BoostForward(speed int) error {
	return s.boost("FORWARD", speed)
}

// BoostBackward runs both motors backward with the boost multiplier.
func (s *Service) BoostBackward(speed int) error {
	return s.boost("BACKWARD", speed)
}

// BoostLeft is a boosted spin left.
func (s *Service) BoostLeft(speed int) error {
	return s.boost("LEFT", speed)
}

// BoostRight is a boosted spin right.
func (s *Service) BoostRight(speed int) error {
	return s.boost("RIGHT", speed)
}

func (s *Service) boost(direction string, speed int) error {
	if speed < 0 {
		return ErrNegativeSpeed
	}
	_, err := s.send(fmt.Sprintf("BOOST:%s:%d", direction, speed))
	return err
}

// Differential sets each motor's speed individually and runs both in the
// given direction, all under one critical section. Used for smooth turning.
func (s *Service) Differential(leftSpeed, rightSpeed int, direction string) error {
	var dirCmd string
	switch direction {
	case "forward":
		dirCmd = "FORWARD"
	case "backward":
		dirCmd = "BACKWARD"
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDirection, direction)
	}
	leftSpeed = clampSpeed(leftSpeed)
	rightSpeed = clampSpeed(rightSpeed)
	_, err := s.send(
		fmt.Sprintf("M1:SPEED:%d", leftSpeed),
		fmt.Sprintf("M2:SPEED:%d", rightSpeed),
		"M1:"+dirCmd,
		"M2:"+dirCmd,
		"RUN",
	)
	if err != nil {
		return err
	}
	s.setState((leftSpeed+rightSpeed)/2, "DIFF "+dirCmd)
	return nil
}

// StopAll stops both motors with gradual deceleration.
func (s *Service) StopAll() error {
	if _, err := s.send("STOP"); err != nil {
		return err
	}
	s.setState(0, DirStopped)
	return nil
}

// EmergencyStop halts both motors immediately.
func (s *Service) EmergencyStop() error {
	if _, err := s.send("ESTOP"); err != nil {
		return err
	}
	s.setState(0, DirStopped)
	return nil
}

// Status requests the board's multi-line status dump and returns it raw.
// Callers parse what they need (see ParseStatus).
func (s *Service) Status() (link.Response, error) {
	responses, err := s.send("STATUS")
	if err != nil {
		return nil, err
	}
	return responses[0], nil
}

// SyncMotors resets both position counters simultaneously on the board.
func (s *Service) SyncMotors() error {
	_, err := s.send("SYNC")
	return err
}

// ResetAll zeroes both position counters and stops the motors.
func (s *Service) ResetAll() error {
	if _, err := s.send("RESET"); err != nil {
		return err
	}
	s.setState(0, DirStopped)
	return nil
}

// ConfigureBoost updates the board's boost settings. Values are forwarded
// as-is: the board is authoritative about acceptable ranges (multiplier
// nominally [1.0, 2.0], duration [50, 1000] ms).
func (s *Service) ConfigureBoost(multiplier float64, durationMs int, enabled bool) error {
	flag := 0
	if enabled {
		flag = 1
	}
	_, err := s.send(fmt.Sprintf("CONFIG:BOOST:%g:%d:%d", multiplier, durationMs, flag))
	return err
}

// SendRaw forwards a raw command line verbatim and returns the reply. Used
// for client pass-through commands.
func (s *Service) SendRaw(command string) (link.Response, error) {
	responses, err := s.send(command)
	if err != nil {
		return nil, err
	}
	return responses[0], nil
}
