package core

import (
	"encoding/json"

	"DriveBridge/internal/model"
	"DriveBridge/internal/motor"
	"DriveBridge/internal/util"
)

// defaultSpeed is used when a motion intent omits its speed, matching the
// joystick interface's default of 2000 steps/sec.
const defaultSpeed = 2000

// Gateway runs the per-session message loop: it decodes inbound envelopes,
// dispatches them to the motor service and replies to the issuing session.
// Malformed input affects only the offending session.
type Gateway struct {
	hub    *Hub
	motors *motor.Service

	// status builds the broadcast snapshot after a motor control command;
	// wired to the poller so drift carries the latest polled value.
	status func() model.StatusSnapshot
}

// NewGateway creates a gateway dispatching to the given motor service.
func NewGateway(hub *Hub, motors *motor.Service, status func() model.StatusSnapshot) *Gateway {
	return &Gateway{hub: hub, motors: motors, status: status}
}

// HandleSession reads messages from the session until the connection drops,
// then unregisters it and unconditionally stops the motors: no session
// teardown may leave the drivetrain running.
func (g *Gateway) HandleSession(sess *Session) {
	defer func() {
		g.hub.Unregister(sess.ID)
		if err := g.motors.StopAll(); err != nil {
			util.Error("gateway %s: stop on disconnect: %v", sess.ID, err)
		} else {
			util.Info("motors stopped - client %s disconnected", sess.ID)
		}
	}()

	for {
		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			return
		}
		g.dispatch(sess, data)
	}
}

// dispatch handles one inbound message. Decode errors and command failures
// produce an error reply to this session only; unknown message types are
// logged and silently ignored.
func (g *Gateway) dispatch(sess *Session, data []byte) {
	var msg model.ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		util.Error("gateway %s: invalid JSON: %v", sess.ID, err)
		sess.SendJSON(model.NewError("invalid JSON"))
		return
	}

	switch msg.Type {
	case model.TypeCommand:
		g.handleRawCommand(sess, msg.Command)
	case model.TypeMotorControl:
		g.handleMotorControl(sess, msg.Command)
	default:
		util.Info("gateway %s: unknown message type: %q", sess.ID, msg.Type)
	}
}

// handleRawCommand forwards a pass-through serial command verbatim and
// replies with the device output.
func (g *Gateway) handleRawCommand(sess *Session, raw json.RawMessage) {
	var command string
	if err := json.Unmarshal(raw, &command); err != nil || command == "" {
		sess.SendJSON(model.NewError("command must be a non-empty string"))
		return
	}

	util.Info("gateway %s: direct command: %s", sess.ID, command)
	resp, err := g.motors.SendRaw(command)
	if err != nil {
		sess.SendJSON(model.NewError("command failed: " + err.Error()))
		return
	}
	message := resp.Text()
	if message == "" {
		message = "Command sent"
	}
	sess.SendJSON(model.NewResponse(message))
}

// handleMotorControl translates a structured motion intent into motor
// service calls and broadcasts a fresh status snapshot on success.
func (g *Gateway) handleMotorControl(sess *Session, raw json.RawMessage) {
	var cmd model.MotorCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		sess.SendJSON(model.NewError("invalid motor_control payload"))
		return
	}

	speed := int(cmd.Speed)
	if speed == 0 {
		speed = defaultSpeed
	}

	var err error
	switch cmd.Type {
	case model.IntentForward:
		err = g.motors.MoveForward(speed)
	case model.IntentBackward:
		err = g.motors.MoveBackward(speed)
	case model.IntentSpin:
		switch cmd.Direction {
		case "left":
			err = g.motors.SpinLeft(speed)
		case "right":
			err = g.motors.SpinRight(speed)
		default:
			sess.SendJSON(model.NewError("spin direction must be left or right"))
			return
		}
	case model.IntentDifferential:
		left, right := int(cmd.LeftSpeed), int(cmd.RightSpeed)
		if left == 0 {
			left = defaultSpeed
		}
		if right == 0 {
			right = defaultSpeed
		}
		err = g.motors.Differential(left, right, cmd.Direction)
	case model.IntentStop:
		err = g.motors.StopAll()
	default:
		sess.SendJSON(model.NewError("unknown motor_control type: " + cmd.Type))
		return
	}

	if err != nil {
		util.Error("gateway %s: motor control: %v", sess.ID, err)
		sess.SendJSON(model.NewError("motor control error: " + err.Error()))
		return
	}

	g.hub.Broadcast(g.status())
}
