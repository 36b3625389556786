package mqtt

import (
	"errors"
	"time"

	"github.com/kestrel-ops/kestrel/core/model"
)

// ErrAckTimeout is returned by WaitForAck when the unit does not acknowledge
// the command before the deadline.
var ErrAckTimeout = errors.New("mqtt: ack timeout")

// CommandPublisher sends mission commands to field units and waits for
// acknowledgments.
type CommandPublisher interface {
	// SendCommand publishes a mission command on the unit specific topic and
	// returns the command identifier used to track the acknowledgment.
	SendCommand(cmd model.MissionCommand) (commandID string, err error)

	// WaitForAck waits for an acknowledgment for the provided command
	// identifier or until the timeout expires.
	WaitForAck(commandID string, timeout time.Duration) (bool, error)
}

// AlertHandler receives alerts decoded from the intake topic.
type AlertHandler func(model.Alert)

// TelemetryHandler receives telemetry decoded from the unit topics.
type TelemetryHandler func(model.Telemetry)
