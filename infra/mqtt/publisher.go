package mqtt

import (
	"fmt"
	"sync"
	"time"

	"github.com/kestrel-ops/kestrel/core/model"
	coremqtt "github.com/kestrel-ops/kestrel/core/mqtt"
)

// CommandPublisher mirrors the core mqtt interface.
type CommandPublisher = coremqtt.CommandPublisher

// MockPublisher is a simple publisher used in tests. Every WaitForAck call is
// reported on the Waited channel so tests can observe ack consumption.
type MockPublisher struct {
	Commands   map[string]model.MissionCommand
	FailIDs    map[string]bool
	AckResults map[string]bool
	Waited     chan string
	mu         sync.Mutex
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		Commands:   make(map[string]model.MissionCommand),
		FailIDs:    make(map[string]bool),
		AckResults: make(map[string]bool),
		Waited:     make(chan string, 16),
	}
}

// SendCommand records the command or returns an error if configured to fail.
func (m *MockPublisher) SendCommand(cmd model.MissionCommand) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailIDs[cmd.UnitID] {
		return "", fmt.Errorf("publish failed")
	}
	m.Commands[cmd.UnitID] = cmd
	commandID := fmt.Sprintf("cmd-%s", cmd.UnitID)
	m.AckResults[commandID] = true
	return commandID, nil
}

// WaitForAck simulates an immediate acknowledgment based on the stored result.
func (m *MockPublisher) WaitForAck(commandID string, timeout time.Duration) (bool, error) {
	m.mu.Lock()
	ok, exists := m.AckResults[commandID]
	m.mu.Unlock()
	select {
	case m.Waited <- commandID:
	default:
	}
	if !exists {
		return false, fmt.Errorf("unknown command")
	}
	return ok, nil
}
