package nats

import "fmt"

// Command names served on <prefix>.<device_id>.cmd.<name>
const (
	CommandPing   = "ping"
	CommandFacts  = "facts"
	CommandHealth = "health"
)

// Subjects builds the subject names for one device
type Subjects struct {
	Prefix   string
	DeviceID string
}

// Command returns the request subject for a command
func (s Subjects) Command(name string) string {
	return fmt.Sprintf("%s.%s.cmd.%s", s.Prefix, s.DeviceID, name)
}

// Facts returns the subject facts snapshots are published on
func (s Subjects) Facts() string {
	return fmt.Sprintf("%s.%s.facts", s.Prefix, s.DeviceID)
}

// Heartbeat returns the subject heartbeats are published on
func (s Subjects) Heartbeat() string {
	return fmt.Sprintf("%s.%s.heartbeat", s.Prefix, s.DeviceID)
}
