package models

import "time"

// CommandSource tells where a command came from
type CommandSource string

const (
	SourceLocal  CommandSource = "local"
	SourceRemote CommandSource = "remote"
)

// Command is a raw text command as received from the console or MQTT
type Command struct {
	Text       string
	Source     CommandSource
	Topic      string // empty for local commands
	ReceivedAt time.Time
}

// HealthStatus values
const (
	HealthOK    = "ok"
	HealthError = "error"
)

// HealthReply is published on the health reply topic
type HealthReply struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// OK reports whether every health check passed
func (h HealthReply) OK() bool {
	return h.Status == HealthOK
}
