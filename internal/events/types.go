// Package events defines event types and enumerations for the bedrockd event system.
package events

import "time"

// EventType represents the type of event emitted through the EventBus.
type EventType string

const (
	// Connection lifecycle events
	EventConnectionAccepted EventType = "connection_accepted"
	EventLoginValidated     EventType = "login_validated"
	EventLoginRejected      EventType = "login_rejected"
	EventSessionStarted     EventType = "session_started"
	EventSessionClosed      EventType = "session_closed"

	// Protocol events
	EventFrameRejected   EventType = "frame_rejected"
	EventUnknownPacket   EventType = "unknown_packet"
	EventBatchOversized  EventType = "batch_oversized"

	// Notification events
	EventNotifyMQTT EventType = "notify_mqtt"

	// System events
	EventConfigChanged EventType = "config_changed"
	EventShutdown      EventType = "shutdown"
)

// SessionState represents the lifecycle state of a tracked session.
type SessionState int

const (
	SessionStateUnknown SessionState = iota
	SessionStateConnecting
	SessionStateAuthenticating
	SessionStateActive
	SessionStateClosed
	SessionStateRejected
)

// sessionStateStrings maps SessionState values to their lowercase JSON string representation.
var sessionStateStrings = map[SessionState]string{
	SessionStateUnknown:        "unknown",
	SessionStateConnecting:     "connecting",
	SessionStateAuthenticating: "authenticating",
	SessionStateActive:         "active",
	SessionStateClosed:         "closed",
	SessionStateRejected:       "rejected",
}

// String returns the string representation of SessionState.
func (s SessionState) String() string {
	if str, ok := sessionStateStrings[s]; ok {
		return str
	}
	return "unknown"
}

// MarshalJSON serializes SessionState as a JSON string (e.g. "active").
func (s SessionState) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Event represents a single event in the system.
type Event struct {
	Type    EventType
	Source  string
	Payload interface{}
}

// ConnectionAcceptedPayload is emitted when a transport connection is accepted.
type ConnectionAcceptedPayload struct {
	RemoteAddr string
	Transport  string
	At         time.Time
}

// LoginValidatedPayload is emitted when a certificate chain validates.
type LoginValidatedPayload struct {
	RemoteAddr  string
	XUID        string
	Identity    string
	DisplayName string
	Protocol    int32
}

// LoginRejectedPayload is emitted when a login handshake fails.
type LoginRejectedPayload struct {
	RemoteAddr string
	Reason     string
}

// SessionStartedPayload is emitted when a session reaches the active phase.
type SessionStartedPayload struct {
	RemoteAddr  string
	XUID        string
	DisplayName string
	Compression string
	Encrypted   bool
}

// SessionClosedPayload is emitted when a session ends.
type SessionClosedPayload struct {
	RemoteAddr  string
	XUID        string
	DisplayName string
	Duration    time.Duration
	Reason      string
}

// FrameRejectedPayload is emitted when a batch frame fails to decode.
type FrameRejectedPayload struct {
	RemoteAddr string
	PacketID   uint32
	Offset     int
	Reason     string
}

// UnknownPacketPayload is emitted when a frame carries an unregistered packet ID.
type UnknownPacketPayload struct {
	RemoteAddr string
	PacketID   uint32
}

// ConfigChangedPayload is emitted when configuration changes occur.
type ConfigChangedPayload struct {
	Section string
	Key     string
	Value   interface{}
}
