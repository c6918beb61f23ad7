// Package protocol defines the frames exchanged over the sync socket.
//
// Every frame is a JSON text message {"name": ..., "args": [...]}. Server
// control frames (ready, conn-error) carry a single object argument; relayed
// application frames carry whatever the sender put in args, optionally with
// the sender's member descriptor prepended.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/WatchParty/internal/domain"
)

const (
	NameReady     = "ready"
	NameConnError = "conn-error"
	NameUserJoin  = "EVNT_USER_JOIN"
	NameUserLeave = "EVNT_USER_LEAVE"
)

var ErrBadFrame = errors.New("bad frame")

// Message is one decoded frame.
type Message struct {
	Name string            `json:"name"`
	Args []json.RawMessage `json:"args"`
}

// Ready acknowledges admission.
type Ready struct {
	Room domain.RoomID `json:"room"`
	Host bool          `json:"host"`
}

type ErrorType string

const (
	ErrInvalidRoom    ErrorType = "invalid_room"
	ErrInvalidAuth    ErrorType = "invalid_auth"
	ErrHostDisconnect ErrorType = "host_disconnect"
	ErrTimeout        ErrorType = "timeout"
	ErrInternal       ErrorType = "internal_error"
)

// ConnError is the payload of conn-error.
type ConnError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
}

// Decode parses a frame. A frame without a name is rejected.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	if m.Name == "" {
		return Message{}, fmt.Errorf("%w: missing name", ErrBadFrame)
	}
	return m, nil
}

// Encode marshals name and args into a frame.
func Encode(name string, args ...any) ([]byte, error) {
	raw := make([]json.RawMessage, 0, len(args))
	for _, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("encode %s arg: %w", name, err)
		}
		raw = append(raw, b)
	}
	return EncodeRaw(name, raw)
}

// EncodeRaw marshals a frame whose args are already JSON.
func EncodeRaw(name string, args []json.RawMessage) ([]byte, error) {
	if args == nil {
		args = []json.RawMessage{}
	}
	return json.Marshal(Message{Name: name, Args: args})
}

// Prepend returns args with first marshalled in front. args is not modified.
func Prepend(first any, args []json.RawMessage) ([]json.RawMessage, error) {
	b, err := json.Marshal(first)
	if err != nil {
		return nil, err
	}
	out := make([]json.RawMessage, 0, len(args)+1)
	out = append(out, b)
	return append(out, args...), nil
}
