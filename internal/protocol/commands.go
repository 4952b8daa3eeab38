// Package protocol defines the newline-delimited JSON commands exchanged
// between chat clients and the server, and the codec that frames them on a
// byte stream.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Command type discriminators carried in the commandType field.
const (
	TypeSendMessage = "SendMessage"
	TypeGetUsers    = "GetUsers"
	TypeSwitchRoom  = "SwitchRoom"
)

var (
	// ErrUnknownCommand is returned when commandType is missing or not recognized.
	ErrUnknownCommand = errors.New("protocol: unknown command type")
	// ErrMissingField is returned when a required field is absent or empty.
	ErrMissingField = errors.New("protocol: missing required field")
	// ErrNotJoin is returned by DecodeJoin for a payload that carries a commandType.
	ErrNotJoin = errors.New("protocol: payload is not a join")
)

// Command is one decoded client request. The concrete type is one of Join,
// SendMessage, GetUsers or SwitchRoom.
type Command interface {
	CommandType() string
}

// Join binds an unassigned connection to a name and a room. It is the only
// command sent without a commandType tag.
type Join struct {
	Name string `json:"name"`
	Room string `json:"room"`
}

// SendMessage carries chat text. Inbound it holds the raw text; outbound the
// server rewrites it as "{name}: {text}".
type SendMessage struct {
	Type    string `json:"commandType"`
	Message string `json:"message"`
}

// GetUsers asks for the member list of Room.
type GetUsers struct {
	Type string `json:"commandType"`
	Room string `json:"room"`
}

// SwitchRoom moves the sender into Room.
type SwitchRoom struct {
	Type string `json:"commandType"`
	Room string `json:"room"`
}

// UsersList answers GetUsers. It shares the GetUsers discriminator.
type UsersList struct {
	Type  string   `json:"commandType"`
	Users []string `json:"users"`
}

// CommandType implements Command. Join has no wire tag.
func (Join) CommandType() string { return "" }

// CommandType implements Command.
func (SendMessage) CommandType() string { return TypeSendMessage }

// CommandType implements Command.
func (GetUsers) CommandType() string { return TypeGetUsers }

// CommandType implements Command.
func (SwitchRoom) CommandType() string { return TypeSwitchRoom }

// NewSendMessage builds an outbound SendMessage with its tag set.
func NewSendMessage(message string) SendMessage {
	return SendMessage{Type: TypeSendMessage, Message: message}
}

// NewUsersList builds a GetUsers response. A nil slice is sent as [].
func NewUsersList(users []string) UsersList {
	if users == nil {
		users = []string{}
	}
	return UsersList{Type: TypeGetUsers, Users: users}
}

// envelope holds every field any inbound command may carry. Pointers tell a
// missing field apart from an empty one.
type envelope struct {
	CommandType *string `json:"commandType"`
	Name        *string `json:"name"`
	Room        *string `json:"room"`
	Message     *string `json:"message"`
}

// DecodeJoin parses the handshake payload of an unassigned connection. A join
// is untagged and needs a non-empty name and room.
func DecodeJoin(payload []byte) (Join, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Join{}, fmt.Errorf("decode join: %w", err)
	}
	if env.CommandType != nil {
		return Join{}, fmt.Errorf("decode join: commandType %q: %w", *env.CommandType, ErrNotJoin)
	}
	if env.Name == nil || *env.Name == "" {
		return Join{}, fmt.Errorf("decode join: name: %w", ErrMissingField)
	}
	if env.Room == nil || *env.Room == "" {
		return Join{}, fmt.Errorf("decode join: room: %w", ErrMissingField)
	}
	return Join{Name: *env.Name, Room: *env.Room}, nil
}

// Decode parses a payload from an assigned connection into a typed command.
func Decode(payload []byte) (Command, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decode command: %w", err)
	}
	if env.CommandType == nil {
		return nil, fmt.Errorf("decode command: %w", ErrUnknownCommand)
	}

	switch *env.CommandType {
	case TypeSendMessage:
		if env.Message == nil {
			return nil, fmt.Errorf("decode %s: message: %w", TypeSendMessage, ErrMissingField)
		}
		return SendMessage{Type: TypeSendMessage, Message: *env.Message}, nil
	case TypeGetUsers:
		if env.Room == nil {
			return nil, fmt.Errorf("decode %s: room: %w", TypeGetUsers, ErrMissingField)
		}
		return GetUsers{Type: TypeGetUsers, Room: *env.Room}, nil
	case TypeSwitchRoom:
		if env.Room == nil || *env.Room == "" {
			return nil, fmt.Errorf("decode %s: room: %w", TypeSwitchRoom, ErrMissingField)
		}
		return SwitchRoom{Type: TypeSwitchRoom, Room: *env.Room}, nil
	default:
		return nil, fmt.Errorf("decode command %q: %w", *env.CommandType, ErrUnknownCommand)
	}
}

// Marshal encodes v as a single JSON document without a trailing newline.
func Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	return b, nil
}
