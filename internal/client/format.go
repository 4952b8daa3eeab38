package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

// ErrBadPayload marks a server payload that could not be rendered. The
// connection is still usable.
var ErrBadPayload = errors.New("bad server payload")

type serverPayload struct {
	CommandType string    `json:"commandType"`
	Message     *string   `json:"message"`
	Users       *[]string `json:"users"`
}

// FormatPayload renders one server payload as a line of text.
func FormatPayload(payload []byte) (string, error) {
	var p serverPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return "", fmt.Errorf("%w: %w", ErrBadPayload, err)
	}

	switch {
	case p.CommandType == protocol.TypeGetUsers && p.Users != nil:
		if len(*p.Users) == 0 {
			return "users: (none)", nil
		}
		return "users: " + strings.Join(*p.Users, ", "), nil
	case p.CommandType == protocol.TypeSendMessage && p.Message != nil:
		return *p.Message, nil
	default:
		return "", fmt.Errorf("%w: commandType %q: %w", ErrBadPayload, p.CommandType, protocol.ErrUnknownCommand)
	}
}
