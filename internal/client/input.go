// Package client implements the terminal side of the chat protocol: turning
// typed lines into commands, rendering server payloads and holding the
// connection to the server.
package client

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

// ErrUsage is returned for a slash command with bad arguments.
var ErrUsage = errors.New("usage")

// ErrUnknownSlashCommand is returned for a slash command the client does not know.
var ErrUnknownSlashCommand = errors.New("unknown command")

// HelpText lists the slash commands.
const HelpText = `/switch <room>   move to another room
/users [room]    list members of a room (default: current room)
/help            show this help
/quit            leave the chat
//text           send text starting with "/"`

// Input is one parsed line. At most one of its fields is set; a zero Input
// means there is nothing to do.
type Input struct {
	Command protocol.Command
	Help    bool
	Quit    bool
}

// ParseInput interprets a typed line. currentRoom is the default for /users.
func ParseInput(line, currentRoom string) (Input, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Input{}, nil
	}

	if !strings.HasPrefix(line, "/") {
		return Input{Command: protocol.NewSendMessage(line)}, nil
	}
	if strings.HasPrefix(line, "//") {
		return Input{Command: protocol.NewSendMessage(line[1:])}, nil
	}

	fields := strings.Fields(line)
	name, args := fields[0], fields[1:]

	switch name {
	case "/quit", "/exit":
		return Input{Quit: true}, nil

	case "/help":
		return Input{Help: true}, nil

	case "/switch":
		if len(args) != 1 {
			return Input{}, fmt.Errorf("%w: /switch <room>", ErrUsage)
		}
		return Input{Command: protocol.SwitchRoom{Type: protocol.TypeSwitchRoom, Room: args[0]}}, nil

	case "/users":
		room := currentRoom
		switch len(args) {
		case 0:
		case 1:
			room = args[0]
		default:
			return Input{}, fmt.Errorf("%w: /users [room]", ErrUsage)
		}
		return Input{Command: protocol.GetUsers{Type: protocol.TypeGetUsers, Room: room}}, nil

	default:
		return Input{}, fmt.Errorf("%w: %s", ErrUnknownSlashCommand, name)
	}
}
