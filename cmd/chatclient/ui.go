package main

import (
	"errors"
	"fmt"

	"github.com/jroimartin/gocui"

	"github.com/Tyrowin/roomchat/internal/client"
	"github.com/Tyrowin/roomchat/internal/protocol"
)

const (
	messagesView = "messages"
	statusView   = "status"
	inputView    = "input"
	helpView     = "help"
)

// ChatUI is a three pane terminal UI: messages, a status line and the input box.
type ChatUI struct {
	gui      *gocui.Gui
	session  *client.Session
	addr     string
	showHelp bool
}

func NewChatUI(session *client.Session, addr string) (*ChatUI, error) {
	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		return nil, err
	}

	ui := &ChatUI{
		gui:     g,
		session: session,
		addr:    addr,
	}
	g.Cursor = true
	g.SetManagerFunc(ui.layout)
	return ui, nil
}

func (ui *ChatUI) layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()
	msgHeight := maxY - 6

	if v, err := g.SetView(messagesView, 0, 0, maxX-1, msgHeight); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Messages"
		v.Wrap = true
		v.Autoscroll = true
		fmt.Fprintf(v, "joined %s as %s (/help for commands)\n", ui.session.Room(), ui.session.Name())
	}

	if v, err := g.SetView(statusView, 0, msgHeight+1, maxX-1, msgHeight+3); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Status"
	}
	ui.renderStatus(g)

	if v, err := g.SetView(inputView, 0, msgHeight+3, maxX-1, maxY-1); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Input"
		v.Editable = true
		v.Wrap = true
		if _, err := g.SetCurrentView(inputView); err != nil {
			return err
		}
	}

	if !ui.showHelp {
		if err := g.DeleteView(helpView); err != nil && err != gocui.ErrUnknownView {
			return err
		}
		return nil
	}

	if v, err := g.SetView(helpView, maxX/6, maxY/6, maxX*5/6, maxY/6+8); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Help (F1 to close)"
		fmt.Fprintln(v, client.HelpText)
	}
	return nil
}

func (ui *ChatUI) renderStatus(g *gocui.Gui) {
	v, err := g.View(statusView)
	if err != nil {
		return
	}
	v.Clear()
	fmt.Fprintf(v, "%s | %s in %s | F1: help | Ctrl-C: quit", ui.addr, ui.session.Name(), ui.session.Room())
}

// appendLine adds text to the message pane from any goroutine.
func (ui *ChatUI) appendLine(text string) {
	ui.gui.Update(func(g *gocui.Gui) error {
		v, err := g.View(messagesView)
		if err != nil {
			return err
		}
		fmt.Fprintln(v, text)
		return nil
	})
}

func (ui *ChatUI) keybindings() error {
	if err := ui.gui.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone,
		func(_ *gocui.Gui, _ *gocui.View) error {
			return gocui.ErrQuit
		}); err != nil {
		return err
	}

	if err := ui.gui.SetKeybinding("", gocui.KeyF1, gocui.ModNone,
		func(_ *gocui.Gui, _ *gocui.View) error {
			ui.showHelp = !ui.showHelp
			return nil
		}); err != nil {
		return err
	}

	return ui.gui.SetKeybinding(inputView, gocui.KeyEnter, gocui.ModNone, ui.handleInput)
}

func (ui *ChatUI) handleInput(_ *gocui.Gui, v *gocui.View) error {
	line := v.Buffer()
	v.Clear()
	_ = v.SetCursor(0, 0)

	in, err := client.ParseInput(line, ui.session.Room())
	if err != nil {
		ui.appendLine(err.Error())
		return nil
	}

	switch {
	case in.Quit:
		return gocui.ErrQuit
	case in.Help:
		ui.showHelp = true
		return nil
	case in.Command == nil:
		return nil
	}

	if err := ui.session.Send(in.Command); err != nil {
		ui.appendLine(fmt.Sprintf("send failed: %v", err))
	}
	return nil
}

// receive copies server payloads into the message pane until the connection drops.
func (ui *ChatUI) receive() {
	for {
		text, err := ui.session.Receive()
		if err != nil {
			if errors.Is(err, client.ErrBadPayload) || errors.Is(err, protocol.ErrPayloadTooLarge) {
				ui.appendLine(fmt.Sprintf("skipped payload: %v", err))
				continue
			}
			ui.appendLine(fmt.Sprintf("disconnected: %v (Ctrl-C to exit)", err))
			return
		}
		ui.appendLine(text)
	}
}

func (ui *ChatUI) Run() error {
	if err := ui.keybindings(); err != nil {
		return err
	}

	go ui.receive()

	if err := ui.gui.MainLoop(); err != nil && err != gocui.ErrQuit {
		return err
	}
	return nil
}

func (ui *ChatUI) Close() {
	ui.gui.Close()
}
