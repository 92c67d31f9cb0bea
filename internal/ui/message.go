package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/signx/internal/workflow"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgStarted MsgKind = iota
	MsgChanged
	MsgSubmitted
	MsgDownloaded
	MsgOpened
)

// startedMsg is the constructor for [MsgStarted]
func startedMsg(err error) Msg {
	return Msg{kind: MsgStarted, data: err}
}

// changedMsg is the constructor for [MsgChanged]
func changedMsg(snap workflow.Snapshot) Msg {
	return Msg{kind: MsgChanged, data: snap}
}

// submittedMsg is the constructor for [MsgSubmitted]
func submittedMsg(err error) Msg {
	return Msg{kind: MsgSubmitted, data: err}
}

// downloadedMsg is the constructor for [MsgDownloaded]
func downloadedMsg(path string, err error) Msg {
	return Msg{
		kind: MsgDownloaded,
		data: struct {
			path string
			err  error
		}{path, err},
	}
}

// openedMsg is the constructor for [MsgOpened]
func openedMsg(err error) Msg {
	return Msg{kind: MsgOpened, data: err}
}

// errOf extracts the error carried by a message whose payload is a bare error.
func errOf(msg Msg) error {
	if err, ok := msg.data.(error); ok {
		return err
	}
	return nil
}
