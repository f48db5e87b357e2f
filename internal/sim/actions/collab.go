package actions

import (
	"parkstep.io/internal/protocol"
	"parkstep.io/internal/sim/world"
)

// Session is the network side of the dispatcher.
type Session interface {
	Mode() protocol.Mode
	LocalPlayer() PlayerID
	// SendGameAction forwards a client action to the server, or relays an
	// executed action to every client when running as server.
	SendGameAction(a Action)
	// PlayerIndex returns -1 when id is not connected.
	PlayerIndex(id PlayerID) int
	RecordPlayerAction(index int, t Type, cost world.Money, pos world.Coords)
}

type ReplayManager interface {
	IsRecording() bool
	IsPlayingBack() bool
	IsNormalising() bool
	AddGameAction(tick uint32, a Action)
}

// Hooks observe top-level execution and may rewrite the result.
type Hooks interface {
	BeforeExecute(a Action, r *Result)
	AfterExecute(a Action, r *Result)
}

type ErrorSink interface {
	ShowError(title, message string)
}

// LogEntry is one line of the action log in structured form.
type LogEntry struct {
	Realm  string
	Tick   uint32
	Type   Type
	Name   string
	Params string
	Status Status
	Line   string
}

// Journal receives every logged action. The plain-text server log is one
// of them, in every session mode.
type Journal interface {
	AppendAction(e LogEntry)
}
