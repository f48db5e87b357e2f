package protocol

// Version is exchanged in Hello; peers with a different version are refused.
const Version = "0.3"

// Mode is the role of the local session.
type Mode uint8

const (
	ModeNone Mode = iota
	ModeClient
	ModeServer
)

func (m Mode) String() string {
	switch m {
	case ModeClient:
		return "client"
	case ModeServer:
		return "server"
	default:
		return "none"
	}
}

// Realm is the short tag used in action log lines.
func (m Mode) Realm() string {
	switch m {
	case ModeClient:
		return "cl"
	case ModeServer:
		return "sv"
	default:
		return "sp"
	}
}

func ParseMode(s string) (Mode, bool) {
	switch s {
	case "", "none", "single":
		return ModeNone, true
	case "client":
		return ModeClient, true
	case "server":
		return ModeServer, true
	}
	return ModeNone, false
}

// Command identifies a packet payload.
type Command uint32

const (
	CmdInvalid Command = iota
	CmdHello
	CmdWelcome
	CmdMap
	CmdGameAction
	CmdTick
	CmdRequestGameState
	CmdGameState
	CmdShowError
	CmdDisconnect
	CmdPlayerList
)

var commandNames = map[Command]string{
	CmdHello:            "HELLO",
	CmdWelcome:          "WELCOME",
	CmdMap:              "MAP",
	CmdGameAction:       "GAME_ACTION",
	CmdTick:             "TICK",
	CmdRequestGameState: "REQUEST_GAMESTATE",
	CmdGameState:        "GAMESTATE",
	CmdShowError:        "SHOW_ERROR",
	CmdDisconnect:       "DISCONNECT",
	CmdPlayerList:       "PLAYERLIST",
}

func (c Command) String() string {
	if n, ok := commandNames[c]; ok {
		return n
	}
	return "INVALID"
}

// Tick packet flags.
const (
	TickFlagChecksums uint32 = 1 << 0
)

// ChunkSize bounds one GAMESTATE/MAP fragment so a packet never exceeds MaxPayload.
const ChunkSize = 1024 * 63

// MaxTransferSize bounds a reassembled MAP or GAMESTATE transfer.
const MaxTransferSize = 64 << 20
