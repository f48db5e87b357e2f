package network

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"parkstep.io/internal/guard"
	"parkstep.io/internal/logging"
	"parkstep.io/internal/protocol"
	"parkstep.io/internal/sim/actions"
	"parkstep.io/internal/sim/desync"
	"parkstep.io/internal/sim/serial"
	"parkstep.io/internal/sim/snapshot"
	"parkstep.io/internal/sim/world"
)

const (
	DefaultMaxPlayers       = 16
	DefaultChecksumInterval = 100
	// tickHistoryLimit bounds the server tick records a client keeps.
	tickHistoryLimit = 100
	eventBuffer      = 4096
)

// DesyncRecorder indexes written desync reports.
type DesyncRecorder interface {
	RecordDesync(path string, res *desync.CompareResult)
}

// LineWriter receives server log lines.
type LineWriter interface {
	AppendLine(line string) error
}

type Options struct {
	Mode       protocol.Mode
	PlayerName string
	MaxPlayers int
	// ChecksumInterval is how often, in ticks, the server includes an
	// entity digest in its tick packet.
	ChecksumInterval uint32
	StayConnected    bool
	DesyncDebugging  bool
	ReportDir        string

	Desyncs   DesyncRecorder
	ServerLog LineWriter
	Errors    actions.ErrorSink
	Guard     *guard.Guard
	Log       logrus.FieldLogger
	Clock     func() time.Time
}

type Status uint8

const (
	StatusNone Status = iota
	StatusConnecting
	StatusConnected
	StatusDesynced
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusDesynced:
		return "desynced"
	case StatusClosed:
		return "closed"
	default:
		return "none"
	}
}

type tickData struct {
	srand0 uint32
	digest string
}

// peer is a server-side connection, joined once Hello succeeds.
type peer struct {
	conn   Conn
	player *Player
}

// Session is the network side of one game. Transport goroutines feed it
// through Handler; every other method runs on the tick goroutine.
type Session struct {
	opts       Options
	mode       protocol.Mode
	world      *world.World
	dispatcher *actions.Dispatcher
	snapshots  *snapshot.Engine
	guard      *guard.Guard
	log        *logrus.Entry
	now        func() time.Time

	events chan event
	status Status

	players      []*Player
	localPlayer  actions.PlayerID
	nextPlayerID actions.PlayerID

	// server
	peers []*peer

	// client
	server       Conn
	mapLoaded    bool
	mapBuf       []byte
	haveTick     bool
	serverTick   uint32
	history      map[uint32]tickData
	desyncTick   uint32
	stateBuf     []byte
	nextActionID uint32
	callbacks    map[uint32]actions.Callback
	lastReport   string
}

func NewSession(w *world.World, d *actions.Dispatcher, snaps *snapshot.Engine, opts Options) *Session {
	if opts.MaxPlayers <= 0 {
		opts.MaxPlayers = DefaultMaxPlayers
	}
	if opts.ChecksumInterval == 0 {
		opts.ChecksumInterval = DefaultChecksumInterval
	}
	if opts.PlayerName == "" {
		opts.PlayerName = "player"
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if snaps == nil {
		snaps = snapshot.NewEngine(opts.Log)
	}
	log := logging.Component(opts.Log, "network").WithField("mode", opts.Mode.String())
	g := opts.Guard
	if g == nil {
		g = &guard.Guard{Log: log}
	}
	s := &Session{
		opts:        opts,
		mode:        opts.Mode,
		world:       w,
		dispatcher:  d,
		snapshots:   snaps,
		guard:       g,
		log:         log,
		now:         opts.Clock,
		events:      make(chan event, eventBuffer),
		localPlayer: actions.PlayerUnassigned,
		history:     make(map[uint32]tickData),
		callbacks:   make(map[uint32]actions.Callback),
	}
	if s.mode == protocol.ModeServer {
		host := newPlayer(0, opts.PlayerName)
		s.players = append(s.players, host)
		s.localPlayer = host.ID
		s.nextPlayerID = 1
		s.status = StatusConnected
	}
	return s
}

func (s *Session) Mode() protocol.Mode           { return s.mode }
func (s *Session) LocalPlayer() actions.PlayerID { return s.localPlayer }
func (s *Session) Status() Status                { return s.status }
func (s *Session) Players() []*Player            { return s.players }
func (s *Session) ServerTick() uint32            { return s.serverTick }

// LastReport is the path of the most recent desync report, if any.
func (s *Session) LastReport() string { return s.lastReport }

// Ready reports whether the tick loop may run. A server is always ready;
// a client needs the map and at least one tick from the server.
func (s *Session) Ready() bool {
	if s.mode != protocol.ModeClient {
		return true
	}
	return (s.status == StatusConnected || s.status == StatusDesynced) && s.mapLoaded && s.haveTick
}

func (s *Session) PlayerIndex(id actions.PlayerID) int {
	for i, p := range s.players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (s *Session) playerByID(id actions.PlayerID) *Player {
	if i := s.PlayerIndex(id); i >= 0 {
		return s.players[i]
	}
	return nil
}

func (s *Session) RecordPlayerAction(index int, t actions.Type, cost world.Money, pos world.Coords) {
	if !s.guard.Assert(index >= 0 && index < len(s.players), "player index %d out of range (%d players)", index, len(s.players)) {
		return
	}
	s.players[index].record(t, cost, pos, s.now())
}

func (s *Session) AppendServerLog(line string) {
	if s.opts.ServerLog == nil {
		return
	}
	if err := s.opts.ServerLog.AppendLine(line); err != nil {
		s.log.WithError(err).Warn("server log write failed")
	}
}

// SendGameAction forwards a on behalf of the dispatcher: a client sends it
// to the server, a server relays it to every joined client.
func (s *Session) SendGameAction(a actions.Action) {
	switch s.mode {
	case protocol.ModeClient:
		s.clientSendGameAction(a)
	case protocol.ModeServer:
		s.serverRelayGameAction(a)
	}
}

// Connected, Received and Disconnected implement Handler.
func (s *Session) Connected(c Conn) { s.events <- event{kind: eventConnected, conn: c} }

func (s *Session) Received(c Conn, p *protocol.Packet) {
	s.events <- event{kind: eventPacket, conn: c, pkt: p}
}

func (s *Session) Disconnected(c Conn) { s.events <- event{kind: eventDisconnected, conn: c} }

// Update handles every transport event queued since the last tick.
func (s *Session) Update() {
	for {
		select {
		case ev := <-s.events:
			s.handle(ev)
		default:
			return
		}
	}
}

func (s *Session) handle(ev event) {
	switch s.mode {
	case protocol.ModeServer:
		switch ev.kind {
		case eventConnected:
			s.serverAccept(ev.conn)
		case eventPacket:
			s.serverPacket(ev.conn, ev.pkt)
		case eventDisconnected:
			s.serverDrop(ev.conn, "connection closed")
		}
	case protocol.ModeClient:
		switch ev.kind {
		case eventPacket:
			if ev.conn == s.server {
				s.clientPacket(ev.pkt)
			}
		case eventDisconnected:
			if ev.conn == s.server {
				s.clientLost("connection closed")
			}
		}
	}
}

// SendTick broadcasts the current tick and srand0. Every ChecksumInterval
// ticks it also carries the entity digest.
func (s *Session) SendTick() {
	if s.mode != protocol.ModeServer {
		return
	}
	tick := s.world.Tick()
	srand0 := s.world.SRand0()
	var flags uint32
	var digest string
	if tick%s.opts.ChecksumInterval == 0 {
		d, err := s.entityDigest(tick)
		if err != nil {
			s.log.WithError(err).Error("tick digest")
		} else {
			flags |= protocol.TickFlagChecksums
			digest = d
		}
	}
	pkt, w := protocol.NewPacket(protocol.CmdTick)
	w.U32("tick", &tick)
	w.U32("srand0", &srand0)
	w.U32("flags", &flags)
	if flags&protocol.TickFlagChecksums != 0 {
		w.String("digest", &digest)
	}
	if err := pkt.SetPayload(w); err != nil {
		s.log.WithError(err).Error("build tick packet")
		return
	}
	s.broadcast(pkt)
}

// entityDigest prefers the snapshot linked to tick and captures a
// throwaway one otherwise.
func (s *Session) entityDigest(tick uint32) (string, error) {
	if snap := s.snapshots.GetLinkedSnapshot(tick); snap != nil {
		return snapshot.Digest(snap), nil
	}
	var snap snapshot.Snapshot
	if err := s.snapshots.Capture(&snap, s.world); err != nil {
		return "", eris.Wrapf(err, "digest tick %d", tick)
	}
	return snapshot.Digest(&snap), nil
}

// Close ends the session. A server tells every client it is shutting down.
func (s *Session) Close() error {
	if s.status == StatusClosed {
		return nil
	}
	switch s.mode {
	case protocol.ModeServer:
		for _, p := range s.peers {
			s.sendDisconnect(p.conn, protocol.ErrServerShutdown)
			_ = p.conn.Close()
		}
		s.peers = nil
		s.players = s.players[:1]
	case protocol.ModeClient:
		if s.server != nil {
			_ = s.server.Close()
			s.server = nil
		}
	}
	s.status = StatusClosed
	return nil
}

func (s *Session) send(c Conn, pkt *protocol.Packet) {
	if c == nil {
		return
	}
	if err := c.Send(pkt); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"peer": c.RemoteAddr(), "cmd": pkt.Command.String()}).Warn("send failed")
	}
}

func (s *Session) sendDisconnect(c Conn, reason string) {
	pkt, w := protocol.NewPacket(protocol.CmdDisconnect)
	w.String("reason", &reason)
	if err := pkt.SetPayload(w); err == nil {
		s.send(c, pkt)
	}
}

func (s *Session) sendShowError(c Conn, code, title, message string) {
	pkt, w := protocol.NewPacket(protocol.CmdShowError)
	w.String("code", &code)
	w.String("title", &title)
	w.String("message", &message)
	if err := pkt.SetPayload(w); err == nil {
		s.send(c, pkt)
	}
}

// chunks splits b into pieces that fit one packet.
func chunks(b []byte) [][]byte {
	if len(b) == 0 {
		return [][]byte{nil}
	}
	var out [][]byte
	for off := 0; off < len(b); off += protocol.ChunkSize {
		end := off + protocol.ChunkSize
		if end > len(b) {
			end = len(b)
		}
		out = append(out, b[off:end])
	}
	return out
}

// chunkHeader is the prefix of MAP and GAMESTATE fragments.
type chunkHeader struct {
	Tick   uint32
	Total  uint32
	Offset uint32
	Data   []byte
}

func (h *chunkHeader) serialise(s *serial.Serialiser) {
	s.U32("tick", &h.Tick)
	s.U32("total", &h.Total)
	s.U32("offset", &h.Offset)
	s.Bytes32("data", &h.Data)
}

// sendChunked writes b as a series of cmd packets to c.
func (s *Session) sendChunked(c Conn, cmd protocol.Command, tick uint32, b []byte) {
	if len(b) > protocol.MaxTransferSize {
		s.log.WithFields(logrus.Fields{"cmd": cmd.String(), "bytes": len(b)}).Error("transfer too large")
		return
	}
	var off uint32
	for _, part := range chunks(b) {
		h := chunkHeader{Tick: tick, Total: uint32(len(b)), Offset: off, Data: part}
		pkt, w := protocol.NewPacket(cmd)
		h.serialise(w)
		if err := pkt.SetPayload(w); err != nil {
			s.log.WithError(err).WithField("cmd", cmd.String()).Error("build chunk")
			return
		}
		s.send(c, pkt)
		off += uint32(len(part))
	}
}

// assemble appends one fragment to buf. It returns the buffer and whether
// it is complete.
func assemble(buf []byte, h chunkHeader) ([]byte, bool, error) {
	if h.Total > protocol.MaxTransferSize {
		return nil, false, eris.Errorf("transfer of %d bytes exceeds %d", h.Total, protocol.MaxTransferSize)
	}
	if h.Offset == 0 {
		buf = make([]byte, 0, min(h.Total, 16*protocol.ChunkSize))
	}
	if uint32(len(buf)) != h.Offset {
		return nil, false, eris.Errorf("chunk offset %d, have %d bytes", h.Offset, len(buf))
	}
	if uint64(h.Offset)+uint64(len(h.Data)) > uint64(h.Total) {
		return nil, false, eris.Errorf("chunk overruns total %d", h.Total)
	}
	buf = append(buf, h.Data...)
	return buf, uint32(len(buf)) == h.Total, nil
}
