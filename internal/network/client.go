package network

import (
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"

	"parkstep.io/internal/protocol"
	"parkstep.io/internal/sim/actions"
	"parkstep.io/internal/sim/desync"
	"parkstep.io/internal/sim/serial"
	"parkstep.io/internal/sim/snapshot"
)

// Connect starts the join handshake over c. The action queue stays
// suspended until the server's map has been loaded.
func (s *Session) Connect(c Conn) {
	if s.mode != protocol.ModeClient {
		return
	}
	s.server = c
	s.status = StatusConnecting
	s.mapLoaded = false
	s.haveTick = false
	s.dispatcher.SuspendQueue()

	pkt, w := protocol.NewPacket(protocol.CmdHello)
	version := protocol.Version
	w.String("version", &version)
	w.String("name", &s.opts.PlayerName)
	if err := pkt.SetPayload(w); err != nil {
		s.log.WithError(err).Error("build hello")
		return
	}
	s.send(c, pkt)
	s.log.WithField("server", c.RemoteAddr()).Info("connecting")
}

func (s *Session) clientPacket(pkt *protocol.Packet) {
	switch pkt.Command {
	case protocol.CmdWelcome:
		s.clientWelcome(pkt)
	case protocol.CmdMap:
		s.clientMap(pkt)
	case protocol.CmdPlayerList:
		s.clientPlayerList(pkt)
	case protocol.CmdGameAction:
		s.clientGameAction(pkt)
	case protocol.CmdTick:
		s.clientTick(pkt)
	case protocol.CmdGameState:
		s.clientGameState(pkt)
	case protocol.CmdShowError:
		s.clientShowError(pkt)
	case protocol.CmdDisconnect:
		r := pkt.Reader()
		var reason string
		r.String("reason", &reason)
		s.clientLost("server: " + reason)
	default:
		s.log.WithField("cmd", pkt.Command.String()).Debug("ignored packet")
	}
}

func (s *Session) clientWelcome(pkt *protocol.Packet) {
	r := pkt.Reader()
	var id int32
	var name string
	r.I32("playerId", &id)
	r.String("name", &name)
	if r.Err() != nil {
		s.log.WithError(r.Err()).Error("bad welcome")
		return
	}
	s.localPlayer = actions.PlayerID(id)
	if s.PlayerIndex(s.localPlayer) < 0 {
		s.players = append(s.players, newPlayer(s.localPlayer, name))
	}
	s.status = StatusConnected
	s.log.WithField("player", id).Info("welcomed")
}

func (s *Session) clientMap(pkt *protocol.Packet) {
	var h chunkHeader
	r := pkt.Reader()
	h.serialise(r)
	if r.Err() != nil {
		s.log.WithError(r.Err()).Error("bad map chunk")
		return
	}
	buf, done, err := assemble(s.mapBuf, h)
	if err != nil {
		s.log.WithError(err).Error("map chunk")
		s.mapBuf = nil
		return
	}
	s.mapBuf = buf
	if !done {
		return
	}
	s.mapBuf = nil

	l := serial.NewLoader(buf)
	s.world.Serialise(l)
	if err := l.Err(); err != nil {
		s.log.WithError(err).Error("load map")
		s.disconnect(protocol.ErrBadRequest)
		return
	}
	s.mapLoaded = true
	s.serverTick = s.world.Tick()
	s.history = make(map[uint32]tickData)
	s.dispatcher.ResumeQueue()
	s.log.WithFields(logrus.Fields{"tick": s.world.Tick(), "bytes": len(buf)}).Info("map loaded")
}

func (s *Session) clientPlayerList(pkt *protocol.Packet) {
	r := pkt.Reader()
	var n uint16
	r.U16("count", &n)
	next := make([]*Player, 0, n)
	for i := 0; i < int(n) && r.Err() == nil; i++ {
		var id int32
		var name string
		r.I32("id", &id)
		r.String("name", &name)
		p := s.playerByID(actions.PlayerID(id))
		if p == nil {
			p = newPlayer(actions.PlayerID(id), name)
		}
		p.Name = name
		next = append(next, p)
	}
	if r.Err() != nil {
		s.log.WithError(r.Err()).Error("bad player list")
		return
	}
	s.players = next
}

func (s *Session) clientSendGameAction(a actions.Action) {
	b := a.ActionBase()
	b.NetworkID = s.nextActionID
	s.nextActionID++
	if b.Callback != nil {
		s.callbacks[b.NetworkID] = b.Callback
	}
	pkt, err := gameActionPacket(s.world.Tick(), a)
	if err != nil {
		s.log.WithError(err).WithField("type", a.Type().String()).Error("send game action")
		return
	}
	s.send(s.server, pkt)
}

// clientGameAction queues an action the server executed. Actions that
// started here get their callback back.
func (s *Session) clientGameAction(pkt *protocol.Packet) {
	r := pkt.Reader()
	var tick, rawType uint32
	var data []byte
	r.U32("tick", &tick)
	r.U32("type", &rawType)
	r.Bytes32("data", &data)
	if r.Err() != nil {
		s.log.WithError(r.Err()).Error("bad game action packet")
		return
	}
	a, err := actions.Decode(actions.Type(rawType), serial.NewLoader(data))
	if err != nil {
		s.log.WithError(err).Error("undecodable game action from server")
		return
	}
	b := a.ActionBase()
	if b.Player == s.localPlayer {
		if cb, ok := s.callbacks[b.NetworkID]; ok {
			b.Callback = cb
			delete(s.callbacks, b.NetworkID)
		}
	}
	if err := s.dispatcher.Enqueue(a, tick); err != nil {
		s.log.WithError(err).Error("enqueue server action")
	}
}

func (s *Session) clientTick(pkt *protocol.Packet) {
	r := pkt.Reader()
	var tick, srand0, flags uint32
	var digest string
	r.U32("tick", &tick)
	r.U32("srand0", &srand0)
	r.U32("flags", &flags)
	if flags&protocol.TickFlagChecksums != 0 {
		r.String("digest", &digest)
	}
	if r.Err() != nil {
		s.log.WithError(r.Err()).Error("bad tick packet")
		return
	}
	s.serverTick = tick
	s.haveTick = true
	s.history[tick] = tickData{srand0: srand0, digest: digest}
	for len(s.history) > tickHistoryLimit {
		oldest := tick
		for t := range s.history {
			if t < oldest {
				oldest = t
			}
		}
		delete(s.history, oldest)
	}
}

// CheckDesync compares the current tick against what the server reported
// for it. The first mismatch marks the session desynced.
func (s *Session) CheckDesync() bool {
	if s.mode != protocol.ModeClient || s.status != StatusConnected || !s.mapLoaded {
		return false
	}
	tick := s.world.Tick()
	td, ok := s.history[tick]
	if !ok {
		return false
	}
	delete(s.history, tick)

	log := s.log.WithField("tick", tick)
	if td.srand0 != s.world.SRand0() {
		log.Infof("srand0 mismatch, client = %08X, server = %08X", s.world.SRand0(), td.srand0)
	} else if td.digest != "" {
		local, err := s.entityDigest(tick)
		if err != nil {
			log.WithError(err).Error("local digest")
			return false
		}
		if local == td.digest {
			return false
		}
		log.Infof("entity digest mismatch, client = %s, server = %s", local, td.digest)
	} else {
		return false
	}

	s.status = StatusDesynced
	s.desyncTick = tick
	log.Warn("out of sync with server")
	s.AppendServerLog("Network desync detected at tick " + strconv.FormatUint(uint64(tick), 10))
	if s.opts.DesyncDebugging {
		s.requestGameState(tick)
	} else if !s.opts.StayConnected {
		s.disconnect(protocol.ErrDesynchronised)
	}
	return true
}

func (s *Session) requestGameState(tick uint32) {
	pkt, w := protocol.NewPacket(protocol.CmdRequestGameState)
	w.U32("tick", &tick)
	if err := pkt.SetPayload(w); err != nil {
		return
	}
	s.stateBuf = nil
	s.send(s.server, pkt)
	s.log.WithField("tick", tick).Info("requested game state")
}

// clientGameState reassembles the server's snapshot, diffs it against the
// local one and writes the report.
func (s *Session) clientGameState(pkt *protocol.Packet) {
	var h chunkHeader
	r := pkt.Reader()
	h.serialise(r)
	if r.Err() != nil {
		s.log.WithError(r.Err()).Error("bad game state chunk")
		return
	}
	log := s.log.WithField("tick", h.Tick)
	if h.Total == 0 {
		log.Warn("server has no snapshot for the desync tick")
		s.afterDesyncReport()
		return
	}
	buf, done, err := assemble(s.stateBuf, h)
	if err != nil {
		log.WithError(err).Error("game state chunk")
		s.stateBuf = nil
		return
	}
	s.stateBuf = buf
	if !done {
		return
	}
	s.stateBuf = nil

	var server snapshot.Snapshot
	l := serial.NewLoader(buf)
	snapshot.Serialise(&server, l)
	if err := l.Err(); err != nil {
		log.WithError(err).Error("decode server snapshot")
		s.afterDesyncReport()
		return
	}
	local := s.snapshots.GetLinkedSnapshot(h.Tick)
	if local == nil {
		log.Error("no local snapshot for the desync tick")
		s.afterDesyncReport()
		return
	}
	res, err := desync.Compare(&server, local)
	if err != nil {
		log.WithError(err).Error("compare snapshots")
		s.afterDesyncReport()
		return
	}
	path := filepath.Join(s.opts.ReportDir, desync.ReportFileName(s.now(), h.Tick))
	if desync.LogCompareDataToFile(path, res) {
		s.lastReport = path
		if s.opts.Desyncs != nil {
			s.opts.Desyncs.RecordDesync(path, res)
		}
		log.WithFields(logrus.Fields{"path": path, "changes": len(res.Changes)}).Info("wrote desync report")
	} else {
		log.WithField("path", path).Error("could not write desync report")
	}
	s.afterDesyncReport()
}

func (s *Session) afterDesyncReport() {
	if !s.opts.StayConnected {
		s.disconnect(protocol.ErrDesynchronised)
	}
}

func (s *Session) clientShowError(pkt *protocol.Packet) {
	r := pkt.Reader()
	var code, title, message string
	r.String("code", &code)
	r.String("title", &title)
	r.String("message", &message)
	if r.Err() != nil || !protocol.IsKnownCode(code) {
		s.log.WithField("code", code).Warn("bad show error packet")
		return
	}
	s.log.WithFields(logrus.Fields{"code": code, "message": message}).Info("server error")
	if s.opts.Errors != nil {
		s.opts.Errors.ShowError(title, message)
	}
}

// disconnect leaves the server on our own initiative.
func (s *Session) disconnect(reason string) {
	if s.server != nil {
		s.sendDisconnect(s.server, reason)
	}
	s.clientLost(reason)
}

// clientLost resets the session after the link to the server ends. Queued
// actions are dropped and the game continues offline.
func (s *Session) clientLost(reason string) {
	if s.status == StatusClosed {
		return
	}
	s.log.WithField("reason", reason).Warn("disconnected from server")
	if s.server != nil {
		_ = s.server.Close()
		s.server = nil
	}
	s.dispatcher.ClearQueue()
	s.dispatcher.ResumeQueue()
	s.callbacks = make(map[uint32]actions.Callback)
	s.mapLoaded = false
	s.haveTick = false
	s.mapBuf = nil
	s.stateBuf = nil
	s.status = StatusClosed
	s.mode = protocol.ModeNone
}
