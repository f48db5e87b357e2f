package network

import (
	"github.com/sirupsen/logrus"

	"parkstep.io/internal/protocol"
	"parkstep.io/internal/sim/actions"
	"parkstep.io/internal/sim/serial"
	"parkstep.io/internal/sim/snapshot"
)

func (s *Session) findPeer(c Conn) *peer {
	for _, p := range s.peers {
		if p.conn == c {
			return p
		}
	}
	return nil
}

func (s *Session) serverAccept(c Conn) {
	if s.findPeer(c) != nil {
		return
	}
	s.peers = append(s.peers, &peer{conn: c})
	s.log.WithField("peer", c.RemoteAddr()).Info("connection accepted")
}

// serverDrop forgets c and its player.
func (s *Session) serverDrop(c Conn, reason string) {
	for i, p := range s.peers {
		if p.conn != c {
			continue
		}
		s.peers = append(s.peers[:i], s.peers[i+1:]...)
		_ = c.Close()
		if p.player != nil {
			if idx := s.PlayerIndex(p.player.ID); idx >= 0 {
				s.players = append(s.players[:idx], s.players[idx+1:]...)
			}
			s.log.WithFields(logrus.Fields{"player": p.player.ID, "reason": reason}).Info("player left")
			s.AppendServerLog(p.player.Name + " has disconnected (" + reason + ")")
			s.broadcastPlayerList()
		}
		return
	}
}

func (s *Session) serverPacket(c Conn, pkt *protocol.Packet) {
	p := s.findPeer(c)
	if p == nil {
		return
	}
	if p.player == nil && pkt.Command != protocol.CmdHello {
		s.log.WithFields(logrus.Fields{"peer": c.RemoteAddr(), "cmd": pkt.Command.String()}).Warn("packet before hello")
		return
	}
	switch pkt.Command {
	case protocol.CmdHello:
		s.serverHello(p, pkt)
	case protocol.CmdGameAction:
		s.serverGameAction(p, pkt)
	case protocol.CmdRequestGameState:
		s.serverRequestGameState(p, pkt)
	case protocol.CmdDisconnect:
		s.serverDrop(c, "client quit")
	default:
		s.log.WithField("cmd", pkt.Command.String()).Debug("ignored packet")
	}
}

func (s *Session) serverHello(p *peer, pkt *protocol.Packet) {
	if p.player != nil {
		return
	}
	r := pkt.Reader()
	var version, name string
	r.String("version", &version)
	r.String("name", &name)
	if r.Err() != nil {
		s.sendDisconnect(p.conn, protocol.ErrBadRequest)
		s.serverDrop(p.conn, "bad hello")
		return
	}
	if version != protocol.Version {
		s.sendDisconnect(p.conn, protocol.ErrBadVersion)
		s.serverDrop(p.conn, "version "+version)
		return
	}
	if len(s.players) >= s.opts.MaxPlayers {
		s.sendDisconnect(p.conn, protocol.ErrServerFull)
		s.serverDrop(p.conn, "server full")
		return
	}
	if name == "" {
		name = "player"
	}

	player := newPlayer(s.nextPlayerID, name)
	s.nextPlayerID++
	s.players = append(s.players, player)
	p.player = player

	welcome, w := protocol.NewPacket(protocol.CmdWelcome)
	id := int32(player.ID)
	w.I32("playerId", &id)
	w.String("name", &player.Name)
	if err := welcome.SetPayload(w); err != nil {
		s.log.WithError(err).Error("build welcome")
		return
	}
	s.send(p.conn, welcome)

	m := serial.NewSaver()
	s.world.Serialise(m)
	if err := m.Err(); err != nil {
		s.log.WithError(err).Error("serialise map")
		return
	}
	s.sendChunked(p.conn, protocol.CmdMap, s.world.Tick(), m.Bytes())

	s.log.WithFields(logrus.Fields{"player": player.ID, "name": name, "tick": s.world.Tick()}).Info("player joined")
	s.AppendServerLog(name + " has joined the game")
	s.broadcastPlayerList()
}

func (s *Session) serverGameAction(p *peer, pkt *protocol.Packet) {
	r := pkt.Reader()
	var tick, rawType uint32
	var data []byte
	r.U32("tick", &tick)
	r.U32("type", &rawType)
	r.Bytes32("data", &data)
	if r.Err() != nil {
		s.log.WithError(r.Err()).WithField("player", p.player.ID).Warn("bad game action packet")
		return
	}
	t := actions.Type(rawType)
	log := s.log.WithFields(logrus.Fields{"player": p.player.ID, "type": t.String(), "tick": tick})

	// Clients may not pause the server or make it quit.
	if t == actions.TypePauseToggle || t == actions.TypeLoadOrQuit {
		log.Warn("rejected host-only action")
		return
	}
	now := s.now()
	if p.player.onCooldown(t, now) {
		log.Debug("action on cooldown")
		s.sendShowError(p.conn, protocol.ErrRateLimit, "Can't do this...", "Action is on cooldown")
		return
	}
	a, err := actions.Decode(t, serial.NewLoader(data))
	if err != nil {
		log.WithError(err).Warn("undecodable action")
		s.sendShowError(p.conn, protocol.ErrUnknownAction, "Can't do this...", "Unknown action")
		return
	}
	a.ActionBase().Player = p.player.ID
	if err := s.dispatcher.Enqueue(a, s.world.Tick()); err != nil {
		log.WithError(err).Error("enqueue")
		return
	}
	p.player.startCooldown(t, now)
}

// serverRelayGameAction sends an executed action to every joined client,
// tagged with the tick it ran on.
func (s *Session) serverRelayGameAction(a actions.Action) {
	pkt, err := gameActionPacket(s.world.Tick(), a)
	if err != nil {
		s.log.WithError(err).WithField("type", a.Type().String()).Error("relay")
		return
	}
	s.broadcast(pkt)
}

func gameActionPacket(tick uint32, a actions.Action) (*protocol.Packet, error) {
	data, err := actions.Encode(a)
	if err != nil {
		return nil, err
	}
	pkt, w := protocol.NewPacket(protocol.CmdGameAction)
	t := uint32(a.Type())
	w.U32("tick", &tick)
	w.U32("type", &t)
	w.Bytes32("data", &data)
	if err := pkt.SetPayload(w); err != nil {
		return nil, err
	}
	return pkt, nil
}

// serverRequestGameState answers with the snapshot linked to the asked
// tick. A total of zero means the tick is no longer in the ring.
func (s *Session) serverRequestGameState(p *peer, pkt *protocol.Packet) {
	r := pkt.Reader()
	var tick uint32
	r.U32("tick", &tick)
	if r.Err() != nil {
		return
	}
	snap := s.snapshots.GetLinkedSnapshot(tick)
	if snap == nil {
		s.log.WithFields(logrus.Fields{"player": p.player.ID, "tick": tick}).Warn("no snapshot for requested tick")
		s.sendChunked(p.conn, protocol.CmdGameState, tick, nil)
		return
	}
	w := serial.NewSaver()
	snapshot.Serialise(snap, w)
	if err := w.Err(); err != nil {
		s.log.WithError(err).Error("serialise snapshot")
		return
	}
	s.log.WithFields(logrus.Fields{"player": p.player.ID, "tick": tick, "bytes": len(w.Bytes())}).Info("sending game state")
	s.sendChunked(p.conn, protocol.CmdGameState, tick, w.Bytes())
}

func (s *Session) broadcast(pkt *protocol.Packet) {
	for _, p := range s.peers {
		if p.player != nil {
			s.send(p.conn, pkt)
		}
	}
}

func (s *Session) broadcastPlayerList() {
	pkt, w := protocol.NewPacket(protocol.CmdPlayerList)
	n := uint16(len(s.players))
	w.U16("count", &n)
	for _, p := range s.players {
		id := int32(p.ID)
		w.I32("id", &id)
		w.String("name", &p.Name)
	}
	if err := pkt.SetPayload(w); err != nil {
		s.log.WithError(err).Error("build player list")
		return
	}
	s.broadcast(pkt)
}
