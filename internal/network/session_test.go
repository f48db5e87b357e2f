package network

import (
	"bytes"
	"errors"
	"os"
	"testing"
	"time"

	"parkstep.io/internal/guard"
	"parkstep.io/internal/logging"
	"parkstep.io/internal/protocol"
	"parkstep.io/internal/sim/actions"
	"parkstep.io/internal/sim/desync"
	"parkstep.io/internal/sim/entity"
	"parkstep.io/internal/sim/game"
	"parkstep.io/internal/sim/world"
)

// pipeConn is one end of an in-memory link. Packets go through the wire
// framing on every send.
type pipeConn struct {
	addr   string
	owner  Handler
	peer   *pipeConn
	closed bool
}

var errPipeClosed = errors.New("pipe closed")

func pipe(a, b Handler) (*pipeConn, *pipeConn) {
	ca := &pipeConn{addr: "a", owner: a}
	cb := &pipeConn{addr: "b", owner: b}
	ca.peer, cb.peer = cb, ca
	return ca, cb
}

func (c *pipeConn) Send(p *protocol.Packet) error {
	if c.closed {
		return errPipeClosed
	}
	raw, err := p.Marshal()
	if err != nil {
		return err
	}
	q, err := protocol.Unmarshal(raw)
	if err != nil {
		return err
	}
	c.peer.owner.Received(c.peer, q)
	return nil
}

func (c *pipeConn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if !c.peer.closed {
		c.peer.closed = true
		c.peer.owner.Disconnected(c.peer)
	}
	return nil
}

func (c *pipeConn) RemoteAddr() string { return c.peer.addr }

// recordConn keeps what a session sends to it.
type recordConn struct {
	sent   []*protocol.Packet
	closed bool
}

func (c *recordConn) Send(p *protocol.Packet) error { c.sent = append(c.sent, p); return nil }
func (c *recordConn) Close() error                  { c.closed = true; return nil }
func (c *recordConn) RemoteAddr() string            { return "record" }

func (c *recordConn) commands() []protocol.Command {
	out := make([]protocol.Command, 0, len(c.sent))
	for _, p := range c.sent {
		out = append(out, p.Command)
	}
	return out
}

type errSink struct{ shown []string }

func (e *errSink) ShowError(title, message string) { e.shown = append(e.shown, message) }

type desyncLog struct {
	paths   []string
	results []*desync.CompareResult
}

func (d *desyncLog) RecordDesync(path string, res *desync.CompareResult) {
	d.paths = append(d.paths, path)
	d.results = append(d.results, res)
}

var fixedNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type node struct {
	ctx  *game.Context
	sess *Session
}

func newNode(t *testing.T, opts Options) *node {
	t.Helper()
	w, err := world.New(world.Config{
		EntityCapacity: 64,
		Seed:           2024,
		Cash:           5000,
		Scenery:        map[uint16]world.Money{1: 100, 2: 40},
	})
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	g := &guard.Guard{Strict: true}
	ctx := game.New(w, game.Options{DesyncDebugging: opts.DesyncDebugging, Guard: g, Log: logging.Discard()})
	opts.Guard = g
	opts.Log = logging.Discard()
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return fixedNow }
	}
	sess := NewSession(w, ctx.Dispatcher, ctx.Snapshots, opts)
	ctx.AttachNetwork(sess)
	return &node{ctx: ctx, sess: sess}
}

// link joins cli to srv and runs until the client is in step.
func link(t *testing.T, srv, cli *node) (*pipeConn, *pipeConn) {
	t.Helper()
	cliEnd, srvEnd := pipe(cli.sess, srv.sess)
	srv.sess.Connected(srvEnd)
	cli.sess.Connect(cliEnd)
	rounds(t, 3, srv, cli)
	if !cli.sess.Ready() {
		t.Fatalf("client not ready after join: status=%s", cli.sess.Status())
	}
	return cliEnd, srvEnd
}

func rounds(t *testing.T, n int, nodes ...*node) {
	t.Helper()
	for i := 0; i < n; i++ {
		for _, nd := range nodes {
			if _, err := nd.ctx.UpdateLogic(); err != nil {
				t.Fatalf("UpdateLogic: %v", err)
			}
		}
	}
}

func TestJoin_ClientLoadsMapAndFollowsServer(t *testing.T) {
	srv := newNode(t, Options{Mode: protocol.ModeServer, PlayerName: "host"})
	cli := newNode(t, Options{Mode: protocol.ModeClient, PlayerName: "alice"})
	srv.ctx.World.SetCash(7777)
	srv.ctx.World.Place(world.Placement{Kind: world.ScenerySmall, ObjectID: 1, Pos: world.Coords{X: 64, Y: 64}})

	link(t, srv, cli)

	if cli.sess.LocalPlayer() != 1 {
		t.Fatalf("local player=%d want 1", cli.sess.LocalPlayer())
	}
	if len(cli.sess.Players()) != 2 || len(srv.sess.Players()) != 2 {
		t.Fatalf("players client=%d server=%d", len(cli.sess.Players()), len(srv.sess.Players()))
	}
	if cli.ctx.World.Cash() != 7777 || len(cli.ctx.World.Placements()) != 1 {
		t.Fatalf("map not loaded: cash=%d placements=%d", cli.ctx.World.Cash(), len(cli.ctx.World.Placements()))
	}
	if cli.ctx.World.Tick() >= srv.ctx.World.Tick() {
		t.Fatalf("client tick %d not behind server tick %d", cli.ctx.World.Tick(), srv.ctx.World.Tick())
	}
	if cli.ctx.Dispatcher.Suspended() {
		t.Fatalf("queue still suspended after map load")
	}
}

func TestGameAction_RoundTripRestoresCallback(t *testing.T) {
	srv := newNode(t, Options{Mode: protocol.ModeServer})
	cli := newNode(t, Options{Mode: protocol.ModeClient})
	link(t, srv, cli)

	var calls int
	var status actions.Status
	a := actions.NewSmallSceneryPlace(1, world.Coords{X: 96, Y: 96})
	a.Callback = func(_ actions.Action, r *actions.Result) {
		calls++
		status = r.Status
	}
	if r := cli.ctx.Dispatcher.Execute(a); !r.IsOK() {
		t.Fatalf("client query failed: %s", r.Status)
	}
	if cli.ctx.World.Cash() != 5000 || calls != 0 {
		t.Fatalf("client ran the action locally: cash=%d calls=%d", cli.ctx.World.Cash(), calls)
	}

	rounds(t, 4, srv, cli)

	if srv.ctx.World.Cash() != 4900 || cli.ctx.World.Cash() != 4900 {
		t.Fatalf("cash server=%d client=%d want 4900", srv.ctx.World.Cash(), cli.ctx.World.Cash())
	}
	if calls != 1 || status != actions.StatusOK {
		t.Fatalf("callback calls=%d status=%s", calls, status)
	}
	p := srv.sess.Players()[srv.sess.PlayerIndex(1)]
	if p.CommandsRan != 1 || p.MoneySpent != 100 || p.LastAction != actions.TypeSmallSceneryPlace {
		t.Fatalf("server player stats: %+v", p)
	}
	if p.LastActionCoords != (world.Coords{X: 96, Y: 96}) {
		t.Fatalf("last coords=%+v", p.LastActionCoords)
	}
}

func TestServer_RejectsPauseFromClient(t *testing.T) {
	srv := newNode(t, Options{Mode: protocol.ModeServer})
	cli := newNode(t, Options{Mode: protocol.ModeClient})
	link(t, srv, cli)

	cli.ctx.Dispatcher.Execute(actions.NewPauseToggle())
	rounds(t, 3, srv, cli)
	if srv.ctx.World.Paused() || cli.ctx.World.Paused() {
		t.Fatalf("client paused the game")
	}
}

func TestServer_CooldownSendsError(t *testing.T) {
	srv := newNode(t, Options{Mode: protocol.ModeServer})
	sink := &errSink{}
	cli := newNode(t, Options{Mode: protocol.ModeClient, Errors: sink})
	link(t, srv, cli)

	hire := func() {
		cli.ctx.Dispatcher.Execute(actions.NewStaffHire(entity.StaffHandyman, 0x01, world.Coords{X: 128, Y: 128}))
	}
	hire()
	hire()
	rounds(t, 3, srv, cli)

	if got := srv.ctx.World.Entities().CountKind(entity.KindStaff); got != 1 {
		t.Fatalf("staff hired=%d want 1", got)
	}
	if len(sink.shown) != 1 {
		t.Fatalf("errors shown=%v", sink.shown)
	}
	if srv.ctx.World.Cash() != cli.ctx.World.Cash() {
		t.Fatalf("cash diverged: %d vs %d", srv.ctx.World.Cash(), cli.ctx.World.Cash())
	}
}

func TestDesync_RequestsStateAndWritesReport(t *testing.T) {
	reports := &desyncLog{}
	srv := newNode(t, Options{Mode: protocol.ModeServer, ChecksumInterval: 1, DesyncDebugging: true})
	cli := newNode(t, Options{
		Mode:             protocol.ModeClient,
		ChecksumInterval: 1,
		DesyncDebugging:  true,
		ReportDir:        t.TempDir(),
		Desyncs:          reports,
	})
	link(t, srv, cli)
	rounds(t, 2, srv, cli)
	if cli.sess.Status() != StatusConnected {
		t.Fatalf("desynced before any divergence")
	}

	if _, err := cli.ctx.World.Entities().Spawn(entity.KindDuck); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	rounds(t, 4, srv, cli)

	if len(reports.paths) != 1 {
		t.Fatalf("reports=%v", reports.paths)
	}
	if cli.sess.LastReport() != reports.paths[0] {
		t.Fatalf("last report=%q", cli.sess.LastReport())
	}
	body, err := os.ReadFile(reports.paths[0])
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !bytes.Contains(body, []byte("Sprite added (Duck)")) {
		t.Fatalf("report does not mention the added entity:\n%s", body)
	}
	res := reports.results[0]
	added := false
	for _, c := range res.Changes {
		if c.Change == desync.ChangeAdded && c.Kind == entity.KindDuck {
			added = true
		}
	}
	if !added {
		t.Fatalf("no added duck in %+v", res.Changes)
	}
	if cli.sess.Mode() != protocol.ModeNone || cli.sess.Status() != StatusClosed {
		t.Fatalf("client still attached: mode=%s status=%s", cli.sess.Mode(), cli.sess.Status())
	}
	rounds(t, 1, srv)
	if len(srv.sess.Players()) != 1 {
		t.Fatalf("server still lists %d players", len(srv.sess.Players()))
	}
}

func TestDesync_StayConnectedWithoutDebugging(t *testing.T) {
	srv := newNode(t, Options{Mode: protocol.ModeServer, ChecksumInterval: 1})
	cli := newNode(t, Options{Mode: protocol.ModeClient, ChecksumInterval: 1, StayConnected: true})
	link(t, srv, cli)

	cli.ctx.World.Rand().Next()
	rounds(t, 2, srv, cli)
	if cli.sess.Status() != StatusDesynced {
		t.Fatalf("status=%s want desynced", cli.sess.Status())
	}
	if cli.sess.Mode() != protocol.ModeClient {
		t.Fatalf("client left the session")
	}
}

func TestClientDisconnect_ServerDropsPlayer(t *testing.T) {
	srv := newNode(t, Options{Mode: protocol.ModeServer})
	cli := newNode(t, Options{Mode: protocol.ModeClient})
	cliEnd, _ := link(t, srv, cli)

	_ = cli.ctx.Dispatcher.Enqueue(actions.NewParkSetEntranceFee(10), cli.ctx.World.Tick()+50)
	_ = cliEnd.Close()
	rounds(t, 1, srv, cli)

	if len(srv.sess.Players()) != 1 {
		t.Fatalf("server players=%d want 1", len(srv.sess.Players()))
	}
	if cli.ctx.Dispatcher.QueueLen() != 0 || cli.ctx.Dispatcher.Suspended() {
		t.Fatalf("client queue len=%d suspended=%v", cli.ctx.Dispatcher.QueueLen(), cli.ctx.Dispatcher.Suspended())
	}
	if cli.sess.Mode() != protocol.ModeNone {
		t.Fatalf("client mode=%s", cli.sess.Mode())
	}
}

func TestServerHello_BadVersionAndFull(t *testing.T) {
	srv := newNode(t, Options{Mode: protocol.ModeServer, MaxPlayers: 2})

	hello := func(version string) *protocol.Packet {
		p, w := protocol.NewPacket(protocol.CmdHello)
		name := "x"
		w.String("version", &version)
		w.String("name", &name)
		if err := p.SetPayload(w); err != nil {
			t.Fatalf("payload: %v", err)
		}
		return p
	}

	bad := &recordConn{}
	srv.sess.Connected(bad)
	srv.sess.Received(bad, hello("0.0"))
	srv.sess.Update()
	if cmds := bad.commands(); len(cmds) != 1 || cmds[0] != protocol.CmdDisconnect || !bad.closed {
		t.Fatalf("bad version: sent=%v closed=%v", cmds, bad.closed)
	}

	ok := &recordConn{}
	srv.sess.Connected(ok)
	srv.sess.Received(ok, hello(protocol.Version))
	srv.sess.Update()
	cmds := ok.commands()
	if len(cmds) < 3 || cmds[0] != protocol.CmdWelcome || cmds[1] != protocol.CmdMap || cmds[len(cmds)-1] != protocol.CmdPlayerList {
		t.Fatalf("join sequence=%v", cmds)
	}

	full := &recordConn{}
	srv.sess.Connected(full)
	srv.sess.Received(full, hello(protocol.Version))
	srv.sess.Update()
	if cmds := full.commands(); len(cmds) != 1 || cmds[0] != protocol.CmdDisconnect {
		t.Fatalf("full server: sent=%v", cmds)
	}
	r := full.sent[0].Reader()
	var reason string
	r.String("reason", &reason)
	if reason != protocol.ErrServerFull {
		t.Fatalf("reason=%q", reason)
	}
}

func TestClientTick_HistoryIsBounded(t *testing.T) {
	cli := newNode(t, Options{Mode: protocol.ModeClient})
	for tick := uint32(0); tick < 150; tick++ {
		p, w := protocol.NewPacket(protocol.CmdTick)
		srand0, flags := tick*3, uint32(0)
		w.U32("tick", &tick)
		w.U32("srand0", &srand0)
		w.U32("flags", &flags)
		if err := p.SetPayload(w); err != nil {
			t.Fatalf("payload: %v", err)
		}
		cli.sess.clientTick(p)
	}
	if len(cli.sess.history) != tickHistoryLimit {
		t.Fatalf("history=%d want %d", len(cli.sess.history), tickHistoryLimit)
	}
	if _, ok := cli.sess.history[49]; ok {
		t.Fatalf("tick 49 should have been evicted")
	}
	if _, ok := cli.sess.history[50]; !ok {
		t.Fatalf("tick 50 missing")
	}
	if cli.sess.ServerTick() != 149 {
		t.Fatalf("server tick=%d", cli.sess.ServerTick())
	}
}

func TestChunks_Reassemble(t *testing.T) {
	src := make([]byte, protocol.ChunkSize*2+123)
	for i := range src {
		src[i] = byte(i * 7)
	}
	parts := chunks(src)
	if len(parts) != 3 {
		t.Fatalf("parts=%d want 3", len(parts))
	}
	var buf []byte
	var off uint32
	var done bool
	var err error
	for _, p := range parts {
		buf, done, err = assemble(buf, chunkHeader{Total: uint32(len(src)), Offset: off, Data: p})
		if err != nil {
			t.Fatalf("assemble: %v", err)
		}
		off += uint32(len(p))
	}
	if !done || !bytes.Equal(buf, src) {
		t.Fatalf("reassembly mismatch done=%v", done)
	}

	if _, _, err := assemble(make([]byte, 10), chunkHeader{Total: 100, Offset: 20, Data: []byte{1}}); err == nil {
		t.Fatalf("expected offset error")
	}
	buf, done, err = assemble(nil, chunkHeader{Total: 0xFFFFFFFF, Data: []byte{1, 2}})
	if err == nil || buf != nil || done {
		t.Fatalf("oversized total accepted: len=%d done=%v", len(buf), done)
	}
}
