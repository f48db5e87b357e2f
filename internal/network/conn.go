package network

import (
	"parkstep.io/internal/protocol"
)

// Conn is one peer link. Send must not block the caller for long; the
// websocket transport queues outbound packets per connection.
type Conn interface {
	Send(p *protocol.Packet) error
	Close() error
	RemoteAddr() string
}

// Handler receives transport events. Implementations are called from
// transport goroutines.
type Handler interface {
	Connected(c Conn)
	Received(c Conn, p *protocol.Packet)
	Disconnected(c Conn)
}

type eventKind uint8

const (
	eventConnected eventKind = iota
	eventPacket
	eventDisconnected
)

type event struct {
	kind eventKind
	conn Conn
	pkt  *protocol.Packet
}
