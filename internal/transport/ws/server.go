package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"parkstep.io/internal/network"
	"parkstep.io/internal/protocol"
)

const (
	writeTimeout = 5 * time.Second
	readTimeout  = 60 * time.Second
	pingInterval = 20 * time.Second

	// DefaultQueue is the per-connection outbound packet buffer.
	DefaultQueue = 1024
)

var ErrQueueFull = errors.New("ws: outbound queue full")

type Server struct {
	handler network.Handler
	log     logrus.FieldLogger
	queue   int

	upgrader websocket.Upgrader
}

func NewServer(h network.Handler, log logrus.FieldLogger) *Server {
	return &Server{
		handler: h,
		log:     log,
		queue:   DefaultQueue,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// Handler upgrades the request and pumps packets until the peer goes away.
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		c, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			s.log.WithError(err).Debug("upgrade")
			return
		}
		conn := newConn(c, r.RemoteAddr, s.queue, s.log)
		s.handler.Connected(conn)
		conn.run(s.handler)
	}
}

// Dial connects to a server at url. Packets are delivered to h from a
// background reader until the returned Conn is closed.
func Dial(ctx context.Context, url string, h network.Handler, log logrus.FieldLogger) (network.Conn, error) {
	d := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   64 * 1024,
		WriteBufferSize:  64 * 1024,
	}
	c, _, err := d.DialContext(ctx, url, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "dial %s", url)
	}
	conn := newConn(c, url, DefaultQueue, log)
	go conn.run(h)
	return conn, nil
}

// conn adapts a websocket to network.Conn. Each packet is one binary frame.
type conn struct {
	ws   *websocket.Conn
	addr string
	log  *logrus.Entry

	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newConn(c *websocket.Conn, addr string, queue int, log logrus.FieldLogger) *conn {
	return &conn{
		ws:   c,
		addr: addr,
		log:  log.WithField("peer", addr),
		out:  make(chan []byte, queue),
		done: make(chan struct{}),
	}
}

func (c *conn) RemoteAddr() string { return c.addr }

func (c *conn) Send(p *protocol.Packet) error {
	b, err := p.Marshal()
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return websocket.ErrCloseSent
	default:
	}
	select {
	case c.out <- b:
		return nil
	default:
		// A peer that cannot keep up is dropped rather than stalling the tick.
		_ = c.Close()
		return ErrQueueFull
	}
}

// Close stops the link. Packets already queued are flushed first.
func (c *conn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

// run starts the writer and blocks in the read loop. h.Disconnected is
// called exactly once when the link ends.
func (c *conn) run(h network.Handler) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go c.writeLoop(ctx)

	c.ws.SetReadLimit(protocol.HeaderSize + protocol.MaxPayload)
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(readTimeout))
	})
	for {
		_ = c.ws.SetReadDeadline(time.Now().Add(readTimeout))
		mt, msg, err := c.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				select {
				case <-c.done:
				default:
					c.log.WithError(err).Debug("read")
				}
			}
			break
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		pkt, err := protocol.Unmarshal(msg)
		if err != nil {
			c.log.WithError(err).Warn("bad packet")
			continue
		}
		h.Received(c, pkt)
	}
	_ = c.Close()
	h.Disconnected(c)
}

func (c *conn) writeLoop(ctx context.Context) {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	defer c.ws.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			c.flush()
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		case <-ping.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				_ = c.Close()
				return
			}
		case b := <-c.out:
			if err := c.write(b); err != nil {
				_ = c.Close()
				return
			}
		}
	}
}

func (c *conn) flush() {
	for {
		select {
		case b := <-c.out:
			if c.write(b) != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *conn) write(b []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteMessage(websocket.BinaryMessage, b)
}
