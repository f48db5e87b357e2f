package protocol

import (
	"encoding/binary"
	"math"

	"github.com/rotisserie/eris"

	"parkstep.io/internal/sim/serial"
)

// HeaderSize is the fixed wire header: u16 payload size then u32 command id.
const HeaderSize = 6

const MaxPayload = math.MaxUint16

type Header struct {
	Size    uint16
	Command Command
}

func (h Header) Put(b []byte) {
	binary.BigEndian.PutUint16(b[0:2], h.Size)
	binary.BigEndian.PutUint32(b[2:6], uint32(h.Command))
}

func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, eris.Errorf("packet header: need %d bytes, have %d", HeaderSize, len(b))
	}
	return Header{
		Size:    binary.BigEndian.Uint16(b[0:2]),
		Command: Command(binary.BigEndian.Uint32(b[2:6])),
	}, nil
}

// Packet is one framed command. Payloads are written with a serial.Serialiser
// so every field is in network byte order.
type Packet struct {
	Command Command
	Data    []byte
}

// NewPacket returns a packet plus a saver for its payload. Write the fields,
// then hand the saver back through SetPayload.
func NewPacket(cmd Command) (*Packet, *serial.Serialiser) {
	return &Packet{Command: cmd}, serial.NewSaver()
}

func (p *Packet) SetPayload(s *serial.Serialiser) error {
	if err := s.Err(); err != nil {
		return eris.Wrapf(err, "packet %s", p.Command)
	}
	p.Data = s.Bytes()
	return nil
}

// Reader returns a load-mode serialiser over the payload.
func (p *Packet) Reader() *serial.Serialiser {
	return serial.NewLoader(p.Data)
}

func (p *Packet) Marshal() ([]byte, error) {
	if len(p.Data) > MaxPayload {
		return nil, eris.Errorf("packet %s: payload %d exceeds %d bytes", p.Command, len(p.Data), MaxPayload)
	}
	out := make([]byte, HeaderSize+len(p.Data))
	Header{Size: uint16(len(p.Data)), Command: p.Command}.Put(out)
	copy(out[HeaderSize:], p.Data)
	return out, nil
}

func Unmarshal(b []byte) (*Packet, error) {
	h, err := ParseHeader(b)
	if err != nil {
		return nil, err
	}
	body := b[HeaderSize:]
	if int(h.Size) != len(body) {
		return nil, eris.Errorf("packet %s: header size %d, body %d bytes", h.Command, h.Size, len(body))
	}
	return &Packet{Command: h.Command, Data: append([]byte(nil), body...)}, nil
}
