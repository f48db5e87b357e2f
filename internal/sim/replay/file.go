package replay

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/rotisserie/eris"

	"parkstep.io/internal/sim/actions"
	"parkstep.io/internal/sim/serial"
)

const (
	Magic   = "PKRP"
	Version = 1
)

// Header is the JSON line at the start of a decompressed replay.
type Header struct {
	Magic     string `json:"magic"`
	Version   int    `json:"version"`
	StartTick uint32 `json:"start_tick"`
	Commands  int    `json:"commands"`
}

func serialiseRecord(s *serial.Serialiser, rec *Record) {
	s.U32("startTick", &rec.StartTick)
	s.Bytes32("startState", &rec.StartState)
	n := uint32(len(rec.Commands))
	s.U32("commandCount", &n)
	if s.IsLoading() {
		if uint64(n)*12 > uint64(s.Remaining()) {
			s.Fail(eris.Errorf("replay: command count %d exceeds payload", n))
			return
		}
		rec.Commands = make([]Command, n)
	}
	for i := 0; i < int(n) && s.Err() == nil; i++ {
		c := &rec.Commands[i]
		s.U32("tick", &c.Tick)
		t := uint32(c.Type)
		s.U32("type", &t)
		c.Type = actions.Type(t)
		s.Bytes32("data", &c.Data)
	}
}

// WriteFile stores rec as a zstd stream: a JSON header line, then the
// binary record.
func WriteFile(path string, rec *Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "replay: mkdir")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return eris.Wrap(err, "replay: create")
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return eris.Wrap(err, "replay: zstd writer")
	}
	bw := bufio.NewWriter(enc)

	hb, _ := json.Marshal(Header{Magic: Magic, Version: Version, StartTick: rec.StartTick, Commands: len(rec.Commands)})
	if _, err := bw.Write(append(hb, '\n')); err != nil {
		return eris.Wrap(err, "replay: write header")
	}
	s := serial.NewSaver()
	serialiseRecord(s, rec)
	if err := s.Err(); err != nil {
		return err
	}
	if _, err := bw.Write(s.Bytes()); err != nil {
		return eris.Wrap(err, "replay: write body")
	}
	if err := bw.Flush(); err != nil {
		return eris.Wrap(err, "replay: flush")
	}
	if err := enc.Close(); err != nil {
		return eris.Wrap(err, "replay: close zstd")
	}
	return nil
}

func ReadFile(path string) (*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "replay: open")
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, eris.Wrap(err, "replay: zstd reader")
	}
	defer dec.Close()

	br := bufio.NewReader(dec)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return nil, eris.Wrap(err, "replay: read header")
	}
	var h Header
	if err := json.Unmarshal(line, &h); err != nil {
		return nil, eris.Wrap(err, "replay: parse header")
	}
	if h.Magic != Magic || h.Version != Version {
		return nil, eris.Errorf("replay: unsupported file magic=%q version=%d", h.Magic, h.Version)
	}
	body, err := io.ReadAll(br)
	if err != nil {
		return nil, eris.Wrap(err, "replay: read body")
	}
	rec := &Record{}
	s := serial.NewLoader(body)
	serialiseRecord(s, rec)
	if err := s.Err(); err != nil {
		return nil, eris.Wrap(err, "replay: decode body")
	}
	return rec, nil
}
