package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/klauspost/compress/zstd"
	"github.com/rotisserie/eris"

	simsnap "parkstep.io/internal/sim/snapshot"
)

const Version = 1

// Header is the first line of a decompressed snapshot file. It can be read
// without decoding the body.
type Header struct {
	Version   int    `json:"version"`
	SessionID string `json:"session_id,omitempty"`
	Tick      uint32 `json:"tick"`
	SRand0    uint32 `json:"srand0"`
	Digest    string `json:"digest"`
}

type File struct {
	Header   Header
	Snapshot simsnap.Snapshot
}

// FileName is the canonical name of the snapshot of tick under dir.
func FileName(dir string, tick uint32) string {
	return filepath.Join(dir, strconv.FormatUint(uint64(tick), 10)+".snap.zst")
}

func WriteSnapshot(path, sessionID string, snap *simsnap.Snapshot) error {
	if snap == nil || !snap.Linked() {
		return eris.New("snapshot: refusing to write an unlinked snapshot")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "snapshot: mkdir")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return eris.Wrap(err, "snapshot: create")
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return eris.Wrap(err, "snapshot: zstd writer")
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	file := File{
		Header: Header{
			Version:   Version,
			SessionID: sessionID,
			Tick:      snap.Tick,
			SRand0:    snap.SRand0,
			Digest:    simsnap.Digest(snap),
		},
		Snapshot: *snap,
	}
	hb, _ := json.Marshal(file.Header)
	if _, err := bw.Write(append(hb, '\n')); err != nil {
		return eris.Wrap(err, "snapshot: write header")
	}
	if err := gob.NewEncoder(bw).Encode(&file); err != nil {
		return eris.Wrap(err, "snapshot: gob encode")
	}
	if err := bw.Flush(); err != nil {
		return eris.Wrap(err, "snapshot: flush")
	}
	if err := enc.Close(); err != nil {
		return eris.Wrap(err, "snapshot: close zstd")
	}
	return nil
}

func ReadSnapshot(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "snapshot: open")
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, eris.Wrap(err, "snapshot: zstd reader")
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The gob body repeats the header.
	if _, err := br.ReadBytes('\n'); err != nil {
		return nil, eris.Wrap(err, "snapshot: read header")
	}
	var file File
	if err := gob.NewDecoder(br).Decode(&file); err != nil {
		return nil, eris.Wrap(err, "snapshot: gob decode")
	}
	if file.Header.Version != Version {
		return nil, eris.Errorf("snapshot: unsupported version %d", file.Header.Version)
	}
	return &file, nil
}

// ReadHeader decodes only the first line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, eris.Wrap(err, "snapshot: open")
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, eris.Wrap(err, "snapshot: zstd reader")
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, eris.Wrap(err, "snapshot: read header")
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, eris.Wrap(err, "snapshot: parse header")
	}
	return h, nil
}
