package replay

import (
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"parkstep.io/internal/logging"
	"parkstep.io/internal/sim/actions"
	"parkstep.io/internal/sim/serial"
	"parkstep.io/internal/sim/world"
)

type Mode uint8

const (
	ModeNone Mode = iota
	ModeRecording
	ModePlaying
	ModeNormalising
)

func (m Mode) String() string {
	switch m {
	case ModeRecording:
		return "recording"
	case ModePlaying:
		return "playing"
	case ModeNormalising:
		return "normalising"
	default:
		return "none"
	}
}

// Command is one recorded action.
type Command struct {
	Tick uint32
	Type actions.Type
	Data []byte
}

// Record is the decoded content of a replay file.
type Record struct {
	StartTick  uint32
	StartState []byte
	Commands   []Command
}

// Manager records and plays back action streams. It implements
// actions.ReplayManager.
type Manager struct {
	mode Mode
	log  *logrus.Entry

	recording *Record
	playback  *Record
	next      int
	// normaliseOut is where the re-recorded stream goes when normalising.
	normaliseOut string
}

func NewManager(log logrus.FieldLogger) *Manager {
	return &Manager{log: logging.Component(log, "replay")}
}

func (m *Manager) Mode() Mode          { return m.mode }
func (m *Manager) IsRecording() bool   { return m.mode == ModeRecording }
func (m *Manager) IsPlayingBack() bool { return m.mode == ModePlaying }
func (m *Manager) IsNormalising() bool { return m.mode == ModeNormalising }

func captureState(w *world.World) ([]byte, error) {
	s := serial.NewSaver()
	w.Serialise(s)
	if err := s.Err(); err != nil {
		return nil, eris.Wrap(err, "replay: capture start state")
	}
	return s.Bytes(), nil
}

// StartRecording captures w as the start state and begins collecting
// actions.
func (m *Manager) StartRecording(w *world.World) error {
	if m.mode != ModeNone {
		return eris.Errorf("replay: cannot record while %s", m.mode)
	}
	state, err := captureState(w)
	if err != nil {
		return err
	}
	m.recording = &Record{StartTick: w.Tick(), StartState: state}
	m.mode = ModeRecording
	m.log.WithField("tick", w.Tick()).Info("recording started")
	return nil
}

// AddGameAction appends a to the recording.
func (m *Manager) AddGameAction(tick uint32, a actions.Action) {
	if m.recording == nil {
		return
	}
	data, err := actions.Encode(a)
	if err != nil {
		m.log.WithError(err).Warn("drop unencodable action")
		return
	}
	m.recording.Commands = append(m.recording.Commands, Command{Tick: tick, Type: a.Type(), Data: data})
}

// StopRecording writes the recording to path and returns to idle.
func (m *Manager) StopRecording(path string) error {
	if m.mode != ModeRecording || m.recording == nil {
		return eris.New("replay: not recording")
	}
	rec := m.recording
	m.recording = nil
	m.mode = ModeNone
	if err := WriteFile(path, rec); err != nil {
		return err
	}
	m.log.WithFields(logrus.Fields{"path": path, "commands": len(rec.Commands)}).Info("recording saved")
	return nil
}

// StartPlayback loads path and restores its start state into w.
func (m *Manager) StartPlayback(path string, w *world.World) error {
	if m.mode != ModeNone {
		return eris.Errorf("replay: cannot play back while %s", m.mode)
	}
	rec, err := ReadFile(path)
	if err != nil {
		return err
	}
	if err := restore(rec, w); err != nil {
		return err
	}
	m.playback = rec
	m.next = 0
	m.mode = ModePlaying
	m.log.WithFields(logrus.Fields{"path": path, "commands": len(rec.Commands)}).Info("playback started")
	return nil
}

// StartNormalisation plays in back while re-recording every replayed
// action; the canonical stream is written to out when playback ends.
func (m *Manager) StartNormalisation(in, out string, w *world.World) error {
	if err := m.StartPlayback(in, w); err != nil {
		return err
	}
	state, err := captureState(w)
	if err != nil {
		m.mode = ModeNone
		return err
	}
	m.recording = &Record{StartTick: w.Tick(), StartState: state}
	m.normaliseOut = out
	m.mode = ModeNormalising
	return nil
}

func restore(rec *Record, w *world.World) error {
	s := serial.NewLoader(rec.StartState)
	w.Serialise(s)
	if err := s.Err(); err != nil {
		return eris.Wrap(err, "replay: restore start state")
	}
	return nil
}

// Done reports whether playback has consumed every command.
func (m *Manager) Done() bool {
	return m.playback == nil || m.next >= len(m.playback.Commands)
}

// Update executes every command due at the current tick. When the stream
// runs out the manager returns to idle, writing the normalised output
// first if one was requested.
func (m *Manager) Update(d *actions.Dispatcher) error {
	if m.mode != ModePlaying && m.mode != ModeNormalising {
		return nil
	}
	tick := d.World().Tick()
	for !m.Done() {
		cmd := m.playback.Commands[m.next]
		if cmd.Tick > tick {
			break
		}
		m.next++
		a, err := actions.Decode(cmd.Type, serial.NewLoader(cmd.Data))
		if err != nil {
			m.log.WithError(err).WithField("tick", cmd.Tick).Error("skip undecodable command")
			continue
		}
		a.ActionBase().Flags |= actions.FlagReplay
		r := d.Execute(a)
		if !r.IsOK() {
			m.log.WithFields(logrus.Fields{"tick": cmd.Tick, "type": cmd.Type.String(), "status": r.Status.String()}).Warn("replayed action failed")
		}
	}
	if !m.Done() {
		return nil
	}
	normalising := m.mode == ModeNormalising
	m.mode = ModeNone
	m.playback = nil
	if normalising {
		rec := m.recording
		m.recording = nil
		if err := WriteFile(m.normaliseOut, rec); err != nil {
			return err
		}
		m.log.WithField("path", m.normaliseOut).Info("normalised replay saved")
	}
	m.log.WithField("tick", tick).Info("playback finished")
	return nil
}
