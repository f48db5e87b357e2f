package log

import (
	"bufio"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"parkstep.io/internal/logging"
	"parkstep.io/internal/sim/actions"
)

// ActionEntry is one line of the action journal.
type ActionEntry struct {
	Session string `json:"session,omitempty"`
	Time    string `json:"time"`
	Realm   string `json:"realm"`
	Tick    uint32 `json:"tick"`
	Type    uint32 `json:"type"`
	Name    string `json:"name"`
	Params  string `json:"params"`
	Status  string `json:"status"`
	Line    string `json:"line"`
}

// ActionJournal writes every logged action as compressed JSONL.
type ActionJournal struct {
	w       *JSONLZstdWriter
	session string
	log     *logrus.Entry
}

func NewActionJournal(dir, sessionID string, log logrus.FieldLogger) *ActionJournal {
	return &ActionJournal{
		w:       NewJSONLZstdWriter(filepath.Join(dir, "actions"), "actions"),
		session: sessionID,
		log:     logging.Component(log, "journal"),
	}
}

func (j *ActionJournal) AppendAction(e actions.LogEntry) {
	entry := ActionEntry{
		Session: j.session,
		Time:    j.w.now().UTC().Format(time.RFC3339Nano),
		Realm:   e.Realm,
		Tick:    e.Tick,
		Type:    uint32(e.Type),
		Name:    e.Name,
		Params:  e.Params,
		Status:  e.Status.String(),
		Line:    e.Line,
	}
	if err := j.w.Write(entry); err != nil {
		j.log.WithError(err).WithField("tick", e.Tick).Warn("journal write failed")
	}
}

func (j *ActionJournal) Close() error { return j.w.Close() }

// MultiJournal fans one entry out to several journals.
type MultiJournal []actions.Journal

func (m MultiJournal) AppendAction(e actions.LogEntry) {
	for _, j := range m {
		if j != nil {
			j.AppendAction(e)
		}
	}
}

// SessionLog is the plain-text server log: one timestamped line per
// executed action, appended across restarts.
type SessionLog struct {
	mu  sync.Mutex
	f   *os.File
	w   *bufio.Writer
	now func() time.Time
	log *logrus.Entry
}

func OpenSessionLog(path string, log logrus.FieldLogger) (*SessionLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, eris.Wrap(err, "session log: mkdir")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, eris.Wrap(err, "session log: open")
	}
	return &SessionLog{f: f, w: bufio.NewWriter(f), now: time.Now, log: logging.Component(log, "session_log")}, nil
}

// SessionLogName is the file name used for a session started at t.
func SessionLogName(dir, sessionID string, t time.Time) string {
	return filepath.Join(dir, "server_"+t.UTC().Format("20060102_150405")+"_"+sessionID+".txt")
}

func (l *SessionLog) AppendLine(line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return eris.New("session log: closed")
	}
	if _, err := l.w.WriteString("[" + l.now().UTC().Format("2006/01/02 15:04:05") + "] " + line + "\n"); err != nil {
		return eris.Wrap(err, "session log: write")
	}
	return l.w.Flush()
}

// AppendAction writes the action's log line.
func (l *SessionLog) AppendAction(e actions.LogEntry) {
	if e.Line == "" {
		return
	}
	if err := l.AppendLine(e.Line); err != nil {
		l.log.WithError(err).WithField("tick", e.Tick).Warn("session log write failed")
	}
}

func (l *SessionLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return nil
	}
	_ = l.w.Flush()
	err := l.f.Close()
	l.w = nil
	l.f = nil
	return err
}
