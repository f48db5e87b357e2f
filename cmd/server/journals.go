package main

import (
	"time"

	"github.com/sirupsen/logrus"

	"parkstep.io/internal/persistence/indexdb"
	persistlog "parkstep.io/internal/persistence/log"
)

// actionLogs is every sink an executed action is written to. Each action
// reaches each sink exactly once, through the journal fan-out.
type actionLogs struct {
	journal   *persistlog.ActionJournal
	serverLog *persistlog.SessionLog
	path      string
	all       persistlog.MultiJournal
}

// openActionLogs opens the compressed journal and the plain-text session
// log. The session log is kept in every mode; the network session only
// adds join, leave and desync lines to it.
func openActionLogs(dirs runtimeDirs, sessionID string, idx *indexdb.SQLiteIndex, log logrus.FieldLogger, now time.Time) (*actionLogs, error) {
	path := persistlog.SessionLogName(dirs.logs, sessionID, now)
	serverLog, err := persistlog.OpenSessionLog(path, log)
	if err != nil {
		return nil, err
	}
	l := &actionLogs{
		journal:   persistlog.NewActionJournal(dirs.actions, sessionID, log),
		serverLog: serverLog,
		path:      path,
	}
	l.all = persistlog.MultiJournal{l.journal, l.serverLog}
	if idx != nil {
		l.all = append(l.all, idx)
	}
	return l, nil
}

func (l *actionLogs) Close() error {
	jerr := l.journal.Close()
	if err := l.serverLog.Close(); err != nil {
		return err
	}
	return jerr
}
