package auth

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// ActivityEntry records a single authentication event.
type ActivityEntry struct {
	Time      time.Time `json:"time"`
	Matricule string    `json:"matricule"`
	UserID    string    `json:"user_id,omitempty"`
	Action    string    `json:"action"`
	Success   bool      `json:"success"`
	Detail    string    `json:"detail,omitempty"`
	RemoteIP  string    `json:"remote_ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
}

// ActivityLog keeps a bounded in-memory window of auth events and
// optionally mirrors them to a sink.
type ActivityLog struct {
	mu      sync.Mutex
	entries []ActivityEntry
	max     int
	sink    ActivitySink
}

type ActivitySink interface {
	Write(entry ActivityEntry) error
}

func NewActivityLog(max int, sink ActivitySink) *ActivityLog {
	if max <= 0 {
		max = 500
	}
	return &ActivityLog{max: max, sink: sink}
}

func (l *ActivityLog) Add(entry ActivityEntry) {
	if entry.Time.IsZero() {
		entry.Time = time.Now().UTC()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	if len(l.entries) > l.max {
		l.entries = l.entries[len(l.entries)-l.max:]
	}
	if l.sink != nil {
		// Best-effort persistence; ignore errors to avoid impacting request flow.
		_ = l.sink.Write(entry)
	}
}

func (l *ActivityLog) List(limit int) []ActivityEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limit <= 0 || limit > l.max {
		limit = l.max
	}
	entries := l.entries
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	out := make([]ActivityEntry, len(entries))
	copy(out, entries)
	return out
}

// FileActivitySink appends activity entries as JSONL.
type FileActivitySink struct {
	mu   sync.Mutex
	file *os.File
}

func NewFileActivitySink(path string) (*FileActivitySink, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, err
	}
	return &FileActivitySink{file: f}, nil
}

func (s *FileActivitySink) Write(entry ActivityEntry) error {
	if s == nil || s.file == nil {
		return nil
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.file.Write(append(b, '\n'))
	return err
}

func (s *FileActivitySink) Close() error {
	if s == nil || s.file == nil {
		return nil
	}
	return s.file.Close()
}
