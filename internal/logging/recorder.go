package logging

import (
	"fmt"
	"strings"
	"sync"
)

// Entry is a single message captured by Recorder.
type Entry struct {
	Level   string
	Message string
	Fields  map[string]any
}

// Recorder keeps every message in memory. Tests use it to assert on
// warnings and diagnostics without parsing text output.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

var _ Logger = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Debug(msg string, keysAndValues ...any) { r.record("DEBUG", msg, keysAndValues) }
func (r *Recorder) Info(msg string, keysAndValues ...any) { r.record("INFO", msg, keysAndValues) }
func (r *Recorder) Warn(msg string, keysAndValues ...any) { r.record("WARN", msg, keysAndValues) }
func (r *Recorder) Error(msg string, keysAndValues ...any) { r.record("ERROR", msg, keysAndValues) }

// Entries returns a copy of the captured messages.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Count returns how many messages at level contain substr.
func (r *Recorder) Count(level, substr string) int {
	count := 0
	for _, e := range r.Entries() {
		if e.Level == level && strings.Contains(e.Message, substr) {
			count++
		}
	}
	return count
}

func (r *Recorder) record(level, msg string, keysAndValues []any) {
	fields := make(map[string]any, len(keysAndValues)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		if i+1 < len(keysAndValues) {
			fields[key] = keysAndValues[i+1]
		} else {
			fields[key] = "<missing>"
		}
	}

	r.mu.Lock()
	r.entries = append(r.entries, Entry{Level: level, Message: msg, Fields: fields})
	r.mu.Unlock()
}
