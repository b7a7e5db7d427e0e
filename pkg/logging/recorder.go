package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Entry is a retained log record.
type Entry struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Attrs   string // "key=value" pairs, space separated
}

func (e Entry) String() string {
	s := e.Time.Format(time.TimeOnly) + " " + e.Level.String() + " " + e.Message
	if e.Attrs != "" {
		s += " " + e.Attrs
	}
	return s
}

// ring is a fixed-size circular buffer of entries shared by a Recorder and
// every handler derived from it with WithAttrs/WithGroup.
type ring struct {
	mu     sync.RWMutex
	buf    []Entry
	head   int // next write position
	count  int
	counts map[slog.Level]int
}

func (r *ring) add(e Entry) {
	r.mu.Lock()
	r.buf[r.head] = e
	r.head = (r.head + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
	r.counts[e.Level]++
	r.mu.Unlock()
}

// Recorder is an slog.Handler that forwards every record to a base handler
// and keeps the most recent warnings and errors in memory, so a long
// running shell can show what went wrong while loading a lab.
type Recorder struct {
	base   slog.Handler
	ring   *ring
	attrs  []slog.Attr
	groups []string
}

// NewRecorder wraps base, retaining up to keep warning or error records.
func NewRecorder(base slog.Handler, keep int) *Recorder {
	if keep <= 0 {
		keep = 1
	}
	return &Recorder{
		base: base,
		ring: &ring{buf: make([]Entry, keep), counts: make(map[slog.Level]int)},
	}
}

// Enabled implements slog.Handler.
func (h *Recorder) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level) || level >= slog.LevelWarn
}

// Handle implements slog.Handler.
func (h *Recorder) Handle(ctx context.Context, r slog.Record) error {
	var err error
	if h.base.Enabled(ctx, r.Level) {
		err = h.base.Handle(ctx, r)
	}
	if r.Level >= slog.LevelWarn {
		h.ring.add(Entry{
			Time:    r.Time,
			Level:   r.Level,
			Message: r.Message,
			Attrs:   formatAttrs(r, h.attrs, h.groups),
		})
	}
	return err
}

// WithAttrs implements slog.Handler.
func (h *Recorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Recorder{
		base:   h.base.WithAttrs(attrs),
		ring:   h.ring,
		attrs:  append(append([]slog.Attr{}, h.attrs...), attrs...),
		groups: h.groups,
	}
}

// WithGroup implements slog.Handler.
func (h *Recorder) WithGroup(name string) slog.Handler {
	return &Recorder{
		base:   h.base.WithGroup(name),
		ring:   h.ring,
		attrs:  h.attrs,
		groups: append(append([]string{}, h.groups...), name),
	}
}

// Entries returns the retained records, oldest first.
func (h *Recorder) Entries() []Entry {
	r := h.ring
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, r.count)
	start := (r.head - r.count + len(r.buf)) % len(r.buf)
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}

// Count returns how many records at exactly level were seen, including
// ones that have since been evicted.
func (h *Recorder) Count(level slog.Level) int {
	h.ring.mu.RLock()
	defer h.ring.mu.RUnlock()
	return h.ring.counts[level]
}

// Reset drops retained records and counters.
func (h *Recorder) Reset() {
	r := h.ring
	r.mu.Lock()
	clear(r.buf)
	r.head, r.count = 0, 0
	clear(r.counts)
	r.mu.Unlock()
}

func formatAttrs(r slog.Record, pre []slog.Attr, groups []string) string {
	var b strings.Builder
	for _, a := range pre {
		fmt.Fprintf(&b, " %s=%s", a.Key, a.Value.String())
	}
	r.Attrs(func(a slog.Attr) bool {
		key := a.Key
		if len(groups) > 0 {
			key = strings.Join(groups, ".") + "." + key
		}
		fmt.Fprintf(&b, " %s=%s", key, a.Value.String())
		return true
	})
	return strings.TrimPrefix(b.String(), " ")
}
