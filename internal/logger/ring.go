package logger

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
)

const DefaultRingCapacity = 1000

type Entry struct {
	Time    time.Time
	Level   zapcore.Level
	Message string
}

func (e Entry) String() string {
	return fmt.Sprintf("%s %s - %s", e.Time.Format("2006/01/02 15:04:05"), e.Level.CapitalString(), e.Message)
}

// Ring is a bounded in-memory diagnostic log. Once full, every append drops the
// oldest entry. While paused, appends are discarded.
type Ring struct {
	mu       sync.Mutex
	capacity int
	entries  []Entry
	paused   bool
}

func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultRingCapacity
	}
	return &Ring{capacity: capacity}
}

func (r *Ring) Append(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.paused {
		return
	}
	if len(r.entries) >= r.capacity {
		r.entries = r.entries[1:]
	}
	r.entries = append(r.entries, e)
}

func (r *Ring) SetPaused(paused bool) {
	r.mu.Lock()
	r.paused = paused
	r.mu.Unlock()
}

func (r *Ring) Paused() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paused
}

func (r *Ring) Capacity() int {
	return r.capacity
}

func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Entries returns a copy, oldest first.
func (r *Ring) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Tail returns up to n formatted entries at or above level, newest first.
func (r *Ring) Tail(n int, level zapcore.Level) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var output []string
	for i := len(r.entries) - 1; i >= 0 && len(output) < n; i-- {
		if r.entries[i].Level >= level {
			output = append(output, r.entries[i].String())
		}
	}
	return output
}

func (r *Ring) Clear() {
	r.mu.Lock()
	r.entries = nil
	r.mu.Unlock()
}

// Core adapts the ring to zap so it can be teed with the console output.
func (r *Ring) Core(enab zapcore.LevelEnabler) zapcore.Core {
	return &ringCore{LevelEnabler: enab, ring: r}
}

type ringCore struct {
	zapcore.LevelEnabler
	ring   *Ring
	fields []zapcore.Field
}

func (c *ringCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &ringCore{LevelEnabler: c.LevelEnabler, ring: c.ring, fields: merged}
}

func (c *ringCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *ringCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	msg := ent.Message
	all := append(append([]zapcore.Field{}, c.fields...), fields...)
	if len(all) > 0 {
		enc := zapcore.NewMapObjectEncoder()
		for _, f := range all {
			f.AddTo(enc)
		}
		keys := make([]string, 0, len(enc.Fields))
		for k := range enc.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, enc.Fields[k]))
		}
		msg += " " + strings.Join(parts, " ")
	}
	c.ring.Append(Entry{Time: ent.Time, Level: ent.Level, Message: msg})
	return nil
}

func (c *ringCore) Sync() error { return nil }
