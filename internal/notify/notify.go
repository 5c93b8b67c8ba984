// Package notify delivers user-facing messages.
package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type Level int

const (
	Info Level = iota
	Success
	Warning
	Error
)

func (l Level) String() string {
	switch l {
	case Success:
		return "success"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "info"
	}
}

type Notification struct {
	Level   Level
	Title   string
	Message string
	// Retryable marks failures the user can fix by starting the action again.
	Retryable bool
}

type Sink interface {
	Notify(ctx context.Context, n Notification)
}

// LogSink writes notifications to a zap logger.
type LogSink struct {
	log *zap.SugaredLogger
}

func NewLogSink(log *zap.SugaredLogger) *LogSink {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &LogSink{log: log}
}

func (s *LogSink) Notify(_ context.Context, n Notification) {
	fields := []interface{}{"level", n.Level.String()}
	if n.Retryable {
		fields = append(fields, "retryable", true)
	}
	switch n.Level {
	case Warning:
		s.log.Warnw(n.Title+": "+n.Message, fields...)
	case Error:
		s.log.Errorw(n.Title+": "+n.Message, fields...)
	default:
		s.log.Infow(n.Title+": "+n.Message, fields...)
	}
}

// Recorder keeps every notification in memory.
type Recorder struct {
	mu  sync.Mutex
	all []Notification
}

func (r *Recorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	r.all = append(r.all, n)
	r.mu.Unlock()
}

func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.all...)
}
