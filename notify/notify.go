// Package notify carries user-facing failure messages out of the request layer.
//
// A Notifier is passed explicitly to the components that need one; there is no
// package level sink.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Messages surfaced to the dashboard user
const (
	MsgScriptInvalid = "script content could not be parsed"
	MsgURLInvalid    = "URL format is invalid"
	MsgJSONInvalid   = "JSON body is invalid"
)

// Notifier receives user-facing error messages. Implementations must not block.
type Notifier interface {
	Error(msg string)
}

// Level of a recorded message
type Level string

const (
	LevelError Level = "error"
)

type (
	// Message is a single recorded notification
	Message struct {
		ID    string    `json:"id"`
		Level Level     `json:"level"`
		Text  string    `json:"text"`
		At    time.Time `json:"at"`
	}

	// Recorder keeps every notification it receives
	Recorder struct {
		mu   sync.Mutex
		msgs []Message
	}

	// Logger forwards notifications to a zap logger
	Logger struct {
		logger *zap.Logger
	}

	nop struct{}
)

// Nop returns a notifier that drops everything
func Nop() Notifier {
	return nop{}
}

func (nop) Error(string) {}

// NewLogger creates a notifier writing to logger. A nil logger discards.
func NewLogger(logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{logger: logger.With(zap.String("component", "notify"))}
}

// Error logs msg at warn level
func (l *Logger) Error(msg string) {
	l.logger.Warn("user notification", zap.String("message", msg))
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Error records msg
func (r *Recorder) Error(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, Message{
		ID:    uuid.NewString(),
		Level: LevelError,
		Text:  msg,
		At:    time.Now(),
	})
}

// Messages returns a copy of the recorded messages in arrival order
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.msgs))
	copy(out, r.msgs)
	return out
}

// Texts returns the recorded message texts
func (r *Recorder) Texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.msgs))
	for _, m := range r.msgs {
		out = append(out, m.Text)
	}
	return out
}

// Reset clears the recorder
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = nil
}

// Multi fans a notification out to several notifiers. Nil entries are skipped.
func Multi(ns ...Notifier) Notifier {
	out := make(multi, 0, len(ns))
	for _, n := range ns {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

type multi []Notifier

func (m multi) Error(msg string) {
	for _, n := range m {
		n.Error(msg)
	}
}
