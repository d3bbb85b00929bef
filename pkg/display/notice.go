package display

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Notice is a message the reader has to acknowledge.
type Notice struct {
	Level   Level
	Message string
	Err     error
}

func (n Notice) String() string {
	if n.Err != nil {
		return fmt.Sprintf("%s: %v", n.Message, n.Err)
	}
	return n.Message
}

// Notifier shows notices synchronously.
type Notifier interface {
	Notify(n Notice)
}

type NotifierFunc func(n Notice)

func (f NotifierFunc) Notify(n Notice) {
	f(n)
}

var levelStyles = map[Level]lipgloss.Style{
	LevelInfo:  lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
	LevelWarn:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3")),
	LevelError: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
}

// WriterNotifier prints notices to w, typically stderr.
type WriterNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w}
}

func (wn *WriterNotifier) Notify(n Notice) {
	wn.mu.Lock()
	defer wn.mu.Unlock()

	style, ok := levelStyles[n.Level]
	if !ok {
		style = levelStyles[LevelInfo]
	}
	_, _ = fmt.Fprintf(wn.w, "%s %s\n", style.Render(string(n.Level)), n.String())
}

// RecordingNotifier keeps every notice, for tests and for callers that
// display notices later.
type RecordingNotifier struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *RecordingNotifier) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *RecordingNotifier) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	ret := make([]Notice, len(r.notices))
	copy(ret, r.notices)
	return ret
}
