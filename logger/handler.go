package logger

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/apex/log"
)

const (
	red    = 31
	yellow = 33
	blue   = 34
	gray   = 37
)

var colors = [...]int{
	log.DebugLevel: gray,
	log.InfoLevel:  blue,
	log.WarnLevel:  yellow,
	log.ErrorLevel: red,
	log.FatalLevel: red,
}

var levelNames = [...]string{
	log.DebugLevel: "DEBUG",
	log.InfoLevel:  "INFO",
	log.WarnLevel:  "WARN",
	log.ErrorLevel: "ERROR",
	log.FatalLevel: "FATAL",
}

var levelChars = [...]string{
	log.DebugLevel: "D",
	log.InfoLevel:  "I",
	log.WarnLevel:  "W",
	log.ErrorLevel: "E",
	log.FatalLevel: "F",
}

const timeFormat = "2006-01-02T15:04:05.000Z"

// LogHandler prints entries as text, colorized when attached to a terminal.
// The "context" field goes first, other fields are sorted by name.
type LogHandler struct {
	mu     sync.Mutex
	writer io.Writer
	tty    bool
	now    func() time.Time
}

var _ log.Handler = (*LogHandler)(nil)

func (h *LogHandler) HandleLog(e *log.Entry) error {
	names := e.Fields.Names()
	ts := h.timestamp()

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.tty {
		color := colors[e.Level]

		fmt.Fprintf(h.writer, "\033[%dm%6s\033[0m %s", color, levelNames[e.Level], ts)

		if ctx := e.Fields.Get("context"); ctx != nil {
			fmt.Fprintf(h.writer, " \033[%dm[%v]\033[0m", color, ctx)
		}

		for _, name := range names {
			if name == "context" {
				continue
			}
			fmt.Fprintf(h.writer, " \033[%dm%s\033[0m=%v", color, name, e.Fields.Get(name))
		}

		fmt.Fprintf(h.writer, " %s\n", e.Message)

		return nil
	}

	fmt.Fprintf(h.writer, "%s %s", levelChars[e.Level], ts)

	if ctx := e.Fields.Get("context"); ctx != nil {
		fmt.Fprintf(h.writer, " [%v]", ctx)
	}

	for _, name := range names {
		if name == "context" {
			continue
		}
		fmt.Fprintf(h.writer, " %s=%v", name, e.Fields.Get(name))
	}

	fmt.Fprintf(h.writer, " %s\n", e.Message)

	return nil
}

func (h *LogHandler) timestamp() string {
	if h.now != nil {
		return h.now().UTC().Format(timeFormat)
	}

	return time.Now().UTC().Format(timeFormat)
}
