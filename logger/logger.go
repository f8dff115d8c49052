// Package logger configures the global apex/log logger
package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/json"
	"github.com/relaycast/relaycast-go/utils"
)

// InitLogger sets log level, format and output
func InitLogger(format string, level string) error {
	handler, lvl, err := NewHandler(os.Stdout, format, level, utils.IsTTY())

	if err != nil {
		return err
	}

	log.SetLevel(lvl)
	log.SetHandler(handler)

	return nil
}

// NewHandler builds a log handler writing to the specified writer
func NewHandler(w io.Writer, format string, level string, tty bool) (log.Handler, log.Level, error) {
	lvl, err := log.ParseLevel(level)

	if err != nil {
		return nil, lvl, fmt.Errorf("unknown log level: %s.\nAvailable levels are: debug, info, warn, error, fatal", level)
	}

	switch format {
	case "text":
		return &LogHandler{writer: w, tty: tty}, lvl, nil
	case "json":
		return json.New(w), lvl, nil
	default:
		return nil, lvl, fmt.Errorf("unknown log format: %s.\nAvaialable formats are: text, json", format)
	}
}
