// Package logging builds the loggers shared by the CLI, daemon, and server.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// New returns a logger with the given prefix. When path is non-empty the
// logger writes to a size-rotated file at that path; otherwise it writes
// to stderr.
func New(path, prefix string) *log.Logger {
	var w io.Writer = os.Stderr
	if path != "" {
		w = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    20, // megabytes
			MaxBackups: 3,
			MaxAge:     14, // days
			Compress:   true,
		}
	}
	return log.New(w, prefix, log.LstdFlags)
}
