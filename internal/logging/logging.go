// Package logging configures the process-wide standard logger. Log lines are
// written in logfmt shape by the callers; this package only decides where they go.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls log output. An empty File logs to stdout only.
type Options struct {
	File       string
	MaxSizeMB  int
	MaxAgeDays int
}

// Setup points the standard logger at stdout and, when a file is configured, a
// size-rotated log file. The returned closer releases the file.
func Setup(opts Options) io.Closer {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.LUTC)

	if opts.File == "" {
		log.SetOutput(os.Stdout)
		return nopCloser{}
	}

	rotating := &lumberjack.Logger{
		Filename: opts.File,
		MaxSize:  opts.MaxSizeMB,
		MaxAge:   opts.MaxAgeDays,
		Compress: true,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rotating))
	return rotating
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
