package utils

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOptions describes where a component logger writes
type LogOptions struct {
	Output     string // stdout, file, both
	FilePath   string
	MaxSize    int // MB
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// NewLogger builds a *log.Logger writing to stdout, a rotating file, or both.
// The returned closer releases the file handle; it is never nil.
func NewLogger(prefix string, opts LogOptions) (*log.Logger, io.Closer) {
	flags := log.LstdFlags | log.Lmicroseconds | log.LUTC

	if opts.Output == "" || opts.Output == "stdout" || opts.FilePath == "" {
		return log.New(os.Stdout, prefix, flags), nopCloser{}
	}

	if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0o755); err != nil {
		l := log.New(os.Stdout, prefix, flags)
		l.Printf("logger: failed to create log directory for %s: %v", opts.FilePath, err)
		return l, nopCloser{}
	}

	rotator := &lumberjack.Logger{
		Filename:   opts.FilePath,
		MaxSize:    opts.MaxSize,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAge,
		Compress:   opts.Compress,
	}

	var w io.Writer = rotator
	if opts.Output == "both" {
		w = io.MultiWriter(os.Stdout, rotator)
	}
	return log.New(w, prefix, flags), rotator
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
