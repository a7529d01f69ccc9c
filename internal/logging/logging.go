// Package logging points the standard logger at stderr or a rotating file.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"imu-jointcenter/internal/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Configure sets the output of the standard logger from cfg. When cfg.File
// is empty logs go to stderr, otherwise to a lumberjack-rotated file; with
// console set they are also copied to stderr. The returned Closer releases
// the file.
func Configure(cfg config.LogConfig, console bool) io.Closer {
	if cfg.File == "" {
		log.SetOutput(os.Stderr)
		return nopCloser{}
	}
	lj := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
		LocalTime:  true,
	}
	if console {
		log.SetOutput(io.MultiWriter(lj, os.Stderr))
	} else {
		log.SetOutput(lj)
	}
	return lj
}
