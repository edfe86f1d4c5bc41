// Package logging holds the process-wide leveled logger.
package logging

import (
	"os"

	log "github.com/withmandala/go-log"
)

var logger = log.New(os.Stderr).WithColor()

// L returns the shared logger.
func L() *log.Logger {
	return logger
}

// SetDebug toggles debug output. Call it once at startup.
func SetDebug(on bool) {
	if on {
		logger.WithDebug()
		return
	}
	logger.WithoutDebug()
}
