package app

import (
	"io"

	log "github.com/sirupsen/logrus"
)

func quietLogger() *log.Entry {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger.WithField("component", "test")
}
