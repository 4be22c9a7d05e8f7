package configuration

import (
	"os"

	"github.com/sirupsen/logrus"
)

// serviceHook stamps every entry with the server name.
type serviceHook struct {
	name string
}

func (h serviceHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h serviceHook) Fire(entry *logrus.Entry) error {
	entry.Data["service"] = h.name
	return nil
}

// NewLogger builds the process logger. Unknown levels fall back to info.
func NewLogger(config *Properties) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.JSONFormatter{})
	if config.Server.Name != "" {
		logger.AddHook(serviceHook{name: config.Server.Name})
	}

	level, err := logrus.ParseLevel(config.LogLevel)
	if err != nil {
		logger.WithError(err).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
