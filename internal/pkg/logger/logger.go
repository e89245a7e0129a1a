package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Init configures the standard logrus logger. Production emits JSON,
// everything else uses the human-readable text formatter.
func Init(isProduction bool, level string) {
	logrus.SetOutput(os.Stdout)

	if isProduction {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.WithField("level", level).Warn("unknown log level, falling back to info")
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}
