package logger

import (
	"fmt"

	"go.uber.org/zap"

	"rentpay/internal/config"
)

// NewLogger builds the process-wide zap logger. Development mode switches to
// the console encoder with debug level.
func NewLogger(cfg *config.Config) *zap.Logger {
	var logger *zap.Logger
	var err error
	if cfg.Server.Env == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(fmt.Errorf("failed to build logger: %v", err))
	}
	return logger
}

type gooseLogger struct {
	logger *zap.Logger
}

func (g gooseLogger) Printf(format string, v ...interface{}) {
	g.logger.Info(fmt.Sprintf(format, v...))
}

func (g gooseLogger) Fatalf(format string, v ...interface{}) {
	g.logger.Fatal(fmt.Sprintf(format, v...))
}

// GooseZapLogger adapts zap for goose migration output.
func GooseZapLogger(logger *zap.Logger) gooseLogger {
	return gooseLogger{logger: logger.With(zap.String("component", "migrations"))}
}
