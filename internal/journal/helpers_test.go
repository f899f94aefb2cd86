package journal

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nerrad567/gray-logic-mqtthelper/internal/infrastructure/logging"
)

func observedLogger() (*logging.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return logging.FromZap(zap.New(core)), logs
}
