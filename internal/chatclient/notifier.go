package chatclient

import "go.uber.org/zap"

// LogNotifier reports toasts to a zap logger.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Success(msg string) { n.log.Info(msg) }
func (n *LogNotifier) Error(msg string)   { n.log.Warn(msg) }
