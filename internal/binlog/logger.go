package binlog

import (
	"github.com/siddontang/go-log/loggers"
	"go.uber.org/zap"
)

// syncerLogger routes go-mysql's logging into zap.
type syncerLogger struct {
	*zap.SugaredLogger
}

var _ loggers.Advanced = syncerLogger{}

func newSyncerLogger(logger *zap.Logger) syncerLogger {
	return syncerLogger{SugaredLogger: logger.Named("go-mysql").WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (l syncerLogger) Print(args ...interface{}) {
	l.Info(args...)
}

func (l syncerLogger) Printf(format string, args ...interface{}) {
	l.Infof(format, args...)
}

func (l syncerLogger) Println(args ...interface{}) {
	l.Infoln(args...)
}
