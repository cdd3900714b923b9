package logger

import (
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const (
	LOGGER_FILE = "rot.log"
)

var (
	logger *zap.Logger
	level  = zap.NewAtomicLevelAt(zap.InfoLevel)
)

// SetDebug switches the global logger between debug and info level.
func SetDebug(debug bool) {
	// If not debug keep at info level
	if debug {
		level.SetLevel(zap.DebugLevel)
	} else {
		level.SetLevel(zap.InfoLevel)
	}
}

// NewLogger builds a development style logger writing to writer.
func NewLogger(writer io.Writer, level zap.AtomicLevel) *zap.Logger {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(writer),
		level,
	)
	return zap.New(core, zap.AddCaller(), zap.ErrorOutput(zapcore.AddSync(os.Stderr)))
}

// Create new logger
func newLogger(workingFolder string, debug bool) {
	SetDebug(debug)
	if err := os.MkdirAll(workingFolder, 0o750); err != nil {
		logger = NewLogger(os.Stderr, level)
		logger.Sugar().Warnf("failed to create log folder [%v] - %v", workingFolder, err)
		zap.ReplaceGlobals(logger)
		return
	}

	writer := &lumberjack.Logger{
		Filename:   filepath.Join(workingFolder, LOGGER_FILE),
		MaxSize:    1,
		MaxBackups: 2,
	}
	logger = NewLogger(writer, level)
	zap.ReplaceGlobals(logger)
}

// Get sugared logger from logger
func GetSugar(workingFolder string, debug bool) *zap.SugaredLogger {
	if logger == nil {
		newLogger(workingFolder, debug)
	}

	return logger.Sugar()
}

// Sync on defer (call it with defer)
func Defer() {
	if logger != nil {
		_ = logger.Sync()
	}
}
