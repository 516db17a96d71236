package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

func (l Level) zap() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	case LevelFatal:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

type Logger struct {
	s *zap.SugaredLogger
}

var encoderConfig = zapcore.EncoderConfig{
	TimeKey:          "time",
	LevelKey:         "level",
	NameKey:          "logger",
	MessageKey:       "msg",
	LineEnding:       zapcore.DefaultLineEnding,
	EncodeTime:       zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05"),
	EncodeLevel:      zapcore.CapitalLevelEncoder,
	EncodeName:       zapcore.FullNameEncoder,
	EncodeDuration:   zapcore.StringDurationEncoder,
	ConsoleSeparator: " ",
}

// New writes every entry at or above level to filePath. When includeStdout is
// set, Info and above are mirrored to stdout.
func New(filePath string, level Level, includeStdout bool) (*Logger, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	enc := zapcore.NewConsoleEncoder(encoderConfig)
	cores := []zapcore.Core{
		zapcore.NewCore(enc, zapcore.AddSync(f), level.zap()),
	}

	// Debug stays out of stdout so it does not drown CLI output
	if includeStdout {
		stdoutLevel := level
		if stdoutLevel < LevelInfo {
			stdoutLevel = LevelInfo
		}
		cores = append(cores, zapcore.NewCore(enc.Clone(), zapcore.Lock(os.Stdout), stdoutLevel.zap()))
	}

	return NewWithCore(zapcore.NewTee(cores...)), nil
}

// NewWithCore wraps an existing zap core. Tests pass an observer core.
func NewWithCore(core zapcore.Core) *Logger {
	return &Logger{s: zap.New(core).Sugar()}
}

// NewNop discards everything.
func NewNop() *Logger {
	return &Logger{s: zap.NewNop().Sugar()}
}

func ParseLevel(lvl string) Level {
	switch strings.ToLower(lvl) {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Named returns a child logger tagged with name, e.g. a provider id.
func (l *Logger) Named(name string) *Logger {
	return &Logger{s: l.s.Named(name)}
}

// With returns a child logger carrying the given key/value pairs.
func (l *Logger) With(kv ...any) *Logger {
	return &Logger{s: l.s.With(kv...)}
}

func (l *Logger) Debug(f string, v ...any) { l.s.Debugf(f, v...) }
func (l *Logger) Info(f string, v ...any)  { l.s.Infof(f, v...) }
func (l *Logger) Warn(f string, v ...any)  { l.s.Warnf(f, v...) }
func (l *Logger) Error(f string, v ...any) { l.s.Errorf(f, v...) }
func (l *Logger) Fatal(f string, v ...any) { l.s.Fatalf(f, v...) }

func (l *Logger) Sync() error { return l.s.Sync() }

func (l *Logger) Write(p []byte) (n int, err error) {
	// Echo and other libraries often include a newline at the end
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		l.Info("%s", msg)
	}
	return len(p), nil
}
