// Package craftlog provides the process-wide logger: colored level-tagged
// console output plus optional rotated JSON file output, built on zap.
package craftlog

import (
	"fmt"
	"os"
	"sync"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level is the logger's own severity scale. SuccessLevel has no zapcore
// equivalent; it is logged at InfoLevel but rendered distinctively on the
// console, for reporting a completed lifecycle run.
type Level int8

const (
	DebugLevel Level = iota - 1
	InfoLevel
	SuccessLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	case FatalLevel:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

var levelTag = map[Level]string{
	DebugLevel:   "DEBUG",
	InfoLevel:    "INFO",
	SuccessLevel: "OK",
	WarnLevel:    "WARN",
	ErrorLevel:   "ERROR",
	FatalLevel:   "FATAL",
}

func coloredTag(l Level) string {
	tag := "[" + levelTag[l] + "]"
	switch l {
	case DebugLevel:
		return color.MagentaString(tag)
	case SuccessLevel:
		return color.GreenString(tag)
	case WarnLevel:
		return color.YellowString(tag)
	case ErrorLevel, FatalLevel:
		return color.RedString(tag)
	default:
		return tag
	}
}

// Options configures a Logger.
type Options struct {
	ConsoleLevel Level
	Color        bool

	// FilePath enables rotated JSON file output when non-empty.
	FilePath   string
	FileLevel  Level
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// DefaultOptions logs Info+ to the console in color, with file output
// disabled.
func DefaultOptions() Options {
	return Options{
		ConsoleLevel: InfoLevel,
		Color:        true,
		FileLevel:    DebugLevel,
		MaxSizeMB:    50,
		MaxBackups:   5,
		MaxAgeDays:   28,
	}
}

// Logger wraps zap.SugaredLogger, adding the custom Level vocabulary and
// a With helper for the part/step fields the lifecycle facade attaches to
// every message.
type Logger struct {
	*zap.SugaredLogger
	opts Options
}

var (
	global     *Logger
	globalOnce sync.Once
)

// Init configures the global logger. Only the first call takes effect.
func Init(opts Options) {
	globalOnce.Do(func() {
		global = New(opts)
	})
}

// Get returns the global logger, initializing it with DefaultOptions if
// Init was never called.
func Get() *Logger {
	if global == nil {
		Init(DefaultOptions())
	}
	return global
}

// New builds a standalone Logger instance, independent of the global one.
func New(opts Options) *Logger {
	var cores []zapcore.Core

	consoleCfg := zap.NewProductionEncoderConfig()
	consoleCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	consoleCfg.LevelKey = zapcore.OmitKey
	consoleEncoder := zapcore.NewConsoleEncoder(consoleCfg)
	consoleCore := zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stdout), zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= opts.ConsoleLevel.zapLevel()
	}))
	cores = append(cores, consoleCore)

	if opts.FilePath != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		fileEncoder := zapcore.NewJSONEncoder(fileCfg)
		fileCore := zapcore.NewCore(fileEncoder, zapcore.AddSync(rotator), zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
			return lvl >= opts.FileLevel.zapLevel()
		}))
		cores = append(cores, fileCore)
	}

	zl := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
	return &Logger{SugaredLogger: zl.Sugar(), opts: opts}
}

func (l *Logger) logf(level Level, template string, args ...any) {
	msg := coloredTag(level) + " " + fmt.Sprintf(template, args...)
	switch level {
	case DebugLevel:
		l.SugaredLogger.Debug(msg)
	case WarnLevel:
		l.SugaredLogger.Warn(msg)
	case ErrorLevel:
		l.SugaredLogger.Error(msg)
	case FatalLevel:
		l.SugaredLogger.Fatal(msg)
	default:
		l.SugaredLogger.Info(msg)
	}
}

// With attaches the part name and/or step name to every subsequent
// message, mirroring the contextual prefix the lifecycle facade needs
// when running several parts through the same logger.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(args...), opts: l.opts}
}

func (l *Logger) Debugf(template string, args ...any)   { l.logf(DebugLevel, template, args...) }
func (l *Logger) Infof(template string, args ...any)     { l.logf(InfoLevel, template, args...) }
func (l *Logger) Successf(template string, args ...any)  { l.logf(SuccessLevel, template, args...) }
func (l *Logger) Warnf(template string, args ...any)     { l.logf(WarnLevel, template, args...) }
func (l *Logger) Errorf(template string, args ...any)    { l.logf(ErrorLevel, template, args...) }
func (l *Logger) Fatalf(template string, args ...any)    { l.logf(FatalLevel, template, args...) }
func (l *Logger) Sync() error                            { return l.SugaredLogger.Sync() }

func Debugf(template string, args ...any)  { Get().Debugf(template, args...) }
func Infof(template string, args ...any)   { Get().Infof(template, args...) }
func Successf(template string, args ...any) { Get().Successf(template, args...) }
func Warnf(template string, args ...any)   { Get().Warnf(template, args...) }
func Errorf(template string, args ...any)  { Get().Errorf(template, args...) }
func Fatalf(template string, args ...any)  { Get().Fatalf(template, args...) }
