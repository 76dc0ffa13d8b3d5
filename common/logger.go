package common

import (
	"fmt"
	"log"
)

const (
	confLoggerLevel = "gsm.log.level"
)

const (
	defaultLoggerLevel = Info
)

type LoggerLevel int

const (
	Error LoggerLevel = iota
	Info
	Debug
)

type Logger interface {
	Debug(string, ...interface{})
	Info(string, ...interface{})
	Error(string, ...interface{})
}

// Returns a logger that prefixes every line with the formatted value.
// Used to scope log output to a component or connection.
func FormatLogger(base Logger, format string, args ...interface{}) Logger {
	return &formattedLogger{base, fmt.Sprintf(format, args...)}
}

func NewStandardLogger(c Config) Logger {
	return &standardLogger{LoggerLevel(c.OptionalInt(confLoggerLevel, int(defaultLoggerLevel)))}
}

type standardLogger struct {
	level LoggerLevel
}

func (s *standardLogger) Debug(format string, vals ...interface{}) {
	if s.level >= Debug {
		emit(format, vals...)
	}
}

func (s *standardLogger) Info(format string, vals ...interface{}) {
	if s.level >= Info {
		emit(format, vals...)
	}
}

func (s *standardLogger) Error(format string, vals ...interface{}) {
	if s.level >= Error {
		emit(format, vals...)
	}
}

func emit(format string, vals ...interface{}) {
	log.Println(fmt.Sprintf(format, vals...))
}

type formattedLogger struct {
	log    Logger
	prefix string
}

func (f *formattedLogger) Debug(format string, vals ...interface{}) {
	f.log.Debug(fmt.Sprintf("%v: %v", f.prefix, format), vals...)
}

func (f *formattedLogger) Info(format string, vals ...interface{}) {
	f.log.Info(fmt.Sprintf("%v: %v", f.prefix, format), vals...)
}

func (f *formattedLogger) Error(format string, vals ...interface{}) {
	f.log.Error(fmt.Sprintf("%v: %v", f.prefix, format), vals...)
}
