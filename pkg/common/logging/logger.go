/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package logging enables setting custom logger implementation.
//
//  Basic Flow:
//  1) Initialize logger provider (optional, zap/logfmt on stderr otherwise)
//  2) Create new logger for specific module
//  3) Call log info
package logging

import (
	"sync"

	"github.com/yusumcheung1103/delphi-fabric/pkg/core/logging/api"
	"github.com/yusumcheung1103/delphi-fabric/pkg/core/logging/metadata"
	"github.com/yusumcheung1103/delphi-fabric/pkg/core/logging/zaplog"
)

//Logger basic implementation of api.Logger interface
type Logger struct {
	instance api.Logger // access only via Logger.logger()
	module   string
	once     sync.Once
}

// logger factory singleton - access only via loggerProvider()
var loggerProviderInstance api.LoggerProvider
var loggerProviderOnce sync.Once

// Level defines all available log levels for log messages.
type Level int

// Log levels.
const (
	CRITICAL Level = iota
	ERROR
	WARNING
	INFO
	DEBUG
)

const (
	loggerNotInitializedMsg = "Default logger initialized (call logging.Initialize to use a custom logger)"
	loggerModule            = "delphi/common"
)

// NewLogger creates and returns a Logger object based on the module name.
// The underlying logger is created on first use.
func NewLogger(module string) *Logger {
	return &Logger{module: module}
}

func loggerProvider() api.LoggerProvider {
	loggerProviderOnce.Do(func() {
		p, err := zaplog.New(zaplog.Config{})
		if err != nil {
			panic(err)
		}
		loggerProviderInstance = p
		loggerProviderInstance.GetLogger(loggerModule).Debug(loggerNotInitializedMsg)
	})
	return loggerProviderInstance
}

//Initialize sets new logger which takes over logging operations.
//It has no effect once any logger has been used.
func Initialize(l api.LoggerProvider) {
	loggerProviderOnce.Do(func() {
		loggerProviderInstance = l
		loggerProviderInstance.GetLogger(loggerModule).Debug("Logger provider initialized")
	})
}

func leveler() (api.Leveler, bool) {
	l, ok := loggerProvider().(api.Leveler)
	return l, ok
}

//SetLevel sets the log level for the given module when the provider supports levels
func SetLevel(module string, level Level) {
	if l, ok := leveler(); ok {
		l.SetLevel(module, api.Level(level))
	}
}

//GetLevel returns the log level for the given module, INFO when the provider has no levels
func GetLevel(module string) Level {
	if l, ok := leveler(); ok {
		return Level(l.GetLevel(module))
	}
	return INFO
}

//IsEnabledFor checks if the given log level is enabled for the given module
func IsEnabledFor(module string, level Level) bool {
	if l, ok := leveler(); ok {
		return l.IsEnabledFor(module, api.Level(level))
	}
	return level <= INFO
}

// LogLevel returns the log level from a string representation.
func LogLevel(level string) (Level, error) {
	l, err := metadata.ParseLevel(level)
	return Level(l), err
}

//Fatal calls Fatal function of underlying logger
func (l *Logger) Fatal(args ...interface{}) {
	l.logger().Fatal(args...)
}

//Fatalf calls Fatalf function of underlying logger
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.logger().Fatalf(format, args...)
}

//Panic calls Panic function of underlying logger
func (l *Logger) Panic(args ...interface{}) {
	l.logger().Panic(args...)
}

//Panicf calls Panicf function of underlying logger
func (l *Logger) Panicf(format string, args ...interface{}) {
	l.logger().Panicf(format, args...)
}

//Debug calls Debug function of underlying logger
func (l *Logger) Debug(args ...interface{}) {
	l.logger().Debug(args...)
}

//Debugf calls Debugf function of underlying logger
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logger().Debugf(format, args...)
}

//Info calls Info function of underlying logger
func (l *Logger) Info(args ...interface{}) {
	l.logger().Info(args...)
}

//Infof calls Infof function of underlying logger
func (l *Logger) Infof(format string, args ...interface{}) {
	l.logger().Infof(format, args...)
}

//Warn calls Warn function of underlying logger
func (l *Logger) Warn(args ...interface{}) {
	l.logger().Warn(args...)
}

//Warnf calls Warnf function of underlying logger
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logger().Warnf(format, args...)
}

//Error calls Error function of underlying logger
func (l *Logger) Error(args ...interface{}) {
	l.logger().Error(args...)
}

//Errorf calls Errorf function of underlying logger
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logger().Errorf(format, args...)
}

// With returns a logger of the same module carrying the given key/value pairs
func (l *Logger) With(keyvals ...interface{}) api.Logger {
	return l.logger().With(keyvals...)
}

func (l *Logger) logger() api.Logger {
	l.once.Do(func() {
		l.instance = loggerProvider().GetLogger(l.module)
	})
	return l.instance
}
