/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package zaplog is a logging provider backed by zap. Module level filtering
// is done before entries reach zap so that levels can change at runtime.
package zaplog

import (
	"io"
	"os"
	"strings"

	zaplogfmt "github.com/sykesm/zap-logfmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/yusumcheung1103/delphi-fabric/pkg/core/logging/api"
	"github.com/yusumcheung1103/delphi-fabric/pkg/core/logging/metadata"
)

// Encoding formats understood by the provider
const (
	FormatLogfmt  = "logfmt"
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Config for the zap provider
type Config struct {
	// Format is one of logfmt (default), json or console
	Format string
	// Level is the default level for modules without an explicit level
	Level string
	// Writer defaults to stderr
	Writer io.Writer
}

// Provider creates module loggers sharing one zap core
type Provider struct {
	base   *zap.Logger
	levels *metadata.ModuleLevels
}

// New returns a provider for the given config
func New(cfg Config) (*Provider, error) {
	levels := &metadata.ModuleLevels{}
	if cfg.Level != "" {
		lvl, err := metadata.ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		levels.SetLevel("", lvl)
	}

	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}

	core := zapcore.NewCore(newEncoder(cfg.Format), zapcore.AddSync(w), zapcore.DebugLevel)
	return &Provider{
		base:   zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2)),
		levels: levels,
	}, nil
}

func newEncoder(format string) zapcore.Encoder {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.NameKey = "module"

	switch strings.ToLower(format) {
	case FormatJSON:
		return zapcore.NewJSONEncoder(encCfg)
	case FormatConsole:
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewConsoleEncoder(encCfg)
	default:
		return zaplogfmt.NewEncoder(encCfg)
	}
}

// GetLogger returns a logger for the given module
func (p *Provider) GetLogger(module string) api.Logger {
	return &logger{
		module: module,
		levels: p.levels,
		sugar:  p.base.Named(module).Sugar(),
	}
}

// SetLevel sets the level of a module. The empty module sets the default.
func (p *Provider) SetLevel(module string, level api.Level) {
	p.levels.SetLevel(module, level)
}

// GetLevel returns the level of a module
func (p *Provider) GetLevel(module string) api.Level {
	return p.levels.GetLevel(module)
}

// IsEnabledFor reports whether entries of the given level are written for module
func (p *Provider) IsEnabledFor(module string, level api.Level) bool {
	return p.levels.IsEnabledFor(module, level)
}

// Sync flushes buffered entries
func (p *Provider) Sync() error {
	return p.base.Sync()
}

type logger struct {
	module string
	levels *metadata.ModuleLevels
	sugar  *zap.SugaredLogger
}

func (l *logger) enabled(level api.Level) bool {
	return l.levels.IsEnabledFor(l.module, level)
}

func (l *logger) Fatal(v ...interface{}) { l.sugar.Fatal(v...) }

func (l *logger) Fatalf(format string, v ...interface{}) { l.sugar.Fatalf(format, v...) }

func (l *logger) Panic(v ...interface{}) { l.sugar.Panic(v...) }

func (l *logger) Panicf(format string, v ...interface{}) { l.sugar.Panicf(format, v...) }

func (l *logger) Debug(args ...interface{}) {
	if l.enabled(api.DEBUG) {
		l.sugar.Debug(args...)
	}
}

func (l *logger) Debugf(format string, args ...interface{}) {
	if l.enabled(api.DEBUG) {
		l.sugar.Debugf(format, args...)
	}
}

func (l *logger) Info(args ...interface{}) {
	if l.enabled(api.INFO) {
		l.sugar.Info(args...)
	}
}

func (l *logger) Infof(format string, args ...interface{}) {
	if l.enabled(api.INFO) {
		l.sugar.Infof(format, args...)
	}
}

func (l *logger) Warn(args ...interface{}) {
	if l.enabled(api.WARNING) {
		l.sugar.Warn(args...)
	}
}

func (l *logger) Warnf(format string, args ...interface{}) {
	if l.enabled(api.WARNING) {
		l.sugar.Warnf(format, args...)
	}
}

func (l *logger) Error(args ...interface{}) {
	if l.enabled(api.ERROR) {
		l.sugar.Error(args...)
	}
}

func (l *logger) Errorf(format string, args ...interface{}) {
	if l.enabled(api.ERROR) {
		l.sugar.Errorf(format, args...)
	}
}

func (l *logger) With(keyvals ...interface{}) api.Logger {
	return &logger{module: l.module, levels: l.levels, sugar: l.sugar.With(keyvals...)}
}
