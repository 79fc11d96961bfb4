// Copyright 2024 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logutil

import (
	"context"
	"os"
	"sync/atomic"

	"github.com/matrixorigin/matrixflow/pkg/common/moerr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig serializes log related config in toml/json.
type LogConfig struct {
	// Level log level, default is info
	Level string `toml:"level" json:"level"`
	// Format log format, console or json, default is console
	Format string `toml:"format" json:"format"`
	// Filename log file path, leave empty to write to stderr
	Filename string `toml:"filename" json:"filename"`
	// MaxSize max size of a single log file, in MB
	MaxSize int `toml:"max-size" json:"max-size"`
	// MaxDays max days to retain old log files
	MaxDays int `toml:"max-days" json:"max-days"`
	// MaxBackups max number of old log files to retain
	MaxBackups int `toml:"max-backups" json:"max-backups"`
	// StacktraceLevel level at and above which stacktraces are captured, default is fatal
	StacktraceLevel string `toml:"stacktrace-level" json:"stacktrace-level"`
}

// SetupMOLogger builds the process-wide logger from conf and installs it
// as the zap global. Later calls replace the earlier logger.
func SetupMOLogger(conf *LogConfig) {
	logger := newMOLogger(conf)
	replaceGlobalLogger(logger)
	Info("log init finished", zap.String("level", conf.Level), zap.String("format", conf.Format))
}

func newMOLogger(conf *LogConfig) *zap.Logger {
	core := zapcore.NewCore(conf.getEncoder(), conf.getSyncer(), conf.getLevel())
	return zap.New(core, conf.getOptions()...)
}

func (cfg *LogConfig) getLevel() zap.AtomicLevel {
	if cfg.Level == "" {
		return zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	var lvl zapcore.Level
	if err := lvl.Set(cfg.Level); err != nil {
		panic(moerr.NewBadConfig(context.TODO(), "log level: %s", cfg.Level))
	}
	return zap.NewAtomicLevelAt(lvl)
}

func (cfg *LogConfig) getEncoder() zapcore.Encoder {
	return getLoggerEncoder(cfg.Format)
}

func getLoggerEncoder(format string) zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05.000000 -0700")
	switch format {
	case "json":
		return zapcore.NewJSONEncoder(encoderConfig)
	case "console", "":
		return zapcore.NewConsoleEncoder(encoderConfig)
	default:
		panic(moerr.NewInternalError(context.TODO(), "unsupported log format: %s", format))
	}
}

func (cfg *LogConfig) getSyncer() zapcore.WriteSyncer {
	if cfg.Filename != "" {
		return zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    cfg.MaxSize,
			MaxAge:     cfg.MaxDays,
			MaxBackups: cfg.MaxBackups,
			LocalTime:  true,
		})
	}
	return getConsoleSyncer()
}

func getConsoleSyncer() zapcore.WriteSyncer {
	return zapcore.Lock(os.Stderr)
}

func (cfg *LogConfig) getOptions() []zap.Option {
	return []zap.Option{zap.AddStacktrace(cfg.getStacktraceLevel()), zap.AddCaller()}
}

func (cfg *LogConfig) getStacktraceLevel() zapcore.Level {
	if cfg.StacktraceLevel == "" {
		return zapcore.FatalLevel
	}
	var lvl zapcore.Level
	if err := lvl.Set(cfg.StacktraceLevel); err != nil {
		panic(moerr.NewBadConfig(context.TODO(), "stacktrace level: %s", cfg.StacktraceLevel))
	}
	return lvl
}

var _globalLogger atomic.Value

func replaceGlobalLogger(logger *zap.Logger) {
	_globalLogger.Store(logger)
	zap.ReplaceGlobals(logger)
}

// GetGlobalLogger returns the installed logger, setting up a console
// logger at info level on first use if none was installed.
func GetGlobalLogger() *zap.Logger {
	if l, ok := _globalLogger.Load().(*zap.Logger); ok && l != nil {
		return l
	}
	SetupMOLogger(&LogConfig{Level: "info", Format: "console"})
	return _globalLogger.Load().(*zap.Logger)
}

// Adjust returns the given logger, or the global one when nil.
func Adjust(logger *zap.Logger) *zap.Logger {
	if logger != nil {
		return logger
	}
	return GetGlobalLogger()
}
