/*
Copyright © contributors to diskshrink.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.

SPDX-License-Identifier: Apache-2.0
*/

// Package log provides structured, context-carried logging for diskshrink.
// Loggers are passed through context.Context so every layer logs with the
// key-value pairs accumulated by its callers.
package log

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type contextKey struct{}

// Logger is a leveled, structured logger. The zero value is not usable;
// obtain one via New or FromContext.
type Logger struct {
	sugar *zap.SugaredLogger
}

// New creates a Logger writing JSON records to stderr. When debug is true
// the debug level is enabled as well.
func New(debug bool) Logger {
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = true
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	zapLogger, err := cfg.Build()
	if err != nil {
		// The production config never fails to build; fall back to a
		// no-op logger rather than panicking inside logging setup.
		zapLogger = zap.NewNop()
	}
	return Logger{sugar: zapLogger.Sugar()}
}

// NewNop returns a Logger discarding every record. Useful in tests.
func NewNop() Logger {
	return Logger{sugar: zap.NewNop().Sugar()}
}

// FromContext returns the Logger stored in ctx, or a no-op Logger when
// none was stored.
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(contextKey{}).(Logger); ok {
		return logger
	}
	return NewNop()
}

// IntoContext returns a copy of ctx carrying the given Logger.
func IntoContext(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// WithValues returns a Logger with additional key-value pairs attached to
// every record.
func (l Logger) WithValues(keysAndValues ...interface{}) Logger {
	return Logger{sugar: l.sugar.With(keysAndValues...)}
}

// WithName returns a Logger with the given name segment appended.
func (l Logger) WithName(name string) Logger {
	return Logger{sugar: l.sugar.Named(name)}
}

// Debug logs a message at debug level with key-value pairs.
func (l Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

// Info logs a message at info level with key-value pairs.
func (l Logger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

// Warning logs a message at warning level with key-value pairs.
func (l Logger) Warning(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

// Error logs an error with a message and key-value pairs.
func (l Logger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}

// Sync flushes buffered records. Best-effort; safe to call on shutdown.
func (l Logger) Sync() {
	_ = l.sugar.Sync()
}
