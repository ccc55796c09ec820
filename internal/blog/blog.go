/*
 * VC5 load balancer. Copyright (C) 2021-present David Coles
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */

// Package blog is the small logging seam the session driver and
// cmd/bgpd log through, the way cue/log.Log used to be a seam with no methods on it.
// Here the seam is backed by zap instead of being empty.
package blog

import (
	"go.uber.org/zap"
)

// Log is what session code calls through. Keeping it an
// interface (rather than passing *zap.Logger directly) means tests can
// swap in Nop() without constructing a real logger.
type Log interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	With(fields ...zap.Field) Log
}

type zapLog struct{ l *zap.Logger }

func New(l *zap.Logger) Log { return zapLog{l: l} }

func (z zapLog) Debug(msg string, fields ...zap.Field) { z.l.Debug(msg, fields...) }
func (z zapLog) Info(msg string, fields ...zap.Field)  { z.l.Info(msg, fields...) }
func (z zapLog) Warn(msg string, fields ...zap.Field)  { z.l.Warn(msg, fields...) }
func (z zapLog) Error(msg string, fields ...zap.Field) { z.l.Error(msg, fields...) }
func (z zapLog) With(fields ...zap.Field) Log          { return zapLog{l: z.l.With(fields...)} }

type nop struct{}

// Nop is the logging equivalent of cue/log.Nil{} — used by callers that
// don't want to wire a real logger (tests, one-off tools).
func Nop() Log { return nop{} }

func (nop) Debug(string, ...zap.Field)  {}
func (nop) Info(string, ...zap.Field)   {}
func (nop) Warn(string, ...zap.Field)   {}
func (nop) Error(string, ...zap.Field)  {}
func (n nop) With(...zap.Field) Log     { return n }

// NewProduction builds the production zap logger at the given level
// ("debug", "info", "warn", "error"; anything else falls back to info).
func NewProduction(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}
