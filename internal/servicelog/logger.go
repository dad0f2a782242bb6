// Package servicelog wraps zap behind a small attribute-based logging
// interface so call sites never import zap directly.
package servicelog

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"
)

type lumberjackSink struct {
	*lumberjack.Logger
}

func (lumberjackSink) Sync() error {
	return nil
}

// Attrib appends a key=value pair to a log line.
type Attrib func(sb *strings.Builder)

func printer(name string, val interface{}) Attrib {
	return func(sb *strings.Builder) {
		sb.WriteString(", ")
		sb.WriteString(name)
		sb.WriteString("=")
		fmt.Fprintf(sb, "%v", val)
	}
}

func String(name, value string) Attrib     { return printer(name, value) }
func Error(err error) Attrib                { return printer("error", err) }
func Bool(name string, value bool) Attrib   { return printer(name, value) }
func Any(name string, value interface{}) Attrib { return printer(name, value) }
func Int(name string, value int) Attrib     { return printer(name, value) }
func Time(name string, value time.Time) Attrib { return printer(name, value) }
func Duration(name string, value time.Duration) Attrib { return printer(name, value) }

// Logger is the interface every component logs through.
type Logger interface {
	With(attrs ...Attrib) Logger
	Info(msg string, attrs ...Attrib)
	Error(msg string, attrs ...Attrib)
	Warn(msg string, attrs ...Attrib)
	Debug(msg string, attrs ...Attrib)
	Fatal(msg string, attrs ...Attrib)
}

// Config controls log construction.
type Config struct {
	Debug     bool
	LogFile   string // lumberjack target path; empty disables rotation and logs to stderr only
	MaxSizeMB int
	MaxBackups int
	MaxAgeDays int
}

// New builds a Logger backed by zap. Unlike a naive wrapper that returns the
// built *zap.Logger typed as Logger, this always returns the adapter type,
// which is the only thing that actually satisfies the Attrib-based methods.
func New(cfg Config) (Logger, error) {
	var zcfg zap.Config
	if cfg.Debug {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}

	if cfg.LogFile != "" {
		zap.RegisterSink("lumberjack", func(u *url.URL) (zap.Sink, error) {
			return lumberjackSink{
				Logger: &lumberjack.Logger{
					Filename:   u.Path,
					MaxSize:    orDefault(cfg.MaxSizeMB, 100),
					MaxBackups: orDefault(cfg.MaxBackups, 3),
					MaxAge:     orDefault(cfg.MaxAgeDays, 28),
				},
			}, nil
		})
		zcfg.OutputPaths = []string{"lumberjack://" + cfg.LogFile}
	}

	zl, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building zap logger: %w", err)
	}
	return &logger{zap: zl.Sugar(), debug: cfg.Debug}, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type logger struct {
	zap   *zap.SugaredLogger
	debug bool
	attrs []Attrib
}

func (l *logger) render(msg string, attrs ...Attrib) string {
	var sb strings.Builder
	sb.WriteString(msg)
	for _, a := range l.attrs {
		a(&sb)
	}
	for _, a := range attrs {
		a(&sb)
	}
	return sb.String()
}

func (l *logger) Info(msg string, attrs ...Attrib)  { l.zap.Info(l.render(msg, attrs...)) }
func (l *logger) Error(msg string, attrs ...Attrib) { l.zap.Error(l.render(msg, attrs...)) }
func (l *logger) Warn(msg string, attrs ...Attrib)  { l.zap.Warn(l.render(msg, attrs...)) }
func (l *logger) Fatal(msg string, attrs ...Attrib) { l.zap.Fatal(l.render(msg, attrs...)) }

func (l *logger) Debug(msg string, attrs ...Attrib) {
	if l.debug {
		l.zap.Debug(l.render(msg, attrs...))
	}
}

func (l *logger) With(attrs ...Attrib) Logger {
	merged := make([]Attrib, 0, len(l.attrs)+len(attrs))
	merged = append(merged, l.attrs...)
	merged = append(merged, attrs...)
	return &logger{zap: l.zap, debug: l.debug, attrs: merged}
}

// Nop returns a Logger that discards everything, for tests.
func Nop() Logger {
	return &logger{zap: zap.NewNop().Sugar()}
}
