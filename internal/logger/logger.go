package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	sugar *zap.SugaredLogger
}

func New(logLevel string) *Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLogLevel(logLevel))
	cfg.OutputPaths = []string{"stdout"}
	cfg.DisableCaller = logLevel != "debug"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	base, err := cfg.Build()
	if err != nil {
		base = zap.NewNop()
	}

	return &Logger{
		sugar: base.Sugar(),
	}
}

// NewSilent drops everything below error level
func NewSilent() *Logger {
	return New("error")
}

func NewNop() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

func parseLogLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ValidLevel reports whether level is one of debug, info, warn, error
func ValidLevel(level string) bool {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}

func (l *Logger) Sync() error {
	return l.sugar.Sync()
}

func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		sugar: l.sugar.With("component", component),
	}
}

func (l *Logger) WithFields(fields ...interface{}) *Logger {
	return &Logger{
		sugar: l.sugar.With(fields...),
	}
}

func (l *Logger) RouteOperation(action, network, mask, gateway string, iface, metric uint32) {
	l.sugar.Infow("Route table changed",
		zap.String("action", action),
		zap.String("network", network),
		zap.String("mask", mask),
		zap.String("gateway", gateway),
		zap.Uint32("interface", iface),
		zap.Uint32("metric", metric))
}

func (l *Logger) InterfaceChange(eventType string, iface uint32, removed int) {
	l.sugar.Infow("Interface change applied",
		zap.String("event", eventType),
		zap.Uint32("interface", iface),
		zap.Int("routes_removed", removed))
}

func (l *Logger) CircuitChange(action string, input, output uint32, accepted bool) {
	l.sugar.Infow("Circuit map changed",
		zap.String("action", action),
		zap.Uint32("input", input),
		zap.Uint32("output", output),
		zap.Bool("accepted", accepted))
}

func (l *Logger) GateChange(active bool) {
	l.sugar.Infow("Reconfiguration gate toggled",
		zap.Bool("active", active))
}

func (l *Logger) Decision(direction, outcome, destination string, iface uint32) {
	l.sugar.Debugw("Forwarding decision",
		zap.String("direction", direction),
		zap.String("outcome", outcome),
		zap.String("destination", destination),
		zap.Uint32("interface", iface))
}

func (l *Logger) ReconfigureOperation(total, installed, rejected int, duration int64) {
	l.sugar.Infow("Reconfiguration completed",
		zap.Int("total", total),
		zap.Int("installed", installed),
		zap.Int("rejected", rejected),
		zap.Int64("duration_ms", duration))
}

func (l *Logger) BatchOperation(action string, total, handled, failed int, duration int64) {
	l.sugar.Infow("Batch operation completed",
		zap.String("action", action),
		zap.Int("total", total),
		zap.Int("handled", handled),
		zap.Int("failed", failed),
		zap.Int64("duration_ms", duration))
}

func (l *Logger) ConfigLoaded(file string, interfaces, routes, circuits int) {
	l.sugar.Infow("Scenario loaded",
		zap.String("scenario_file", file),
		zap.Int("interfaces", interfaces),
		zap.Int("routes", routes),
		zap.Int("circuits", circuits))
}
