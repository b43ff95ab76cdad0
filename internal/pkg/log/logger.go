package log

import (
	"context"

	"go.uber.org/zap"
)

// zapLogger is the default implementation of the Logger interface.
// It wraps zap.SugaredLogger.
type zapLogger struct {
	sugared *zap.SugaredLogger
	// base carries all attributes except "component", nested components
	// replace the attribute instead of appending a second one
	base      *zap.SugaredLogger
	component string
}

func loggerFromZap(l *zap.Logger) *zapLogger {
	sugared := l.Sugar()
	return &zapLogger{sugared: sugared, base: sugared}
}

func (l *zapLogger) Debug(_ context.Context, message string) {
	l.sugared.Debug(message)
}

func (l *zapLogger) Info(_ context.Context, message string) {
	l.sugared.Info(message)
}

func (l *zapLogger) Warn(_ context.Context, message string) {
	l.sugared.Warn(message)
}

func (l *zapLogger) Error(_ context.Context, message string) {
	l.sugared.Error(message)
}

func (l *zapLogger) Debugf(_ context.Context, template string, args ...any) {
	l.sugared.Debugf(template, args...)
}

func (l *zapLogger) Infof(_ context.Context, template string, args ...any) {
	l.sugared.Infof(template, args...)
}

func (l *zapLogger) Warnf(_ context.Context, template string, args ...any) {
	l.sugared.Warnf(template, args...)
}

func (l *zapLogger) Errorf(_ context.Context, template string, args ...any) {
	l.sugared.Errorf(template, args...)
}

func (l *zapLogger) With(args ...any) Logger {
	return &zapLogger{
		sugared:   l.sugared.With(args...),
		base:      l.base.With(args...),
		component: l.component,
	}
}

func (l *zapLogger) WithComponent(component string) Logger {
	if l.component != "" {
		component = l.component + "." + component
	}
	return &zapLogger{
		sugared:   l.base.With("component", component),
		base:      l.base,
		component: component,
	}
}

func (l *zapLogger) Sync() error {
	return l.sugared.Sync()
}
