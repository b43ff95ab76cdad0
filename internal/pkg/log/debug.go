package log

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap/zapcore"
)

// memoryLogger implements the DebugLogger interface, messages are kept in memory.
// All derived loggers share one sink, so messages logged through a component
// scope stay visible on the root logger the tests assert on.
type memoryLogger struct {
	sink      *memorySink
	component string
	attrs     []any
}

type memorySink struct {
	lock     *sync.Mutex
	messages []message
	writer   io.Writer
}

type message struct {
	level zapcore.Level
	text  string
}

func NewDebugLogger() DebugLogger {
	return &memoryLogger{sink: &memorySink{lock: &sync.Mutex{}}}
}

func (l *memoryLogger) log(level zapcore.Level, text string) {
	l.sink.lock.Lock()
	defer l.sink.lock.Unlock()
	if l.component != "" {
		text = fmt.Sprintf("[%s] %s", l.component, text)
	}
	l.sink.messages = append(l.sink.messages, message{level: level, text: text})
	if l.sink.writer != nil {
		fmt.Fprintf(l.sink.writer, "%s  %s\n", level.CapitalString(), text)
	}
}

func (l *memoryLogger) Debug(_ context.Context, msg string) { l.log(DebugLevel, msg) }
func (l *memoryLogger) Info(_ context.Context, msg string)  { l.log(InfoLevel, msg) }
func (l *memoryLogger) Warn(_ context.Context, msg string)  { l.log(WarnLevel, msg) }
func (l *memoryLogger) Error(_ context.Context, msg string) { l.log(ErrorLevel, msg) }

func (l *memoryLogger) Debugf(_ context.Context, template string, args ...any) {
	l.log(DebugLevel, fmt.Sprintf(template, args...))
}

func (l *memoryLogger) Infof(_ context.Context, template string, args ...any) {
	l.log(InfoLevel, fmt.Sprintf(template, args...))
}

func (l *memoryLogger) Warnf(_ context.Context, template string, args ...any) {
	l.log(WarnLevel, fmt.Sprintf(template, args...))
}

func (l *memoryLogger) Errorf(_ context.Context, template string, args ...any) {
	l.log(ErrorLevel, fmt.Sprintf(template, args...))
}

func (l *memoryLogger) With(args ...any) Logger {
	clone := *l
	clone.attrs = append(clone.attrs[:len(clone.attrs):len(clone.attrs)], args...)
	return &clone
}

func (l *memoryLogger) WithComponent(component string) Logger {
	clone := *l
	if clone.component != "" {
		component = clone.component + "." + component
	}
	clone.component = component
	return &clone
}

func (l *memoryLogger) Sync() error {
	return nil
}

func (l *memoryLogger) ConnectTo(writer io.Writer) {
	l.sink.lock.Lock()
	defer l.sink.lock.Unlock()
	l.sink.writer = writer
}

func (l *memoryLogger) Truncate() {
	l.sink.lock.Lock()
	defer l.sink.lock.Unlock()
	l.sink.messages = nil
}

func (l *memoryLogger) filtered(levels ...zapcore.Level) string {
	l.sink.lock.Lock()
	defer l.sink.lock.Unlock()
	var out strings.Builder
	for _, m := range l.sink.messages {
		for _, level := range levels {
			if m.level == level {
				out.WriteString(m.level.CapitalString())
				out.WriteString("  ")
				out.WriteString(m.text)
				out.WriteString("\n")
				break
			}
		}
	}
	return out.String()
}

func (l *memoryLogger) AllMessages() string {
	return l.filtered(DebugLevel, InfoLevel, WarnLevel, ErrorLevel)
}

func (l *memoryLogger) DebugMessages() string { return l.filtered(DebugLevel) }
func (l *memoryLogger) InfoMessages() string  { return l.filtered(InfoLevel) }
func (l *memoryLogger) WarnMessages() string  { return l.filtered(WarnLevel) }
func (l *memoryLogger) ErrorMessages() string { return l.filtered(ErrorLevel) }

func (l *memoryLogger) WarnAndErrorMessages() string {
	return l.filtered(WarnLevel, ErrorLevel)
}
