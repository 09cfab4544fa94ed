package logging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// errUnpairedKey is logged as the value of a trailing key passed to a `*w` method without a value.
var errUnpairedKey = errors.New("unpaired log key")

type (
	impl struct {
		name  string
		level AtomicLevel
		inUTC bool

		appenders []Appender
	}

	// LogEntry embeds a zapcore Entry and slice of Fields.
	LogEntry struct {
		zapcore.Entry
		fields []zapcore.Field
	}
)

// callerDepth is the number of frames between getCaller and the code that called a Logger method:
// getCaller, write, the print helper and the Logger method itself.
const callerDepth = 4

func (imp *impl) AddAppender(appender Appender) {
	imp.appenders = append(imp.appenders, appender)
}

func (imp *impl) SetLevel(level Level) {
	imp.level.Set(level)
}

func (imp *impl) GetLevel() Level {
	return imp.level.Get()
}

func (imp *impl) Sublogger(subname string) Logger {
	name := subname
	if imp.name != "" {
		name = imp.name + "." + subname
	}
	return &impl{
		name:      name,
		level:     NewAtomicLevelAt(imp.level.Get()),
		inUTC:     imp.inUTC,
		appenders: imp.appenders,
	}
}

func (imp *impl) Sync() error {
	var err error
	for _, appender := range imp.appenders {
		err = multierr.Append(err, appender.Sync())
	}
	return err
}

// enabled reports whether an entry at logLevel is written. A debug global level enables
// everything and a debug-mode context enables debug entries.
func (imp *impl) enabled(ctx context.Context, logLevel Level) bool {
	switch {
	case GlobalLogLevel.Level() == zapcore.DebugLevel:
		return true
	case logLevel >= imp.level.Get():
		return true
	default:
		return logLevel == DEBUG && IsDebugMode(ctx)
	}
}

func (imp *impl) write(logLevel Level, msg string, fields []zapcore.Field) {
	entry := &LogEntry{fields: fields}
	entry.Time = time.Now()
	if imp.inUTC {
		entry.Time = entry.Time.UTC()
	}
	entry.Level = logLevel.AsZap()
	entry.LoggerName = imp.name
	entry.Caller = getCaller()
	entry.Message = msg

	for _, appender := range imp.appenders {
		if err := appender.Write(entry.Entry, entry.fields); err != nil {
			fmt.Fprint(os.Stderr, err)
		}
	}
}

func (imp *impl) print(ctx context.Context, logLevel Level, args []interface{}) {
	if imp.enabled(ctx, logLevel) {
		imp.write(logLevel, fmt.Sprint(args...), nil)
	}
}

func (imp *impl) printf(ctx context.Context, logLevel Level, template string, args []interface{}) {
	if imp.enabled(ctx, logLevel) {
		imp.write(logLevel, fmt.Sprintf(template, args...), nil)
	}
}

func (imp *impl) printw(ctx context.Context, logLevel Level, msg string, keysAndValues []interface{}) {
	if imp.enabled(ctx, logLevel) {
		imp.write(logLevel, msg, toFields(keysAndValues))
	}
}

// toFields pairs up alternating keys and values. Keys that are not strings are formatted with %v.
func toFields(keysAndValues []interface{}) []zapcore.Field {
	fields := make([]zapcore.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keysAndValues[i])
		}
		var value interface{} = errUnpairedKey
		if i+1 < len(keysAndValues) {
			value = keysAndValues[i+1]
		}
		fields = append(fields, zap.Any(key, value))
	}
	return fields
}

func (imp *impl) Debug(args ...interface{}) {
	imp.print(context.Background(), DEBUG, args)
}

func (imp *impl) Debugf(template string, args ...interface{}) {
	imp.printf(context.Background(), DEBUG, template, args)
}

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	imp.printw(context.Background(), DEBUG, msg, keysAndValues)
}

func (imp *impl) CDebugf(ctx context.Context, template string, args ...interface{}) {
	imp.printf(ctx, DEBUG, template, args)
}

func (imp *impl) CDebugw(ctx context.Context, msg string, keysAndValues ...interface{}) {
	imp.printw(ctx, DEBUG, msg, keysAndValues)
}

func (imp *impl) Info(args ...interface{}) {
	imp.print(context.Background(), INFO, args)
}

func (imp *impl) Infof(template string, args ...interface{}) {
	imp.printf(context.Background(), INFO, template, args)
}

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	imp.printw(context.Background(), INFO, msg, keysAndValues)
}

func (imp *impl) Warn(args ...interface{}) {
	imp.print(context.Background(), WARN, args)
}

func (imp *impl) Warnf(template string, args ...interface{}) {
	imp.printf(context.Background(), WARN, template, args)
}

func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	imp.printw(context.Background(), WARN, msg, keysAndValues)
}

func (imp *impl) Error(args ...interface{}) {
	imp.print(context.Background(), ERROR, args)
}

func (imp *impl) Errorf(template string, args ...interface{}) {
	imp.printf(context.Background(), ERROR, template, args)
}

func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) {
	imp.printw(context.Background(), ERROR, msg, keysAndValues)
}

func getCaller() zapcore.EntryCaller {
	var caller zapcore.EntryCaller
	var ok bool
	caller.PC, caller.File, caller.Line, ok = runtime.Caller(callerDepth)
	if !ok {
		return caller
	}
	caller.Defined = true
	if fn := runtime.FuncForPC(caller.PC); fn != nil {
		caller.Function = fn.Name()
	}
	return caller
}
