package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

// testAppender writes entries through `testing.TB.Log` so output stays attached to the test that
// produced it.
type testAppender struct {
	tb testing.TB
}

// NewTestAppender returns an appender logging to tb in the console layout.
func NewTestAppender(tb testing.TB) Appender {
	return &testAppender{tb}
}

func (tapp *testAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	tapp.tb.Helper()
	line, err := formatEntry(entry, fields)
	tapp.tb.Log(line)
	return err
}

func (tapp *testAppender) Sync() error {
	return nil
}
