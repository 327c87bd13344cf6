package testutil

import (
	"bytes"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/pomerium/lineauth/internal/log"
)

// SetLogger sets the given logger as the global logger for the remainder of
// the current test. Because the logger is global, this must not be called from
// parallel tests.
func SetLogger(t *testing.T, logger *zerolog.Logger) {
	t.Helper()
	originalLogger := *log.Logger()
	t.Cleanup(func() { log.SetLogger(&originalLogger) })
	log.SetLogger(logger)
}

// CaptureLogs sends every log line written for the rest of the test to the
// returned buffer.
func CaptureLogs(t *testing.T) *LogBuffer {
	t.Helper()
	buf := new(LogBuffer)
	l := zerolog.New(buf).With().Timestamp().Logger()
	SetLogger(t, &l)
	return buf
}

// LogBuffer is a goroutine safe buffer of log output.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
