package testutil

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"

	"github.com/roach88/objgraph/internal/logsink"
)

// LogBuffer collects error log lines in the log sink format.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// Logger returns a logger writing to b.
func (b *LogBuffer) Logger() *slog.Logger {
	return logsink.New(b)
}

// Lines returns the written lines without their terminators.
func (b *LogBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := strings.TrimSuffix(b.buf.String(), "\r\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\r\n")
}

// Ops returns the operation column of each line.
func (b *LogBuffer) Ops() []string {
	var ops []string
	for _, line := range b.Lines() {
		cols := strings.SplitN(line, "\t", 3)
		if len(cols) == 3 {
			ops = append(ops, cols[1])
		}
	}
	return ops
}
