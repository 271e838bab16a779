package logsink

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixed = time.Date(2026, 3, 4, 5, 6, 7, 890, time.UTC)

func TestHandler_Line(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, WithClock(func() time.Time { return fixed }))

	log.Error("store unavailable", OpKey, "save", "err", errors.New("disk\tfull\n"))

	line := buf.String()
	assert.True(t, strings.HasSuffix(line, "\r\n"))
	cols := strings.Split(strings.TrimSuffix(line, "\r\n"), "\t")
	require.Len(t, cols, 3)
	ts, err := time.Parse(time.RFC3339Nano, cols[0])
	require.NoError(t, err)
	assert.False(t, ts.IsZero())
	assert.Equal(t, "save", cols[1])
	assert.Equal(t, "store unavailable err=disk full ", cols[2])
}

func TestHandler_ClockWhenRecordHasNoTime(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(&buf, WithClock(func() time.Time { return fixed }))
	require.NoError(t, h.Handle(context.Background(), slog.NewRecord(time.Time{}, slog.LevelError, "boom", 0)))
	assert.Equal(t, "2026-03-04T05:06:07.00000089Z\t-\tboom\r\n", buf.String())
}

func TestHandler_LevelAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf).With(OpKey, "fetch", "ctx", "root").WithGroup("req")

	log.Info("ignored")
	log.Error("failed", "entity", "Person")

	cols := strings.Split(strings.TrimSuffix(buf.String(), "\r\n"), "\t")
	require.Len(t, cols, 3)
	assert.Equal(t, "fetch", cols[1])
	assert.Equal(t, "failed ctx=root req.entity=Person", cols[2])
	assert.Equal(t, 1, strings.Count(buf.String(), "\r\n"))
}

func TestOpenFile_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errors.log")
	for i := 0; i < 2; i++ {
		f, err := OpenFile(path)
		require.NoError(t, err)
		New(f).Error("x", OpKey, "save")
		require.NoError(t, f.Close())
	}
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\r\n"))
}
