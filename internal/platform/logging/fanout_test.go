package logging

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

type failingHandler struct {
	slog.Handler
	err error
}

func (h failingHandler) Handle(context.Context, slog.Record) error { return h.err } //nolint:gocritic // slog.Handler

func leveled(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}

func TestFanout_Enabled(t *testing.T) {
	ctx := context.Background()
	f := fanout{leveled(io.Discard, slog.LevelWarn), leveled(io.Discard, slog.LevelError)}

	assert.False(t, f.Enabled(ctx, slog.LevelInfo))
	assert.True(t, f.Enabled(ctx, slog.LevelWarn))
	assert.False(t, fanout{}.Enabled(ctx, slog.LevelError))
}

func TestFanout_RespectsEachLevel(t *testing.T) {
	var console, file bytes.Buffer
	logger := slog.New(fanout{leveled(&console, slog.LevelDebug), leveled(&file, slog.LevelInfo)})

	logger.Info("quote created", slog.String("id", "7"))
	logger.Debug("query built")

	assert.Contains(t, console.String(), "quote created")
	assert.Contains(t, console.String(), "query built")
	assert.Contains(t, file.String(), "quote created")
	assert.NotContains(t, file.String(), "query built")
}

func TestFanout_AttrsAndGroups(t *testing.T) {
	var a, b bytes.Buffer
	logger := slog.New(fanout{leveled(&a, slog.LevelInfo), leveled(&b, slog.LevelInfo)}).
		With("component", "store").
		WithGroup("postgrest")

	logger.Info("request", slog.Int("status", 200))

	for _, out := range []string{a.String(), b.String()} {
		assert.Contains(t, out, `"component":"store"`)
		assert.Contains(t, out, `"postgrest":{"status":200}`)
	}
}

func TestFanout_EmptyGroupIsNoop(t *testing.T) {
	f := fanout{leveled(io.Discard, slog.LevelInfo)}
	assert.Equal(t, f, f.WithGroup(""))
}

func TestFanout_JoinsErrors(t *testing.T) {
	diskFull := errors.New("disk full")
	closed := errors.New("pipe closed")

	var ok bytes.Buffer
	f := fanout{
		failingHandler{Handler: leveled(io.Discard, slog.LevelInfo), err: diskFull},
		leveled(&ok, slog.LevelInfo),
		failingHandler{Handler: leveled(io.Discard, slog.LevelInfo), err: closed},
	}

	err := f.Handle(context.Background(), slog.NewRecord(testTime, slog.LevelInfo, "quote deleted", 0))

	assert.ErrorIs(t, err, diskFull)
	assert.ErrorIs(t, err, closed)
	assert.Contains(t, ok.String(), "quote deleted", "healthy destinations still receive the record")
}
