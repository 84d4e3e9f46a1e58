// Package history keeps an append-only ledger of finished matches.
package history

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Result struct {
	Room       string
	Ruleset    string
	Winner     string
	Loser      string
	Rounds     int
	FinishedAt time.Time
}

type Recorder interface {
	Record(ctx context.Context, r Result) error
}

// NopRecorder discards results; used when no database is configured.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Result) error { return nil }

// Writer decouples rooms from the recorder: rooms enqueue without blocking and
// a single goroutine persists in order.
type Writer struct {
	rec   Recorder
	queue chan Result
	log   *zap.Logger
}

func NewWriter(rec Recorder, size int, log *zap.Logger) *Writer {
	return &Writer{rec: rec, queue: make(chan Result, size), log: log}
}

func (w *Writer) Enqueue(r Result) bool {
	select {
	case w.queue <- r:
		return true
	default:
		return false
	}
}

// Run persists queued results until ctx is cancelled, then flushes whatever is
// still queued with a short deadline.
func (w *Writer) Run(ctx context.Context) error {
	for {
		select {
		case r := <-w.queue:
			w.write(ctx, r)
		case <-ctx.Done():
			return w.flush()
		}
	}
}

func (w *Writer) flush() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case r := <-w.queue:
			w.write(ctx, r)
		default:
			return nil
		}
	}
}

func (w *Writer) write(ctx context.Context, r Result) {
	if err := w.rec.Record(ctx, r); err != nil {
		w.log.Error("history.record", zap.Error(err), zap.String("room", r.Room))
	}
}
