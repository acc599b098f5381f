// Package audit writes the append-only request trail. Writes are buffered
// and asynchronous: the request path enqueues and moves on, a single consumer
// goroutine preserves completion order, and sink failures never propagate to
// the guarded request.
package audit

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/gantrydb/gantry/internal/model"
	"github.com/gantrydb/gantry/internal/obs"
)

// DefaultQueueSize bounds the in-flight record queue. When the queue is full
// the newest record is dropped and counted; blocking producers would turn
// observability into a gate.
const DefaultQueueSize = 1024

// Logger is the asynchronous audit sink writer.
type Logger struct {
	ch       chan model.AuditRecord
	sink     io.Writer
	closer   io.Closer
	fallback *slog.Logger
	dropped  atomic.Uint64
	done     chan struct{}
}

// Option customizes a Logger.
type Option func(*Logger)

// WithQueueSize overrides the bounded queue capacity.
func WithQueueSize(n int) Option {
	return func(l *Logger) {
		if n > 0 {
			l.ch = make(chan model.AuditRecord, n)
		}
	}
}

// New creates a logger writing JSON lines to sink, with fallback receiving
// internal failures. Call Close to flush and stop the consumer.
func New(sink io.Writer, fallback *slog.Logger, opts ...Option) *Logger {
	l := &Logger{
		ch:       make(chan model.AuditRecord, DefaultQueueSize),
		sink:     sink,
		fallback: fallback,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	go l.consume()
	return l
}

// Open creates a logger appending to the file at path.
func Open(path string, fallback *slog.Logger, opts ...Option) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	l := New(f, fallback, opts...)
	l.closer = f
	return l, nil
}

// Record enqueues one audit record. Never blocks: when the queue is full the
// record is dropped and the drop is counted.
func (l *Logger) Record(rec model.AuditRecord) {
	select {
	case l.ch <- rec:
	default:
		l.dropped.Add(1)
		obs.AuditDropped.Inc()
	}
}

// Dropped reports how many records were discarded due to a full queue.
func (l *Logger) Dropped() uint64 {
	return l.dropped.Load()
}

// Close drains the queue, flushes remaining records to the sink, and releases
// the sink if this logger opened it.
func (l *Logger) Close() error {
	close(l.ch)
	<-l.done
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

func (l *Logger) consume() {
	defer close(l.done)
	enc := json.NewEncoder(l.sink)
	for rec := range l.ch {
		if err := enc.Encode(rec); err != nil {
			// Audit is observability, not a gate: report on the fallback
			// channel and keep serving.
			obs.AuditSinkErrors.Inc()
			if l.fallback != nil {
				l.fallback.Error("audit sink write failed",
					"error", err,
					"method", rec.Method,
					"path", rec.Path,
				)
			}
		}
	}
}
