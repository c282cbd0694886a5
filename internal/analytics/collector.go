package analytics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const eventKey = "search"

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, key string, values ...any) error
}

// Collector buffers SearchEvents and publishes them in batches. Track never
// blocks; events are dropped when the buffer is full.
type Collector struct {
	publisher     Publisher
	eventCh       chan SearchEvent
	batchSize     int
	flushInterval time.Duration
	dropped       atomic.Int64
	closeOnce     sync.Once
	done          chan struct{}
	logger        *slog.Logger
}

func NewCollector(p Publisher, bufferSize, batchSize int, flushInterval time.Duration) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	return &Collector{
		publisher:     p,
		eventCh:       make(chan SearchEvent, bufferSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		done:          make(chan struct{}),
		logger:        slog.Default().With("component", "analytics-collector"),
	}
}

// Start runs the publish loop until ctx is cancelled or Close is called.
// Buffered events are flushed on the way out.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()

		batch := make([]any, 0, c.batchSize)
		flush := func(ctx context.Context) {
			if len(batch) == 0 {
				return
			}
			if err := c.publisher.Publish(ctx, eventKey, batch...); err != nil {
				c.logger.Error("failed to publish search events", "count", len(batch), "error", err)
			}
			batch = batch[:0]
		}

		for {
			select {
			case ev, ok := <-c.eventCh:
				if !ok {
					flush(context.Background())
					return
				}
				batch = append(batch, ev)
				if len(batch) >= c.batchSize {
					flush(ctx)
				}
			case <-ticker.C:
				flush(ctx)
			case <-ctx.Done():
				drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				c.drain(drainCtx, &batch)
				flush(drainCtx)
				cancel()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started",
		"buffer_size", cap(c.eventCh),
		"batch_size", c.batchSize,
	)
}

func (c *Collector) drain(ctx context.Context, batch *[]any) {
	for {
		select {
		case ev, ok := <-c.eventCh:
			if !ok {
				return
			}
			*batch = append(*batch, ev)
			if len(*batch) >= c.batchSize {
				if err := c.publisher.Publish(ctx, eventKey, *batch...); err != nil {
					c.logger.Error("failed to publish remaining events", "error", err)
				}
				*batch = (*batch)[:0]
			}
		default:
			return
		}
	}
}

func (c *Collector) Track(ev SearchEvent) {
	select {
	case c.eventCh <- ev:
	default:
		if c.dropped.Add(1)%1000 == 1 {
			c.logger.Warn("analytics buffer full, dropping events", "dropped_total", c.dropped.Load())
		}
	}
}

// Dropped returns how many events Track discarded.
func (c *Collector) Dropped() int64 {
	return c.dropped.Load()
}

// Close stops accepting events and waits for the loop to flush. Track must
// not be called after Close.
func (c *Collector) Close() {
	c.closeOnce.Do(func() { close(c.eventCh) })
	<-c.done
}
