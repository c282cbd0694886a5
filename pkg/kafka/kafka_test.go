package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/resilience"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.pending) > 0 {
		msg := r.pending[0]
		r.pending = r.pending[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func TestProducerPublish(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "page-visits")

	type visit struct {
		ID string `json:"document_id"`
	}
	require.NoError(t, p.Publish(context.Background(), "d1", visit{ID: "d1"}, visit{ID: "d1"}))
	require.Len(t, w.msgs, 2)
	assert.Equal(t, "d1", string(w.msgs[0].Key))
	assert.JSONEq(t, `{"document_id":"d1"}`, string(w.msgs[0].Value))

	require.NoError(t, p.Publish(context.Background(), "d2"))
	assert.Len(t, w.msgs, 2, "publishing nothing writes nothing")
}

func TestProducerPublishError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := newProducer(w, "page-visits")
	err := p.Publish(context.Background(), "d1", map[string]string{"a": "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page-visits")
}

var fastRetry = resilience.RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}

func TestConsumerCommitsHandledAndSkipped(t *testing.T) {
	good, _ := json.Marshal(map[string]string{"document_id": "d1"})
	r := &fakeReader{pending: []kafka.Message{
		{Offset: 1, Value: good},
		{Offset: 2, Value: []byte("not json")},
		{Offset: 3, Value: []byte(`{"fail":true}`)},
		{Offset: 4, Value: good},
	}}

	var mu sync.Mutex
	var handled, failures int
	h := func(_ context.Context, _, value []byte) error {
		v, err := DecodeJSON[map[string]any](value)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		// fails across more than one retry round before recovering
		if v["fail"] == true && failures < 3 {
			failures++
			return errors.New("transient")
		}
		handled++
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	c := newConsumer(r, "page-visits", h)
	c.retry = fastRetry
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return len(r.pending) == 0 && len(r.committed) == 4
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []int64{1, 2, 3, 4}, r.committed)
	assert.Equal(t, 3, handled)
	assert.Equal(t, 3, failures)
	assert.True(t, r.closed)
}

func TestConsumerHoldsFailingMessage(t *testing.T) {
	good, _ := json.Marshal(map[string]string{"document_id": "d1"})
	r := &fakeReader{pending: []kafka.Message{
		{Offset: 7, Value: good},
		{Offset: 8, Value: good},
	}}
	var calls atomic.Int32
	h := func(context.Context, []byte, []byte) error {
		calls.Add(1)
		return errors.New("index unavailable")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	c := newConsumer(r, "page-visits", h)
	c.retry = fastRetry
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return calls.Load() >= 6 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Empty(t, r.committed, "a failing message must never be stepped over")
	assert.Len(t, r.pending, 1, "the next message waits behind it")
}

func TestDecodeJSONWrapsSkip(t *testing.T) {
	_, err := DecodeJSON[struct{}]([]byte("{"))
	assert.ErrorIs(t, err, ErrSkip)
}
