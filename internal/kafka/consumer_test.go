package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []kafka.Message
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) commits() []kafka.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]kafka.Message(nil), r.committed...)
}

func offsetsByPartition(msgs []kafka.Message) map[int][]int64 {
	out := map[int][]int64{}
	for _, m := range msgs {
		out[m.Partition] = append(out[m.Partition], m.Offset)
	}
	return out
}

// run starts c and waits until want messages are committed.
func run(t *testing.T, c *Consumer, r *fakeReader, h Handler, want int) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx, h) }()

	require.Eventually(t, func() bool { return len(r.commits()) == want }, 5*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestConsumer_PartitionOrderPreserved(t *testing.T) {
	// Setup: two partitions interleaved; the head of partition 0 is slow
	r := &fakeReader{}
	for off := int64(0); off < 5; off++ {
		r.msgs = append(r.msgs,
			kafka.Message{Partition: 0, Offset: off},
			kafka.Message{Partition: 1, Offset: off},
		)
	}
	c := &Consumer{r: r, workers: 4, log: zaptest.NewLogger(t)}

	var (
		mu      sync.Mutex
		handled []kafka.Message
	)
	h := func(_ context.Context, m kafka.Message) error {
		if m.Partition == 0 && m.Offset == 0 {
			time.Sleep(50 * time.Millisecond)
		}
		mu.Lock()
		handled = append(handled, m)
		mu.Unlock()
		return nil
	}

	// Execute
	run(t, c, r, h, 10)

	// Verify
	want := []int64{0, 1, 2, 3, 4}
	mu.Lock()
	got := offsetsByPartition(handled)
	mu.Unlock()
	assert.Equal(t, want, got[0])
	assert.Equal(t, want, got[1])

	commits := offsetsByPartition(r.commits())
	assert.Equal(t, want, commits[0])
	assert.Equal(t, want, commits[1])
}

func TestConsumer_RetriesBeforeCommitting(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{{Partition: 0, Offset: 7}}}
	c := &Consumer{r: r, workers: 1, log: zaptest.NewLogger(t)}

	var calls int
	h := func(context.Context, kafka.Message) error {
		calls++
		if calls < 3 {
			return errors.New("redis: connection refused")
		}
		return nil
	}

	run(t, c, r, h, 1)

	assert.Equal(t, 3, calls)
	assert.Equal(t, int64(7), r.commits()[0].Offset)
}

func TestLaneFor(t *testing.T) {
	assert.Equal(t, 0, laneFor(4, 4))
	assert.Equal(t, 3, laneFor(7, 4))
	assert.Equal(t, 0, laneFor(3, 1))
	assert.Equal(t, 1, laneFor(-1, 4))
}
