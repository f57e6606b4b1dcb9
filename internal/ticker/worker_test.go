package ticker

import (
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorker(t *testing.T) (*Worker, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC))
	w := NewWorker(clock, log.New(io.Discard))
	w.Start()
	t.Cleanup(w.Close)
	return w, clock
}

func next(t *testing.T, w *Worker) Message {
	t.Helper()
	select {
	case msg := <-w.Messages():
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for worker message")
		return Message{}
	}
}

func assertQuiet(t *testing.T, w *Worker) {
	t.Helper()
	select {
	case msg := <-w.Messages():
		t.Fatalf("unexpected message %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWorker_CountsDownAndFinishesOnce(t *testing.T) {
	w, clock := newTestWorker(t)

	require.NoError(t, w.Post(Start(1, 3)))

	var seen []int
	msg := next(t, w)
	require.Equal(t, TimerTick, msg.Type)
	seen = append(seen, msg.Remaining)

	for i := 0; i < 2; i++ {
		clock.Advance(time.Second)
		msg = next(t, w)
		require.Equal(t, TimerTick, msg.Type)
		assert.Equal(t, uint64(1), msg.Generation)
		seen = append(seen, msg.Remaining)
	}

	clock.Advance(time.Second)
	msg = next(t, w)
	assert.Equal(t, TimerFinished, msg.Type)
	assert.Equal(t, 0, msg.Remaining)
	assert.Equal(t, []int{3, 2, 1}, seen)

	// nothing more once finished
	clock.Advance(5 * time.Second)
	assertQuiet(t, w)
}

func TestWorker_RecomputesFromStartUnderDelay(t *testing.T) {
	w, clock := newTestWorker(t)

	require.NoError(t, w.Post(Start(1, 10)))
	assert.Equal(t, 10, next(t, w).Remaining)

	// a late tick sees the real elapsed time, not one second
	clock.Advance(3500 * time.Millisecond)
	msg := next(t, w)
	assert.Equal(t, TimerTick, msg.Type)
	assert.Equal(t, 7, msg.Remaining)
}

func TestWorker_StopIsIdempotent(t *testing.T) {
	w, clock := newTestWorker(t)

	require.NoError(t, w.Post(Start(4, 60)))
	next(t, w)

	require.NoError(t, w.Post(Message{Type: StopTimer}))
	msg := next(t, w)
	assert.Equal(t, TimerStopped, msg.Type)
	assert.Equal(t, uint64(4), msg.Generation)

	require.NoError(t, w.Post(Message{Type: StopTimer}))
	assert.Equal(t, TimerStopped, next(t, w).Type)

	clock.Advance(2 * time.Second)
	assertQuiet(t, w)
}

func TestWorker_RestartCancelsPrevious(t *testing.T) {
	w, clock := newTestWorker(t)

	require.NoError(t, w.Post(Start(1, 60)))
	next(t, w)

	require.NoError(t, w.Post(Start(2, 5)))
	msg := next(t, w)
	assert.Equal(t, uint64(2), msg.Generation)
	assert.Equal(t, 5, msg.Remaining)

	clock.Advance(time.Second)
	msg = next(t, w)
	assert.Equal(t, uint64(2), msg.Generation)
	assert.Equal(t, 4, msg.Remaining)
}

func TestWorker_IgnoresNonPositiveDuration(t *testing.T) {
	w, _ := newTestWorker(t)

	require.NoError(t, w.Post(Start(1, 0)))
	assertQuiet(t, w)
}

func TestWorker_GetStatus(t *testing.T) {
	w, clock := newTestWorker(t)

	require.NoError(t, w.Post(Start(1, 2)))
	next(t, w)

	require.NoError(t, w.Post(Message{Type: GetStatus}))
	msg := next(t, w)
	assert.Equal(t, TimerTick, msg.Type)
	assert.Equal(t, 2, msg.Remaining)

	// a late tick lands after the deadline
	clock.Advance(5 * time.Second)
	assert.Equal(t, TimerFinished, next(t, w).Type)

	// status after the end re-emits finished without restarting anything
	require.NoError(t, w.Post(Message{Type: GetStatus}))
	msg = next(t, w)
	assert.Equal(t, TimerFinished, msg.Type)
	assert.Equal(t, 0, msg.Remaining)

	clock.Advance(5 * time.Second)
	assertQuiet(t, w)
}

func TestWorker_PingPong(t *testing.T) {
	w, _ := newTestWorker(t)

	require.NoError(t, w.Post(Message{Type: Ping}))
	assert.Equal(t, Pong, next(t, w).Type)
}

func TestWorker_Heartbeat(t *testing.T) {
	w, clock := newTestWorker(t)

	require.NoError(t, w.Post(Start(9, 120)))
	next(t, w)

	// ticks coalesce while the clock jumps, so at most two of them precede the heartbeat
	clock.Advance(HeartbeatInterval)
	types := map[MessageType]bool{}
	for i := 0; i < 3 && !types[Heartbeat]; i++ {
		types[next(t, w).Type] = true
	}
	assert.True(t, types[Heartbeat])
	assert.True(t, types[TimerTick])
}

func TestWorker_PostAfterClose(t *testing.T) {
	w, _ := newTestWorker(t)
	w.Close()
	w.Close()

	assert.ErrorIs(t, w.Post(Message{Type: Ping}), ErrClosed)
}
