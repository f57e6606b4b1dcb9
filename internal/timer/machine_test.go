package timer

import (
	"io"
	"strconv"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strrl/focus-timer/internal/countdown"
	"github.com/strrl/focus-timer/internal/storage"
	"github.com/strrl/focus-timer/pkg/models"
)

var t0 = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

type mapStore map[string]string

func (s mapStore) Save(key, value string) { s[key] = value }

func (s mapStore) Load(key, def string) string {
	if v, ok := s[key]; ok {
		return v
	}
	return def
}

func (s mapStore) ClearAll() {
	for k := range s {
		delete(s, k)
	}
}

type startCall struct {
	generation uint64
	seconds    int
}

type fakeDriver struct {
	starts    []startCall
	stops     int
	refreshes int
	closed    bool
	events    chan countdown.Event
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{events: make(chan countdown.Event, 8)}
}

func (d *fakeDriver) Start(generation uint64, seconds int) {
	d.starts = append(d.starts, startCall{generation, seconds})
}
func (d *fakeDriver) Stop()                           { d.stops++ }
func (d *fakeDriver) Refresh()                        { d.refreshes++ }
func (d *fakeDriver) Events() <-chan countdown.Event { return d.events }
func (d *fakeDriver) Close()                          { d.closed = true }
func (d *fakeDriver) Name() string                    { return "fake" }

type fakeHistory struct {
	completions []models.Completion
}

func (h *fakeHistory) RecordCompletion(c models.Completion) {
	h.completions = append(h.completions, c)
}

type harness struct {
	m       *Machine
	clock   *clockwork.FakeClock
	store   mapStore
	driver  *fakeDriver
	history *fakeHistory
	notes   int
}

func newHarness(t *testing.T, store mapStore) *harness {
	t.Helper()
	if store == nil {
		store = mapStore{}
	}
	h := &harness{
		clock:   clockwork.NewFakeClockAt(t0),
		store:   store,
		driver:  newFakeDriver(),
		history: &fakeHistory{},
	}
	h.m = New(Options{
		Clock:   h.clock,
		Store:   h.store,
		Driver:  h.driver,
		Notify:  func() { h.notes++ },
		History: h.history,
		Logger:  log.New(io.Discard),
	})
	return h
}

func (h *harness) tick(remaining int) {
	h.m.Handle(countdown.Event{Kind: countdown.KindTick, Remaining: remaining, Generation: h.m.Generation()})
}

func activeSnapshot(start time.Time, initial int, mode models.Mode) mapStore {
	return mapStore{
		storage.KeyStartTimestamp:  strconv.FormatInt(start.UnixMilli(), 10),
		storage.KeyInitialDuration: strconv.Itoa(initial),
		storage.KeyMode:            string(mode),
		storage.KeyIsActive:        "true",
	}
}

func TestStartCountdown(t *testing.T) {
	h := newHarness(t, nil)
	h.m.StartCountdown()

	assert.Equal(t, Running, h.m.Phase())
	require.Len(t, h.driver.starts, 1)
	assert.Equal(t, startCall{h.m.Generation(), 1500}, h.driver.starts[0])

	assert.Equal(t, strconv.FormatInt(t0.UnixMilli(), 10), h.store[storage.KeyStartTimestamp])
	assert.Equal(t, "1500", h.store[storage.KeyInitialDuration])
	assert.Equal(t, "true", h.store[storage.KeyIsActive])
	assert.Equal(t, "focus", h.store[storage.KeyMode])

	// second start while running is ignored
	h.m.StartCountdown()
	assert.Len(t, h.driver.starts, 1)
}

func TestResetCountdown(t *testing.T) {
	h := newHarness(t, nil)
	h.m.StartCountdown()
	h.tick(1400)
	require.Equal(t, 1400, h.m.State().RemainingSeconds)

	h.m.ResetCountdown()
	st := h.m.State()
	assert.Equal(t, Idle, h.m.Phase())
	assert.Equal(t, 1500, st.RemainingSeconds)
	assert.False(t, st.HasFinished)
	assert.Equal(t, 1, h.driver.stops)
	assert.NotContains(t, h.store, storage.KeyStartTimestamp)
	assert.Equal(t, "focus", h.store[storage.KeyMode])

	for _, mode := range models.Modes() {
		h.m.SetMode(mode)
		h.m.ResetCountdown()
		assert.Equal(t, mode.Duration(), h.m.State().RemainingSeconds)
	}
}

func TestSetModeWhileRunningCancels(t *testing.T) {
	h := newHarness(t, nil)
	h.m.StartCountdown()
	h.tick(1200)

	h.m.SetMode(models.ModeBreak)
	st := h.m.State()
	assert.False(t, st.IsActive)
	assert.False(t, st.HasFinished)
	assert.Equal(t, 300, st.RemainingSeconds)
	assert.Equal(t, models.ModeBreak, st.Mode)
	assert.Equal(t, 1, h.driver.stops)
	assert.NotContains(t, h.store, storage.KeyIsActive)
	assert.Equal(t, "break", h.store[storage.KeyMode])
}

func TestSetModeRejectsUnknown(t *testing.T) {
	h := newHarness(t, nil)
	h.m.SetMode("nap")
	assert.Equal(t, models.ModeFocus, h.m.State().Mode)
}

func TestStaleEventsAreDropped(t *testing.T) {
	h := newHarness(t, nil)
	h.m.StartCountdown()
	stale := h.m.Generation()

	h.m.SetMode(models.ModeBreak)
	h.m.StartCountdown()
	require.NotEqual(t, stale, h.m.Generation())

	h.m.Handle(countdown.Event{Kind: countdown.KindTick, Remaining: 12, Generation: stale})
	h.m.Handle(countdown.Event{Kind: countdown.KindFinished, Generation: stale})

	assert.Equal(t, Running, h.m.Phase())
	assert.Equal(t, 300, h.m.State().RemainingSeconds)
	assert.Zero(t, h.notes)
}

func TestEventsAfterResetAreDropped(t *testing.T) {
	h := newHarness(t, nil)
	h.m.StartCountdown()
	gen := h.m.Generation()
	h.m.ResetCountdown()

	h.m.Handle(countdown.Event{Kind: countdown.KindTick, Remaining: 0, Generation: gen})
	assert.Equal(t, Idle, h.m.Phase())
	assert.Zero(t, h.notes)
}

func TestTicksNeverIncreaseRemaining(t *testing.T) {
	h := newHarness(t, nil)
	h.m.StartCountdown()
	h.tick(1400)
	h.tick(1450)
	assert.Equal(t, 1400, h.m.State().RemainingSeconds)
	h.tick(-5)
	assert.Equal(t, Finished, h.m.Phase())
}

func TestCompletionFiresOnce(t *testing.T) {
	h := newHarness(t, nil)
	h.m.StartCountdown()
	gen := h.m.Generation()

	h.tick(0)
	h.m.Handle(countdown.Event{Kind: countdown.KindFinished, Generation: gen})
	h.m.Handle(countdown.Event{Kind: countdown.KindTick, Remaining: 0, Generation: gen})
	h.m.Visible()

	st := h.m.State()
	assert.Equal(t, Finished, h.m.Phase())
	assert.True(t, st.HasFinished)
	assert.False(t, st.IsActive)
	assert.Zero(t, st.RemainingSeconds)
	assert.Equal(t, 1, h.notes)
	assert.Zero(t, h.driver.refreshes)

	require.Len(t, h.history.completions, 1)
	c := h.history.completions[0]
	assert.Equal(t, models.ModeFocus, c.Mode)
	assert.Equal(t, 1500, c.DurationSeconds)
	assert.NotEmpty(t, c.ID)

	assert.NotContains(t, h.store, storage.KeyStartTimestamp)
	assert.Equal(t, "focus", h.store[storage.KeyMode])
}

func TestStartAfterFinishRestartsMode(t *testing.T) {
	h := newHarness(t, nil)
	h.m.SetMode(models.ModeBreak)
	h.m.StartCountdown()
	h.m.Handle(countdown.Event{Kind: countdown.KindFinished, Generation: h.m.Generation()})
	require.Equal(t, Finished, h.m.Phase())

	h.m.StartCountdown()
	assert.Equal(t, Running, h.m.Phase())
	assert.Equal(t, 300, h.m.State().RemainingSeconds)
	assert.Equal(t, 300, h.driver.starts[len(h.driver.starts)-1].seconds)
}

func TestNextModeCadence(t *testing.T) {
	h := newHarness(t, mapStore{
		storage.KeyMode:                   "focus",
		storage.KeyCompletedFocusSessions: "3",
	})
	h.m.Rehydrate()
	require.Equal(t, 3, h.m.State().CompletedFocusSessions)

	h.m.NextMode()
	assert.Equal(t, models.ModeLongBreak, h.m.State().Mode)
	assert.Equal(t, 4, h.m.State().CompletedFocusSessions)
	assert.Equal(t, 900, h.m.State().RemainingSeconds)
	assert.Equal(t, "4", h.store[storage.KeyCompletedFocusSessions])

	h.m.NextMode()
	assert.Equal(t, models.ModeFocus, h.m.State().Mode)
	assert.Equal(t, 4, h.m.State().CompletedFocusSessions)

	h.m.NextMode()
	assert.Equal(t, models.ModeBreak, h.m.State().Mode)
	assert.Equal(t, 5, h.m.State().CompletedFocusSessions)
}

func TestNextModeWhileRunningCancels(t *testing.T) {
	h := newHarness(t, nil)
	h.m.StartCountdown()
	h.m.NextMode()

	assert.Equal(t, Idle, h.m.Phase())
	assert.Equal(t, models.ModeBreak, h.m.State().Mode)
	assert.Equal(t, 1, h.driver.stops)
}

func TestRehydrateCrossedZero(t *testing.T) {
	store := activeSnapshot(t0, 1500, models.ModeFocus)
	store[storage.KeyCompletedFocusSessions] = "2"
	h := newHarness(t, store)
	h.clock.Advance(1600 * time.Second)

	h.m.Rehydrate()

	st := h.m.State()
	assert.Equal(t, Finished, h.m.Phase())
	assert.True(t, st.HasFinished)
	assert.Zero(t, st.RemainingSeconds)
	assert.Equal(t, 2, st.CompletedFocusSessions)
	assert.Equal(t, 1, h.notes)
	assert.Len(t, h.history.completions, 1)
	assert.Empty(t, h.driver.starts)
	assert.NotContains(t, h.store, storage.KeyStartTimestamp)
	assert.Equal(t, "2", h.store[storage.KeyCompletedFocusSessions])
}

func TestRehydrateResumesWithRemaining(t *testing.T) {
	h := newHarness(t, activeSnapshot(t0, 1500, models.ModeFocus))
	h.clock.Advance(600*time.Second + 500*time.Millisecond)

	h.m.Rehydrate()

	assert.Equal(t, Running, h.m.Phase())
	assert.Equal(t, 900, h.m.State().RemainingSeconds)
	require.Len(t, h.driver.starts, 1)
	assert.Equal(t, 900, h.driver.starts[0].seconds)
	assert.Equal(t, strconv.FormatInt(t0.UnixMilli(), 10), h.store[storage.KeyStartTimestamp])
	assert.Equal(t, "1500", h.store[storage.KeyInitialDuration])
	assert.Zero(t, h.notes)
}

func TestRepeatedRehydrateTracksWallTime(t *testing.T) {
	store := activeSnapshot(t0, 1500, models.ModeFocus)
	clock := clockwork.NewFakeClockAt(t0)

	for i := 1; i <= 20; i++ {
		clock.Advance(900 * time.Millisecond)
		m := New(Options{
			Clock:  clock,
			Store:  store,
			Driver: newFakeDriver(),
			Logger: log.New(io.Discard),
		})
		m.Rehydrate()

		elapsed := time.Duration(i) * 900 * time.Millisecond
		want := 1500 - int(elapsed/time.Second)
		require.Equal(t, want, m.State().RemainingSeconds, "restart %d", i)
		m.Teardown()
	}

	assert.Equal(t, strconv.FormatInt(t0.UnixMilli(), 10), store[storage.KeyStartTimestamp])
	assert.Equal(t, "1500", store[storage.KeyInitialDuration])
}

func TestRehydrateCapsInitialAtModeDuration(t *testing.T) {
	h := newHarness(t, activeSnapshot(t0, 5000, models.ModeBreak))
	h.clock.Advance(10 * time.Second)

	h.m.Rehydrate()

	assert.Equal(t, 290, h.m.State().RemainingSeconds)
	assert.Equal(t, "300", h.store[storage.KeyInitialDuration])
	assert.Equal(t, strconv.FormatInt(t0.UnixMilli(), 10), h.store[storage.KeyStartTimestamp])
}

func TestRehydratePartialSnapshot(t *testing.T) {
	h := newHarness(t, mapStore{
		storage.KeyMode:            "break",
		storage.KeyIsActive:        "true",
		storage.KeyInitialDuration: "300",
	})
	h.m.Rehydrate()

	st := h.m.State()
	assert.Equal(t, Idle, h.m.Phase())
	assert.Equal(t, models.ModeBreak, st.Mode)
	assert.Equal(t, 300, st.RemainingSeconds)
	assert.Empty(t, h.driver.starts)
}

func TestRehydrateEmptyStore(t *testing.T) {
	h := newHarness(t, nil)
	h.m.Rehydrate()
	assert.Equal(t, models.NewTimerState(), h.m.State())
}

func TestRehydrateClockSkew(t *testing.T) {
	h := newHarness(t, activeSnapshot(t0.Add(time.Hour), 300, models.ModeBreak))
	h.m.Rehydrate()

	assert.Equal(t, Running, h.m.Phase())
	assert.Equal(t, 300, h.m.State().RemainingSeconds)
	// a start in the future is re-anchored so the countdown is not stuck
	assert.Equal(t, strconv.FormatInt(t0.UnixMilli(), 10), h.store[storage.KeyStartTimestamp])
}

func TestVisibleRefreshesOnlyWhileRunning(t *testing.T) {
	h := newHarness(t, nil)
	h.m.Visible()
	assert.Zero(t, h.driver.refreshes)

	h.m.StartCountdown()
	h.m.Visible()
	assert.Equal(t, 1, h.driver.refreshes)
}

func TestTeardownPersistsRunningCountdown(t *testing.T) {
	h := newHarness(t, nil)
	h.m.StartCountdown()
	h.store.ClearAll()

	h.m.Teardown()
	assert.True(t, h.driver.closed)
	assert.Equal(t, "true", h.store[storage.KeyIsActive])
	assert.Equal(t, "1500", h.store[storage.KeyInitialDuration])

	// a fresh machine picks up where this one left off
	next := newHarness(t, h.store)
	next.clock.Advance(100 * time.Second)
	next.m.Rehydrate()
	assert.Equal(t, 1400, next.m.State().RemainingSeconds)
}

type fakeWaiter struct{ waits int }

func (w *fakeWaiter) Wait() bool {
	w.waits++
	return true
}

func TestTeardownWaitsForPendingNotifications(t *testing.T) {
	h := newHarness(t, nil)
	pending := &fakeWaiter{}
	h.m = New(Options{
		Clock:   h.clock,
		Store:   h.store,
		Driver:  h.driver,
		Pending: pending,
		Logger:  log.New(io.Discard),
	})
	h.m.StartCountdown()
	h.tick(0)

	h.m.Teardown()
	assert.True(t, h.driver.closed)
	assert.Equal(t, 1, pending.waits)
}

func TestTeardownIdleWritesNothing(t *testing.T) {
	h := newHarness(t, nil)
	h.m.Teardown()
	assert.True(t, h.driver.closed)
	assert.Empty(t, h.store)
}

func TestNotifierPanicIsContained(t *testing.T) {
	h := newHarness(t, nil)
	h.m = New(Options{
		Clock:  h.clock,
		Store:  h.store,
		Driver: h.driver,
		Notify: func() { panic("no confetti") },
		Logger: log.New(io.Discard),
	})
	h.m.StartCountdown()

	assert.NotPanics(t, func() { h.tick(0) })
	assert.Equal(t, Finished, h.m.Phase())
}

// runThree resumes a three second countdown on a real driver and records the
// remaining time after every event
func runThree(t *testing.T, mode string) ([]int, int) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(t0)
	logger := log.New(io.Discard)
	driver := countdown.Select(countdown.Options{Mode: mode, Clock: clock, Logger: logger})

	notes := 0
	m := New(Options{
		Clock:  clock,
		Store:  activeSnapshot(t0, 3, models.ModeFocus),
		Driver: driver,
		Notify: func() { notes++ },
		Logger: logger,
	})
	defer m.Teardown()

	m.Rehydrate()
	require.Equal(t, Running, m.Phase())

	var seen []int
	for m.Phase() == Running {
		select {
		case ev := <-m.Events():
			m.Handle(ev)
			seen = append(seen, m.State().RemainingSeconds)
			if m.Phase() == Running {
				clock.Advance(time.Second)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("no event from %s driver", mode)
		}
	}
	return seen, notes
}

func TestFallbackEquivalence(t *testing.T) {
	workerSeen, workerNotes := runThree(t, countdown.ModeWorker)
	pollingSeen, pollingNotes := runThree(t, countdown.ModePolling)

	assert.Equal(t, []int{3, 2, 1, 0}, workerSeen)
	assert.Equal(t, workerSeen, pollingSeen)
	assert.Equal(t, 1, workerNotes)
	assert.Equal(t, 1, pollingNotes)
}
