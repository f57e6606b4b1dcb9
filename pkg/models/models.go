package models

import (
	"fmt"
	"time"
)

// Mode is one of the three countdown kinds
type Mode string

const (
	ModeFocus     Mode = "focus"
	ModeBreak     Mode = "break"
	ModeLongBreak Mode = "longBreak"
)

// SessionsPerLongBreak is how many focus sessions earn a long break
const SessionsPerLongBreak = 4

var durations = map[Mode]int{
	ModeFocus:     1500,
	ModeBreak:     300,
	ModeLongBreak: 900,
}

// Modes lists every mode in display order
func Modes() []Mode {
	return []Mode{ModeFocus, ModeBreak, ModeLongBreak}
}

// ModeDuration returns the countdown length of a mode in seconds
func ModeDuration(mode Mode) int {
	return durations[mode]
}

// Duration returns the countdown length of the mode in seconds
func (m Mode) Duration() int {
	return durations[m]
}

// Valid reports whether m is a known mode
func (m Mode) Valid() bool {
	_, ok := durations[m]
	return ok
}

// Label is the human readable name shown in the UI
func (m Mode) Label() string {
	switch m {
	case ModeFocus:
		return "Focus"
	case ModeBreak:
		return "Break"
	case ModeLongBreak:
		return "Long Break"
	default:
		return string(m)
	}
}

// ParseMode converts a persisted tag into a Mode
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown mode %q", s)
	}
	return m, nil
}

// TimerState is the authoritative countdown state owned by the state machine
type TimerState struct {
	Mode                   Mode
	RemainingSeconds       int
	IsActive               bool
	HasFinished            bool
	CompletedFocusSessions int
}

// NewTimerState returns the start-of-process state: focus mode, full duration
func NewTimerState() TimerState {
	return TimerState{
		Mode:             ModeFocus,
		RemainingSeconds: ModeFocus.Duration(),
	}
}

// Snapshot is the persisted minimum needed to rebuild an in-flight countdown
type Snapshot struct {
	StartTimestamp         *int64 // epoch millis
	InitialDurationSeconds *int
	Mode                   Mode
	IsActive               bool
	CompletedFocusSessions int
}

// InFlight reports whether the snapshot describes a countdown that can be resumed
func (s Snapshot) InFlight() bool {
	return s.IsActive && s.StartTimestamp != nil && s.InitialDurationSeconds != nil
}

// Completion records one countdown that reached zero
type Completion struct {
	ID              string
	Mode            Mode
	DurationSeconds int
	CompletedAt     time.Time
}
