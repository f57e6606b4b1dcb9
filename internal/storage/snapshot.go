package storage

import (
	"strconv"

	"github.com/strrl/focus-timer/pkg/models"
)

// LoadSnapshot reads the persisted countdown. Missing or unparsable fields are
// treated as absent, so a partial write never looks like an in-flight countdown.
func LoadSnapshot(s Store) models.Snapshot {
	snap := models.Snapshot{Mode: models.ModeFocus}

	if v := s.Load(KeyStartTimestamp, ""); v != "" {
		if ts, err := strconv.ParseInt(v, 10, 64); err == nil && ts > 0 {
			snap.StartTimestamp = &ts
		}
	}
	if v := s.Load(KeyInitialDuration, ""); v != "" {
		if d, err := strconv.Atoi(v); err == nil && d > 0 {
			snap.InitialDurationSeconds = &d
		}
	}
	if m, err := models.ParseMode(s.Load(KeyMode, "")); err == nil {
		snap.Mode = m
	}
	if active, err := strconv.ParseBool(s.Load(KeyIsActive, "false")); err == nil {
		snap.IsActive = active
	}
	if n, err := strconv.Atoi(s.Load(KeyCompletedFocusSessions, "0")); err == nil && n > 0 {
		snap.CompletedFocusSessions = n
	}
	return snap
}

// SaveSnapshot writes every snapshot field
func SaveSnapshot(s Store, snap models.Snapshot) {
	if snap.StartTimestamp != nil {
		s.Save(KeyStartTimestamp, strconv.FormatInt(*snap.StartTimestamp, 10))
	}
	if snap.InitialDurationSeconds != nil {
		s.Save(KeyInitialDuration, strconv.Itoa(*snap.InitialDurationSeconds))
	}
	s.Save(KeyMode, string(snap.Mode))
	s.Save(KeyIsActive, strconv.FormatBool(snap.IsActive))
	s.Save(KeyCompletedFocusSessions, strconv.Itoa(snap.CompletedFocusSessions))
}

// ClearCountdown drops the in-flight countdown but keeps the current mode and
// session count so they survive a restart
func ClearCountdown(s Store, mode models.Mode, completedFocusSessions int) {
	s.ClearAll()
	s.Save(KeyMode, string(mode))
	s.Save(KeyCompletedFocusSessions, strconv.Itoa(completedFocusSessions))
}
