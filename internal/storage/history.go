package storage

import (
	"fmt"
	"time"

	"github.com/strrl/focus-timer/pkg/models"
)

// RecordCompletion appends a finished countdown to the local history
func (s *KV) RecordCompletion(c models.Completion) {
	if !s.Available() {
		return
	}
	_, err := s.db.Exec(
		`INSERT INTO completions (id, mode, duration_seconds, completed_at) VALUES (?, ?, ?, ?)`,
		c.ID, string(c.Mode), c.DurationSeconds, c.CompletedAt.UnixMilli(),
	)
	if err != nil {
		s.logger.Debug("record completion failed", "id", c.ID, "err", err)
	}
}

// Completions returns the most recent completions, newest first
func (s *KV) Completions(limit int) ([]models.Completion, error) {
	if !s.Available() {
		return nil, ErrUnavailable
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT id, mode, duration_seconds, completed_at
		FROM completions
		ORDER BY completed_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query completions: %w", err)
	}
	defer rows.Close()

	var completions []models.Completion
	for rows.Next() {
		var (
			c           models.Completion
			mode        string
			completedAt int64
		)
		if err := rows.Scan(&c.ID, &mode, &c.DurationSeconds, &completedAt); err != nil {
			return nil, fmt.Errorf("failed to scan completion: %w", err)
		}
		c.Mode = models.Mode(mode)
		c.CompletedAt = time.UnixMilli(completedAt).Local()
		completions = append(completions, c)
	}
	return completions, rows.Err()
}
