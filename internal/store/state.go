package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetProcessingState reads the singleton processing state row.
func (s *Store) GetProcessingState(ctx context.Context) (*ProcessingState, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT last_processed_file_id, last_scan_time, is_processing, updated_at FROM processing_state WHERE id = 1`,
	)

	var (
		state       ProcessingState
		lastScanRaw sql.NullString
		processing  int
		updatedRaw  string
	)
	err := row.Scan(&state.LastProcessedFileID, &lastScanRaw, &processing, &updatedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get processing state: %w", err)
	}

	state.IsProcessing = processing != 0
	if lastScanRaw.Valid {
		if scan, err := parseTimeString(lastScanRaw.String); err == nil {
			state.LastScanTime = &scan
		}
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		state.UpdatedAt = updated
	}
	return &state, nil
}

// SetProcessingState updates the singleton row used for startup recovery
// observability. This is not a cross-process lock; single-instance execution
// is enforced elsewhere.
func (s *Store) SetProcessingState(ctx context.Context, lastFileID int64, isProcessing bool) error {
	now := formatTime(time.Now().UTC())
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE processing_state
         SET last_processed_file_id = ?, last_scan_time = ?, is_processing = ?, updated_at = ?
         WHERE id = 1`,
		lastFileID,
		now,
		boolToInt(isProcessing),
		now,
	)
	if err != nil {
		return fmt.Errorf("set processing state: %w", err)
	}
	return nil
}
