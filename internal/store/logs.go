package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Log action tags shared by the pipeline, scanner, and watcher.
const (
	ActionStart           = "START"
	ActionBackup          = "BACKUP"
	ActionOCR             = "OCR"
	ActionAnalyze         = "ANALYZE"
	ActionRename          = "RENAME"
	ActionComplete        = "COMPLETE"
	ActionError           = "ERROR"
	ActionMoveFailed      = "MOVE_FAILED"
	ActionScan            = "SCAN"
	ActionFileDetected    = "FILE_DETECTED"
	ActionWatchReady      = "WATCH_READY"
	ActionWatchError      = "WATCH_ERROR"
	ActionRecovery        = "RECOVERY"
	ActionReprocess       = "REPROCESS"
	ActionProcessExisting = "PROCESS_EXISTING"
	ActionManualRename    = "MANUAL_RENAME"
	ActionSystem          = "SYSTEM"
)

// AppendLog records an audit trail entry. fileID is nil for system events.
func (s *Store) AppendLog(ctx context.Context, fileID *int64, action, message, details string) error {
	var fileValue any
	if fileID != nil {
		fileValue = *fileID
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO process_logs (file_process_id, action, message, details, created_at) VALUES (?, ?, ?, ?, ?)`,
		fileValue,
		action,
		message,
		nullableString(details),
		formatTime(time.Now().UTC()),
	)
	if err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	return nil
}

// ListLogs returns log entries newest first. fileID of nil returns every
// entry; limit of 0 means no cap.
func (s *Store) ListLogs(ctx context.Context, fileID *int64, limit int) ([]*ProcessLog, error) {
	query := `SELECT id, file_process_id, action, message, details, created_at FROM process_logs`
	var args []any
	if fileID != nil {
		query += ` WHERE file_process_id = ?`
		args = append(args, *fileID)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	defer rows.Close()

	var logs []*ProcessLog
	for rows.Next() {
		var (
			entry      ProcessLog
			fileValue  sql.NullInt64
			details    sql.NullString
			createdRaw string
		)
		if err := rows.Scan(&entry.ID, &fileValue, &entry.Action, &entry.Message, &details, &createdRaw); err != nil {
			return nil, err
		}
		if fileValue.Valid {
			id := fileValue.Int64
			entry.FileID = &id
		}
		entry.Details = details.String
		if created, err := parseTimeString(createdRaw); err == nil {
			entry.CreatedAt = created
		}
		logs = append(logs, &entry)
	}
	return logs, rows.Err()
}
