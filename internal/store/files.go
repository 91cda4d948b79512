package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const fileColumns = "id, folder_id, original_path, original_filename, new_filename, company_name, content_summary, ocr_text, status, error_message, processed_at, created_at, updated_at"

// InsertFileRecord inserts a file process record and returns it with identity assigned.
func (s *Store) InsertFileRecord(ctx context.Context, record *FileRecord) (*FileRecord, error) {
	if record == nil {
		return nil, errors.New("record is nil")
	}
	status := record.Status
	if status == "" {
		status = StatusPending
	}

	now := formatTime(time.Now().UTC())
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO file_processes (
            folder_id, original_path, original_filename, new_filename,
            company_name, content_summary, ocr_text, status, error_message,
            processed_at, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.FolderID,
		record.OriginalPath,
		record.OriginalFilename,
		nullableString(record.NewFilename),
		nullableString(record.CompanyName),
		nullableString(record.ContentSummary),
		nullableString(record.OCRText),
		status,
		nullableString(record.ErrorMessage),
		nullableTime(record.ProcessedAt),
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert file record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetFile(ctx, id)
}

// UpdateFileRecord persists changes to an existing record.
func (s *Store) UpdateFileRecord(ctx context.Context, record *FileRecord) error {
	if record == nil {
		return errors.New("record is nil")
	}
	record.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE file_processes
         SET folder_id = ?, original_path = ?, original_filename = ?, new_filename = ?,
             company_name = ?, content_summary = ?, ocr_text = ?, status = ?,
             error_message = ?, processed_at = ?, updated_at = ?
         WHERE id = ?`,
		record.FolderID,
		record.OriginalPath,
		record.OriginalFilename,
		nullableString(record.NewFilename),
		nullableString(record.CompanyName),
		nullableString(record.ContentSummary),
		nullableString(record.OCRText),
		record.Status,
		nullableString(record.ErrorMessage),
		nullableTime(record.ProcessedAt),
		formatTime(record.UpdatedAt),
		record.ID,
	)
	if err != nil {
		return fmt.Errorf("update file record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetFile fetches a record by identifier.
func (s *Store) GetFile(ctx context.Context, id int64) (*FileRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM file_processes WHERE id = ?`, id)
	record, err := scanFileRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get file record: %w", err)
	}
	return record, nil
}

// FindFileByName returns a record whose original or renamed filename matches,
// scoped to a folder. Duplicate detection before registration goes through here.
func (s *Store) FindFileByName(ctx context.Context, folderID int64, filename string) (*FileRecord, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+fileColumns+` FROM file_processes
         WHERE folder_id = ? AND (original_filename = ? OR new_filename = ?)
         ORDER BY id LIMIT 1`,
		folderID,
		filename,
		filename,
	)
	record, err := scanFileRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find file by name: %w", err)
	}
	return record, nil
}

// ListFiles returns records matching the typed filter, newest first.
func (s *Store) ListFiles(ctx context.Context, filter FileFilter) ([]*FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM file_processes`
	var (
		clauses []string
		args    []any
	)
	if len(filter.Statuses) > 0 {
		clause := `status IN (` + makePlaceholders(len(filter.Statuses)) + `)`
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
		clauses = append(clauses, clause)
	}
	if len(filter.FolderIDs) > 0 {
		clause := `folder_id IN (` + makePlaceholders(len(filter.FolderIDs)) + `)`
		for _, id := range filter.FolderIDs {
			args = append(args, id)
		}
		clauses = append(clauses, clause)
	}
	if filter.Since != nil {
		clauses = append(clauses, `created_at >= ?`)
		args = append(args, formatTime(*filter.Since))
	}
	if filter.Until != nil {
		clauses = append(clauses, `created_at <= ?`)
		args = append(args, formatTime(*filter.Until))
	}
	for i, clause := range clauses {
		if i == 0 {
			query += ` WHERE ` + clause
		} else {
			query += ` AND ` + clause
		}
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list file records: %w", err)
	}
	defer rows.Close()

	var records []*FileRecord
	for rows.Next() {
		record, err := scanFileRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// ListFilesByStatus returns records in a status ordered oldest first, which is
// the order recovery re-enqueues them in.
func (s *Store) ListFilesByStatus(ctx context.Context, status Status) ([]*FileRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+fileColumns+` FROM file_processes WHERE status = ? ORDER BY created_at`,
		status,
	)
	if err != nil {
		return nil, fmt.Errorf("list by status: %w", err)
	}
	defer rows.Close()

	var records []*FileRecord
	for rows.Next() {
		record, err := scanFileRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// DeleteFile removes a record; its process logs cascade.
func (s *Store) DeleteFile(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM file_processes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete file record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetProcessing moves records stuck in processing back to pending. Used at
// startup after an unclean shutdown; mid-stage work is never resumed.
func (s *Store) ResetProcessing(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE file_processes SET status = ?, updated_at = ? WHERE status = ?`,
		StatusPending,
		formatTime(time.Now().UTC()),
		StatusProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("reset processing records: %w", err)
	}
	return res.RowsAffected()
}

// MarkSkipped marks a record skipped with an explanatory message.
func (s *Store) MarkSkipped(ctx context.Context, id int64, reason string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE file_processes SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		StatusSkipped,
		nullableString(reason),
		formatTime(time.Now().UTC()),
		id,
	)
	if err != nil {
		return fmt.Errorf("mark skipped: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats returns a count of records grouped by status.
func (s *Store) Stats(ctx context.Context) (StatusCounts, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM file_processes GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("file stats: %w", err)
	}
	defer rows.Close()

	stats := make(StatusCounts)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

func scanFileRecord(scanner interface{ Scan(dest ...any) error }) (*FileRecord, error) {
	var (
		id           int64
		folderID     int64
		originalPath string
		originalName string
		newName      sql.NullString
		companyName  sql.NullString
		summary      sql.NullString
		ocrText      sql.NullString
		statusStr    string
		errorMessage sql.NullString
		processedRaw sql.NullString
		createdRaw   string
		updatedRaw   string
	)
	if err := scanner.Scan(&id, &folderID, &originalPath, &originalName, &newName, &companyName, &summary, &ocrText, &statusStr, &errorMessage, &processedRaw, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}

	record := &FileRecord{
		ID:               id,
		FolderID:         folderID,
		OriginalPath:     originalPath,
		OriginalFilename: originalName,
		NewFilename:      newName.String,
		CompanyName:      companyName.String,
		ContentSummary:   summary.String,
		OCRText:          ocrText.String,
		Status:           Status(statusStr),
		ErrorMessage:     errorMessage.String,
	}
	if processedRaw.Valid {
		if processed, err := parseTimeString(processedRaw.String); err == nil {
			record.ProcessedAt = &processed
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		record.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		record.UpdatedAt = updated
	}
	return record, nil
}
