package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const folderColumns = "id, path, alias, folder_type, smb_host, smb_share, smb_username, smb_password, is_active, created_at, updated_at"

// CreateFolder inserts a watch folder and returns it with its identity assigned.
func (s *Store) CreateFolder(ctx context.Context, folder *Folder) (*Folder, error) {
	if folder == nil {
		return nil, errors.New("folder is nil")
	}
	if err := validateFolder(folder); err != nil {
		return nil, err
	}

	now := formatTime(time.Now().UTC())
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO watch_folders (path, alias, folder_type, smb_host, smb_share, smb_username, smb_password, is_active, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		folder.Path,
		folder.Alias,
		string(folderTypeOrDefault(folder.Type)),
		nullableString(folder.SMBHost),
		nullableString(folder.SMBShare),
		nullableString(folder.SMBUser),
		nullableString(folder.SMBSecret),
		boolToInt(folder.Active),
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert folder: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetFolder(ctx, id)
}

// UpdateFolder persists changes to an existing folder.
func (s *Store) UpdateFolder(ctx context.Context, folder *Folder) error {
	if folder == nil {
		return errors.New("folder is nil")
	}
	if err := validateFolder(folder); err != nil {
		return err
	}

	folder.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE watch_folders
         SET path = ?, alias = ?, folder_type = ?, smb_host = ?, smb_share = ?,
             smb_username = ?, smb_password = ?, is_active = ?, updated_at = ?
         WHERE id = ?`,
		folder.Path,
		folder.Alias,
		string(folderTypeOrDefault(folder.Type)),
		nullableString(folder.SMBHost),
		nullableString(folder.SMBShare),
		nullableString(folder.SMBUser),
		nullableString(folder.SMBSecret),
		boolToInt(folder.Active),
		formatTime(folder.UpdatedAt),
		folder.ID,
	)
	if err != nil {
		return fmt.Errorf("update folder: %w", err)
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

// SetFolderActive toggles the active flag.
func (s *Store) SetFolderActive(ctx context.Context, id int64, active bool) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE watch_folders SET is_active = ?, updated_at = ? WHERE id = ?`,
		boolToInt(active),
		formatTime(time.Now().UTC()),
		id,
	)
	if err != nil {
		return fmt.Errorf("set folder active: %w", err)
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

// DeleteFolder removes a folder; department mappings cascade.
func (s *Store) DeleteFolder(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM watch_folders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete folder: %w", err)
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

// GetFolder fetches a folder by identifier.
func (s *Store) GetFolder(ctx context.Context, id int64) (*Folder, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+folderColumns+` FROM watch_folders WHERE id = ?`, id)
	folder, err := scanFolder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get folder: %w", err)
	}
	return folder, nil
}

// ListFolders returns folders ordered by creation; activeOnly filters to active ones.
func (s *Store) ListFolders(ctx context.Context, activeOnly bool) ([]*Folder, error) {
	query := `SELECT ` + folderColumns + ` FROM watch_folders`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	var folders []*Folder
	for rows.Next() {
		folder, err := scanFolder(rows)
		if err != nil {
			return nil, err
		}
		folders = append(folders, folder)
	}
	return folders, rows.Err()
}

// AddMapping grants a department code access to a folder.
func (s *Store) AddMapping(ctx context.Context, folderID int64, deptCode string) error {
	deptCode = strings.TrimSpace(deptCode)
	if deptCode == "" {
		return errors.New("dept code is empty")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO folder_dept_mappings (folder_id, dept_code, created_at) VALUES (?, ?, ?)`,
		folderID,
		deptCode,
		formatTime(time.Now().UTC()),
	)
	if err != nil {
		return fmt.Errorf("add mapping: %w", err)
	}
	return nil
}

// ListMappings returns the department mappings for a folder.
func (s *Store) ListMappings(ctx context.Context, folderID int64) ([]*Mapping, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, folder_id, dept_code, created_at FROM folder_dept_mappings WHERE folder_id = ? ORDER BY dept_code`,
		folderID,
	)
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}
	defer rows.Close()

	var mappings []*Mapping
	for rows.Next() {
		var (
			m          Mapping
			createdRaw string
		)
		if err := rows.Scan(&m.ID, &m.FolderID, &m.DeptCode, &createdRaw); err != nil {
			return nil, err
		}
		if created, err := parseTimeString(createdRaw); err == nil {
			m.CreatedAt = created
		}
		mappings = append(mappings, &m)
	}
	return mappings, rows.Err()
}

// DeleteMappings removes all department mappings for a folder.
func (s *Store) DeleteMappings(ctx context.Context, folderID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM folder_dept_mappings WHERE folder_id = ?`, folderID); err != nil {
		return fmt.Errorf("delete mappings: %w", err)
	}
	return nil
}

func validateFolder(folder *Folder) error {
	if strings.TrimSpace(folder.Alias) == "" {
		return errors.New("folder alias is required")
	}
	if folderTypeOrDefault(folder.Type) == FolderRemote && folder.Active {
		if strings.TrimSpace(folder.SMBHost) == "" || strings.TrimSpace(folder.SMBShare) == "" {
			return errors.New("remote folder requires smb host and share")
		}
	}
	if folderTypeOrDefault(folder.Type) == FolderLocal && strings.TrimSpace(folder.Path) == "" {
		return errors.New("local folder requires a path")
	}
	return nil
}

func folderTypeOrDefault(t FolderType) FolderType {
	if t == FolderRemote {
		return FolderRemote
	}
	return FolderLocal
}

func scanFolder(scanner interface{ Scan(dest ...any) error }) (*Folder, error) {
	var (
		id         int64
		path       string
		alias      string
		folderType string
		smbHost    sql.NullString
		smbShare   sql.NullString
		smbUser    sql.NullString
		smbSecret  sql.NullString
		isActive   int
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(&id, &path, &alias, &folderType, &smbHost, &smbShare, &smbUser, &smbSecret, &isActive, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}

	folder := &Folder{
		ID:        id,
		Path:      path,
		Alias:     alias,
		Type:      FolderType(folderType),
		SMBHost:   smbHost.String,
		SMBShare:  smbShare.String,
		SMBUser:   smbUser.String,
		SMBSecret: smbSecret.String,
		Active:    isActive != 0,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		folder.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		folder.UpdatedAt = updated
	}
	return folder, nil
}
