package store

import (
	"strings"
	"time"
)

// FolderType distinguishes locally mounted folders from SMB shares.
type FolderType string

const (
	FolderLocal  FolderType = "local"
	FolderRemote FolderType = "remote"
)

// Status represents the lifecycle of a file process record.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
	// StatusExisting marks a file discovered during a scan with no inferred
	// prior processing, awaiting an on-demand trigger.
	StatusExisting Status = "existing"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusSkipped,
	StatusExisting,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status can no longer change on its own.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusSkipped, StatusExisting:
		return true
	default:
		return false
	}
}

// Folder is a monitored location, local or on an SMB share.
type Folder struct {
	ID        int64
	Path      string
	Alias     string
	Type      FolderType
	SMBHost   string
	SMBShare  string
	SMBUser   string
	SMBSecret string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsRemote reports whether the folder lives on a network share.
func (f *Folder) IsRemote() bool {
	return f.Type == FolderRemote
}

// FileRecord tracks one file through the processing pipeline.
type FileRecord struct {
	ID               int64
	FolderID         int64
	OriginalPath     string
	OriginalFilename string
	NewFilename      string
	CompanyName      string
	ContentSummary   string
	OCRText          string
	Status           Status
	ErrorMessage     string
	ProcessedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CurrentFilename returns the name the file carries on disk right now.
func (r *FileRecord) CurrentFilename() string {
	if r.NewFilename != "" {
		return r.NewFilename
	}
	return r.OriginalFilename
}

// ProcessLog is an append-only audit trail entry. FileID is nil for
// system-level events.
type ProcessLog struct {
	ID        int64
	FileID    *int64
	Action    string
	Message   string
	Details   string
	CreatedAt time.Time
}

// Mapping grants a department code visibility into a folder's files.
type Mapping struct {
	ID        int64
	FolderID  int64
	DeptCode  string
	CreatedAt time.Time
}

// ProcessingState is the singleton record backing startup recovery.
type ProcessingState struct {
	LastProcessedFileID int64
	LastScanTime        *time.Time
	IsProcessing        bool
	UpdatedAt           time.Time
}

// FileFilter selects file records by typed criteria.
type FileFilter struct {
	Statuses  []Status
	FolderIDs []int64
	Since     *time.Time
	Until     *time.Time
	Limit     int
}

// StatusCounts aggregates file records per lifecycle state.
type StatusCounts map[Status]int
