package api

import "time"

// FolderRequest is the create/update payload for a watch folder.
type FolderRequest struct {
	Path            string `json:"path"`
	Alias           string `json:"alias"`
	Type            string `json:"type"`
	SMBHost         string `json:"smbHost,omitempty"`
	SMBShare        string `json:"smbShare,omitempty"`
	SMBUsername     string `json:"smbUsername,omitempty"`
	SMBPassword     string `json:"smbPassword,omitempty"`
	Active          *bool  `json:"isActive,omitempty"`
	ProcessExisting bool   `json:"processExisting,omitempty"`
}

// FolderView is a watch folder plus its live watcher state.
type FolderView struct {
	ID        int64      `json:"id"`
	Path      string     `json:"path"`
	Alias     string     `json:"alias"`
	Type      string     `json:"type"`
	SMBHost   string     `json:"smbHost,omitempty"`
	SMBShare  string     `json:"smbShare,omitempty"`
	Active    bool       `json:"isActive"`
	Watching  bool       `json:"watching"`
	LastError string     `json:"lastError,omitempty"`
	LastFile  string     `json:"lastFile,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	LastSeen  *time.Time `json:"lastFileAt,omitempty"`
}

// FileView is one processed (or in-flight) document.
type FileView struct {
	ID               int64      `json:"id"`
	FolderID         int64      `json:"folderId"`
	OriginalFilename string     `json:"originalFilename"`
	NewFilename      string     `json:"newFilename,omitempty"`
	CompanyName      string     `json:"companyName,omitempty"`
	ContentSummary   string     `json:"contentSummary,omitempty"`
	Status           string     `json:"status"`
	ErrorMessage     string     `json:"errorMessage,omitempty"`
	ProcessedAt      *time.Time `json:"processedAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// LogView is one audit trail entry.
type LogView struct {
	ID        int64     `json:"id"`
	FileID    *int64    `json:"fileId,omitempty"`
	Action    string    `json:"action"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// QueueEntryView is one waiting queue entry.
type QueueEntryView struct {
	ID       string    `json:"id"`
	FolderID int64     `json:"folderId"`
	Path     string    `json:"path"`
	AddedAt  time.Time `json:"addedAt"`
}

// StatusResponse is the daemon-wide status snapshot.
type StatusResponse struct {
	Running      bool             `json:"running"`
	PID          int              `json:"pid"`
	StartedAt    time.Time        `json:"startedAt"`
	DatabasePath string           `json:"databasePath"`
	QueueDepth   int              `json:"queueDepth"`
	QueueActive  bool             `json:"queueActive"`
	Queue        []QueueEntryView `json:"queue,omitempty"`
	Files        map[string]int   `json:"files"`
	Folders      []FolderView     `json:"folders"`
}

// ScanResponse reports one scan pass.
type ScanResponse struct {
	Total      int `json:"total"`
	Registered int `json:"registered"`
	Queued     int `json:"queued"`
	Known      int `json:"known"`
}

// RenameRequest asks for a manual rename of a processed file.
type RenameRequest struct {
	NewName string `json:"newName"`
}

// ReprocessResponse carries the queue entry created by a reprocess.
type ReprocessResponse struct {
	EntryID string `json:"entryId"`
}

// ShareTestRequest probes an SMB share for reachability.
type ShareTestRequest struct {
	URL      string `json:"url,omitempty"`
	Host     string `json:"host,omitempty"`
	Share    string `json:"share,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// ShareTestResponse lists a sample of the share's documents on success.
type ShareTestResponse struct {
	Reachable bool     `json:"reachable"`
	Error     string   `json:"error,omitempty"`
	Files     []string `json:"files,omitempty"`
}

// ShareStatusView is one cached share connection.
type ShareStatusView struct {
	Host        string     `json:"host"`
	Share       string     `json:"share"`
	Connected   bool       `json:"connected"`
	LastError   string     `json:"lastError,omitempty"`
	LastChecked *time.Time `json:"lastChecked,omitempty"`
}
