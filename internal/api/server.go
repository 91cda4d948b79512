// Package api exposes the daemon's control surface over HTTP. Every
// endpoint speaks JSON; errors come back as {"error": "..."} with a
// matching status code.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"docflow/internal/logging"
	"docflow/internal/pipeline"
	"docflow/internal/scanner"
	"docflow/internal/share"
	"docflow/internal/store"
	"docflow/internal/watcher"
)

// Deps collects everything the HTTP surface needs from the daemon.
type Deps struct {
	Store    *store.Store
	Queue    *pipeline.Queue
	Pipeline *pipeline.Service
	Scanner  *scanner.Scanner
	Watchers *watcher.Manager
	Resolver *share.Resolver
	Logger   *slog.Logger
}

// Server is the daemon's HTTP control surface.
type Server struct {
	bind      string
	logger    *slog.Logger
	startedAt time.Time

	store    *store.Store
	queue    *pipeline.Queue
	pipeline *pipeline.Service
	scanner  *scanner.Scanner
	watchers *watcher.Manager
	resolver *share.Resolver

	listener net.Listener
	server   *http.Server
}

// NewServer builds the server; a blank bind address disables it and
// returns nil.
func NewServer(bind string, deps Deps) *Server {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	srv := &Server{
		bind:      bind,
		logger:    logging.WithComponent(logger, "api"),
		startedAt: time.Now().UTC(),
		store:     deps.Store,
		queue:     deps.Queue,
		pipeline:  deps.Pipeline,
		scanner:   deps.Scanner,
		watchers:  deps.Watchers,
		resolver:  deps.Resolver,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/folders", srv.handleFolders)
	mux.HandleFunc("/api/folders/", srv.handleFolderItem)
	mux.HandleFunc("/api/files", srv.handleFiles)
	mux.HandleFunc("/api/files/", srv.handleFileItem)
	mux.HandleFunc("/api/logs", srv.handleLogs)
	mux.HandleFunc("/api/shares/test", srv.handleShareTest)
	mux.HandleFunc("/api/shares/status", srv.handleShareStatus)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins serving and shuts down when ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Stop shuts the server down.
func (s *Server) Stop() {
	if s == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	counts, err := s.store.Stats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	files := make(map[string]int, len(counts))
	for status, n := range counts {
		files[string(status)] = n
	}

	folders, err := s.store.ListFolders(r.Context(), false)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]FolderView, 0, len(folders))
	for _, folder := range folders {
		views = append(views, s.folderView(folder))
	}

	entries := s.queue.Snapshot()
	queueViews := make([]QueueEntryView, 0, len(entries))
	for _, entry := range entries {
		queueViews = append(queueViews, QueueEntryView{
			ID:       entry.ID,
			FolderID: entry.FolderID,
			Path:     entry.Path,
			AddedAt:  entry.AddedAt,
		})
	}

	s.writeJSON(w, http.StatusOK, StatusResponse{
		Running:      true,
		PID:          os.Getpid(),
		StartedAt:    s.startedAt,
		DatabasePath: s.store.Path(),
		QueueDepth:   len(entries),
		QueueActive:  s.queue.Active(),
		Queue:        queueViews,
		Files:        files,
		Folders:      views,
	})
}

func (s *Server) handleFolders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		folders, err := s.store.ListFolders(r.Context(), false)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		views := make([]FolderView, 0, len(folders))
		for _, folder := range folders {
			views = append(views, s.folderView(folder))
		}
		s.writeJSON(w, http.StatusOK, views)
	case http.MethodPost:
		s.createFolder(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) createFolder(w http.ResponseWriter, r *http.Request) {
	var req FolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	folderType := store.FolderType(strings.TrimSpace(req.Type))
	if folderType == "" {
		folderType = store.FolderLocal
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	folder := &store.Folder{
		Path:      strings.TrimSpace(req.Path),
		Alias:     strings.TrimSpace(req.Alias),
		Type:      folderType,
		SMBHost:   strings.TrimSpace(req.SMBHost),
		SMBShare:  strings.TrimSpace(req.SMBShare),
		SMBUser:   req.SMBUsername,
		SMBSecret: req.SMBPassword,
		Active:    active,
	}
	folder, err := s.store.CreateFolder(r.Context(), folder)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if folder.Active {
		if err := s.watchers.Watch(r.Context(), folder); err != nil {
			s.logger.Warn("watch failed for new folder",
				logging.String("folder", folder.Alias), logging.Error(err))
		} else if _, err := s.scanner.Scan(r.Context(), folder, req.ProcessExisting); err != nil {
			s.logger.Warn("initial scan failed",
				logging.String("folder", folder.Alias), logging.Error(err))
		}
	}
	s.writeJSON(w, http.StatusCreated, s.folderView(folder))
}

func (s *Server) handleFolderItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/folders/")
	idStr, action, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid folder id")
		return
	}

	switch {
	case action == "scan" && r.Method == http.MethodPost:
		s.scanFolder(w, r, id)
	case action == "" && r.Method == http.MethodPatch:
		s.updateFolder(w, r, id)
	case action == "" && r.Method == http.MethodDelete:
		s.deleteFolder(w, r, id)
	case action == "" && r.Method == http.MethodGet:
		folder, err := s.store.GetFolder(r.Context(), id)
		if err != nil {
			s.writeStoreError(w, err, "folder not found")
			return
		}
		s.writeJSON(w, http.StatusOK, s.folderView(folder))
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) scanFolder(w http.ResponseWriter, r *http.Request, id int64) {
	folder, err := s.store.GetFolder(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err, "folder not found")
		return
	}
	processNew := r.URL.Query().Get("processNew") == "1" ||
		strings.EqualFold(r.URL.Query().Get("processNew"), "true")
	result, err := s.scanner.Scan(r.Context(), folder, processNew)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, ScanResponse{
		Total:      result.Total,
		Registered: result.Registered,
		Queued:     result.Queued,
		Known:      result.Skipped,
	})
}

func (s *Server) updateFolder(w http.ResponseWriter, r *http.Request, id int64) {
	folder, err := s.store.GetFolder(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err, "folder not found")
		return
	}
	var req FolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if v := strings.TrimSpace(req.Path); v != "" {
		folder.Path = v
	}
	if v := strings.TrimSpace(req.Alias); v != "" {
		folder.Alias = v
	}
	if v := strings.TrimSpace(req.Type); v != "" {
		folder.Type = store.FolderType(v)
	}
	if v := strings.TrimSpace(req.SMBHost); v != "" {
		folder.SMBHost = v
	}
	if v := strings.TrimSpace(req.SMBShare); v != "" {
		folder.SMBShare = v
	}
	if req.SMBUsername != "" {
		folder.SMBUser = req.SMBUsername
	}
	if req.SMBPassword != "" {
		folder.SMBSecret = req.SMBPassword
	}
	if req.Active != nil {
		folder.Active = *req.Active
	}
	if err := s.store.UpdateFolder(r.Context(), folder); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Active != nil {
		if *req.Active {
			if err := s.watchers.Watch(r.Context(), folder); err != nil {
				s.logger.Warn("watch failed",
					logging.String("folder", folder.Alias), logging.Error(err))
			}
		} else if err := s.watchers.Unwatch(folder.ID); err != nil && !errors.Is(err, watcher.ErrNotWatching) {
			s.logger.Warn("unwatch failed",
				logging.String("folder", folder.Alias), logging.Error(err))
		}
	}
	s.writeJSON(w, http.StatusOK, s.folderView(folder))
}

func (s *Server) deleteFolder(w http.ResponseWriter, r *http.Request, id int64) {
	if err := s.watchers.Unwatch(id); err != nil && !errors.Is(err, watcher.ErrNotWatching) {
		s.logger.Warn("unwatch failed", logging.Int64("folder_id", id), logging.Error(err))
	}
	if err := s.store.DeleteFolder(r.Context(), id); err != nil {
		s.writeStoreError(w, err, "folder not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	filter := store.FileFilter{}
	for _, value := range r.URL.Query()["status"] {
		status, ok := store.ParseStatus(strings.TrimSpace(value))
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", value))
			return
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	if v := r.URL.Query().Get("folder"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid folder id")
			return
		}
		filter.FolderIDs = []int64{id}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	records, err := s.store.ListFiles(r.Context(), filter)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]FileView, 0, len(records))
	for _, record := range records {
		views = append(views, fileView(record))
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleFileItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/files/")
	idStr, action, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid file id")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		record, err := s.store.GetFile(r.Context(), id)
		if err != nil {
			s.writeStoreError(w, err, "file not found")
			return
		}
		s.writeJSON(w, http.StatusOK, fileView(record))
	case action == "" && r.Method == http.MethodDelete:
		if err := s.store.DeleteFile(r.Context(), id); err != nil {
			s.writeStoreError(w, err, "file not found")
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
	case action == "reprocess" && r.Method == http.MethodPost:
		entryID, err := s.pipeline.Reprocess(r.Context(), id)
		if err != nil {
			s.writeStoreError(w, err, "file not found")
			return
		}
		s.writeJSON(w, http.StatusAccepted, ReprocessResponse{EntryID: entryID})
	case action == "rename" && r.Method == http.MethodPost:
		var req RenameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.NewName) == "" {
			s.writeError(w, http.StatusBadRequest, "newName is required")
			return
		}
		record, err := s.pipeline.ManualRename(r.Context(), id, req.NewName)
		if err != nil {
			s.writeStoreError(w, err, "file not found")
			return
		}
		s.writeJSON(w, http.StatusOK, fileView(record))
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var fileID *int64
	if v := r.URL.Query().Get("file"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid file id")
			return
		}
		fileID = &id
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	logs, err := s.store.ListLogs(r.Context(), fileID, limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]LogView, 0, len(logs))
	for _, entry := range logs {
		views = append(views, LogView{
			ID:        entry.ID,
			FileID:    entry.FileID,
			Action:    entry.Action,
			Message:   entry.Message,
			Details:   entry.Details,
			CreatedAt: entry.CreatedAt,
		})
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleShareTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req ShareTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	host, shareName := strings.TrimSpace(req.Host), strings.TrimSpace(req.Share)
	if req.URL != "" {
		addr, err := share.ParseShareURL(req.URL)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		host, shareName = addr.Host, addr.Share
	}
	if host == "" || shareName == "" {
		s.writeError(w, http.StatusBadRequest, "host and share are required")
		return
	}

	files, err := s.resolver.TestConnection(r.Context(), host, shareName, req.Username, req.Password)
	if err != nil {
		s.writeJSON(w, http.StatusOK, ShareTestResponse{Reachable: false, Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, ShareTestResponse{Reachable: true, Files: files})
}

func (s *Server) handleShareStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	statuses := s.resolver.AllStatuses()
	views := make([]ShareStatusView, 0, len(statuses))
	for _, status := range statuses {
		checked := status.LastChecked
		views = append(views, ShareStatusView{
			Host:        status.Host,
			Share:       status.Share,
			Connected:   status.Connected,
			LastError:   status.Error,
			LastChecked: &checked,
		})
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) folderView(folder *store.Folder) FolderView {
	view := FolderView{
		ID:        folder.ID,
		Path:      folder.Path,
		Alias:     folder.Alias,
		Type:      string(folder.Type),
		SMBHost:   folder.SMBHost,
		SMBShare:  folder.SMBShare,
		Active:    folder.Active,
		CreatedAt: folder.CreatedAt,
		UpdatedAt: folder.UpdatedAt,
	}
	view.Watching = s.watchers.Watching(folder.ID)
	if status, ok := s.watchers.StatusFor(folder.ID); ok {
		view.LastError = status.LastError
		view.LastFile = status.LastFile
		view.LastSeen = status.LastFileAt
	}
	return view
}

func fileView(record *store.FileRecord) FileView {
	return FileView{
		ID:               record.ID,
		FolderID:         record.FolderID,
		OriginalFilename: record.OriginalFilename,
		NewFilename:      record.NewFilename,
		CompanyName:      record.CompanyName,
		ContentSummary:   record.ContentSummary,
		Status:           string(record.Status),
		ErrorMessage:     record.ErrorMessage,
		ProcessedAt:      record.ProcessedAt,
		CreatedAt:        record.CreatedAt,
		UpdatedAt:        record.UpdatedAt,
	}
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error, notFound string) {
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, notFound)
		return
	}
	s.writeError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
