//go:build !js && !wasm

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/himanishpuri/EarMark/pkg/earmark"
	"github.com/himanishpuri/EarMark/pkg/earmark/match"
	"github.com/himanishpuri/EarMark/pkg/logger"
	"github.com/himanishpuri/EarMark/pkg/models"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service earmark.Service
	config  *ServerConfig
	log     earmark.Logger
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	DataDir        string
	Backend        string
	TempDir        string
	AllowedOrigins []string
}

func NewServer(service earmark.Service, config *ServerConfig) *Server {
	return &Server{
		service: service,
		config:  config,
		log:     logger.GetLogger(),
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"service": "earmark API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":        "GET /health",
			"stats":         "GET /api/stats",
			"songs":         "GET /api/songs",
			"ingestFile":    "POST /api/songs",
			"ingestYouTube": "POST /api/songs/youtube",
			"getSong":       "GET /api/songs/{id}",
			"deleteSong":    "DELETE /api/songs/{id}",
			"matchFile":     "POST /api/match",
			"matchRecords":  "POST /api/match/records",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleStats handles GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	stats, err := s.service.Stats()
	if err != nil {
		s.log.Errorf("Failed to read stats: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve stats")
		return
	}

	s.respondJSON(w, http.StatusOK, StatsResponse{
		Songs:          stats.Songs,
		Fingerprints:   stats.Fingerprints,
		DistinctHashes: stats.DistinctHashes,
		Summary: fmt.Sprintf("%s songs, %s fingerprints",
			humanize.Comma(stats.Songs), humanize.Comma(stats.Fingerprints)),
		Backend: s.config.Backend,
	})
}

// handleListSongs handles GET /api/songs
func (s *Server) handleListSongs(w http.ResponseWriter, r *http.Request) {
	songs, err := s.service.ListSongs()
	if err != nil {
		s.log.Errorf("Failed to list songs: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve songs")
		return
	}

	dtos := make([]SongDTO, len(songs))
	for i, song := range songs {
		dtos[i] = toSongDTO(song)
	}
	s.respondJSON(w, http.StatusOK, ListSongsResponse{Songs: dtos, Count: len(dtos)})
}

// handleGetSong handles GET /api/songs/{id}
func (s *Server) handleGetSong(w http.ResponseWriter, r *http.Request, id models.SongID) {
	song, ok, err := s.service.GetSong(id)
	if err != nil {
		s.log.Errorf("Failed to read song %s: %v", id, err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve song")
		return
	}
	if !ok {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("Song %s not found", id))
		return
	}
	s.respondJSON(w, http.StatusOK, toSongDTO(song))
}

// handleDeleteSong handles DELETE /api/songs/{id}
func (s *Server) handleDeleteSong(w http.ResponseWriter, r *http.Request, id models.SongID) {
	song, ok, err := s.service.GetSong(id)
	if err != nil {
		s.log.Errorf("Failed to read song %s: %v", id, err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve song")
		return
	}
	if !ok {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("Song %s not found", id))
		return
	}

	removed, err := s.service.DeleteSong(id)
	if err != nil {
		s.log.Errorf("Failed to delete song %s: %v", id, err)
		s.respondError(w, http.StatusInternalServerError, "Failed to delete song")
		return
	}

	s.log.Infof("Deleted song %q (%s)", song.Name, id)
	s.respondJSON(w, http.StatusOK, DeleteSongResponse{
		Message: "Song deleted successfully",
		ID:      id.String(),
		Removed: removed,
	})
}

// saveUpload stores the "audio" form file under a fresh temp dir, keeping its
// base name so decoding and naming behave as for a local file. The returned
// cleanup removes it.
func (s *Server) saveUpload(r *http.Request, maxBytes int64) (string, func(), error) {
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return "", nil, fmt.Errorf("failed to parse form data: %w", err)
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		return "", nil, errors.New("audio file is required")
	}
	defer file.Close()

	dir, err := os.MkdirTemp(s.config.TempDir, "upload-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { os.RemoveAll(dir) }

	path := filepath.Join(dir, uploadName(header))
	if err := copyTo(path, file); err != nil {
		cleanup()
		return "", nil, err
	}
	return path, cleanup, nil
}

func uploadName(h *multipart.FileHeader) string {
	name := filepath.Base(h.Filename)
	if name == "." || name == string(filepath.Separator) {
		return "upload"
	}
	return name
}

func copyTo(path string, src io.Reader) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// ingestStatusCode maps an ingest outcome to an HTTP status.
func ingestStatusCode(status earmark.IngestStatus) int {
	switch status {
	case earmark.Inserted:
		return http.StatusCreated
	case earmark.Skipped:
		return http.StatusOK
	case earmark.BadFile:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// handleIngestFile handles POST /api/songs (multipart file upload)
func (s *Server) handleIngestFile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	path, cleanup, err := s.saveUpload(r, 100<<20)
	if err != nil {
		s.log.Warnf("Rejected upload: %v", err)
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer cleanup()

	id, err := earmark.DigestFile(path)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "Failed to read upload")
		return
	}

	status, err := s.service.Ingest(ctx, path)
	resp := IngestResponse{Status: status.String(), ID: id.String(), Name: filepath.Base(path)}
	switch status {
	case earmark.Inserted:
		resp.Message = "Song ingested successfully"
	case earmark.Skipped:
		resp.Message = "Song already catalogued"
	default:
		s.log.Errorf("Failed to ingest %s: %v", filepath.Base(path), err)
		s.respondError(w, ingestStatusCode(status), fmt.Sprintf("Failed to ingest song: %v", err))
		return
	}
	s.respondJSON(w, ingestStatusCode(status), resp)
}

// handleAddSongYouTube handles POST /api/songs/youtube
func (s *Server) handleAddSongYouTube(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	var req AddSongYouTubeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.log.Infof("Ingesting YouTube URL: %s", req.YouTubeURL)
	status, err := s.service.IngestYouTube(ctx, req.YouTubeURL)
	if status != earmark.Inserted && status != earmark.Skipped {
		s.log.Errorf("YouTube ingest failed: %v", err)
		s.respondError(w, ingestStatusCode(status), fmt.Sprintf("Failed to ingest video: %v", err))
		return
	}
	s.respondJSON(w, ingestStatusCode(status), IngestResponse{
		Message: "YouTube audio " + status.String(),
		Status:  status.String(),
	})
}

func toMatchResponse(d match.Decision) MatchResponse {
	resp := MatchResponse{
		Matched:   d.Verdict == match.Match,
		Verdict:   d.Verdict.String(),
		Score:     d.Best.Count,
		ElapsedMs: d.Elapsed.Milliseconds(),
	}
	if resp.Matched {
		m := d.Result()
		resp.SongID = m.SongID.String()
		resp.Name = m.Name
		resp.OffsetMs = m.Offset.Milliseconds()
		resp.Clock = m.Clock()
	}
	return resp
}

// handleMatchFile handles POST /api/match (multipart file upload)
func (s *Server) handleMatchFile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	path, cleanup, err := s.saveUpload(r, 50<<20)
	if err != nil {
		s.log.Warnf("Rejected upload: %v", err)
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer cleanup()

	d, err := s.service.IdentifyFile(ctx, path)
	if err != nil {
		s.log.Errorf("Failed to identify %s: %v", filepath.Base(path), err)
		s.respondError(w, http.StatusUnprocessableEntity, fmt.Sprintf("Failed to identify clip: %v", err))
		return
	}
	s.log.Infof("Match on %s: %s with %d votes", filepath.Base(path), d.Verdict, d.Best.Count)
	s.respondJSON(w, http.StatusOK, toMatchResponse(d))
}

// handleMatchRecords handles POST /api/match/records (records from WASM clients)
func (s *Server) handleMatchRecords(w http.ResponseWriter, r *http.Request) {
	var req MatchRecordsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Records) >= RecordWarningThreshold {
		s.log.Warnf("Large record batch received: %d records", len(req.Records))
	}

	d, err := s.service.IdentifyRecords(req.ToRecords())
	if err != nil {
		s.log.Errorf("Failed to match records: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to match records")
		return
	}
	s.respondJSON(w, http.StatusOK, toMatchResponse(d))
}

// handleSongs routes requests to /api/songs
func (s *Server) handleSongs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListSongs(w, r)
	case http.MethodPost:
		s.handleIngestFile(w, r)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleSong routes requests to /api/songs/{id}
func (s *Server) handleSong(w http.ResponseWriter, r *http.Request) {
	idStr := r.URL.Path[len("/api/songs/"):]
	if idStr == "" {
		s.respondError(w, http.StatusBadRequest, "Song ID required")
		return
	}
	id, err := models.ParseSongID(idStr)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid song ID")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetSong(w, r, id)
	case http.MethodDelete:
		s.handleDeleteSong(w, r, id)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleMatch routes requests to /api/match
func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.handleMatchFile(w, r)
}

// handleMatchRecordsRoute routes requests to /api/match/records
func (s *Server) handleMatchRecordsRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.handleMatchRecords(w, r)
}
