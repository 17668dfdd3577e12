//go:build !js && !wasm

package main

import (
	"fmt"

	"github.com/himanishpuri/EarMark/pkg/earmark/fingerprint"
	"github.com/himanishpuri/EarMark/pkg/models"
)

// Record limits for POST /api/match/records
const (
	// MaxRecordsHardLimit is about two minutes of dense audio
	MaxRecordsHardLimit = 50000

	// RecordWarningThreshold triggers logging for large batches
	RecordWarningThreshold = 5000
)

// RecordDTO is one fingerprint as produced by the WASM module
type RecordDTO struct {
	Hash uint32 `json:"hash"`
	T    int32  `json:"t"`
}

// MatchRecordsRequest is the request body for POST /api/match/records
type MatchRecordsRequest struct {
	Records []RecordDTO `json:"records"`
}

// Validate checks if the request is valid
func (r *MatchRecordsRequest) Validate() error {
	if len(r.Records) == 0 {
		return fmt.Errorf("records cannot be empty")
	}
	if len(r.Records) > MaxRecordsHardLimit {
		return fmt.Errorf("too many records: %d (maximum: %d)", len(r.Records), MaxRecordsHardLimit)
	}
	for i, rec := range r.Records {
		if !isValidHash(rec.Hash) {
			return fmt.Errorf("record %d: invalid hash %d", i, rec.Hash)
		}
		if rec.T < 0 {
			return fmt.Errorf("record %d: negative time index %d", i, rec.T)
		}
	}
	return nil
}

// ToRecords converts the request into extractor records.
func (r *MatchRecordsRequest) ToRecords() []models.Record {
	out := make([]models.Record, len(r.Records))
	for i, rec := range r.Records {
		out[i] = models.Record{Hash: rec.Hash, TimeIndex: rec.T}
	}
	return out
}

// isValidHash checks that the band field names a band a peak can sit on.
// Hash format: [band-1 (bits 22+) | sign mask (22 bits)]
func isValidHash(hash uint32) bool {
	return fingerprint.BandOf(hash) <= fingerprint.NumBands-3
}

// AddSongYouTubeRequest is the request body for POST /api/songs/youtube
type AddSongYouTubeRequest struct {
	YouTubeURL string `json:"youtube_url"`
}

func (r *AddSongYouTubeRequest) Validate() error {
	if r.YouTubeURL == "" {
		return fmt.Errorf("youtube_url is required")
	}
	return nil
}

// IngestResponse is the response for POST /api/songs and /api/songs/youtube
type IngestResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
	ID      string `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
}

// SongDTO represents a song in API responses
type SongDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func toSongDTO(s models.Song) SongDTO {
	return SongDTO{ID: s.ID.String(), Name: s.Name}
}

// ListSongsResponse is the response for GET /api/songs
type ListSongsResponse struct {
	Songs []SongDTO `json:"songs"`
	Count int       `json:"count"`
}

// DeleteSongResponse is the response for DELETE /api/songs/{id}
type DeleteSongResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
	Removed int    `json:"removed_entries"`
}

// StatsResponse is the response for GET /api/stats
type StatsResponse struct {
	Songs          int64  `json:"songs"`
	Fingerprints   int64  `json:"fingerprints"`
	DistinctHashes int64  `json:"distinct_hashes"`
	Summary        string `json:"summary"`
	Backend        string `json:"backend"`
}

// MatchResponse is the response for both match endpoints
type MatchResponse struct {
	Matched   bool   `json:"matched"`
	Verdict   string `json:"verdict"`
	SongID    string `json:"song_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Score     int    `json:"score"`
	OffsetMs  int64  `json:"offset_ms"`
	Clock     string `json:"clock,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
