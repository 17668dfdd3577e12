package models

import (
	"encoding/hex"
	"fmt"
	"time"
)

// SongIDSize is the width of a song id in bytes (a 128-bit content digest).
const SongIDSize = 16

// SongID identifies a catalogued song. It is derived from the song file's bytes
// and never changes once assigned.
type SongID [SongIDSize]byte

// String returns the lowercase hex form of the id.
func (id SongID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether the id is unset.
func (id SongID) IsZero() bool {
	return id == SongID{}
}

// ParseSongID parses the 32-character hex form produced by SongID.String.
func ParseSongID(s string) (SongID, error) {
	var id SongID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("invalid song id %q: %w", s, err)
	}
	if len(b) != SongIDSize {
		return id, fmt.Errorf("invalid song id %q: want %d bytes, got %d", s, SongIDSize, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// Song is a catalog row.
type Song struct {
	ID   SongID
	Name string // Display name, normally the ingested file's base name
}

// Record is one fingerprint produced by the extractor.
// Hash packs a 22-bit sign mask in bits 0-21 and the zero-based band in bits 22+.
// TimeIndex is the frame index (10 ms hops) of the peak inside the analysed window.
type Record struct {
	Hash      uint32
	TimeIndex int32
}

// MatchResult describes an identified song.
type MatchResult struct {
	SongID  SongID
	Name    string        // Display name from the catalog
	Score   int           // Votes in the winning (song, delta) cell
	Delta   int32         // Winning time delta in 10 ms units
	Offset  time.Duration // Position reported for the match
	Elapsed time.Duration // Listening time when the decision was taken
}

// Clock renders the reported offset as MM:SS.
func (m MatchResult) Clock() string {
	secs := int(m.Offset / time.Second)
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
