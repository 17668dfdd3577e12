package earmark

import (
	"context"

	"github.com/himanishpuri/EarMark/pkg/earmark/capture"
	"github.com/himanishpuri/EarMark/pkg/earmark/listen"
	"github.com/himanishpuri/EarMark/pkg/earmark/match"
	"github.com/himanishpuri/EarMark/pkg/earmark/storage"
	"github.com/himanishpuri/EarMark/pkg/models"
)

type Service interface {
	Ingest(ctx context.Context, path string) (IngestStatus, error)
	IngestPaths(ctx context.Context, paths []string, report func(IngestReport)) (int, error)
	IngestYouTube(ctx context.Context, url string) (IngestStatus, error)

	NewSession(nativeRate, channels int) (*listen.Session, error)
	Listen(ctx context.Context, sess *listen.Session, src capture.Source) (listen.Result, error)
	Identify(ctx context.Context, src capture.Source) (listen.Result, error)
	IdentifyFile(ctx context.Context, path string) (match.Decision, error)
	IdentifyRecords(records []models.Record) (match.Decision, error)

	GetSong(id models.SongID) (models.Song, bool, error)
	ListSongs() ([]models.Song, error)
	DeleteSong(id models.SongID) (int, error)
	Stats() (models.Stats, error)
	PruneOrphans() (int, error)
	Close() error
}

// Store is the fingerprint index plus song catalog.
type Store interface {
	PutFingerprint(hash uint32, id models.SongID, timeIndex int32) error
	PutFingerprints(id models.SongID, records []models.Record) error
	GetFingerprint(hash uint32) ([]models.Entry, error)
	PutSong(id models.SongID, name string) error
	GetSong(id models.SongID) (name string, ok bool, err error)
	ListSongs() ([]models.Song, error)
	Stats() (models.Stats, error)
	DeleteSong(id models.SongID) (int, error)
	PruneOrphans() (int, error)
	Close() error
}

var (
	_ Store = (*storage.BadgerStore)(nil)
	_ Store = (*storage.SQLiteStore)(nil)
)

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
