package earmark

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/himanishpuri/EarMark/pkg/earmark/audio"
	"github.com/himanishpuri/EarMark/pkg/earmark/fingerprint"
	"github.com/himanishpuri/EarMark/pkg/earmark/storage"
	"github.com/himanishpuri/EarMark/pkg/logger"
	"github.com/himanishpuri/EarMark/pkg/models"
)

var ErrUnknownBackend = errors.New("unknown storage backend")

// earmarkService is the default implementation of the Service interface.
type earmarkService struct {
	store     Store
	decoder   audio.Decoder
	extractor *fingerprint.Extractor
	log       Logger
	config    *Config
}

// storeLogger demotes the store's chatter to debug.
type storeLogger struct{ Logger }

func (l storeLogger) Infof(format string, args ...any) { l.Debugf(format, args...) }

func openStore(cfg *Config) (Store, error) {
	opts := storage.Options{SyncWrites: cfg.SyncWrites, Logger: storeLogger{cfg.Logger}}
	switch cfg.Backend {
	case BackendBadger, "":
		return storage.OpenBadger(cfg.DataDir, opts)
	case BackendSQLite:
		return storage.OpenSQLite(filepath.Join(cfg.DataDir, storage.DefaultSQLiteFile), opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
	if cfg.Decoder == nil {
		cfg.Decoder = audio.NewAutoDecoder(fingerprint.SampleRate)
	}

	store := cfg.Store
	if store == nil {
		var err error
		if store, err = openStore(cfg); err != nil {
			return nil, fmt.Errorf("failed to open %s store: %w", cfg.Backend, err)
		}
	}

	if cfg.PruneOnOpen {
		removed, err := store.PruneOrphans()
		if err != nil {
			store.Close()
			return nil, err
		}
		if removed > 0 {
			cfg.Logger.Warnf("pruned %d orphaned fingerprint entries", removed)
		}
	}

	return &earmarkService{
		store:     store,
		decoder:   cfg.Decoder,
		extractor: fingerprint.NewExtractor(),
		log:       cfg.Logger,
		config:    cfg,
	}, nil
}

func (s *earmarkService) GetSong(id models.SongID) (models.Song, bool, error) {
	name, ok, err := s.store.GetSong(id)
	return models.Song{ID: id, Name: name}, ok, err
}

func (s *earmarkService) ListSongs() ([]models.Song, error) {
	return s.store.ListSongs()
}

func (s *earmarkService) DeleteSong(id models.SongID) (int, error) {
	removed, err := s.store.DeleteSong(id)
	if err != nil {
		return removed, err
	}
	s.log.Infof("deleted song %s and %d fingerprint entries", id, removed)
	return removed, nil
}

func (s *earmarkService) Stats() (models.Stats, error) {
	return s.store.Stats()
}

func (s *earmarkService) PruneOrphans() (int, error) {
	return s.store.PruneOrphans()
}

func (s *earmarkService) Close() error {
	return s.store.Close()
}
