package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/dgraph-io/badger/v3"
	"github.com/himanishpuri/EarMark/pkg/models"
)

// Directory names inside the data dir.
const (
	FingerprintDir = "fingerprints.db"
	SongDir        = "songs.db"
)

// Logger receives badger's internal messages.
type Logger interface {
	Errorf(format string, args ...any)
	Warnf(format string, args ...any)
	Infof(format string, args ...any)
	Debugf(format string, args ...any)
}

// badgerLogger adapts Logger to badger.Logger, which spells it Warningf.
type badgerLogger struct{ Logger }

func (l badgerLogger) Warningf(format string, args ...any) { l.Warnf(format, args...) }

type Options struct {
	SyncWrites bool   // fsync every commit
	InMemory   bool   // keep both databases in memory; dir is ignored
	Logger     Logger // nil silences badger
}

// BadgerStore keeps the fingerprint index and the song catalog in two badger
// databases. Each put is a single-key transaction, so readers never observe a
// partially written entry list.
type BadgerStore struct {
	fp     *badger.DB
	songs  *badger.DB
	closed atomic.Bool
}

func badgerOptions(path string, opts Options) badger.Options {
	o := badger.DefaultOptions(path).WithSyncWrites(opts.SyncWrites)
	if opts.InMemory {
		o = o.WithDir("").WithValueDir("").WithInMemory(true)
	}
	if opts.Logger != nil {
		return o.WithLogger(badgerLogger{opts.Logger})
	}
	return o.WithLogger(nil)
}

// OpenBadger opens (creating if needed) the stores under dir.
func OpenBadger(dir string, opts Options) (*BadgerStore, error) {
	if !opts.InMemory {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
	}

	fp, err := badger.Open(badgerOptions(filepath.Join(dir, FingerprintDir), opts))
	if err != nil {
		return nil, fmt.Errorf("opening fingerprint index: %w", err)
	}
	songs, err := badger.Open(badgerOptions(filepath.Join(dir, SongDir), opts))
	if err != nil {
		fp.Close()
		return nil, fmt.Errorf("opening song catalog: %w", err)
	}
	return &BadgerStore{fp: fp, songs: songs}, nil
}

func (s *BadgerStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return errors.Join(s.fp.Close(), s.songs.Close())
}

func (s *BadgerStore) check() error {
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

// appendValue appends packed entries to the list stored at key inside txn.
func appendValue(txn *badger.Txn, key, packed []byte) error {
	var val []byte
	item, err := txn.Get(key)
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
	case err != nil:
		return err
	default:
		if val, err = item.ValueCopy(nil); err != nil {
			return err
		}
	}
	return txn.Set(key, append(val, packed...))
}

// PutFingerprint appends one entry to the list stored for hash.
func (s *BadgerStore) PutFingerprint(hash uint32, id models.SongID, timeIndex int32) error {
	if err := s.check(); err != nil {
		return err
	}
	packed := appendEntry(nil, models.Entry{SongID: id, TimeIndex: timeIndex})
	if err := s.fp.Update(func(txn *badger.Txn) error {
		return appendValue(txn, hashKey(hash), packed)
	}); err != nil {
		return fmt.Errorf("put fingerprint %08x: %w", hash, err)
	}
	return nil
}

// PutFingerprints appends all records of one song. Each hash is still a
// read-append-write of its own key; commits are split when a transaction
// grows too large.
func (s *BadgerStore) PutFingerprints(id models.SongID, records []models.Record) error {
	if err := s.check(); err != nil {
		return err
	}
	order, packed := groupByHash(id, records)

	txn := s.fp.NewTransaction(true)
	defer func() { txn.Discard() }()

	for _, hash := range order {
		key := hashKey(hash)
		err := appendValue(txn, key, packed[hash])
		if errors.Is(err, badger.ErrTxnTooBig) {
			if err = txn.Commit(); err != nil {
				return fmt.Errorf("commit fingerprint batch: %w", err)
			}
			txn = s.fp.NewTransaction(true)
			err = appendValue(txn, key, packed[hash])
		}
		if err != nil {
			return fmt.Errorf("put fingerprint %08x: %w", hash, err)
		}
	}
	if err := txn.Commit(); err != nil {
		return fmt.Errorf("commit fingerprint batch: %w", err)
	}
	return nil
}

// GetFingerprint returns the entries stored for hash in append order. A
// missing key is an empty result.
func (s *BadgerStore) GetFingerprint(hash uint32) ([]models.Entry, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	var entries []models.Entry
	err := s.fp.View(func(txn *badger.Txn) error {
		item, err := txn.Get(hashKey(hash))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			entries, err = decodeEntries(val)
			return err
		})
	})
	if err != nil {
		return nil, fmt.Errorf("get fingerprint %08x: %w", hash, err)
	}
	return entries, nil
}

// PutSong writes the catalog row for id, replacing any previous name.
func (s *BadgerStore) PutSong(id models.SongID, name string) error {
	if err := s.check(); err != nil {
		return err
	}
	if err := s.songs.Update(func(txn *badger.Txn) error {
		return txn.Set(id[:], []byte(name))
	}); err != nil {
		return fmt.Errorf("put song %s: %w", id, err)
	}
	return nil
}

// GetSong returns the catalogued name for id; ok is false when id is unknown.
func (s *BadgerStore) GetSong(id models.SongID) (name string, ok bool, err error) {
	if err := s.check(); err != nil {
		return "", false, err
	}
	err = s.songs.View(func(txn *badger.Txn) error {
		item, err := txn.Get(id[:])
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		name, ok = string(val), true
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("get song %s: %w", id, err)
	}
	return name, ok, nil
}

// ListSongs returns the catalog in id order.
func (s *BadgerStore) ListSongs() ([]models.Song, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	var songs []models.Song
	err := s.songs.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			if len(item.Key()) != models.SongIDSize {
				continue
			}
			var song models.Song
			copy(song.ID[:], item.Key())
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			song.Name = string(val)
			songs = append(songs, song)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list songs: %w", err)
	}
	return songs, nil
}

// Stats counts catalog rows, index keys and stored entries. Entry counts come
// from value sizes, so values are never loaded.
func (s *BadgerStore) Stats() (models.Stats, error) {
	var st models.Stats
	if err := s.check(); err != nil {
		return st, err
	}

	keysOnly := badger.DefaultIteratorOptions
	keysOnly.PrefetchValues = false

	err := s.songs.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(keysOnly)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if len(it.Item().Key()) == models.SongIDSize {
				st.Songs++
			}
		}
		return nil
	})
	if err != nil {
		return st, fmt.Errorf("count songs: %w", err)
	}

	err = s.fp.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(keysOnly)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			st.DistinctHashes++
			st.Fingerprints += it.Item().ValueSize() / entrySize
		}
		return nil
	})
	if err != nil {
		return st, fmt.Errorf("count fingerprints: %w", err)
	}
	return st, nil
}

// DeleteSong removes the catalog row for id and every fingerprint entry that
// points at it. It returns the number of entries removed.
func (s *BadgerStore) DeleteSong(id models.SongID) (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	if err := s.songs.Update(func(txn *badger.Txn) error {
		return txn.Delete(id[:])
	}); err != nil {
		return 0, fmt.Errorf("delete song %s: %w", id, err)
	}
	removed, err := s.filterEntries(func(e models.Entry) bool { return e.SongID != id })
	if err != nil {
		return removed, fmt.Errorf("delete fingerprints of %s: %w", id, err)
	}
	return removed, nil
}

// PruneOrphans drops fingerprint entries whose song has no catalog row, the
// leftovers of an ingestion interrupted between the two writes.
func (s *BadgerStore) PruneOrphans() (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	songs, err := s.ListSongs()
	if err != nil {
		return 0, err
	}
	known := make(map[models.SongID]struct{}, len(songs))
	for _, song := range songs {
		known[song.ID] = struct{}{}
	}
	removed, err := s.filterEntries(func(e models.Entry) bool {
		_, ok := known[e.SongID]
		return ok
	})
	if err != nil {
		return removed, fmt.Errorf("prune orphans: %w", err)
	}
	return removed, nil
}

// filterEntries rewrites every index key, keeping only entries accepted by
// keep. Keys left empty are deleted.
func (s *BadgerStore) filterEntries(keep func(models.Entry) bool) (int, error) {
	type rewrite struct {
		key, val []byte
	}
	var changes []rewrite
	removed := 0

	err := s.fp.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				entries, err := decodeEntries(val)
				if err != nil {
					return err
				}
				var kept []byte
				dropped := 0
				for _, e := range entries {
					if keep(e) {
						kept = appendEntry(kept, e)
					} else {
						dropped++
					}
				}
				if dropped > 0 {
					changes = append(changes, rewrite{key: item.KeyCopy(nil), val: kept})
					removed += dropped
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil || len(changes) == 0 {
		return 0, err
	}

	wb := s.fp.NewWriteBatch()
	for _, c := range changes {
		if len(c.val) == 0 {
			err = wb.Delete(c.key)
		} else {
			err = wb.Set(c.key, c.val)
		}
		if err != nil {
			wb.Cancel()
			return 0, err
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, err
	}
	return removed, nil
}
