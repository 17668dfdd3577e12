//go:build !js && !wasm
// +build !js,!wasm

package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/himanishpuri/EarMark/pkg/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// DefaultSQLiteFile is the database file created inside the data dir.
const DefaultSQLiteFile = "earmark.sqlite3"

const insertBatch = 500

type songRow struct {
	ID        string `gorm:"primaryKey;type:varchar(32)"`
	Name      string
	CreatedAt time.Time
}

func (songRow) TableName() string { return "songs" }

// fingerprintRow ids grow with insertion, which gives the append order.
type fingerprintRow struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Hash      uint32 `gorm:"index:idx_hash"`
	SongID    string `gorm:"type:varchar(32);index:idx_song"`
	TimeIndex int32
}

func (fingerprintRow) TableName() string { return "fingerprints" }

// SQLiteStore is the relational backend. It offers the same operations as
// BadgerStore with one row per fingerprint entry.
type SQLiteStore struct {
	db     *gorm.DB
	closed atomic.Bool
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string, opts Options) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	if opts.SyncWrites {
		dsn += "&_pragma=synchronous(FULL)"
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&songRow{}, &fingerprintRow{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLiteStore) check() error {
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

func (s *SQLiteStore) PutFingerprint(hash uint32, id models.SongID, timeIndex int32) error {
	if err := s.check(); err != nil {
		return err
	}
	row := fingerprintRow{Hash: hash, SongID: id.String(), TimeIndex: timeIndex}
	if err := s.db.Create(&row).Error; err != nil {
		return fmt.Errorf("put fingerprint %08x: %w", hash, err)
	}
	return nil
}

func (s *SQLiteStore) PutFingerprints(id models.SongID, records []models.Record) error {
	if err := s.check(); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	songID := id.String()
	rows := make([]fingerprintRow, len(records))
	for i, r := range records {
		rows[i] = fingerprintRow{Hash: r.Hash, SongID: songID, TimeIndex: r.TimeIndex}
	}
	if err := s.db.CreateInBatches(rows, insertBatch).Error; err != nil {
		return fmt.Errorf("batch insert fingerprints: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetFingerprint(hash uint32) ([]models.Entry, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	var rows []fingerprintRow
	if err := s.db.Where("hash = ?", hash).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("get fingerprint %08x: %w", hash, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	out := make([]models.Entry, 0, len(rows))
	for _, r := range rows {
		id, err := models.ParseSongID(r.SongID)
		if err != nil {
			return nil, fmt.Errorf("get fingerprint %08x: %w", hash, err)
		}
		out = append(out, models.Entry{SongID: id, TimeIndex: r.TimeIndex})
	}
	return out, nil
}

func (s *SQLiteStore) PutSong(id models.SongID, name string) error {
	if err := s.check(); err != nil {
		return err
	}
	row := songRow{ID: id.String(), Name: name}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("put song %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) GetSong(id models.SongID) (string, bool, error) {
	if err := s.check(); err != nil {
		return "", false, err
	}
	var row songRow
	err := s.db.Where("id = ?", id.String()).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get song %s: %w", id, err)
	}
	return row.Name, true, nil
}

func (s *SQLiteStore) ListSongs() ([]models.Song, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	var rows []songRow
	if err := s.db.Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list songs: %w", err)
	}
	songs := make([]models.Song, 0, len(rows))
	for _, r := range rows {
		id, err := models.ParseSongID(r.ID)
		if err != nil {
			return nil, fmt.Errorf("list songs: %w", err)
		}
		songs = append(songs, models.Song{ID: id, Name: r.Name})
	}
	return songs, nil
}

func (s *SQLiteStore) Stats() (models.Stats, error) {
	var st models.Stats
	if err := s.check(); err != nil {
		return st, err
	}
	if err := s.db.Model(&songRow{}).Count(&st.Songs).Error; err != nil {
		return st, fmt.Errorf("count songs: %w", err)
	}
	if err := s.db.Model(&fingerprintRow{}).Count(&st.Fingerprints).Error; err != nil {
		return st, fmt.Errorf("count fingerprints: %w", err)
	}
	if err := s.db.Model(&fingerprintRow{}).Distinct("hash").Count(&st.DistinctHashes).Error; err != nil {
		return st, fmt.Errorf("count hashes: %w", err)
	}
	return st, nil
}

func (s *SQLiteStore) DeleteSong(id models.SongID) (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	var removed int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("song_id = ?", id.String()).Delete(&fingerprintRow{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected
		return tx.Where("id = ?", id.String()).Delete(&songRow{}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("delete song %s: %w", id, err)
	}
	return int(removed), nil
}

func (s *SQLiteStore) PruneOrphans() (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	res := s.db.Where("song_id NOT IN (?)", s.db.Model(&songRow{}).Select("id")).
		Delete(&fingerprintRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune orphans: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}
