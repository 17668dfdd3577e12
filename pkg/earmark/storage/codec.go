package storage

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/himanishpuri/EarMark/pkg/models"
)

// entrySize is the packed width of one entry: 16-byte song id, int32 LE time.
const entrySize = models.SongIDSize + 4

var (
	// ErrClosed is returned by every operation on a closed store.
	ErrClosed = errors.New("store is closed")
	// ErrCorrupt reports a fingerprint value whose length is not a whole
	// number of entries.
	ErrCorrupt = errors.New("corrupt fingerprint entry list")
)

func hashKey(hash uint32) []byte {
	key := make([]byte, 4)
	binary.LittleEndian.PutUint32(key, hash)
	return key
}

func appendEntry(dst []byte, e models.Entry) []byte {
	dst = append(dst, e.SongID[:]...)
	return binary.LittleEndian.AppendUint32(dst, uint32(e.TimeIndex))
}

func decodeEntries(val []byte) ([]models.Entry, error) {
	if len(val)%entrySize != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrCorrupt, len(val))
	}
	out := make([]models.Entry, len(val)/entrySize)
	for i := range out {
		rec := val[i*entrySize : (i+1)*entrySize]
		copy(out[i].SongID[:], rec[:models.SongIDSize])
		out[i].TimeIndex = int32(binary.LittleEndian.Uint32(rec[models.SongIDSize:]))
	}
	return out, nil
}

// groupByHash buckets records by hash, keeping record order inside each bucket
// and first-seen order across buckets.
func groupByHash(id models.SongID, records []models.Record) ([]uint32, map[uint32][]byte) {
	var order []uint32
	packed := make(map[uint32][]byte)
	for _, r := range records {
		buf, seen := packed[r.Hash]
		if !seen {
			order = append(order, r.Hash)
		}
		packed[r.Hash] = appendEntry(buf, models.Entry{SongID: id, TimeIndex: r.TimeIndex})
	}
	return order, packed
}
