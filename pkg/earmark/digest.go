package earmark

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"

	"github.com/himanishpuri/EarMark/pkg/models"
)

// DigestFile returns the song id of a file: the first 128 bits of the
// SHA-256 of its bytes.
func DigestFile(path string) (models.SongID, error) {
	var id models.SongID
	f, err := os.Open(path)
	if err != nil {
		return id, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return id, fmt.Errorf("hashing %s: %w", path, err)
	}
	copy(id[:], h.Sum(nil))
	return id, nil
}
