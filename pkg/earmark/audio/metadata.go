package audio

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
)

// DisplayName returns "Artist - Title" from the file's embedded tags, the
// title alone when there is no artist, and the file's base name when the
// file has no readable tags.
func DisplayName(path string) string {
	base := filepath.Base(path)

	f, err := os.Open(path)
	if err != nil {
		return base
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return base
	}
	title := strings.TrimSpace(m.Title())
	artist := strings.TrimSpace(m.Artist())
	switch {
	case title == "":
		return base
	case artist == "":
		return title
	default:
		return artist + " - " + title
	}
}
