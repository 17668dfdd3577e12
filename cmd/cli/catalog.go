package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/himanishpuri/EarMark/pkg/models"
)

func handleList() int {
	svc := mustService()
	defer svc.Close()

	songs, err := svc.ListSongs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", errText("error:"), err)
		return 2
	}
	if len(songs) == 0 {
		fmt.Println("No songs catalogued")
		return 0
	}
	for _, song := range songs {
		fmt.Printf("%s  %s\n", song.ID, song.Name)
	}
	fmt.Printf("\n%s song(s)\n", humanize.Comma(int64(len(songs))))
	return 0
}

func handleStats() int {
	svc := mustService()
	defer svc.Close()

	stats, err := svc.Stats()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", errText("error:"), err)
		return 2
	}
	fmt.Printf("Songs:           %s\n", humanize.Comma(stats.Songs))
	fmt.Printf("Fingerprints:    %s\n", humanize.Comma(stats.Fingerprints))
	fmt.Printf("Distinct hashes: %s\n", humanize.Comma(stats.DistinctHashes))
	if stats.Songs > 0 {
		fmt.Printf("Per song:        %s\n", humanize.Comma(stats.Fingerprints/stats.Songs))
	}
	if size, err := dirSize(dataDir); err == nil {
		fmt.Printf("On disk:         %s\n", humanize.Bytes(uint64(size)))
	}
	return 0
}

func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}

func handlePrune() int {
	svc := mustService()
	defer svc.Close()

	removed, err := svc.PruneOrphans()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", errText("error:"), err)
		return 2
	}
	fmt.Printf("%s %s orphaned fingerprint entries\n", okText("Removed"), humanize.Comma(int64(removed)))
	return 0
}

func handleDelete(args []string) int {
	if len(args) < 1 {
		fmt.Println("Usage: earmark delete <song_id>")
		return 1
	}
	id, err := models.ParseSongID(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", errText("error:"), err)
		return 1
	}

	svc := mustService()
	defer svc.Close()

	song, ok, err := svc.GetSong(id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", errText("error:"), err)
		return 2
	}
	if !ok {
		fmt.Fprintf(os.Stderr, "%s song %s not found\n", errText("error:"), id)
		return 1
	}

	removed, err := svc.DeleteSong(id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", errText("error:"), err)
		return 2
	}
	fmt.Printf("%s %q (%s fingerprint entries)\n", okText("Deleted"), song.Name, humanize.Comma(int64(removed)))
	return 0
}
