package earmark

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/himanishpuri/EarMark/pkg/earmark/audio"
	"github.com/himanishpuri/EarMark/pkg/utils"
	"github.com/mdobak/go-xerrors"
)

// Ingest fingerprints one file into the store. A file whose digest is
// already catalogued is skipped without decoding. Input problems yield
// BadFile and store problems Failed; the error explains either.
func (s *earmarkService) Ingest(ctx context.Context, path string) (IngestStatus, error) {
	name := filepath.Base(path)
	if s.config.TagNames {
		name = audio.DisplayName(path)
	}
	return s.ingest(ctx, path, name)
}

func (s *earmarkService) ingest(ctx context.Context, path, name string) (IngestStatus, error) {
	id, err := DigestFile(path)
	if err != nil {
		return BadFile, err
	}

	_, exists, err := s.store.GetSong(id)
	if err != nil {
		return s.fail(path, err)
	}
	if exists {
		s.log.Debugf("%s already catalogued as %s", path, id)
		return Skipped, nil
	}

	samples, err := s.decoder.Decode(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return Failed, ctx.Err()
		}
		return BadFile, err
	}

	records := s.extractor.Extract(samples)
	if err := s.store.PutFingerprints(id, records); err != nil {
		return s.fail(path, err)
	}
	if err := s.store.PutSong(id, name); err != nil {
		return s.fail(path, err)
	}

	s.log.Infof("inserted %q as %s: %d samples, %d fingerprints", name, id, len(samples), len(records))
	return Inserted, nil
}

// fail records an unexpected store error with its stack at the pipeline
// boundary.
func (s *earmarkService) fail(path string, err error) (IngestStatus, error) {
	xerr := xerrors.New(fmt.Errorf("ingest %s: %w", path, err))
	s.log.Errorf("%v", xerr)
	s.log.Debugf("%+v", xerr)
	return Failed, xerr
}

// IngestPaths ingests files one after another, expanding directories to the
// audio files beneath them. Each outcome is passed to report. The returned
// code is the bitwise OR of the per-file exit codes.
func (s *earmarkService) IngestPaths(ctx context.Context, paths []string, report func(IngestReport)) (int, error) {
	files, err := utils.ExpandAudioPaths(paths)
	if err != nil {
		return BadFile.ExitCode(), err
	}

	code := 0
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return code, err
		}
		status, err := s.Ingest(ctx, path)
		code |= status.ExitCode()
		if report != nil {
			report(IngestReport{Path: path, Status: status, Err: err})
		}
	}
	return code, nil
}

// IngestYouTube downloads a video's audio with yt-dlp into the temp dir and
// ingests it under the video's artist and title.
func (s *earmarkService) IngestYouTube(ctx context.Context, url string) (IngestStatus, error) {
	if !utils.IsYouTubeURL(url) {
		return BadFile, fmt.Errorf("not a YouTube URL: %s", url)
	}
	if _, err := utils.ExtractYouTubeID(url); err != nil {
		return BadFile, err
	}

	path, meta, err := audio.DownloadYouTubeAudio(ctx, url, s.config.TempDir)
	if err != nil {
		return BadFile, fmt.Errorf("download failed: %w", err)
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.Warnf("failed to remove %s: %v", path, err)
		}
	}()

	return s.ingest(ctx, path, meta.DisplayName())
}
