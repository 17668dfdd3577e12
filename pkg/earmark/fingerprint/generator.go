package fingerprint

import (
	"sync"

	"github.com/himanishpuri/EarMark/pkg/models"
)

// Extractor turns 4 kHz sample windows into fingerprint records. The window
// and filterbank are built once; Extract is safe for concurrent use.
type Extractor struct {
	window []float64
	bank   [][]float64
}

func NewExtractor() *Extractor {
	return &Extractor{
		window: Hamming(WindowSize),
		bank:   MelFilterbank(),
	}
}

// Mels runs the spectrogram and filterbank stages.
func (e *Extractor) Mels(samples []float64) [][]float64 {
	return MelEnergies(Spectrogram(samples, e.window), e.bank)
}

// Extract returns the records for samples in frame then band order.
// Short or peakless input yields an empty result.
func (e *Extractor) Extract(samples []float64) []models.Record {
	return Records(e.Mels(samples))
}

// Records hashes every peak of a mel energy matrix.
func Records(mels [][]float64) []models.Record {
	peaks := FindPeaks(mels)
	records := make([]models.Record, 0, len(peaks))
	for _, p := range peaks {
		records = append(records, models.Record{
			Hash:      HashPeak(mels, p.T, p.B),
			TimeIndex: int32(p.T),
		})
	}
	return records
}

var (
	defaultExtractor *Extractor
	extractorOnce    sync.Once
)

// Extract fingerprints samples with a shared Extractor.
func Extract(samples []float64) []models.Record {
	extractorOnce.Do(func() {
		defaultExtractor = NewExtractor()
	})
	return defaultExtractor.Extract(samples)
}
