package match

import (
	"context"
	"fmt"
	"time"

	"github.com/himanishpuri/EarMark/pkg/earmark/fingerprint"
	"github.com/himanishpuri/EarMark/pkg/models"
)

// Defaults for a listening session.
const (
	DefaultThreshold  = 6
	DefaultTimeout    = 15 * time.Second
	DefaultBufferSize = 2000 // 500 ms at the working rate
)

// Store is the read side of the fingerprint store used while voting.
type Store interface {
	GetFingerprint(hash uint32) ([]models.Entry, error)
	GetSong(id models.SongID) (name string, ok bool, err error)
}

type Config struct {
	Threshold  int           // votes needed to declare a match
	Timeout    time.Duration // listening time before giving up, whole seconds
	BufferSize int           // working-rate samples added per pass
}

// DefaultConfig returns the session defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:  DefaultThreshold,
		Timeout:    DefaultTimeout,
		BufferSize: DefaultBufferSize,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Threshold <= 0 {
		c.Threshold = d.Threshold
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.BufferSize <= 0 {
		c.BufferSize = d.BufferSize
	}
	return c
}

type Verdict int

const (
	Continue Verdict = iota
	Match
	Timeout
)

func (v Verdict) String() string {
	switch v {
	case Continue:
		return "continue"
	case Match:
		return "match"
	case Timeout:
		return "timeout"
	default:
		return fmt.Sprintf("Verdict(%d)", int(v))
	}
}

// Best is the histogram cell with the highest count seen so far.
type Best struct {
	SongID models.SongID
	Delta  int32
	Count  int
}

// Decision is the outcome of one voting pass.
type Decision struct {
	Verdict Verdict
	Best    Best
	Name    string        // catalog name of Best.SongID, set on Match
	Elapsed time.Duration // listening time covered so far
	Offset  time.Duration // position in the song, set on Match
}

// Result converts a match decision into a models.MatchResult.
func (d Decision) Result() models.MatchResult {
	return models.MatchResult{
		SongID:  d.Best.SongID,
		Name:    d.Name,
		Score:   d.Best.Count,
		Delta:   d.Best.Delta,
		Offset:  d.Offset,
		Elapsed: d.Elapsed,
	}
}

// Voter accumulates votes for one listening session. Votes are keyed by song
// and by the time delta between stored and observed frames, corrected by the
// elapsed counter so that one song position keeps a single delta across
// passes. The histogram only grows. A Voter is not safe for concurrent use.
type Voter struct {
	store   Store
	cfg     Config
	hist    map[models.SongID]map[int32]int
	best    Best
	elapsed int // hundredths of a second, one frame hop each
	cands   []uint32
	cache   map[uint32][]models.Entry
}

func NewVoter(store Store, cfg Config) *Voter {
	return &Voter{
		store: store,
		cfg:   cfg.withDefaults(),
		hist:  make(map[models.SongID]map[int32]int),
		cands: make([]uint32, 0, NumCandidates),
		cache: make(map[uint32][]models.Entry),
	}
}

// Config returns the effective configuration.
func (v *Voter) Config() Config {
	return v.cfg
}

// lookup memoises store reads for the session; neighbouring candidates and
// repeated notes ask for the same hashes again.
func (v *Voter) lookup(hash uint32) ([]models.Entry, error) {
	if entries, ok := v.cache[hash]; ok {
		return entries, nil
	}
	entries, err := v.store.GetFingerprint(hash)
	if err != nil {
		return nil, err
	}
	v.cache[hash] = entries
	return entries, nil
}

func (v *Voter) vote(id models.SongID, delta int32) {
	cells := v.hist[id]
	if cells == nil {
		cells = make(map[int32]int)
		v.hist[id] = cells
	}
	cells[delta]++
	if n := cells[delta]; n > v.best.Count {
		v.best = Best{SongID: id, Delta: delta, Count: n}
	}
}

// Pass advances the elapsed counter by one buffer, votes every record it is
// given and decides. Callers feeding a rolling Window pass only its Votable
// records.
func (v *Voter) Pass(records []models.Record) (Decision, error) {
	v.elapsed += v.cfg.BufferSize * 100 / fingerprint.SampleRate

	for _, r := range records {
		v.cands = AppendCandidates(v.cands[:0], r.Hash)
		for _, c := range v.cands {
			entries, err := v.lookup(c)
			if err != nil {
				return v.decision(Continue), fmt.Errorf("lookup %08x: %w", c, err)
			}
			for _, e := range entries {
				v.vote(e.SongID, e.TimeIndex-r.TimeIndex-int32(v.elapsed))
			}
		}
	}
	return v.decide()
}

func (v *Voter) decide() (Decision, error) {
	if v.best.Count >= v.cfg.Threshold {
		d := v.decision(Match)
		name, ok, err := v.store.GetSong(v.best.SongID)
		if err != nil {
			return d, fmt.Errorf("resolve song %s: %w", v.best.SongID, err)
		}
		if !ok {
			name = v.best.SongID.String()
		}
		d.Name = name
		d.Offset = time.Duration(v.elapsed+int(v.best.Delta)) * 10 * time.Millisecond
		return d, nil
	}
	if v.elapsed*10/1000 > int(v.cfg.Timeout/time.Second) {
		return v.decision(Timeout), nil
	}
	return v.decision(Continue), nil
}

func (v *Voter) decision(verdict Verdict) Decision {
	return Decision{Verdict: verdict, Best: v.best, Elapsed: v.Elapsed()}
}

// Best returns the running best cell.
func (v *Voter) Best() Best {
	return v.best
}

// Count returns the votes recorded for (id, delta).
func (v *Voter) Count(id models.SongID, delta int32) int {
	return v.hist[id][delta]
}

// Elapsed returns the listening time covered by the passes so far.
func (v *Voter) Elapsed() time.Duration {
	return time.Duration(v.elapsed) * 10 * time.Millisecond
}

// MatchFile identifies a clip already decoded to the working rate. The clip
// is fed one buffer at a time through the same rolling window a live session
// uses, so results agree with live identification of the same audio. One
// silent buffer follows the clip so its last buffer reaches the middle of
// the window and gets voted. If the clip ends before a match or a timeout,
// the last Continue decision is returned.
func MatchFile(ctx context.Context, store Store, samples []float64, cfg Config) (Decision, error) {
	v := NewVoter(store, cfg)
	cfg = v.Config()
	win := NewWindow(cfg.BufferSize)
	ex := fingerprint.NewExtractor()

	d := v.decision(Continue)
	if len(samples) == 0 {
		return d, nil
	}
	for start := 0; start < len(samples)+cfg.BufferSize; start += cfg.BufferSize {
		if err := ctx.Err(); err != nil {
			return d, err
		}
		var next []float64
		if start < len(samples) {
			next = samples[start:min(start+cfg.BufferSize, len(samples))]
		}
		var err error
		d, err = v.Pass(win.Votable(ex.Extract(win.Push(next))))
		if err != nil || d.Verdict != Continue {
			return d, err
		}
	}
	return d, nil
}
