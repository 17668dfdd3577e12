package match

import (
	"context"
	"errors"
	"math/bits"
	"math/rand"
	"testing"
	"time"

	"github.com/himanishpuri/EarMark/internal/testaudio"
	"github.com/himanishpuri/EarMark/pkg/earmark/fingerprint"
	"github.com/himanishpuri/EarMark/pkg/models"
)

type memStore struct {
	fp    map[uint32][]models.Entry
	songs map[models.SongID]string
	gets  int
	err   error
}

func newMemStore() *memStore {
	return &memStore{fp: map[uint32][]models.Entry{}, songs: map[models.SongID]string{}}
}

func (m *memStore) GetFingerprint(hash uint32) ([]models.Entry, error) {
	m.gets++
	if m.err != nil {
		return nil, m.err
	}
	return m.fp[hash], nil
}

func (m *memStore) GetSong(id models.SongID) (string, bool, error) {
	name, ok := m.songs[id]
	return name, ok, nil
}

func (m *memStore) add(id models.SongID, records []models.Record) {
	for _, r := range records {
		m.fp[r.Hash] = append(m.fp[r.Hash], models.Entry{SongID: id, TimeIndex: r.TimeIndex})
	}
}

var songA = models.SongID{0xa}

func TestCandidates(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		hash := uint32(rng.Intn(16))<<fingerprint.MaskBits | uint32(rng.Intn(fingerprint.MaskMask+1))
		cands := Candidates(hash)

		if len(cands) != 254 || len(cands) != NumCandidates {
			t.Fatalf("got %d candidates, want 254", len(cands))
		}
		if cands[0] != hash {
			t.Fatalf("first candidate %08x, want the hash itself %08x", cands[0], hash)
		}
		seen := make(map[uint32]bool, len(cands))
		for _, c := range cands {
			if seen[c] {
				t.Fatalf("duplicate candidate %08x", c)
			}
			seen[c] = true
			if fingerprint.BandOf(c) != fingerprint.BandOf(hash) {
				t.Fatalf("candidate %08x changed band bits of %08x", c, hash)
			}
			if d := bits.OnesCount32(c ^ hash); d > 2 {
				t.Fatalf("candidate %08x is %d bits away", c, d)
			}
		}
	}
}

func TestCandidatesFindNearbyHashes(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 500; i++ {
		stored := uint32(rng.Intn(16))<<fingerprint.MaskBits | uint32(rng.Intn(fingerprint.MaskMask+1))
		query := stored
		for flips := rng.Intn(3); flips > 0; flips-- {
			query ^= 1 << rng.Intn(fingerprint.MaskBits)
		}

		found := false
		for _, c := range Candidates(query) {
			if c == stored {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("stored %08x not reachable from query %08x", stored, query)
		}
	}
}

// spreadHashes returns n hashes in distinct bands so their candidates never
// overlap.
func spreadHashes(n int) []uint32 {
	out := make([]uint32, n)
	for i := range out {
		out[i] = uint32(i) << fingerprint.MaskBits
	}
	return out
}

func TestVoterMatchesAtThreshold(t *testing.T) {
	store := newMemStore()
	store.songs[songA] = "song-a.wav"
	hashes := spreadHashes(6)
	for i, h := range hashes {
		store.add(songA, []models.Record{{Hash: h, TimeIndex: int32(200 + i)}})
	}

	v := NewVoter(store, Config{Threshold: 6, Timeout: 15 * time.Second, BufferSize: 2000})

	// five agreeing records are one short
	var records []models.Record
	for i, h := range hashes[:5] {
		records = append(records, models.Record{Hash: h, TimeIndex: int32(200+i) - 60})
	}
	d, err := v.Pass(records)
	if err != nil {
		t.Fatal(err)
	}
	if d.Verdict != Continue || d.Best.Count != 5 || d.Best.Delta != 10 {
		t.Fatalf("first pass = %+v, want continue with 5 votes at delta 10", d)
	}

	// the same position one buffer later shifts by 50 frames in the window
	records = records[:0]
	records = append(records, models.Record{Hash: hashes[5], TimeIndex: 205 - 60 - 50})
	d, err = v.Pass(records)
	if err != nil {
		t.Fatal(err)
	}
	if d.Verdict != Match {
		t.Fatalf("second pass verdict = %v, want match", d.Verdict)
	}
	if d.Best.SongID != songA || d.Best.Count != 6 || d.Name != "song-a.wav" {
		t.Errorf("decision = %+v", d)
	}
	if d.Elapsed != time.Second {
		t.Errorf("elapsed = %v, want 1s", d.Elapsed)
	}
	if want := time.Duration(100+10) * 10 * time.Millisecond; d.Offset != want {
		t.Errorf("offset = %v, want %v", d.Offset, want)
	}
	if got := d.Result().Clock(); got != "00:01" {
		t.Errorf("clock = %s, want 00:01", got)
	}
}

func TestVoterHistogramMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	store := newMemStore()
	ids := []models.SongID{{1}, {2}, {3}}
	for i := 0; i < 300; i++ {
		hash := uint32(rng.Intn(4))<<fingerprint.MaskBits | uint32(rng.Intn(64))
		store.add(ids[rng.Intn(len(ids))], []models.Record{{Hash: hash, TimeIndex: int32(rng.Intn(400))}})
	}

	v := NewVoter(store, Config{Threshold: 1 << 30})
	prev := map[models.SongID]map[int32]int{}
	prevBest := 0

	for pass := 0; pass < 10; pass++ {
		var records []models.Record
		for i := 0; i < 20; i++ {
			hash := uint32(rng.Intn(4))<<fingerprint.MaskBits | uint32(rng.Intn(64))
			records = append(records, models.Record{Hash: hash, TimeIndex: int32(rng.Intn(150))})
		}
		if _, err := v.Pass(records); err != nil {
			t.Fatal(err)
		}

		top := 0
		for id, cells := range v.hist {
			for delta, n := range cells {
				if n < prev[id][delta] {
					t.Fatalf("cell (%s,%d) decreased from %d to %d", id, delta, prev[id][delta], n)
				}
				if n > top {
					top = n
				}
			}
		}
		best := v.Best()
		if best.Count != top {
			t.Fatalf("best count %d, histogram max %d", best.Count, top)
		}
		if best.Count < prevBest {
			t.Fatalf("best count went down: %d -> %d", prevBest, best.Count)
		}
		if v.Count(best.SongID, best.Delta) != best.Count {
			t.Fatalf("Count(best) = %d, want %d", v.Count(best.SongID, best.Delta), best.Count)
		}
		prevBest = best.Count

		prev = map[models.SongID]map[int32]int{}
		for id, cells := range v.hist {
			prev[id] = map[int32]int{}
			for delta, n := range cells {
				prev[id][delta] = n
			}
		}
	}
}

func TestVoterTimeout(t *testing.T) {
	v := NewVoter(newMemStore(), DefaultConfig())

	for pass := 1; pass <= 31; pass++ {
		d, err := v.Pass(nil)
		if err != nil {
			t.Fatal(err)
		}
		if d.Verdict != Continue {
			t.Fatalf("pass %d verdict = %v, want continue", pass, d.Verdict)
		}
	}
	d, _ := v.Pass(nil)
	if d.Verdict != Timeout {
		t.Fatalf("pass 32 verdict = %v, want timeout", d.Verdict)
	}
	if d.Elapsed != 16*time.Second {
		t.Errorf("elapsed at timeout = %v, want 16s", d.Elapsed)
	}
}

func TestVoterUnknownSongUsesID(t *testing.T) {
	store := newMemStore()
	h := spreadHashes(1)[0]
	store.add(songA, []models.Record{{Hash: h, TimeIndex: 80}})

	v := NewVoter(store, Config{Threshold: 1})
	d, err := v.Pass([]models.Record{{Hash: h, TimeIndex: 10}})
	if err != nil {
		t.Fatal(err)
	}
	if d.Verdict != Match || d.Name != songA.String() {
		t.Errorf("decision = %+v, want match named by id", d)
	}
}

func TestVoterStoreError(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("disk gone")

	v := NewVoter(store, DefaultConfig())
	if _, err := v.Pass([]models.Record{{Hash: 1}}); !errors.Is(err, store.err) {
		t.Errorf("expected wrapped store error, got %v", err)
	}
}

func TestVoterCachesLookups(t *testing.T) {
	store := newMemStore()
	v := NewVoter(store, DefaultConfig())
	records := []models.Record{{Hash: 5, TimeIndex: 20}}

	v.Pass(records)
	first := store.gets
	v.Pass(records)
	if store.gets != first {
		t.Errorf("second pass hit the store %d more times", store.gets-first)
	}
	if first != NumCandidates {
		t.Errorf("first pass made %d lookups, want %d", first, NumCandidates)
	}
}

func TestWindow(t *testing.T) {
	w := NewWindow(2)
	if got := w.Samples(); len(got) != 6 || got[0] != 0 {
		t.Fatalf("new window = %v", got)
	}
	w.Push([]float64{1, 2})
	w.Push([]float64{3})
	got := w.Push([]float64{5, 6, 7})
	want := []float64{1, 2, 3, 0, 5, 6}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("window = %v, want %v", got, want)
		}
	}
	w.Reset()
	for _, v := range w.Samples() {
		if v != 0 {
			t.Fatal("Reset left samples behind")
		}
	}
}

func TestMatchFileFindsSong(t *testing.T) {
	song := testaudio.Melody(42, 30, fingerprint.SampleRate)
	store := newMemStore()
	store.songs[songA] = "melody"
	store.add(songA, fingerprint.Extract(song))

	clip := testaudio.Mix(song[:20*fingerprint.SampleRate], testaudio.Noise(9, 20, fingerprint.SampleRate, 1), 0.05)
	d, err := MatchFile(context.Background(), store, clip, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if d.Verdict != Match {
		t.Fatalf("verdict = %v (best %+v), want match", d.Verdict, d.Best)
	}
	if d.Best.SongID != songA || d.Best.Count < DefaultThreshold {
		t.Errorf("best = %+v", d.Best)
	}
	if d.Elapsed > DefaultTimeout {
		t.Errorf("match took %v", d.Elapsed)
	}
}

func TestMatchFileNoiseTimesOut(t *testing.T) {
	store := newMemStore()
	store.add(songA, fingerprint.Extract(testaudio.Melody(42, 30, fingerprint.SampleRate)))

	for seed := int64(1); seed <= 8; seed++ {
		noise := testaudio.Noise(seed, 20, fingerprint.SampleRate, 0.5)
		d, err := MatchFile(context.Background(), store, noise, DefaultConfig())
		if err != nil {
			t.Fatal(err)
		}
		if d.Verdict != Timeout {
			t.Errorf("seed %d: verdict = %v (best %+v), want timeout", seed, d.Verdict, d.Best)
		}
	}
}

func TestWindowVotesEachPeakOnce(t *testing.T) {
	const buf = 2000
	w := NewWindow(buf)
	if lo, hi := w.Span(); lo != 50 || hi != 100 {
		t.Fatalf("span = [%d, %d), want [50, 100)", lo, hi)
	}

	noise := testaudio.Noise(8, 10, fingerprint.SampleRate, 0.5)
	ex := fingerprint.NewExtractor()
	type peak struct {
		hash  uint32
		frame int32
	}
	seen := map[peak]int{}
	for pass := 0; pass*buf < len(noise); pass++ {
		next := noise[pass*buf : min((pass+1)*buf, len(noise))]
		for _, r := range w.Votable(ex.Extract(w.Push(next))) {
			// frame 0 of the window is sample (pass-2)*buf of the clip
			seen[peak{r.Hash, r.TimeIndex + int32((pass-2)*buf/fingerprint.HopSize)}]++
		}
	}
	if len(seen) == 0 {
		t.Fatal("no peaks voted")
	}
	for p, n := range seen {
		if n != 1 {
			t.Fatalf("peak %08x at frame %d voted %d times", p.hash, p.frame, n)
		}
	}
}

func TestWindowVotableFilters(t *testing.T) {
	w := NewWindow(2000)
	records := []models.Record{{Hash: 1, TimeIndex: 9}, {Hash: 2, TimeIndex: 50}, {Hash: 3, TimeIndex: 99}, {Hash: 4, TimeIndex: 100}, {Hash: 5, TimeIndex: 130}}
	got := w.Votable(records)
	if len(got) != 2 || got[0].Hash != 2 || got[1].Hash != 3 {
		t.Errorf("votable = %+v, want hashes 2 and 3", got)
	}
}

func TestMatchFileHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := MatchFile(ctx, newMemStore(), make([]float64, 10000), DefaultConfig())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
