package models

// Entry is the stored value for one fingerprint hash bucket element.
type Entry struct {
	SongID    SongID
	TimeIndex int32 // Frame index of the peak within the ingested song
}

// Stats summarises the contents of a fingerprint store.
type Stats struct {
	Songs          int64 // Catalogued songs
	Fingerprints   int64 // Stored fingerprint entries
	DistinctHashes int64 // Keys in the fingerprint index
}
