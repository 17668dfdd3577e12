package earmark

// IngestStatus is the per-file outcome of ingestion.
type IngestStatus int

const (
	Inserted IngestStatus = iota
	Skipped               // already catalogued
	BadFile               // missing, unreadable or undecodable input
	Failed                // store failure
)

func (s IngestStatus) String() string {
	switch s {
	case Inserted:
		return "inserted"
	case Skipped:
		return "skipped"
	case BadFile:
		return "bad file"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// ExitCode is the bit this status contributes to a batch exit code.
func (s IngestStatus) ExitCode() int {
	switch s {
	case BadFile:
		return 1
	case Failed:
		return 2
	default:
		return 0
	}
}

// IngestReport describes one file of a batch.
type IngestReport struct {
	Path   string
	Status IngestStatus
	Err    error
}
