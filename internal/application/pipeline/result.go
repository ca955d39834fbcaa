package pipeline

// Result classifies the outcome of uploading one payload.
type Result int

const (
	// Noop means the payload produced no upload at all.
	Noop Result = iota
	// Created means the CRM registered a new record.
	Created
	// Updated means the CRM updated an existing record.
	Updated
	// Duplicated means the CRM already had the record.
	Duplicated
	// Skipped means the payload was deliberately not uploaded.
	Skipped
	// Failed means the upload was rejected.
	Failed
)

func (r Result) String() string {
	switch r {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Duplicated:
		return "duplicated"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return "noop"
	}
}

// RunStats accumulates the outcomes of one import run. Failed payloads are
// kept so a retry pass can re-upload them.
type RunStats[T any] struct {
	Created    int
	Updated    int
	Duplicated int
	Skipped    int
	Failed     []*T

	// FailedSources counts records that never produced a payload
	// (download or mapping errors).
	FailedSources int
}

// Add records one upload outcome.
func (s *RunStats[T]) Add(result Result, payload *T) {
	switch result {
	case Created:
		s.Created++
	case Updated:
		s.Updated++
	case Duplicated:
		s.Duplicated++
	case Skipped:
		s.Skipped++
	case Failed:
		s.Failed = append(s.Failed, payload)
	}
}

// Total returns the number of payloads that reached the CRM successfully.
func (s *RunStats[T]) Total() int {
	return s.Created + s.Updated + s.Duplicated
}
