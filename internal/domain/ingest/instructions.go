package ingest

// StorageMode selects how raw records land in their collection. Common and
// summary collections are always wiped and rewritten; raw data is keyed by
// source id so incremental loads overwrite in place.
type StorageMode string

const (
	StorageUpsert StorageMode = "upsert"
	StorageInsert StorageMode = "insert"
)

// Instructions carries the per-subsystem processing configuration for one
// load: where each stage persists, which event section to report into, and
// the end-date bound used to close still-open status spans during
// summarization. Values are derived fresh per subsystem per load and never
// persisted.
type Instructions struct {
	Location          string
	RawCollection     string
	CommonCollection  string
	SummaryCollection string
	Section           string
	EndDate           string
	Mode              StorageMode
}

// NewInstructions builds the instructions for one subsystem from the shared
// base values. An explicit constructor, so every field is accounted for and
// nothing is inherited by accident.
func NewInstructions(location, endDate string, sub Subsystem) Instructions {
	return Instructions{
		Location:          location,
		RawCollection:     sub.RawCollection(),
		CommonCollection:  sub.CommonCollection(),
		SummaryCollection: sub.SummaryCollection(),
		Section:           sub.Section(),
		EndDate:           endDate,
		Mode:              StorageUpsert,
	}
}
