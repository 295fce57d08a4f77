package ingest

// Subsystem is one category of external data tracked per project.
type Subsystem string

const (
	SubsystemDemand Subsystem = "demand"
	SubsystemDefect Subsystem = "defect"
	SubsystemEffort Subsystem = "effort"
)

// Subsystems lists every category in evaluation order.
var Subsystems = []Subsystem{SubsystemDemand, SubsystemDefect, SubsystemEffort}

// Collection names per normalization stage. Raw keeps the source shape,
// common is the cross-source history format, summary is the per-day rollup.
var (
	rawCollections = map[Subsystem]string{
		SubsystemDemand: "rawDemand",
		SubsystemDefect: "rawDefect",
		SubsystemEffort: "rawEffort",
	}
	commonCollections = map[Subsystem]string{
		SubsystemDemand: "commonDemand",
		SubsystemDefect: "commonDefect",
		SubsystemEffort: "commonEffort",
	}
	summaryCollections = map[Subsystem]string{
		SubsystemDemand: "dailyDemandSummary",
		SubsystemDefect: "dailyDefectSummary",
		SubsystemEffort: "dailyEffortSummary",
	}
)

func (s Subsystem) String() string { return string(s) }

// Section is the load-event field this subsystem reports into.
func (s Subsystem) Section() string { return string(s) }

func (s Subsystem) RawCollection() string { return rawCollections[s] }

func (s Subsystem) CommonCollection() string { return commonCollections[s] }

func (s Subsystem) SummaryCollection() string { return summaryCollections[s] }
