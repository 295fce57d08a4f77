package project

// Collection is the document collection projects live in, inside the core
// database.
const Collection = "project"

// RagCollection is the per-project collection holding the latest health
// indicator evaluations.
const RagCollection = "ragStatuses"

// RAG health colors.
const (
	RagGreen = "green"
	RagAmber = "amber"
	RagRed   = "red"
)

// FlowStep names one status in a demand workflow; the first step is the
// status new items are born into.
type FlowStep struct {
	Name string `json:"name"`
}

// RoleGroup maps a time-tracking role onto the role it is reported with.
type RoleGroup struct {
	Name      string `json:"name"`
	GroupWith string `json:"groupWith"`
}

// SystemConfig names the external system one subsystem loads from and how to
// reach it.
type SystemConfig struct {
	Source     string     `json:"source"`
	URL        string     `json:"url"`
	Project    string     `json:"project"`
	AuthPolicy string     `json:"authPolicy"`
	UserData   string     `json:"userData"`
	Flow       []FlowStep `json:"flow,omitempty"`
	Role       []RoleGroup `json:"role,omitempty"`
}

// Configured reports whether this block names a usable source. A nil or
// empty block means the subsystem is not tracked for the project.
func (c *SystemConfig) Configured() bool {
	return c != nil && c.Source != "" && c.URL != ""
}

// Projection carries the planned delivery shape: a ramp-up phase, a steady
// middle, and a ramp-down phase, in iterations and stories per iteration.
type Projection struct {
	BacklogSize          float64 `json:"backlogSize"`
	DarkMatterPercentage float64 `json:"darkMatterPercentage"`
	IterationLength      float64 `json:"iterationLength"`
	StartIterations      float64 `json:"startIterations"`
	StartVelocity        float64 `json:"startVelocity"`
	TargetVelocity       float64 `json:"targetVelocity"`
	EndIterations        float64 `json:"endIterations"`
	EndVelocity          float64 `json:"endVelocity"`
	StartDate            string  `json:"startDate,omitempty"`
	EndDate              string  `json:"endDate,omitempty"`
}

// Indicator is one evaluated health signal for a project.
type Indicator struct {
	Name      string `json:"name"`
	Target    string `json:"target"`
	Value     string `json:"value"`
	RagStatus string `json:"ragStatus"`
}

// Project is the configuration document for one tracked project. Owned by
// configuration management; the ingestion side only reads it and updates the
// rollup color.
type Project struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Demand      *SystemConfig `json:"demand"`
	Defect      *SystemConfig `json:"defect"`
	Effort      *SystemConfig `json:"effort"`
	Projection  *Projection   `json:"projection,omitempty"`
	StartDate   string        `json:"startDate,omitempty"`
	EndDate     string        `json:"endDate,omitempty"`
	RagStatus   string        `json:"ragStatus,omitempty"`
}

// DocumentID returns the document key for this project. Projects are keyed
// by name when no explicit id was assigned.
func (p *Project) DocumentID() string {
	if p.ID != "" {
		return p.ID
	}
	return p.Name
}

// WorstRag folds a set of indicators into one rollup color; red beats amber
// beats green, and no indicators at all reads as green.
func WorstRag(indicators []Indicator) string {
	rollup := RagGreen
	for _, indicator := range indicators {
		switch indicator.RagStatus {
		case RagRed:
			return RagRed
		case RagAmber:
			rollup = RagAmber
		}
	}
	return rollup
}
