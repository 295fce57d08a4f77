// Package source defines the capability contract every external system
// integration satisfies, and the registry the loader resolves integrations
// from. The loader never knows which concrete system it is talking to; it
// drives the three-method fetch/transform contract and nothing else.
package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/pulse/internal/domain/ingest"
	"github.com/felixgeelhaar/pulse/internal/domain/project"
)

// ErrUnknownSource marks a configuration error: the project names a source
// system no adapter is registered for. Surfaced before any network call.
var ErrUnknownSource = errors.New("unknown source system")

// RawDoc is a source-shaped record exactly as fetched, keyed by "id" for
// upsert storage.
type RawDoc map[string]any

// CommonDoc and SummaryDoc are stage outputs. Adapters return their own
// concrete types (ingest.UnifiedRecord, ingest.EffortRecord, the summary
// forms); the pipeline only counts and persists them.
type (
	CommonDoc  = any
	SummaryDoc = any
)

// Adapter is the pluggable integration with one external system for one
// subsystem category.
type Adapter interface {
	// FetchRaw pulls every record updated since the watermark.
	FetchRaw(ctx context.Context, cfg *project.SystemConfig, since string) ([]RawDoc, error)
	// TransformRawToCommon is a pure transform into the cross-source format.
	TransformRawToCommon(raw []RawDoc, cfg *project.SystemConfig) []CommonDoc
	// TransformCommonToSummary is a pure transform into daily rollups; the
	// instructions carry the end-date bound for still-open spans.
	TransformCommonToSummary(common []CommonDoc, ins ingest.Instructions) []SummaryDoc
}

// Kind tags one concrete external system.
type Kind string

const (
	KindJira    Kind = "JIRA"
	KindTrello  Kind = "TRELLO"
	KindHarvest Kind = "HARVEST"
)

// Registry maps (subsystem, kind) to a statically-typed adapter. Lookup is
// case-insensitive on the configured source name.
type Registry struct {
	adapters map[ingest.Subsystem]map[Kind]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: map[ingest.Subsystem]map[Kind]Adapter{}}
}

// Register binds an adapter for one subsystem category. Later registrations
// for the same pair win.
func (r *Registry) Register(sub ingest.Subsystem, kind Kind, adapter Adapter) {
	byKind, ok := r.adapters[sub]
	if !ok {
		byKind = map[Kind]Adapter{}
		r.adapters[sub] = byKind
	}
	byKind[kind] = adapter
}

// Resolve finds the adapter for a configured source name.
func (r *Registry) Resolve(sub ingest.Subsystem, sourceName string) (Adapter, error) {
	adapter, ok := r.adapters[sub][Kind(strings.ToUpper(sourceName))]
	if !ok {
		return nil, fmt.Errorf("%w [%s] for %s", ErrUnknownSource, sourceName, sub)
	}
	return adapter, nil
}
