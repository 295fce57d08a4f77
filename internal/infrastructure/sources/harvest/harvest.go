// Package harvest integrates with the Harvest time-tracking API for the
// effort subsystem. Loading is two-phase: fetch the day entries updated
// since the watermark, then fetch the task catalog and join task names into
// each entry.
package harvest

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/felixgeelhaar/pulse/internal/domain/ingest"
	"github.com/felixgeelhaar/pulse/internal/domain/project"
	"github.com/felixgeelhaar/pulse/internal/domain/source"
	"github.com/felixgeelhaar/pulse/internal/infrastructure/sources"
)

type Adapter struct {
	client *sources.Client
	logger *slog.Logger
}

func NewAdapter(client *sources.Client, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{client: client, logger: logger}
}

// FetchRaw pulls time entries updated since the watermark and joins the
// task catalog so entries carry role names instead of task ids.
func (a *Adapter) FetchRaw(ctx context.Context, cfg *project.SystemConfig, since string) ([]source.RawDoc, error) {
	if _, err := url.ParseRequestURI(cfg.URL); err != nil {
		return nil, fmt.Errorf("invalid effort URL [%s]", cfg.URL)
	}

	header := sources.BasicAuthHeader(cfg.UserData)

	entriesURL := fmt.Sprintf("%s/projects/%s/entries?from=%s&to=%s&updated_since=%s+00:00",
		cfg.URL, cfg.Project, ingest.DefaultStartDate, ingest.DayStamp(time.Now()), since)

	var entries []source.RawDoc
	if err := a.client.GetJSON(ctx, entriesURL, header, &entries); err != nil {
		return nil, fmt.Errorf("error retrieving time entries from Harvest: %w", err)
	}
	a.logger.Debug("read time entries", "project", cfg.Project, "count", len(entries))
	if len(entries) == 0 {
		return nil, nil
	}

	tasks, err := a.fetchTaskNames(ctx, cfg, header)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		dayEntry := mapValue(entry["day_entry"])
		if dayEntry == nil {
			continue
		}
		entry["id"] = numberString(dayEntry["id"])
		dayEntry["task_name"] = tasks[numberString(dayEntry["task_id"])]
	}
	return entries, nil
}

func (a *Adapter) fetchTaskNames(ctx context.Context, cfg *project.SystemConfig, header map[string][]string) (map[string]string, error) {
	var tasks []source.RawDoc
	if err := a.client.GetJSON(ctx, cfg.URL+"/tasks", header, &tasks); err != nil {
		return nil, fmt.Errorf("error retrieving task entries from Harvest: %w", err)
	}
	a.logger.Debug("read tasks", "count", len(tasks))

	names := make(map[string]string, len(tasks))
	for _, wrapper := range tasks {
		task := mapValue(wrapper["task"])
		if task == nil {
			continue
		}
		names[numberString(task["id"])] = stringValue(task["name"])
	}
	return names, nil
}

// TransformRawToCommon flattens each day entry into the common effort shape:
// hours booked by one role on one day.
func (a *Adapter) TransformRawToCommon(raw []source.RawDoc, _ *project.SystemConfig) []source.CommonDoc {
	common := make([]source.CommonDoc, 0, len(raw))
	for _, entry := range raw {
		dayEntry := mapValue(entry["day_entry"])
		if dayEntry == nil {
			continue
		}
		hours, _ := dayEntry["hours"].(float64)
		common = append(common, ingest.EffortRecord{
			ID:     numberString(dayEntry["id"]),
			Day:    stringValue(dayEntry["spent_at"]),
			Role:   stringValue(dayEntry["task_name"]),
			Effort: hours,
		})
	}
	return common
}

// TransformCommonToSummary totals hours per day and role. Effort has no
// open-ended spans, so the instructions end date plays no part here.
func (a *Adapter) TransformCommonToSummary(common []source.CommonDoc, _ ingest.Instructions) []source.SummaryDoc {
	records := make([]ingest.EffortRecord, 0, len(common))
	for _, doc := range common {
		if record, ok := doc.(ingest.EffortRecord); ok {
			records = append(records, record)
		}
	}

	summaries := ingest.SummarizeEffort(records)
	out := make([]source.SummaryDoc, 0, len(summaries))
	for _, summary := range summaries {
		out = append(out, summary)
	}
	return out
}

func mapValue(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

// numberString renders a JSON number as the integer string sources use for
// ids.
func numberString(v any) string {
	switch n := v.(type) {
	case float64:
		return strconv.FormatInt(int64(n), 10)
	case string:
		return n
	default:
		return ""
	}
}
