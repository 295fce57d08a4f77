// Package jira integrates with Jira's REST search API for demand (Story)
// and defect (Bug) subsystems. Fetch is paginated: the server reports
// startAt and total, and the client loops until it has accumulated every
// issue.
package jira

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/felixgeelhaar/pulse/internal/domain/ingest"
	"github.com/felixgeelhaar/pulse/internal/domain/project"
	"github.com/felixgeelhaar/pulse/internal/domain/source"
	"github.com/felixgeelhaar/pulse/internal/infrastructure/sources"
)

var (
	searchExpand = []string{"changelog", "history", "items"}
	searchFields = []string{"issuetype", "created", "updated", "status", "key", "summary"}
)

// Adapter loads one Jira issue type and maps its changelog into status-span
// history.
type Adapter struct {
	client       *sources.Client
	issueType    string
	initialState string
	logger       *slog.Logger
}

// NewDemandAdapter tracks stories. The initial status comes from the
// project's flow definition when present.
func NewDemandAdapter(client *sources.Client, logger *slog.Logger) *Adapter {
	return newAdapter(client, "Story", "Backlog", logger)
}

// NewDefectAdapter tracks bugs, which are born into the Created state.
func NewDefectAdapter(client *sources.Client, logger *slog.Logger) *Adapter {
	return newAdapter(client, "Bug", "Created", logger)
}

func newAdapter(client *sources.Client, issueType, initialState string, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{client: client, issueType: issueType, initialState: initialState, logger: logger}
}

type searchPage struct {
	StartAt int             `json:"startAt"`
	Total   int             `json:"total"`
	Issues  []source.RawDoc `json:"issues"`
}

func (a *Adapter) searchQuery(cfg *project.SystemConfig, startAt int, since string) string {
	jql := fmt.Sprintf("project=%s AND issueType=%s AND updated>=%s", cfg.Project, a.issueType, since)
	return fmt.Sprintf("%s/search?jql=%s&startAt=%d&expand=%s&fields=%s",
		cfg.URL,
		url.QueryEscape(jql),
		startAt,
		strings.Join(searchExpand, ","),
		strings.Join(searchFields, ","))
}

// FetchRaw pulls every issue updated since the watermark, following the
// fetched < total pagination loop until exhausted.
func (a *Adapter) FetchRaw(ctx context.Context, cfg *project.SystemConfig, since string) ([]source.RawDoc, error) {
	if _, err := url.ParseRequestURI(cfg.URL); err != nil {
		return nil, fmt.Errorf("invalid %s URL [%s]", strings.ToLower(a.issueType), cfg.URL)
	}

	header := sources.BasicAuthHeader(cfg.UserData)
	var issues []source.RawDoc
	for {
		var page searchPage
		if err := a.client.GetJSON(ctx, a.searchQuery(cfg, len(issues), since), header, &page); err != nil {
			return nil, fmt.Errorf("error retrieving %ss from Jira: %w", strings.ToLower(a.issueType), err)
		}
		a.logger.Debug("read issue page",
			"project", cfg.Project, "startAt", page.StartAt, "count", len(page.Issues), "total", page.Total)

		issues = append(issues, page.Issues...)
		if len(page.Issues) == 0 || len(issues) >= page.Total {
			break
		}
	}

	return fixHistoryData(issues), nil
}

// fixHistoryData flattens each changelog entry's single-element items array
// into a plain object so the raw documents store cleanly.
func fixHistoryData(issues []source.RawDoc) []source.RawDoc {
	for _, issue := range issues {
		for _, history := range histories(issue) {
			if items, ok := history["items"].([]any); ok && len(items) > 0 {
				history["items"] = items[0]
			}
		}
	}
	return issues
}

// TransformRawToCommon maps changelogs into status-span history. Status and
// resolution changes both count as status transitions; Jira workflows that
// track resolutions report them that way. Fix Version changes are release
// events: they close the open span with a valid end date and get dropped
// later in the summary.
func (a *Adapter) TransformRawToCommon(raw []source.RawDoc, cfg *project.SystemConfig) []source.CommonDoc {
	common := make([]source.CommonDoc, 0, len(raw))

	for _, issue := range raw {
		record := ingest.UnifiedRecord{
			ID:  stringValue(issue["id"]),
			URI: stringValue(issue["self"]),
		}

		span := ingest.StatusSpan{
			StatusValue: a.initialStatus(cfg),
			StartDate:   stringValue(mapValue(issue["fields"])["created"]),
		}

		for _, history := range histories(issue) {
			item := mapValue(history["items"])
			created := stringValue(history["created"])

			switch stringValue(item["field"]) {
			case "status", "resolution":
				span.ChangeDate = &created
				record.History = append(record.History, span)

				next := stringValue(item["toString"])
				if next == "" {
					// A cleared resolution carries no target state; assume
					// the issue fell back to its most recent prior status.
					index := 0
					if len(record.History) >= 2 {
						index = len(record.History) - 2
					}
					next = record.History[index].StatusValue
				}
				span = ingest.StatusSpan{StatusValue: next, StartDate: created}
			case "Fix Version":
				span.ChangeDate = &created
				record.History = append(record.History, span)
				span = ingest.StatusSpan{
					StatusValue: "Fix Version-" + stringValue(item["toString"]),
					StartDate:   created,
				}
			}
		}

		record.History = append(record.History, span)
		common = append(common, record)
	}

	return common
}

// TransformCommonToSummary buckets the histories into per-day status counts,
// closing still-open spans with the instructions end date.
func (a *Adapter) TransformCommonToSummary(common []source.CommonDoc, ins ingest.Instructions) []source.SummaryDoc {
	records := make([]ingest.UnifiedRecord, 0, len(common))
	for _, doc := range common {
		if record, ok := doc.(ingest.UnifiedRecord); ok {
			records = append(records, record)
		}
	}

	summaries := ingest.SummarizeByDay(records, ins.EndDate)
	out := make([]source.SummaryDoc, 0, len(summaries))
	for _, summary := range summaries {
		out = append(out, summary)
	}
	return out
}

func (a *Adapter) initialStatus(cfg *project.SystemConfig) string {
	if cfg != nil && len(cfg.Flow) > 0 {
		return cfg.Flow[0].Name
	}
	return a.initialState
}

func histories(issue source.RawDoc) []map[string]any {
	changelog := mapValue(issue["changelog"])
	raw, ok := changelog["histories"].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, entry := range raw {
		if history, ok := entry.(map[string]any); ok {
			out = append(out, history)
		}
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
