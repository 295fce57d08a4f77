// Package trello integrates with Trello's card API for the demand
// subsystem. Card list moves stand in for status changes; a card's creation
// time is recoverable from the timestamp packed into its id.
package trello

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
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

// FetchRaw lists the board's cards with their move actions and keeps the
// ones active since the watermark. Trello has no server-side since filter
// for this shape, so filtering happens client-side on dateLastActivity.
func (a *Adapter) FetchRaw(ctx context.Context, cfg *project.SystemConfig, since string) ([]source.RawDoc, error) {
	if _, err := url.ParseRequestURI(cfg.URL); err != nil {
		return nil, fmt.Errorf("invalid demand URL [%s]", cfg.URL)
	}

	cardsURL := appendAuth(cfg.URL+"/cards?fields=id,labels,dateLastActivity,shortUrl&actions=updateCard,createCard", cfg)

	var cards []source.RawDoc
	if err := a.client.GetJSON(ctx, cardsURL, nil, &cards); err != nil {
		return nil, fmt.Errorf("error retrieving stories from Trello: %w", err)
	}
	a.logger.Debug("read cards", "project", cfg.Project, "count", len(cards))

	sinceDay, sinceErr := time.Parse(ingest.DayFormat, since)

	kept := make([]source.RawDoc, 0, len(cards))
	for _, card := range cards {
		actions, _ := card["actions"].([]any)
		if len(actions) == 0 {
			continue
		}
		if sinceErr == nil && !activeSince(card, sinceDay) {
			continue
		}
		card["creationDate"] = cardCreationDate(stringValue(card["id"]))
		kept = append(kept, card)
	}
	return kept, nil
}

func activeSince(card source.RawDoc, sinceDay time.Time) bool {
	lastActivity, err := time.Parse(time.RFC3339, stringValue(card["dateLastActivity"]))
	if err != nil {
		return true
	}
	return !lastActivity.Before(sinceDay)
}

// appendAuth adds Trello's key/token query credentials: authPolicy names the
// parameters, userData carries the values, both colon-separated.
func appendAuth(rawURL string, cfg *project.SystemConfig) string {
	keys := strings.SplitN(cfg.AuthPolicy, ":", 2)
	values := strings.SplitN(cfg.UserData, ":", 2)
	if len(keys) < 2 || len(values) < 2 {
		return rawURL
	}
	divider := "?"
	if strings.Contains(rawURL, "?") {
		divider = "&"
	}
	return fmt.Sprintf("%s%s%s=%s&%s=%s", rawURL, divider, keys[0], values[0], keys[1], values[1])
}

// cardCreationDate decodes the creation time packed into a Trello card id:
// the first 8 hex characters are unix seconds.
func cardCreationDate(cardID string) string {
	if len(cardID) < 8 {
		return ""
	}
	seconds, err := strconv.ParseInt(cardID[:8], 16, 64)
	if err != nil {
		return ""
	}
	return time.Unix(seconds, 0).UTC().Format(time.RFC3339)
}

// TransformRawToCommon maps card move actions into status-span history. The
// actions arrive newest first; replayed oldest-first, each list move closes
// the open span. A card that never moved sits in its current list since
// creation.
func (a *Adapter) TransformRawToCommon(raw []source.RawDoc, _ *project.SystemConfig) []source.CommonDoc {
	common := make([]source.CommonDoc, 0, len(raw))

	for _, card := range raw {
		record := ingest.UnifiedRecord{
			ID:  stringValue(card["id"]),
			URI: stringValue(card["shortUrl"]),
		}
		creation := stringValue(card["creationDate"])

		allActions := actionList(card)
		if len(allActions) == 0 {
			// Every action entry was malformed; no history to build.
			continue
		}
		moves := make([]map[string]any, 0, len(allActions))
		for i := len(allActions) - 1; i >= 0; i-- {
			if mapValue(mapValue(allActions[i]["data"])["listBefore"]) != nil {
				moves = append(moves, allActions[i])
			}
		}

		var span ingest.StatusSpan
		if len(moves) == 0 {
			listName := stringValue(mapValue(mapValue(allActions[0]["data"])["list"])["name"])
			span = ingest.StatusSpan{StatusValue: listName, StartDate: creation}
		} else {
			for i, move := range moves {
				data := mapValue(move["data"])
				date := stringValue(move["date"])
				if i == 0 {
					span = ingest.StatusSpan{
						StatusValue: stringValue(mapValue(data["listBefore"])["name"]),
						StartDate:   creation,
					}
				}
				span.ChangeDate = &date
				record.History = append(record.History, span)
				span = ingest.StatusSpan{
					StatusValue: stringValue(mapValue(data["listAfter"])["name"]),
					StartDate:   date,
				}
			}
		}

		record.History = append(record.History, span)
		common = append(common, record)
	}

	return common
}

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

func actionList(card source.RawDoc) []map[string]any {
	raw, _ := card["actions"].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, entry := range raw {
		if action, ok := entry.(map[string]any); ok {
			out = append(out, action)
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
