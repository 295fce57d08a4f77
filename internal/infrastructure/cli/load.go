package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/pulse/internal/domain/event"
)

var (
	loadType     string
	loadOverride bool
	loadWait     time.Duration
)

var loadCmd = &cobra.Command{
	Use:   "load <project>",
	Short: "Start a load event for a project and wait for it to finish",
	Long: `Start a load event for a project and wait for it to finish.

A LOAD pulls the full history from every configured source system; an
UPDATE resumes from the previous event's end time. Use --override to force
an interrupted event closed and start fresh.`,
	Args: cobra.ExactArgs(1),
	RunE: runLoadCmd,
}

func runLoadCmd(cmd *cobra.Command, args []string) error {
	svc, err := loadServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	projectName := args[0]
	ev, err := svc.events.Create(cmd.Context(), projectName, loadType, loadOverride)
	if err != nil {
		return err
	}
	fmt.Printf("Started %s event %s for project %s (since %s)\n", ev.Type, ev.ID, projectName, ev.Since)

	final, err := waitForEvent(cmd.Context(), svc, projectName, ev.ID, loadWait)
	if err != nil {
		return err
	}

	fmt.Printf("Event %s finished: %s\n", final.ID, final.Status)
	if final.Note != "" {
		fmt.Printf("Note: %s\n", final.Note)
	}
	for _, section := range []struct {
		name    string
		outcome *event.SystemEvent
	}{
		{"demand", final.Demand},
		{"defect", final.Defect},
		{"effort", final.Effort},
	} {
		if section.outcome == nil {
			continue
		}
		fmt.Printf("  %-6s %-7s %s\n", section.name, section.outcome.Status, section.outcome.Message)
	}
	return nil
}

// waitForEvent polls the event until it closes. The pipeline runs in-process,
// so the command cannot exit before the event finishes.
func waitForEvent(ctx context.Context, svc *services, projectName, eventID string, wait time.Duration) (*event.LoadEvent, error) {
	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		ev, err := svc.events.Get(ctx, projectName, eventID)
		if err != nil {
			return nil, err
		}
		if !ev.IsActive() {
			return ev, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("event %s still running after %s", eventID, wait)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func init() {
	loadCmd.Flags().StringVarP(&loadType, "type", "t", "LOAD", "event type: LOAD or UPDATE")
	loadCmd.Flags().BoolVar(&loadOverride, "override", false, "force-close a running event first")
	loadCmd.Flags().DurationVar(&loadWait, "wait", 10*time.Minute, "how long to wait for the event to finish")
	RootCmd.AddCommand(loadCmd)
}
