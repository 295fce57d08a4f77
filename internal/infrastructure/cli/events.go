package cli

import (
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events <project>",
	Short: "List a project's load events",
	Args:  cobra.ExactArgs(1),
	RunE:  runEventsCmd,
}

func runEventsCmd(cmd *cobra.Command, args []string) error {
	svc, err := loadServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	events, err := svc.events.List(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"ID", "TYPE", "STATUS", "STARTED", "ENDED", "NOTE"})
	for _, ev := range events {
		ended := "-"
		if ev.EndTime != nil {
			ended = ev.EndTime.Format(time.RFC3339)
		}
		t.AppendRow(table.Row{
			ev.ID,
			ev.Type,
			ev.Status,
			ev.StartTime.Format(time.RFC3339),
			ended,
			ev.Note,
		})
	}
	t.Render()
	return nil
}

func init() {
	RootCmd.AddCommand(eventsCmd)
}
