package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sigreer/lustrezfs/internal/db"
)

var historyCmd = &cobra.Command{
	Use:   "history [dataset]",
	Short: "Show recorded targets and operations",
	Long: `Show the targets and operations recorded in the history database.

Without a dataset, lists every known target followed by the most recent
operations. With a dataset, shows its record and its operations. With
--op, shows every event of one operation in the order it was recorded.`,
	Args: invalidArgs(cobra.MaximumNArgs(1)),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().Bool("json", false, "Output as JSON")
	historyCmd.Flags().Int("limit", 20, "Maximum number of events to show")
	historyCmd.Flags().String("op", "", "Show the events of one operation id")
}

// queryHistory selects the targets and events to show. An operation id
// takes precedence over a dataset.
func queryHistory(database *db.DB, dataset, opID string, limit int) ([]*db.TargetRecord, []*db.TargetEvent, error) {
	if opID != "" {
		events, err := database.GetOperationEvents(opID)
		return nil, events, err
	}

	if dataset != "" {
		var targets []*db.TargetRecord
		target, err := database.GetTarget(dataset)
		if err != nil {
			return nil, nil, err
		}
		if target != nil {
			targets = append(targets, target)
		}
		events, err := database.GetTargetEvents(dataset, limit)
		return targets, events, err
	}

	targets, err := database.GetAllTargets()
	if err != nil {
		return nil, nil, err
	}
	events, err := database.GetRecentEvents(limit)
	return targets, events, err
}

func runHistory(cmd *cobra.Command, args []string) error {
	jsonOut, _ := cmd.Flags().GetBool("json")
	limit, _ := cmd.Flags().GetInt("limit")
	opID, _ := cmd.Flags().GetString("op")

	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()

	database, err := db.New(e.cfg.History.Path)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer database.Close()

	var dataset string
	if len(args) == 1 {
		dataset = args[0]
	}
	targets, events, err := queryHistory(database, dataset, opID, limit)
	if err != nil {
		return err
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{
			"targets": targets,
			"events":  events,
		})
	}

	if len(targets) == 0 && len(events) == 0 {
		fmt.Printf("No history recorded in %s. Targets are recorded by 'lustrezfs mkfs' and 'lustrezfs write'.\n", database.Path())
		return nil
	}

	if len(targets) > 0 {
		fmt.Printf("%-24s %-18s %-10s %-6s %-8s %s\n", "DATASET", "SVNAME", "FSNAME", "INDEX", "TYPE", "LAST SEEN")
		fmt.Println(strings.Repeat("-", 85))
		for _, t := range targets {
			fmt.Printf("%-24s %-18s %-10s %-6d %-8s %s\n",
				t.Dataset, dash(t.SVName), dash(t.FSName), t.Index, dash(t.ServerType),
				humanize.Time(t.LastSeen))
		}
		fmt.Println()
	}

	if len(events) > 0 {
		fmt.Printf("%-19s %-8s %-24s %-8s %-5s %s\n", "TIME", "OP", "DATASET", "EVENT", "ERRNO", "STATUS")
		fmt.Println(strings.Repeat("-", 85))
		for _, ev := range events {
			fmt.Printf("%-19s %-8s %-24s %-8s %-5d %s\n",
				ev.Timestamp.Local().Format("2006-01-02 15:04:05"), shortOp(ev.OpID),
				ev.Dataset, ev.EventType, ev.Errno, ev.Status)
		}
	}

	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// shortOp trims an operation uuid to its first group
func shortOp(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
