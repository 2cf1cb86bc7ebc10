package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "Show the rank-check history of a tracked item, newest first",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		showHistory(cmd.Context(), cfgFile, args[0], historyLimit)
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of records to show")
	rootCmd.AddCommand(historyCmd)
}

func showHistory(ctx context.Context, configPath, id string, limit int) {
	cfg, logger := loadConfig(configPath)
	st := mustOpenStore(cfg, logger)
	defer st.Close()

	item, err := st.GetItem(ctx, id)
	if err != nil {
		log.Fatalf("Error loading tracked item: %v", err)
	}
	recs, err := st.ListRecords(ctx, id, limit)
	if err != nil {
		log.Fatalf("Error loading history: %v", err)
	}

	fmt.Printf("%q for %s (%s)\n", item.Keyword, item.Domain, item.Frequency)
	if len(recs) == 0 {
		fmt.Println("No checks recorded yet.")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Checked At", "Position", "Top Result / Error"})
	table.SetBorder(false)
	for _, rec := range recs {
		detail := rec.Snapshot.ErrorMessage()
		if items := rec.Snapshot.Items(); len(items) > 0 {
			detail = items[0].Link
		}
		table.Append([]string{rec.CheckedAt.Local().Format(time.DateTime), formatPosition(rec), detail})
	}
	table.Render()
}
