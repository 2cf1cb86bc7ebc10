package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/kyleseneker/rankwatch/internal/rank"
)

var (
	trackFrequency    string
	trackNewFrequency string
	trackDomain       string
	trackKeyword      string
)

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Manage tracked (domain, keyword) pairs",
}

var trackAddCmd = &cobra.Command{
	Use:   "add <domain> <keyword>",
	Short: "Start tracking a keyword for a domain",
	Long: `Registers a (domain, keyword) pair. --frequency is one of minutely, hourly,
daily, weekly or monthly; anything else is treated as daily.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		addTrackedItem(cmd.Context(), cfgFile, args[0], args[1], trackFrequency)
	},
}

var trackListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked items with their latest position",
	Run: func(cmd *cobra.Command, args []string) {
		listTrackedItems(cmd.Context(), cfgFile)
	},
}

var trackUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change the domain, keyword or frequency of a tracked item",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		updateTrackedItem(cmd.Context(), cfgFile, args[0])
	},
}

var trackDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Stop tracking an item and delete its history",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		deleteTrackedItem(cmd.Context(), cfgFile, args[0])
	},
}

func init() {
	trackAddCmd.Flags().StringVar(&trackFrequency, "frequency", string(rank.DefaultFrequency), "check frequency")
	trackUpdateCmd.Flags().StringVar(&trackNewFrequency, "frequency", "", "new check frequency")
	trackUpdateCmd.Flags().StringVar(&trackDomain, "domain", "", "new domain")
	trackUpdateCmd.Flags().StringVar(&trackKeyword, "keyword", "", "new keyword")

	trackCmd.AddCommand(trackAddCmd, trackListCmd, trackUpdateCmd, trackDeleteCmd)
	rootCmd.AddCommand(trackCmd)
}

func addTrackedItem(ctx context.Context, configPath, domain, keyword, frequency string) {
	cfg, logger := loadConfig(configPath)
	st := mustOpenStore(cfg, logger)
	defer st.Close()

	item, err := st.CreateItem(ctx, domain, keyword, rank.ParseFrequency(frequency))
	if err != nil {
		log.Fatalf("Error creating tracked item: %v", err)
	}
	fmt.Printf("Tracking %q for %s (%s) as %s\n", item.Keyword, item.Domain, item.Frequency, item.ID)
}

func listTrackedItems(ctx context.Context, configPath string) {
	cfg, logger := loadConfig(configPath)
	st := mustOpenStore(cfg, logger)
	defer st.Close()

	items, err := st.ListItems(ctx)
	if err != nil {
		log.Fatalf("Error listing tracked items: %v", err)
	}
	if len(items) == 0 {
		fmt.Println("No tracked items.")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Domain", "Keyword", "Frequency", "Position", "Last Checked"})
	table.SetBorder(false)
	for _, item := range items {
		position, lastChecked := "-", "never"
		rec, found, err := st.MostRecent(ctx, item.ID)
		if err != nil {
			logger.Warn("Could not load latest check", "item_id", item.ID, "error", err)
		} else if found {
			position = formatPosition(rec)
			lastChecked = rec.CheckedAt.Local().Format(time.DateTime)
		}
		table.Append([]string{item.ID, item.Domain, item.Keyword, string(item.Frequency), position, lastChecked})
	}
	table.Render()
}

func updateTrackedItem(ctx context.Context, configPath, id string) {
	cfg, logger := loadConfig(configPath)
	st := mustOpenStore(cfg, logger)
	defer st.Close()

	item, err := st.GetItem(ctx, id)
	if err != nil {
		log.Fatalf("Error loading tracked item: %v", err)
	}
	if trackDomain != "" {
		item.Domain = trackDomain
	}
	if trackKeyword != "" {
		item.Keyword = trackKeyword
	}
	if trackNewFrequency != "" {
		item.Frequency = rank.ParseFrequency(trackNewFrequency)
	}

	item, err = st.UpdateItem(ctx, id, item.Domain, item.Keyword, item.Frequency)
	if err != nil {
		log.Fatalf("Error updating tracked item: %v", err)
	}
	fmt.Printf("Updated %s: %q for %s (%s)\n", item.ID, item.Keyword, item.Domain, item.Frequency)
}

func deleteTrackedItem(ctx context.Context, configPath, id string) {
	cfg, logger := loadConfig(configPath)
	st := mustOpenStore(cfg, logger)
	defer st.Close()

	if err := st.DeleteItem(ctx, id); err != nil {
		log.Fatalf("Error deleting tracked item: %v", err)
	}
	fmt.Printf("Deleted %s and its history.\n", id)
}

// formatPosition renders a record's position for table output.
func formatPosition(rec rank.Record) string {
	switch {
	case rec.Snapshot.IsError():
		return "error"
	case rec.Position == nil:
		return "not ranked"
	default:
		return fmt.Sprintf("%d", *rec.Position)
	}
}
