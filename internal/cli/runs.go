package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jobtrack/migrator/internal/app/migrate"
	"github.com/jobtrack/migrator/internal/cli/ui"
)

// runsCmd represents the runs command
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded migration runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openRunStore()
		if err != nil {
			return err
		}

		runs := store.List()
		if len(runs) == 0 {
			ui.Info("No runs recorded in " + store.FilePath())
			return nil
		}

		tbl := ui.NewTable("ID", "Started", "Duration", "Reset", "Inserted", "Result")
		for _, r := range runs {
			var inserted int64
			for _, s := range r.Stages {
				inserted += s.Inserted
			}
			result := "ok"
			if !r.Succeeded() {
				result = "failed"
			}
			tbl.AddRow(r.ID,
				r.StartedAt.Local().Format(time.DateTime),
				r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String(),
				strconv.FormatBool(r.Reset),
				strconv.FormatInt(inserted, 10),
				result,
			)
		}
		tbl.Print(interactive())
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show the stages of one run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openRunStore()
		if err != nil {
			return err
		}
		r, err := store.Get(args[0])
		if err != nil {
			return err
		}

		ui.Header("Run " + r.ID)
		fmt.Printf("Started:  %s\n", r.StartedAt.Local().Format(time.DateTime))
		fmt.Printf("Finished: %s\n", r.FinishedAt.Local().Format(time.DateTime))
		printSummary(&migrate.Summary{StartedAt: r.StartedAt, FinishedAt: r.FinishedAt, Stages: r.Stages}, interactive())
		if r.Duplicates > 0 {
			ui.Warning(fmt.Sprintf("%d duplicate job numbers", r.Duplicates))
		}
		if !r.Succeeded() {
			ui.Error(r.Error)
		}
		return nil
	},
}

// openRunStore needs no database settings, so it skips full config validation.
func openRunStore() (*migrate.RunStore, error) {
	return migrate.NewRunStore(viper.GetString("runs.path"))
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsShowCmd)
}
