package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jobtrack/migrator/internal/app/migrate"
	"github.com/jobtrack/migrator/internal/cli/ui"
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check connectivity and compare row counts",
	Long: `Connect to both databases and report, per stage, the legacy row count,
the destination row count and whether a migration run would skip the stage.
Nothing is written.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		initLogger(cfg.Log, false)

		svc, err := migrate.InitMigration(cmd.Context(), cfg, false, migrate.Options{})
		if err != nil {
			return err
		}
		defer svc.Close()
		ui.Success("Source and destination reachable")

		counts, err := svc.Counts(cmd.Context())
		if err != nil {
			return err
		}

		tbl := ui.NewTable("Stage", "Legacy", "Destination", "Status")
		pending := 0
		for _, c := range counts {
			status := "migrated"
			if !c.Migrated() {
				status = "pending"
				pending++
			}
			tbl.AddRow(c.Stage, strconv.FormatInt(c.Source, 10), strconv.FormatInt(c.Destination, 10), status)
		}
		tbl.Print(interactive())

		if pending > 0 {
			ui.Info(fmt.Sprintf("%d stages would run", pending))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
