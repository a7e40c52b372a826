package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jobtrack/migrator/internal/app/migrate"
	"github.com/jobtrack/migrator/internal/cli/ui"
)

var duplicatesOutput string

// duplicatesCmd represents the duplicates command
var duplicatesCmd = &cobra.Command{
	Use:   "duplicates",
	Short: "List legacy jobs sharing a cadastral or setout number",
	Long: `Read the legacy jobs and list every cadastral or setout number used by
more than one live job. Duplicates are migrated as they are; this report is
for cleaning the data up afterwards.`,
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

		groups, err := svc.Duplicates(cmd.Context())
		if err != nil {
			return err
		}
		if len(groups) == 0 {
			ui.Success("No duplicate job numbers")
			return nil
		}

		tbl := ui.NewTable("Field", "Number", "Legacy jobs")
		for _, g := range groups {
			ids := make([]string, len(g.JobIDs))
			for i, id := range g.JobIDs {
				ids[i] = fmt.Sprint(uint32(id))
			}
			tbl.AddRow(g.Field, fmt.Sprint(g.Number), strings.Join(ids, ", "))
		}
		tbl.Print(interactive())

		if duplicatesOutput != "" {
			if err := migrate.WriteDuplicateReport(duplicatesOutput, groups, time.Now()); err != nil {
				return err
			}
			ui.Info(fmt.Sprintf("Report written to %s", duplicatesOutput))
		}
		ui.Warning(fmt.Sprintf("%d duplicate job numbers", len(groups)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(duplicatesCmd)
	duplicatesCmd.Flags().StringVarP(&duplicatesOutput, "output", "o", "", "also write the report as YAML")
}
