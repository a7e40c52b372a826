package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jobtrack/migrator/internal/app/migrate"
	"github.com/jobtrack/migrator/internal/cli/ui"
	"github.com/jobtrack/migrator/internal/config"
	"github.com/jobtrack/migrator/internal/domain/progress"
	"github.com/jobtrack/migrator/internal/infrastructure/progressbus"
	"github.com/jobtrack/migrator/internal/pkg/logger"
)

var (
	migrateReset  bool
	migrateYes    bool
	migratePlain  bool
	migrateReport string
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run the migration",
	Long: `Run every migration stage in dependency order:

  Users, Contacts, Councils, Jobs, Job Notes, User Jobs,
  Schedule Tracks, Schedules

A stage whose legacy and destination row counts already match is skipped.
The first stage that fails ends the run; fix the data and run again.

Examples:
  # Migrate into an existing schema
  jobmigrate migrate

  # Drop and recreate the destination schema first
  jobmigrate migrate --reset --yes

  # Log progress lines instead of drawing progress bars
  jobmigrate migrate --plain`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().BoolVar(&migrateReset, "reset", false, "drop and recreate the destination schema before migrating")
	migrateCmd.Flags().BoolVarP(&migrateYes, "yes", "y", false, "do not ask for confirmation before a reset")
	migrateCmd.Flags().BoolVar(&migratePlain, "plain", false, "log progress instead of showing progress bars")
	migrateCmd.Flags().StringVar(&migrateReport, "report", "", "write duplicate job numbers to this YAML file")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	reset := migrateReset || cfg.Migration.ResetSchema
	if reset && !migrateYes {
		ui.Warning(fmt.Sprintf("This drops every table in %s.", cfg.Destination.SanitizedConnectionString()))
		if !ui.Confirm("Reset the destination schema?", false) {
			return errors.New("aborted")
		}
	}
	reportPath := cfg.Migration.ReportPath
	if migrateReport != "" {
		reportPath = migrateReport
	}

	tui := interactive() && !migratePlain
	logFile := initLogger(cfg.Log, tui)
	log := logger.Default()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runID := uuid.New().String()
	observers := []progress.Observer{}
	if cfg.Progress.RedisAddr != "" {
		pub, err := progressbus.Connect(ctx, cfg.Progress, runID, log)
		if err != nil {
			log.Warn("progress publishing disabled", "error", err)
		} else {
			defer pub.Close()
			observers = append(observers, pub)
		}
	}

	var program *tea.Program
	if tui {
		program = tea.NewProgram(ui.NewMigrationModel(cancel))
		observers = append(observers, ui.Observer(program))
	} else if !IsQuiet() {
		observers = append(observers, plainObserver())
	}

	opts := migrate.Options{
		EmailDomain:   cfg.Migration.EmailDomain,
		ProgressEvery: cfg.Migration.ProgressEvery,
		ReportPath:    reportPath,
		Logger:        log,
		Observer:      progress.Multi(observers...),
	}

	if !IsQuiet() {
		ui.Header("jobmigrate")
		if logFile != "" {
			ui.Info(fmt.Sprintf("Logging to %s", logFile))
		}
	}

	svc, err := migrate.InitMigration(ctx, cfg, reset, opts)
	if err != nil {
		return err
	}
	defer svc.Close()

	summary, runErr := execute(ctx, svc, program)

	recordRun(cfg.Runs, runID, summary, reset, runErr)

	if !IsQuiet() {
		printSummary(summary, tui)
	}
	if runErr != nil {
		return fmt.Errorf("migration failed: %w", runErr)
	}
	ui.Success(fmt.Sprintf("Migration finished in %s", summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond)))
	return nil
}

// execute runs the migration, on a worker goroutine when a progress
// program owns the terminal.
func execute(ctx context.Context, svc *migrate.Service, program *tea.Program) (*migrate.Summary, error) {
	if program == nil {
		return svc.Run(ctx)
	}

	var (
		summary *migrate.Summary
		runErr  error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		summary, runErr = svc.Run(ctx)
		program.Send(ui.DoneMsg{Err: runErr})
	}()

	if _, err := program.Run(); err != nil {
		logger.Warn("progress display failed", "error", err)
	}
	<-done
	return summary, runErr
}

// plainObserver prints progress lines for non-interactive runs.
func plainObserver() progress.Observer {
	return progress.ObserverFunc(func(e progress.Event) {
		fmt.Printf("[%s] %s\n", e.Stage, ui.SimpleProgress(e.Index, e.Total, e.Item))
	})
}

func recordRun(cfg config.Runs, runID string, summary *migrate.Summary, reset bool, runErr error) {
	store, err := migrate.NewRunStore(cfg.Path)
	if err != nil {
		logger.Warn("run journal unavailable", "error", err)
		return
	}
	rec, err := store.Record(runID, summary, reset, runErr)
	if err != nil {
		logger.Warn("failed to record run", "error", err)
		return
	}
	logger.Info("run recorded", "run_id", rec.ID, "journal", store.FilePath())
}

func printSummary(summary *migrate.Summary, styled bool) {
	if summary == nil {
		return
	}
	ui.Divider()
	tbl := ui.NewTable("Stage", "Source", "Inserted", "Excluded", "Defaulted", "Status")
	for _, s := range summary.Stages {
		status := "migrated"
		if s.Skipped {
			status = "skipped"
		}
		tbl.AddRow(s.Stage,
			strconv.FormatInt(s.SourceCount, 10),
			strconv.FormatInt(s.Inserted, 10),
			strconv.Itoa(s.Excluded),
			strconv.Itoa(s.Defaulted),
			status,
		)
	}
	tbl.Print(styled)

	if n := len(summary.Duplicates); n > 0 {
		ui.Warning(fmt.Sprintf("%d duplicate job numbers found; run 'jobmigrate duplicates' for details", n))
	}
}
