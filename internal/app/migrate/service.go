// Package migrate moves the legacy MySQL job-tracking schema into the
// PostgreSQL target schema.
//
// The run is a fixed sequence of stages. Each stage reads one legacy entity
// kind, resolves its foreign references through translation tables built by
// earlier stages, bulk-loads the result and builds its own translation table
// from the persisted rows for the stages after it. Stages run strictly one
// after another on the calling goroutine.
package migrate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jobtrack/migrator/internal/domain/legacy"
	"github.com/jobtrack/migrator/internal/domain/progress"
	"github.com/jobtrack/migrator/internal/domain/target"
	"github.com/jobtrack/migrator/internal/domain/translate"
	"github.com/jobtrack/migrator/internal/pkg/logger"
)

// Stage names as reported to observers.
const (
	StageUsers          = "Users"
	StageContacts       = "Contacts"
	StageCouncils       = "Councils"
	StageJobs           = "Jobs"
	StageJobNotes       = "Job Notes"
	StageUserJobs       = "User Jobs"
	StageScheduleTracks = "Schedule Tracks"
	StageSchedules      = "Schedules"
)

// Options tunes a migration run.
type Options struct {
	// EmailDomain is the domain of the placeholder emails given to users.
	EmailDomain string
	// ProgressEvery throttles per-item progress events.
	ProgressEvery int
	// ReportPath, when set, receives the duplicate job number report as YAML.
	ReportPath string
	// Logger defaults to logger.Default().
	Logger *slog.Logger
	// Observer receives progress events. Defaults to progress.Discard.
	Observer progress.Observer
	// Now is used for run timestamps. Defaults to time.Now.
	Now func() time.Time
}

// StageResult describes what one stage did.
type StageResult struct {
	Stage       string `json:"stage"`
	Skipped     bool   `json:"skipped"`
	SourceCount int64  `json:"source_count"`
	Inserted    int64  `json:"inserted"`
	Excluded    int    `json:"excluded,omitempty"`
	Defaulted   int    `json:"defaulted,omitempty"`
}

// Summary is the outcome of a full run.
type Summary struct {
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Stages     []StageResult    `json:"stages"`
	Duplicates []DuplicateGroup `json:"duplicates,omitempty"`
}

// Service runs the migration pipeline.
type Service struct {
	source   legacy.Reader
	dest     target.Store
	opts     Options
	log      *slog.Logger
	observer progress.Observer
	closers  []io.Closer
}

// NewService creates a migration service over an already connected source and
// destination.
func NewService(source legacy.Reader, dest target.Store, opts Options) *Service {
	if opts.EmailDomain == "" {
		opts.EmailDomain = "legacy.invalid"
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = 100
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = logger.Default()
	}
	observer := opts.Observer
	if observer == nil {
		observer = progress.Discard
	}
	return &Service{
		source:   source,
		dest:     dest,
		opts:     opts,
		log:      log,
		observer: observer,
	}
}

// Close releases the connections opened by InitMigration.
func (s *Service) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// tables are the translation tables handed from stage to stage.
type tables struct {
	users    *translate.Table[target.User]
	contacts *translate.Table[target.Contact]
	councils *translate.Table[target.Council]
	jobs     *translate.Table[target.Job]
	tracks   *translate.Table[target.ScheduleTrack]
}

// Run executes every stage in dependency order. The first failing stage
// ends the run; its error is returned together with the partial summary.
func (s *Service) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{StartedAt: s.opts.Now().UTC()}
	defer func() { summary.FinishedAt = s.opts.Now().UTC() }()

	states, err := s.dest.States(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to load states: %w", err)
	}
	addresses := newAddressBuilder(NewStateLookup(states), s.log)

	var t tables
	record := func(res StageResult, err error) error {
		summary.Stages = append(summary.Stages, res)
		if err != nil {
			s.log.Error("stage failed", "stage", res.Stage, "error", err)
			return fmt.Errorf("%s stage: %w", res.Stage, err)
		}
		s.log.Info("stage finished",
			"stage", res.Stage,
			"skipped", res.Skipped,
			"source", res.SourceCount,
			"inserted", res.Inserted,
		)
		return nil
	}

	var res StageResult
	t.users, res, err = s.migrateUsers(ctx)
	if err := record(res, err); err != nil {
		return summary, err
	}

	t.contacts, res, err = s.migrateContacts(ctx, addresses)
	if err := record(res, err); err != nil {
		return summary, err
	}

	t.councils, res, err = s.migrateCouncils(ctx, addresses, t.contacts)
	if err := record(res, err); err != nil {
		return summary, err
	}

	var dups []DuplicateGroup
	t.jobs, dups, res, err = s.migrateJobs(ctx, addresses, t.users, t.councils, t.contacts)
	summary.Duplicates = dups
	if err := record(res, err); err != nil {
		return summary, err
	}
	if err := s.writeDuplicateReport(dups); err != nil {
		s.log.Warn("failed to write duplicate report", "path", s.opts.ReportPath, "error", err)
	}

	res, err = s.migrateJobNotes(ctx, t.users, t.jobs)
	if err := record(res, err); err != nil {
		return summary, err
	}

	res, err = s.migrateUserJobs(ctx, t.users, t.jobs)
	if err := record(res, err); err != nil {
		return summary, err
	}

	t.tracks, res, err = s.migrateScheduleTracks(ctx, t.users)
	if err := record(res, err); err != nil {
		return summary, err
	}

	res, err = s.migrateSchedules(ctx, t.tracks, t.jobs)
	if err := record(res, err); err != nil {
		return summary, err
	}

	return summary, nil
}

func (s *Service) reporter(stage string) *progress.Reporter {
	return progress.NewReporter(stage, s.observer, s.opts.ProgressEvery)
}

// alreadyMigrated is the coarse idempotency check: a stage counts as done
// when the legacy and destination row counts are equal. It does not detect
// content drift.
func (s *Service) alreadyMigrated(ctx context.Context, kind legacy.Kind, table target.Table) (bool, int64, error) {
	src, err := s.source.Count(ctx, kind)
	if err != nil {
		return false, 0, fmt.Errorf("failed to count legacy %s: %w", kind, err)
	}
	dst, err := s.dest.Count(ctx, table)
	if err != nil {
		return false, src, fmt.Errorf("failed to count %s: %w", table, err)
	}
	s.log.Debug("idempotency check", "kind", kind, "source", src, "destination", dst)
	return src == dst, src, nil
}

// existing returns the legacy IDs already present in table, so a stage that
// re-runs after a partial write only inserts what is missing.
func (s *Service) existing(ctx context.Context, table target.Table) (map[legacy.ID]bool, error) {
	ids, err := s.dest.LegacyIDs(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("failed to read existing %s: %w", table, err)
	}
	out := make(map[legacy.ID]bool, len(ids))
	for _, id := range ids {
		out[legacy.FromSigned(id)] = true
	}
	return out, nil
}

// indexByLegacy builds a translation table from persisted target rows.
// Rows without a legacy_id were not created by the migration and are ignored.
func indexByLegacy[T any](name string, rows []T, legacyID func(T) *int32) (*translate.Table[T], error) {
	migrated := make([]T, 0, len(rows))
	for _, r := range rows {
		if legacyID(r) != nil {
			migrated = append(migrated, r)
		}
	}
	return translate.Build(name, migrated,
		func(r T) legacy.ID { return legacy.FromSigned(*legacyID(r)) },
		func(r T) T { return r },
	)
}

func signed(id legacy.ID) *int32 {
	v := id.Signed()
	return &v
}

func utcAudit(a legacy.Audit) target.Audit {
	return target.Audit{
		CreatedAt:  utc(a.Created),
		ModifiedAt: utc(a.Modified),
		DeletedAt:  utc(a.DeletionTime()),
	}
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
