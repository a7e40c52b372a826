package migrate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jobtrack/migrator/internal/domain/legacy"
	"github.com/jobtrack/migrator/internal/domain/target"
	"github.com/jobtrack/migrator/internal/domain/translate"
)

// surveyingScheduleGroup is the legacy schedule group whose tracks are surveying tracks.
const surveyingScheduleGroup legacy.ID = 1

// scheduleUserDraft is an assignee staged before its track has a target ID.
type scheduleUserDraft struct {
	trackLegacy legacy.ID
	userID      int64
}

// migrateScheduleTracks inserts tracks, then backfills the staged
// schedule-user rows with the new track IDs and inserts those.
func (s *Service) migrateScheduleTracks(ctx context.Context, users *translate.Table[target.User]) (*translate.Table[target.ScheduleTrack], StageResult, error) {
	res := StageResult{Stage: StageScheduleTracks}
	rep := s.reporter(StageScheduleTracks)
	rep.Start("Checking schedule tracks")

	done, count, err := s.alreadyMigrated(ctx, legacy.KindScheduleTracks, target.TableScheduleTracks)
	res.SourceCount = count
	if err != nil {
		return nil, res, err
	}

	if done {
		res.Skipped = true
		rep.SetTotal(int(count), "Schedule tracks already migrated")
		table, err := loadScheduleTracks(ctx, s.dest)
		if err != nil {
			return nil, res, err
		}
		rep.Complete(fmt.Sprintf("%d schedule tracks available", table.Len()))
		return table, res, nil
	}

	tracks, err := s.source.ScheduleTracks(ctx)
	if err != nil {
		return nil, res, fmt.Errorf("failed to read legacy schedule tracks: %w", err)
	}
	present, err := s.existing(ctx, target.TableScheduleTracks)
	if err != nil {
		return nil, res, err
	}

	rep.SetTotal(len(tracks), fmt.Sprintf("Migrating %d schedule tracks", len(tracks)))
	var (
		rows   []target.ScheduleTrack
		drafts []scheduleUserDraft
	)
	for i, t := range tracks {
		rep.Step(i+1, t.Date.Format("2006-01-02"))
		if present[t.ID] {
			continue
		}
		rows = append(rows, target.ScheduleTrack{
			JobTypeID:   trackJobType(t.ScheduleGroupID),
			Date:        calendarDate(t.Date),
			Description: truncate(s.log, "schedule_track.description", t.ID, strings.TrimSpace(t.Description), maxDescriptionLength),
			LegacyID:    signed(t.ID),
			Audit:       utcAudit(t.Audit),
		})

		for _, assignee := range []*int64{t.UserID1, t.UserID2} {
			if assignee == nil || *assignee <= 0 {
				continue
			}
			user, ok := users.Lookup(legacy.ID(uint32(*assignee)))
			if !ok {
				res.Excluded++
				s.log.Warn("schedule track assignee not migrated, skipped",
					"legacy_id", uint32(t.ID), "user_id", *assignee)
				continue
			}
			drafts = append(drafts, scheduleUserDraft{trackLegacy: t.ID, userID: user.ID})
		}
	}

	var assignees []target.ScheduleUser
	err = s.dest.InTx(ctx, func(tx target.Store) error {
		var err error
		res.Inserted, err = tx.InsertScheduleTracks(ctx, rows)
		if err != nil {
			return fmt.Errorf("failed to insert schedule tracks: %w", err)
		}
		inserted, err := loadScheduleTracks(ctx, tx)
		if err != nil {
			return err
		}

		rep.Message("Assigning schedule users")
		assignees = make([]target.ScheduleUser, 0, len(drafts))
		for _, d := range drafts {
			track, ok := inserted.Lookup(d.trackLegacy)
			if !ok {
				return &ReferenceError{Stage: StageScheduleTracks, Entity: "schedule track", LegacyID: d.trackLegacy, Reference: "persisted row"}
			}
			assignees = append(assignees, target.ScheduleUser{ScheduleTrackID: track.ID, UserID: d.userID})
		}
		if _, err := tx.InsertScheduleUsers(ctx, assignees); err != nil {
			return fmt.Errorf("failed to insert schedule users: %w", err)
		}
		return nil
	})
	if err != nil {
		res.Inserted = 0
		return nil, res, err
	}

	table, err := loadScheduleTracks(ctx, s.dest)
	if err != nil {
		return nil, res, err
	}

	rep.Complete(fmt.Sprintf("%d schedule tracks available, %d assignees", table.Len(), len(assignees)))
	return table, res, nil
}

// calendarDate keeps the wall-clock day of a DATE value read in the source
// timezone. Converting it to UTC first would move it to the previous day.
func calendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func trackJobType(group legacy.ID) target.JobType {
	if group == surveyingScheduleGroup {
		return target.JobTypeSurveying
	}
	return target.JobTypeConstruction
}

// migrateSchedules requires the track translation table to be complete.
// Schedules whose track is missing are skipped; a missing job becomes null.
func (s *Service) migrateSchedules(ctx context.Context, tracks *translate.Table[target.ScheduleTrack], jobs *translate.Table[target.Job]) (StageResult, error) {
	res := StageResult{Stage: StageSchedules}
	rep := s.reporter(StageSchedules)
	rep.Start("Checking schedules")

	done, count, err := s.alreadyMigrated(ctx, legacy.KindSchedules, target.TableSchedules)
	res.SourceCount = count
	if err != nil {
		return res, err
	}
	if done {
		res.Skipped = true
		rep.SetTotal(int(count), "Schedules already migrated")
		rep.Complete("Schedules already migrated")
		return res, nil
	}

	schedules, err := s.source.Schedules(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to read legacy schedules: %w", err)
	}
	present, err := s.existing(ctx, target.TableSchedules)
	if err != nil {
		return res, err
	}

	rep.Message("Building schedule colour palette")
	colours := make([]string, len(schedules))
	for i, sc := range schedules {
		colours[i] = sc.Colour
	}
	palette, err := s.buildPalette(ctx, target.TableScheduleColours, colours)
	if err != nil {
		return res, err
	}

	rep.SetTotal(len(schedules), fmt.Sprintf("Migrating %d schedules", len(schedules)))
	rows := make([]target.Schedule, 0, len(schedules))
	for i, sc := range schedules {
		rep.Step(i+1, fmt.Sprintf("Schedule %d", uint32(sc.ID)))
		if present[sc.ID] {
			continue
		}

		track, ok := translate.Optional(tracks, sc.ScheduleTrackID)
		if !ok || track.Outcome == translate.Absent {
			res.Excluded++
			s.log.Debug("schedule has no migrated track, skipped", "legacy_id", uint32(sc.ID))
			continue
		}

		job, ok := translate.Optional(jobs, sc.JobID)
		if !ok {
			s.log.Warn("schedule job not migrated, stored without job",
				"legacy_id", uint32(sc.ID), "job_id", uint32(*sc.JobID))
		}
		var jobID *int64
		if ok && job.Outcome == translate.Resolved {
			id := job.Value.ID
			jobID = &id
		}

		colour := palette.Resolve(sc.Colour)
		rows = append(rows, target.Schedule{
			ScheduleTrackID:  track.Value.ID,
			JobID:            jobID,
			ScheduleColourID: colour.Value.ID,
			Colour:           colour.Value.Colour,
			Start:            sc.Start.UTC(),
			End:              sc.End.UTC(),
			Description:      truncate(s.log, "schedule.description", sc.ID, strings.TrimSpace(sc.Description), maxDescriptionLength),
			LegacyID:         signed(sc.ID),
			Audit:            utcAudit(sc.Audit),
		})
	}

	res.Inserted, err = s.dest.InsertSchedules(ctx, rows)
	if err != nil {
		return res, fmt.Errorf("failed to insert schedules: %w", err)
	}

	rep.Complete(fmt.Sprintf("%d schedules inserted, %d skipped", res.Inserted, res.Excluded))
	return res, nil
}

func loadScheduleTracks(ctx context.Context, st target.Store) (*translate.Table[target.ScheduleTrack], error) {
	persisted, err := st.ScheduleTracks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule tracks: %w", err)
	}
	return indexByLegacy("schedule tracks", persisted, func(t target.ScheduleTrack) *int32 { return t.LegacyID })
}
