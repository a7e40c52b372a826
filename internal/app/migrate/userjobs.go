package migrate

import (
	"context"
	"fmt"

	"github.com/jobtrack/migrator/internal/domain/legacy"
	"github.com/jobtrack/migrator/internal/domain/target"
	"github.com/jobtrack/migrator/internal/domain/translate"
)

// migrateUserJobs links users to jobs. A link is an auxiliary fact: when
// either side is unresolved the link is dropped rather than failing the run.
func (s *Service) migrateUserJobs(ctx context.Context, users *translate.Table[target.User], jobs *translate.Table[target.Job]) (StageResult, error) {
	res := StageResult{Stage: StageUserJobs}
	rep := s.reporter(StageUserJobs)
	rep.Start("Checking user jobs")

	done, count, err := s.alreadyMigrated(ctx, legacy.KindUserJobs, target.TableUserJobs)
	res.SourceCount = count
	if err != nil {
		return res, err
	}
	if done {
		res.Skipped = true
		rep.SetTotal(int(count), "User jobs already migrated")
		rep.Complete("User jobs already migrated")
		return res, nil
	}

	links, err := s.source.UserJobs(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to read legacy user jobs: %w", err)
	}
	present, err := s.existing(ctx, target.TableUserJobs)
	if err != nil {
		return res, err
	}

	rep.SetTotal(len(links), fmt.Sprintf("Migrating %d user jobs", len(links)))
	rows := make([]target.UserJob, 0, len(links))
	for i, l := range links {
		rep.Step(i+1, fmt.Sprintf("User job %d", uint32(l.ID)))
		if present[l.ID] {
			continue
		}
		user, userOK := translate.Optional(users, l.UserID)
		job, jobOK := translate.Optional(jobs, l.JobID)
		if !userOK || !jobOK || user.Outcome == translate.Absent || job.Outcome == translate.Absent {
			res.Excluded++
			s.log.Debug("user job excluded", "legacy_id", uint32(l.ID))
			continue
		}
		rows = append(rows, target.UserJob{
			UserID:   user.Value.ID,
			JobID:    job.Value.ID,
			LegacyID: signed(l.ID),
		})
	}

	if err := validateUserJobs(rows); err != nil {
		return res, err
	}

	res.Inserted, err = s.dest.InsertUserJobs(ctx, rows)
	if err != nil {
		return res, fmt.Errorf("failed to insert user jobs: %w", err)
	}

	rep.Complete(fmt.Sprintf("%d user jobs inserted, %d excluded", res.Inserted, res.Excluded))
	return res, nil
}

// validateUserJobs rejects rows with non-positive IDs, which can only come
// from a corrupted translation table.
func validateUserJobs(rows []target.UserJob) error {
	for _, r := range rows {
		if r.UserID <= 0 || r.JobID <= 0 {
			legacyID := int32(0)
			if r.LegacyID != nil {
				legacyID = *r.LegacyID
			}
			return fmt.Errorf("%w: user job %d has user %d, job %d",
				ErrInvalidLink, uint32(legacy.FromSigned(legacyID)), r.UserID, r.JobID)
		}
	}
	return nil
}
