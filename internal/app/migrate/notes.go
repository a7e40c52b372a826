package migrate

import (
	"context"
	"fmt"

	"github.com/jobtrack/migrator/internal/domain/legacy"
	"github.com/jobtrack/migrator/internal/domain/target"
	"github.com/jobtrack/migrator/internal/domain/translate"
)

// migrateJobNotes requires every note's job to resolve; the first note
// without one aborts the stage. Creators fall back like they do for jobs.
func (s *Service) migrateJobNotes(ctx context.Context, users *translate.Table[target.User], jobs *translate.Table[target.Job]) (StageResult, error) {
	res := StageResult{Stage: StageJobNotes}
	rep := s.reporter(StageJobNotes)
	rep.Start("Checking job notes")

	done, count, err := s.alreadyMigrated(ctx, legacy.KindNotes, target.TableJobNotes)
	res.SourceCount = count
	if err != nil {
		return res, err
	}
	if done {
		res.Skipped = true
		rep.SetTotal(int(count), "Job notes already migrated")
		rep.Complete("Job notes already migrated")
		return res, nil
	}

	notes, err := s.source.Notes(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to read legacy notes: %w", err)
	}
	present, err := s.existing(ctx, target.TableJobNotes)
	if err != nil {
		return res, err
	}

	creators := newCreatorResolver(users)
	rep.SetTotal(len(notes), fmt.Sprintf("Migrating %d job notes", len(notes)))

	rows := make([]target.JobNote, 0, len(notes))
	for i, n := range notes {
		rep.Step(i+1, fmt.Sprintf("Note %d", uint32(n.ID)))
		if present[n.ID] {
			continue
		}

		job, ok := translate.Optional(jobs, n.JobID)
		if !ok || job.Outcome == translate.Absent {
			return res, &ReferenceError{
				Stage: StageJobNotes, Entity: "note", LegacyID: n.ID,
				Reference: "job", RefID: n.JobID,
			}
		}

		creator, err := creators.Resolve(n.CreatedBy)
		if err != nil {
			return res, fmt.Errorf("note %d: %w", uint32(n.ID), err)
		}
		if creator.Outcome == translate.Defaulted {
			res.Defaulted++
		}

		rows = append(rows, target.JobNote{
			JobID:           job.Value.ID,
			Note:            n.Text,
			CreatedByUserID: creator.Value,
			LegacyID:        signed(n.ID),
			Audit:           utcAudit(n.Audit),
		})
	}

	res.Inserted, err = s.dest.InsertJobNotes(ctx, rows)
	if err != nil {
		return res, fmt.Errorf("failed to insert job notes: %w", err)
	}

	rep.Complete(fmt.Sprintf("%d job notes inserted", res.Inserted))
	return res, nil
}
