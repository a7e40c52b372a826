package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/jobtrack/migrator/internal/domain/legacy"
	"github.com/jobtrack/migrator/internal/domain/target"
	"github.com/jobtrack/migrator/internal/domain/translate"
)

// migrateJobs transforms every legacy job in memory before writing anything.
// A job without a resolvable contact aborts the stage before the first bulk
// write, so no job rows are committed for the batch.
func (s *Service) migrateJobs(
	ctx context.Context,
	addresses *addressBuilder,
	users *translate.Table[target.User],
	councils *translate.Table[target.Council],
	contacts *translate.Table[target.Contact],
) (*translate.Table[target.Job], []DuplicateGroup, StageResult, error) {
	res := StageResult{Stage: StageJobs}
	rep := s.reporter(StageJobs)
	rep.Start("Checking jobs")

	done, count, err := s.alreadyMigrated(ctx, legacy.KindJobs, target.TableJobs)
	res.SourceCount = count
	if err != nil {
		return nil, nil, res, err
	}

	if done {
		res.Skipped = true
		rep.SetTotal(int(count), "Jobs already migrated")
		table, err := loadJobs(ctx, s.dest)
		if err != nil {
			return nil, nil, res, err
		}
		rep.Complete(fmt.Sprintf("%d jobs available", table.Len()))
		return table, nil, res, nil
	}

	legacyJobs, err := s.source.Jobs(ctx)
	if err != nil {
		return nil, nil, res, fmt.Errorf("failed to read legacy jobs: %w", err)
	}
	present, err := s.existing(ctx, target.TableJobs)
	if err != nil {
		return nil, nil, res, err
	}

	rep.Message("Building job colour palette")
	colours := make([]string, len(legacyJobs))
	for i, j := range legacyJobs {
		colours[i] = j.Colour
	}
	palette, err := s.buildPalette(ctx, target.TableJobColours, colours)
	if err != nil {
		return nil, nil, res, err
	}

	dups := FindDuplicateNumbers(legacyJobs)
	for _, d := range dups {
		s.log.Warn("duplicate job number", "field", d.Field, "number", d.Number, "jobs", d.JobIDs)
	}
	if len(dups) > 0 {
		rep.Message(fmt.Sprintf("%d duplicate job numbers found", len(dups)))
	}

	creators := newCreatorResolver(users)
	rep.SetTotal(len(legacyJobs), fmt.Sprintf("Migrating %d jobs", len(legacyJobs)))

	var (
		rows  []target.Job
		addrs []target.Address
	)
	for i, j := range legacyJobs {
		rep.Step(i+1, fmt.Sprintf("Job %d", uint32(j.ID)))
		if present[j.ID] {
			continue
		}

		row, defaulted, err := s.transformJob(j, creators, councils, contacts, palette)
		if err != nil {
			s.log.Error("job transform failed", "legacy_id", uint32(j.ID), "error", err)
			return nil, dups, res, err
		}
		if defaulted {
			res.Defaulted++
		}
		addrs = append(addrs, addresses.Resolve(j.Location, j.ID))
		rows = append(rows, row)
	}
	if res.Defaulted > 0 {
		rep.Message(fmt.Sprintf("%d jobs had an unmigrated creator and were assigned to the first known user", res.Defaulted))
	}

	err = s.dest.InTx(ctx, func(tx target.Store) error {
		ids, err := tx.InsertAddresses(ctx, addrs)
		if err != nil {
			return fmt.Errorf("failed to insert job addresses: %w", err)
		}
		if len(ids) != len(rows) {
			return fmt.Errorf("inserted %d job addresses, expected %d", len(ids), len(rows))
		}
		for i := range rows {
			rows[i].AddressID = ids[i]
		}

		res.Inserted, err = tx.InsertJobs(ctx, rows)
		if err != nil {
			return fmt.Errorf("failed to insert jobs: %w", err)
		}
		return nil
	})
	if err != nil {
		res.Inserted = 0
		return nil, dups, res, err
	}

	table, err := loadJobs(ctx, s.dest)
	if err != nil {
		return nil, dups, res, err
	}
	rep.Complete(fmt.Sprintf("%d jobs available", table.Len()))
	return table, dups, res, nil
}

// transformJob maps one legacy job. The returned bool reports whether the
// creator fell back to the default user.
func (s *Service) transformJob(
	j legacy.Job,
	creators *creatorResolver,
	councils *translate.Table[target.Council],
	contacts *translate.Table[target.Contact],
	palette *Palette,
) (target.Job, bool, error) {
	contact, ok := translate.Optional(contacts, j.ContactID)
	if !ok || contact.Outcome == translate.Absent {
		return target.Job{}, false, &ReferenceError{
			Stage: StageJobs, Entity: "job", LegacyID: j.ID,
			Reference: "contact", RefID: j.ContactID,
		}
	}

	council, ok := translate.Optional(councils, j.CouncilID)
	if !ok {
		return target.Job{}, false, &ReferenceError{
			Stage: StageJobs, Entity: "job", LegacyID: j.ID,
			Reference: "council", RefID: j.CouncilID,
		}
	}
	var councilID *int64
	if council.Outcome == translate.Resolved {
		id := council.Value.ID
		councilID = &id
	}

	creator, err := creators.Resolve(j.CreatedBy)
	if err != nil {
		return target.Job{}, false, fmt.Errorf("job %d: %w", uint32(j.ID), err)
	}
	defaulted := creator.Outcome == translate.Defaulted
	if defaulted {
		s.log.Debug("job creator defaulted", "legacy_id", uint32(j.ID), "user_id", creator.Value)
	}

	jobType, number := classifyJob(j.CadastralJobNumber, j.SetoutJobNumber)
	colour := palette.Resolve(j.Colour)

	return target.Job{
		JobNumber:       number,
		JobTypeID:       jobType,
		ContactID:       contact.Value.ID,
		CouncilID:       councilID,
		JobColourID:     colour.Value.ID,
		JobColour:       colour.Value.Colour,
		CreatedByUserID: creator.Value,
		Description:     truncate(s.log, "job.description", j.ID, strings.TrimSpace(j.Description), maxDescriptionLength),
		LegacyID:        signed(j.ID),
		Audit:           utcAudit(j.Audit),
	}, defaulted, nil
}

// classifyJob picks the job type and number. A cadastral number makes a
// surveying job; otherwise a setout number makes a construction job. A job
// with neither is construction with no number.
func classifyJob(cadastral, setout *int32) (target.JobType, *int32) {
	switch {
	case cadastral != nil:
		n := *cadastral
		return target.JobTypeSurveying, &n
	case setout != nil:
		n := *setout
		return target.JobTypeConstruction, &n
	default:
		return target.JobTypeConstruction, nil
	}
}

// buildPalette persists the distinct valid colours not yet stored in table,
// then loads the full palette back.
func (s *Service) buildPalette(ctx context.Context, table target.Table, values []string) (*Palette, error) {
	stored, err := s.dest.Colours(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", table, err)
	}
	have := make(map[string]bool, len(stored))
	for _, c := range stored {
		have[c.Colour] = true
	}

	var missing []target.Colour
	for _, c := range CollectColours(values) {
		if !have[c] {
			missing = append(missing, target.Colour{Colour: c})
		}
	}
	if _, err := s.dest.InsertColours(ctx, table, missing); err != nil {
		return nil, fmt.Errorf("failed to insert %s: %w", table, err)
	}

	stored, err = s.dest.Colours(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", table, err)
	}
	return NewPalette(stored)
}

func loadJobs(ctx context.Context, st target.Store) (*translate.Table[target.Job], error) {
	persisted, err := st.Jobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load jobs: %w", err)
	}
	return indexByLegacy("jobs", persisted, func(j target.Job) *int32 { return j.LegacyID })
}
