package pgstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jobtrack/migrator/internal/domain/target"
)

// InsertAddresses copies the batch and returns the generated IDs in input
// order. The table is locked for the transaction so the identity values
// handed out by the COPY form one contiguous, ordered run above the
// previous maximum.
func (s *Store) InsertAddresses(ctx context.Context, rows []target.Address) ([]int64, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	var ids []int64
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `LOCK TABLE addresses IN EXCLUSIVE MODE`); err != nil {
			return fmt.Errorf("lock addresses: %w", err)
		}
		var floor int64
		if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(id), 0) FROM addresses`).Scan(&floor); err != nil {
			return fmt.Errorf("read address high-water mark: %w", err)
		}
		if _, err := Write(ctx, tx, addressMapping, rows); err != nil {
			return err
		}

		res, err := tx.Query(ctx, `SELECT id FROM addresses WHERE id > $1 ORDER BY id`, floor)
		if err != nil {
			return fmt.Errorf("read address ids: %w", err)
		}
		ids, err = pgx.CollectRows(res, pgx.RowTo[int64])
		if err != nil {
			return fmt.Errorf("read address ids: %w", err)
		}
		if len(ids) != len(rows) {
			return fmt.Errorf("copied %d addresses but found %d new ids", len(rows), len(ids))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("addresses inserted", "rows", len(ids))
	return ids, nil
}

func (s *Store) InsertUsers(ctx context.Context, rows []target.User) (int64, error) {
	return Write(ctx, s.db, userMapping, rows)
}

func (s *Store) InsertContacts(ctx context.Context, rows []target.Contact) (int64, error) {
	return Write(ctx, s.db, contactMapping, rows)
}

// UpdateContactParents applies every link in one statement.
func (s *Store) UpdateContactParents(ctx context.Context, links []target.ParentLink) (int64, error) {
	if len(links) == 0 {
		return 0, nil
	}
	ids := make([]int64, len(links))
	parents := make([]int64, len(links))
	for i, l := range links {
		ids[i], parents[i] = l.ContactID, l.ParentContactID
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE contacts AS c
		SET parent_contact_id = v.parent_id
		FROM unnest($1::bigint[], $2::bigint[]) AS v(id, parent_id)
		WHERE c.id = v.id`, ids, parents)
	if err != nil {
		return 0, fmt.Errorf("update contact parents: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) InsertCouncils(ctx context.Context, rows []target.Council) (int64, error) {
	return Write(ctx, s.db, councilMapping, rows)
}

func (s *Store) InsertCouncilContacts(ctx context.Context, rows []target.CouncilContact) (int64, error) {
	return Write(ctx, s.db, councilContactMapping, rows)
}

func (s *Store) InsertColours(ctx context.Context, table target.Table, rows []target.Colour) (int64, error) {
	if table != target.TableJobColours && table != target.TableScheduleColours {
		return 0, fmt.Errorf("%s is not a colour table", table)
	}
	return Write(ctx, s.db, colourMapping(table), rows)
}

func (s *Store) InsertJobs(ctx context.Context, rows []target.Job) (int64, error) {
	return Write(ctx, s.db, jobMapping, rows)
}

func (s *Store) InsertJobNotes(ctx context.Context, rows []target.JobNote) (int64, error) {
	return Write(ctx, s.db, jobNoteMapping, rows)
}

func (s *Store) InsertUserJobs(ctx context.Context, rows []target.UserJob) (int64, error) {
	return Write(ctx, s.db, userJobMapping, rows)
}

func (s *Store) InsertScheduleTracks(ctx context.Context, rows []target.ScheduleTrack) (int64, error) {
	return Write(ctx, s.db, scheduleTrackMapping, rows)
}

func (s *Store) InsertScheduleUsers(ctx context.Context, rows []target.ScheduleUser) (int64, error) {
	return Write(ctx, s.db, scheduleUserMapping, rows)
}

func (s *Store) InsertSchedules(ctx context.Context, rows []target.Schedule) (int64, error) {
	return Write(ctx, s.db, scheduleMapping, rows)
}
