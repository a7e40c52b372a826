package pgstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/jobtrack/migrator/internal/domain/target"
)

// load runs q and collects every row with scan.
func load[T any](ctx context.Context, s *Store, what, q string, scan func(pgx.CollectableRow) (T, error), args ...any) ([]T, error) {
	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", what, err)
	}
	out, err := pgx.CollectRows(rows, scan)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", what, err)
	}
	return out, nil
}

func (s *Store) Users(ctx context.Context) ([]target.User, error) {
	return load(ctx, s, "users", `
		SELECT id, identity_id, email, display_name, first_name, last_name, legacy_id,
			created_at, modified_at, deleted_at
		FROM users ORDER BY id`,
		func(row pgx.CollectableRow) (target.User, error) {
			var (
				u        target.User
				identity pgtype.UUID
			)
			err := row.Scan(&u.ID, &identity, &u.Email, &u.DisplayName, &u.FirstName, &u.LastName, &u.LegacyID,
				&u.CreatedAt, &u.ModifiedAt, &u.DeletedAt)
			if identity.Valid {
				u.IdentityID = uuid.UUID(identity.Bytes)
			}
			return u, err
		})
}

func (s *Store) Contacts(ctx context.Context) ([]target.Contact, error) {
	return load(ctx, s, "contacts", `
		SELECT id, address_id, parent_contact_id, first_name, last_name, company, phone, fax, email, legacy_id,
			created_at, modified_at, deleted_at
		FROM contacts ORDER BY id`,
		func(row pgx.CollectableRow) (target.Contact, error) {
			var c target.Contact
			err := row.Scan(&c.ID, &c.AddressID, &c.ParentContactID, &c.FirstName, &c.LastName, &c.Company,
				&c.Phone, &c.Fax, &c.Email, &c.LegacyID, &c.CreatedAt, &c.ModifiedAt, &c.DeletedAt)
			return c, err
		})
}

func (s *Store) Councils(ctx context.Context) ([]target.Council, error) {
	return load(ctx, s, "councils", `
		SELECT id, address_id, name, phone, email, legacy_id, created_at, modified_at, deleted_at
		FROM councils ORDER BY id`,
		func(row pgx.CollectableRow) (target.Council, error) {
			var c target.Council
			err := row.Scan(&c.ID, &c.AddressID, &c.Name, &c.Phone, &c.Email, &c.LegacyID,
				&c.CreatedAt, &c.ModifiedAt, &c.DeletedAt)
			return c, err
		})
}

func (s *Store) Colours(ctx context.Context, table target.Table) ([]target.Colour, error) {
	if table != target.TableJobColours && table != target.TableScheduleColours {
		return nil, fmt.Errorf("%s is not a colour table", table)
	}
	q := "SELECT id, colour FROM " + pgx.Identifier{table.String()}.Sanitize() + " ORDER BY id"
	return load(ctx, s, table.String(), q, func(row pgx.CollectableRow) (target.Colour, error) {
		var c target.Colour
		err := row.Scan(&c.ID, &c.Colour)
		return c, err
	})
}

// Jobs loads jobs with their address and colour joined in.
func (s *Store) Jobs(ctx context.Context) ([]target.Job, error) {
	return load(ctx, s, "jobs", `
		SELECT j.id, j.job_number, j.job_type_id, j.contact_id, j.council_id, j.job_colour_id, c.colour,
			j.created_by_user_id, j.description, j.legacy_id, j.created_at, j.modified_at, j.deleted_at,
			a.id, a.street, a.suburb, a.postcode, a.state_id, a.country
		FROM jobs j
		JOIN addresses a ON a.id = j.address_id
		JOIN job_colours c ON c.id = j.job_colour_id
		ORDER BY j.id`,
		func(row pgx.CollectableRow) (target.Job, error) {
			var (
				j       target.Job
				a       target.Address
				jobType int32
			)
			err := row.Scan(&j.ID, &j.JobNumber, &jobType, &j.ContactID, &j.CouncilID, &j.JobColourID, &j.JobColour,
				&j.CreatedByUserID, &j.Description, &j.LegacyID, &j.CreatedAt, &j.ModifiedAt, &j.DeletedAt,
				&a.ID, &a.Street, &a.Suburb, &a.Postcode, &a.StateID, &a.Country)
			j.JobTypeID = target.JobType(jobType)
			j.AddressID = a.ID
			j.Address = &a
			return j, err
		})
}

func (s *Store) ScheduleTracks(ctx context.Context) ([]target.ScheduleTrack, error) {
	return load(ctx, s, "schedule tracks", `
		SELECT id, job_type_id, date, description, legacy_id, created_at, modified_at, deleted_at
		FROM schedule_tracks ORDER BY id`,
		func(row pgx.CollectableRow) (target.ScheduleTrack, error) {
			var (
				t       target.ScheduleTrack
				jobType int32
			)
			err := row.Scan(&t.ID, &jobType, &t.Date, &t.Description, &t.LegacyID,
				&t.CreatedAt, &t.ModifiedAt, &t.DeletedAt)
			t.JobTypeID = target.JobType(jobType)
			return t, err
		})
}
