package pgstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jobtrack/migrator/internal/domain/target"
)

// Copier is the COPY surface shared by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Copier interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Mapping describes how rows of T land in a destination table.
type Mapping[T any] struct {
	Table   target.Table
	Columns []string
	Values  func(T) []any
}

// Write bulk-loads rows with the binary COPY protocol. An empty batch is a
// no-op and never touches the connection.
func Write[T any](ctx context.Context, c Copier, m Mapping[T], rows []T) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	src := pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		v := m.Values(rows[i])
		if len(v) != len(m.Columns) {
			return nil, fmt.Errorf("%s row %d: %d values for %d columns", m.Table, i, len(v), len(m.Columns))
		}
		return v, nil
	})
	n, err := c.CopyFrom(ctx, pgx.Identifier{m.Table.String()}, m.Columns, src)
	if err != nil {
		return n, fmt.Errorf("copy into %s: %w", m.Table, err)
	}
	return n, nil
}

var auditColumns = []string{"created_at", "modified_at", "deleted_at"}

func withAudit(cols ...string) []string {
	return append(cols, auditColumns...)
}

func auditValues(a target.Audit, values ...any) []any {
	return append(values, a.CreatedAt, a.ModifiedAt, a.DeletedAt)
}

var addressMapping = Mapping[target.Address]{
	Table:   target.TableAddresses,
	Columns: []string{"street", "suburb", "postcode", "state_id", "country"},
	Values: func(a target.Address) []any {
		return []any{a.Street, a.Suburb, a.Postcode, a.StateID, a.Country}
	},
}

var userMapping = Mapping[target.User]{
	Table:   target.TableUsers,
	Columns: withAudit("identity_id", "email", "display_name", "first_name", "last_name", "legacy_id"),
	Values: func(u target.User) []any {
		return auditValues(u.Audit, [16]byte(u.IdentityID), u.Email, u.DisplayName, u.FirstName, u.LastName, u.LegacyID)
	},
}

var contactMapping = Mapping[target.Contact]{
	Table: target.TableContacts,
	Columns: withAudit("address_id", "parent_contact_id", "first_name", "last_name", "company",
		"phone", "fax", "email", "legacy_id"),
	Values: func(c target.Contact) []any {
		return auditValues(c.Audit, c.AddressID, c.ParentContactID, c.FirstName, c.LastName, c.Company,
			c.Phone, c.Fax, c.Email, c.LegacyID)
	},
}

var councilMapping = Mapping[target.Council]{
	Table:   target.TableCouncils,
	Columns: withAudit("address_id", "name", "phone", "email", "legacy_id"),
	Values: func(c target.Council) []any {
		return auditValues(c.Audit, c.AddressID, c.Name, c.Phone, c.Email, c.LegacyID)
	},
}

var councilContactMapping = Mapping[target.CouncilContact]{
	Table:   target.TableCouncilContacts,
	Columns: []string{"council_id", "contact_id"},
	Values: func(c target.CouncilContact) []any {
		return []any{c.CouncilID, c.ContactID}
	},
}

func colourMapping(table target.Table) Mapping[target.Colour] {
	return Mapping[target.Colour]{
		Table:   table,
		Columns: []string{"colour"},
		Values:  func(c target.Colour) []any { return []any{c.Colour} },
	}
}

var jobMapping = Mapping[target.Job]{
	Table: target.TableJobs,
	Columns: withAudit("job_number", "job_type_id", "address_id", "contact_id", "council_id",
		"job_colour_id", "created_by_user_id", "description", "legacy_id"),
	Values: func(j target.Job) []any {
		return auditValues(j.Audit, j.JobNumber, int32(j.JobTypeID), j.AddressID, j.ContactID, j.CouncilID,
			j.JobColourID, j.CreatedByUserID, j.Description, j.LegacyID)
	},
}

var jobNoteMapping = Mapping[target.JobNote]{
	Table:   target.TableJobNotes,
	Columns: withAudit("job_id", "note", "created_by_user_id", "legacy_id"),
	Values: func(n target.JobNote) []any {
		return auditValues(n.Audit, n.JobID, n.Note, n.CreatedByUserID, n.LegacyID)
	},
}

var userJobMapping = Mapping[target.UserJob]{
	Table:   target.TableUserJobs,
	Columns: []string{"user_id", "job_id", "legacy_id"},
	Values: func(l target.UserJob) []any {
		return []any{l.UserID, l.JobID, l.LegacyID}
	},
}

var scheduleTrackMapping = Mapping[target.ScheduleTrack]{
	Table:   target.TableScheduleTracks,
	Columns: withAudit("job_type_id", "date", "description", "legacy_id"),
	Values: func(t target.ScheduleTrack) []any {
		return auditValues(t.Audit, int32(t.JobTypeID), t.Date, t.Description, t.LegacyID)
	},
}

var scheduleUserMapping = Mapping[target.ScheduleUser]{
	Table:   target.TableScheduleUsers,
	Columns: []string{"schedule_track_id", "user_id"},
	Values: func(u target.ScheduleUser) []any {
		return []any{u.ScheduleTrackID, u.UserID}
	},
}

var scheduleMapping = Mapping[target.Schedule]{
	Table: target.TableSchedules,
	Columns: withAudit("schedule_track_id", "job_id", "schedule_colour_id", "start_time", "end_time",
		"description", "legacy_id"),
	Values: func(s target.Schedule) []any {
		return auditValues(s.Audit, s.ScheduleTrackID, s.JobID, s.ScheduleColourID, s.Start, s.End,
			s.Description, s.LegacyID)
	},
}
