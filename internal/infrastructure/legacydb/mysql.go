// Package legacydb reads the legacy MySQL schema. It never writes.
package legacydb

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/jobtrack/migrator/internal/config"
	"github.com/jobtrack/migrator/internal/domain/legacy"
)

// Reader implements legacy.Reader over a MySQL connection.
type Reader struct {
	db     *sql.DB
	counts map[legacy.Kind]string
}

var _ legacy.Reader = (*Reader)(nil)

// Open connects to the legacy database and checks the connection.
func Open(ctx context.Context, cfg config.Source) (*Reader, error) {
	mcfg, err := driverConfig(cfg)
	if err != nil {
		return nil, err
	}
	connector, err := mysql.NewConnector(mcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create MySQL connector: %w", err)
	}
	db := sql.OpenDB(connector)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping legacy database: %w", err)
	}

	return NewReader(db)
}

// NewReader wraps an open database handle.
func NewReader(db *sql.DB) (*Reader, error) {
	counts, err := countQueries()
	if err != nil {
		return nil, err
	}
	return &Reader{db: db, counts: counts}, nil
}

// driverConfig builds the driver configuration. DATETIME columns are parsed
// in the configured source timezone so they can be normalized to UTC.
func driverConfig(cfg config.Source) (*mysql.Config, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid source timezone: %w", err)
	}

	mcfg := mysql.NewConfig()
	mcfg.User = cfg.User
	mcfg.Passwd = cfg.Password
	mcfg.Net = "tcp"
	mcfg.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mcfg.DBName = cfg.Database
	mcfg.ParseTime = true
	mcfg.Loc = loc
	mcfg.Timeout = 10 * time.Second
	return mcfg, nil
}

// Ping checks the connection.
func (r *Reader) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the connection.
func (r *Reader) Close() error {
	return r.db.Close()
}

// Count returns the number of rows the read for kind would return.
func (r *Reader) Count(ctx context.Context, kind legacy.Kind) (int64, error) {
	q, ok := r.counts[kind]
	if !ok {
		return 0, fmt.Errorf("unknown legacy kind %q", kind)
	}
	var n int64
	if err := r.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", kind, err)
	}
	return n, nil
}

// query runs the select for kind and scans every row with scan.
func query[T any](ctx context.Context, r *Reader, kind legacy.Kind, scan func(*sql.Rows) (T, error)) ([]T, error) {
	rows, err := r.db.QueryContext(ctx, selects[kind])
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", kind, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", kind, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *Reader) ActiveUsers(ctx context.Context) ([]legacy.User, error) {
	return query(ctx, r, legacy.KindUsers, func(rows *sql.Rows) (legacy.User, error) {
		var (
			u                            legacy.User
			username, first, last, email sql.NullString
			a                            auditScan
		)
		dest := append([]any{&u.ID, &username, &first, &last, &email, &u.Active}, a.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return u, err
		}
		u.Username, u.FirstName, u.LastName, u.Email = username.String, first.String, last.String, email.String
		u.Audit = a.audit()
		return u, nil
	})
}

func (r *Reader) Contacts(ctx context.Context) ([]legacy.Contact, error) {
	return query(ctx, r, legacy.KindContacts, func(rows *sql.Rows) (legacy.Contact, error) {
		var (
			c                                               legacy.Contact
			parent                                          sql.NullInt64
			first, last, company, phone, mobile, fax, email sql.NullString
			loc                                             locationScan
			a                                               auditScan
		)
		dest := []any{&c.ID, &parent, &first, &last, &company, &phone, &mobile, &fax, &email}
		dest = append(dest, loc.dest()...)
		dest = append(dest, a.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return c, err
		}
		c.ParentID = legacy.ID(parent.Int64)
		c.FirstName, c.LastName, c.Company = first.String, last.String, company.String
		c.Phone, c.Mobile, c.Fax, c.Email = phone.String, mobile.String, fax.String, email.String
		c.Location = loc.location()
		c.Audit = a.audit()
		return c, nil
	})
}

func (r *Reader) Councils(ctx context.Context) ([]legacy.Council, error) {
	return query(ctx, r, legacy.KindCouncils, func(rows *sql.Rows) (legacy.Council, error) {
		var (
			c                  legacy.Council
			name, phone, email sql.NullString
			contact            sql.NullInt64
			loc                locationScan
			a                  auditScan
		)
		dest := []any{&c.ID, &name, &phone, &email, &contact}
		dest = append(dest, loc.dest()...)
		dest = append(dest, a.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return c, err
		}
		c.Name, c.Phone, c.Email = name.String, phone.String, email.String
		c.ContactID = idPtr(contact)
		c.Location = loc.location()
		c.Audit = a.audit()
		return c, nil
	})
}

func (r *Reader) Jobs(ctx context.Context) ([]legacy.Job, error) {
	return query(ctx, r, legacy.KindJobs, func(rows *sql.Rows) (legacy.Job, error) {
		var (
			j                   legacy.Job
			contact, council    sql.NullInt64
			cadastral, setout   sql.NullInt32
			description, colour sql.NullString
			loc                 locationScan
			a                   auditScan
		)
		dest := []any{&j.ID, &contact, &council, &cadastral, &setout, &description, &colour}
		dest = append(dest, loc.dest()...)
		dest = append(dest, a.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return j, err
		}
		j.ContactID = idPtr(contact)
		j.CouncilID = idPtr(council)
		j.CadastralJobNumber = int32Ptr(cadastral)
		j.SetoutJobNumber = int32Ptr(setout)
		j.Description, j.Colour = description.String, colour.String
		j.Location = loc.location()
		j.Audit = a.audit()
		return j, nil
	})
}

func (r *Reader) Notes(ctx context.Context) ([]legacy.Note, error) {
	return query(ctx, r, legacy.KindNotes, func(rows *sql.Rows) (legacy.Note, error) {
		var (
			n    legacy.Note
			job  sql.NullInt64
			text sql.NullString
			a    auditScan
		)
		dest := append([]any{&n.ID, &job, &text}, a.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return n, err
		}
		n.JobID = idPtr(job)
		n.Text = text.String
		n.Audit = a.audit()
		return n, nil
	})
}

func (r *Reader) ScheduleTracks(ctx context.Context) ([]legacy.ScheduleTrack, error) {
	return query(ctx, r, legacy.KindScheduleTracks, func(rows *sql.Rows) (legacy.ScheduleTrack, error) {
		var (
			t            legacy.ScheduleTrack
			user1, user2 sql.NullInt64
			description  sql.NullString
			a            auditScan
		)
		dest := append([]any{&t.ID, &t.ScheduleGroupID, &t.Date, &user1, &user2, &description}, a.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return t, err
		}
		t.UserID1 = int64Ptr(user1)
		t.UserID2 = int64Ptr(user2)
		t.Description = description.String
		t.Audit = a.audit()
		return t, nil
	})
}

func (r *Reader) Schedules(ctx context.Context) ([]legacy.Schedule, error) {
	return query(ctx, r, legacy.KindSchedules, func(rows *sql.Rows) (legacy.Schedule, error) {
		var (
			s                   legacy.Schedule
			track, job          sql.NullInt64
			description, colour sql.NullString
			a                   auditScan
		)
		dest := append([]any{&s.ID, &track, &job, &s.Start, &s.End, &description, &colour}, a.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return s, err
		}
		s.ScheduleTrackID = idPtr(track)
		s.JobID = idPtr(job)
		s.Description, s.Colour = description.String, colour.String
		s.Audit = a.audit()
		return s, nil
	})
}

func (r *Reader) UserJobs(ctx context.Context) ([]legacy.UserJob, error) {
	return query(ctx, r, legacy.KindUserJobs, func(rows *sql.Rows) (legacy.UserJob, error) {
		var (
			l         legacy.UserJob
			user, job sql.NullInt64
			a         auditScan
		)
		dest := append([]any{&l.ID, &user, &job}, a.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return l, err
		}
		l.UserID = idPtr(user)
		l.JobID = idPtr(job)
		l.Audit = a.audit()
		return l, nil
	})
}
