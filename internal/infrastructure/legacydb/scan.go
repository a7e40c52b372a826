package legacydb

import (
	"database/sql"
	"time"

	"github.com/jobtrack/migrator/internal/domain/legacy"
)

// auditScan receives the trailing audit columns of every select.
type auditScan struct {
	created, modified, deletedAt sql.NullTime
	createdBy, modifiedBy        sql.NullInt64
	deleted                      sql.NullBool
}

func (a *auditScan) dest() []any {
	return []any{&a.created, &a.createdBy, &a.modified, &a.modifiedBy, &a.deleted, &a.deletedAt}
}

func (a *auditScan) audit() legacy.Audit {
	return legacy.Audit{
		Created:    timePtr(a.created),
		CreatedBy:  idPtr(a.createdBy),
		Modified:   timePtr(a.modified),
		ModifiedBy: idPtr(a.modifiedBy),
		Deleted:    a.deleted.Valid && a.deleted.Bool,
		DeletedAt:  timePtr(a.deletedAt),
	}
}

// locationScan receives the free-text address columns.
type locationScan struct {
	street, suburb, state, postcode sql.NullString
}

func (l *locationScan) dest() []any {
	return []any{&l.street, &l.suburb, &l.state, &l.postcode}
}

func (l *locationScan) location() legacy.Location {
	return legacy.Location{
		Street:   l.street.String,
		Suburb:   l.suburb.String,
		State:    l.state.String,
		Postcode: l.postcode.String,
	}
}

func idPtr(v sql.NullInt64) *legacy.ID {
	if !v.Valid {
		return nil
	}
	id := legacy.ID(uint32(v.Int64))
	return &id
}

func int32Ptr(v sql.NullInt32) *int32 {
	if !v.Valid {
		return nil
	}
	n := v.Int32
	return &n
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
