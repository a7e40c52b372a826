// Package legacy defines the read-only row shapes of the legacy MySQL schema.
//
// Rows carry the legacy unsigned integer key plus nullable audit fields.
// Nullable columns are pointers; a nil pointer means SQL NULL.
package legacy

import (
	"context"
	"time"
)

// ID is a legacy primary key. Legacy keys are INT UNSIGNED; the target schema
// stores them in a signed INTEGER column, so values above MaxInt32 wrap.
type ID uint32

// Signed returns the value stored in a target legacy_id column.
func (id ID) Signed() int32 {
	return int32(id)
}

// FromSigned reverses Signed. The round trip is exact for every uint32.
func FromSigned(v int32) ID {
	return ID(uint32(v))
}

// Kind names a legacy entity table.
type Kind string

const (
	KindUsers          Kind = "users"
	KindContacts       Kind = "contacts"
	KindCouncils       Kind = "councils"
	KindJobs           Kind = "jobs"
	KindNotes          Kind = "notes"
	KindScheduleTracks Kind = "schedule_tracks"
	KindSchedules      Kind = "schedules"
	KindUserJobs       Kind = "user_jobs"
)

// Kinds lists every kind in migration order.
func Kinds() []Kind {
	return []Kind{
		KindUsers, KindContacts, KindCouncils, KindJobs,
		KindNotes, KindUserJobs, KindScheduleTracks, KindSchedules,
	}
}

// Audit holds the bookkeeping columns shared by every legacy table.
// Timestamps are already converted to UTC by the reader.
type Audit struct {
	Created    *time.Time
	CreatedBy  *ID
	Modified   *time.Time
	ModifiedBy *ID
	Deleted    bool
	DeletedAt  *time.Time
}

// DeletionTime returns the soft-delete timestamp to carry forward, or nil for
// live rows. A row flagged deleted without a timestamp falls back to Modified.
func (a Audit) DeletionTime() *time.Time {
	if !a.Deleted {
		return nil
	}
	if a.DeletedAt != nil {
		return a.DeletedAt
	}
	return a.Modified
}

// Location is the free-text address block found on contacts, councils and jobs.
type Location struct {
	Street   string
	Suburb   string
	State    string
	Postcode string
}

type User struct {
	ID        ID
	Username  string
	FirstName string
	LastName  string
	Email     string
	Active    bool
	Audit
}

type Contact struct {
	ID ID
	// ParentID is the legacy parent contact. Zero means no parent.
	ParentID  ID
	FirstName string
	LastName  string
	Company   string
	Phone     string
	Mobile    string
	Fax       string
	Email     string
	Location
	Audit
}

type Council struct {
	ID        ID
	Name      string
	Phone     string
	Email     string
	ContactID *ID
	Location
	Audit
}

type Job struct {
	ID                 ID
	ContactID          *ID
	CouncilID          *ID
	CadastralJobNumber *int32
	SetoutJobNumber    *int32
	Description        string
	Colour             string
	Location
	Audit
}

type Note struct {
	ID    ID
	JobID *ID
	Text  string
	Audit
}

type ScheduleTrack struct {
	ID              ID
	ScheduleGroupID ID
	Date            time.Time
	UserID1         *int64
	UserID2         *int64
	Description     string
	Audit
}

type Schedule struct {
	ID              ID
	ScheduleTrackID *ID
	JobID           *ID
	Start           time.Time
	End             time.Time
	Description     string
	Colour          string
	Audit
}

type UserJob struct {
	ID     ID
	UserID *ID
	JobID  *ID
	Audit
}

// Reader is typed read-only access to the legacy tables.
type Reader interface {
	Count(ctx context.Context, kind Kind) (int64, error)
	ActiveUsers(ctx context.Context) ([]User, error)
	Contacts(ctx context.Context) ([]Contact, error)
	Councils(ctx context.Context) ([]Council, error)
	Jobs(ctx context.Context) ([]Job, error)
	Notes(ctx context.Context) ([]Note, error)
	ScheduleTracks(ctx context.Context) ([]ScheduleTrack, error)
	Schedules(ctx context.Context) ([]Schedule, error)
	UserJobs(ctx context.Context) ([]UserJob, error)
}
