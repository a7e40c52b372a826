// Package target defines the PostgreSQL destination schema: table names,
// fixed reference data and the row types written by the migration.
package target

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Table names a destination table.
type Table string

const (
	TableStates          Table = "states"
	TableUsers           Table = "users"
	TableAddresses       Table = "addresses"
	TableContacts        Table = "contacts"
	TableCouncils        Table = "councils"
	TableCouncilContacts Table = "council_contacts"
	TableJobColours      Table = "job_colours"
	TableJobs            Table = "jobs"
	TableJobNotes        Table = "job_notes"
	TableUserJobs        Table = "user_jobs"
	TableScheduleTracks  Table = "schedule_tracks"
	TableScheduleUsers   Table = "schedule_users"
	TableScheduleColours Table = "schedule_colours"
	TableSchedules       Table = "schedules"
)

// String returns the table name.
func (t Table) String() string {
	return string(t)
}

// JobType classifies jobs and schedule tracks.
type JobType int32

const (
	JobTypeConstruction JobType = 1
	JobTypeSurveying    JobType = 2
)

// String returns the display name of the job type.
func (j JobType) String() string {
	switch j {
	case JobTypeConstruction:
		return "Construction"
	case JobTypeSurveying:
		return "Surveying"
	default:
		return "Unknown"
	}
}

// Audit is the normalized bookkeeping carried by migrated rows. All times are UTC.
type Audit struct {
	CreatedAt  *time.Time
	ModifiedAt *time.Time
	DeletedAt  *time.Time
}

type State struct {
	ID           int32
	Abbreviation string
	Name         string
}

type User struct {
	ID          int64
	IdentityID  uuid.UUID
	Email       string
	DisplayName string
	FirstName   string
	LastName    string
	LegacyID    *int32
	Audit
}

type Address struct {
	ID       int64
	Street   string
	Suburb   string
	Postcode string
	StateID  int32
	Country  string
}

type Contact struct {
	ID              int64
	AddressID       int64
	ParentContactID *int64
	FirstName       string
	LastName        string
	Company         string
	Phone           string
	Fax             string
	Email           string
	LegacyID        *int32
	Audit
}

// ParentLink is the deferred patch applied to a contact once every contact
// has a target ID.
type ParentLink struct {
	ContactID       int64
	ParentContactID int64
}

type Council struct {
	ID        int64
	AddressID int64
	Name      string
	Phone     string
	Email     string
	LegacyID  *int32
	Audit
}

type CouncilContact struct {
	ID        int64
	CouncilID int64
	ContactID int64
}

// Colour is a palette row in job_colours or schedule_colours.
type Colour struct {
	ID     int64
	Colour string
}

type Job struct {
	ID              int64
	JobNumber       *int32
	JobTypeID       JobType
	AddressID       int64
	Address         *Address
	ContactID       int64
	CouncilID       *int64
	JobColourID     int64
	JobColour       string
	CreatedByUserID int64
	Description     string
	LegacyID        *int32
	Audit
}

type JobNote struct {
	ID              int64
	JobID           int64
	Note            string
	CreatedByUserID int64
	LegacyID        *int32
	Audit
}

type UserJob struct {
	ID       int64
	UserID   int64
	JobID    int64
	LegacyID *int32
}

type ScheduleTrack struct {
	ID          int64
	JobTypeID   JobType
	Date        time.Time
	Description string
	LegacyID    *int32
	Audit
}

type ScheduleUser struct {
	ID              int64
	ScheduleTrackID int64
	UserID          int64
}

type Schedule struct {
	ID               int64
	ScheduleTrackID  int64
	JobID            *int64
	ScheduleColourID int64
	Colour           string
	Start            time.Time
	End              time.Time
	Description      string
	LegacyID         *int32
	Audit
}

// Store is the destination database as seen by the migration stages.
//
// Insert methods perform one bulk write each and return the number of rows
// written. An empty slice is a no-op that returns 0. Load methods read back
// persisted rows so translation tables can be (re)built from the store.
type Store interface {
	// InTx runs fn against a Store bound to one transaction. The writes fn
	// makes commit together when it returns nil and are rolled back otherwise.
	InTx(ctx context.Context, fn func(Store) error) error

	Count(ctx context.Context, table Table) (int64, error)
	States(ctx context.Context) ([]State, error)
	// LegacyIDs returns the non-null legacy_id values already stored in table.
	LegacyIDs(ctx context.Context, table Table) ([]int32, error)

	// InsertAddresses returns the generated IDs in input order.
	InsertAddresses(ctx context.Context, rows []Address) ([]int64, error)

	InsertUsers(ctx context.Context, rows []User) (int64, error)
	InsertContacts(ctx context.Context, rows []Contact) (int64, error)
	UpdateContactParents(ctx context.Context, links []ParentLink) (int64, error)
	InsertCouncils(ctx context.Context, rows []Council) (int64, error)
	InsertCouncilContacts(ctx context.Context, rows []CouncilContact) (int64, error)
	InsertColours(ctx context.Context, table Table, rows []Colour) (int64, error)
	InsertJobs(ctx context.Context, rows []Job) (int64, error)
	InsertJobNotes(ctx context.Context, rows []JobNote) (int64, error)
	InsertUserJobs(ctx context.Context, rows []UserJob) (int64, error)
	InsertScheduleTracks(ctx context.Context, rows []ScheduleTrack) (int64, error)
	InsertScheduleUsers(ctx context.Context, rows []ScheduleUser) (int64, error)
	InsertSchedules(ctx context.Context, rows []Schedule) (int64, error)

	Users(ctx context.Context) ([]User, error)
	Contacts(ctx context.Context) ([]Contact, error)
	Councils(ctx context.Context) ([]Council, error)
	Colours(ctx context.Context, table Table) ([]Colour, error)
	Jobs(ctx context.Context) ([]Job, error)
	ScheduleTracks(ctx context.Context) ([]ScheduleTrack, error)
}
