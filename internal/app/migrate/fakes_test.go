package migrate

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/jobtrack/migrator/internal/domain/legacy"
	"github.com/jobtrack/migrator/internal/domain/target"
)

// fakeSource is an in-memory legacy.Reader. Counts apply the same filters
// as the reads they guard.
type fakeSource struct {
	users     []legacy.User
	contacts  []legacy.Contact
	councils  []legacy.Council
	jobs      []legacy.Job
	notes     []legacy.Note
	tracks    []legacy.ScheduleTrack
	schedules []legacy.Schedule
	userJobs  []legacy.UserJob
}

func (f *fakeSource) Count(_ context.Context, kind legacy.Kind) (int64, error) {
	switch kind {
	case legacy.KindUsers:
		users, _ := f.ActiveUsers(context.Background())
		return int64(len(users)), nil
	case legacy.KindContacts:
		return int64(len(f.contacts)), nil
	case legacy.KindCouncils:
		return int64(len(f.councils)), nil
	case legacy.KindJobs:
		return int64(len(f.jobs)), nil
	case legacy.KindNotes:
		return int64(len(f.notes)), nil
	case legacy.KindScheduleTracks:
		tracks, _ := f.ScheduleTracks(context.Background())
		return int64(len(tracks)), nil
	case legacy.KindSchedules:
		return int64(len(f.schedules)), nil
	case legacy.KindUserJobs:
		return int64(len(f.userJobs)), nil
	}
	return 0, fmt.Errorf("unknown kind %s", kind)
}

func (f *fakeSource) ActiveUsers(context.Context) ([]legacy.User, error) {
	var out []legacy.User
	for _, u := range f.users {
		if u.Active && !u.Deleted {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeSource) Contacts(context.Context) ([]legacy.Contact, error) { return f.contacts, nil }
func (f *fakeSource) Councils(context.Context) ([]legacy.Council, error) { return f.councils, nil }
func (f *fakeSource) Jobs(context.Context) ([]legacy.Job, error)         { return f.jobs, nil }
func (f *fakeSource) Notes(context.Context) ([]legacy.Note, error)       { return f.notes, nil }
func (f *fakeSource) Schedules(context.Context) ([]legacy.Schedule, error) {
	return f.schedules, nil
}
func (f *fakeSource) UserJobs(context.Context) ([]legacy.UserJob, error) { return f.userJobs, nil }

func (f *fakeSource) ScheduleTracks(context.Context) ([]legacy.ScheduleTrack, error) {
	var out []legacy.ScheduleTrack
	for _, t := range f.tracks {
		if !t.Deleted {
			out = append(out, t)
		}
	}
	return out, nil
}

// memStore is an in-memory target.Store with identity-style ID assignment.
type memStore struct {
	next map[target.Table]int64
	// writes counts non-empty bulk writes per table.
	writes map[target.Table]int
	failOn map[target.Table]error
	// failParents makes UpdateContactParents fail.
	failParents error

	states          []target.State
	users           []target.User
	addresses       []target.Address
	contacts        []target.Contact
	councils        []target.Council
	councilContacts []target.CouncilContact
	colours         map[target.Table][]target.Colour
	jobs            []target.Job
	notes           []target.JobNote
	userJobs        []target.UserJob
	tracks          []target.ScheduleTrack
	scheduleUsers   []target.ScheduleUser
	schedules       []target.Schedule
}

func newMemStore() *memStore {
	return &memStore{
		next:    make(map[target.Table]int64),
		writes:  make(map[target.Table]int),
		failOn:  make(map[target.Table]error),
		states:  target.SeedStates(),
		colours: make(map[target.Table][]target.Colour),
	}
}

// InTx restores every table when fn fails. Identity counters are not
// restored, matching PostgreSQL sequences.
func (m *memStore) InTx(_ context.Context, fn func(target.Store) error) error {
	saved := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(saved)
		return err
	}
	return nil
}

func (m *memStore) snapshot() *memStore {
	colours := make(map[target.Table][]target.Colour, len(m.colours))
	for k, v := range m.colours {
		colours[k] = append([]target.Colour(nil), v...)
	}
	return &memStore{
		users:           append([]target.User(nil), m.users...),
		addresses:       append([]target.Address(nil), m.addresses...),
		contacts:        append([]target.Contact(nil), m.contacts...),
		councils:        append([]target.Council(nil), m.councils...),
		councilContacts: append([]target.CouncilContact(nil), m.councilContacts...),
		colours:         colours,
		jobs:            append([]target.Job(nil), m.jobs...),
		notes:           append([]target.JobNote(nil), m.notes...),
		userJobs:        append([]target.UserJob(nil), m.userJobs...),
		tracks:          append([]target.ScheduleTrack(nil), m.tracks...),
		scheduleUsers:   append([]target.ScheduleUser(nil), m.scheduleUsers...),
		schedules:       append([]target.Schedule(nil), m.schedules...),
	}
}

func (m *memStore) restore(s *memStore) {
	m.users, m.addresses, m.contacts = s.users, s.addresses, s.contacts
	m.councils, m.councilContacts, m.colours = s.councils, s.councilContacts, s.colours
	m.jobs, m.notes, m.userJobs = s.jobs, s.notes, s.userJobs
	m.tracks, m.scheduleUsers, m.schedules = s.tracks, s.scheduleUsers, s.schedules
}

func (m *memStore) id(table target.Table) int64 {
	m.next[table]++
	return m.next[table]
}

func (m *memStore) write(table target.Table, n int) error {
	if n == 0 {
		return nil
	}
	if err := m.failOn[table]; err != nil {
		return err
	}
	m.writes[table]++
	return nil
}

func (m *memStore) Count(_ context.Context, table target.Table) (int64, error) {
	switch table {
	case target.TableUsers:
		return int64(len(m.users)), nil
	case target.TableAddresses:
		return int64(len(m.addresses)), nil
	case target.TableContacts:
		return int64(len(m.contacts)), nil
	case target.TableCouncils:
		return int64(len(m.councils)), nil
	case target.TableCouncilContacts:
		return int64(len(m.councilContacts)), nil
	case target.TableJobColours, target.TableScheduleColours:
		return int64(len(m.colours[table])), nil
	case target.TableJobs:
		return int64(len(m.jobs)), nil
	case target.TableJobNotes:
		return int64(len(m.notes)), nil
	case target.TableUserJobs:
		return int64(len(m.userJobs)), nil
	case target.TableScheduleTracks:
		return int64(len(m.tracks)), nil
	case target.TableScheduleUsers:
		return int64(len(m.scheduleUsers)), nil
	case target.TableSchedules:
		return int64(len(m.schedules)), nil
	}
	return 0, fmt.Errorf("unknown table %s", table)
}

func (m *memStore) States(context.Context) ([]target.State, error) { return m.states, nil }

func (m *memStore) LegacyIDs(_ context.Context, table target.Table) ([]int32, error) {
	var ids []*int32
	switch table {
	case target.TableUsers:
		for _, r := range m.users {
			ids = append(ids, r.LegacyID)
		}
	case target.TableContacts:
		for _, r := range m.contacts {
			ids = append(ids, r.LegacyID)
		}
	case target.TableCouncils:
		for _, r := range m.councils {
			ids = append(ids, r.LegacyID)
		}
	case target.TableJobs:
		for _, r := range m.jobs {
			ids = append(ids, r.LegacyID)
		}
	case target.TableJobNotes:
		for _, r := range m.notes {
			ids = append(ids, r.LegacyID)
		}
	case target.TableUserJobs:
		for _, r := range m.userJobs {
			ids = append(ids, r.LegacyID)
		}
	case target.TableScheduleTracks:
		for _, r := range m.tracks {
			ids = append(ids, r.LegacyID)
		}
	case target.TableSchedules:
		for _, r := range m.schedules {
			ids = append(ids, r.LegacyID)
		}
	default:
		return nil, fmt.Errorf("%s has no legacy_id", table)
	}
	var out []int32
	for _, id := range ids {
		if id != nil {
			out = append(out, *id)
		}
	}
	return out, nil
}

func (m *memStore) InsertAddresses(_ context.Context, rows []target.Address) ([]int64, error) {
	if err := m.write(target.TableAddresses, len(rows)); err != nil {
		return nil, err
	}
	var ids []int64
	for _, r := range rows {
		r.ID = m.id(target.TableAddresses)
		m.addresses = append(m.addresses, r)
		ids = append(ids, r.ID)
	}
	return ids, nil
}

func (m *memStore) InsertUsers(_ context.Context, rows []target.User) (int64, error) {
	if err := m.write(target.TableUsers, len(rows)); err != nil {
		return 0, err
	}
	for _, r := range rows {
		r.ID = m.id(target.TableUsers)
		m.users = append(m.users, r)
	}
	return int64(len(rows)), nil
}

func (m *memStore) InsertContacts(_ context.Context, rows []target.Contact) (int64, error) {
	if err := m.write(target.TableContacts, len(rows)); err != nil {
		return 0, err
	}
	for _, r := range rows {
		r.ID = m.id(target.TableContacts)
		m.contacts = append(m.contacts, r)
	}
	return int64(len(rows)), nil
}

func (m *memStore) UpdateContactParents(_ context.Context, links []target.ParentLink) (int64, error) {
	if len(links) > 0 && m.failParents != nil {
		return 0, m.failParents
	}
	var n int64
	for _, l := range links {
		for i := range m.contacts {
			if m.contacts[i].ID == l.ContactID {
				parent := l.ParentContactID
				m.contacts[i].ParentContactID = &parent
				n++
			}
		}
	}
	return n, nil
}

func (m *memStore) InsertCouncils(_ context.Context, rows []target.Council) (int64, error) {
	if err := m.write(target.TableCouncils, len(rows)); err != nil {
		return 0, err
	}
	for _, r := range rows {
		r.ID = m.id(target.TableCouncils)
		m.councils = append(m.councils, r)
	}
	return int64(len(rows)), nil
}

func (m *memStore) InsertCouncilContacts(_ context.Context, rows []target.CouncilContact) (int64, error) {
	if err := m.write(target.TableCouncilContacts, len(rows)); err != nil {
		return 0, err
	}
	for _, r := range rows {
		r.ID = m.id(target.TableCouncilContacts)
		m.councilContacts = append(m.councilContacts, r)
	}
	return int64(len(rows)), nil
}

func (m *memStore) InsertColours(_ context.Context, table target.Table, rows []target.Colour) (int64, error) {
	if err := m.write(table, len(rows)); err != nil {
		return 0, err
	}
	for _, r := range rows {
		r.ID = m.id(table)
		m.colours[table] = append(m.colours[table], r)
	}
	return int64(len(rows)), nil
}

func (m *memStore) InsertJobs(_ context.Context, rows []target.Job) (int64, error) {
	if err := m.write(target.TableJobs, len(rows)); err != nil {
		return 0, err
	}
	for _, r := range rows {
		r.ID = m.id(target.TableJobs)
		m.jobs = append(m.jobs, r)
	}
	return int64(len(rows)), nil
}

func (m *memStore) InsertJobNotes(_ context.Context, rows []target.JobNote) (int64, error) {
	if err := m.write(target.TableJobNotes, len(rows)); err != nil {
		return 0, err
	}
	for _, r := range rows {
		r.ID = m.id(target.TableJobNotes)
		m.notes = append(m.notes, r)
	}
	return int64(len(rows)), nil
}

func (m *memStore) InsertUserJobs(_ context.Context, rows []target.UserJob) (int64, error) {
	if err := m.write(target.TableUserJobs, len(rows)); err != nil {
		return 0, err
	}
	for _, r := range rows {
		r.ID = m.id(target.TableUserJobs)
		m.userJobs = append(m.userJobs, r)
	}
	return int64(len(rows)), nil
}

func (m *memStore) InsertScheduleTracks(_ context.Context, rows []target.ScheduleTrack) (int64, error) {
	if err := m.write(target.TableScheduleTracks, len(rows)); err != nil {
		return 0, err
	}
	for _, r := range rows {
		r.ID = m.id(target.TableScheduleTracks)
		m.tracks = append(m.tracks, r)
	}
	return int64(len(rows)), nil
}

func (m *memStore) InsertScheduleUsers(_ context.Context, rows []target.ScheduleUser) (int64, error) {
	if err := m.write(target.TableScheduleUsers, len(rows)); err != nil {
		return 0, err
	}
	for _, r := range rows {
		r.ID = m.id(target.TableScheduleUsers)
		m.scheduleUsers = append(m.scheduleUsers, r)
	}
	return int64(len(rows)), nil
}

func (m *memStore) InsertSchedules(_ context.Context, rows []target.Schedule) (int64, error) {
	if err := m.write(target.TableSchedules, len(rows)); err != nil {
		return 0, err
	}
	for _, r := range rows {
		r.ID = m.id(target.TableSchedules)
		m.schedules = append(m.schedules, r)
	}
	return int64(len(rows)), nil
}

func (m *memStore) Users(context.Context) ([]target.User, error) {
	return append([]target.User(nil), m.users...), nil
}

func (m *memStore) Contacts(context.Context) ([]target.Contact, error) {
	return append([]target.Contact(nil), m.contacts...), nil
}

func (m *memStore) Councils(context.Context) ([]target.Council, error) {
	return append([]target.Council(nil), m.councils...), nil
}

func (m *memStore) Colours(_ context.Context, table target.Table) ([]target.Colour, error) {
	out := append([]target.Colour(nil), m.colours[table]...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) Jobs(context.Context) ([]target.Job, error) {
	out := make([]target.Job, len(m.jobs))
	for i, j := range m.jobs {
		for _, a := range m.addresses {
			if a.ID == j.AddressID {
				addr := a
				j.Address = &addr
			}
		}
		out[i] = j
	}
	return out, nil
}

func (m *memStore) ScheduleTracks(context.Context) ([]target.ScheduleTrack, error) {
	return append([]target.ScheduleTrack(nil), m.tracks...), nil
}

// fixture helpers

var testTime = time.Date(2021, 6, 1, 10, 30, 0, 0, time.FixedZone("AEST", 10*60*60))

func lid(v uint32) *legacy.ID {
	id := legacy.ID(v)
	return &id
}

func num(v int32) *int32 {
	return &v
}

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func newTestService(src *fakeSource, dst *memStore) (*Service, *bytes.Buffer) {
	log, buf := bufferLogger()
	return NewService(src, dst, Options{
		EmailDomain: "example.test",
		Logger:      log,
		Now:         func() time.Time { return testTime },
	}), buf
}

// sampleSource is a small but complete legacy dataset.
func sampleSource() *fakeSource {
	created := testTime
	return &fakeSource{
		users: []legacy.User{
			{ID: 1, Username: "alice", FirstName: "Alice", LastName: "Able", Active: true, Audit: legacy.Audit{Created: &created}},
			{ID: 2, Username: "bob", FirstName: "Bob", LastName: "Baker", Active: true},
			{ID: 3, Username: "carol", Active: false},
		},
		contacts: []legacy.Contact{
			{ID: 7, ParentID: 0, FirstName: "Jo", LastName: "Citizen", Location: legacy.Location{Street: "1 Main St", Suburb: "carlton", State: "VIC", Postcode: "3053"}},
			{ID: 8, ParentID: 7, FirstName: "Sam", Company: "Acme", Mobile: "0400 000 000", Location: legacy.Location{Suburb: "Sydney", State: "nsw"}},
			{ID: 55, FirstName: "Pat", Location: legacy.Location{State: "XX"}},
		},
		councils: []legacy.Council{
			{ID: 4, Name: "City of Melbourne", ContactID: lid(55)},
			{ID: 5, Name: "Yarra", ContactID: lid(999)},
		},
		jobs: []legacy.Job{
			{ID: 101, ContactID: lid(55), SetoutJobNumber: num(4021), Colour: "#ABCDEF", Audit: legacy.Audit{CreatedBy: lid(1)}},
			{ID: 102, ContactID: lid(7), CouncilID: lid(4), CadastralJobNumber: num(900), Colour: "blue", Audit: legacy.Audit{CreatedBy: lid(3)}},
			{ID: 103, ContactID: lid(8), CouncilID: lid(0), SetoutJobNumber: num(4021)},
		},
		notes: []legacy.Note{
			{ID: 1, JobID: lid(101), Text: "Site visit", Audit: legacy.Audit{CreatedBy: lid(2)}},
			{ID: 2, JobID: lid(102), Text: "Plan lodged"},
		},
		userJobs: []legacy.UserJob{
			{ID: 1, UserID: lid(1), JobID: lid(101)},
			{ID: 2, UserID: lid(3), JobID: lid(102)},
		},
		tracks: []legacy.ScheduleTrack{
			{ID: 11, ScheduleGroupID: 1, Date: testTime, UserID1: int64Ptr(1), UserID2: int64Ptr(3)},
			{ID: 12, ScheduleGroupID: 2, Date: testTime, UserID1: int64Ptr(2)},
			{ID: 13, ScheduleGroupID: 2, Date: testTime, Audit: legacy.Audit{Deleted: true}},
		},
		schedules: []legacy.Schedule{
			{ID: 21, ScheduleTrackID: lid(11), JobID: lid(101), Start: testTime, End: testTime.Add(time.Hour), Colour: "#112233"},
			{ID: 22, ScheduleTrackID: lid(12), JobID: lid(500), Start: testTime, End: testTime.Add(time.Hour)},
			{ID: 23, ScheduleTrackID: lid(13), Start: testTime, End: testTime},
		},
	}
}

func int64Ptr(v int64) *int64 {
	return &v
}
