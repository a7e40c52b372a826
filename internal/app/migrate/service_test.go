package migrate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jobtrack/migrator/internal/domain/legacy"
	"github.com/jobtrack/migrator/internal/domain/progress"
	"github.com/jobtrack/migrator/internal/domain/target"
)

func contactByLegacy(t *testing.T, m *memStore, id legacy.ID) target.Contact {
	t.Helper()
	for _, c := range m.contacts {
		if c.LegacyID != nil && legacy.FromSigned(*c.LegacyID) == id {
			return c
		}
	}
	t.Fatalf("contact %d not migrated", id)
	return target.Contact{}
}

func jobByLegacy(t *testing.T, m *memStore, id legacy.ID) target.Job {
	t.Helper()
	for _, j := range m.jobs {
		if j.LegacyID != nil && legacy.FromSigned(*j.LegacyID) == id {
			return j
		}
	}
	t.Fatalf("job %d not migrated", id)
	return target.Job{}
}

func addressOf(t *testing.T, m *memStore, id int64) target.Address {
	t.Helper()
	for _, a := range m.addresses {
		if a.ID == id {
			return a
		}
	}
	t.Fatalf("address %d not found", id)
	return target.Address{}
}

func TestRun_FullPipeline(t *testing.T) {
	dst := newMemStore()
	svc, _ := newTestService(sampleSource(), dst)

	summary, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	counts := map[string]int{
		"users":            len(dst.users),
		"contacts":         len(dst.contacts),
		"councils":         len(dst.councils),
		"council_contacts": len(dst.councilContacts),
		"jobs":             len(dst.jobs),
		"job_notes":        len(dst.notes),
		"user_jobs":        len(dst.userJobs),
		"schedule_tracks":  len(dst.tracks),
		"schedule_users":   len(dst.scheduleUsers),
		"schedules":        len(dst.schedules),
		"addresses":        len(dst.addresses),
	}
	want := map[string]int{
		"users":            2,
		"contacts":         3,
		"councils":         2,
		"council_contacts": 1,
		"jobs":             3,
		"job_notes":        2,
		"user_jobs":        1,
		"schedule_tracks":  2,
		"schedule_users":   2,
		"schedules":        2,
		"addresses":        8,
	}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Errorf("row counts mismatch (-want +got):\n%s", diff)
	}

	var stages []string
	for _, s := range summary.Stages {
		stages = append(stages, s.Stage)
	}
	wantStages := []string{
		StageUsers, StageContacts, StageCouncils, StageJobs,
		StageJobNotes, StageUserJobs, StageScheduleTracks, StageSchedules,
	}
	if diff := cmp.Diff(wantStages, stages); diff != "" {
		t.Errorf("stage order mismatch (-want +got):\n%s", diff)
	}

	wantDups := []DuplicateGroup{{Field: NumberSetout, Number: 4021, JobIDs: []legacy.ID{101, 103}}}
	if diff := cmp.Diff(wantDups, summary.Duplicates); diff != "" {
		t.Errorf("duplicates mismatch (-want +got):\n%s", diff)
	}
}

// Running the pipeline again must not add rows anywhere.
func TestRun_Idempotent(t *testing.T) {
	src := sampleSource()
	dst := newMemStore()
	svc, _ := newTestService(src, dst)

	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	before := snapshot(dst)

	summary, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if diff := cmp.Diff(before, snapshot(dst)); diff != "" {
		t.Errorf("second run changed row counts (-before +after):\n%s", diff)
	}

	for _, s := range summary.Stages {
		if s.Inserted != 0 {
			t.Errorf("stage %s inserted %d rows on re-run", s.Stage, s.Inserted)
		}
	}
	for _, name := range []string{StageUsers, StageContacts, StageCouncils, StageJobs, StageJobNotes, StageScheduleTracks} {
		if !stageResult(summary, name).Skipped {
			t.Errorf("stage %s should be skipped on re-run", name)
		}
	}
}

func snapshot(m *memStore) map[target.Table]int64 {
	out := make(map[target.Table]int64)
	for _, table := range []target.Table{
		target.TableUsers, target.TableAddresses, target.TableContacts, target.TableCouncils,
		target.TableCouncilContacts, target.TableJobColours, target.TableJobs, target.TableJobNotes,
		target.TableUserJobs, target.TableScheduleTracks, target.TableScheduleUsers,
		target.TableScheduleColours, target.TableSchedules,
	} {
		n, _ := m.Count(context.Background(), table)
		out[table] = n
	}
	return out
}

func stageResult(s *Summary, name string) StageResult {
	for _, r := range s.Stages {
		if r.Stage == name {
			return r
		}
	}
	return StageResult{}
}

func TestRun_ReferencesResolveToTargetIDs(t *testing.T) {
	dst := newMemStore()
	svc, _ := newTestService(sampleSource(), dst)
	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	council4 := dst.councils[0]
	if legacy.FromSigned(*council4.LegacyID) != 4 {
		t.Fatalf("unexpected council order: %+v", dst.councils)
	}

	j102 := jobByLegacy(t, dst, 102)
	if j102.CouncilID == nil || *j102.CouncilID != council4.ID {
		t.Errorf("job 102 council = %v, want %d", j102.CouncilID, council4.ID)
	}
	if j102.ContactID != contactByLegacy(t, dst, 7).ID {
		t.Errorf("job 102 contact = %d, want target id of contact 7", j102.ContactID)
	}

	j103 := jobByLegacy(t, dst, 103)
	if j103.CouncilID != nil {
		t.Errorf("job 103 council = %d, want nil for sentinel 0", *j103.CouncilID)
	}

	for _, n := range dst.notes {
		if n.JobID <= 0 {
			t.Errorf("note %v has unresolved job", n.LegacyID)
		}
	}

	link := dst.councilContacts[0]
	if link.CouncilID != council4.ID || link.ContactID != contactByLegacy(t, dst, 55).ID {
		t.Errorf("council contact = %+v", link)
	}
}

func TestRun_CreatorFallback(t *testing.T) {
	dst := newMemStore()
	svc, _ := newTestService(sampleSource(), dst)
	summary, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	first := dst.users[0].ID
	for _, id := range []legacy.ID{102, 103} {
		if got := jobByLegacy(t, dst, id).CreatedByUserID; got != first {
			t.Errorf("job %d creator = %d, want fallback %d", id, got, first)
		}
	}
	if got := jobByLegacy(t, dst, 101).CreatedByUserID; got != dst.users[0].ID {
		t.Errorf("job 101 creator = %d, want user 1", got)
	}
	if got := stageResult(summary, StageJobs).Defaulted; got != 2 {
		t.Errorf("jobs defaulted = %d, want 2", got)
	}
}

func TestRun_ContactParents(t *testing.T) {
	dst := newMemStore()
	svc, _ := newTestService(sampleSource(), dst)
	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	root := contactByLegacy(t, dst, 7)
	if root.ParentContactID != nil {
		t.Errorf("contact 7 parent = %d, want nil", *root.ParentContactID)
	}
	child := contactByLegacy(t, dst, 8)
	if child.ParentContactID == nil || *child.ParentContactID != root.ID {
		t.Errorf("contact 8 parent = %v, want %d", child.ParentContactID, root.ID)
	}
	if child.Phone != "0400 000 000" {
		t.Errorf("contact 8 phone = %q, want mobile fallback", child.Phone)
	}
}

func TestRun_Addresses(t *testing.T) {
	dst := newMemStore()
	svc, _ := newTestService(sampleSource(), dst)
	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	tests := []struct {
		contact  legacy.ID
		suburb   string
		postcode string
		state    int32
	}{
		{7, "CARLTON", "3053", 3},
		{8, "SYDNEY", DefaultPostcode, 1},
		{55, "", DefaultPostcode, target.DefaultStateID},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.contact), func(t *testing.T) {
			a := addressOf(t, dst, contactByLegacy(t, dst, tt.contact).AddressID)
			if a.Suburb != tt.suburb || a.Postcode != tt.postcode || a.StateID != tt.state {
				t.Errorf("address = %+v, want suburb %q postcode %q state %d", a, tt.suburb, tt.postcode, tt.state)
			}
			if a.Country != Country {
				t.Errorf("country = %q", a.Country)
			}
		})
	}
}

func TestRun_JobWithoutContactAborts(t *testing.T) {
	src := sampleSource()
	src.jobs = append(src.jobs, legacy.Job{ID: 104, ContactID: lid(999)})
	dst := newMemStore()
	svc, _ := newTestService(src, dst)

	summary, err := svc.Run(context.Background())
	if !errors.Is(err, ErrUnresolvedReference) {
		t.Fatalf("Run() error = %v, want ErrUnresolvedReference", err)
	}
	var refErr *ReferenceError
	if !errors.As(err, &refErr) || refErr.LegacyID != 104 || refErr.Reference != "contact" {
		t.Errorf("error = %v, want reference error for job 104 contact", err)
	}
	if !strings.HasPrefix(err.Error(), StageJobs+" stage") {
		t.Errorf("error %q should name the stage", err)
	}
	if len(dst.jobs) != 0 {
		t.Errorf("%d jobs committed, want none", len(dst.jobs))
	}
	if got := summary.Stages[len(summary.Stages)-1].Stage; got != StageJobs {
		t.Errorf("last recorded stage = %s, want %s", got, StageJobs)
	}
}

func TestRun_JobWithDanglingCouncilAborts(t *testing.T) {
	src := sampleSource()
	src.jobs = append(src.jobs, legacy.Job{ID: 105, ContactID: lid(7), CouncilID: lid(42)})
	dst := newMemStore()
	svc, _ := newTestService(src, dst)

	_, err := svc.Run(context.Background())
	var refErr *ReferenceError
	if !errors.As(err, &refErr) || refErr.Reference != "council" {
		t.Fatalf("Run() error = %v, want council reference error", err)
	}
}

func TestRun_DanglingParentFailsBeforeWriting(t *testing.T) {
	src := sampleSource()
	src.contacts = append(src.contacts, legacy.Contact{ID: 9, ParentID: 77})
	dst := newMemStore()
	svc, _ := newTestService(src, dst)

	_, err := svc.Run(context.Background())
	if !errors.Is(err, ErrUnresolvedReference) {
		t.Fatalf("Run() error = %v, want ErrUnresolvedReference", err)
	}
	if len(dst.contacts) != 0 || len(dst.addresses) != 0 {
		t.Errorf("contacts stage wrote %d contacts and %d addresses before failing", len(dst.contacts), len(dst.addresses))
	}
}

func TestRun_NoteWithoutJobAborts(t *testing.T) {
	src := sampleSource()
	src.notes = append(src.notes, legacy.Note{ID: 3, JobID: lid(404)})
	dst := newMemStore()
	svc, _ := newTestService(src, dst)

	_, err := svc.Run(context.Background())
	var refErr *ReferenceError
	if !errors.As(err, &refErr) || refErr.Stage != StageJobNotes {
		t.Fatalf("Run() error = %v, want job notes reference error", err)
	}
	if len(dst.notes) != 0 {
		t.Errorf("%d notes committed, want none", len(dst.notes))
	}
}

func TestRun_NoFallbackUser(t *testing.T) {
	src := sampleSource()
	src.users = nil
	dst := newMemStore()
	svc, _ := newTestService(src, dst)

	_, err := svc.Run(context.Background())
	if !errors.Is(err, ErrNoFallbackUser) {
		t.Fatalf("Run() error = %v, want ErrNoFallbackUser", err)
	}
}

func TestRun_InsertFailureStopsRun(t *testing.T) {
	dst := newMemStore()
	dst.failOn[target.TableCouncils] = errors.New("disk full")
	svc, _ := newTestService(sampleSource(), dst)

	summary, err := svc.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("Run() error = %v, want insert failure", err)
	}
	if len(summary.Stages) != 3 {
		t.Errorf("recorded %d stages, want 3", len(summary.Stages))
	}
	if len(dst.jobs) != 0 {
		t.Error("jobs stage ran after councils failed")
	}
}

func TestRun_Schedules(t *testing.T) {
	dst := newMemStore()
	svc, logs := newTestService(sampleSource(), dst)
	summary, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	byLegacy := make(map[legacy.ID]target.Schedule)
	for _, s := range dst.schedules {
		byLegacy[legacy.FromSigned(*s.LegacyID)] = s
	}
	if _, ok := byLegacy[23]; ok {
		t.Error("schedule on a deleted track should be skipped")
	}
	if s := byLegacy[21]; s.JobID == nil || *s.JobID != jobByLegacy(t, dst, 101).ID {
		t.Errorf("schedule 21 job = %v", s.JobID)
	}
	if s := byLegacy[22]; s.JobID != nil {
		t.Errorf("schedule 22 job = %d, want nil for unmigrated job", *s.JobID)
	}
	if s := byLegacy[22]; s.Colour != FallbackColour {
		t.Errorf("schedule 22 colour = %q, want fallback", s.Colour)
	}
	if got := stageResult(summary, StageSchedules).Excluded; got != 1 {
		t.Errorf("schedules excluded = %d, want 1", got)
	}
	if !strings.Contains(logs.String(), "schedule job not migrated") {
		t.Error("missing warning for unmigrated schedule job")
	}

	var surveying int
	for _, tr := range dst.tracks {
		if tr.JobTypeID == target.JobTypeSurveying {
			surveying++
		}
	}
	if surveying != 1 {
		t.Errorf("surveying tracks = %d, want 1", surveying)
	}
	if got := stageResult(summary, StageScheduleTracks).Excluded; got != 1 {
		t.Errorf("unresolved assignees = %d, want 1", got)
	}
}

func TestRun_TimesAreUTC(t *testing.T) {
	dst := newMemStore()
	svc, _ := newTestService(sampleSource(), dst)
	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	created := dst.users[0].CreatedAt
	if created == nil {
		t.Fatal("user 1 created_at not carried over")
	}
	if created.Location().String() != "UTC" || !created.Equal(testTime) {
		t.Errorf("created_at = %v, want %v in UTC", created, testTime.UTC())
	}
	if loc := dst.schedules[0].Start.Location().String(); loc != "UTC" {
		t.Errorf("schedule start location = %s", loc)
	}
}

// Scenario: destination already holds every active user.
func TestRun_TrackDateKeepsCalendarDay(t *testing.T) {
	src := sampleSource()
	aedt := time.FixedZone("AEDT", 11*60*60)
	src.tracks = []legacy.ScheduleTrack{
		{ID: 11, ScheduleGroupID: 1, Date: time.Date(2024, 3, 5, 0, 0, 0, 0, aedt)},
	}
	src.schedules = nil
	dst := newMemStore()
	svc, _ := newTestService(src, dst)
	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(dst.tracks) != 1 {
		t.Fatalf("migrated %d tracks, want 1", len(dst.tracks))
	}
	got := dst.tracks[0].Date
	want := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) || got.Location() != time.UTC {
		t.Errorf("track date = %v, want %v", got, want)
	}
}

func TestRun_ContactParentFailureRollsBackStage(t *testing.T) {
	dst := newMemStore()
	dst.failParents = errors.New("connection reset")
	svc, _ := newTestService(sampleSource(), dst)

	if _, err := svc.Run(context.Background()); err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("Run() error = %v, want parent update failure", err)
	}
	if len(dst.contacts) != 0 || len(dst.addresses) != 0 {
		t.Fatalf("contacts = %d, addresses = %d after failed stage, want 0", len(dst.contacts), len(dst.addresses))
	}

	dst.failParents = nil
	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	root := contactByLegacy(t, dst, 7)
	child := contactByLegacy(t, dst, 8)
	if child.ParentContactID == nil || *child.ParentContactID != root.ID {
		t.Errorf("contact 8 parent = %v, want %d after resume", child.ParentContactID, root.ID)
	}
}

func TestRun_ScheduleUserFailureRollsBackTracks(t *testing.T) {
	dst := newMemStore()
	dst.failOn[target.TableScheduleUsers] = errors.New("deadlock detected")
	svc, _ := newTestService(sampleSource(), dst)

	summary, err := svc.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "deadlock detected") {
		t.Fatalf("Run() error = %v, want schedule users failure", err)
	}
	if len(dst.tracks) != 0 {
		t.Errorf("tracks = %d after failed stage, want 0", len(dst.tracks))
	}
	if got := stageResult(summary, StageScheduleTracks).Inserted; got != 0 {
		t.Errorf("rolled back stage reports %d inserted", got)
	}

	delete(dst.failOn, target.TableScheduleUsers)
	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if len(dst.tracks) != 2 || len(dst.scheduleUsers) != 2 {
		t.Errorf("tracks = %d, schedule users = %d after resume, want 2 and 2", len(dst.tracks), len(dst.scheduleUsers))
	}
}

func TestMigrateUsers_AlreadyMigrated(t *testing.T) {
	src := &fakeSource{}
	dst := newMemStore()
	for i := 1; i <= 50; i++ {
		src.users = append(src.users, legacy.User{ID: legacy.ID(i), Active: true})
		dst.users = append(dst.users, target.User{ID: int64(i + 1000), LegacyID: signed(legacy.ID(i))})
	}
	svc, _ := newTestService(src, dst)

	table, res, err := svc.migrateUsers(context.Background())
	if err != nil {
		t.Fatalf("migrateUsers() error = %v", err)
	}
	if !res.Skipped || res.Inserted != 0 {
		t.Errorf("result = %+v, want skipped with no inserts", res)
	}
	if len(dst.users) != 50 {
		t.Errorf("users = %d, want 50", len(dst.users))
	}
	if table.Len() != 50 {
		t.Errorf("table.Len() = %d, want 50", table.Len())
	}
	u, ok := table.Lookup(17)
	if !ok || u.ID != 1017 {
		t.Errorf("Lookup(17) = %+v, %v; want target id 1017", u, ok)
	}
}

func TestMigrateUsers_ResumesPartialWrite(t *testing.T) {
	src := sampleSource()
	dst := newMemStore()
	dst.users = append(dst.users, target.User{ID: 1, LegacyID: signed(1)})
	dst.next[target.TableUsers] = 1
	svc, _ := newTestService(src, dst)

	_, res, err := svc.migrateUsers(context.Background())
	if err != nil {
		t.Fatalf("migrateUsers() error = %v", err)
	}
	if res.Inserted != 1 {
		t.Errorf("inserted = %d, want only the missing user", res.Inserted)
	}
}

func TestTransformUser(t *testing.T) {
	svc, _ := newTestService(&fakeSource{}, newMemStore())
	u := svc.transformUser(legacy.User{ID: 42, Username: "jdoe", FirstName: " Jane ", LastName: "Doe"})

	if u.Email != "user-42@example.test" {
		t.Errorf("Email = %q", u.Email)
	}
	if u.DisplayName != "Jane Doe" {
		t.Errorf("DisplayName = %q", u.DisplayName)
	}
	if u.IdentityID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("IdentityID not generated")
	}
	if u.LegacyID == nil || *u.LegacyID != 42 {
		t.Errorf("LegacyID = %v", u.LegacyID)
	}

	if got := displayName(legacy.User{Username: "jdoe"}); got != "jdoe" {
		t.Errorf("displayName() = %q, want username fallback", got)
	}
}

func TestRun_ProgressEvents(t *testing.T) {
	var events []progress.Event
	log, _ := bufferLogger()
	svc := NewService(sampleSource(), newMemStore(), Options{
		Logger:        log,
		ProgressEvery: 1,
		Observer:      progress.ObserverFunc(func(e progress.Event) { events = append(events, e) }),
	})
	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	last := make(map[string]progress.Event)
	for _, e := range events {
		if prev, ok := last[e.Stage]; ok && e.Total == prev.Total && e.Index < prev.Index {
			t.Errorf("%s went backwards: %d after %d", e.Stage, e.Index, prev.Index)
		}
		last[e.Stage] = e
	}
	if len(last) != 8 {
		t.Errorf("events from %d stages, want 8", len(last))
	}
	for stage, e := range last {
		if e.Index != e.Total {
			t.Errorf("%s final event %d/%d, want complete", stage, e.Index, e.Total)
		}
	}
}

func TestCounts(t *testing.T) {
	dst := newMemStore()
	svc, _ := newTestService(sampleSource(), dst)
	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	counts, err := svc.Counts(context.Background())
	if err != nil {
		t.Fatalf("Counts() error = %v", err)
	}
	if len(counts) != 8 {
		t.Fatalf("Counts() returned %d stages", len(counts))
	}
	for _, c := range counts {
		switch c.Stage {
		case StageUserJobs, StageSchedules:
			if c.Migrated() {
				t.Errorf("%s should not match: %d vs %d", c.Stage, c.Source, c.Destination)
			}
		default:
			if !c.Migrated() {
				t.Errorf("%s should match: %d vs %d", c.Stage, c.Source, c.Destination)
			}
		}
	}
}
