package migrate

import (
	"context"
	"fmt"

	"github.com/jobtrack/migrator/internal/domain/legacy"
	"github.com/jobtrack/migrator/internal/domain/target"
)

// stageTables pairs each legacy kind with the destination table its
// idempotency check counts.
var stageTables = []struct {
	Stage string
	Kind  legacy.Kind
	Table target.Table
}{
	{StageUsers, legacy.KindUsers, target.TableUsers},
	{StageContacts, legacy.KindContacts, target.TableContacts},
	{StageCouncils, legacy.KindCouncils, target.TableCouncils},
	{StageJobs, legacy.KindJobs, target.TableJobs},
	{StageJobNotes, legacy.KindNotes, target.TableJobNotes},
	{StageUserJobs, legacy.KindUserJobs, target.TableUserJobs},
	{StageScheduleTracks, legacy.KindScheduleTracks, target.TableScheduleTracks},
	{StageSchedules, legacy.KindSchedules, target.TableSchedules},
}

// StageCount is the idempotency view of one stage.
type StageCount struct {
	Stage       string
	Kind        legacy.Kind
	Table       target.Table
	Source      int64
	Destination int64
}

// Migrated reports whether a run would skip the stage.
func (c StageCount) Migrated() bool {
	return c.Source == c.Destination
}

// Counts returns source and destination counts for every stage without
// writing anything.
func (s *Service) Counts(ctx context.Context) ([]StageCount, error) {
	out := make([]StageCount, 0, len(stageTables))
	for _, st := range stageTables {
		src, err := s.source.Count(ctx, st.Kind)
		if err != nil {
			return nil, fmt.Errorf("failed to count legacy %s: %w", st.Kind, err)
		}
		dst, err := s.dest.Count(ctx, st.Table)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", st.Table, err)
		}
		out = append(out, StageCount{Stage: st.Stage, Kind: st.Kind, Table: st.Table, Source: src, Destination: dst})
	}
	return out, nil
}
