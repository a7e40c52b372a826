package migrate

import (
	"sort"

	"github.com/jobtrack/migrator/internal/domain/legacy"
)

// Job number fields checked for duplicates.
const (
	NumberCadastral = "cadastral"
	NumberSetout    = "setout"
)

// DuplicateGroup is a job number shared by more than one live legacy job.
// Groups are diagnostic only; nothing is renumbered or rejected.
type DuplicateGroup struct {
	Field  string      `json:"field" yaml:"field"`
	Number int32       `json:"number" yaml:"number"`
	JobIDs []legacy.ID `json:"job_ids" yaml:"job_ids"`
}

// FindDuplicateNumbers groups non-deleted jobs by cadastral and by setout
// number and returns every group with more than one member, ordered by field
// then number.
func FindDuplicateNumbers(jobs []legacy.Job) []DuplicateGroup {
	var live []legacy.Job
	for _, j := range jobs {
		if !j.Deleted {
			live = append(live, j)
		}
	}

	groups := duplicatesBy(live, NumberCadastral, func(j legacy.Job) *int32 { return j.CadastralJobNumber })
	groups = append(groups, duplicatesBy(live, NumberSetout, func(j legacy.Job) *int32 { return j.SetoutJobNumber })...)
	return groups
}

func duplicatesBy(jobs []legacy.Job, field string, number func(legacy.Job) *int32) []DuplicateGroup {
	members := make(map[int32][]legacy.ID)
	for _, j := range jobs {
		if n := number(j); n != nil {
			members[*n] = append(members[*n], j.ID)
		}
	}

	var groups []DuplicateGroup
	for n, ids := range members {
		if len(ids) < 2 {
			continue
		}
		sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
		groups = append(groups, DuplicateGroup{Field: field, Number: n, JobIDs: ids})
	}
	sort.Slice(groups, func(a, b int) bool { return groups[a].Number < groups[b].Number })
	return groups
}
