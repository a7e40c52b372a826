package legacydb

import (
	"fmt"

	"github.com/xwb1989/sqlparser"

	"github.com/jobtrack/migrator/internal/domain/legacy"
)

const auditColumns = "created, created_by, modified, modified_by, deleted, deleted_at"

// selects are the read queries per kind. Count queries are derived from
// them so a count always uses the same filter as the read it guards.
var selects = map[legacy.Kind]string{
	legacy.KindUsers: `SELECT id, username, firstname, lastname, email, active, ` + auditColumns + `
		FROM users WHERE active = 1 AND deleted = 0 ORDER BY id`,
	legacy.KindContacts: `SELECT id, contact_id, firstname, lastname, company, phone, mobile, fax, email,
		address, suburb, state, postcode, ` + auditColumns + `
		FROM contacts ORDER BY id`,
	legacy.KindCouncils: `SELECT id, name, phone, email, contact_id, address, suburb, state, postcode, ` + auditColumns + `
		FROM councils ORDER BY id`,
	legacy.KindJobs: `SELECT id, contact_id, council_id, cadastral_job_number, setout_job_number, description, colour,
		address, suburb, state, postcode, ` + auditColumns + `
		FROM jobs ORDER BY id`,
	legacy.KindNotes: `SELECT id, job_id, note, ` + auditColumns + `
		FROM notes ORDER BY id`,
	legacy.KindScheduleTracks: `SELECT id, schedule_group_id, track_date, user_id_1, user_id_2, description, ` + auditColumns + `
		FROM schedule_tracks WHERE deleted = 0 ORDER BY id`,
	legacy.KindSchedules: `SELECT id, schedule_track_id, job_id, start_time, end_time, description, colour, ` + auditColumns + `
		FROM schedules ORDER BY id`,
	legacy.KindUserJobs: `SELECT id, user_id, job_id, ` + auditColumns + `
		FROM user_jobs ORDER BY id`,
}

// countQuery rewrites a SELECT into SELECT COUNT(*) with the same FROM and
// WHERE clauses, dropping ORDER BY and LIMIT.
func countQuery(query string) (string, error) {
	stmt, err := sqlparser.Parse(query)
	if err != nil {
		return "", fmt.Errorf("failed to parse query: %w", err)
	}
	sel, ok := stmt.(*sqlparser.Select)
	if !ok {
		return "", fmt.Errorf("expected SELECT, got %T", stmt)
	}
	if len(sel.GroupBy) > 0 || sel.Distinct != "" {
		return "", fmt.Errorf("cannot derive count from grouped or distinct query")
	}

	sel.SelectExprs = sqlparser.SelectExprs{
		&sqlparser.AliasedExpr{Expr: &sqlparser.FuncExpr{
			Name:  sqlparser.NewColIdent("count"),
			Exprs: sqlparser.SelectExprs{&sqlparser.StarExpr{}},
		}},
	}
	sel.OrderBy = nil
	sel.Limit = nil
	return sqlparser.String(sel), nil
}

// countQueries derives the count query of every kind.
func countQueries() (map[legacy.Kind]string, error) {
	out := make(map[legacy.Kind]string, len(selects))
	for kind, q := range selects {
		c, err := countQuery(q)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", kind, err)
		}
		out[kind] = c
	}
	return out, nil
}
