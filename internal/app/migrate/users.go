package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jobtrack/migrator/internal/domain/legacy"
	"github.com/jobtrack/migrator/internal/domain/target"
	"github.com/jobtrack/migrator/internal/domain/translate"
)

func (s *Service) migrateUsers(ctx context.Context) (*translate.Table[target.User], StageResult, error) {
	res := StageResult{Stage: StageUsers}
	rep := s.reporter(StageUsers)
	rep.Start("Checking users")

	done, count, err := s.alreadyMigrated(ctx, legacy.KindUsers, target.TableUsers)
	res.SourceCount = count
	if err != nil {
		return nil, res, err
	}

	if !done {
		legacyUsers, err := s.source.ActiveUsers(ctx)
		if err != nil {
			return nil, res, fmt.Errorf("failed to read legacy users: %w", err)
		}
		present, err := s.existing(ctx, target.TableUsers)
		if err != nil {
			return nil, res, err
		}

		rep.SetTotal(len(legacyUsers), fmt.Sprintf("Migrating %d users", len(legacyUsers)))
		rows := make([]target.User, 0, len(legacyUsers))
		for i, u := range legacyUsers {
			rep.Step(i+1, displayName(u))
			if present[u.ID] {
				continue
			}
			rows = append(rows, s.transformUser(u))
		}

		res.Inserted, err = s.dest.InsertUsers(ctx, rows)
		if err != nil {
			return nil, res, fmt.Errorf("failed to insert users: %w", err)
		}
	} else {
		res.Skipped = true
		rep.SetTotal(int(count), "Users already migrated")
	}

	persisted, err := s.dest.Users(ctx)
	if err != nil {
		return nil, res, fmt.Errorf("failed to load users: %w", err)
	}
	table, err := indexByLegacy("users", persisted, func(u target.User) *int32 { return u.LegacyID })
	if err != nil {
		return nil, res, err
	}

	rep.Complete(fmt.Sprintf("%d users available", table.Len()))
	return table, res, nil
}

// transformUser builds the target user. The identity reference is freshly
// generated and the email is a unique placeholder, because legacy emails are
// neither unique nor trustworthy.
func (s *Service) transformUser(u legacy.User) target.User {
	return target.User{
		IdentityID:  uuid.New(),
		Email:       fmt.Sprintf("user-%d@%s", uint32(u.ID), s.opts.EmailDomain),
		DisplayName: truncate(s.log, "user.display_name", u.ID, displayName(u), maxNameLength*2),
		FirstName:   truncate(s.log, "user.first_name", u.ID, strings.TrimSpace(u.FirstName), maxNameLength),
		LastName:    truncate(s.log, "user.last_name", u.ID, strings.TrimSpace(u.LastName), maxNameLength),
		LegacyID:    signed(u.ID),
		Audit:       utcAudit(u.Audit),
	}
}

func displayName(u legacy.User) string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name == "" {
		return u.Username
	}
	return name
}

// creatorResolver resolves created-by references, falling back to the first
// known user (lowest target ID) when the legacy creator was not migrated.
type creatorResolver struct {
	users    *translate.Table[target.User]
	fallback *target.User
}

func newCreatorResolver(users *translate.Table[target.User]) *creatorResolver {
	r := &creatorResolver{users: users}
	for _, k := range users.Keys() {
		u, _ := users.Lookup(k)
		if r.fallback == nil || u.ID < r.fallback.ID {
			picked := u
			r.fallback = &picked
		}
	}
	return r
}

func (r *creatorResolver) Resolve(id *legacy.ID) (translate.Resolution[int64], error) {
	var fallback target.User
	if r.fallback != nil {
		fallback = *r.fallback
	}
	res := translate.OrDefault(r.users, id, fallback)
	if res.Outcome == translate.Defaulted && r.fallback == nil {
		return translate.Resolution[int64]{}, ErrNoFallbackUser
	}
	return translate.Resolution[int64]{Value: res.Value.ID, Outcome: res.Outcome}, nil
}
