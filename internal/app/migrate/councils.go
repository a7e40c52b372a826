package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/jobtrack/migrator/internal/domain/legacy"
	"github.com/jobtrack/migrator/internal/domain/target"
	"github.com/jobtrack/migrator/internal/domain/translate"
)

// migrateCouncils is the single-pass variant of the contacts stage. A
// council's optional primary contact becomes a council_contacts row.
//
// The idempotency check compares legacy councils with destination councils.
// Addresses, councils and their contact links commit together, so a run
// interrupted here leaves no councils behind and the stage runs again.
func (s *Service) migrateCouncils(ctx context.Context, addresses *addressBuilder, contacts *translate.Table[target.Contact]) (*translate.Table[target.Council], StageResult, error) {
	res := StageResult{Stage: StageCouncils}
	rep := s.reporter(StageCouncils)
	rep.Start("Checking councils")

	done, count, err := s.alreadyMigrated(ctx, legacy.KindCouncils, target.TableCouncils)
	res.SourceCount = count
	if err != nil {
		return nil, res, err
	}

	if done {
		res.Skipped = true
		rep.SetTotal(int(count), "Councils already migrated")
		table, err := loadCouncils(ctx, s.dest)
		if err != nil {
			return nil, res, err
		}
		rep.Complete(fmt.Sprintf("%d councils available", table.Len()))
		return table, res, nil
	}

	legacyCouncils, err := s.source.Councils(ctx)
	if err != nil {
		return nil, res, fmt.Errorf("failed to read legacy councils: %w", err)
	}
	present, err := s.existing(ctx, target.TableCouncils)
	if err != nil {
		return nil, res, err
	}

	rep.SetTotal(len(legacyCouncils), fmt.Sprintf("Migrating %d councils", len(legacyCouncils)))
	var (
		rows    []target.Council
		addrs   []target.Address
		pending []legacy.Council
	)
	for i, c := range legacyCouncils {
		rep.Step(i+1, c.Name)
		if present[c.ID] {
			continue
		}
		addrs = append(addrs, addresses.Resolve(c.Location, c.ID))
		rows = append(rows, target.Council{
			Name:     truncate(s.log, "council.name", c.ID, strings.TrimSpace(c.Name), maxCompanyLength),
			Phone:    truncate(s.log, "council.phone", c.ID, strings.TrimSpace(c.Phone), maxPhoneLength),
			Email:    truncate(s.log, "council.email", c.ID, strings.TrimSpace(c.Email), maxEmailLength),
			LegacyID: signed(c.ID),
			Audit:    utcAudit(c.Audit),
		})
		pending = append(pending, c)
	}

	err = s.dest.InTx(ctx, func(tx target.Store) error {
		ids, err := tx.InsertAddresses(ctx, addrs)
		if err != nil {
			return fmt.Errorf("failed to insert council addresses: %w", err)
		}
		if len(ids) != len(rows) {
			return fmt.Errorf("inserted %d council addresses, expected %d", len(ids), len(rows))
		}
		for i := range rows {
			rows[i].AddressID = ids[i]
		}

		res.Inserted, err = tx.InsertCouncils(ctx, rows)
		if err != nil {
			return fmt.Errorf("failed to insert councils: %w", err)
		}

		inserted, err := loadCouncils(ctx, tx)
		if err != nil {
			return err
		}

		var links []target.CouncilContact
		for _, c := range pending {
			contact, ok := translate.Optional(contacts, c.ContactID)
			if !ok {
				res.Excluded++
				s.log.Warn("council contact not migrated, link skipped",
					"legacy_id", uint32(c.ID), "contact_id", uint32(*c.ContactID))
				continue
			}
			if contact.Outcome == translate.Absent {
				continue
			}
			council, ok := inserted.Lookup(c.ID)
			if !ok {
				return &ReferenceError{Stage: StageCouncils, Entity: "council", LegacyID: c.ID, Reference: "persisted row"}
			}
			links = append(links, target.CouncilContact{CouncilID: council.ID, ContactID: contact.Value.ID})
		}
		if _, err := tx.InsertCouncilContacts(ctx, links); err != nil {
			return fmt.Errorf("failed to insert council contacts: %w", err)
		}
		return nil
	})
	if err != nil {
		res.Inserted = 0
		return nil, res, err
	}

	table, err := loadCouncils(ctx, s.dest)
	if err != nil {
		return nil, res, err
	}

	rep.Complete(fmt.Sprintf("%d councils available", table.Len()))
	return table, res, nil
}

func loadCouncils(ctx context.Context, st target.Store) (*translate.Table[target.Council], error) {
	persisted, err := st.Councils(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load councils: %w", err)
	}
	return indexByLegacy("councils", persisted, func(c target.Council) *int32 { return c.LegacyID })
}
