package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/jobtrack/migrator/internal/domain/legacy"
	"github.com/jobtrack/migrator/internal/domain/target"
	"github.com/jobtrack/migrator/internal/domain/translate"
)

// contactDraft is a contact staged for insert. The parent is kept as a
// legacy ID until every contact has a target ID.
type contactDraft struct {
	row          target.Contact
	legacyID     legacy.ID
	parentLegacy legacy.ID
}

// migrateContacts runs in two phases. Phase one inserts addresses and
// contacts with no parent. Phase two resolves each legacy parent through the
// freshly built contact table and patches the parent column. Both phases
// commit in one transaction.
func (s *Service) migrateContacts(ctx context.Context, addresses *addressBuilder) (*translate.Table[target.Contact], StageResult, error) {
	res := StageResult{Stage: StageContacts}
	rep := s.reporter(StageContacts)
	rep.Start("Checking contacts")

	done, count, err := s.alreadyMigrated(ctx, legacy.KindContacts, target.TableContacts)
	res.SourceCount = count
	if err != nil {
		return nil, res, err
	}

	if done {
		res.Skipped = true
		rep.SetTotal(int(count), "Contacts already migrated")
		table, err := loadContacts(ctx, s.dest)
		if err != nil {
			return nil, res, err
		}
		rep.Complete(fmt.Sprintf("%d contacts available", table.Len()))
		return table, res, nil
	}

	legacyContacts, err := s.source.Contacts(ctx)
	if err != nil {
		return nil, res, fmt.Errorf("failed to read legacy contacts: %w", err)
	}
	present, err := s.existing(ctx, target.TableContacts)
	if err != nil {
		return nil, res, err
	}

	known := make(map[legacy.ID]bool, len(legacyContacts))
	for _, c := range legacyContacts {
		known[c.ID] = true
	}

	rep.SetTotal(len(legacyContacts), fmt.Sprintf("Migrating %d contacts", len(legacyContacts)))
	var (
		drafts []contactDraft
		addrs  []target.Address
	)
	for i, c := range legacyContacts {
		rep.Step(i+1, strings.TrimSpace(c.FirstName+" "+c.LastName))
		if present[c.ID] {
			continue
		}
		if c.ParentID != 0 && !known[c.ParentID] {
			parent := c.ParentID
			return nil, res, &ReferenceError{
				Stage: StageContacts, Entity: "contact", LegacyID: c.ID,
				Reference: "parent contact", RefID: &parent,
			}
		}
		addrs = append(addrs, addresses.Resolve(c.Location, c.ID))
		drafts = append(drafts, contactDraft{
			row:          s.transformContact(c),
			legacyID:     c.ID,
			parentLegacy: c.ParentID,
		})
	}

	var links []target.ParentLink
	err = s.dest.InTx(ctx, func(tx target.Store) error {
		ids, err := tx.InsertAddresses(ctx, addrs)
		if err != nil {
			return fmt.Errorf("failed to insert contact addresses: %w", err)
		}
		if len(ids) != len(drafts) {
			return fmt.Errorf("inserted %d contact addresses, expected %d", len(ids), len(drafts))
		}
		rows := make([]target.Contact, len(drafts))
		for i := range drafts {
			drafts[i].row.AddressID = ids[i]
			rows[i] = drafts[i].row
		}

		res.Inserted, err = tx.InsertContacts(ctx, rows)
		if err != nil {
			return fmt.Errorf("failed to insert contacts: %w", err)
		}

		// Phase two: every contact now has a target ID.
		rep.Message("Resolving parent contacts")
		inserted, err := loadContacts(ctx, tx)
		if err != nil {
			return err
		}
		links, err = parentLinks(drafts, inserted)
		if err != nil {
			return err
		}
		if _, err := tx.UpdateContactParents(ctx, links); err != nil {
			return fmt.Errorf("failed to update parent contacts: %w", err)
		}
		return nil
	})
	if err != nil {
		res.Inserted = 0
		return nil, res, err
	}

	table, err := loadContacts(ctx, s.dest)
	if err != nil {
		return nil, res, err
	}
	rep.Complete(fmt.Sprintf("%d contacts available, %d with parents", table.Len(), len(links)))
	return table, res, nil
}

// parentLinks maps each draft's legacy parent to a target contact ID.
// A zero legacy parent means no parent and produces no link.
func parentLinks(drafts []contactDraft, contacts *translate.Table[target.Contact]) ([]target.ParentLink, error) {
	var links []target.ParentLink
	for _, d := range drafts {
		if d.parentLegacy == 0 {
			continue
		}
		self, ok := contacts.Lookup(d.legacyID)
		if !ok {
			return nil, &ReferenceError{Stage: StageContacts, Entity: "contact", LegacyID: d.legacyID, Reference: "persisted row"}
		}
		parent, ok := contacts.Lookup(d.parentLegacy)
		if !ok {
			ref := d.parentLegacy
			return nil, &ReferenceError{
				Stage: StageContacts, Entity: "contact", LegacyID: d.legacyID,
				Reference: "parent contact", RefID: &ref,
			}
		}
		links = append(links, target.ParentLink{ContactID: self.ID, ParentContactID: parent.ID})
	}
	return links, nil
}

func (s *Service) transformContact(c legacy.Contact) target.Contact {
	phone := strings.TrimSpace(c.Phone)
	if phone == "" {
		phone = strings.TrimSpace(c.Mobile)
	}
	return target.Contact{
		FirstName: truncate(s.log, "contact.first_name", c.ID, strings.TrimSpace(c.FirstName), maxNameLength),
		LastName:  truncate(s.log, "contact.last_name", c.ID, strings.TrimSpace(c.LastName), maxNameLength),
		Company:   truncate(s.log, "contact.company", c.ID, strings.TrimSpace(c.Company), maxCompanyLength),
		Phone:     truncate(s.log, "contact.phone", c.ID, phone, maxPhoneLength),
		Fax:       truncate(s.log, "contact.fax", c.ID, strings.TrimSpace(c.Fax), maxPhoneLength),
		Email:     truncate(s.log, "contact.email", c.ID, strings.TrimSpace(c.Email), maxEmailLength),
		LegacyID:  signed(c.ID),
		Audit:     utcAudit(c.Audit),
	}
}

func loadContacts(ctx context.Context, st target.Store) (*translate.Table[target.Contact], error) {
	persisted, err := st.Contacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load contacts: %w", err)
	}
	return indexByLegacy("contacts", persisted, func(c target.Contact) *int32 { return c.LegacyID })
}
