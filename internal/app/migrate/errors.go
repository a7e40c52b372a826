package migrate

import (
	"errors"
	"fmt"

	"github.com/jobtrack/migrator/internal/domain/legacy"
)

var (
	// ErrUnresolvedReference is matched by every ReferenceError.
	ErrUnresolvedReference = errors.New("unresolved required reference")
	// ErrInvalidLink is returned when a join row fails validation before its bulk write.
	ErrInvalidLink = errors.New("invalid link")
	// ErrNoFallbackUser is returned when a creator must default but no user was migrated.
	ErrNoFallbackUser = errors.New("no migrated user available as fallback")
	// ErrSchemaFileMissing is returned when a schema reset is requested without a script.
	ErrSchemaFileMissing = errors.New("schema reset script not found")
	// ErrUnreachable wraps connectivity failures during initialization.
	ErrUnreachable = errors.New("database unreachable")
)

// ReferenceError reports a required foreign reference that has no migrated target.
type ReferenceError struct {
	Stage     string
	Entity    string
	LegacyID  legacy.ID
	Reference string
	// RefID is the legacy ID that failed to resolve; nil when the source column was empty.
	RefID *legacy.ID
}

func (e *ReferenceError) Error() string {
	if e.RefID == nil {
		return fmt.Sprintf("%s: %s %d has no %s", e.Stage, e.Entity, e.LegacyID, e.Reference)
	}
	return fmt.Sprintf("%s: %s %d references %s %d which was not migrated",
		e.Stage, e.Entity, e.LegacyID, e.Reference, *e.RefID)
}

// Is reports whether target is ErrUnresolvedReference.
func (e *ReferenceError) Is(target error) bool {
	return target == ErrUnresolvedReference
}

var errMissingFallbackColour = fmt.Errorf("colour palette has no %s row", FallbackColour)
