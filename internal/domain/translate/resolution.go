package translate

import "github.com/jobtrack/migrator/internal/domain/legacy"

// Outcome describes how a reference was resolved.
type Outcome int

const (
	// Absent means the source had no reference; the target reference is null.
	Absent Outcome = iota
	// Resolved means the reference was found in a translation table.
	Resolved
	// Defaulted means the reference could not be used and a documented
	// fallback value was substituted.
	Defaulted
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case Resolved:
		return "resolved"
	case Defaulted:
		return "defaulted"
	default:
		return "absent"
	}
}

// Resolution is an in-band result for recoverable lookups.
type Resolution[T any] struct {
	Value   T
	Outcome Outcome
}

// Optional resolves a nullable legacy reference. A nil id or the zero
// sentinel is Absent. A non-null id missing from the table is reported with
// ok=false so the caller decides whether that is fatal.
func Optional[T any](t *Table[T], id *legacy.ID) (res Resolution[T], ok bool) {
	if id == nil || *id == 0 {
		return Resolution[T]{Outcome: Absent}, true
	}
	v, found := t.Lookup(*id)
	if !found {
		return Resolution[T]{Outcome: Absent}, false
	}
	return Resolution[T]{Value: v, Outcome: Resolved}, true
}

// OrDefault resolves id and substitutes fallback when it is null or unmapped.
func OrDefault[T any](t *Table[T], id *legacy.ID, fallback T) Resolution[T] {
	if id != nil {
		if v, ok := t.Lookup(*id); ok {
			return Resolution[T]{Value: v, Outcome: Resolved}
		}
	}
	return Resolution[T]{Value: fallback, Outcome: Defaulted}
}
