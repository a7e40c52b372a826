package migrate

import (
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jobtrack/migrator/internal/domain/legacy"
	"github.com/jobtrack/migrator/internal/domain/target"
	"github.com/jobtrack/migrator/internal/domain/translate"
)

const (
	// DefaultPostcode replaces a missing postcode.
	DefaultPostcode = "3000"
	// Country is fixed: the legacy system only held Australian addresses.
	Country = "Australia"
)

// StateLookup maps state abbreviations to target state IDs. It is built once
// per run from the states table and read by every stage that builds addresses.
type StateLookup struct {
	ids map[string]int32
}

// NewStateLookup indexes the destination's state rows.
func NewStateLookup(states []target.State) *StateLookup {
	ids := make(map[string]int32, len(states))
	for _, s := range states {
		ids[strings.ToUpper(s.Abbreviation)] = s.ID
	}
	return &StateLookup{ids: ids}
}

// Resolve parses abbr against the fixed state enumeration. Missing or
// unrecognized abbreviations default to VIC.
func (l *StateLookup) Resolve(abbr string) translate.Resolution[int32] {
	code, ok := target.ParseState(abbr)
	if ok {
		if id, found := l.ids[code]; found {
			return translate.Resolution[int32]{Value: id, Outcome: translate.Resolved}
		}
	}
	return translate.Resolution[int32]{Value: target.DefaultStateID, Outcome: translate.Defaulted}
}

// addressBuilder turns free-text legacy address fields into target rows.
// Addresses are never deduplicated; each call yields a fresh row.
type addressBuilder struct {
	states *StateLookup
	upper  cases.Caser
	log    *slog.Logger
}

func newAddressBuilder(states *StateLookup, log *slog.Logger) *addressBuilder {
	return &addressBuilder{
		states: states,
		upper:  cases.Upper(language.Und),
		log:    log,
	}
}

// Resolve builds the address for the legacy row id.
func (b *addressBuilder) Resolve(loc legacy.Location, id legacy.ID) target.Address {
	state := b.states.Resolve(loc.State)
	if state.Outcome == translate.Defaulted && strings.TrimSpace(loc.State) != "" {
		b.log.Debug("unrecognized state, using default",
			"legacy_id", uint32(id), "state", loc.State, "state_id", state.Value)
	}

	postcode := strings.TrimSpace(loc.Postcode)
	if postcode == "" {
		postcode = DefaultPostcode
	}

	return target.Address{
		Street:   truncate(b.log, "address.street", id, strings.TrimSpace(loc.Street), maxStreetLength),
		Suburb:   truncate(b.log, "address.suburb", id, b.upper.String(strings.TrimSpace(loc.Suburb)), maxSuburbLength),
		Postcode: truncate(b.log, "address.postcode", id, postcode, maxPostcodeLength),
		StateID:  state.Value,
		Country:  Country,
	}
}
