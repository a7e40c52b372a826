package target

import "strings"

// DefaultStateID is VIC. Legacy rows with a missing or unknown state land here.
const DefaultStateID int32 = 3

// StateAbbreviations is the fixed state enumeration, in seed order.
// The position plus one is the seeded states.id.
var StateAbbreviations = []string{"NSW", "QLD", "VIC", "SA", "TAS", "WA", "NT"}

// ParseState normalizes abbr and reports whether it is a known state.
func ParseState(abbr string) (string, bool) {
	code := strings.ToUpper(strings.TrimSpace(abbr))
	for _, s := range StateAbbreviations {
		if s == code {
			return code, true
		}
	}
	return "", false
}

// SeedStates returns the rows inserted by the schema reset script.
func SeedStates() []State {
	names := map[string]string{
		"NSW": "New South Wales",
		"QLD": "Queensland",
		"VIC": "Victoria",
		"SA":  "South Australia",
		"TAS": "Tasmania",
		"WA":  "Western Australia",
		"NT":  "Northern Territory",
	}
	states := make([]State, len(StateAbbreviations))
	for i, abbr := range StateAbbreviations {
		states[i] = State{ID: int32(i + 1), Abbreviation: abbr, Name: names[abbr]}
	}
	return states
}
