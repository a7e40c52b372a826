package migrate

import (
	"log/slog"
	"unicode/utf8"

	"github.com/jobtrack/migrator/internal/domain/legacy"
)

// Column widths of the target schema.
const (
	maxNameLength        = 50
	maxCompanyLength     = 100
	maxPhoneLength       = 20
	maxEmailLength       = 100
	maxStreetLength      = 200
	maxSuburbLength      = 100
	maxPostcodeLength    = 10
	maxDescriptionLength = 2000
)

// truncate cuts value to max characters. Cutting is recoverable: it logs a
// warning naming the field and the legacy row and carries on.
func truncate(log *slog.Logger, field string, id legacy.ID, value string, max int) string {
	if utf8.RuneCountInString(value) <= max {
		return value
	}
	runes := []rune(value)
	log.Warn("value truncated",
		"field", field,
		"legacy_id", uint32(id),
		"length", len(runes),
		"max", max,
	)
	return string(runes[:max])
}
