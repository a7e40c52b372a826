package translate

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jobtrack/migrator/internal/domain/legacy"
)

type row struct {
	legacyID legacy.ID
	targetID int64
}

func key(r row) legacy.ID         { return r.legacyID }
func value(r row) int64           { return r.targetID }
func ptr(id legacy.ID) *legacy.ID { return &id }

func TestBuild_Lookup(t *testing.T) {
	table, err := Build("contacts", []row{{7, 100}, {3, 101}}, key, value)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if got, ok := table.Lookup(7); !ok || got != 100 {
		t.Errorf("Lookup(7) = %d, %v; want 100, true", got, ok)
	}
	if _, ok := table.Lookup(8); ok {
		t.Error("Lookup(8) should report not found")
	}
	if table.Len() != 2 {
		t.Errorf("Len() = %d, want 2", table.Len())
	}
	if diff := cmp.Diff([]legacy.ID{3, 7}, table.Keys()); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_DuplicateKey(t *testing.T) {
	_, err := Build("jobs", []row{{1, 10}, {1, 11}}, key, value)
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestOptional(t *testing.T) {
	table, _ := Build("councils", []row{{5, 50}}, key, value)

	tests := []struct {
		name    string
		id      *legacy.ID
		outcome Outcome
		ok      bool
		value   int64
	}{
		{"nil reference", nil, Absent, true, 0},
		{"zero sentinel", ptr(0), Absent, true, 0},
		{"mapped", ptr(5), Resolved, true, 50},
		{"dangling", ptr(6), Absent, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, ok := Optional(table, tt.id)
			if ok != tt.ok || res.Outcome != tt.outcome || res.Value != tt.value {
				t.Errorf("Optional = (%+v, %v), want outcome %v value %d ok %v", res, ok, tt.outcome, tt.value, tt.ok)
			}
		})
	}
}

func TestOrDefault(t *testing.T) {
	table, _ := Build("users", []row{{2, 20}}, key, value)

	if res := OrDefault(table, ptr(2), 99); res.Outcome != Resolved || res.Value != 20 {
		t.Errorf("mapped id: got %+v", res)
	}
	if res := OrDefault(table, ptr(3), 99); res.Outcome != Defaulted || res.Value != 99 {
		t.Errorf("unmapped id: got %+v", res)
	}
	if res := OrDefault(table, nil, 99); res.Outcome != Defaulted || res.Value != 99 {
		t.Errorf("nil id: got %+v", res)
	}
}
