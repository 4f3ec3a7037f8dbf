package module

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/assessdex/internal/domain"
)

func TestIsValid(t *testing.T) {
	for _, m := range All() {
		if !m.IsValid() {
			t.Errorf("%q.IsValid() = false, want true", m)
		}
	}

	invalid := []Type{"", "finance", "SECURITY", "dev-ops"}
	for _, m := range invalid {
		if m.IsValid() {
			t.Errorf("%q.IsValid() = true, want false", m)
		}
	}
}

func TestAll_Count(t *testing.T) {
	if got := len(All()); got != 8 {
		t.Fatalf("expected 8 module types, got %d", got)
	}
}

func TestParse(t *testing.T) {
	got, err := Parse("  Security ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != Security {
		t.Errorf("Parse = %q, want %q", got, Security)
	}

	_, err = Parse("marketing")
	if !errors.Is(err, domain.ErrInvalidModuleType) {
		t.Errorf("expected ErrInvalidModuleType, got %v", err)
	}
}

func TestParseList(t *testing.T) {
	got, err := ParseList([]string{"cloud", "data", "CLOUD"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != Cloud || got[1] != Data {
		t.Errorf("unexpected list: %v", got)
	}

	if _, err := ParseList([]string{"cloud", "bogus"}); err == nil {
		t.Error("expected error for unknown entry")
	}

	empty, err := ParseList(nil)
	if err != nil || empty != nil {
		t.Errorf("expected nil, nil for empty input, got %v, %v", empty, err)
	}
}
