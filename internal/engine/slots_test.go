package engine

import (
	"errors"
	"testing"

	"github.com/ReclaimHQ/ReclaimBot/internal/models"
)

func intPtr(n int) *int { return &n }

func assertValid(t *testing.T, slot models.Slot, input, want string) {
	t.Helper()
	got, err := ValidateSlot(slot, input)
	if err != nil {
		t.Errorf("ValidateSlot(%q) unexpected error: %v", input, err)
		return
	}
	if got != want {
		t.Errorf("ValidateSlot(%q) = %q, want %q", input, got, want)
	}
}

func assertInvalid(t *testing.T, slot models.Slot, input string) *ValidationError {
	t.Helper()
	_, err := ValidateSlot(slot, input)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Errorf("ValidateSlot(%q) expected ValidationError, got %v", input, err)
		return nil
	}
	return vErr
}

func TestValidateStringSlot(t *testing.T) {
	slot := models.Slot{Name: "desc", Type: models.SlotString, Required: true, MinLength: 5, MaxLength: 10}

	assertValid(t, slot, "hello", "hello")
	assertValid(t, slot, "  trimmed  ", "trimmed")
	assertInvalid(t, slot, "hi")
	assertInvalid(t, slot, "far too long for this")
	assertInvalid(t, slot, "")
	assertInvalid(t, slot, "   ")
}

func TestValidateStringLengthCountsRunes(t *testing.T) {
	slot := models.Slot{Name: "desc", Type: models.SlotString, Required: true, MinLength: 4, MaxLength: 6}

	// Multibyte input measures within bounds by character count even though
	// its UTF-8 encoding is longer in bytes.
	assertValid(t, slot, "vélos", "vélos")
	assertValid(t, slot, "телефон"[:12], "телефо") // 6 Cyrillic characters, 12 bytes
	assertInvalid(t, slot, "vé")                   // 2 characters, under min_length
	assertInvalid(t, slot, "телефоны")             // 8 characters, over max_length
}

func TestValidateStringPattern(t *testing.T) {
	slot := models.Slot{Name: "when", Type: models.SlotString, Pattern: `^\d{4}-\d{2}-\d{2}$`}
	assertValid(t, slot, "2026-08-31", "2026-08-31")
	assertInvalid(t, slot, "31/08/2026")
}

func TestValidateIntegerSlot(t *testing.T) {
	slot := models.Slot{Name: "count", Type: models.SlotInteger, Required: true, Min: intPtr(1), Max: intPtr(10)}

	assertValid(t, slot, "5", "5")
	assertValid(t, slot, " 10 ", "10")
	assertInvalid(t, slot, "eleven")
	assertInvalid(t, slot, "0")
	assertInvalid(t, slot, "11")
	assertInvalid(t, slot, "3.5")
}

func TestValidateEnumSlot(t *testing.T) {
	slot := models.Slot{
		Name:    "category",
		Type:    models.SlotEnum,
		Allowed: []string{"bicycle", "phone"},
		Keywords: map[string][]string{
			"bicycle": {"bike", "cycle"},
			"phone":   {"mobile", "iphone"},
		},
	}

	assertValid(t, slot, "bicycle", "bicycle")
	assertValid(t, slot, "PHONE", "phone")
	// Keyword containment maps free text onto the canonical value.
	assertValid(t, slot, "my bike was taken", "bicycle")
	assertValid(t, slot, "an iPhone 15", "phone")

	vErr := assertInvalid(t, slot, "a kayak")
	if vErr != nil && vErr.Slot != "category" {
		t.Errorf("Expected slot name in validation error, got %q", vErr.Slot)
	}
}

func TestValidateEmailSlot(t *testing.T) {
	slot := models.Slot{Name: "email", Type: models.SlotEmail, Required: true}

	assertValid(t, slot, "User@Example.com", "user@example.com")
	assertInvalid(t, slot, "not-an-email")
	assertInvalid(t, slot, "two@@example.com")
	assertInvalid(t, slot, "@example.com")
}

func TestValidateSkipWord(t *testing.T) {
	slot := models.Slot{Name: "location", Type: models.SlotString, MinLength: 5, SkipWord: "skip"}

	assertValid(t, slot, "skip", "")
	assertValid(t, slot, "SKIP", "")
	// A non-skip answer still has to satisfy the constraints.
	assertInvalid(t, slot, "x")
}

func TestValidateOptionalEmpty(t *testing.T) {
	slot := models.Slot{Name: "notes", Type: models.SlotText}
	assertValid(t, slot, "", "")

	required := models.Slot{Name: "notes", Type: models.SlotText, Required: true}
	assertInvalid(t, required, "")
}
