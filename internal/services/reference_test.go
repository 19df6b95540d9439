package services

import (
	"context"
	"regexp"
	"testing"
)

var referenceFormat = regexp.MustCompile(`^#CLN-[0-9A-F]{6}$`)

func TestGenerateReference(t *testing.T) {
	ctx := context.Background()

	t.Run("Given a fresh store When generated Then the reference matches the format", func(t *testing.T) {
		store := newMockStore()

		ref, err := GenerateReference(ctx, store)
		if err != nil {
			t.Fatalf("GenerateReference failed: %v", err)
		}
		if !referenceFormat.MatchString(ref) {
			t.Errorf("reference %q does not match #CLN-XXXXXX", ref)
		}
	})

	t.Run("Given repeated draws Then references rarely collide", func(t *testing.T) {
		store := newMockStore()
		seen := make(map[string]bool)
		for i := 0; i < 200; i++ {
			ref, err := GenerateReference(ctx, store)
			if err != nil {
				t.Fatalf("GenerateReference failed: %v", err)
			}
			// Mark each draw taken so a collision would force a retry.
			store.References[ref] = true
			seen[ref] = true
		}
		if len(seen) != 200 {
			t.Errorf("expected 200 distinct references, got %d", len(seen))
		}
	})
}

func TestSlugify(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"simple name", "December Groceries", "december-groceries"},
		{"punctuation stripped", "Uncle Sipho's Funeral!", "uncle-sipho-s-funeral"},
		{"extra whitespace collapsed", "  Annual   Savings  ", "annual-savings"},
		{"empty falls back", "!!!", "contribution"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Slugify(tc.in); got != tc.want {
				t.Errorf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
