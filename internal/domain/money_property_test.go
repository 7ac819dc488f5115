package domain

import (
	"testing"

	"pgregory.net/rapid"
)

func TestProperty_MonetaryRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		// Any cent value in a realistic monetary range must survive
		// cents → dollars → cents exactly.
		cents := rapid.Int64Range(0, 99_999_999_99).Draw(t, "cents")

		dollars := CentsToDollars(cents)
		gotCents, err := DollarsToCents(dollars)
		if err != nil {
			t.Fatalf("DollarsToCents(%v) returned error for value derived from %d cents: %v", dollars, cents, err)
		}
		if gotCents != cents {
			t.Fatalf("round-trip failed: cents=%d → dollars=%v → cents=%d", cents, dollars, gotCents)
		}
	})
}
