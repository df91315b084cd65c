package policy

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		score float64
		want  Tier
	}{
		{0.90, TierHigh},
		{0.85, TierHigh},
		{0.849999, TierMedium},
		{0.60, TierMedium},
		{0.50, TierMedium},
		{0.499999, TierLow},
		{0.20, TierLow},
		{-0.5, TierLow},
	}
	for _, c := range cases {
		if got := Classify(c.score); got != c.want {
			t.Errorf("Classify(%v) = %q, want %q", c.score, got, c.want)
		}
	}
}

func TestShouldEscalate(t *testing.T) {
	cases := []struct {
		tier    Tier
		allowed bool
		want    bool
	}{
		{TierHigh, true, false},
		{TierMedium, true, true},
		{TierLow, true, true},
		{TierMedium, false, false},
		{TierLow, false, false},
	}
	for _, c := range cases {
		if got := ShouldEscalate(c.tier, c.allowed); got != c.want {
			t.Errorf("ShouldEscalate(%q, %v) = %v, want %v", c.tier, c.allowed, got, c.want)
		}
	}
}
