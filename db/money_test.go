package db

import "testing"

func Test_RoundAmount(t *testing.T) {

	cases := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{1.005, 1.01}, // half rounds away from zero
		{1.004, 1.0},
		{-1.005, -1.01},
		{3.456, 3.46},
		{2.5, 2.5},
		{99.999, 100},
	}
	for _, c := range cases {
		if got := RoundAmount(c.in); got != c.want {
			t.Errorf("RoundAmount(%v) got %v want %v", c.in, got, c.want)
		}
	}
}

func Test_RateString(t *testing.T) {

	// 3.5 and 3.50 must compare equal for rate change detection.
	if got, want := rateString(3.5), rateString(3.50); got != want {
		t.Errorf("rate strings differ: %q vs %q", got, want)
	}
	if got, want := rateString(3.5), "3.5"; got != want {
		t.Errorf("rateString(3.5) got %q want %q", got, want)
	}
	if rateString(3.5) == rateString(3.55) {
		t.Error("distinct rates should not normalize to the same string")
	}
}
