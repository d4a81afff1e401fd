package utils

import (
	"math"
	"testing"
)

func TestRound(t *testing.T) {
	tests := []struct {
		v      float64
		places int32
		want   float64
	}{
		{1.005, 2, 1.01},
		{2.675, 2, 2.68},
		{-1.5, 0, -2},
		{100.1234564, 6, 100.123456},
		{100.1234565, 6, 100.123457},
		{0, 2, 0},
	}
	for _, tt := range tests {
		if got := Round(tt.v, tt.places); got != tt.want {
			t.Errorf("Round(%v, %d) = %v, want %v", tt.v, tt.places, got, tt.want)
		}
	}
}

func TestRoundNonFinite(t *testing.T) {
	if !math.IsNaN(Round(math.NaN(), 2)) {
		t.Errorf("NaN should pass through")
	}
	if !math.IsInf(Round(math.Inf(1), 2), 1) {
		t.Errorf("+Inf should pass through")
	}
	if IsFinite(math.Inf(-1)) || !IsFinite(3) {
		t.Errorf("IsFinite mismatch")
	}
}
