package trust

import (
	"math"
	"testing"
)

func TestDecayScore(t *testing.T) {
	tests := []struct {
		name  string
		score int
		idle  float64
		want  int
	}{
		{"within grace", 80, 15, 80},
		{"grace boundary", 80, 30, 80},
		{"one week past grace", 100, 37, 98},
		{"two weeks past grace", 100, 44, 96},
		{"long idle hits floor", 80, 1000, 10},
		{"already at floor", 10, 400, 10},
		{"below floor unchanged", 4, 400, 4},
		{"zero unchanged", 0, 400, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecayScore(tt.score, tt.idle); got != tt.want {
				t.Errorf("DecayScore(%d, %v) = %d, want %d", tt.score, tt.idle, got, tt.want)
			}
		})
	}
}

func TestDecayScore_NeverIncreases(t *testing.T) {
	for idle := float64(0); idle <= 365; idle += 3.5 {
		for _, score := range []int{0, 10, 11, 50, 100} {
			if got := DecayScore(score, idle); got > score {
				t.Fatalf("DecayScore(%d, %v) = %d, exceeds input", score, idle, got)
			}
		}
	}
}

func TestDecayScore_Monotonic(t *testing.T) {
	prev := 100
	for idle := float64(0); idle <= 730; idle += 1 {
		got := DecayScore(100, idle)
		if got > prev {
			t.Fatalf("decay increased from %d to %d at %v days idle", prev, got, idle)
		}
		prev = got
	}
}

func TestEffectiveStrength(t *testing.T) {
	tests := []struct {
		name     string
		strength int
		days     float64
		want     float64
	}{
		{"fresh", 80, 0, 80},
		{"one half-life", 80, 180, 40},
		{"two half-lives", 80, 360, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EffectiveStrength(tt.strength, tt.days)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("EffectiveStrength(%d, %v) = %v, want %v", tt.strength, tt.days, got, tt.want)
			}
		})
	}
}

func TestEffectiveStrength_StrictlyDecreasing(t *testing.T) {
	prev := EffectiveStrength(100, 0)
	for days := float64(1); days <= 720; days++ {
		got := EffectiveStrength(100, days)
		if got >= prev {
			t.Fatalf("effective strength did not decrease at %v days: %v >= %v", days, got, prev)
		}
		prev = got
	}
}
