package chess

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestMapStrength(t *testing.T) {
	cases := []struct {
		strength int
		want     StrengthProfile
	}{
		{100, StrengthProfile{Strength: 100, SkillLevel: 0, DepthCap: 1}},
		{800, StrengthProfile{Strength: 800, SkillLevel: 0, DepthCap: 4}},
		{1000, StrengthProfile{Strength: 1000, SkillLevel: 0, DepthCap: 5}},
		{1001, StrengthProfile{Strength: 1001, SkillLevel: 3, DepthCap: 5}},
		{1200, StrengthProfile{Strength: 1200, SkillLevel: 3, DepthCap: 6}},
		{1400, StrengthProfile{Strength: 1400, SkillLevel: 6, DepthCap: 7}},
		{1599, StrengthProfile{Strength: 1599, SkillLevel: 10, DepthCap: 7}},
		{1600, StrengthProfile{Strength: 1600, SkillLevel: 10}},
		{1800, StrengthProfile{Strength: 1800, SkillLevel: 13}},
		{2000, StrengthProfile{Strength: 2000, SkillLevel: 16}},
		{2200, StrengthProfile{Strength: 2200, SkillLevel: 18}},
		{2201, StrengthProfile{Strength: 2201, SkillLevel: 20}},
		{2800, StrengthProfile{Strength: 2800, SkillLevel: 20}},
	}
	for _, tc := range cases {
		got := MapStrength(tc.strength)
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("MapStrength(%d) mismatch (-want +got):\n%s", tc.strength, diff)
		}
	}
}

func TestMapStrengthIsDeterministic(t *testing.T) {
	for s := 0; s <= 3200; s += 50 {
		a, b := MapStrength(s), MapStrength(s)
		if a != b {
			t.Fatalf("MapStrength(%d) not deterministic: %+v vs %+v", s, a, b)
		}
		if a.SkillLevel < MinSkillLevel || a.SkillLevel > MaxSkillLevel {
			t.Fatalf("MapStrength(%d) skill out of range: %d", s, a.SkillLevel)
		}
		if s < 1600 && (a.DepthCap < 1 || a.DepthCap > 10) {
			t.Fatalf("MapStrength(%d) depth cap out of range: %d", s, a.DepthCap)
		}
		if s >= 1600 && a.Capped() {
			t.Fatalf("MapStrength(%d) must not cap depth", s)
		}
	}
}

func TestStepStrengthWraps(t *testing.T) {
	if got := StepStrength(1200, 1); got != 1600 {
		t.Fatalf("StepStrength(1200, +1) = %d, want 1600", got)
	}
	if got := StepStrength(2800, 1); got != 800 {
		t.Fatalf("StepStrength(2800, +1) = %d, want 800", got)
	}
	if got := StepStrength(800, -1); got != 2800 {
		t.Fatalf("StepStrength(800, -1) = %d, want 2800", got)
	}
	if got := StepStrength(1250, 0); got != 1200 {
		t.Fatalf("StepStrength(1250, 0) = %d, want nearest 1200", got)
	}
}

func TestStepThinkTime(t *testing.T) {
	if got := StepThinkTime(500*time.Millisecond, 1); got != time.Second {
		t.Fatalf("StepThinkTime(500ms, +1) = %v", got)
	}
	if got := StepThinkTime(5*time.Second, 1); got != 100*time.Millisecond {
		t.Fatalf("StepThinkTime(5s, +1) = %v", got)
	}
}

func TestValidateStrength(t *testing.T) {
	if err := ValidateStrength(0); err == nil {
		t.Fatalf("expected error for zero strength")
	}
	if err := ValidateStrength(DefaultStrength); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
