package chess

import (
	"fmt"
	"time"
)

const (
	MinSkillLevel     = 0
	MaxSkillLevel     = 20
	depthCapThreshold = 1600
	depthCapDivisor   = 200
	minDepthCap       = 1
	maxDepthCap       = 10

	DefaultStrength  = 1200
	DefaultThinkTime = 500 * time.Millisecond
)

// StrengthProfile is the engine configuration derived from a strength setting.
// DepthCap is zero when search depth is not limited.
type StrengthProfile struct {
	Strength   int
	SkillLevel int
	DepthCap   int
}

func (p StrengthProfile) Capped() bool { return p.DepthCap > 0 }

var skillThresholds = []struct {
	upTo  int
	skill int
}{
	{1000, 0},
	{1200, 3},
	{1400, 6},
	{1600, 10},
	{1800, 13},
	{2000, 16},
	{2200, 18},
}

// StrengthLevels are the strength settings offered for selection.
var StrengthLevels = []int{800, 1200, 1600, 2000, 2400, 2800}

// ThinkTimes are the move-time budgets offered for selection.
var ThinkTimes = []time.Duration{
	100 * time.Millisecond,
	500 * time.Millisecond,
	1 * time.Second,
	2 * time.Second,
	5 * time.Second,
}

// MapStrength maps an ELO-like strength to a Skill Level in 0-20 and, below 1600,
// a search depth cap of clamp(strength/200, 1, 10).
func MapStrength(strength int) StrengthProfile {
	profile := StrengthProfile{Strength: strength, SkillLevel: MaxSkillLevel}
	for _, th := range skillThresholds {
		if strength <= th.upTo {
			profile.SkillLevel = th.skill
			break
		}
	}
	if strength < depthCapThreshold {
		profile.DepthCap = clamp(strength/depthCapDivisor, minDepthCap, maxDepthCap)
	}
	return profile
}

func ValidateStrength(strength int) error {
	if strength <= 0 {
		return fmt.Errorf("strength must be > 0: %d", strength)
	}
	return nil
}

func ValidateThinkTime(d time.Duration) error {
	if d < time.Millisecond {
		return fmt.Errorf("think time must be at least 1ms: %v", d)
	}
	return nil
}

// StepStrength moves along StrengthLevels from the level nearest to current.
func StepStrength(current, step int) int {
	return StrengthLevels[stepIndex(nearestIndex(len(StrengthLevels), func(i int) int {
		return abs(StrengthLevels[i] - current)
	}), step, len(StrengthLevels))]
}

// StepThinkTime moves along ThinkTimes from the budget nearest to current.
func StepThinkTime(current time.Duration, step int) time.Duration {
	return ThinkTimes[stepIndex(nearestIndex(len(ThinkTimes), func(i int) int {
		return abs(int(ThinkTimes[i]/time.Millisecond) - int(current/time.Millisecond))
	}), step, len(ThinkTimes))]
}

func nearestIndex(n int, dist func(int) int) int {
	best := 0
	for i := 1; i < n; i++ {
		if dist(i) < dist(best) {
			best = i
		}
	}
	return best
}

func stepIndex(idx, step, n int) int {
	return ((idx+step)%n + n) % n
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
