package chess

import (
	"fmt"
	"time"

	"github.com/park285/cheese-solo-chess/internal/chess/uci"
)

// SearchLimits combines the applied strength profile with the move-time budget.
func SearchLimits(p StrengthProfile, budget time.Duration) (uci.Limits, error) {
	if err := ValidateThinkTime(budget); err != nil {
		return uci.Limits{}, err
	}
	if p.DepthCap < 0 {
		return uci.Limits{}, fmt.Errorf("depth cap must be >= 0: %d", p.DepthCap)
	}
	return uci.Limits{
		Depth:          p.DepthCap,
		MoveTimeMillis: int(budget / time.Millisecond),
	}, nil
}
